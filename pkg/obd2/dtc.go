// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package obd2

import (
	"fmt"
	"strings"
)

// TroubleCode is a five character diagnostic trouble code such as "P0301"
type TroubleCode string

// noCode pads mode 03 replies and is never reported
const noCode TroubleCode = "P0000"

// troubleCodePrefixes is indexed by the first hex digit of a code group.
// The top two bits pick the category, the low two bits the first digit.
var troubleCodePrefixes = [16]string{
	"P0", "P1", "P2", "P3",
	"C0", "C1", "C2", "C3",
	"B0", "B1", "B2", "B3",
	"U0", "U1", "U2", "U3",
}

// troubleCodeGroup is the number of hex digits encoding one code
const troubleCodeGroup = 4

// StripReply removes spaces, tabs, carriage returns and line feeds
func StripReply(reply string) string {
	var sb strings.Builder
	sb.Grow(len(reply))
	for i := 0; i < len(reply); i++ {
		if !isSpace(reply[i]) {
			sb.WriteByte(reply[i])
		}
	}
	return sb.String()
}

// ParseTroubleCodes decodes a mode 03 reply.
//
// A "NO DATA" reply is an empty, successful result. Anything not starting
// with "43" is ErrMalformedReply. The remainder is consumed four digits at
// a time; trailing fragments are ignored, "P0000" padding is dropped and at
// most MaxTroubleCodes codes are returned.
func ParseTroubleCodes(reply string) ([]TroubleCode, error) {
	stripped := StripReply(reply)

	if strings.Contains(stripped, noDataResponse) {
		return nil, nil
	}

	if !strings.HasPrefix(stripped, readCodesResponse) {
		return nil, fmt.Errorf("%w: mode 03 reply %q", ErrMalformedReply, stripped)
	}

	var codes []TroubleCode
	groups := stripped[len(readCodesResponse):]
	for len(groups) >= troubleCodeGroup {
		group := groups[:troubleCodeGroup]
		groups = groups[troubleCodeGroup:]

		code := decodeTroubleCode(group)
		if code == noCode {
			continue
		}
		if len(codes) < MaxTroubleCodes {
			codes = append(codes, code)
		}
	}

	return codes, nil
}

// decodeTroubleCode turns a four digit group such as "0301" into "P0301".
// A non-hex first digit selects the P0 prefix.
func decodeTroubleCode(group string) TroubleCode {
	p, _ := hexNibble(group[0])
	return TroubleCode(troubleCodePrefixes[p] + group[1:troubleCodeGroup])
}

// IsClearAcknowledged reports whether a mode 04 reply confirms the clear
func IsClearAcknowledged(reply string) bool {
	return StripReply(reply) == clearCodesResponse
}
