// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package obd2

// payloadOffset skips the "41 0C " echo at the start of a mode 01 reply
const payloadOffset = 6

// ExtractPayload parses the hex byte groups following the mode/PID echo of
// a reply. Whitespace between groups is skipped, a group is at most two hex
// digits and parsing stops at the first non-hex character.
func ExtractPayload(reply string) []byte {
	if len(reply) <= payloadOffset {
		return nil
	}

	payload := make([]byte, 0, maxPayloadBytes)
	s := reply[payloadOffset:]
	i := 0
	for len(payload) < maxPayloadBytes {
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		if i >= len(s) {
			break
		}

		hi, ok := hexNibble(s[i])
		if !ok {
			break
		}
		i++

		value := hi
		if i < len(s) {
			if lo, ok := hexNibble(s[i]); ok {
				value = hi<<4 | lo
				i++
			}
		}
		payload = append(payload, value)
	}
	return payload
}

// DecodeValue applies pid's transfer function to payload. Bytes missing
// from a short payload read as zero.
func DecodeValue(pid PID, payload []byte) (int64, error) {
	info, ok := LookupPID(pid)
	if !ok {
		return 0, ErrUnknownPID
	}

	a := int64(byteAt(payload, 0))
	b := int64(byteAt(payload, 1))
	word := a*256 + b

	switch info.Transform {
	case TransformQuarter:
		return word / 4, nil
	case TransformSpeed:
		return a / 100, nil
	case TransformPercent:
		return a * 100 / 255, nil
	case TransformPercentWord:
		return word * 100 / 255, nil
	case TransformRaw:
		return a, nil
	case TransformTriple:
		return a * 3, nil
	case TransformTiming:
		return a/2 - 64, nil
	case TransformWord:
		return word, nil
	default:
		var value int64
		for i := 0; i < info.Length; i++ {
			value = value<<8 | int64(byteAt(payload, i))
		}
		return value, nil
	}
}

func byteAt(payload []byte, i int) byte {
	if i < len(payload) {
		return payload[i]
	}
	return 0
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
