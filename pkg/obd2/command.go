// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package obd2

import "fmt"

// Command builders return the ASCII line sent to the adapter, CR included.

// EncodeModeRequest builds a request for mode. Mode 01 takes the PID as two
// uppercase hex digits; the other modes ignore pid.
func EncodeModeRequest(mode Mode, pid PID) string {
	if mode == ModeCurrentData {
		return PIDRequest(pid)
	}
	return ModeRequest(mode)
}

// PIDRequest builds a mode 01 request, e.g. "010C\r"
func PIDRequest(pid PID) string {
	return fmt.Sprintf("%s%02X%c", ModeCurrentData, uint8(pid), CR)
}

// ModeRequest builds a request with no PID argument, e.g. "03\r"
func ModeRequest(mode Mode) string {
	return string(mode) + string(rune(CR))
}

// atCommand builds an adapter AT command line
func atCommand(cmd string) string {
	return cmd + string(rune(CR))
}
