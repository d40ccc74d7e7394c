// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package obd2

import "errors"

var (
	// ErrTimeout is returned when the adapter sends nothing within the read timeout
	ErrTimeout = errors.New("obd2: timed out waiting for adapter reply")

	// ErrReadFailed wraps a transport read error
	ErrReadFailed = errors.New("obd2: adapter read failed")

	// ErrTruncated is returned when the reply buffer filled before the prompt arrived
	ErrTruncated = errors.New("obd2: reply truncated before prompt")

	// ErrUnsupportedPID is returned without any I/O for PIDs the vehicle does not report
	ErrUnsupportedPID = errors.New("obd2: PID not supported by vehicle")

	// ErrUnknownPID is returned for PIDs outside the decode table
	ErrUnknownPID = errors.New("obd2: PID not in decode table")

	// ErrMalformedReply is returned when a mode 03/04 reply has the wrong prefix
	ErrMalformedReply = errors.New("obd2: malformed reply")

	// errEmptySupport marks a PID 0x00 reply that reports no supported PIDs
	errEmptySupport = errors.New("obd2: empty support bitmap")
)
