// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package obd2

import "fmt"

// AnomalyType represents the ways a reply can fail to match its request
type AnomalyType int

const (
	AnomalyShortReply AnomalyType = iota
	AnomalyModeMismatch
	AnomalyPIDMismatch
)

// String returns the anomaly name
func (a AnomalyType) String() string {
	switch a {
	case AnomalyShortReply:
		return "SHORT_REPLY"
	case AnomalyModeMismatch:
		return "MODE_MISMATCH"
	case AnomalyPIDMismatch:
		return "PID_MISMATCH"
	default:
		return fmt.Sprintf("ANOMALY_%d", int(a))
	}
}

// ValidationError represents a reply that does not echo its request
type ValidationError struct {
	Type    AnomalyType
	Message string
	Request string
	Reply   string
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// minReplyLength covers "41 0C": mode pair, separator, PID pair
const minReplyLength = 5

// ValidateResponse checks that reply is the positive response to request.
//
// request is the command as sent, e.g. "010C\r"; reply is the framed text,
// e.g. "41 0C 1F 40". The response mode is the request mode plus 4 in the
// first digit, and the PID pair sits after the separator at offset 2.
func ValidateResponse(request, reply string) error {
	if len(request) < 4 {
		return &ValidationError{
			Type:    AnomalyShortReply,
			Message: fmt.Sprintf("request %q too short to validate against", request),
			Request: request,
			Reply:   reply,
		}
	}

	if len(reply) < minReplyLength {
		return &ValidationError{
			Type:    AnomalyShortReply,
			Message: fmt.Sprintf("reply %q too short (expected at least %d characters)", reply, minReplyLength),
			Request: request,
			Reply:   reply,
		}
	}

	if request[0]+4 != reply[0] || request[1] != reply[1] {
		return &ValidationError{
			Type:    AnomalyModeMismatch,
			Message: fmt.Sprintf("reply mode %q does not answer request mode %q", reply[0:2], request[0:2]),
			Request: request,
			Reply:   reply,
		}
	}

	if request[2] != reply[3] || request[3] != reply[4] {
		return &ValidationError{
			Type:    AnomalyPIDMismatch,
			Message: fmt.Sprintf("reply PID %q does not match request PID %q", reply[3:5], request[2:4]),
			Request: request,
			Reply:   reply,
		}
	}

	return nil
}
