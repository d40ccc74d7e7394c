// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package obd2

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// Transport is the half-duplex byte channel to the adapter.
//
// A Read that returns (0, nil) or io.EOF means no byte is available yet;
// any other error is a transport failure.
type Transport interface {
	io.Reader
	io.Writer
}

// ReplyStatus tells how a reply ended
type ReplyStatus int

const (
	// ReplyFramed means the prompt byte was seen
	ReplyFramed ReplyStatus = iota
	// ReplyTruncated means the buffer filled before the prompt
	ReplyTruncated
	// ReplyTimeout means the adapter went quiet before the prompt
	ReplyTimeout
	// ReplyFailed means the transport returned an error
	ReplyFailed
)

// String returns the status name
func (s ReplyStatus) String() string {
	switch s {
	case ReplyFramed:
		return "FRAMED"
	case ReplyTruncated:
		return "TRUNCATED"
	case ReplyTimeout:
		return "TIMEOUT"
	case ReplyFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("STATUS_%d", int(s))
	}
}

// Reply is the printable text the adapter sent before its prompt
type Reply struct {
	Status ReplyStatus
	Text   string
}

// Err maps a non-framed status to its sentinel error
func (r Reply) Err() error {
	switch r.Status {
	case ReplyTruncated:
		return ErrTruncated
	case ReplyTimeout:
		return ErrTimeout
	case ReplyFailed:
		return ErrReadFailed
	}
	return nil
}

// idlePoll is how long to back off after an empty read
const idlePoll = time.Millisecond

// ReadReply reads one byte at a time from r until the prompt byte, dropping
// control characters. The read ends as ReplyTruncated as soon as capacity
// printable bytes are stored, leaving the rest of the reply unread. The
// timeout restarts on every received byte; a timeout <= 0 waits forever.
func ReadReply(r io.Reader, capacity int, timeout time.Duration) (Reply, error) {
	if capacity < 1 {
		capacity = 1
	}
	buf := make([]byte, 0, capacity)
	one := make([]byte, 1)
	deadline := time.Now().Add(timeout)

	for {
		n, err := r.Read(one)
		if err != nil && !errors.Is(err, io.EOF) {
			return Reply{Status: ReplyFailed, Text: string(buf)}, fmt.Errorf("%w: %w", ErrReadFailed, err)
		}

		if n == 0 {
			if timeout > 0 && time.Now().After(deadline) {
				return Reply{Status: ReplyTimeout, Text: string(buf)}, nil
			}
			time.Sleep(idlePoll)
			continue
		}

		deadline = time.Now().Add(timeout)

		b := one[0]
		if b == Prompt {
			return Reply{Status: ReplyFramed, Text: string(buf)}, nil
		}
		if b < printableMin {
			continue
		}
		buf = append(buf, b)
		if len(buf) == capacity {
			return Reply{Status: ReplyTruncated, Text: string(buf)}, nil
		}
	}
}
