// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package obd2

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestEncodeModeRequest(t *testing.T) {
	tests := []struct {
		name string
		mode Mode
		pid  PID
		want string
	}{
		{"rpm", ModeCurrentData, PIDEngineRPM, "010C\r"},
		{"support bitmap", ModeCurrentData, PIDSupport00, "0100\r"},
		{"ethanol", ModeCurrentData, PIDEthanolFuel, "0152\r"},
		{"read codes ignores pid", ModeReadTroubleCodes, PIDEngineRPM, "03\r"},
		{"clear codes", ModeClearTroubleCode, 0, "04\r"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeModeRequest(tt.mode, tt.pid); got != tt.want {
				t.Errorf("EncodeModeRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateResponse(t *testing.T) {
	tests := []struct {
		name    string
		request string
		reply   string
		anomaly AnomalyType
		wantErr bool
	}{
		{"rpm reply", "010C\r", "41 0C 1F 40", 0, false},
		{"support reply", "0100\r", "41 00 BE 1F A8 13", 0, false},
		{"bare echo is enough", "010D\r", "41 0D", 0, false},
		{"short reply", "010C\r", "41 0", AnomalyShortReply, true},
		{"empty reply", "010C\r", "", AnomalyShortReply, true},
		{"no data", "010C\r", "NO DATA", AnomalyModeMismatch, true},
		{"wrong mode", "010C\r", "42 0C 1F 40", AnomalyModeMismatch, true},
		{"negative response", "010C\r", "7F 01 12", AnomalyModeMismatch, true},
		{"wrong pid", "010C\r", "41 0D 64", AnomalyPIDMismatch, true},
		{"unspaced reply", "010C\r", "410C1F40", AnomalyPIDMismatch, true},
		{"short request", "01", "41 0C 1F 40", AnomalyShortReply, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateResponse(tt.request, tt.reply)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error %T is not *ValidationError", err)
			}
			if verr.Type != tt.anomaly {
				t.Errorf("Type = %s, want %s", verr.Type, tt.anomaly)
			}
			if verr.Reply != tt.reply {
				t.Errorf("Reply = %q, want %q", verr.Reply, tt.reply)
			}
		})
	}
}

func TestReadReply(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		capacity int
		status   ReplyStatus
		text     string
	}{
		{"framed", "41 0C 1F 40\r\r>", ReplyCapacity, ReplyFramed, "41 0C 1F 40"},
		{"control bytes dropped", "\r\n41 0D\t 64\r\n>", ReplyCapacity, ReplyFramed, "41 0D 64"},
		{"prompt only", ">", ReplyCapacity, ReplyFramed, ""},
		{"one below capacity", "1234>", 5, ReplyFramed, "1234"},
		{"exactly capacity", "12345>", 5, ReplyTruncated, "12345"},
		{"truncated", "1234567>", 5, ReplyTruncated, "12345"},
		{"full PID buffer", strings.Repeat("A", ReplyCapacity) + ">", ReplyCapacity, ReplyTruncated, strings.Repeat("A", ReplyCapacity)},
		{"silent", "", ReplyCapacity, ReplyTimeout, ""},
		{"no prompt", "41 0C", ReplyCapacity, ReplyTimeout, "41 0C"},
		{"stops at first prompt", "OK>41>", ReplyCapacity, ReplyFramed, "OK"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := ReadReply(strings.NewReader(tt.input), tt.capacity, testTimeout)
			if err != nil {
				t.Fatalf("ReadReply() error = %v", err)
			}
			if reply.Status != tt.status {
				t.Errorf("Status = %s, want %s", reply.Status, tt.status)
			}
			if reply.Text != tt.text {
				t.Errorf("Text = %q, want %q", reply.Text, tt.text)
			}
		})
	}
}

func TestReadReplyStatusErrors(t *testing.T) {
	tests := []struct {
		status ReplyStatus
		want   error
	}{
		{ReplyFramed, nil},
		{ReplyTruncated, ErrTruncated},
		{ReplyTimeout, ErrTimeout},
		{ReplyFailed, ErrReadFailed},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			if err := (Reply{Status: tt.status}).Err(); !errors.Is(err, tt.want) {
				t.Errorf("Err() = %v, want %v", err, tt.want)
			}
		})
	}
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestReadReplyTransportFailure(t *testing.T) {
	boom := errors.New("port closed")

	reply, err := ReadReply(failingReader{boom}, ReplyCapacity, testTimeout)
	if !errors.Is(err, boom) || !errors.Is(err, ErrReadFailed) {
		t.Fatalf("ReadReply() error = %v, want wrapped %v", err, boom)
	}
	if reply.Status != ReplyFailed {
		t.Errorf("Status = %s, want %s", reply.Status, ReplyFailed)
	}
}

func TestReadReplyEOFIsIdle(t *testing.T) {
	start := time.Now()
	reply, err := ReadReply(failingReader{io.EOF}, ReplyCapacity, testTimeout)
	if err != nil {
		t.Fatalf("ReadReply() error = %v", err)
	}
	if reply.Status != ReplyTimeout {
		t.Errorf("Status = %s, want %s", reply.Status, ReplyTimeout)
	}
	if elapsed := time.Since(start); elapsed < testTimeout {
		t.Errorf("returned after %v, before the %v timeout", elapsed, testTimeout)
	}
}
