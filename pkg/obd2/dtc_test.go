// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package obd2

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseTroubleCodes(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []TroubleCode
	}{
		{"single", "43 01 33 00 00 00 00", []TroubleCode{"P0133"}},
		{"padding dropped", "43 03 01 00 00 01 71", []TroubleCode{"P0301", "P0171"}},
		{"every category", "43 01 01 41 23 81 00 C1 55", []TroubleCode{"P0101", "C0123", "B0100", "U0155"}},
		{"upper digits", "43 31 00 72 34 B3 42 F0 01", []TroubleCode{"P3100", "C3234", "B3342", "U3001"}},
		{"capped at five", "43 01 01 01 02 01 03 01 04 01 05 01 06", []TroubleCode{"P0101", "P0102", "P0103", "P0104", "P0105"}},
		{"trailing fragment ignored", "43 04 20 01", []TroubleCode{"P0420"}},
		{"all padding", "43 00 00 00 00 00 00", nil},
		{"prefix only", "43", nil},
		{"no data", "NO DATA", nil},
		{"no data with framing", "\r\nNO DATA\r\n", nil},
		{"crlf between groups", "43 01 33\r\n00 00", []TroubleCode{"P0133"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTroubleCodes(tt.reply)
			if err != nil {
				t.Fatalf("ParseTroubleCodes() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseTroubleCodes(%q) = %v, want %v", tt.reply, got, tt.want)
			}
		})
	}
}

func TestParseTroubleCodesMalformed(t *testing.T) {
	for _, reply := range []string{"", "7F 03 11", "41 0C 1F 40", "?"} {
		t.Run(reply, func(t *testing.T) {
			codes, err := ParseTroubleCodes(reply)
			if !errors.Is(err, ErrMalformedReply) {
				t.Errorf("ParseTroubleCodes(%q) error = %v, want %v", reply, err, ErrMalformedReply)
			}
			if codes != nil {
				t.Errorf("codes = %v, want nil", codes)
			}
		})
	}
}

func TestTroubleCodePrefixTable(t *testing.T) {
	want := []string{
		"P0", "P1", "P2", "P3",
		"C0", "C1", "C2", "C3",
		"B0", "B1", "B2", "B3",
		"U0", "U1", "U2", "U3",
	}
	digits := "0123456789ABCDEF"
	for i := 0; i < 16; i++ {
		got := decodeTroubleCode(string(digits[i]) + "123")
		if string(got) != want[i]+"123" {
			t.Errorf("nibble %c: got %s, want %s123", digits[i], got, want[i])
		}
	}
}

func TestIsClearAcknowledged(t *testing.T) {
	tests := []struct {
		reply string
		want  bool
	}{
		{"44", true},
		{" 44 \r\n", true},
		{"7F 04 31", false},
		{"7F0431", false},
		{"44 00", false},
		{"", false},
		{"NO DATA", false},
	}

	for _, tt := range tests {
		if got := IsClearAcknowledged(tt.reply); got != tt.want {
			t.Errorf("IsClearAcknowledged(%q) = %v, want %v", tt.reply, got, tt.want)
		}
	}
}

func TestStripReply(t *testing.T) {
	if got := StripReply(" 43 01\t33\r\n00 "); got != "43013300" {
		t.Errorf("StripReply() = %q, want %q", got, "43013300")
	}
}
