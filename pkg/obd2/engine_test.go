// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package obd2

import (
	"bytes"
	"errors"
	"log"
	"reflect"
	"strings"
	"sync"
	"testing"
)

func TestEnginePID(t *testing.T) {
	adapter := scripted(map[string]string{
		"010C": "41 0C 1F 40",
		"010D": "41 0D 64",
		"0105": "41 05 7B",
		"0111": "42 11 80",
	})
	e := newTestEngine(adapter)
	supportAll(e)

	tests := []struct {
		name    string
		pid     PID
		want    int64
		wantErr bool
	}{
		{"rpm", PIDEngineRPM, 2000, false},
		{"speed", PIDVehicleSpeed, 1, false},
		{"coolant", PIDCoolantTemp, 0x7B, false},
		{"mismatched reply", PIDThrottlePosition, 0, true},
		{"silent adapter", PIDLoadValue, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.PID(tt.pid)
			if (err != nil) != tt.wantErr {
				t.Fatalf("PID(0x%02X) error = %v, wantErr %v", uint8(tt.pid), err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("PID(0x%02X) = %d, want %d", uint8(tt.pid), got, tt.want)
			}
		})
	}

	if got := adapter.writes[0]; got != "010C\r" {
		t.Errorf("first request = %q, want %q", got, "010C\r")
	}
}

func TestEnginePIDErrorKinds(t *testing.T) {
	adapter := scripted(map[string]string{
		"010C": "41 0D 64",
	})
	e := newTestEngine(adapter)
	supportAll(e)

	_, err := e.PID(PIDEngineRPM)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Type != AnomalyPIDMismatch {
		t.Errorf("mismatch error = %v, want PID_MISMATCH", err)
	}

	_, err = e.PID(PIDLoadValue)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("silent adapter error = %v, want %v", err, ErrTimeout)
	}

	_, err = e.PID(0x5F)
	if !errors.Is(err, ErrUnknownPID) {
		t.Errorf("unknown PID error = %v, want %v", err, ErrUnknownPID)
	}
}

func TestEnginePIDUnsupportedNoIO(t *testing.T) {
	adapter := scripted(map[string]string{"010C": "41 0C 1F 40"})
	e := newTestEngine(adapter)

	_, err := e.PID(PIDEngineRPM)
	if !errors.Is(err, ErrUnsupportedPID) {
		t.Fatalf("PID() error = %v, want %v", err, ErrUnsupportedPID)
	}
	if len(adapter.writes) != 0 {
		t.Errorf("unsupported PID wrote %q", adapter.writes)
	}
	if got := e.Stats().Unsupported; got != 1 {
		t.Errorf("Unsupported = %d, want 1", got)
	}
}

func TestEngineTruncatedReplyIsDrained(t *testing.T) {
	adapter := scripted(map[string]string{
		"010C": "41 0C 1F 40 41 0C 1F 40 41 0C 1F 40 41 0C 1F 40",
		"010D": "41 0D 64",
	})
	e := newTestEngine(adapter, WithReplyCapacity(12))
	supportAll(e)

	_, err := e.PID(PIDEngineRPM)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("PID() error = %v, want %v", err, ErrTruncated)
	}
	if len(adapter.pending) != 0 {
		t.Errorf("%d bytes left after truncated reply", len(adapter.pending))
	}

	got, err := e.PID(PIDVehicleSpeed)
	if err != nil || got != 1 {
		t.Errorf("next PID() = %d, %v; want 1, nil", got, err)
	}

	stats := e.Stats()
	if stats.TruncatedReplies != 1 || stats.FramedReplies != 1 {
		t.Errorf("truncated=%d framed=%d, want 1 and 1", stats.TruncatedReplies, stats.FramedReplies)
	}
}

func TestEngineTransportFailure(t *testing.T) {
	boom := errors.New("port gone")

	e := newTestEngine(&fakeAdapter{writeErr: boom})
	supportAll(e)
	if _, err := e.PID(PIDEngineRPM); !errors.Is(err, boom) {
		t.Errorf("write failure error = %v, want %v", err, boom)
	}

	e = newTestEngine(&fakeAdapter{readErr: boom})
	supportAll(e)
	if _, err := e.PID(PIDEngineRPM); !errors.Is(err, boom) {
		t.Errorf("read failure error = %v, want %v", err, boom)
	}
	if got := e.RPM(); got != -1 {
		t.Errorf("RPM() = %d, want -1", got)
	}

	stats := e.Stats()
	if stats.TransportErrors != 2 || stats.Timeouts != 0 {
		t.Errorf("transport=%d timeouts=%d, want 2 and 0", stats.TransportErrors, stats.Timeouts)
	}
}

func TestEngineRefreshSupport(t *testing.T) {
	tests := []struct {
		name    string
		replies map[string]string
		masks   [3]uint32
		queries []string
	}{
		{
			name: "all three blocks",
			replies: map[string]string{
				"0100": "41 00 BE 1F A8 13",
				"0120": "41 20 80 00 00 01",
				"0140": "41 40 40 00 00 00",
			},
			masks:   [3]uint32{0xBE1FA813, 0x80000001, 0x40000000},
			queries: []string{"0100\r", "0120\r", "0140\r"},
		},
		{
			name: "0x20 not supported",
			replies: map[string]string{
				"0100": "41 00 BE 1F A8 12",
			},
			masks:   [3]uint32{0xBE1FA812, 0, 0},
			queries: []string{"0100\r"},
		},
		{
			name: "0x40 not supported",
			replies: map[string]string{
				"0100": "41 00 00 00 00 01",
				"0120": "41 20 80 00 00 00",
			},
			masks:   [3]uint32{0x00000001, 0x80000000, 0},
			queries: []string{"0100\r", "0120\r"},
		},
		{
			name: "0x20 query fails",
			replies: map[string]string{
				"0100": "41 00 00 00 00 01",
				"0120": "NO DATA",
			},
			masks:   [3]uint32{0x00000001, 0, 0},
			queries: []string{"0100\r", "0120\r"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := scripted(tt.replies)
			e := newTestEngine(adapter)

			if err := e.RefreshSupport(); err != nil {
				t.Fatalf("RefreshSupport() error = %v", err)
			}

			s := e.SupportMap()
			for block, want := range tt.masks {
				if got := s.Mask(block); got != want {
					t.Errorf("Mask(%d) = 0x%08X, want 0x%08X", block, got, want)
				}
			}
			if !reflect.DeepEqual(adapter.writes, tt.queries) {
				t.Errorf("queries = %q, want %q", adapter.writes, tt.queries)
			}
		})
	}
}

func TestEngineRefreshSupportRetry(t *testing.T) {
	tests := []struct {
		name     string
		seq      []string
		attempts int
		wantErr  bool
	}{
		{"first attempt", []string{"41 00 80 00 00 00"}, 1, false},
		{"zero then bitmap", []string{"41 00 00 00 00 00", "41 00 80 00 00 00"}, 2, false},
		{"garbage twice", []string{"SEARCHING...", "BUS INIT", "41 00 80 00 00 00"}, 3, false},
		{"never answers", []string{"NO DATA"}, 3, true},
		{"always zero", []string{"41 00 00 00 00 00"}, 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := sequenced("0100", tt.seq, nil)
			e := newTestEngine(adapter)

			err := e.RefreshSupport()
			if (err != nil) != tt.wantErr {
				t.Fatalf("RefreshSupport() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := adapter.count("0100"); got != tt.attempts {
				t.Errorf("0100 sent %d times, want %d", got, tt.attempts)
			}
			support := e.SupportMap()
			if tt.wantErr && support.Mask(0) != 0 {
				t.Errorf("Mask(0) = 0x%08X after failure, want 0", support.Mask(0))
			}
		})
	}
}

func TestEngineIsPIDSupportedIdempotent(t *testing.T) {
	adapter := scripted(map[string]string{"0100": "41 00 BE 1F A8 13"})
	e := newTestEngine(adapter)
	if err := e.RefreshSupport(); err != nil {
		t.Fatalf("RefreshSupport() error = %v", err)
	}
	writes := len(adapter.writes)

	for i := 0; i < 3; i++ {
		for pid := PID(0); pid <= lastSupported; pid++ {
			first := e.IsPIDSupported(pid)
			if e.IsPIDSupported(pid) != first {
				t.Fatalf("IsPIDSupported(0x%02X) changed between calls", uint8(pid))
			}
		}
	}
	if len(adapter.writes) != writes {
		t.Errorf("IsPIDSupported wrote %d requests", len(adapter.writes)-writes)
	}
}

func TestEngineRefresh(t *testing.T) {
	tests := []struct {
		name      string
		seq       []string
		ignition  bool
		engine    bool
		rpmWrites int
		lastRPM   int
	}{
		{"engine running", []string{"41 0C 0B B8"}, true, true, 2, 750},
		{"ignition on engine off", []string{"41 0C 00 00"}, true, false, 2, 0},
		{"ignition off", []string{"NO DATA"}, false, false, 1, -1},
		{"stale reply", []string{"41 0D 00"}, false, false, 1, -1},
		{"second read fails", []string{"41 0C 0B B8", "CAN ERROR"}, true, false, 2, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := sequenced("010C", tt.seq, nil)
			e := newTestEngine(adapter)
			supportAll(e)

			ignition, engine := e.Refresh()
			if ignition != tt.ignition || engine != tt.engine {
				t.Errorf("Refresh() = (%v, %v), want (%v, %v)", ignition, engine, tt.ignition, tt.engine)
			}
			if e.IgnitionOn() != tt.ignition || e.EngineOn() != tt.engine {
				t.Errorf("flags = (%v, %v), want (%v, %v)", e.IgnitionOn(), e.EngineOn(), tt.ignition, tt.engine)
			}
			if got := adapter.count("010C"); got != tt.rpmWrites {
				t.Errorf("RPM requests = %d, want %d", got, tt.rpmWrites)
			}
			if got := e.LastRPM(); got != tt.lastRPM {
				t.Errorf("LastRPM() = %d, want %d", got, tt.lastRPM)
			}
			if got := adapter.count("010C"); got != tt.rpmWrites {
				t.Errorf("LastRPM wrote a request")
			}
		})
	}
}

func TestEngineRefreshRPMUnsupported(t *testing.T) {
	adapter := scripted(map[string]string{"010C": "41 0C 0B B8"})
	e := newTestEngine(adapter)

	ignition, engine := e.Refresh()
	if !ignition || engine {
		t.Errorf("Refresh() = (%v, %v), want (true, false)", ignition, engine)
	}
	if got := adapter.count("010C"); got != 1 {
		t.Errorf("RPM requests = %d, want 1", got)
	}
	if got := e.LastRPM(); got != -1 {
		t.Errorf("LastRPM() = %d, want -1", got)
	}
}

func TestEngineSpeedAndRPM(t *testing.T) {
	adapter := scripted(map[string]string{
		"010C": "41 0C 1F 40",
		"010D": "41 0D C8",
	})
	e := newTestEngine(adapter)
	supportAll(e)

	if got := e.RPM(); got != 2000 {
		t.Errorf("RPM() = %d, want 2000", got)
	}
	if got := e.Speed(); got != 2 {
		t.Errorf("Speed() = %d, want 2", got)
	}

	e = newTestEngine(scripted(nil))
	supportAll(e)
	if e.RPM() != -1 || e.Speed() != -1 {
		t.Errorf("silent adapter RPM/Speed = %d/%d, want -1/-1", e.RPM(), e.Speed())
	}
}

func TestEngineReadTroubleCodes(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		want     []TroubleCode
		wantErr  error
		hasCodes bool
	}{
		{"codes", "43 03 01 00 00 01 71", []TroubleCode{"P0301", "P0171"}, nil, true},
		{"full five codes", "43 01 01 01 02 01 03 01 04 01 05", []TroubleCode{"P0101", "P0102", "P0103", "P0104", "P0105"}, nil, true},
		{"six codes capped", "43 01 01 01 02 01 03 01 04 01 05 01 06", []TroubleCode{"P0101", "P0102", "P0103", "P0104", "P0105"}, nil, true},
		{"no data", "NO DATA", nil, nil, false},
		{"only padding", "43 00 00 00 00 00 00", nil, nil, false},
		{"malformed", "7F 03 11", nil, ErrMalformedReply, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := scripted(map[string]string{"03": tt.reply})
			e := newTestEngine(adapter)
			e.codes = []TroubleCode{"P0420"}
			e.hasCodes = true

			got, err := e.ReadTroubleCodes()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ReadTroubleCodes() error = %v, want %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ReadTroubleCodes() = %v, want %v", got, tt.want)
			}
			if !reflect.DeepEqual(e.TroubleCodes(), tt.want) {
				t.Errorf("TroubleCodes() = %v, want %v", e.TroubleCodes(), tt.want)
			}
			if e.HasTroubleCodes() != tt.hasCodes {
				t.Errorf("HasTroubleCodes() = %v, want %v", e.HasTroubleCodes(), tt.hasCodes)
			}
			if adapter.writes[0] != "03\r" {
				t.Errorf("request = %q, want %q", adapter.writes[0], "03\r")
			}
			if len(adapter.pending) != 0 {
				t.Errorf("%d bytes left after the reply", len(adapter.pending))
			}
		})
	}
}

func TestEngineClearTroubleCodes(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		want     bool
		hasCodes bool
	}{
		{"acknowledged", "44", true, false},
		{"rejected", "7F 04 31", false, true},
		{"unspaced rejection", "7F0431", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := scripted(map[string]string{"04": tt.reply})
			e := newTestEngine(adapter)
			e.codes = []TroubleCode{"P0420"}
			e.hasCodes = true

			ok, err := e.ClearTroubleCodes()
			if err != nil {
				t.Fatalf("ClearTroubleCodes() error = %v", err)
			}
			if ok != tt.want {
				t.Errorf("ClearTroubleCodes() = %v, want %v", ok, tt.want)
			}
			if e.HasTroubleCodes() != tt.hasCodes {
				t.Errorf("HasTroubleCodes() = %v, want %v", e.HasTroubleCodes(), tt.hasCodes)
			}
			if tt.want && e.TroubleCodes() != nil {
				t.Errorf("TroubleCodes() = %v after clear", e.TroubleCodes())
			}
			if adapter.count("03") != 0 {
				t.Error("clear must not trigger a read")
			}
		})
	}
}

func TestEngineClearTroubleCodesTimeout(t *testing.T) {
	e := newTestEngine(scripted(nil))

	ok, err := e.ClearTroubleCodes()
	if ok || !errors.Is(err, ErrTimeout) {
		t.Errorf("ClearTroubleCodes() = %v, %v; want false, %v", ok, err, ErrTimeout)
	}
}

func TestEngineTroubleCodesCopy(t *testing.T) {
	e := newTestEngine(scripted(map[string]string{"03": "43 01 33"}))
	if _, err := e.ReadTroubleCodes(); err != nil {
		t.Fatalf("ReadTroubleCodes() error = %v", err)
	}

	codes := e.TroubleCodes()
	codes[0] = "P9999"
	if e.TroubleCodes()[0] != "P0133" {
		t.Error("TroubleCodes() exposes the engine's slice")
	}
}

func TestEngineLogger(t *testing.T) {
	var buf bytes.Buffer
	e := newTestEngine(scripted(map[string]string{"010C": "41 0C 1F 40"}), WithLogger(log.New(&buf, "", 0)))
	supportAll(e)

	if _, err := e.PID(PIDEngineRPM); err != nil {
		t.Fatalf("PID() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `TX "010C\r"`) || !strings.Contains(out, `RX FRAMED "41 0C 1F 40"`) {
		t.Errorf("log output = %q", out)
	}
}

func TestEngineConcurrentUse(t *testing.T) {
	adapter := scripted(map[string]string{
		"010C": "41 0C 1F 40",
		"010D": "41 0D 64",
	})
	e := newTestEngine(adapter)
	supportAll(e)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				if got := e.RPM(); got != 2000 {
					t.Errorf("RPM() = %d, want 2000", got)
				}
				return
			}
			if got := e.Speed(); got != 1 {
				t.Errorf("Speed() = %d, want 1", got)
			}
		}(i)
	}
	wg.Wait()

	if got := e.Stats().TotalRequests; got != 8 {
		t.Errorf("TotalRequests = %d, want 8", got)
	}
}
