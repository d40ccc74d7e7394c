// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package obd2

import (
	"io"
	"strings"
	"time"
)

// fakeAdapter answers each written command through respond. Replies are
// queued and handed out by Read; an empty queue reads as io.EOF.
type fakeAdapter struct {
	respond  func(cmd string) string
	writes   []string
	pending  []byte
	readErr  error
	writeErr error
}

func (f *fakeAdapter) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	cmd := string(p)
	f.writes = append(f.writes, cmd)
	if f.respond != nil {
		f.pending = append(f.pending, f.respond(cmd)...)
	}
	return len(p), nil
}

func (f *fakeAdapter) Read(p []byte) (int, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	if len(f.pending) == 0 {
		return 0, io.EOF
	}
	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

// count returns how many times cmd (without CR) was written
func (f *fakeAdapter) count(cmd string) int {
	n := 0
	for _, w := range f.writes {
		if strings.TrimSuffix(w, "\r") == cmd {
			n++
		}
	}
	return n
}

// framed wraps text the way the adapter sends it
func framed(text string) string {
	return text + "\r\r>"
}

// scripted answers commands from a fixed table. Commands not in the table
// get no reply at all.
func scripted(replies map[string]string) *fakeAdapter {
	return &fakeAdapter{
		respond: func(cmd string) string {
			text, ok := replies[strings.TrimSuffix(cmd, "\r")]
			if !ok {
				return ""
			}
			return framed(text)
		},
	}
}

// sequenced answers cmd with successive entries of seq, repeating the last
// one, and falls back to other for every other command.
func sequenced(cmd string, seq []string, other map[string]string) *fakeAdapter {
	i := 0
	return &fakeAdapter{
		respond: func(c string) string {
			c = strings.TrimSuffix(c, "\r")
			if c == cmd {
				text := seq[i]
				if i < len(seq)-1 {
					i++
				}
				return framed(text)
			}
			text, ok := other[c]
			if !ok {
				return ""
			}
			return framed(text)
		},
	}
}

// testTimeout keeps silent-adapter cases fast
const testTimeout = 20 * time.Millisecond

func newTestEngine(t Transport, opts ...Option) *Engine {
	base := []Option{
		WithReadTimeout(testTimeout),
		WithConnectDelay(time.Millisecond),
	}
	return NewEngine(t, append(base, opts...)...)
}

// supportAll marks every PID from 0x01 to 0x5F supported
func supportAll(e *Engine) {
	e.support.SetMask(0, 0xFFFFFFFF)
	e.support.SetMask(1, 0xFFFFFFFF)
	e.support.SetMask(2, 0xFFFFFFFE)
}
