// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package obd2

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/avast/retry-go/v4"
)

// protocolNames maps the ATDPN protocol number to its description
var protocolNames = map[string]string{
	"0": "Automatic",
	"1": "SAE J1850 PWM (41.6 kbaud)",
	"2": "SAE J1850 VPW (10.4 kbaud)",
	"3": "ISO 9141-2 (5 baud init, 10.4 kbaud)",
	"4": "ISO 14230-4 KWP (5 baud init, 10.4 kbaud)",
	"5": "ISO 14230-4 KWP (fast init, 10.4 kbaud)",
	"6": "ISO 15765-4 CAN (11 bit ID, 500 kbaud)",
	"7": "ISO 15765-4 CAN (29 bit ID, 500 kbaud)",
	"8": "ISO 15765-4 CAN (11 bit ID, 250 kbaud)",
	"9": "ISO 15765-4 CAN (29 bit ID, 250 kbaud)",
	"A": "SAE J1939 CAN (29 bit ID, 250 kbaud)",
	"B": "USER1 CAN (11 bit ID, 125 kbaud)",
	"C": "USER2 CAN (11 bit ID, 50 kbaud)",
}

// ProtocolName describes an ATDPN reply such as "6" or "A6". A leading "A"
// on a two character reply marks a protocol found by automatic search.
func ProtocolName(code string) string {
	code = strings.ToUpper(StripReply(code))

	auto := false
	if len(code) == 2 && code[0] == 'A' {
		auto = true
		code = code[1:]
	}

	name, ok := protocolNames[code]
	if !ok {
		return fmt.Sprintf("Unknown protocol (%q)", code)
	}
	if auto {
		return name + ", auto"
	}
	return name
}

// Connect brings the adapter up: warm start, echo off, then "0100" probes
// until the vehicle answers, then the protocol query and support bitmaps.
// Probing continues until ctx is done.
func (e *Engine) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, cmd := range []string{cmdWarmStart, cmdEchoOff} {
		if err := e.adapterCommand(cmd); err != nil {
			return err
		}
	}

	probe := PIDRequest(PIDSupport00)
	err := retry.Do(
		func() error {
			reply, err := e.transact(probe, e.replyCapacity)
			if err != nil {
				return err
			}
			return ValidateResponse(probe, reply.Text)
		},
		retry.Context(ctx),
		retry.UntilSucceeded(),
		retry.DelayType(retry.FixedDelay),
		retry.Delay(e.connectDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			e.logf("waiting for vehicle (attempt %d): %v", n+1, err)
		}),
	)
	if err != nil {
		return fmt.Errorf("vehicle did not answer: %w", err)
	}

	reply, err := e.transact(atCommand(cmdDescribeProtocol), e.replyCapacity)
	if err != nil {
		return fmt.Errorf("%s failed: %w", cmdDescribeProtocol, err)
	}
	e.protocol = StripReply(reply.Text)
	e.logf("protocol %s (%s)", e.protocol, ProtocolName(e.protocol))

	return e.refreshSupport()
}

// adapterCommand sends an AT command. Only transport failures are errors;
// the adapter's text reply is logged.
func (e *Engine) adapterCommand(cmd string) error {
	_, err := e.transact(atCommand(cmd), e.replyCapacity)
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrTruncated):
		e.logf("%s: %v", cmd, err)
	case err != nil:
		return fmt.Errorf("%s failed: %w", cmd, err)
	}
	return nil
}
