// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package obd2

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
)

// drainCapacity bounds each read while discarding the rest of a truncated reply
const drainCapacity = 256

// Engine owns one adapter connection and the vehicle state learned through it.
// Public methods are safe for concurrent use; requests are serialised so only
// one is outstanding on the transport at a time.
type Engine struct {
	mu sync.Mutex

	transport Transport
	logger    *log.Logger

	readTimeout   time.Duration
	replyCapacity int
	codeCapacity  int
	connectDelay  time.Duration
	supportDelay  time.Duration

	support  SupportMap
	codes    []TroubleCode
	hasCodes bool
	ignition bool
	engineOn bool
	lastRPM  int
	protocol string

	stats *Statistics
}

// Option configures an Engine
type Option func(*Engine)

// WithReadTimeout sets how long the adapter may stay silent mid-reply.
// Zero or negative waits forever.
func WithReadTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.readTimeout = d
	}
}

// WithLogger sets the logger for protocol traces
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithReplyCapacity sets the printable byte budget for PID replies
func WithReplyCapacity(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.replyCapacity = n
		}
	}
}

// WithConnectDelay sets the pause between connection probes in Connect
func WithConnectDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.connectDelay = d
	}
}

// WithSupportRetryDelay sets the pause between PID 0x00 support queries
func WithSupportRetryDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.supportDelay = d
	}
}

// NewEngine creates an engine on top of t. Support bitmaps start empty, so
// only PID 0x00 is considered supported until RefreshSupport runs.
func NewEngine(t Transport, opts ...Option) *Engine {
	e := &Engine{
		transport:     t,
		readTimeout:   DefaultReadTimeout,
		replyCapacity: ReplyCapacity,
		codeCapacity:  TroubleCodeReplyCapacity,
		connectDelay:  DefaultConnectDelay,
		lastRPM:       -1,
		stats:         NewStatistics(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) logf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}

// transact sends cmd and returns the framed reply. A truncated reply is
// drained up to the prompt so the next request starts on a clean line.
func (e *Engine) transact(cmd string, capacity int) (Reply, error) {
	e.logf("TX %q", cmd)

	if _, err := e.transport.Write([]byte(cmd)); err != nil {
		e.stats.recordReply(Reply{}, err)
		return Reply{}, fmt.Errorf("adapter write failed: %w", err)
	}

	reply, err := ReadReply(e.transport, capacity, e.readTimeout)
	e.stats.recordReply(reply, err)
	if err != nil {
		return reply, err
	}

	e.logf("RX %s %q", reply.Status, reply.Text)

	if reply.Status == ReplyTruncated {
		e.drain()
	}
	return reply, reply.Err()
}

// drain discards input until the next prompt or until the adapter goes quiet
func (e *Engine) drain() {
	for {
		r, err := ReadReply(e.transport, drainCapacity, e.readTimeout)
		if err != nil || r.Status != ReplyTruncated {
			return
		}
	}
}

// Protocol returns the adapter's answer to ATDPN, empty before Connect
func (e *Engine) Protocol() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.protocol
}

// IsPIDSupported reports whether pid is marked supported. No I/O.
func (e *Engine) IsPIDSupported(pid PID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.support.IsSupported(pid)
}

// SupportMap returns a copy of the cached support bitmaps
func (e *Engine) SupportMap() SupportMap {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.support
}

// PID reads and decodes a mode 01 PID. Unsupported PIDs fail with
// ErrUnsupportedPID without touching the transport.
func (e *Engine) PID(pid PID) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.readPID(pid)
}

func (e *Engine) readPID(pid PID) (int64, error) {
	if !e.support.IsSupported(pid) {
		e.stats.recordError(ErrUnsupportedPID)
		return 0, fmt.Errorf("PID 0x%02X: %w", uint8(pid), ErrUnsupportedPID)
	}
	if _, ok := LookupPID(pid); !ok {
		return 0, fmt.Errorf("PID 0x%02X: %w", uint8(pid), ErrUnknownPID)
	}

	cmd := PIDRequest(pid)
	reply, err := e.transact(cmd, e.replyCapacity)
	if err != nil {
		return 0, fmt.Errorf("PID 0x%02X: %w", uint8(pid), err)
	}

	if err := ValidateResponse(cmd, reply.Text); err != nil {
		e.stats.recordError(err)
		return 0, fmt.Errorf("PID 0x%02X: %w", uint8(pid), err)
	}

	return DecodeValue(pid, ExtractPayload(reply.Text))
}

// RefreshSupport queries the support bitmaps. PID 0x00 is retried while it
// fails or answers zero; 0x20 and 0x40 are queried only when the previous
// bitmap marks them supported.
func (e *Engine) RefreshSupport() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.refreshSupport()
}

func (e *Engine) refreshSupport() error {
	e.support.Reset()

	var mask int64
	err := retry.Do(
		func() error {
			v, err := e.readPID(PIDSupport00)
			if err != nil {
				return err
			}
			if v == 0 {
				return errEmptySupport
			}
			mask = v
			return nil
		},
		retry.Attempts(supportQueryAttempts),
		retry.DelayType(retry.FixedDelay),
		retry.Delay(e.supportDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			e.logf("support query attempt %d failed: %v", n+1, err)
		}),
	)
	if err != nil {
		return fmt.Errorf("support query failed: %w", err)
	}
	e.support.SetMask(0, uint32(mask))

	for block := 1; block < supportBlocks; block++ {
		pid := supportPIDs[block]
		if !e.support.IsSupported(pid) {
			break
		}
		v, err := e.readPID(pid)
		if err != nil {
			e.logf("support query 0x%02X failed: %v", uint8(pid), err)
			break
		}
		e.support.SetMask(block, uint32(v))
	}

	return nil
}

// VerifyAdapterAlive sends an RPM request and reports whether the reply
// echoes it. The decoded value is ignored.
func (e *Engine) VerifyAdapterAlive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.verifyAlive()
}

func (e *Engine) verifyAlive() bool {
	cmd := PIDRequest(PIDEngineRPM)
	reply, err := e.transact(cmd, e.replyCapacity)
	if err != nil {
		return false
	}
	if err := ValidateResponse(cmd, reply.Text); err != nil {
		e.stats.recordError(err)
		return false
	}
	return true
}

// Refresh recomputes the ignition and engine flags. With the ignition off the
// engine is reported off without a second request.
func (e *Engine) Refresh() (ignition, engine bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastRPM = -1
	e.ignition = e.verifyAlive()
	if !e.ignition {
		e.engineOn = false
		return false, false
	}

	rpm, err := e.readPID(PIDEngineRPM)
	if err == nil {
		e.lastRPM = int(rpm)
	}
	e.engineOn = err == nil && rpm > 0
	return e.ignition, e.engineOn
}

// LastRPM returns the engine speed read by the last Refresh, or -1 when that
// read failed or the ignition was off
func (e *Engine) LastRPM() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastRPM
}

// IgnitionOn returns the flag computed by the last Refresh
func (e *Engine) IgnitionOn() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ignition
}

// EngineOn returns the flag computed by the last Refresh
func (e *Engine) EngineOn() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.engineOn
}

// Speed returns the decoded vehicle speed, or -1 on any failure
func (e *Engine) Speed() int {
	return e.valueOrInvalid(PIDVehicleSpeed)
}

// RPM returns the decoded engine speed, or -1 on any failure
func (e *Engine) RPM() int {
	return e.valueOrInvalid(PIDEngineRPM)
}

func (e *Engine) valueOrInvalid(pid PID) int {
	v, err := e.PID(pid)
	if err != nil {
		return -1
	}
	return int(v)
}

// ReadTroubleCodes sends a mode 03 request and replaces the cached code list
func (e *Engine) ReadTroubleCodes() ([]TroubleCode, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.codes = nil
	e.hasCodes = false
	e.stats.TroubleReads++

	// A reply listing more codes than fit is cut short and parsed as is.
	reply, err := e.transact(ModeRequest(ModeReadTroubleCodes), e.codeCapacity)
	if err != nil && !errors.Is(err, ErrTruncated) {
		return nil, fmt.Errorf("read trouble codes: %w", err)
	}

	codes, err := ParseTroubleCodes(reply.Text)
	if err != nil {
		return nil, err
	}

	e.codes = codes
	e.hasCodes = len(codes) > 0
	return e.troubleCodes(), nil
}

// ClearTroubleCodes sends a mode 04 request. It returns true when the
// vehicle acknowledges; the cached list is emptied but not re-read.
func (e *Engine) ClearTroubleCodes() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.TroubleClears++

	reply, err := e.transact(ModeRequest(ModeClearTroubleCode), e.codeCapacity)
	if err != nil {
		return false, fmt.Errorf("clear trouble codes: %w", err)
	}

	if !IsClearAcknowledged(reply.Text) {
		e.logf("clear not acknowledged: %q", reply.Text)
		return false, nil
	}

	e.codes = nil
	e.hasCodes = false
	return true, nil
}

// TroubleCodes returns the codes from the last successful read
func (e *Engine) TroubleCodes() []TroubleCode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.troubleCodes()
}

func (e *Engine) troubleCodes() []TroubleCode {
	if len(e.codes) == 0 {
		return nil
	}
	out := make([]TroubleCode, len(e.codes))
	copy(out, e.codes)
	return out
}

// HasTroubleCodes reports whether the last read returned any code
func (e *Engine) HasTroubleCodes() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasCodes
}

// Stats returns a snapshot of the request counters with rates recalculated
func (e *Engine) Stats() Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.CalculateRates()
	return *e.stats
}
