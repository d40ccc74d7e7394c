// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package obd2

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks request outcomes and rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalRequests    uint64
	FramedReplies    uint64
	TruncatedReplies uint64
	Timeouts         uint64
	TransportErrors  uint64
	Mismatches       uint64
	Unsupported      uint64
	TroubleReads     uint64
	TroubleClears    uint64

	// Rates (calculated)
	RequestRate float64 // requests/sec
	ErrorRate   float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// recordReply counts one adapter round trip
func (s *Statistics) recordReply(reply Reply, err error) {
	s.TotalRequests++
	if err != nil || reply.Status == ReplyFailed {
		s.TransportErrors++
		return
	}
	switch reply.Status {
	case ReplyFramed:
		s.FramedReplies++
	case ReplyTruncated:
		s.TruncatedReplies++
	case ReplyTimeout:
		s.Timeouts++
	}
}

// recordError counts failures that happen after framing
func (s *Statistics) recordError(err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		s.Mismatches++
	case errors.Is(err, ErrUnsupportedPID):
		s.Unsupported++
	}
}

// Errors returns the total number of failed requests
func (s *Statistics) Errors() uint64 {
	return s.TruncatedReplies + s.Timeouts + s.TransportErrors + s.Mismatches
}

// CalculateRates updates request and error rates
func (s *Statistics) CalculateRates() {
	now := time.Now()
	elapsed := now.Sub(s.StartTime).Seconds()

	if elapsed > 0 {
		s.RequestRate = float64(s.TotalRequests) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}

	s.LastUpdateTime = now
}

// SuccessRate returns the percentage of requests answered with a framed reply
func (s *Statistics) SuccessRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.FramedReplies) / float64(s.TotalRequests) * 100
}

// Uptime returns the time since statistics started
func (s *Statistics) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// Summary returns a one-line statistics summary
func (s *Statistics) Summary() string {
	return fmt.Sprintf("requests=%d framed=%d truncated=%d timeouts=%d failed=%d mismatches=%d unsupported=%d success=%.1f%%",
		s.TotalRequests, s.FramedReplies, s.TruncatedReplies, s.Timeouts, s.TransportErrors, s.Mismatches, s.Unsupported, s.SuccessRate())
}
