// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package obd2 implements the OBD2 mode 01/03/04 request-response protocol
// spoken through an AT-command diagnostic adapter (ELM327, STN1110 and
// compatibles).
//
// The Engine encodes PID and trouble-code requests as ASCII command lines,
// frames the adapter's reply up to its '>' prompt, checks that the reply
// echoes the request and decodes the payload into an engineering value or a
// list of trouble codes. The engine keeps the vehicle's PID support bitmaps,
// the last trouble-code list and the ignition/engine flags as fields of a
// single instance.
package obd2

import "time"

// Framing bytes
const (
	CR     = '\r'
	Prompt = '>'

	// Bytes below this value are framing/control characters and are dropped
	printableMin = ' '
)

// Reply buffer sizes
const (
	// ReplyCapacity is the number of printable bytes kept for a PID reply
	ReplyCapacity = 40

	// MaxTroubleCodes is the number of trouble codes kept per read
	MaxTroubleCodes = 5

	// TroubleCodeReplyCapacity is the number of printable bytes kept for a mode 03/04 reply
	TroubleCodeReplyCapacity = MaxTroubleCodes*6 + 2

	// maxPayloadBytes bounds the payload extracted from a single reply
	maxPayloadBytes = 10
)

// Default timing
const (
	DefaultReadTimeout   = 2 * time.Second
	DefaultConnectDelay  = 1 * time.Second
	supportQueryAttempts = 3
)

// Mode is the top-level OBD2 service selector
type Mode string

// Supported modes
const (
	ModeCurrentData      Mode = "01"
	ModeReadTroubleCodes Mode = "03"
	ModeClearTroubleCode Mode = "04"
)

// Positive replies to mode 03 and mode 04
const (
	readCodesResponse  = "43"
	clearCodesResponse = "44"
	noDataResponse     = "NODATA"
)

// Adapter commands used by the handshake
const (
	cmdWarmStart        = "ATWS"
	cmdEchoOff          = "ATE0"
	cmdDescribeProtocol = "ATDPN"
)

// PID is a mode 01 parameter identifier
type PID uint8

// Mode 01 PIDs
const (
	PIDSupport00          PID = 0x00
	PIDMonitorStatus      PID = 0x01
	PIDFreezeDTC          PID = 0x02
	PIDFuelStatus         PID = 0x03
	PIDLoadValue          PID = 0x04
	PIDCoolantTemp        PID = 0x05
	PIDShortTrimBank1     PID = 0x06
	PIDLongTrimBank1      PID = 0x07
	PIDShortTrimBank2     PID = 0x08
	PIDLongTrimBank2      PID = 0x09
	PIDFuelPressure       PID = 0x0A
	PIDManifoldPressure   PID = 0x0B
	PIDEngineRPM          PID = 0x0C
	PIDVehicleSpeed       PID = 0x0D
	PIDTimingAdvance      PID = 0x0E
	PIDIntakeAirTemp      PID = 0x0F
	PIDMAFAirFlow         PID = 0x10
	PIDThrottlePosition   PID = 0x11
	PIDSecondaryAirStatus PID = 0x12
	PIDOxygenSensors1     PID = 0x13
	PIDB1S1O2Voltage      PID = 0x14
	PIDB1S2O2Voltage      PID = 0x15
	PIDB1S3O2Voltage      PID = 0x16
	PIDB1S4O2Voltage      PID = 0x17
	PIDB2S1O2Voltage      PID = 0x18
	PIDB2S2O2Voltage      PID = 0x19
	PIDB2S3O2Voltage      PID = 0x1A
	PIDB2S4O2Voltage      PID = 0x1B
	PIDOBDStandard        PID = 0x1C
	PIDOxygenSensors2     PID = 0x1D
	PIDAuxInput           PID = 0x1E
	PIDRuntimeSinceStart  PID = 0x1F
	PIDSupport20          PID = 0x20
	PIDDistanceMILOn      PID = 0x21
	PIDFuelRailPressure   PID = 0x22
	PIDFuelRailDiesel     PID = 0x23
	PIDO2S1WideVoltage    PID = 0x24
	PIDO2S2WideVoltage    PID = 0x25
	PIDO2S3WideVoltage    PID = 0x26
	PIDO2S4WideVoltage    PID = 0x27
	PIDO2S5WideVoltage    PID = 0x28
	PIDO2S6WideVoltage    PID = 0x29
	PIDO2S7WideVoltage    PID = 0x2A
	PIDO2S8WideVoltage    PID = 0x2B
	PIDCommandedEGR       PID = 0x2C
	PIDEGRError           PID = 0x2D
	PIDEvapPurge          PID = 0x2E
	PIDFuelLevel          PID = 0x2F
	PIDWarmUps            PID = 0x30
	PIDDistanceCleared    PID = 0x31
	PIDEvapPressure       PID = 0x32
	PIDBaroPressure       PID = 0x33
	PIDO2S1WideCurrent    PID = 0x34
	PIDO2S2WideCurrent    PID = 0x35
	PIDO2S3WideCurrent    PID = 0x36
	PIDO2S4WideCurrent    PID = 0x37
	PIDO2S5WideCurrent    PID = 0x38
	PIDO2S6WideCurrent    PID = 0x39
	PIDO2S7WideCurrent    PID = 0x3A
	PIDO2S8WideCurrent    PID = 0x3B
	PIDCatTempB1S1        PID = 0x3C
	PIDCatTempB2S1        PID = 0x3D
	PIDCatTempB1S2        PID = 0x3E
	PIDCatTempB2S2        PID = 0x3F
	PIDSupport40          PID = 0x40
	PIDMonitorStatusCycle PID = 0x41
	PIDModuleVoltage      PID = 0x42
	PIDAbsoluteLoad       PID = 0x43
	PIDCommandedEquivR    PID = 0x44
	PIDRelativeThrottle   PID = 0x45
	PIDAmbientTemp        PID = 0x46
	PIDAbsThrottleB       PID = 0x47
	PIDAbsThrottleC       PID = 0x48
	PIDAccelPedalD        PID = 0x49
	PIDAccelPedalE        PID = 0x4A
	PIDAccelPedalF        PID = 0x4B
	PIDCommandedThrottle  PID = 0x4C
	PIDTimeMILOn          PID = 0x4D
	PIDTimeSinceCleared   PID = 0x4E
	PIDMaxValues          PID = 0x4F
	PIDMaxAirFlow         PID = 0x50
	PIDFuelType           PID = 0x51
	PIDEthanolFuel        PID = 0x52

	LastPID = PIDEthanolFuel
)

// Support bitmap blocks
const (
	supportBlocks = 3
	supportSpan   = 0x20
	lastSupported = PID(supportBlocks * supportSpan)
)
