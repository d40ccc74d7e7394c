// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package obd2

import (
	"fmt"
	"strings"
)

// PIDName returns the human-readable name of a PID
func PIDName(pid PID) string {
	info, ok := LookupPID(pid)
	if !ok || info.Name == "" {
		return fmt.Sprintf("PID_0x%02X", uint8(pid))
	}
	return info.Name
}

// PIDUnit returns the unit of a decoded PID value, empty when there is none
func PIDUnit(pid PID) string {
	info, _ := LookupPID(pid)
	return info.Unit
}

// FormatValue renders a decoded value with its unit. Bitmap PIDs print as
// fixed-width hex.
func FormatValue(pid PID, value int64) string {
	unit := PIDUnit(pid)
	switch unit {
	case "":
		return fmt.Sprintf("%d", value)
	case "bitmap":
		width := ReplyLength(pid) * 2
		return fmt.Sprintf("0x%0*X", width, value)
	case "%":
		return fmt.Sprintf("%d%%", value)
	default:
		return fmt.Sprintf("%d %s", value, unit)
	}
}

// FormatPIDLine formats one PID reading as "0x0C Engine RPM: 2000 rpm"
func FormatPIDLine(pid PID, value int64) string {
	return fmt.Sprintf("0x%02X %s: %s", uint8(pid), PIDName(pid), FormatValue(pid, value))
}

// Category returns the system a trouble code belongs to
func (c TroubleCode) Category() string {
	if c == "" {
		return "Unknown"
	}
	switch c[0] {
	case 'P':
		return "Powertrain"
	case 'C':
		return "Chassis"
	case 'B':
		return "Body"
	case 'U':
		return "Network"
	default:
		return "Unknown"
	}
}

// Generic reports whether the code is SAE-defined rather than manufacturer specific
func (c TroubleCode) Generic() bool {
	if len(c) < 2 {
		return false
	}
	return c[1] == '0' || (c[0] == 'P' && c[1] == '2')
}

// troubleCodeDescriptions covers common generic codes
var troubleCodeDescriptions = map[TroubleCode]string{
	// Powertrain
	"P0100": "Mass or Volume Air Flow Circuit Malfunction",
	"P0101": "Mass Air Flow Circuit Range/Performance",
	"P0102": "Mass Air Flow Circuit Low Input",
	"P0103": "Mass Air Flow Circuit High Input",
	"P0105": "Manifold Absolute Pressure/Barometric Pressure Circuit Malfunction",
	"P0110": "Intake Air Temperature Circuit Malfunction",
	"P0112": "Intake Air Temperature Sensor 1 Circuit Low Input",
	"P0113": "Intake Air Temperature Sensor 1 Circuit High Input",
	"P0115": "Engine Coolant Temperature Circuit Malfunction",
	"P0120": "Throttle Pedal Position Sensor/Switch A Circuit Malfunction",
	"P0171": "System Too Lean (Bank 1)",
	"P0172": "System Too Rich (Bank 1)",
	"P0174": "System Too Lean (Bank 2)",
	"P0175": "System Too Rich (Bank 2)",
	"P0201": "Injector Circuit Malfunction - Cylinder 1",
	"P0202": "Injector Circuit Malfunction - Cylinder 2",
	"P0300": "Random/Multiple Cylinder Misfire Detected",
	"P0301": "Cylinder 1 Misfire Detected",
	"P0302": "Cylinder 2 Misfire Detected",
	"P0303": "Cylinder 3 Misfire Detected",
	"P0304": "Cylinder 4 Misfire Detected",
	"P0401": "Exhaust Gas Recirculation Flow Insufficient",
	"P0402": "Exhaust Gas Recirculation Flow Excessive",
	"P0420": "Catalyst System Efficiency Below Threshold (Bank 1)",
	"P0440": "Evaporative Emission Control System Malfunction",
	"P0441": "Evaporative Emission Control System Incorrect Purge Flow",
	"P0442": "Evaporative Emission Control System Leak Detected (Small)",
	"P0455": "Evaporative Emission Control System Leak Detected (Large)",
	"P0500": "Vehicle Speed Sensor Malfunction",
	"P0505": "Idle Control System Malfunction",
	"P0506": "Idle Control System RPM Lower Than Expected",
	"P0507": "Idle Control System RPM Higher Than Expected",
	"P0708": "Transmission Range Sensor Circuit High Input",

	// Body
	"B1000": "Body Control Module Malfunction",
	"B1600": "Ignition Switch Malfunction",

	// Network
	"U0001": "High Speed CAN Communication Bus",
	"U0100": "Lost Communication With ECM/PCM",
	"U0101": "Lost Communication With TCM",
	"U0121": "Lost Communication With ABS Module",
	"U0140": "Lost Communication With Body Control Module",
	"U0155": "Lost Communication With Instrument Cluster",
}

// Description returns a short description of the code, or a generic label
// naming its category when the code is not in the table
func (c TroubleCode) Description() string {
	if desc, ok := troubleCodeDescriptions[c]; ok {
		return desc
	}
	if c.Generic() {
		return c.Category() + " (generic)"
	}
	return c.Category() + " (manufacturer specific)"
}

// String returns the code itself
func (c TroubleCode) String() string {
	return string(c)
}

// FormatTroubleCodes formats a code list, one "CODE - description" per line
func FormatTroubleCodes(codes []TroubleCode) string {
	if len(codes) == 0 {
		return "No trouble codes"
	}
	var sb strings.Builder
	for i, c := range codes {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s - %s", c, c.Description())
	}
	return sb.String()
}
