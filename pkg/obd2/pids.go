// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package obd2

// Transform selects the transfer function applied to a PID payload.
// A and B below are the first and second payload bytes.
type Transform int

const (
	// TransformGeneric accumulates Length payload bytes big-endian
	TransformGeneric Transform = iota
	// TransformQuarter is (A*256+B)/4
	TransformQuarter
	// TransformSpeed is A/100
	TransformSpeed
	// TransformPercent is A*100/255
	TransformPercent
	// TransformPercentWord is (A*256+B)*100/255
	TransformPercentWord
	// TransformRaw is A
	TransformRaw
	// TransformTriple is A*3
	TransformTriple
	// TransformTiming is A/2-64
	TransformTiming
	// TransformWord is A*256+B
	TransformWord
)

// PIDInfo holds the static attributes of a PID
type PIDInfo struct {
	Length    int // reply payload bytes
	Transform Transform
	Name      string
	Unit      string
}

// pidTable is indexed by PID. Lengths for 0x00-0x4E follow the adapter
// library's reply-length table; 0x4F-0x52 follow SAE J1979.
var pidTable = [LastPID + 1]PIDInfo{
	PIDSupport00:          {4, TransformGeneric, "PIDs supported [01-20]", "bitmap"},
	PIDMonitorStatus:      {4, TransformGeneric, "Monitor status since DTCs cleared", "bitmap"},
	PIDFreezeDTC:          {2, TransformGeneric, "Freeze DTC", ""},
	PIDFuelStatus:         {2, TransformPercent, "Fuel system status", "%"},
	PIDLoadValue:          {1, TransformPercent, "Calculated engine load", "%"},
	PIDCoolantTemp:        {1, TransformRaw, "Engine coolant temperature", "°C+40"},
	PIDShortTrimBank1:     {1, TransformRaw, "Short term fuel trim bank 1", "raw"},
	PIDLongTrimBank1:      {1, TransformRaw, "Long term fuel trim bank 1", "raw"},
	PIDShortTrimBank2:     {1, TransformRaw, "Short term fuel trim bank 2", "raw"},
	PIDLongTrimBank2:      {1, TransformRaw, "Long term fuel trim bank 2", "raw"},
	PIDFuelPressure:       {1, TransformTriple, "Fuel pressure", "kPa"},
	PIDManifoldPressure:   {1, TransformRaw, "Intake manifold absolute pressure", "kPa"},
	PIDEngineRPM:          {2, TransformQuarter, "Engine RPM", "rpm"},
	PIDVehicleSpeed:       {1, TransformSpeed, "Vehicle speed", "km/h/100"},
	PIDTimingAdvance:      {1, TransformTiming, "Timing advance", "°"},
	PIDIntakeAirTemp:      {1, TransformRaw, "Intake air temperature", "°C+40"},
	PIDMAFAirFlow:         {2, TransformWord, "MAF air flow rate", "g/s*100"},
	PIDThrottlePosition:   {1, TransformPercent, "Throttle position", "%"},
	PIDSecondaryAirStatus: {1, TransformGeneric, "Commanded secondary air status", ""},
	PIDOxygenSensors1:     {1, TransformGeneric, "Oxygen sensors present", "bitmap"},
	PIDB1S1O2Voltage:      {2, TransformRaw, "O2 sensor bank 1 sensor 1 voltage", "V/200"},
	PIDB1S2O2Voltage:      {2, TransformRaw, "O2 sensor bank 1 sensor 2 voltage", "V/200"},
	PIDB1S3O2Voltage:      {2, TransformRaw, "O2 sensor bank 1 sensor 3 voltage", "V/200"},
	PIDB1S4O2Voltage:      {2, TransformRaw, "O2 sensor bank 1 sensor 4 voltage", "V/200"},
	PIDB2S1O2Voltage:      {2, TransformRaw, "O2 sensor bank 2 sensor 1 voltage", "V/200"},
	PIDB2S2O2Voltage:      {2, TransformRaw, "O2 sensor bank 2 sensor 2 voltage", "V/200"},
	PIDB2S3O2Voltage:      {2, TransformRaw, "O2 sensor bank 2 sensor 3 voltage", "V/200"},
	PIDB2S4O2Voltage:      {2, TransformRaw, "O2 sensor bank 2 sensor 4 voltage", "V/200"},
	PIDOBDStandard:        {1, TransformRaw, "OBD standard", ""},
	PIDOxygenSensors2:     {1, TransformGeneric, "Oxygen sensors present (4 banks)", "bitmap"},
	PIDAuxInput:           {1, TransformGeneric, "Auxiliary input status", ""},
	PIDRuntimeSinceStart:  {4, TransformWord, "Run time since engine start", "s"},
	PIDSupport20:          {4, TransformGeneric, "PIDs supported [21-40]", "bitmap"},
	PIDDistanceMILOn:      {2, TransformRaw, "Distance traveled with MIL on", "km"},
	PIDFuelRailPressure:   {2, TransformGeneric, "Fuel rail pressure (manifold relative)", "raw"},
	PIDFuelRailDiesel:     {2, TransformGeneric, "Fuel rail pressure (diesel)", "raw"},
	PIDO2S1WideVoltage:    {4, TransformRaw, "O2 sensor 1 wide range voltage", "raw"},
	PIDO2S2WideVoltage:    {4, TransformRaw, "O2 sensor 2 wide range voltage", "raw"},
	PIDO2S3WideVoltage:    {4, TransformRaw, "O2 sensor 3 wide range voltage", "raw"},
	PIDO2S4WideVoltage:    {4, TransformRaw, "O2 sensor 4 wide range voltage", "raw"},
	PIDO2S5WideVoltage:    {4, TransformRaw, "O2 sensor 5 wide range voltage", "raw"},
	PIDO2S6WideVoltage:    {4, TransformRaw, "O2 sensor 6 wide range voltage", "raw"},
	PIDO2S7WideVoltage:    {4, TransformRaw, "O2 sensor 7 wide range voltage", "raw"},
	PIDO2S8WideVoltage:    {4, TransformRaw, "O2 sensor 8 wide range voltage", "raw"},
	PIDCommandedEGR:       {1, TransformPercent, "Commanded EGR", "%"},
	PIDEGRError:           {1, TransformPercent, "EGR error", "%"},
	PIDEvapPurge:          {1, TransformGeneric, "Commanded evaporative purge", "raw"},
	PIDFuelLevel:          {1, TransformPercent, "Fuel tank level input", "%"},
	PIDWarmUps:            {1, TransformGeneric, "Warm-ups since codes cleared", "count"},
	PIDDistanceCleared:    {2, TransformRaw, "Distance traveled since codes cleared", "km"},
	PIDEvapPressure:       {2, TransformQuarter, "Evap system vapor pressure", "Pa"},
	PIDBaroPressure:       {1, TransformRaw, "Absolute barometric pressure", "kPa"},
	PIDO2S1WideCurrent:    {4, TransformRaw, "O2 sensor 1 wide range current", "raw"},
	PIDO2S2WideCurrent:    {4, TransformRaw, "O2 sensor 2 wide range current", "raw"},
	PIDO2S3WideCurrent:    {4, TransformRaw, "O2 sensor 3 wide range current", "raw"},
	PIDO2S4WideCurrent:    {4, TransformRaw, "O2 sensor 4 wide range current", "raw"},
	PIDO2S5WideCurrent:    {4, TransformRaw, "O2 sensor 5 wide range current", "raw"},
	PIDO2S6WideCurrent:    {4, TransformRaw, "O2 sensor 6 wide range current", "raw"},
	PIDO2S7WideCurrent:    {4, TransformRaw, "O2 sensor 7 wide range current", "raw"},
	PIDO2S8WideCurrent:    {4, TransformRaw, "O2 sensor 8 wide range current", "raw"},
	PIDCatTempB1S1:        {2, TransformRaw, "Catalyst temperature bank 1 sensor 1", "raw"},
	PIDCatTempB2S1:        {2, TransformRaw, "Catalyst temperature bank 2 sensor 1", "raw"},
	PIDCatTempB1S2:        {2, TransformRaw, "Catalyst temperature bank 1 sensor 2", "raw"},
	PIDCatTempB2S2:        {2, TransformRaw, "Catalyst temperature bank 2 sensor 2", "raw"},
	PIDSupport40:          {4, TransformGeneric, "PIDs supported [41-60]", "bitmap"},
	PIDMonitorStatusCycle: {8, TransformGeneric, "Monitor status this drive cycle", "bitmap"},
	PIDModuleVoltage:      {2, TransformWord, "Control module voltage", "mV"},
	PIDAbsoluteLoad:       {2, TransformPercentWord, "Absolute load value", "%"},
	PIDCommandedEquivR:    {2, TransformRaw, "Commanded equivalence ratio", "raw"},
	PIDRelativeThrottle:   {1, TransformPercent, "Relative throttle position", "%"},
	PIDAmbientTemp:        {1, TransformRaw, "Ambient air temperature", "°C+40"},
	PIDAbsThrottleB:       {1, TransformPercent, "Absolute throttle position B", "%"},
	PIDAbsThrottleC:       {1, TransformPercent, "Absolute throttle position C", "%"},
	PIDAccelPedalD:        {1, TransformPercent, "Accelerator pedal position D", "%"},
	PIDAccelPedalE:        {1, TransformPercent, "Accelerator pedal position E", "%"},
	PIDAccelPedalF:        {1, TransformPercent, "Accelerator pedal position F", "%"},
	PIDCommandedThrottle:  {1, TransformPercent, "Commanded throttle actuator", "%"},
	PIDTimeMILOn:          {2, TransformRaw, "Time run with MIL on", "min"},
	PIDTimeSinceCleared:   {2, TransformRaw, "Time since trouble codes cleared", "min"},
	PIDMaxValues:          {4, TransformGeneric, "Maximum equivalence ratio, O2 voltage, O2 current, MAP", "raw"},
	PIDMaxAirFlow:         {4, TransformGeneric, "Maximum MAF air flow rate", "raw"},
	PIDFuelType:           {1, TransformGeneric, "Fuel type", ""},
	PIDEthanolFuel:        {1, TransformGeneric, "Ethanol fuel", "raw"},
}

// LookupPID returns the static attributes of pid
func LookupPID(pid PID) (PIDInfo, bool) {
	if pid > LastPID {
		return PIDInfo{}, false
	}
	return pidTable[pid], true
}

// ReplyLength returns the payload length of pid, or 0 for unknown PIDs
func ReplyLength(pid PID) int {
	info, ok := LookupPID(pid)
	if !ok {
		return 0
	}
	return info.Length
}
