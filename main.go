// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// obdstat - OBD2 Adapter Diagnostic Tool
//
// A CLI tool for reading live PIDs and trouble codes from an AT-command
// OBD2 adapter (ELM327/STN1110 family) over serial, WebSocket or TCP.

package main

import (
	"os"

	"github.com/Thermoquad/obdstat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
