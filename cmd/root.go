// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"time"

	"github.com/Thermoquad/obdstat/pkg/obd2"
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// TCP connection flags
	tcpAddr string

	// Protocol flags
	readTimeout time.Duration
	skipInit    bool
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "obdstat",
	Short: "OBD2 Adapter Diagnostic Tool",
	Long: `obdstat - A CLI tool for reading live data and trouble codes through an
ELM327/STN1110 OBD2 adapter.

Reads mode 01 PIDs, reads and clears stored trouble codes (modes 03 and 04),
shows a live dashboard and publishes vehicle data to an MQTT broker.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 9600]
  WebSocket: --url ws://host/path [--username user]
  TCP:       --tcp 192.168.0.10:35000

For WebSocket authentication, the password is read from the OBDSTAT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:      "1.0.0",
	SilenceUsage: true,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 9600, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// TCP connection flags
	rootCmd.PersistentFlags().StringVar(&tcpAddr, "tcp", "", "WiFi adapter address (host:port)")

	// Protocol flags
	rootCmd.PersistentFlags().DurationVar(&readTimeout, "timeout", obd2.DefaultReadTimeout, "Adapter reply timeout")
	rootCmd.PersistentFlags().BoolVar(&skipInit, "skip-init", false, "Skip the adapter reset handshake, only query supported PIDs")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every adapter request and reply")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
