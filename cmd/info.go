// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/Thermoquad/obdstat/pkg/obd2"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the negotiated protocol and supported PIDs",
	Long: `Initialize the adapter, then print the OBD2 protocol it negotiated with the
vehicle and every mode 01 PID the vehicle reports as supported.`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	engine, conn, connInfo, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Connection: %s\n", connInfo)
	if protocol := engine.Protocol(); protocol != "" {
		fmt.Printf("Protocol:   %s (%s)\n", protocol, obd2.ProtocolName(protocol))
	}

	support := engine.SupportMap()
	fmt.Printf("Support:    %08X %08X %08X\n", support.Mask(0), support.Mask(1), support.Mask(2))

	pids := support.Supported()
	fmt.Printf("\nSupported PIDs (%d):\n", len(pids))
	for _, pid := range pids {
		fmt.Printf("  0x%02X  %s\n", uint8(pid), obd2.PIDName(pid))
	}

	return nil
}
