// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ignition, engine, speed and RPM",
	Long: `Check whether the vehicle answers (ignition on) and whether the engine is
turning, then print vehicle speed and engine RPM.

Speed and RPM print as -1 when the vehicle does not answer.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	engine, conn, connInfo, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	ignition, running := engine.Refresh()

	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Ignition:   %s\n", onOff(ignition))
	fmt.Printf("Engine:     %s\n", onOff(running))

	if ignition {
		fmt.Printf("Speed:      %d\n", engine.Speed())
		fmt.Printf("RPM:        %d\n", engine.RPM())
	}

	stats := engine.Stats()
	fmt.Printf("\n%s\n", stats.Summary())
	return nil
}
