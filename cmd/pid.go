// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/Thermoquad/obdstat/pkg/obd2"
	"github.com/spf13/cobra"
)

var (
	pidWatch   time.Duration
	pidShowRaw bool
)

var pidCmd = &cobra.Command{
	Use:   "pid <pid>...",
	Short: "Read mode 01 PIDs",
	Long: `Read and decode one or more mode 01 PIDs, given in hex (0C or 0x0C).

PIDs the vehicle does not report as supported are skipped without sending a
request. With --watch the PIDs are read repeatedly until interrupted.`,
	Example: `  obdstat -p /dev/ttyUSB0 pid 0C 0D 05
  obdstat -p /dev/ttyUSB0 pid --watch 500ms 0x0C`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPID,
}

func init() {
	pidCmd.Flags().DurationVarP(&pidWatch, "watch", "w", 0, "Repeat reads at this interval")
	pidCmd.Flags().BoolVar(&pidShowRaw, "raw", false, "Print the undecorated integer value")
	rootCmd.AddCommand(pidCmd)
}

func runPID(cmd *cobra.Command, args []string) error {
	pids := make([]obd2.PID, 0, len(args))
	for _, arg := range args {
		pid, err := parsePID(arg)
		if err != nil {
			return err
		}
		pids = append(pids, pid)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	engine, conn, _, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	for {
		for _, pid := range pids {
			printPID(engine, pid)
		}

		if pidWatch <= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(pidWatch):
		}
	}
}

func printPID(engine *obd2.Engine, pid obd2.PID) {
	value, err := engine.PID(pid)
	switch {
	case errors.Is(err, obd2.ErrUnsupportedPID):
		fmt.Printf("0x%02X %s: not supported\n", uint8(pid), obd2.PIDName(pid))
	case err != nil:
		fmt.Printf("0x%02X %s: %v\n", uint8(pid), obd2.PIDName(pid), err)
	case pidShowRaw:
		fmt.Printf("0x%02X %d\n", uint8(pid), value)
	default:
		fmt.Println(obd2.FormatPIDLine(pid, value))
	}
}
