// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Thermoquad/obdstat/pkg/obd2"
	"github.com/spf13/cobra"
)

var (
	pingCount   int
	pingVehicle bool
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure adapter round trip time",
	Long: `Send ATI (or an RPM request with --vehicle) repeatedly and report the round
trip time of each reply.

This is useful for verifying:
  - The connection reaches the adapter
  - The baud rate is right
  - The vehicle bus answers (with --vehicle)

Exit codes:
  0 - All pings successful
  1 - One or more pings failed or timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVarP(&pingCount, "count", "c", 3, "Number of pings to send")
	pingCmd.Flags().BoolVar(&pingVehicle, "vehicle", false, "Ping the vehicle with 010C instead of the adapter")
}

// pingResult is the outcome of one ping
type pingResult struct {
	rtt    time.Duration
	status string
	ok     bool
}

func runPing(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	request := "ATI\r"
	if pingVehicle {
		request = obd2.PIDRequest(obd2.PIDEngineRPM)
	}

	fmt.Printf("obdstat - Ping Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Request: %q\n", request)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	successCount := 0
	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)
		result := pingOnce(conn, request)
		if result.ok {
			successCount++
			fmt.Printf("%s, rtt=%v\n", result.status, result.rtt.Round(time.Millisecond))
		} else {
			fmt.Printf("%s\n", result.status)
		}

		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	failCount := pingCount - successCount
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d replies received, %.0f%% loss\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100)

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}

// pingOnce sends request and waits for a framed reply. Vehicle pings must
// also echo the request.
func pingOnce(rw io.ReadWriter, request string) pingResult {
	start := time.Now()
	if _, err := rw.Write([]byte(request)); err != nil {
		return pingResult{status: fmt.Sprintf("SEND FAILED: %v", err)}
	}

	reply, err := obd2.ReadReply(rw, obd2.ReplyCapacity, readTimeout)
	rtt := time.Since(start)
	if err != nil {
		return pingResult{rtt: rtt, status: fmt.Sprintf("READ FAILED: %v", err)}
	}
	if reply.Status != obd2.ReplyFramed {
		return pingResult{rtt: rtt, status: reply.Status.String()}
	}

	if request != "ATI\r" {
		if err := obd2.ValidateResponse(request, reply.Text); err != nil {
			return pingResult{rtt: rtt, status: fmt.Sprintf("BAD REPLY %q", reply.Text)}
		}
	}
	return pingResult{rtt: rtt, status: fmt.Sprintf("reply %q", reply.Text), ok: true}
}
