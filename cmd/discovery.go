// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/Thermoquad/obdstat/pkg/obd2"
	"github.com/fatih/color"
	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.bug.st/serial"
)

var discoveryBauds []int

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Find OBD2 adapters on local serial ports",
	Long: `Probe every serial port on the system for an ELM327 compatible adapter.

Each port is opened at each baud rate in turn and sent ATI. A port whose reply
names an ELM327 or STN chip is reported along with the baud rate that worked.

Exit codes:
  0 - At least one adapter found
  1 - No adapters found`,
	Example: `  obdstat discovery
  obdstat discovery --bauds 38400,115200`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().IntSliceVar(&discoveryBauds, "bauds", []int{9600, 38400, 115200}, "Baud rates to try")
}

type discoveredAdapter struct {
	port     string
	baud     int
	identity string
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	ports, err := serial.GetPortsList()
	if err != nil {
		return fmt.Errorf("failed to list serial ports: %w", err)
	}

	fmt.Printf("obdstat - Adapter Discovery\n")
	fmt.Printf("Ports: %d\n", len(ports))
	fmt.Printf("Baud rates: %v\n\n", discoveryBauds)

	bar := progressbar.NewOptions(len(ports),
		progressbar.OptionSetWriter(ansi.NewAnsiStderr()),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetDescription("probing"),
	)

	var found []discoveredAdapter
	for _, port := range ports {
		bar.Describe(port)
		if adapter, ok := probePort(port); ok {
			found = append(found, adapter)
		}
		bar.Add(1)
	}
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	green := color.New(color.FgGreen).SprintfFunc()
	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Adapters found: %d\n", len(found))
	for _, a := range found {
		fmt.Printf("  %s  %s at %d baud\n", green("%-16s", a.port), a.identity, a.baud)
		fmt.Printf("    obdstat -p %s -b %d status\n", a.port, a.baud)
	}

	if len(found) == 0 {
		fmt.Printf("No adapters discovered. Check the cable and adapter power.\n")
		os.Exit(1)
	}
	return nil
}

// probePort tries each baud rate until the port answers ATI like an adapter
func probePort(port string) (discoveredAdapter, bool) {
	for _, baud := range discoveryBauds {
		conn, err := OpenSerialConnection(port, baud)
		if err != nil {
			return discoveredAdapter{}, false
		}

		identity, ok := identifyAdapter(conn)
		conn.Close()
		if ok {
			return discoveredAdapter{port: port, baud: baud, identity: identity}, true
		}
	}
	return discoveredAdapter{}, false
}

// identifyAdapter sends ATI and reports the chip identity when the reply
// looks like an ELM327 or STN adapter
func identifyAdapter(conn Connection) (string, bool) {
	if _, err := conn.Write([]byte("ATI\r")); err != nil {
		return "", false
	}
	reply, err := obd2.ReadReply(conn, 64, readTimeout)
	if err != nil || reply.Status != obd2.ReplyFramed {
		return "", false
	}

	identity := strings.TrimSpace(strings.TrimPrefix(reply.Text, "ATI"))
	upper := strings.ToUpper(identity)
	if !strings.Contains(upper, "ELM327") && !strings.Contains(upper, "STN") {
		return "", false
	}
	return identity, true
}
