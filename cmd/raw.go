// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/Thermoquad/obdstat/pkg/obd2"
	"github.com/spf13/cobra"
)

var rawCapacity int

var rawCmd = &cobra.Command{
	Use:   "raw [command]...",
	Short: "Send raw AT or OBD commands to the adapter",
	Long: `Send adapter commands exactly as typed and print each framed reply.

Commands are taken from the arguments, or read line by line from stdin when
none are given. No handshake is performed, so this works on an adapter that
has not been initialized. A carriage return is appended to every command.`,
	Example: `  obdstat -p /dev/ttyUSB0 raw ATZ ATI ATDPN
  echo 010C | obdstat -p /dev/ttyUSB0 raw`,
	RunE: runRaw,
}

func init() {
	rawCmd.Flags().IntVar(&rawCapacity, "capacity", 256, "Maximum reply length")
	rootCmd.AddCommand(rawCmd)
}

func runRaw(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Printf("Connection: %s", connInfo)

	if len(args) > 0 {
		for _, line := range args {
			if err := rawExchange(conn, os.Stdout, line); err != nil {
				return err
			}
		}
		return nil
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := rawExchange(conn, os.Stdout, line); err != nil {
			if errors.Is(err, ErrConnectionClosed) {
				log.Printf("Connection closed")
				return nil
			}
			return err
		}
	}
	return scanner.Err()
}

// rawExchange writes one command line and prints the adapter's reply
func rawExchange(rw io.ReadWriter, out io.Writer, line string) error {
	if _, err := rw.Write([]byte(strings.ToUpper(line) + "\r")); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}

	reply, err := obd2.ReadReply(rw, rawCapacity, readTimeout)
	if err != nil {
		return err
	}

	switch reply.Status {
	case obd2.ReplyFramed:
		fmt.Fprintf(out, "%s -> %s\n", line, reply.Text)
	default:
		fmt.Fprintf(out, "%s -> %s [%s]\n", line, reply.Text, reply.Status)
	}
	return nil
}
