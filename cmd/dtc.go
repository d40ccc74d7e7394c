// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/Thermoquad/obdstat/pkg/history"
	"github.com/Thermoquad/obdstat/pkg/obd2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	historyPath   string
	clearYes      bool
	historyForget []string
)

var dtcCmd = &cobra.Command{
	Use:   "dtc",
	Short: "Read or clear diagnostic trouble codes",
	Long: `Read stored diagnostic trouble codes (mode 03) or clear them (mode 04).

With --history, every read is recorded in a local database and codes seen for
the first time are marked NEW.`,
}

var dtcReadCmd = &cobra.Command{
	Use:   "read",
	Short: "Read stored trouble codes",
	RunE:  runDTCRead,
}

var dtcClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear stored trouble codes and turn off the MIL",
	Long: `Send a mode 04 request, which clears stored trouble codes, freeze frame
data and readiness monitors, and turns off the malfunction indicator lamp.

Asks for confirmation unless --yes is given.`,
	RunE: runDTCClear,
}

var dtcHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List trouble codes recorded in the history database",
	Long: `List trouble codes recorded in the history database.

With --forget, the given codes are removed first so the next read reports
them as NEW again.`,
	Example: `  obdstat dtc --history codes.db history
  obdstat dtc --history codes.db history --forget P0301,P0420`,
	RunE: runDTCHistory,
}

func init() {
	dtcCmd.PersistentFlags().StringVar(&historyPath, "history", "", "Trouble code history database")
	dtcClearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "Do not ask for confirmation")
	dtcHistoryCmd.Flags().StringSliceVar(&historyForget, "forget", nil, "Codes to remove from the history")

	dtcCmd.AddCommand(dtcReadCmd, dtcClearCmd, dtcHistoryCmd)
	rootCmd.AddCommand(dtcCmd)
}

func openHistory() (*history.Store, error) {
	if historyPath == "" {
		return nil, nil
	}
	return history.Open(historyPath)
}

func runDTCRead(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	engine, conn, _, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	codes, err := engine.ReadTroubleCodes()
	if err != nil {
		return err
	}

	fresh := map[obd2.TroubleCode]bool{}
	if store != nil {
		newCodes, err := store.Observe(codes, time.Now())
		if err != nil {
			log.Printf("History not updated: %v", err)
		}
		for _, c := range newCodes {
			fresh[c] = true
		}
	}

	fmt.Print(formatCodeList(codes, fresh))
	return nil
}

var (
	newMarker  = color.New(color.FgRed, color.Bold).SprintFunc()
	codeMarker = color.New(color.FgYellow).SprintFunc()
)

// formatCodeList prints one code per line, marking codes in fresh as NEW
func formatCodeList(codes []obd2.TroubleCode, fresh map[obd2.TroubleCode]bool) string {
	if len(codes) == 0 {
		return "No trouble codes\n"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d trouble code(s):\n", len(codes))
	for _, c := range codes {
		marker := "   "
		if fresh[c] {
			marker = newMarker("NEW")
		}
		fmt.Fprintf(&sb, "  %s %s  %-10s %s\n", marker, codeMarker(c), c.Category(), c.Description())
	}
	return sb.String()
}

func runDTCClear(cmd *cobra.Command, args []string) error {
	if !clearYes {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("refusing to clear without confirmation; use --yes")
		}
		if !confirm(os.Stdin, os.Stderr, "Clear all trouble codes and freeze frame data?") {
			fmt.Println("Aborted")
			return nil
		}
	}

	store, err := openHistory()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	engine, conn, _, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	ok, err := engine.ClearTroubleCodes()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("vehicle rejected the clear request (engine running?)")
	}

	if store != nil {
		if err := store.ClearAll(); err != nil {
			log.Printf("History not cleared: %v", err)
		}
	}

	fmt.Println("Trouble codes cleared")
	return nil
}

// confirm asks a yes/no question; anything but y or yes is no
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

// parseTroubleCode accepts a code like p0301 and returns it uppercased
func parseTroubleCode(s string) (obd2.TroubleCode, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if len(code) != 5 || !strings.ContainsRune("PCBU", rune(code[0])) {
		return "", fmt.Errorf("invalid trouble code %q", s)
	}
	for _, c := range code[1:] {
		if !strings.ContainsRune("0123456789ABCDEF", c) {
			return "", fmt.Errorf("invalid trouble code %q", s)
		}
	}
	return obd2.TroubleCode(code), nil
}

// forgetCodes removes each code from the history. All codes are checked
// before anything is removed.
func forgetCodes(store *history.Store, codes []string) error {
	parsed := make([]obd2.TroubleCode, 0, len(codes))
	for _, s := range codes {
		code, err := parseTroubleCode(s)
		if err != nil {
			return err
		}
		parsed = append(parsed, code)
	}

	for _, code := range parsed {
		if err := store.Remove(code); err != nil {
			return fmt.Errorf("failed to forget %s: %w", code, err)
		}
		fmt.Printf("Forgot %s\n", code)
	}
	return nil
}

func runDTCHistory(cmd *cobra.Command, args []string) error {
	if historyPath == "" {
		return fmt.Errorf("--history is required")
	}

	store, err := history.Open(historyPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := forgetCodes(store, historyForget); err != nil {
		return err
	}

	records, err := store.List()
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("History is empty")
		return nil
	}

	fmt.Printf("%-6s %-20s %-20s %6s  %s\n", "CODE", "FIRST SEEN", "LAST SEEN", "COUNT", "DESCRIPTION")
	for _, r := range records {
		fmt.Printf("%-6s %-20s %-20s %6d  %s\n",
			r.Code,
			r.FirstSeen.Local().Format("2006-01-02 15:04:05"),
			r.LastSeen.Local().Format("2006-01-02 15:04:05"),
			r.Count,
			r.Code.Description(),
		)
	}
	return nil
}
