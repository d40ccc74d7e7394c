// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/Thermoquad/obdstat/pkg/obd2"
)

// openEngine opens the configured connection and brings the adapter up.
// The caller closes the returned connection.
func openEngine(ctx context.Context) (*obd2.Engine, Connection, string, error) {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return nil, nil, "", err
	}

	opts := []obd2.Option{obd2.WithReadTimeout(readTimeout)}
	if verbose {
		opts = append(opts, obd2.WithLogger(log.New(os.Stderr, "[obd2] ", log.LstdFlags|log.Lmicroseconds)))
	}
	engine := obd2.NewEngine(conn, opts...)

	if skipInit {
		err = engine.RefreshSupport()
	} else {
		log.Printf("Initializing adapter on %s", connInfo)
		err = engine.Connect(ctx)
	}
	if err != nil {
		conn.Close()
		return nil, nil, "", fmt.Errorf("adapter initialization failed: %w", err)
	}

	return engine, conn, connInfo, nil
}

// parsePID parses a PID given in hex, with or without a 0x prefix
func parsePID(s string) (obd2.PID, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid PID %q: must be a hex byte such as 0C or 0x0C", s)
	}
	return obd2.PID(v), nil
}

// parsePIDList parses a comma separated PID list
func parsePIDList(s string) ([]obd2.PID, error) {
	var pids []obd2.PID
	for _, field := range strings.Split(s, ",") {
		if strings.TrimSpace(field) == "" {
			continue
		}
		pid, err := parsePID(field)
		if err != nil {
			return nil, err
		}
		pids = append(pids, pid)
	}
	return pids, nil
}
