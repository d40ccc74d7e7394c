// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/Thermoquad/obdstat/pkg/history"
	"github.com/Thermoquad/obdstat/pkg/obd2"
	"github.com/Thermoquad/obdstat/pkg/telemetry"
	"github.com/jellydator/ttlcache/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	publishBroker       string
	publishClientID     string
	publishTopic        string
	publishDTCTopic     string
	publishCommandTopic string
	publishInterval     time.Duration
	publishPIDs         string
	publishHistory      string
	publishDTCInterval  time.Duration
	publishAnnounceTTL  time.Duration
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish vehicle telemetry to an MQTT broker",
	Long: `Poll the vehicle continuously and publish a JSON snapshot to an MQTT topic
on a fixed interval.

Trouble codes are read every --dtc-interval. With --history, codes seen for
the first time are published as events on the DTC topic. Without a history
database a code is announced again once it has gone unseen for --announce-ttl.
When a command topic is set, a {"type":"clear_dtcs"} message clears the
vehicle's codes.`,
	Example: `  obdstat -p /dev/ttyUSB0 publish --broker tcp://localhost:1883
  obdstat --tcp 192.168.0.10:35000 publish --topic car/obd2 --command-topic car/obd2/cmd`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishBroker, "broker", telemetry.DefaultBroker, "MQTT broker URL")
	publishCmd.Flags().StringVar(&publishClientID, "client-id", telemetry.DefaultClientID, "MQTT client ID")
	publishCmd.Flags().StringVar(&publishTopic, "topic", telemetry.DefaultTopic, "Snapshot topic")
	publishCmd.Flags().StringVar(&publishDTCTopic, "dtc-topic", "", "New trouble code topic (default <topic>/dtc)")
	publishCmd.Flags().StringVar(&publishCommandTopic, "command-topic", "", "Command topic (disabled when empty)")
	publishCmd.Flags().DurationVarP(&publishInterval, "interval", "i", telemetry.DefaultInterval, "Publish interval")
	publishCmd.Flags().StringVar(&publishPIDs, "pids", defaultMonitorPIDs, "Comma separated PIDs to include")
	publishCmd.Flags().StringVar(&publishHistory, "history", "", "Trouble code history database")
	publishCmd.Flags().DurationVar(&publishDTCInterval, "dtc-interval", time.Minute, "Trouble code read interval")
	publishCmd.Flags().DurationVar(&publishAnnounceTTL, "announce-ttl", 24*time.Hour, "Re-announce interval for codes without --history")
	rootCmd.AddCommand(publishCmd)
}

// snapshotter polls the engine and keeps the most recent snapshot for the
// publisher. The engine serializes adapter access itself.
type snapshotter struct {
	engine *obd2.Engine
	pids   []obd2.PID
	store  *history.Store
	recent *ttlcache.Cache[obd2.TroubleCode, time.Time]
	notify func(code obd2.TroubleCode, firstSeen time.Time) error

	mu     sync.Mutex
	latest telemetry.Snapshot
}

func (s *snapshotter) Snapshot() telemetry.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.latest
	if snap.PIDs != nil {
		pids := make(map[string]int64, len(snap.PIDs))
		for k, v := range snap.PIDs {
			pids[k] = v
		}
		snap.PIDs = pids
	}
	snap.TroubleCodes = append([]obd2.TroubleCode(nil), snap.TroubleCodes...)
	return snap
}

func newAnnounceCache(ttl time.Duration) *ttlcache.Cache[obd2.TroubleCode, time.Time] {
	return ttlcache.New[obd2.TroubleCode, time.Time](
		ttlcache.WithTTL[obd2.TroubleCode, time.Time](ttl),
	)
}

// poll takes one reading of ignition, engine and the selected PIDs
func (s *snapshotter) poll(now time.Time) {
	ignition, running := s.engine.Refresh()

	snap := telemetry.Snapshot{
		Timestamp:    now,
		Protocol:     s.engine.Protocol(),
		Ignition:     ignition,
		Engine:       running,
		RPM:          -1,
		Speed:        -1,
		TroubleCodes: s.engine.TroubleCodes(),
	}

	if ignition {
		snap.RPM = s.engine.LastRPM()
		snap.Speed = s.engine.Speed()

		snap.PIDs = make(map[string]int64, len(s.pids))
		for _, pid := range s.pids {
			if !s.engine.IsPIDSupported(pid) {
				continue
			}
			value, err := s.engine.PID(pid)
			if err != nil {
				continue
			}
			snap.PIDs[telemetry.PIDKey(pid)] = value
		}
	}

	s.mu.Lock()
	s.latest = snap
	s.mu.Unlock()
}

// readCodes reads trouble codes and announces the ones not seen before
func (s *snapshotter) readCodes(now time.Time) error {
	codes, err := s.engine.ReadTroubleCodes()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.latest.TroubleCodes = codes
	s.mu.Unlock()

	fresh, err := s.freshCodes(codes, now)
	if err != nil {
		return err
	}
	for _, code := range fresh {
		log.Printf("New trouble code: %s - %s", code, code.Description())
		if s.notify == nil {
			continue
		}
		if err := s.notify(code, now); err != nil {
			log.Printf("Failed to publish %s: %v", code, err)
		}
	}
	return nil
}

// freshCodes picks the codes to announce. The history store decides when
// there is one; otherwise codes not seen within the cache TTL are fresh.
func (s *snapshotter) freshCodes(codes []obd2.TroubleCode, now time.Time) ([]obd2.TroubleCode, error) {
	if s.store != nil {
		fresh, err := s.store.Observe(codes, now)
		if err != nil {
			return nil, fmt.Errorf("history not updated: %w", err)
		}
		return fresh, nil
	}
	if s.recent == nil {
		return nil, nil
	}

	var fresh []obd2.TroubleCode
	for _, code := range codes {
		if s.recent.Get(code) == nil {
			fresh = append(fresh, code)
			s.recent.Set(code, now, ttlcache.DefaultTTL)
		}
	}
	return fresh, nil
}

// handleCommand executes a command received from the broker
func (s *snapshotter) handleCommand(cmd telemetry.Command) error {
	switch cmd.Type {
	case telemetry.CommandClearTroubleCodes:
		ok, err := s.engine.ClearTroubleCodes()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("vehicle rejected the clear request")
		}

		s.mu.Lock()
		s.latest.TroubleCodes = nil
		s.mu.Unlock()

		if s.recent != nil {
			s.recent.DeleteAll()
		}
		if s.store != nil {
			if err := s.store.ClearAll(); err != nil {
				return fmt.Errorf("history not cleared: %w", err)
			}
		}
		log.Printf("Trouble codes cleared by remote command")
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd.Type)
	}
}

// run polls at half the publish interval and reads codes every dtcInterval
// until ctx is cancelled
func (s *snapshotter) run(ctx context.Context, pollInterval, dtcInterval time.Duration) error {
	s.poll(time.Now())
	if err := s.readCodes(time.Now()); err != nil {
		log.Printf("Trouble code read failed: %v", err)
	}

	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()
	dtcTicker := time.NewTicker(dtcInterval)
	defer dtcTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-pollTicker.C:
			s.poll(now)
		case now := <-dtcTicker.C:
			if err := s.readCodes(now); err != nil {
				log.Printf("Trouble code read failed: %v", err)
			}
		}
	}
}

func runPublish(cmd *cobra.Command, args []string) error {
	pids, err := parsePIDList(publishPIDs)
	if err != nil {
		return err
	}
	if publishDTCInterval <= 0 {
		return fmt.Errorf("--dtc-interval must be positive")
	}

	var store *history.Store
	if publishHistory != "" {
		store, err = history.Open(publishHistory)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	engine, conn, connInfo, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Printf("Connection: %s", connInfo)
	log.Printf("Protocol: %s", obd2.ProtocolName(engine.Protocol()))

	source := &snapshotter{
		engine: engine,
		pids:   pids,
		store:  store,
	}
	if store == nil {
		source.recent = newAnnounceCache(publishAnnounceTTL)
		go source.recent.Start()
		defer source.recent.Stop()
	}

	publisher := telemetry.NewPublisher(telemetry.Config{
		Broker:       publishBroker,
		ClientID:     publishClientID,
		Topic:        publishTopic,
		DTCTopic:     publishDTCTopic,
		CommandTopic: publishCommandTopic,
		Interval:     publishInterval,
	}, source.Snapshot, source.handleCommand)
	source.notify = publisher.PublishTroubleCode

	if err := publisher.Connect(); err != nil {
		return err
	}
	defer publisher.Disconnect()

	pollInterval := publishInterval / 2
	if pollInterval <= 0 {
		pollInterval = telemetry.DefaultInterval / 2
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return source.run(gctx, pollInterval, publishDTCInterval)
	})
	g.Go(func() error {
		return publisher.Run(gctx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}

	stats := engine.Stats()
	log.Printf("Stopped: %s", stats.Summary())
	return nil
}
