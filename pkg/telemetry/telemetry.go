// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package telemetry publishes vehicle snapshots and trouble codes to an MQTT
// broker and accepts remote commands on a command topic.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Thermoquad/obdstat/pkg/obd2"
)

const (
	DefaultInterval = 10 * time.Second
	DefaultBroker   = "tcp://localhost:1883"
	DefaultClientID = "obdstat"
	DefaultTopic    = "vehicle/obd2"

	disconnectQuiesce = 250 // ms
)

// CommandClearTroubleCodes asks the vehicle to clear its stored codes
const CommandClearTroubleCodes = "clear_dtcs"

// ErrNotConnected is returned when publishing before Connect
var ErrNotConnected = errors.New("telemetry: not connected")

// Config holds broker and topic settings
type Config struct {
	Broker       string
	ClientID     string
	Topic        string
	DTCTopic     string // defaults to Topic + "/dtc"
	CommandTopic string // no subscription when empty
	Interval     time.Duration
}

// Snapshot is one periodic vehicle reading
type Snapshot struct {
	Timestamp    time.Time          `json:"timestamp"`
	Protocol     string             `json:"protocol,omitempty"`
	Ignition     bool               `json:"ignition"`
	Engine       bool               `json:"engine"`
	RPM          int                `json:"rpm"`
	Speed        int                `json:"speed"`
	PIDs         map[string]int64   `json:"pids,omitempty"`
	TroubleCodes []obd2.TroubleCode `json:"trouble_codes"`
}

// TroubleCodeEvent announces a code seen for the first time
type TroubleCodeEvent struct {
	Code        obd2.TroubleCode `json:"code"`
	Category    string           `json:"category"`
	Description string           `json:"description"`
	FirstSeen   time.Time        `json:"first_seen"`
}

// Command is a request received on the command topic
type Command struct {
	Type string `json:"type"`
}

// PIDKey formats a PID as a snapshot map key, e.g. "0x0C"
func PIDKey(pid obd2.PID) string {
	return fmt.Sprintf("0x%02X", uint8(pid))
}

// Publisher sends snapshots on a fixed interval
type Publisher struct {
	config  Config
	client  mqtt.Client
	source  func() Snapshot
	handler func(Command) error
}

// NewPublisher creates a publisher. source is polled once per interval;
// handler receives decoded commands and may be nil.
func NewPublisher(config Config, source func() Snapshot, handler func(Command) error) *Publisher {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.DTCTopic == "" {
		config.DTCTopic = config.Topic + "/dtc"
	}
	return &Publisher{
		config:  config,
		source:  source,
		handler: handler,
	}
}

// Connect connects to the broker. The command subscription is renewed on
// every reconnect.
func (p *Publisher) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.config.Broker)
	opts.SetClientID(p.config.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Printf("Connected to MQTT broker %s", p.config.Broker)
		p.subscribeToCommands()
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("MQTT connection lost: %v", err)
	})

	p.client = mqtt.NewClient(opts)
	if token := p.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to %s: %w", p.config.Broker, token.Error())
	}
	return nil
}

// Disconnect closes the broker connection
func (p *Publisher) Disconnect() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(disconnectQuiesce)
	}
}

// Run publishes a snapshot every interval until ctx is done
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	log.Printf("Publishing to %s every %v", p.config.Topic, p.config.Interval)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.PublishSnapshot(); err != nil {
				log.Printf("Snapshot not published: %v", err)
			}
		}
	}
}

// PublishSnapshot polls the source and publishes the result
func (p *Publisher) PublishSnapshot() error {
	data, err := json.Marshal(p.source())
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return p.publish(p.config.Topic, data)
}

// PublishTroubleCode announces a newly seen trouble code
func (p *Publisher) PublishTroubleCode(code obd2.TroubleCode, firstSeen time.Time) error {
	data, err := json.Marshal(TroubleCodeEvent{
		Code:        code,
		Category:    code.Category(),
		Description: code.Description(),
		FirstSeen:   firstSeen,
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", code, err)
	}
	return p.publish(p.config.DTCTopic, data)
}

func (p *Publisher) publish(topic string, data []byte) error {
	if p.client == nil || !p.client.IsConnected() {
		return ErrNotConnected
	}
	token := p.client.Publish(topic, 0, false, data)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish to %s failed: %w", topic, token.Error())
	}
	return nil
}

func (p *Publisher) subscribeToCommands() {
	topic := p.config.CommandTopic
	if topic == "" {
		return
	}

	token := p.client.Subscribe(topic, 1, p.handleCommand)
	go func() {
		<-token.Done()
		if token.Error() != nil {
			log.Printf("Subscription to %s failed: %v", topic, token.Error())
			return
		}
		log.Printf("Subscribed to commands on %s", topic)
	}()
}

func (p *Publisher) handleCommand(_ mqtt.Client, msg mqtt.Message) {
	var cmd Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		log.Printf("Malformed command on %s: %v", msg.Topic(), err)
		return
	}

	if p.handler == nil {
		log.Printf("Command %q ignored: no handler", cmd.Type)
		return
	}
	if err := p.handler(cmd); err != nil {
		log.Printf("Command %q failed: %v", cmd.Type, err)
	}
}
