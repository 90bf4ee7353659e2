// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second

	// Quiesce window granted to the paho client on disconnect, in milliseconds.
	mqttDisconnectQuiesce = 1000
)

// MQTT publishes alerts as JSON events to an MQTT broker topic, so that home
// automation systems subscribed to the broker can react to monitoring events.
type MQTT struct {
	client  paho.Client
	topic   string
	enabled bool
}

// mqttAlert is the JSON payload published for each alert.
type mqttAlert struct {
	Timestamp string `json:"timestamp"`
	Severity  string `json:"severity"`
	Title     string `json:"title"`
	Message   string `json:"message"`
}

// NewMQTT creates a notifier connected to the given broker. An empty broker
// URI yields a disabled notifier that discards alerts without connecting.
func NewMQTT(broker, clientID, topic string) (*MQTT, error) {
	if broker == "" {
		return &MQTT{}, nil
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("connection timeout to broker %s", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &MQTT{client: client, topic: topic, enabled: true}, nil
}

// Name identifies the channel for logs and metrics.
func (m *MQTT) Name() string {
	return "mqtt"
}

// IsEnabled returns whether MQTT notifications are enabled
func (m *MQTT) IsEnabled() bool {
	return m.enabled
}

// SendAlert publishes the alert to the configured topic.
func (m *MQTT) SendAlert(_ context.Context, severity, title, message string) error {
	if !m.enabled {
		return nil
	}

	payload, err := formatAlert(time.Now(), severity, title, message)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 1 (at-least-once): alerts often fire right before shutdown
	token := m.client.Publish(m.topic, 1, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	if m.enabled {
		m.client.Disconnect(mqttDisconnectQuiesce)
	}
}

// formatAlert creates the JSON payload for an alert event.
func formatAlert(at time.Time, severity, title, message string) ([]byte, error) {
	return json.Marshal(mqttAlert{
		Timestamp: at.UTC().Format(time.RFC3339),
		Severity:  severity,
		Title:     title,
		Message:   message,
	})
}
