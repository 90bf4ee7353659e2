// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

func TestNewMQTT_Disabled(t *testing.T) {
	notifier, err := NewMQTT("", "lspm", "lspm/events")
	if err != nil {
		t.Fatalf("NewMQTT() error = %v", err)
	}

	if notifier.IsEnabled() {
		t.Error("Expected notifier without broker to be disabled")
	}

	// A disabled notifier discards alerts and tolerates Close.
	if err := notifier.SendAlert(context.Background(), "danger", "Title", "Message"); err != nil {
		t.Errorf("SendAlert() with disabled notifier error = %v", err)
	}
	notifier.Close()
}

func TestFormatAlert(t *testing.T) {
	at := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

	payload, err := formatAlert(at, "danger", "Monitoring down", "The plug went away")
	if err != nil {
		t.Fatalf("formatAlert() error = %v", err)
	}

	var got mqttAlert
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}

	want := mqttAlert{
		Timestamp: "2025-03-14T15:09:26Z",
		Severity:  "danger",
		Title:     "Monitoring down",
		Message:   "The plug went away",
	}
	if got != want {
		t.Errorf("formatAlert() = %+v, want %+v", got, want)
	}
}

func TestFormatAlert_NonUTCTimestamp(t *testing.T) {
	zone := time.FixedZone("UTC+2", 2*60*60)
	at := time.Date(2025, 3, 14, 17, 9, 26, 0, zone)

	payload, err := formatAlert(at, "good", "Started", "ok")
	if err != nil {
		t.Fatalf("formatAlert() error = %v", err)
	}

	var got mqttAlert
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}
	if got.Timestamp != "2025-03-14T15:09:26Z" {
		t.Errorf("Timestamp = %q, want UTC normalized %q", got.Timestamp, "2025-03-14T15:09:26Z")
	}
}

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type publishRecord struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeClient records publishes in place of a live broker connection.
type fakeClient struct {
	published   []publishRecord
	publishErr  error
	disconnects int
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	if c.publishErr != nil {
		return &fakeToken{err: c.publishErr}
	}
	c.published = append(c.published, publishRecord{
		topic:    topic,
		qos:      qos,
		retained: retained,
		payload:  payload.([]byte),
	})
	return &fakeToken{}
}

func (c *fakeClient) Disconnect(uint)        { c.disconnects++ }
func (c *fakeClient) IsConnected() bool      { return true }
func (c *fakeClient) IsConnectionOpen() bool { return true }
func (c *fakeClient) Connect() paho.Token    { return &fakeToken{} }

func (c *fakeClient) Subscribe(string, byte, paho.MessageHandler) paho.Token {
	return &fakeToken{}
}

func (c *fakeClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &fakeToken{}
}

func (c *fakeClient) Unsubscribe(...string) paho.Token        { return &fakeToken{} }
func (c *fakeClient) AddRoute(string, paho.MessageHandler)    {}
func (c *fakeClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }

func TestMQTT_SendAlertPublishes(t *testing.T) {
	client := &fakeClient{}
	notifier := &MQTT{client: client, topic: "lspm/events", enabled: true}

	if err := notifier.SendAlert(context.Background(), SeverityError, "Monitoring down", "The plug went away"); err != nil {
		t.Fatalf("SendAlert() error = %v", err)
	}

	if len(client.published) != 1 {
		t.Fatalf("Expected 1 publish, got %d", len(client.published))
	}
	rec := client.published[0]
	if rec.topic != "lspm/events" {
		t.Errorf("topic = %q, want %q", rec.topic, "lspm/events")
	}
	if rec.qos != 1 {
		t.Errorf("qos = %d, want 1", rec.qos)
	}
	if rec.retained {
		t.Error("Expected alerts not to be retained")
	}

	var got mqttAlert
	if err := json.Unmarshal(rec.payload, &got); err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}
	if got.Severity != SeverityError || got.Title != "Monitoring down" || got.Message != "The plug went away" {
		t.Errorf("Unexpected alert payload: %+v", got)
	}
	if got.Timestamp == "" {
		t.Error("Expected a timestamp on the published alert")
	}
}

func TestMQTT_PublishError(t *testing.T) {
	client := &fakeClient{publishErr: errors.New("broker gone")}
	notifier := &MQTT{client: client, topic: "lspm/events", enabled: true}

	if err := notifier.SendAlert(context.Background(), SeverityInfo, "Started", "ok"); err == nil {
		t.Fatal("Expected publish error, got nil")
	}
}

func TestMQTT_CloseDisconnects(t *testing.T) {
	client := &fakeClient{}
	notifier := &MQTT{client: client, topic: "lspm/events", enabled: true}

	notifier.Close()

	if client.disconnects != 1 {
		t.Errorf("Disconnect calls = %d, want 1", client.disconnects)
	}
}
