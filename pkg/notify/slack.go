// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Slack sends notifications to Slack via Incoming Webhooks.
type Slack struct {
	webhookURL string
	client     *http.Client
	enabled    bool
}

// slackMessage represents a Slack webhook message payload
type slackMessage struct {
	Text        string            `json:"text,omitempty"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

// slackAttachment represents a Slack attachment
type slackAttachment struct {
	Color  string `json:"color,omitempty"`
	Title  string `json:"title,omitempty"`
	Text   string `json:"text,omitempty"`
	Footer string `json:"footer,omitempty"`
	Ts     int64  `json:"ts,omitempty"`
}

// NewSlack creates a new Slack notifier. An empty webhook URL yields a
// disabled notifier that discards alerts.
func NewSlack(webhookURL string) *Slack {
	return &Slack{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		enabled: webhookURL != "",
	}
}

// Name identifies the channel for logs and metrics.
func (s *Slack) Name() string {
	return "slack"
}

// IsEnabled returns whether Slack notifications are enabled
func (s *Slack) IsEnabled() bool {
	return s.enabled
}

// SendMessage sends a simple text message to Slack
func (s *Slack) SendMessage(ctx context.Context, message string) error {
	if !s.enabled {
		return nil
	}

	payload := slackMessage{
		Text: message,
	}

	return s.sendPayload(ctx, payload)
}

// SendAlert sends a formatted alert to Slack
func (s *Slack) SendAlert(ctx context.Context, severity, title, message string) error {
	if !s.enabled {
		return nil
	}

	payload := slackMessage{
		Attachments: []slackAttachment{
			{
				Color:  severityToColor(severity),
				Title:  title,
				Text:   message,
				Footer: "Laptop Smart Power Manager",
				Ts:     time.Now().Unix(),
			},
		},
	}

	return s.sendPayload(ctx, payload)
}

// sendPayload sends a payload to the Slack webhook
func (s *Slack) sendPayload(ctx context.Context, payload slackMessage) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// severityToColor maps severity levels to Slack colors
func severityToColor(severity string) string {
	switch severity {
	case "danger", "error":
		return "danger" // Red
	case "warning", "warn":
		return "warning" // Yellow
	case "good", "success":
		return "good" // Green
	default:
		return "#808080" // Gray
	}
}
