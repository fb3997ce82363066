// Package slack announces filed critical incidents to Slack via incoming
// webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/mailroom/internal/incident"
)

const (
	maxDetailsLen = 3000
	httpTimeout   = 10 * time.Second
)

// Notifier sends incident announcements to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Notify is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Notify posts an incident announcement to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Notify(ctx context.Context, rec *incident.Record) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(rec)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(rec *incident.Record) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(rec),
			{"type": "divider"},
			fieldsBlock(rec),
			{"type": "divider"},
			detailsBlock(rec),
			{"type": "divider"},
			contextBlock(rec),
		},
	}
}

func headerBlock(rec *incident.Record) map[string]any {
	text := fmt.Sprintf("%s %s Incident: %s", priorityEmoji(rec.Priority), rec.Priority, rec.Subject)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": truncate(text, 150), // Slack header limit
		},
	}
}

func fieldsBlock(rec *incident.Record) map[string]any {
	ticket := rec.TicketRef
	if ticket == "" {
		ticket = "none"
	}
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Priority:* %s", rec.Priority),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Team:* %s", rec.AssignedTeam),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Ticket:* %s", ticket),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Reported by:* %s", rec.Sender),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func detailsBlock(rec *incident.Record) map[string]any {
	text := truncate(rec.Body, maxDetailsLen)
	if text == "" {
		text = "_No details provided._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Details*\n\n%s", text),
		},
	}
}

func contextBlock(rec *incident.Record) map[string]any {
	ts := rec.ReceivedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("mailroom • incident %s • %s", rec.ID, ts.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func priorityEmoji(p incident.Priority) string {
	switch p {
	case incident.PriorityP1:
		return "\U0001f534" // red circle
	case incident.PriorityP2:
		return "\U0001f7e0" // orange circle
	case incident.PriorityP3:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
