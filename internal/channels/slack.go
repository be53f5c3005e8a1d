package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pulsemetrics/pulseboard/internal/engine"
)

// SlackAdapter posts notifications to an incoming webhook.
type SlackAdapter struct {
	webhookURL string
	client     *http.Client
}

// NewSlackAdapter binds the adapter to a webhook URL.
func NewSlackAdapter(webhookURL string) *SlackAdapter {
	return &SlackAdapter{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Channel implements engine.Adapter.
func (a *SlackAdapter) Channel() engine.Channel { return engine.ChannelSlack }

// Deliver implements engine.Adapter.
func (a *SlackAdapter) Deliver(ctx context.Context, n engine.Notification) error {
	payload, err := json.Marshal(slackPayload(n))
	if err != nil {
		return fmt.Errorf("slack: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("slack: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

var slackColors = map[engine.Priority]string{
	engine.PriorityLow:      "#6b7280",
	engine.PriorityMedium:   "#2563eb",
	engine.PriorityHigh:     "#f59e0b",
	engine.PriorityCritical: "#dc2626",
}

func slackPayload(n engine.Notification) map[string]any {
	attachment := map[string]any{
		"color": slackColors[n.Priority],
		"title": n.Title,
		"text":  n.Message,
		"ts":    n.Timestamp.Unix(),
		"fields": []map[string]any{
			{"title": "Type", "value": string(n.Type), "short": true},
			{"title": "Priority", "value": string(n.Priority), "short": true},
		},
	}
	if n.ActionURL != "" {
		attachment["title_link"] = n.ActionURL
	}
	return map[string]any{"attachments": []map[string]any{attachment}}
}
