package channels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/require"

	"github.com/pulsemetrics/pulseboard/internal/engine"
	"github.com/pulsemetrics/pulseboard/pkg/mail"
)

func sampleNotification() engine.Notification {
	return engine.Notification{
		ID:        "n1",
		Type:      engine.TypeMention,
		Priority:  engine.PriorityHigh,
		Title:     "Mention spike",
		Message:   "14 brand mentions detected in the last hour",
		Timestamp: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
		ActionURL: "https://app.example.com/mentions",
	}
}

type captureMailer struct {
	sent []mail.Message
	err  error
}

func (m *captureMailer) Send(_ context.Context, msg mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func TestEmailAdapterDeliver(t *testing.T) {
	mailer := &captureMailer{}
	adapter := NewEmailAdapter(mailer, []string{"alerts@example.com"})

	require.Equal(t, engine.ChannelEmail, adapter.Channel())
	require.NoError(t, adapter.Deliver(context.Background(), sampleNotification()))

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	require.Equal(t, []string{"alerts@example.com"}, msg.To)
	require.Equal(t, "[HIGH] Mention spike", msg.Subject)
	require.Contains(t, msg.Body, "14 brand mentions detected")
	require.Contains(t, msg.Body, "https://app.example.com/mentions")
}

func TestEmailAdapterRequiresRecipients(t *testing.T) {
	adapter := NewEmailAdapter(&captureMailer{}, nil)
	require.Error(t, adapter.Deliver(context.Background(), sampleNotification()))
}

type capturePublisher struct {
	inputs []*sns.PublishInput
}

func (p *capturePublisher) Publish(_ context.Context, input *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	p.inputs = append(p.inputs, input)
	return &sns.PublishOutput{}, nil
}

func TestPushAdapterDeliver(t *testing.T) {
	publisher := &capturePublisher{}
	adapter := NewPushAdapterWithClient(publisher, "arn:aws:sns:eu-west-1:123456789012:pulseboard")

	require.Equal(t, engine.ChannelPush, adapter.Channel())
	require.NoError(t, adapter.Deliver(context.Background(), sampleNotification()))

	require.Len(t, publisher.inputs, 1)
	input := publisher.inputs[0]
	require.Equal(t, "arn:aws:sns:eu-west-1:123456789012:pulseboard", *input.TopicArn)
	require.Equal(t, "Mention spike", *input.Subject)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(*input.Message), &payload))
	require.Equal(t, "n1", payload["id"])
	require.Equal(t, "mention", payload["type"])
}

func TestSlackAdapterDeliver(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	adapter := NewSlackAdapter(server.URL)
	require.Equal(t, engine.ChannelSlack, adapter.Channel())
	require.NoError(t, adapter.Deliver(context.Background(), sampleNotification()))

	attachments, ok := received["attachments"].([]any)
	require.True(t, ok)
	require.Len(t, attachments, 1)
	attachment := attachments[0].(map[string]any)
	require.Equal(t, "Mention spike", attachment["title"])
	require.Equal(t, slackColors[engine.PriorityHigh], attachment["color"])
}

func TestSlackAdapterSurfacesWebhookErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_payload", http.StatusBadRequest)
	}))
	defer server.Close()

	adapter := NewSlackAdapter(server.URL)
	require.Error(t, adapter.Deliver(context.Background(), sampleNotification()))
}

var (
	_ engine.Adapter = (*EmailAdapter)(nil)
	_ engine.Adapter = (*PushAdapter)(nil)
	_ engine.Adapter = (*SlackAdapter)(nil)
)
