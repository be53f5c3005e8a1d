package channels

import (
	"context"
	"fmt"
	"strings"

	"github.com/pulsemetrics/pulseboard/internal/engine"
	"github.com/pulsemetrics/pulseboard/pkg/mail"
)

// EmailAdapter delivers notifications over SMTP.
type EmailAdapter struct {
	mailer     mail.Mailer
	recipients []string
}

// NewEmailAdapter wraps a mailer with a fixed recipient list.
func NewEmailAdapter(mailer mail.Mailer, recipients []string) *EmailAdapter {
	return &EmailAdapter{mailer: mailer, recipients: recipients}
}

// Channel implements engine.Adapter.
func (a *EmailAdapter) Channel() engine.Channel { return engine.ChannelEmail }

// Deliver implements engine.Adapter.
func (a *EmailAdapter) Deliver(ctx context.Context, n engine.Notification) error {
	if len(a.recipients) == 0 {
		return fmt.Errorf("email: no recipients configured")
	}

	return a.mailer.Send(ctx, mail.Message{
		To:      a.recipients,
		Subject: fmt.Sprintf("[%s] %s", strings.ToUpper(string(n.Priority)), n.Title),
		Body:    emailBody(n),
	})
}

func emailBody(n engine.Notification) string {
	var sb strings.Builder
	sb.WriteString(n.Message)
	sb.WriteString("\r\n")
	if n.ActionURL != "" {
		label := n.ActionLabel
		if label == "" {
			label = "View details"
		}
		fmt.Fprintf(&sb, "\r\n%s: %s\r\n", label, n.ActionURL)
	}
	fmt.Fprintf(&sb, "\r\nSent at %s\r\n", n.Timestamp.UTC().Format("2006-01-02 15:04 UTC"))
	return sb.String()
}
