package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/flowgraph/runtime/internal/communication"
)

// MailgunProvider delivers through the Mailgun messages API for one
// sending domain.
type MailgunProvider struct {
	client mailgun.Mailgun
}

func NewMailgunProvider(domain, apiKey string) *MailgunProvider {
	return &MailgunProvider{client: mailgun.NewMailgun(domain, apiKey)}
}

func (p *MailgunProvider) SendEmail(ctx context.Context, msg *communication.Email) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	out := p.client.NewMessage(msg.From, msg.Subject, msg.Text, msg.To...)
	status, id, err := p.client.Send(ctx, out)
	if err != nil {
		return "", fmt.Errorf("email: mailgun: %w", err)
	}
	// Mailgun signals acceptance through the status text, not an error.
	if !strings.HasPrefix(status, "Queued") {
		return id, fmt.Errorf("email: mailgun: message not queued: %s", status)
	}
	return id, nil
}
