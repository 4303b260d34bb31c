// Package email implements communication.EmailProvider over SendGrid,
// Mailgun, SES, and plain SMTP. The registry picks one by the node's
// provider config field.
package email

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/flowgraph/runtime/internal/communication"
)

// SendGridProvider delivers through the SendGrid v3 mail API.
type SendGridProvider struct {
	client *sendgrid.Client
}

func NewSendGridProvider(apiKey string) *SendGridProvider {
	return &SendGridProvider{client: sendgrid.NewSendClient(apiKey)}
}

func (p *SendGridProvider) SendEmail(ctx context.Context, msg *communication.Email) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	out := mail.NewV3Mail()
	out.SetFrom(mail.NewEmail("", msg.From))
	out.Subject = msg.Subject
	out.AddContent(mail.NewContent("text/plain", msg.Text))

	rcpt := mail.NewPersonalization()
	for _, to := range msg.To {
		rcpt.AddTos(mail.NewEmail("", to))
	}
	out.AddPersonalizations(rcpt)

	resp, err := p.client.SendWithContext(ctx, out)
	if err != nil {
		return "", fmt.Errorf("email: sendgrid: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("email: sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}

	if ids := resp.Headers["X-Message-Id"]; len(ids) > 0 {
		return ids[0], nil
	}
	return "", nil
}
