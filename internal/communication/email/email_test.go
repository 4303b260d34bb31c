package email

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/runtime/internal/communication"
)

func validEmail() *communication.Email {
	return &communication.Email{
		From:    "noreply@example.com",
		To:      []string{"ada@example.com"},
		Subject: "run finished",
		Text:    "all nodes completed",
	}
}

// Every provider rejects an invalid message before touching the wire,
// so these run without credentials or network.
func TestProvidersRejectInvalidMessage(t *testing.T) {
	invalid := &communication.Email{}

	providers := map[string]communication.EmailProvider{
		"sendgrid": NewSendGridProvider("key"),
		"mailgun":  NewMailgunProvider("mg.example.com", "key"),
		"smtp":     NewSMTPProvider("smtp.example.com", 587, "u", "p", true),
	}
	for name, p := range providers {
		t.Run(name, func(t *testing.T) {
			_, err := p.SendEmail(context.Background(), invalid)
			assert.Error(t, err)
		})
	}
}

func TestSMTPEncodeProducesRFC5322Message(t *testing.T) {
	p := NewSMTPProvider("smtp.example.com", 587, "u", "p", false)
	msg := validEmail()
	msg.To = []string{"ada@example.com", "grace@example.com"}

	raw := string(p.encode(msg))
	headerEnd := strings.Index(raw, "\r\n\r\n")
	require.Positive(t, headerEnd, "message needs a header/body separator")

	headers := raw[:headerEnd]
	assert.Contains(t, headers, "From: noreply@example.com")
	assert.Contains(t, headers, "To: ada@example.com, grace@example.com")
	assert.Contains(t, headers, "Subject: run finished")
	assert.Contains(t, headers, "Content-Type: text/plain")
	assert.Equal(t, "all nodes completed", raw[headerEnd+4:])
}

func TestSMTPSendFailsWithoutServer(t *testing.T) {
	// Whichever loses the race — the doomed dial or the cancelled
	// context — the send must report an error rather than claim
	// delivery.
	p := NewSMTPProvider("198.51.100.1", 587, "u", "p", false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.SendEmail(ctx, validEmail())
	require.Error(t, err)
}

func TestNewSESProviderBuildsClient(t *testing.T) {
	p, err := NewSESProvider("eu-west-1")
	require.NoError(t, err)
	require.NotNil(t, p.client)

	_, err = p.SendEmail(context.Background(), &communication.Email{})
	assert.Error(t, err, "invalid message is rejected before any AWS call")
}
