package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/flowgraph/runtime/internal/communication"
)

// SMTPProvider delivers through a plain SMTP endpoint, with optional
// implicit TLS. SMTP assigns no message id, so SendEmail returns an
// empty one on success.
type SMTPProvider struct {
	host     string
	port     int
	username string
	password string
	useTLS   bool
}

func NewSMTPProvider(host string, port int, username, password string, useTLS bool) *SMTPProvider {
	return &SMTPProvider{host: host, port: port, username: username, password: password, useTLS: useTLS}
}

func (p *SMTPProvider) SendEmail(ctx context.Context, msg *communication.Email) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	payload := p.encode(msg)
	addr := net.JoinHostPort(p.host, strconv.Itoa(p.port))
	auth := smtp.PlainAuth("", p.username, p.password, p.host)

	// net/smtp has no context hooks; honor cancellation around the
	// blocking exchange the same way the SSH node does.
	done := make(chan error, 1)
	go func() {
		if p.useTLS {
			done <- p.deliverTLS(addr, auth, msg.From, msg.To, payload)
		} else {
			done <- smtp.SendMail(addr, auth, msg.From, msg.To, payload)
		}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("email: smtp: %w", err)
		}
	}
	return "", nil
}

// encode renders the RFC 5322 message: headers, blank line, body.
func (p *SMTPProvider) encode(msg *communication.Email) []byte {
	var b strings.Builder
	write := func(header, value string) {
		b.WriteString(header)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}
	write("From", msg.From)
	write("To", strings.Join(msg.To, ", "))
	write("Subject", msg.Subject)
	write("MIME-Version", "1.0")
	write("Content-Type", "text/plain; charset=UTF-8")
	b.WriteString("\r\n")
	b.WriteString(msg.Text)
	return []byte(b.String())
}

// deliverTLS speaks SMTP over an implicit-TLS connection, the mode
// providers expose on port 465.
func (p *SMTPProvider) deliverTLS(addr string, auth smtp.Auth, from string, to []string, payload []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: p.host, MinVersion: tls.VersionTLS12})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, p.host)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
