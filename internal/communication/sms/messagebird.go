package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/flowgraph/runtime/internal/communication"
)

const messageBirdEndpoint = "https://rest.messagebird.com/messages"

// MessageBirdProvider delivers through MessageBird's REST messages
// endpoint. No SDK: the API is one authenticated JSON POST.
type MessageBirdProvider struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

func NewMessageBirdProvider(apiKey string) *MessageBirdProvider {
	return &MessageBirdProvider{
		apiKey:   apiKey,
		endpoint: messageBirdEndpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *MessageBirdProvider) SendSMS(ctx context.Context, msg *communication.SMS) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	payload, err := json.Marshal(map[string]interface{}{
		"originator": msg.From,
		"recipients": []string{msg.To},
		"body":       msg.Text,
	})
	if err != nil {
		return "", fmt.Errorf("sms: messagebird: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("sms: messagebird: %w", err)
	}
	req.Header.Set("Authorization", "AccessKey "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sms: messagebird: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("sms: messagebird: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("sms: messagebird: status %d: %s", resp.StatusCode, body)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("sms: messagebird: decode response: %w", err)
	}
	return created.ID, nil
}
