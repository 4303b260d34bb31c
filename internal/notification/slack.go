// Package notification posts workflow run outcomes to Slack. The
// SlackMessage node sends per-record messages through it, and the CLI's
// run reporter posts one summary per finished workflow.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SlackConfig configures one webhook target.
type SlackConfig struct {
	WebhookURL string
	// MaxRetries bounds re-sends after a retryable failure; 0 means the
	// default of 3.
	MaxRetries int
	// RetryDelay is the pause between attempts; 0 means 1s.
	RetryDelay time.Duration
	// Timeout bounds each HTTP attempt; 0 means 30s.
	Timeout time.Duration
}

// SlackMessage is one outgoing webhook payload: plain text, with
// optional Block Kit blocks carried as loose JSON the same way records
// carry structure — the engine has no reason to model Slack's block
// vocabulary as types it never inspects.
type SlackMessage struct {
	Text   string                   `json:"text"`
	Blocks []map[string]interface{} `json:"blocks,omitempty"`
}

// SlackNotifier delivers messages to one incoming-webhook URL with
// bounded retries on transient failures.
type SlackNotifier struct {
	cfg    SlackConfig
	client *http.Client
}

func NewSlackNotifier(cfg SlackConfig) (*SlackNotifier, error) {
	if !strings.HasPrefix(cfg.WebhookURL, "http://") && !strings.HasPrefix(cfg.WebhookURL, "https://") {
		return nil, fmt.Errorf("notification: slack webhook url must be http(s), got %q", cfg.WebhookURL)
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SlackNotifier{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

// Send posts msg, retrying on transport errors and retryable statuses
// (429 and 5xx) up to MaxRetries times. A 4xx other than 429 means the
// payload or webhook is wrong and retrying cannot help.
func (s *SlackNotifier) Send(ctx context.Context, msg SlackMessage) error {
	if msg.Text == "" && len(msg.Blocks) == 0 {
		return fmt.Errorf("notification: slack message is empty")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notification: encode slack message: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.cfg.RetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		retryable, err := s.post(ctx, payload)
		if err == nil {
			return nil
		}
		if !retryable {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("notification: slack send gave up after %d attempts: %w", s.cfg.MaxRetries+1, lastErr)
}

// post performs one webhook POST and classifies any failure as
// retryable or not.
func (s *SlackNotifier) post(ctx context.Context, payload []byte) (retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("notification: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return true, fmt.Errorf("notification: slack post: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return true, fmt.Errorf("notification: slack returned status %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("notification: slack rejected the message with status %d", resp.StatusCode)
	}
}

// section is a Block Kit markdown section.
func section(markdown string) map[string]interface{} {
	return map[string]interface{}{
		"type": "section",
		"text": map[string]interface{}{"type": "mrkdwn", "text": markdown},
	}
}

// BuildWorkflowExecutionMessage summarizes one workflow run for the
// CLI's -slack-webhook-url reporter. executionURL, when non-empty, is
// appended as a link; the engine itself has no dashboard, so the host
// decides whether there is anywhere to link to.
func BuildWorkflowExecutionMessage(workflowName, status, errorMsg, executionURL string) SlackMessage {
	marker := ":white_check_mark:"
	if status != "completed" {
		marker = ":x:"
	}

	blocks := []map[string]interface{}{
		section(fmt.Sprintf("%s *%s* finished with status *%s*", marker, workflowName, status)),
	}
	if errorMsg != "" {
		blocks = append(blocks, section(fmt.Sprintf("```%s```", errorMsg)))
	}
	if executionURL != "" {
		blocks = append(blocks, section(fmt.Sprintf("<%s|View execution>", executionURL)))
	}

	return SlackMessage{
		Text:   fmt.Sprintf("%s workflow %s: %s", marker, status, workflowName),
		Blocks: blocks,
	}
}
