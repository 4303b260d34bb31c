package nodes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/flowgraph/runtime/internal/expression"
	"github.com/flowgraph/runtime/internal/record"
)

// AgentConfig configures Agent. SystemPromptTemplate and
// UserPromptTemplate are rendered per input record before the call;
// JSONSchema, when set, both switches the request into OpenAI's
// json_object response format and is appended to the system prompt as
// an instruction, matching the Rust original's agent_node.rs.
type AgentConfig struct {
	Model                string
	SystemPromptTemplate string
	UserPromptTemplate   string
	APIBase              string
	JSONSchema           record.Record
	HasJSONSchema        bool
}

type agentChatRequest struct {
	Model          string              `json:"model"`
	Messages       []agentChatMessage  `json:"messages"`
	ResponseFormat *agentResponseFormat `json:"response_format,omitempty"`
}

type agentChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type agentResponseFormat struct {
	Type string `json:"type"`
}

type agentChatResponse struct {
	Choices []struct {
		Message agentChatMessage `json:"message"`
	} `json:"choices"`
}

// Agent sends one chat-completion request per input record to an
// OpenAI-compatible endpoint (grounded on the teacher's
// internal/llm/providers/openai/client.go doRequest, stripped of its
// provider-registry plumbing since this node only ever talks to one
// configured endpoint) and forwards the response: the raw string
// content normally, or its parsed JSON when Cfg.HasJSONSchema requests
// structured output. A request or parse failure is reported inline as
// {"error": ..., "original_input": record}, matching HttpRequest.
type Agent struct {
	Cfg    AgentConfig
	APIKey string
	Client *http.Client
}

// NewAgent builds an Agent with a default client timeout, matching the
// teacher's NewClient default of 60 seconds.
func NewAgent(cfg AgentConfig, apiKey string) *Agent {
	return &Agent{
		Cfg:    cfg,
		APIKey: apiKey,
		Client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (a *Agent) Run(ctx context.Context, inputs []In, outputs []Out) error {
	for v := range inputs[0] {
		result, err := a.call(ctx, v)
		if err != nil {
			outputs[0] <- record.Map(map[string]record.Record{
				"error":          record.String(err.Error()),
				"original_input": v,
			})
			continue
		}
		outputs[0] <- result
	}
	return nil
}

func (a *Agent) call(ctx context.Context, in record.Record) (record.Record, error) {
	system := expression.Render(a.Cfg.SystemPromptTemplate, in)
	user := expression.Render(a.Cfg.UserPromptTemplate, in)

	var responseFormat *agentResponseFormat
	if a.Cfg.HasJSONSchema {
		schemaJSON, err := a.Cfg.JSONSchema.MarshalJSON()
		if err != nil {
			return record.Null, fmt.Errorf("agent: marshal json_schema: %w", err)
		}
		system = fmt.Sprintf("%s\n\nYou must respond with valid JSON matching this schema:\n%s", system, schemaJSON)
		responseFormat = &agentResponseFormat{Type: "json_object"}
	}

	apiReq := agentChatRequest{
		Model: a.Cfg.Model,
		Messages: []agentChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: responseFormat,
	}

	var apiResp agentChatResponse
	if err := a.doRequest(ctx, apiReq, &apiResp); err != nil {
		return record.Null, err
	}
	if len(apiResp.Choices) == 0 {
		return record.Null, fmt.Errorf("agent: no choices in response")
	}
	content := apiResp.Choices[0].Message.Content

	if !a.Cfg.HasJSONSchema {
		return record.String(content), nil
	}
	var parsed interface{}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return record.Null, fmt.Errorf("agent: response was not valid JSON: %w", err)
	}
	return record.FromNative(parsed), nil
}

func (a *Agent) doRequest(ctx context.Context, body agentChatRequest, result *agentChatResponse) error {
	base := a.Cfg.APIBase
	if base == "" {
		base = "https://api.openai.com/v1"
	}

	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("agent: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/chat/completions", bytes.NewReader(bodyJSON))
	if err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.Client.Do(req)
	if err != nil {
		return fmt.Errorf("agent: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("agent: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("agent: llm API error (status %d): %s", resp.StatusCode, respBody)
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("agent: parse response: %w", err)
	}
	return nil
}
