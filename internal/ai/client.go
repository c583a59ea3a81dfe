// Package ai implements av.AIGateway on an OpenAI-compatible chat
// completions endpoint.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"academic-vault/internal/av"
	"academic-vault/internal/config"
	"academic-vault/internal/model"
)

// ErrEmptyResponse is returned when the endpoint answers without any text.
var ErrEmptyResponse = errors.New("empty response from ai gateway")

// Client calls POST {BaseURL}/chat/completions.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	model   string
	logger  av.Logger
}

var _ av.AIGateway = (*Client)(nil)

// NewClient creates a client. httpClient may be nil for http.DefaultClient.
func NewClient(httpClient *http.Client, baseURL, apiKey, model string, logger av.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = av.NewNopLogger()
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		logger:  logger,
	}
}

// NewClientFromConfig creates a client from the [ai] config section.
func NewClientFromConfig(cfg config.AIConfig, logger av.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base_url required for ai gateway")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model required for ai gateway")
	}
	timeout, err := cfg.RequestTimeout()
	if err != nil {
		return nil, err
	}
	return NewClient(&http.Client{Timeout: timeout}, cfg.BaseURL, cfg.APIKey, cfg.Model, logger), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type jsonSchema struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict bool            `json:"strict"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Stream         bool            `json:"stream"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *Client) Generate(ctx context.Context, req av.GenerateRequest) (string, error) {
	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("sending ai request", "model", c.model, "messages", len(req.Messages), "structured", req.Schema != nil)
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("calling ai gateway: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading ai response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ai gateway returned status %d: %s", resp.StatusCode, errorMessage(data))
	}

	var out chatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decoding ai response: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return out.Choices[0].Message.Content, nil
}

func (c *Client) buildRequest(req av.GenerateRequest) chatRequest {
	messages := make([]chatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, chatMessage{Role: roleName(m.Role), Content: m.Content})
	}

	out := chatRequest{Model: c.model, Messages: messages}
	if req.Schema != nil {
		name := req.SchemaName
		if name == "" {
			name = "response"
		}
		out.ResponseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: &jsonSchema{Name: name, Schema: req.Schema, Strict: false},
		}
	}
	return out
}

func roleName(role model.ChatRole) string {
	if role == model.ChatRoleModel {
		return "assistant"
	}
	return "user"
}

func errorMessage(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return msg
}
