// Package llm talks to the hosted chat-completion provider.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	groqEndpoint   = "https://api.groq.com/openai/v1/chat/completions"
	requestTimeout = 60 * time.Second
)

// ErrNoCredential indicates the provider API key is not configured.
var ErrNoCredential = errors.New("llm: api key not configured")

// Message is one entry of the ordered role/content context window.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider role names.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request is a single completion call.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// Client produces one text completion for a context window. Calls are
// synchronous and must not retry; a slow provider stalls only its own
// request.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// completionResponse is the subset of the provider response we read.
type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GroqClient calls the Groq OpenAI-compatible chat completions API.
type GroqClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewGroqClient constructs a GroqClient.
func NewGroqClient(apiKey string) *GroqClient {
	return &GroqClient{
		apiKey:     strings.TrimSpace(apiKey),
		endpoint:   groqEndpoint,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// Complete sends the context window and returns the first choice's text.
func (c *GroqClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoCredential
	}

	body, errMarshal := json.Marshal(req)
	if errMarshal != nil {
		return "", fmt.Errorf("llm: marshal request: %w", errMarshal)
	}

	httpReq, errReq := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if errReq != nil {
		return "", fmt.Errorf("llm: build request: %w", errReq)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, errDo := c.httpClient.Do(httpReq)
	if errDo != nil {
		return "", fmt.Errorf("llm: request: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("llm: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var parsed completionResponse
	if errDecode := json.NewDecoder(resp.Body).Decode(&parsed); errDecode != nil {
		return "", fmt.Errorf("llm: decode response: %w", errDecode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm: empty completion")
	}
	return parsed.Choices[0].Message.Content, nil
}
