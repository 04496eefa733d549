package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/johnquangdev/meeting-copilot/pkg/config"
)

// Message is one chat turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatRequest is the shape for chat completion requests
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

// ChatResponse is a minimal non-streaming response shape
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// StatusError is returned when the completion server answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("completion server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("completion server returned status %d: %s", e.StatusCode, e.Body)
}

// CompletionClient talks to an OpenAI-compatible chat completion server
type CompletionClient struct {
	apiKey       string
	baseURL      string
	model        string
	probeTimeout time.Duration
	client       *http.Client
}

// NewCompletionClient creates a client from the LLM section of the config.
// Streaming responses are never cut by a client timeout; only Probe is bounded.
func NewCompletionClient(cfg config.LLMConfig) *CompletionClient {
	timeout := cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	model := cfg.Model
	if model == "" {
		model = "local-model"
	}
	return &CompletionClient{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		model:        model,
		probeTimeout: timeout,
		client:       &http.Client{},
	}
}

// Probe checks that the server is reachable and returns the model id to use.
// The first advertised model wins; the configured model is the fallback.
func (c *CompletionClient) Probe(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return "", err
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach completion server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &StatusError{StatusCode: resp.StatusCode}
	}

	var mr modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil || len(mr.Data) == 0 || mr.Data[0].ID == "" {
		return c.model, nil
	}
	return mr.Data[0].ID, nil
}

// Stream issues a streaming completion and returns a reader over its tokens.
// The caller must Close the reader.
func (c *CompletionClient) Stream(ctx context.Context, reqBody ChatRequest) (*StreamReader, error) {
	reqBody.Stream = true
	resp, err := c.post(ctx, reqBody)
	if err != nil {
		return nil, err
	}
	return NewStreamReader(resp.Body), nil
}

// Complete issues a non-streaming completion and returns the assistant content
func (c *CompletionClient) Complete(ctx context.Context, reqBody ChatRequest) (string, error) {
	reqBody.Stream = false
	resp, err := c.post(ctx, reqBody)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var cr ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("empty response from completion server")
	}
	return cr.Choices[0].Message.Content, nil
}

func (c *CompletionClient) post(ctx context.Context, reqBody ChatRequest) (*http.Response, error) {
	if reqBody.Model == "" {
		reqBody.Model = c.model
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}
	return resp, nil
}

func (c *CompletionClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
