package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/regolo-ai/regoloai-doc/internal/client"
)

// Flow is the label used for chat requests in logs, spans and metrics
const Flow = "chat"

// Message is a single role/content pair
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserMessage returns a message with the user role
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// SystemMessage returns a message with the system role
func SystemMessage(content string) Message {
	return Message{Role: "system", Content: content}
}

// Request is a chat completion request body
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

// Validate checks the request before anything is sent
func (r *Request) Validate() error {
	if r.Model == "" {
		return &client.ConfigurationError{Field: "model", Reason: "model cannot be empty"}
	}

	if len(r.Messages) == 0 {
		return &client.ConfigurationError{Field: "messages", Reason: "at least one message is required"}
	}

	for i, m := range r.Messages {
		if m.Role == "" {
			return &client.ConfigurationError{Field: "messages", Reason: fmt.Sprintf("message %d has an empty role", i)}
		}
	}

	if r.MaxTokens != nil && *r.MaxTokens < 1 {
		return &client.ConfigurationError{Field: "max_tokens", Reason: fmt.Sprintf("must be at least 1, got %d", *r.MaxTokens)}
	}

	return nil
}

// Body returns the exact JSON sent on the wire
func (r *Request) Body() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}
	return data, nil
}

// Client sends chat completion requests
type Client struct {
	api        *client.Client
	endpoint   string
	credential client.Credential
	logger     *slog.Logger
}

// NewClient creates a chat client posting to endpoint with the given bearer credential
func NewClient(api *client.Client, endpoint string, credential client.Credential, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		api:        api,
		endpoint:   endpoint,
		credential: credential,
		logger:     logger,
	}
}

// BuildRequest validates req and builds the HTTP request without sending it
func (c *Client) BuildRequest(ctx context.Context, req *Request) (*http.Request, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := req.Body()
	if err != nil {
		return nil, err
	}

	return client.NewJSONRequest(ctx, c.endpoint, c.credential, body)
}

// Complete sends req and returns the parsed response
func (c *Client) Complete(ctx context.Context, req *Request) (*client.Response, error) {
	httpReq, err := c.BuildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Sending chat request",
		slog.String("model", req.Model),
		slog.Int("messages", len(req.Messages)),
	)

	return c.api.Do(ctx, Flow, httpReq)
}

// Reply is the subset of an OpenAI-compatible chat completion response used
// to extract the assistant text
type Reply struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int     `json:"index"`
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

// Content returns the first choice's message content, or "" when there is none
func (r *Reply) Content() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}
