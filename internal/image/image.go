package image

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/regolo-ai/regoloai-doc/internal/client"
)

// Flow is the label used for image requests in logs, spans and metrics
const Flow = "image"

// Request is an image generation request: one image per prompt
type Request struct {
	Prompts []string `json:"data"`
}

// Validate checks that at least one non-blank prompt is present
func (r *Request) Validate() error {
	if len(r.Prompts) == 0 {
		return &client.ConfigurationError{Field: "data", Reason: "at least one prompt is required"}
	}
	for i, p := range r.Prompts {
		if strings.TrimSpace(p) == "" {
			return &client.ConfigurationError{Field: "data", Reason: fmt.Sprintf("prompt %d is empty", i)}
		}
	}
	return nil
}

// Client sends image generation requests
type Client struct {
	api        *client.Client
	endpoint   string
	credential client.Credential
	logger     *slog.Logger
}

// NewClient creates an image client posting to endpoint
func NewClient(api *client.Client, endpoint string, credential client.Credential, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{api: api, endpoint: endpoint, credential: credential, logger: logger}
}

// BuildRequest validates req and builds the HTTP request without sending it
func (c *Client) BuildRequest(ctx context.Context, req *Request) (*http.Request, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image request: %w", err)
	}

	return client.NewJSONRequest(ctx, c.endpoint, c.credential, body)
}

// Generate sends req and returns the parsed response
func (c *Client) Generate(ctx context.Context, req *Request) (*client.Response, error) {
	httpReq, err := c.BuildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Sending image generation request", slog.Int("prompts", len(req.Prompts)))

	return c.api.Do(ctx, Flow, httpReq)
}
