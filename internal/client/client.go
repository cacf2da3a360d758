package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/regolo-ai/regoloai-doc/internal/metrics"
)

const (
	tracerName       = "github.com/regolo-ai/regoloai-doc/internal/client"
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "regoloai-doc/1.0"

	// maxResponseBytes bounds how much of a response body is read into memory
	maxResponseBytes = 32 << 20
)

// Client sends authenticated requests to the inference API and parses
// the JSON responses
type Client struct {
	config     Config
	httpClient *http.Client
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	logger     *slog.Logger
}

// Config contains HTTP client configuration
type Config struct {
	Timeout   time.Duration
	UserAgent string
}

// Option customizes a Client
type Option func(*Client)

// WithMetrics records request metrics on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTracer replaces the tracer obtained from the global provider
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// WithLogger sets the logger used for request diagnostics
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new API client
func NewClient(config Config, opts ...Option) *Client {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.UserAgent == "" {
		config.UserAgent = defaultUserAgent
	}

	c := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		tracer:     otel.Tracer(tracerName),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Response is a successful JSON response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       json.RawMessage
}

// Decode unmarshals the response body into v
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &ParseError{StatusCode: r.StatusCode, Body: r.Body, Err: err}
	}
	return nil
}

// Value returns the parsed response as generic JSON values
func (r *Response) Value() (any, error) {
	var v any
	if err := r.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// WriteIndented prints the response body as indented JSON followed by a newline
func (r *Response) WriteIndented(w io.Writer) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(r.Body), "", "  "); err != nil {
		return &ParseError{StatusCode: r.StatusCode, Body: r.Body, Err: err}
	}
	buf.WriteByte('\n')

	_, err := buf.WriteTo(w)
	return err
}

// Do sends req and returns the parsed response. flow names the calling flow
// in spans, logs and metrics. The request is sent exactly once.
func (c *Client) Do(ctx context.Context, flow string, req *http.Request) (*Response, error) {
	ctx, span := c.tracer.Start(ctx, "regolo."+flow,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("regolo.flow", flow),
			attribute.String("http.request.method", req.Method),
			attribute.String("server.address", req.URL.Host),
			attribute.String("url.path", req.URL.Path),
		),
	)
	defer span.End()

	req = req.WithContext(ctx)
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	startTime := time.Now()
	c.metrics.RecordRequest(flow, req.ContentLength)

	c.logger.Debug("Sending request",
		slog.String("flow", flow),
		slog.String("method", req.Method),
		slog.String("url", req.URL.String()),
		slog.Int64("content_length", req.ContentLength),
	)

	response, err := c.roundTrip(req)
	duration := time.Since(startTime)

	if response != nil {
		span.SetAttributes(attribute.Int("http.response.status_code", response.StatusCode))
	}
	if err != nil {
		kind := Kind(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		c.metrics.RecordFailure(flow, kind, duration.Seconds())
		return nil, err
	}

	c.metrics.RecordSuccess(flow, duration.Seconds(), len(response.Body))
	c.logger.Debug("Received response",
		slog.String("flow", flow),
		slog.Int("status", response.StatusCode),
		slog.Int("bytes", len(response.Body)),
		slog.Duration("duration", duration),
	)

	return response, nil
}

// roundTrip performs the HTTP call. The returned Response is non-nil
// whenever a status code was received, even alongside an error.
func (c *Client) roundTrip(req *http.Request) (*Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	return HandleResponse(resp)
}

// HandleResponse reads and classifies an HTTP response: non-2xx statuses become
// RemoteError, a 2xx body that is not valid JSON becomes ParseError.
func HandleResponse(resp *http.Response) (*Response, error) {
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Response{StatusCode: resp.StatusCode, Header: resp.Header},
			&TransportError{Method: requestMethod(resp), URL: requestURL(resp), Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	response := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}

	// Check HTTP status
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return response, &RemoteError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Message:    remoteMessage(respBody),
			Body:       respBody,
		}
	}

	// Parse response
	var v any
	if err := json.Unmarshal(respBody, &v); err != nil {
		return response, &ParseError{StatusCode: resp.StatusCode, Body: respBody, Err: err}
	}

	return response, nil
}

func requestMethod(resp *http.Response) string {
	if resp.Request == nil {
		return ""
	}
	return resp.Request.Method
}

func requestURL(resp *http.Response) string {
	if resp.Request == nil || resp.Request.URL == nil {
		return ""
	}
	return resp.Request.URL.String()
}
