package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/regolo-ai/regoloai-doc/internal/audio"
	"github.com/regolo-ai/regoloai-doc/internal/chat"
	"github.com/regolo-ai/regoloai-doc/internal/client"
	"github.com/regolo-ai/regoloai-doc/internal/config"
	"github.com/regolo-ai/regoloai-doc/internal/image"
	"github.com/regolo-ai/regoloai-doc/internal/metrics"
	"github.com/regolo-ai/regoloai-doc/internal/transcription"
)

const (
	serviceName    = "regolo-mock"
	serviceVersion = "1.0.0"

	maxUploadBytes = 32 << 20
	maxJSONBytes   = 1 << 20

	// 1x1 transparent PNG returned for every generated image
	placeholderPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="
)

var mockModels = []string{
	"mistralai/Mistral-7B-Instruct-v0.2",
	"meta-llama/Llama-3.3-70B-Instruct",
	"whisper-large-v3",
	"whisper-1",
	"stable-diffusion-xl-base-1.0",
}

// HTTPServer is a local stand-in for the hosted inference API. It serves the
// chat, transcription and image endpoints with canned responses.
type HTTPServer struct {
	server  *http.Server
	router  chi.Router
	logger  *slog.Logger
	config  config.MockConfig
	metrics *metrics.Metrics

	// Server state
	startTime time.Time
	requests  map[string]uint64
	mu        sync.RWMutex
}

// NewHTTPServer creates a new mock API server
func NewHTTPServer(cfg config.MockConfig, logger *slog.Logger, m *metrics.Metrics) *HTTPServer {
	h := &HTTPServer{
		logger:    logger,
		config:    cfg,
		metrics:   m,
		startTime: time.Now(),
		requests:  make(map[string]uint64),
	}

	h.router = h.setupRoutes()

	h.server = &http.Server{
		Addr:         cfg.GetAddr(),
		Handler:      h.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// Handler returns the router, for use with httptest
func (h *HTTPServer) Handler() http.Handler {
	return h.router
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.withMetrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found", "invalid_request_error")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "invalid_request_error")
	})

	r.Get("/health", h.handleHealth)

	// Prometheus metrics endpoint
	r.Handle("/metrics", h.metrics.Handler())

	// Inline group so the route pattern is known when requireToken rejects
	r.Group(func(r chi.Router) {
		r.Use(h.requireToken)
		r.Get("/v1/models", h.handleModels)
		r.Post("/v1/chat/completions", h.handleChatCompletions)
		r.Post("/v1/models/{model}/transcriptions", h.handleTranscriptions)
		r.Post("/v1/audio/transcriptions", h.handleTranscriptions)
		r.Post("/v1/images/generations", h.handleImages)
	})

	return r
}

// withMetrics records metrics for every request, labelled by route pattern
func (h *HTTPServer) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		duration := time.Since(startTime).Seconds()
		h.metrics.RecordHTTPRequest(r.Method, endpoint, fmt.Sprintf("%d", status), duration)

		if status >= 400 {
			errorType := "client_error"
			if status >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	})
}

// requireToken enforces the configured bearer token when one is set
func (h *HTTPServer) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.config.Token != "" && r.Header.Get("Authorization") != client.Credential(h.config.Token).Header() {
			writeError(w, http.StatusUnauthorized, "invalid or missing bearer token", "authentication_error")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting mock API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping mock API server...")

	return h.server.Shutdown(ctx)
}

func (h *HTTPServer) countRequest(flow string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests[flow]++
}

// RequestCounts returns how many requests each flow has served
func (h *HTTPServer) RequestCounts() map[string]uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	counts := make(map[string]uint64, len(h.requests))
	for k, v := range h.requests {
		counts[k] = v
	}
	return counts
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    serviceName,
			"version": serviceVersion,
		},
		"requests": h.RequestCounts(),
	}

	writeJSON(w, http.StatusOK, health)
}

// handleModels implements GET /v1/models
func (h *HTTPServer) handleModels(w http.ResponseWriter, r *http.Request) {
	data := make([]map[string]string, 0, len(mockModels))
	for _, id := range mockModels {
		data = append(data, map[string]string{"id": id, "object": "model", "owned_by": serviceName})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"object": "list", "data": data})
}

// handleChatCompletions implements POST /v1/chat/completions by echoing the last user message
func (h *HTTPServer) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	h.countRequest(chat.Flow)

	var req chat.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "invalid_request_error")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "invalid_request_error")
		return
	}

	var last string
	for _, m := range req.Messages {
		if m.Role == "user" {
			last = m.Content
		}
	}
	content := "Echo: " + last

	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += len(strings.Fields(m.Content))
	}
	completionTokens := len(strings.Fields(content))

	h.logger.Debug("Chat completion",
		slog.String("model", req.Model),
		slog.Int("messages", len(req.Messages)),
	)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":      "chatcmpl-" + middleware.GetReqID(r.Context()),
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   req.Model,
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"message":       chat.Message{Role: "assistant", Content: content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
		},
	})
}

// handleTranscriptions implements the multipart transcription endpoints
func (h *HTTPServer) handleTranscriptions(w http.ResponseWriter, r *http.Request) {
	h.countRequest(transcription.Flow)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "error parsing multipart form: "+err.Error(), "invalid_request_error")
		return
	}

	model := r.FormValue("model")
	if model == "" {
		model = chi.URLParam(r, "model")
	}
	if model == "" {
		writeError(w, http.StatusBadRequest, "model field is required", "invalid_request_error")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required", "invalid_request_error")
		return
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "error reading audio file", "server_error")
		return
	}

	contentType := audio.ContentType(header.Filename, audioData)
	language := r.FormValue("language")
	if language == "" {
		language = "en"
	}

	var duration float64
	if contentType == "audio/wav" {
		if err := audio.ValidateWAV(audioData); err != nil {
			writeError(w, http.StatusBadRequest, "invalid WAV file: "+err.Error(), "invalid_request_error")
			return
		}
		if pcm, format, err := audio.DecodeWAV(audioData); err == nil {
			duration = float64(len(pcm)) / float64(2*format.SampleRate*format.Channels)
		}
	}

	h.logger.Debug("Transcription request",
		slog.String("model", model),
		slog.String("filename", header.Filename),
		slog.Int("audio_bytes", len(audioData)),
		slog.String("content_type", contentType),
	)

	text := fmt.Sprintf("Transcribed %d bytes of %s audio with %s.", len(audioData), contentType, model)
	response := map[string]interface{}{"text": text}

	if r.FormValue("response_format") == "verbose_json" {
		response["task"] = "transcribe"
		response["language"] = language
		response["duration"] = duration
		response["segments"] = []map[string]interface{}{
			{"id": 0, "start": 0.0, "end": duration, "text": text},
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// handleImages implements POST /v1/images/generations
func (h *HTTPServer) handleImages(w http.ResponseWriter, r *http.Request) {
	h.countRequest(image.Flow)

	var req image.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "invalid_request_error")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "invalid_request_error")
		return
	}

	data := make([]map[string]string, 0, len(req.Prompts))
	for _, prompt := range req.Prompts {
		data = append(data, map[string]string{"revised_prompt": prompt, "b64_json": placeholderPNG})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"created": time.Now().Unix(),
		"data":    data,
	})
}

func decodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxJSONBytes))
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, errorType string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"message": message,
			"type":    errorType,
		},
	})
}
