package transcription

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/regolo-ai/regoloai-doc/internal/audio"
	"github.com/regolo-ai/regoloai-doc/internal/client"
)

// Flow is the label used for transcription requests in logs, spans and metrics
const Flow = "transcription"

// Client provides transcription API requests
type Client struct {
	api    *client.Client
	config Config
	logger *slog.Logger
}

// Config contains transcription client configuration
type Config struct {
	Endpoint       string
	APIKey         string
	ResponseFormat string // "json" or "verbose_json"; omitted from the form when empty
}

// Request represents a transcription request. Either FilePath or Audio must be set.
type Request struct {
	Model string

	// FilePath is read from disk when Audio is nil
	FilePath string

	// Audio and Filename provide the file content directly
	Audio    io.Reader
	Filename string

	// PCM, when set, marks the input as raw 16-bit PCM to be wrapped in WAV
	PCM *audio.PCMFormat

	Language    string
	Prompt      string
	Temperature float32
}

// NewClient creates a new transcription client
func NewClient(api *client.Client, config Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		api:    api,
		config: config,
		logger: logger,
	}
}

// Transcribe sends an audio file for transcription
func (c *Client) Transcribe(ctx context.Context, request *Request) (*client.Response, error) {
	httpReq, err := c.BuildRequest(ctx, request)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Sending transcription request",
		slog.String("model", request.Model),
		slog.String("file", request.displayName()),
		slog.Int64("content_length", httpReq.ContentLength),
	)

	return c.api.Do(ctx, Flow, httpReq)
}

// BuildRequest validates the target and builds the multipart HTTP request.
// URL and credential are checked before the audio file is opened.
func (c *Client) BuildRequest(ctx context.Context, request *Request) (*http.Request, error) {
	if err := client.ValidateURL(c.config.Endpoint); err != nil {
		return nil, err
	}
	credential := client.Credential(c.config.APIKey)
	if err := credential.Validate(); err != nil {
		return nil, err
	}

	form, err := c.createForm(request)
	if err != nil {
		return nil, err
	}

	return client.NewMultipartRequest(ctx, c.config.Endpoint, credential, form)
}

// createForm creates the multipart form: model first, then optional fields, then the file
func (c *Client) createForm(request *Request) (*client.Form, error) {
	if request.Model == "" {
		return nil, &client.ConfigurationError{Field: "model", Reason: "model cannot be empty"}
	}

	filename, content, err := request.open()
	if err != nil {
		return nil, err
	}

	contentType := audio.ContentType(filename, sniff(content))
	var body io.Reader = content

	if request.PCM != nil {
		pcm, err := io.ReadAll(content)
		if err != nil {
			return nil, &client.ConfigurationError{Field: "file", Reason: "failed to read PCM audio", Err: err}
		}
		wav, err := audio.EncodeWAV(pcm, *request.PCM)
		if err != nil {
			return nil, &client.ConfigurationError{Field: "file", Reason: "failed to wrap PCM audio", Err: err}
		}
		filename = strings.TrimSuffix(filename, filepath.Ext(filename)) + ".wav"
		contentType = "audio/wav"
		body = bytes.NewReader(wav)

		if info, err := audio.GetWAVInfo(wav); err == nil {
			c.logger.Debug("Wrapped PCM audio",
				slog.Float64("duration_seconds", info.Duration),
				slog.Int("sample_rate", int(info.SampleRate)),
			)
		}
	}

	form := &client.Form{}
	form.AddField("model", request.Model)

	// Add optional request parameters
	if request.Language != "" {
		form.AddField("language", request.Language)
	}
	if request.Prompt != "" {
		form.AddField("prompt", request.Prompt)
	}
	if request.Temperature > 0 {
		form.AddField("temperature", strconv.FormatFloat(float64(request.Temperature), 'f', 2, 32))
	}
	if c.config.ResponseFormat != "" {
		form.AddField("response_format", c.config.ResponseFormat)
	}

	form.AddFile("file", filename, contentType, body)

	return form, nil
}

// open returns the upload filename and a reader over the audio content
func (r *Request) open() (string, *bufio.Reader, error) {
	if r.Audio != nil {
		name := r.Filename
		if name == "" {
			name = "audio"
		}
		return name, bufio.NewReader(r.Audio), nil
	}

	if r.FilePath == "" {
		return "", nil, &client.ConfigurationError{Field: "file", Reason: "audio file path is empty"}
	}

	data, err := os.ReadFile(r.FilePath)
	if err != nil {
		return "", nil, &client.ConfigurationError{Field: "file", Reason: fmt.Sprintf("failed to read audio file %s", r.FilePath), Err: err}
	}

	name := r.Filename
	if name == "" {
		name = filepath.Base(r.FilePath)
	}
	return name, bufio.NewReader(bytes.NewReader(data)), nil
}

func (r *Request) displayName() string {
	if r.Filename != "" {
		return r.Filename
	}
	return r.FilePath
}

// sniff peeks at the leading bytes without consuming them
func sniff(r *bufio.Reader) []byte {
	header, _ := r.Peek(audio.SniffLen)
	return header
}
