package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv
const (
	EnvEndpoint              = "ENDPOINT"
	EnvImageEndpoint         = "IMAGE_ENDPOINT"
	EnvTranscriptionEndpoint = "TRANSCRIPTION_ENDPOINT"
	EnvToken                 = "REGOLO_TOKEN"
	EnvAPIKey                = "REGOLOAI_API_KEY"
)

// DefaultTranscriptionEndpoint is the hosted transcription endpoint
const DefaultTranscriptionEndpoint = "https://api.regolo.ai/v1/models/whisper-large-v3/transcriptions"

// Config represents the complete client configuration
type Config struct {
	Chat          ChatConfig          `yaml:"chat"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Image         ImageConfig         `yaml:"image"`
	HTTP          HTTPConfig          `yaml:"http"`
	Logging       LoggingConfig       `yaml:"logging"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Mock          MockConfig          `yaml:"mock"`
}

// ChatConfig contains chat completion settings
type ChatConfig struct {
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token"`
	Model    string `yaml:"model"`
}

// TranscriptionConfig contains audio transcription settings
type TranscriptionConfig struct {
	Endpoint       string `yaml:"endpoint"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	ResponseFormat string `yaml:"response_format"`
	Language       string `yaml:"language"`
}

// ImageConfig contains image generation settings
type ImageConfig struct {
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token"`
}

// HTTPConfig contains outgoing HTTP client settings
type HTTPConfig struct {
	Timeout   int    `yaml:"timeout"` // seconds
	UserAgent string `yaml:"user_agent"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TelemetryConfig contains tracing configuration. Tracing is off when
// OTLPEndpoint is empty.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

// MetricsConfig contains metrics export configuration
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// MockConfig contains the mock inference server configuration
type MockConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Token   string `yaml:"token"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Chat: ChatConfig{
			Model: "mistralai/Mistral-7B-Instruct-v0.2",
		},
		Transcription: TranscriptionConfig{
			Endpoint:       DefaultTranscriptionEndpoint,
			Model:          "whisper-large-v3",
			ResponseFormat: "json",
		},
		HTTP: HTTPConfig{
			Timeout:   60,
			UserAgent: "regoloai-doc/1.0",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "regolo-cli",
		},
		Mock: MockConfig{
			Port:    8080,
			Address: "127.0.0.1",
		},
	}
}

// Load reads and parses the configuration file. An empty path yields the
// defaults. ${VAR} references in the file are expanded from the environment,
// and environment overrides are applied before validation.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		expanded := expandEnv(data)
		if err := yaml.Unmarshal(expanded, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// envRef matches ${NAME}; a bare $NAME is left untouched
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${NAME} references with the environment value, so a literal
// "$" inside a token or URL survives
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		return []byte(os.Getenv(string(ref[2 : len(ref)-1])))
	})
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides endpoints and credentials from the environment
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvEndpoint); v != "" {
		c.Chat.Endpoint = v
		c.Image.Endpoint = v
	}
	if v := os.Getenv(EnvImageEndpoint); v != "" {
		c.Image.Endpoint = v
	}
	if v := os.Getenv(EnvTranscriptionEndpoint); v != "" {
		c.Transcription.Endpoint = v
	}

	if v := os.Getenv(EnvToken); v != "" {
		c.Chat.Token = v
		c.Image.Token = v
		if c.Transcription.APIKey == "" {
			c.Transcription.APIKey = v
		}
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.Transcription.APIKey = v
	}
}

// Validate performs validation of the configuration. Endpoints and
// credentials are checked when a request is built, not here.
func (c *Config) Validate() error {
	if err := c.Chat.Validate(); err != nil {
		return fmt.Errorf("chat config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Mock.Validate(); err != nil {
		return fmt.Errorf("mock config: %w", err)
	}

	return nil
}

// Validate validates chat configuration
func (ch *ChatConfig) Validate() error {
	if ch.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if t.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}

	validFormats := map[string]bool{"json": true, "verbose_json": true}
	if !validFormats[t.ResponseFormat] {
		return fmt.Errorf("response_format must be 'json' or 'verbose_json', got '%s'", t.ResponseFormat)
	}

	return nil
}

// Validate validates HTTP client configuration
func (h *HTTPConfig) Validate() error {
	if h.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", h.Timeout)
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	// Output is stdout, stderr or a file path

	return nil
}

// Validate validates mock server configuration
func (m *MockConfig) Validate() error {
	if m.Port < 1 || m.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", m.Port)
	}

	if m.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	return nil
}

// GetTimeoutDuration returns the HTTP timeout as a time.Duration
func (h *HTTPConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(h.Timeout) * time.Second
}

// GetAddr returns the mock server listen address
func (m *MockConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", m.Address, m.Port)
}
