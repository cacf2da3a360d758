package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/regolo-ai/regoloai-doc/internal/config"
	"github.com/regolo-ai/regoloai-doc/internal/metrics"
	"github.com/regolo-ai/regoloai-doc/internal/server"
)

// setupEnv starts the mock API and points every flow at it
func setupEnv(t *testing.T, token string) string {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mock := server.NewHTTPServer(config.MockConfig{Address: "127.0.0.1", Port: 8080, Token: token}, logger,
		metrics.NewMetrics(prometheus.NewRegistry()))
	ts := httptest.NewServer(mock.Handler())
	t.Cleanup(ts.Close)

	t.Setenv(config.EnvEndpoint, ts.URL+"/v1/chat/completions")
	t.Setenv(config.EnvImageEndpoint, ts.URL+"/v1/images/generations")
	t.Setenv(config.EnvTranscriptionEndpoint, ts.URL+"/v1/models/whisper-large-v3/transcriptions")
	t.Setenv(config.EnvToken, token)
	t.Setenv(config.EnvAPIKey, token)

	return ts.URL
}

// runCLI runs the CLI with an env file that does not exist
func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"-env-file", filepath.Join(t.TempDir(), "missing.env")}, args...)
	code := run(full, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunUsage(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "no command", args: nil, want: 2},
		{name: "unknown command", args: []string{"embed"}, want: 2},
		{name: "bad subcommand flag", args: []string{"chat", "-max-tokens", "many"}, want: 2},
		{name: "help", args: []string{"image", "-h"}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := runCLI(t, tt.args...)
			if code != tt.want {
				t.Errorf("Expected exit code %d, got %d", tt.want, code)
			}
		})
	}
}

func TestRunChat(t *testing.T) {
	setupEnv(t, "secret")

	code, stdout, stderr := runCLI(t, "chat")
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d: %s", code, stderr)
	}

	var reply map[string]interface{}
	if err := json.Unmarshal([]byte(stdout), &reply); err != nil {
		t.Fatalf("Expected JSON on stdout: %v\n%s", err, stdout)
	}
	if reply["object"] != "chat.completion" {
		t.Errorf("Unexpected response: %s", stdout)
	}
	if !strings.HasSuffix(stdout, "}\n") || !strings.Contains(stdout, "\n  \"") {
		t.Errorf("Expected indented JSON followed by a newline, got %q", stdout)
	}
}

func TestRunChatContentOnly(t *testing.T) {
	setupEnv(t, "secret")

	code, stdout, stderr := runCLI(t, "chat", "-content-only", "-system", "Be brief", "-max-tokens", "50")
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d: %s", code, stderr)
	}
	if stdout != "Echo: Tell me about Rome in a concise manner\n" {
		t.Errorf("Unexpected output: %q", stdout)
	}
}

func TestRunChatMissingToken(t *testing.T) {
	setupEnv(t, "")

	code, stdout, stderr := runCLI(t, "chat")
	if code != 1 {
		t.Fatalf("Expected exit code 1, got %d", code)
	}
	if stdout != "" {
		t.Errorf("Expected nothing on stdout, got %q", stdout)
	}
	if !strings.Contains(stderr, "error_type=configuration") {
		t.Errorf("Expected configuration error in log, got %s", stderr)
	}
}

func TestRunChatRemoteError(t *testing.T) {
	setupEnv(t, "secret")
	t.Setenv(config.EnvToken, "wrong")

	code, _, stderr := runCLI(t, "chat")
	if code != 1 {
		t.Fatalf("Expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr, "error_type=remote") || !strings.Contains(stderr, "status_code=401") {
		t.Errorf("Expected remote error with status 401 in log, got %s", stderr)
	}
}

func TestRunTranscribe(t *testing.T) {
	setupEnv(t, "key")

	path := filepath.Join(t.TempDir(), "file.mp3")
	if err := os.WriteFile(path, []byte("ID3\x03\x00\x00\x00\x00\x00\x00frames"), 0644); err != nil {
		t.Fatalf("Failed to write audio file: %v", err)
	}

	code, stdout, stderr := runCLI(t, "transcribe", "-file", path, "-language", "it")
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d: %s", code, stderr)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("Expected JSON on stdout: %v", err)
	}
	if !strings.Contains(result.Text, "audio/mpeg") || !strings.Contains(result.Text, "whisper-large-v3") {
		t.Errorf("Unexpected transcript: %s", result.Text)
	}
}

func TestRunTranscribeMissingFile(t *testing.T) {
	setupEnv(t, "key")

	code, _, stderr := runCLI(t, "transcribe", "-file", filepath.Join(t.TempDir(), "absent.mp3"))
	if code != 1 {
		t.Fatalf("Expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr, "error_type=configuration") {
		t.Errorf("Expected configuration error in log, got %s", stderr)
	}
}

func TestRunImage(t *testing.T) {
	setupEnv(t, "secret")

	code, stdout, stderr := runCLI(t, "image", "-prompt", "Cat playing the piano", "-prompt", "Dog on a bike")
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d: %s", code, stderr)
	}

	var result struct {
		Data []map[string]string `json:"data"`
	}
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("Expected JSON on stdout: %v", err)
	}
	if len(result.Data) != 2 {
		t.Errorf("Expected 2 images, got %d", len(result.Data))
	}
}

func TestRunWritesMetricsTextfile(t *testing.T) {
	setupEnv(t, "secret")

	dir := t.TempDir()
	textfile := filepath.Join(dir, "regolo.prom")
	configPath := filepath.Join(dir, "config.yaml")
	configYAML := "logging:\n  level: debug\n  format: json\nmetrics:\n  textfile: " + textfile + "\n"
	if err := os.WriteFile(configPath, []byte(configYAML), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	code, _, stderr := runCLI(t, "-config", configPath, "chat")
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d: %s", code, stderr)
	}
	if !strings.Contains(stderr, `"msg":"Sending chat request"`) {
		t.Errorf("Expected JSON debug logs on stderr, got %s", stderr)
	}

	data, err := os.ReadFile(textfile)
	if err != nil {
		t.Fatalf("Expected metrics textfile: %v", err)
	}
	if !strings.Contains(string(data), `regolo_request_successes_total{flow="chat"} 1`) {
		t.Errorf("Textfile missing chat success counter:\n%s", data)
	}
}
