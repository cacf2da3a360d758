package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/regolo-ai/regoloai-doc/internal/config"
)

func TestNewOutputs(t *testing.T) {
	tests := []struct {
		name       string
		output     string
		wantStdout bool
		wantStderr bool
	}{
		{name: "default is stderr", output: "", wantStderr: true},
		{name: "stderr", output: "stderr", wantStderr: true},
		{name: "stdout", output: "stdout", wantStdout: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			logger, closeLog := New(config.LoggingConfig{Level: "info", Format: "text", Output: tt.output}, &stdout, &stderr)
			defer closeLog()

			logger.Info("hello")

			if got := stdout.Len() > 0; got != tt.wantStdout {
				t.Errorf("stdout written = %v, want %v", got, tt.wantStdout)
			}
			if got := stderr.Len() > 0; got != tt.wantStderr {
				t.Errorf("stderr written = %v, want %v", got, tt.wantStderr)
			}
		})
	}
}

func TestNewLevelAndFormat(t *testing.T) {
	var stderr bytes.Buffer
	logger, closeLog := New(config.LoggingConfig{Level: "warn", Format: "json"}, nil, &stderr)
	defer closeLog()

	logger.Info("hidden")
	logger.Warn("visible")

	out := stderr.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected info message to be filtered, got %s", out)
	}
	if !strings.Contains(out, `"msg":"visible"`) {
		t.Errorf("Expected JSON warn message, got %s", out)
	}
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regolo.log")
	var stderr bytes.Buffer

	logger, closeLog := New(config.LoggingConfig{Level: "debug", Format: "text", Output: path}, nil, &stderr)
	logger.Debug("to file")
	closeLog()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("Expected message in log file, got %s", data)
	}
	if stderr.Len() != 0 {
		t.Errorf("Expected nothing on stderr, got %s", stderr.String())
	}
}
