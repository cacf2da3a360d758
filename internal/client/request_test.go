package client

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
)

func TestCredentialHeader(t *testing.T) {
	tokens := []string{"abc", "sk-123456", "a b", "tok=="}

	for _, token := range tokens {
		if got := Credential(token).Header(); got != "Bearer "+token {
			t.Errorf("Expected 'Bearer %s', got '%s'", token, got)
		}
	}
}

func TestCredentialValidate(t *testing.T) {
	tests := []struct {
		name  string
		token string
		valid bool
	}{
		{name: "valid token", token: "sk-abc", valid: true},
		{name: "empty token", token: "", valid: false},
		{name: "whitespace token", token: "   ", valid: false},
		{name: "unexpanded placeholder", token: "$REGOLOAI_API_KEY", valid: false},
		{name: "trailing newline", token: "tok\n", valid: false},
		{name: "leading space", token: " tok", valid: false},
		{name: "inner space", token: "sk abc", valid: false},
		{name: "control character", token: "sk\x00abc", valid: false},
		{name: "tab", token: "sk\tabc", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Credential(tt.token).Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid credential but got error: %v", err)
			}
			if !tt.valid {
				var cfgErr *ConfigurationError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("Expected ConfigurationError, got %v", err)
				}
				if cfgErr.Field != "credential" {
					t.Errorf("Expected field credential, got %s", cfgErr.Field)
				}
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		valid bool
	}{
		{name: "https endpoint", url: "https://api.regolo.ai/v1/chat/completions", valid: true},
		{name: "http localhost", url: "http://localhost:8080/v1/chat/completions", valid: true},
		{name: "empty", url: "", valid: false},
		{name: "relative path", url: "/v1/chat/completions", valid: false},
		{name: "unsupported scheme", url: "ftp://example.com/file", valid: false},
		{name: "missing host", url: "https:///path", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.valid && err != nil {
				t.Errorf("Expected valid URL but got error: %v", err)
			}
			if !tt.valid && Kind(err) != KindConfiguration {
				t.Errorf("Expected configuration error, got %v", err)
			}
		})
	}
}

func TestNewJSONRequestHeaders(t *testing.T) {
	req, err := NewJSONRequest(context.Background(), "https://api.regolo.ai/v1/chat/completions",
		Credential("secret"), map[string]any{"model": "m"})
	if err != nil {
		t.Fatalf("NewJSONRequest failed: %v", err)
	}

	if req.Method != http.MethodPost {
		t.Errorf("Expected POST, got %s", req.Method)
	}

	expected := map[string]string{
		"Content-Type":  "application/json",
		"Accept":        "application/json",
		"Authorization": "Bearer secret",
	}
	for key, value := range expected {
		if got := req.Header.Get(key); got != value {
			t.Errorf("Expected header %s=%s, got %s", key, value, got)
		}
	}

	body, _ := io.ReadAll(req.Body)
	if string(body) != `{"model":"m"}` {
		t.Errorf("Unexpected body: %s", body)
	}
}

func TestNewJSONRequestRawBody(t *testing.T) {
	raw := []byte(`{"data":["x"]}`)
	req, err := NewJSONRequest(context.Background(), "http://localhost/v1", Credential("t"), raw)
	if err != nil {
		t.Fatalf("NewJSONRequest failed: %v", err)
	}

	body, _ := io.ReadAll(req.Body)
	if string(body) != string(raw) {
		t.Errorf("Expected raw body to be sent unchanged, got %s", body)
	}
}

func TestNewRequestConfigurationErrors(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		cred      Credential
		wantField string
	}{
		{name: "missing url", url: "", cred: "tok", wantField: "url"},
		{name: "missing credential", url: "https://api.regolo.ai/v1", cred: "", wantField: "credential"},
		{name: "both missing reports url", url: "", cred: "", wantField: "url"},
		{name: "credential with trailing newline", url: "https://api.regolo.ai/v1", cred: "tok\n", wantField: "credential"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewJSONRequest(context.Background(), tt.url, tt.cred, map[string]string{})
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Expected ConfigurationError from JSON builder, got %v", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("Expected field %s, got %s", tt.wantField, cfgErr.Field)
			}

			_, err = NewMultipartRequest(context.Background(), tt.url, tt.cred, &Form{})
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Expected ConfigurationError from multipart builder, got %v", err)
			}
		})
	}
}

func TestNewMultipartRequest(t *testing.T) {
	form := &Form{}
	form.AddField("model", "whisper-1")
	form.AddField("language", "it")
	form.AddFile("file", "file.mp3", "audio/mpeg", strings.NewReader("ID3\x03binary-audio"))

	req, err := NewMultipartRequest(context.Background(),
		"https://api.regolo.ai/v1/models/whisper-large-v3/transcriptions", Credential("key"), form)
	if err != nil {
		t.Fatalf("NewMultipartRequest failed: %v", err)
	}

	if got := req.Header.Get("Authorization"); got != "Bearer key" {
		t.Errorf("Expected 'Bearer key', got '%s'", got)
	}

	mediaType, params, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if err != nil {
		t.Fatalf("Invalid content type: %v", err)
	}
	if mediaType != "multipart/form-data" {
		t.Fatalf("Expected multipart/form-data, got %s", mediaType)
	}

	reader := multipart.NewReader(req.Body, params["boundary"])

	var names []string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart failed: %v", err)
		}
		data, _ := io.ReadAll(part)
		names = append(names, part.FormName())

		switch part.FormName() {
		case "model":
			if string(data) != "whisper-1" {
				t.Errorf("Expected model whisper-1, got %s", data)
			}
		case "file":
			if part.FileName() != "file.mp3" {
				t.Errorf("Expected filename file.mp3, got %s", part.FileName())
			}
			if ct := part.Header.Get("Content-Type"); ct != "audio/mpeg" {
				t.Errorf("Expected audio/mpeg, got %s", ct)
			}
			if string(data) != "ID3\x03binary-audio" {
				t.Errorf("File content mismatch: %q", data)
			}
		}
	}

	want := []string{"model", "language", "file"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("Expected part order %v, got %v", want, names)
	}
}

func TestFormDefaultFileType(t *testing.T) {
	form := &Form{}
	form.AddFile("file", `odd"name.bin`, "", strings.NewReader("x"))

	body, contentType, err := form.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	_, params, _ := mime.ParseMediaType(contentType)
	part, err := multipart.NewReader(body, params["boundary"]).NextPart()
	if err != nil {
		t.Fatalf("NextPart failed: %v", err)
	}
	if ct := part.Header.Get("Content-Type"); ct != "application/octet-stream" {
		t.Errorf("Expected octet-stream default, got %s", ct)
	}
	if part.FileName() != `odd"name.bin` {
		t.Errorf("Expected escaped filename to round trip, got %s", part.FileName())
	}
}
