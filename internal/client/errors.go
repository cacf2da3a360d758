package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ConfigurationError reports a missing or malformed input detected before
// any network call is attempted
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// TransportError reports a failure of the HTTP round trip itself
// (DNS, refused connection, timeout, cancelled context)
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError reports a successful response whose body is not valid JSON
type ParseError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: status %d: invalid JSON response (%d bytes): %v",
		e.StatusCode, len(e.Body), e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// RemoteError reports a non-2xx status returned by the service
type RemoteError struct {
	StatusCode int
	Status     string
	Message    string
	Body       []byte
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote error: %s: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("remote error: %s", e.Status)
}

// Error kinds returned by Kind
const (
	KindConfiguration = "configuration"
	KindTransport     = "transport"
	KindParse         = "parse"
	KindRemote        = "remote"
	KindUnknown       = "unknown"
)

// Kind classifies err into one of the error kinds, used for log attributes
// and metric labels
func Kind(err error) string {
	var (
		cfgErr       *ConfigurationError
		transportErr *TransportError
		parseErr     *ParseError
		remoteErr    *RemoteError
	)

	switch {
	case errors.As(err, &cfgErr):
		return KindConfiguration
	case errors.As(err, &transportErr):
		return KindTransport
	case errors.As(err, &parseErr):
		return KindParse
	case errors.As(err, &remoteErr):
		return KindRemote
	default:
		return KindUnknown
	}
}

// remoteMessage extracts a human readable message from common error body shapes:
// {"error": {"message": "..."}}, {"error": "..."}, {"detail": "..."}, {"message": "..."}
func remoteMessage(body []byte) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(truncate(string(body), 512))
	}

	if raw, ok := payload["error"]; ok {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}

	for _, key := range []string{"detail", "message"} {
		if raw, ok := payload[key]; ok {
			var s string
			if err := json.Unmarshal(raw, &s); err == nil && s != "" {
				return s
			}
			return string(raw)
		}
	}

	return ""
}

// truncate shortens s to at most n bytes without splitting a UTF-8 sequence
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
