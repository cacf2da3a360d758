package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"unicode"
)

const (
	contentTypeJSON = "application/json"
	defaultFileType = "application/octet-stream"
)

// Credential is a bearer token sent in the Authorization header
type Credential string

// Validate rejects empty, whitespace-only and unexpanded placeholder tokens
// such as "$REGOLOAI_API_KEY", and tokens that cannot be sent as a header value
func (c Credential) Validate() error {
	token := strings.TrimSpace(string(c))
	if token == "" {
		return &ConfigurationError{Field: "credential", Reason: "bearer token is empty"}
	}
	if strings.HasPrefix(token, "$") {
		return &ConfigurationError{Field: "credential", Reason: fmt.Sprintf("bearer token %q looks like an unexpanded placeholder", token)}
	}
	if i := strings.IndexFunc(string(c), func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }); i >= 0 {
		return &ConfigurationError{Field: "credential", Reason: fmt.Sprintf("bearer token contains whitespace or a control character at byte %d", i)}
	}
	return nil
}

// Header returns the Authorization header value
func (c Credential) Header() string {
	return "Bearer " + string(c)
}

// ValidateURL checks that raw is an absolute http or https URL
func ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return &ConfigurationError{Field: "url", Reason: "endpoint URL is empty"}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return &ConfigurationError{Field: "url", Reason: "endpoint URL is malformed", Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ConfigurationError{Field: "url", Reason: fmt.Sprintf("unsupported scheme %q, expected http or https", u.Scheme)}
	}
	if u.Host == "" {
		return &ConfigurationError{Field: "url", Reason: "endpoint URL has no host"}
	}

	return nil
}

// Field is a plain string part of a multipart form
type Field struct {
	Name  string
	Value string
}

// File is a binary part of a multipart form
type File struct {
	FieldName   string
	Filename    string
	ContentType string
	Content     io.Reader
}

// Form is an ordered multipart/form-data body. Fields are written before files.
type Form struct {
	Fields []Field
	Files  []File
}

// AddField appends a string field
func (f *Form) AddField(name, value string) {
	f.Fields = append(f.Fields, Field{Name: name, Value: value})
}

// AddFile appends a file part
func (f *Form) AddFile(fieldName, filename, contentType string, content io.Reader) {
	f.Files = append(f.Files, File{
		FieldName:   fieldName,
		Filename:    filename,
		ContentType: contentType,
		Content:     content,
	})
}

// Encode writes the form and returns the body together with its Content-Type
func (f *Form) Encode() (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for _, field := range f.Fields {
		if err := writer.WriteField(field.Name, field.Value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", field.Name, err)
		}
	}

	for _, file := range f.Files {
		contentType := file.ContentType
		if contentType == "" {
			contentType = defaultFileType
		}

		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(file.FieldName), escapeQuotes(file.Filename)))
		header.Set("Content-Type", contentType)

		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create form file %s: %w", file.FieldName, err)
		}
		if _, err := io.Copy(part, file.Content); err != nil {
			return nil, "", fmt.Errorf("failed to write form file %s: %w", file.FieldName, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// NewJSONRequest builds an authenticated POST whose body is body serialized as JSON.
// A []byte or json.RawMessage body is sent as is.
func NewJSONRequest(ctx context.Context, endpoint string, cred Credential, body any) (*http.Request, error) {
	if err := checkTarget(endpoint, cred); err != nil {
		return nil, err
	}

	var payload []byte
	switch b := body.(type) {
	case []byte:
		payload = b
	case json.RawMessage:
		payload = b
	default:
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &ConfigurationError{Field: "url", Reason: "failed to create HTTP request", Err: err}
	}

	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("Authorization", cred.Header())

	return req, nil
}

// NewMultipartRequest builds an authenticated POST carrying form as multipart/form-data
func NewMultipartRequest(ctx context.Context, endpoint string, cred Credential, form *Form) (*http.Request, error) {
	if err := checkTarget(endpoint, cred); err != nil {
		return nil, err
	}

	body, contentType, err := form.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, &ConfigurationError{Field: "url", Reason: "failed to create HTTP request", Err: err}
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("Authorization", cred.Header())

	return req, nil
}

// checkTarget validates URL and credential; both must pass before a body is built
func checkTarget(endpoint string, cred Credential) error {
	if err := ValidateURL(endpoint); err != nil {
		return err
	}
	return cred.Validate()
}
