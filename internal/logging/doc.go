// Package logging builds the slog logger shared by the CLI and the mock server.
package logging
