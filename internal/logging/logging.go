package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/regolo-ai/regoloai-doc/internal/config"
)

// New creates the structured logger based on configuration. Output "stderr"
// (the default) and "stdout" select the given writers; anything else is a file
// path. The returned func closes the log file when one was opened.
func New(cfg config.LoggingConfig, stdout, stderr io.Writer) (*slog.Logger, func()) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	closeFn := func() {}
	var output io.Writer
	switch cfg.Output {
	case "stderr", "":
		output = stderr
	case "stdout":
		output = stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
			output = stderr
		} else {
			output = file
			closeFn = func() { file.Close() }
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler), closeFn
}
