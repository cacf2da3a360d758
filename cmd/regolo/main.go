package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/regolo-ai/regoloai-doc/internal/audio"
	"github.com/regolo-ai/regoloai-doc/internal/chat"
	"github.com/regolo-ai/regoloai-doc/internal/client"
	"github.com/regolo-ai/regoloai-doc/internal/config"
	"github.com/regolo-ai/regoloai-doc/internal/image"
	"github.com/regolo-ai/regoloai-doc/internal/logging"
	"github.com/regolo-ai/regoloai-doc/internal/metrics"
	"github.com/regolo-ai/regoloai-doc/internal/observability"
	"github.com/regolo-ai/regoloai-doc/internal/transcription"
)

const (
	defaultEnvFile = ".env"
	serviceName    = "regolo"
	serviceVersion = "1.0.0"

	defaultChatPrompt  = "Tell me about Rome in a concise manner"
	defaultImagePrompt = "Cat playing the piano"
	defaultAudioFile   = "file.mp3"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to configuration file (optional)")
	envFile := fs.String("env-file", defaultEnvFile, "Path to a .env file loaded before reading the environment")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s [-config file] [-env-file file] <chat|transcribe|image> [flags]\n", serviceName)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	command, commandArgs := fs.Arg(0), fs.Args()[1:]

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(stderr, "Failed to load env file: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	logger, closeLog := logging.New(cfg.Logging, stdout, stderr)
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.OTLPEndpoint != "" {
		tp, err := observability.Setup(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName)
		if err != nil {
			logger.Error("Failed to set up tracing", slog.String("error", err.Error()))
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Failed to flush traces", slog.String("error", err.Error()))
			}
		}()
	}

	appMetrics := metrics.NewMetrics(prometheus.NewRegistry())
	if cfg.Metrics.Textfile != "" {
		defer func() {
			if err := appMetrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
				logger.Warn("Failed to write metrics textfile", slog.String("error", err.Error()))
			}
		}()
	}

	api := client.NewClient(client.Config{
		Timeout:   cfg.HTTP.GetTimeoutDuration(),
		UserAgent: cfg.HTTP.UserAgent,
	}, client.WithMetrics(appMetrics), client.WithLogger(logger))

	logger.Debug("Command starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("command", command),
	)

	var cmdErr error
	switch command {
	case "chat":
		cmdErr = runChat(ctx, api, cfg, logger, commandArgs, stdout, stderr)
	case "transcribe":
		cmdErr = runTranscribe(ctx, api, cfg, logger, commandArgs, stdout, stderr)
	case "image":
		cmdErr = runImage(ctx, api, cfg, logger, commandArgs, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown command %q\n", command)
		fs.Usage()
		return 2
	}

	if cmdErr != nil {
		if errors.Is(cmdErr, flag.ErrHelp) {
			return 0
		}
		var usageErr *usageError
		if errors.As(cmdErr, &usageErr) {
			return 2
		}

		attrs := []any{
			slog.String("command", command),
			slog.String("error_type", client.Kind(cmdErr)),
			slog.String("error", cmdErr.Error()),
		}
		var remoteErr *client.RemoteError
		if errors.As(cmdErr, &remoteErr) {
			attrs = append(attrs, slog.Int("status_code", remoteErr.StatusCode))
		}
		logger.Error("Request failed", attrs...)
		return 1
	}

	return 0
}

// usageError reports invalid subcommand flags; the flag package has already printed the details
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return &usageError{err: err}
	}
	return nil
}

func runChat(ctx context.Context, api *client.Client, cfg *config.Config, logger *slog.Logger, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	model := fs.String("model", cfg.Chat.Model, "Model identifier")
	system := fs.String("system", "", "Optional system message")
	prompt := fs.String("prompt", defaultChatPrompt, "User message")
	temperature := fs.Float64("temperature", -1, "Sampling temperature (omitted when negative)")
	maxTokens := fs.Int("max-tokens", 0, "Maximum completion tokens (omitted when 0)")
	contentOnly := fs.Bool("content-only", false, "Print only the first choice's message content")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	req := &chat.Request{Model: *model}
	if *system != "" {
		req.Messages = append(req.Messages, chat.SystemMessage(*system))
	}
	req.Messages = append(req.Messages, chat.UserMessage(*prompt))
	if *temperature >= 0 {
		req.Temperature = temperature
	}
	if *maxTokens != 0 {
		req.MaxTokens = maxTokens
	}

	c := chat.NewClient(api, cfg.Chat.Endpoint, client.Credential(cfg.Chat.Token), logger)
	resp, err := c.Complete(ctx, req)
	if err != nil {
		return err
	}

	if *contentOnly {
		var reply chat.Reply
		if err := resp.Decode(&reply); err != nil {
			return err
		}
		_, err := fmt.Fprintln(stdout, reply.Content())
		return err
	}

	return resp.WriteIndented(stdout)
}

func runTranscribe(ctx context.Context, api *client.Client, cfg *config.Config, logger *slog.Logger, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("transcribe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", defaultAudioFile, "Audio file to upload")
	model := fs.String("model", cfg.Transcription.Model, "Model identifier")
	language := fs.String("language", cfg.Transcription.Language, "Spoken language hint (ISO 639-1)")
	prompt := fs.String("prompt", "", "Optional text to guide the transcription")
	temperature := fs.Float64("temperature", 0, "Sampling temperature (omitted when 0)")
	format := fs.String("format", cfg.Transcription.ResponseFormat, "Response format: json or verbose_json")
	pcmRate := fs.Int("pcm-rate", 0, "Treat the file as raw 16-bit PCM at this sample rate and upload it as WAV")
	pcmChannels := fs.Int("pcm-channels", 1, "Channel count for raw PCM input")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if *format != "json" && *format != "verbose_json" {
		return &client.ConfigurationError{Field: "response_format", Reason: fmt.Sprintf("must be json or verbose_json, got %q", *format)}
	}

	req := &transcription.Request{
		Model:       *model,
		FilePath:    *file,
		Language:    *language,
		Prompt:      *prompt,
		Temperature: float32(*temperature),
	}
	if *pcmRate > 0 {
		req.PCM = &audio.PCMFormat{SampleRate: *pcmRate, Channels: *pcmChannels}
	}

	c := transcription.NewClient(api, transcription.Config{
		Endpoint:       cfg.Transcription.Endpoint,
		APIKey:         cfg.Transcription.APIKey,
		ResponseFormat: *format,
	}, logger)

	resp, err := c.Transcribe(ctx, req)
	if err != nil {
		return err
	}
	return resp.WriteIndented(stdout)
}

func runImage(ctx context.Context, api *client.Client, cfg *config.Config, logger *slog.Logger, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("image", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var prompts promptList
	fs.Var(&prompts, "prompt", "Image prompt (repeatable)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if len(prompts) == 0 {
		prompts = promptList{defaultImagePrompt}
	}

	c := image.NewClient(api, cfg.Image.Endpoint, client.Credential(cfg.Image.Token), logger)
	resp, err := c.Generate(ctx, &image.Request{Prompts: prompts})
	if err != nil {
		return err
	}
	return resp.WriteIndented(stdout)
}

// promptList collects repeated -prompt flags
type promptList []string

func (p *promptList) String() string { return strings.Join(*p, ", ") }

func (p *promptList) Set(value string) error {
	*p = append(*p, value)
	return nil
}
