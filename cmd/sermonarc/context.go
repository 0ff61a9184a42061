package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sermonarc/sermonarc/internal/config"
	"github.com/sermonarc/sermonarc/internal/logctx"
	"github.com/sermonarc/sermonarc/internal/telemetry"
)

// commandContext carries the global flag state shared by all subcommands.
type commandContext struct {
	configPath string
	outputDir  string
	parallel   int
	quality    string
	kind       string
	logLevel   string
}

// loadConfig resolves configuration and applies flag overrides on top.
func (c *commandContext) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}

	if c.outputDir != "" {
		cfg.OutputDir = c.outputDir
	}

	if c.parallel > 0 {
		cfg.MaxParallel = c.parallel
	}

	if c.quality != "" {
		cfg.Quality = c.quality
	}

	if c.kind != "" {
		cfg.Kind = c.kind
	}

	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// bootstrap loads config, installs the process logger and constructs
// telemetry. The returned context carries the logger for everything
// downstream; logs go to stderr so stdout stays clean for command output.
func (c *commandContext) bootstrap(ctx context.Context) (context.Context, *config.Config, *telemetry.Telemetry, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return ctx, nil, nil, err
	}

	handler := logctx.NewTraceHandler(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	logger := slog.New(handler)
	slog.SetDefault(logger)

	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.MetricsAddr != "",
		ServiceName:    "sermonarc",
		ServiceVersion: version,
	})
	if err != nil {
		return ctx, nil, nil, fmt.Errorf("failed to setup telemetry: %w", err)
	}

	return logctx.WithLogger(ctx, logger), cfg, tel, nil
}

// httpClient builds an outbound client with trace propagation. A zero timeout
// means no whole-request bound, for media transfers that outlive any sane
// request timeout; those still get a bounded wait for response headers, and
// cancellation applies through the request context.
func httpClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if timeout == 0 {
		transport.ResponseHeaderTimeout = time.Minute
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(transport),
	}
}
