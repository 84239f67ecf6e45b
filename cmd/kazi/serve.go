package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	goutils "github.com/jkaninda/go-utils"

	"github.com/mwenda/kazi/internal/config"
	"github.com/mwenda/kazi/internal/gateway/httpapi"
	"github.com/mwenda/kazi/internal/llm"
	"github.com/mwenda/kazi/internal/llm/anthropic"
	"github.com/mwenda/kazi/internal/observability"
	"github.com/mwenda/kazi/internal/pipeline"
	"github.com/mwenda/kazi/internal/ratelimit"
	"github.com/mwenda/kazi/internal/report"
	"github.com/mwenda/kazi/internal/session"
)

var (
	serveConfigPath string
	servePort       string
	serveDocs       bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP gateway and web page",
	RunE:  runServe,
}

func init() {
	// Register flags on both root and serve so that
	// `kazi --config path` and `kazi serve --config path` both work.
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVar(&serveConfigPath, "config", config.DefaultConfigPath(), "path to config file")
		cmd.Flags().StringVar(&servePort, "port", "", "override HTTP listen address (e.g. :8480)")
		cmd.Flags().BoolVar(&serveDocs, "docs", false, "serve interactive API docs")
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(goutils.Env("KAZI_CONFIG", serveConfigPath))
	if err != nil {
		return err
	}
	if servePort != "" {
		cfg.Server.ListenAddr = servePort
	}

	logger.Info("starting",
		slog.String("addr", cfg.Server.ListenAddr),
		slog.String("model", cfg.Anthropic.Model),
	)

	// Observability (nil when not configured).
	obs, err := observability.New(cfg.Observability, logger)
	if err != nil {
		return fmt.Errorf("initializing observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		obs.Shutdown(shutdownCtx)
	}()

	// LLM provider.
	var aOpts []anthropic.Option
	if cfg.Anthropic.BaseURL != "" {
		aOpts = append(aOpts, anthropic.WithBaseURL(cfg.Anthropic.BaseURL))
	}
	var provider llm.Provider = anthropic.NewClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model, logger, aOpts...)
	if obs.MetricsOrNil() != nil || obs.TracerOrNil() != nil {
		provider = observability.NewInstrumentedProvider(provider, obs.MetricsOrNil(), obs.TracerOrNil())
	}

	// Core components: one session per process.
	sess := session.New()
	runner := pipeline.NewRunner(provider, logger, pipeline.WithMaxTokens(cfg.Anthropic.MaxTokens))
	assembler := report.NewAssembler(logger)

	gwCfg := httpapi.Config{
		ListenAddr: cfg.Server.ListenAddr,
		EnableDocs: serveDocs,
	}
	if m := obs.MetricsOrNil(); m != nil {
		gwCfg.MetricsRegistry = m.Registry
		gwCfg.MetricsPath = cfg.MetricsPath()
		gwCfg.Metrics = m
	}
	if t := obs.TracerOrNil(); t != nil {
		gwCfg.Tracer = t.Tracer()
	}

	gw := httpapi.NewGateway(gwCfg, runner, sess, assembler, logger)
	if cfg.Server.RunsPerMinute > 0 {
		gw.WithRateLimiter(ratelimit.NewLimiter(ratelimit.Config{RunsPerMinute: cfg.Server.RunsPerMinute}))
	}

	// Signal-aware context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := gw.Start(ctx); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("gateway: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gw.Stop(shutdownCtx); err != nil {
		logger.Error("stopping gateway", slog.String("error", err.Error()))
	}
	return nil
}
