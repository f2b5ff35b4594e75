package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/spf13/cobra"

	"github.com/tripleyak/dev-browser-studio/internal/api/handlers"
	"github.com/tripleyak/dev-browser-studio/internal/api/routes"
	"github.com/tripleyak/dev-browser-studio/internal/ariaextract"
	"github.com/tripleyak/dev-browser-studio/internal/config"
	"github.com/tripleyak/dev-browser-studio/internal/logging"
	"github.com/tripleyak/dev-browser-studio/internal/pageregistry"
	"github.com/tripleyak/dev-browser-studio/internal/perception"
	"github.com/tripleyak/dev-browser-studio/internal/safety"
	"github.com/tripleyak/dev-browser-studio/internal/videoencoder"
	"github.com/tripleyak/dev-browser-studio/internal/vision"
	"github.com/tripleyak/dev-browser-studio/pkg/auth"
	"github.com/tripleyak/dev-browser-studio/pkg/chrome"
)

// newServeCmd builds the `serve` subcommand: launches (or attaches to) the
// shared browser, wires every collaborator package together and runs the
// gin HTTP control surface until SIGINT/SIGTERM, tearing everything down
// on the way out.
//
// Grounded on the teacher's cmd/main.go: load config, init auth, init the
// chrome/device layer, build the router, then block on signal.Notify and
// tear down the background services it started. This keeps that shape but
// replaces the teacher's scheduler/status-sync teardown with the Page
// Registry's Shutdown and the launched Chrome process's Close.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP control surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.Logging)
	defer logging.Sync()

	if cfg.Auth.Enabled {
		auth.InitJWT(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	}

	chromeProc, err := chrome.Launch(cfg.Chrome.BinaryPath, cfg.Server.CDPPort, cfg.Chrome.Headless, cfg.Chrome.ExtraArgs)
	if err != nil {
		return fmt.Errorf("launch chrome: %w", err)
	}
	defer chromeProc.Close()

	readyCtx, cancelReady := context.WithTimeout(ctx, 15*time.Second)
	defer cancelReady()
	if err := chromeProc.WaitReady(readyCtx, 200*time.Millisecond); err != nil {
		return fmt.Errorf("wait for chrome: %w", err)
	}

	wsURL, err := chrome.DiscoverWebSocketURL(cfg.Server.CDPPort)
	if err != nil {
		return fmt.Errorf("discover devtools websocket url: %w", err)
	}

	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(ctx, wsURL)
	defer cancelAlloc()
	brCtx, cancelBr := chromedp.NewContext(allocCtx)
	defer cancelBr()
	if err := chromedp.Run(brCtx); err != nil {
		return fmt.Errorf("start browser-level cdp session: %w", err)
	}

	cdpHost := fmt.Sprintf("127.0.0.1:%d", cfg.Server.CDPPort)
	encoder := videoencoder.NewFFmpegEncoder()
	registry := pageregistry.New(brCtx, cdpHost, logger, encoder, cfg.Chrome.RecordingsDir)
	if err := registry.StartJanitor("@every 30s"); err != nil {
		return fmt.Errorf("start page registry janitor: %w", err)
	}

	visionClient := vision.NewClient(
		cfg.Vision.APIKey,
		cfg.Vision.Model,
		vision.WithRateLimit(cfg.Vision.RateLimitPerSec, cfg.Vision.RateLimitBurst),
	)
	snapshotter := ariaextract.NewCDPSnapshotter()
	perceptionCfg, err := perceptionConfigFrom(cfg)
	if err != nil {
		return fmt.Errorf("build perception config: %w", err)
	}

	srv := handlers.NewServer(registry, snapshotter, visionClient, perceptionCfg, logger, fmt.Sprintf("127.0.0.1:%d", cfg.Server.CDPPort))
	router := routes.Setup(srv, cfg.Auth.Enabled)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErrs := make(chan error, 1)
	go func() {
		logger.Sugar().Infow("http control surface listening", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrs <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		logger.Sugar().Info("shutdown signal received")
	case err := <-serverErrs:
		logger.Sugar().Errorw("http server error", "error", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Warnw("http server shutdown error", "error", err)
	}
	if err := registry.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Warnw("page registry shutdown error", "error", err)
	}

	return nil
}

func perceptionConfigFrom(cfg *config.Config) (perception.Config, error) {
	pc := perception.DefaultConfig()
	pc.ViewportWidth = cfg.Perception.ViewportWidth
	pc.ViewportHeight = cfg.Perception.ViewportHeight
	pc.ScreenshotQuality = cfg.Perception.ScreenshotQuality
	pc.MaxCycles = cfg.Perception.MaxCycles
	pc.MaxConsecutiveErrors = cfg.Perception.MaxConsecutiveErrors
	pc.SettleTimeMs = cfg.Perception.SettleTimeMs
	pc.APITimeout = time.Duration(cfg.Perception.APITimeoutSeconds) * time.Second
	pc.AriaCharCap = cfg.Perception.AriaCharCap
	pc.AuditDir = cfg.Perception.AuditDir
	pc.Model = cfg.Vision.Model
	pc.BudgetLimits.MaxCostUSD = cfg.Perception.MaxCostUSD
	pc.BudgetLimits.MaxTokens = cfg.Perception.MaxTokens
	pc.BudgetLimits.MaxDurationMs = cfg.Perception.MaxDurationMs

	policy, err := safety.NewPolicy(cfg.Perception.ReadOnlyMode, cfg.Perception.BlockedURLPatterns)
	if err != nil {
		return perception.Config{}, fmt.Errorf("compile safety policy: %w", err)
	}
	pc.Safety = policy
	return pc, nil
}
