package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/spf13/cobra"

	"github.com/tripleyak/dev-browser-studio/internal/ariaextract"
	"github.com/tripleyak/dev-browser-studio/internal/config"
	"github.com/tripleyak/dev-browser-studio/internal/logging"
	"github.com/tripleyak/dev-browser-studio/internal/pageregistry"
	"github.com/tripleyak/dev-browser-studio/internal/perception"
	"github.com/tripleyak/dev-browser-studio/internal/videoencoder"
	"github.com/tripleyak/dev-browser-studio/internal/vision"
	"github.com/tripleyak/dev-browser-studio/pkg/chrome"
)

// newPerceiveCmd builds the `perceive` subcommand documented in
// SPEC_FULL.md's "Perception Loop entrypoint": it launches (or attaches
// to) the shared browser, acquires or creates the named page through the
// same Page Registry the server uses, and runs the Perception Loop to
// completion, printing its Result as JSON.
func newPerceiveCmd() *cobra.Command {
	var pageName, task string

	cmd := &cobra.Command{
		Use:   "perceive",
		Short: "Run the perception loop against one page for one task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if pageName == "" || task == "" {
				return fmt.Errorf("--page and --task are required")
			}
			return runPerceive(cmd.Context(), pageName, task)
		},
	}
	cmd.Flags().StringVar(&pageName, "page", "", "name of the page to run against (created if it doesn't exist)")
	cmd.Flags().StringVar(&task, "task", "", "natural-language task description")
	return cmd
}

func runPerceive(ctx context.Context, pageName, task string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.Logging)
	defer logging.Sync()

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
	defer registry.Shutdown(context.Background())

	if _, found := registry.Get(pageName); !found {
		viewport := &pageregistry.Viewport{Width: cfg.Perception.ViewportWidth, Height: cfg.Perception.ViewportHeight}
		if _, err := registry.Create(ctx, pageName, viewport); err != nil {
			return fmt.Errorf("create page %s: %w", pageName, err)
		}
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

	loop := perception.NewLoop(perceptionCfg, logger, snapshotter, visionClient)
	result, err := loop.Run(ctx, registry, pageName, task)
	if err != nil {
		return fmt.Errorf("run perception loop: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
