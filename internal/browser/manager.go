// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"os"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/nlavaggi/retex/internal/config"
)

// Manager owns the Chrome process and its root tab. One manager serves one
// run; export cycles are strictly sequential over the single tab it exposes.
type Manager struct {
	cfg         config.BrowserConfig
	logger      *zap.Logger
	downloadDir string

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewManager launches Chrome and routes downloads into downloadDir. Files are
// stored under their download GUID so concurrent suggested names cannot
// collide; callers rename after completion.
func NewManager(ctx context.Context, cfg config.BrowserConfig, downloadDir string, logger *zap.Logger) (*Manager, error) {
	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating download dir %s: %w", downloadDir, err)
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf))

	m := &Manager{
		cfg:           cfg,
		logger:        logger.Named("browser"),
		downloadDir:   downloadDir,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}

	// Start the process and configure download routing in one shot.
	err := chromedp.Run(browserCtx,
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(downloadDir).
			WithEventsEnabled(true),
	)
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	m.logger.Info("Browser launched.",
		zap.Bool("headless", cfg.Headless),
		zap.String("download_dir", downloadDir))
	return m, nil
}

// Tab returns the interaction surface over the manager's root tab.
func (m *Manager) Tab() *Tab {
	return &Tab{
		ctx:        m.browserCtx,
		navTimeout: m.cfg.NavigationTimeout,
		logger:     m.logger.Named("tab"),
	}
}

// Downloads returns the download resolver bound to the manager's tab.
func (m *Manager) Downloads() *Downloads {
	return &Downloads{
		ctx:     m.browserCtx,
		dir:     m.downloadDir,
		timeout: m.cfg.DownloadTimeout,
		logger:  m.logger.Named("downloads"),
	}
}

// Close tears the browser down. Safe to call after a canceled run; the
// teardown uses a detached context so it still reaches the process.
func (m *Manager) Close() {
	closeCtx, cancel := context.WithTimeout(detach(m.browserCtx), 5*time.Second)
	defer cancel()
	if err := chromedp.Cancel(closeCtx); err != nil {
		m.logger.Warn("Browser shutdown did not complete cleanly.", zap.Error(err))
	}
	m.browserCancel()
	m.allocCancel()
	m.logger.Info("Browser closed.")
}
