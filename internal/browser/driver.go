// Package browser implements the chromedp-backed driver behind the
// locator.Page and locator.Element interfaces. All DOM access funnels
// through evaluated JavaScript; matched nodes are tagged with a stable
// handle attribute so later operations can re-address them.
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
)

// Options configures the browser process.
type Options struct {
	// Headless runs the browser without a visible window.
	Headless bool
	// UserDataDir holds the persistent profile (cookies, saved cards).
	// Empty selects ~/.lotobot/profile.
	UserDataDir string
	// UserAgent overrides the browser default when non-empty.
	UserAgent string
	// Args are extra command-line flags, "name" or "name=value".
	Args []string
	// StartTimeout bounds the responsiveness probe at launch.
	StartTimeout time.Duration
}

// Driver owns the browser process and its primary tab.
type Driver struct {
	logger *zap.Logger

	allocCtx     context.Context
	allocCancel  context.CancelFunc
	browserCtx   context.Context
	browserStop  context.CancelFunc
	mainPage     *Page

	mu         sync.Mutex
	tabCancels []context.CancelFunc

	closeOnce sync.Once
}

// NewDriver launches the browser and verifies it responds before returning.
func NewDriver(ctx context.Context, logger *zap.Logger, opts Options) (*Driver, error) {
	log := logger.Named("browser")

	dataDir, err := resolveUserDataDir(opts.UserDataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user data dir: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create user data dir %q: %w", dataDir, err)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, buildAllocatorOptions(opts, dataDir)...)
	browserCtx, browserStop := chromedp.NewContext(allocCtx)

	d := &Driver{
		logger:      log,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		browserStop: browserStop,
	}

	startTimeout := opts.StartTimeout
	if startTimeout <= 0 {
		startTimeout = 30 * time.Second
	}
	probeCtx, cancelProbe := context.WithTimeout(browserCtx, startTimeout)
	defer cancelProbe()
	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		allocCancel()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	d.mainPage = newPage(browserCtx, log.Named("page"))
	log.Info("Browser launched.",
		zap.Bool("headless", opts.Headless),
		zap.String("user_data_dir", dataDir))
	return d, nil
}

// MainPage returns the tab the flows drive.
func (d *Driver) MainPage() *Page {
	return d.mainPage
}

// Pages enumerates the currently open tabs, the main tab included. Sites
// that open auth in a popup make the active tab ambiguous; callers pick by
// URL.
func (d *Driver) Pages(ctx context.Context) ([]*Page, error) {
	infos, err := chromedp.Targets(d.browserCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to list browser targets: %w", err)
	}

	var pages []*Page
	for _, info := range infos {
		if info.Type != "page" || strings.HasPrefix(info.URL, "devtools://") {
			continue
		}
		tabCtx, tabCancel := chromedp.NewContext(d.browserCtx, chromedp.WithTargetID(info.TargetID))
		d.mu.Lock()
		d.tabCancels = append(d.tabCancels, tabCancel)
		d.mu.Unlock()
		pages = append(pages, newPage(tabCtx, d.logger.Named("page")))
	}
	return pages, nil
}

// Close terminates the browser process. Safe to call more than once.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() {
		d.logger.Info("Shutting down browser.")
		d.mu.Lock()
		for _, cancel := range d.tabCancels {
			cancel()
		}
		d.mu.Unlock()
		d.browserStop()
		d.allocCancel()
	})
	return nil
}

func resolveUserDataDir(configured string) (string, error) {
	if configured != "" {
		return homedir.Expand(configured)
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".lotobot", "profile"), nil
}

// buildAllocatorOptions assembles the launch flags, dropping the default
// enable-automation flag that many sites key anti-bot logic on.
func buildAllocatorOptions(opts Options, dataDir string) []chromedp.ExecAllocatorOption {
	out := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	out = append(out,
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", opts.Headless),
		chromedp.UserDataDir(dataDir),
	)
	if opts.UserAgent != "" {
		out = append(out, chromedp.UserAgent(opts.UserAgent))
	}

	for _, arg := range opts.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			out = append(out, chromedp.Flag(name, parts[1]))
		} else {
			out = append(out, chromedp.Flag(name, true))
		}
	}

	if runtime.GOOS == "linux" {
		out = append(out,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}
	return out
}
