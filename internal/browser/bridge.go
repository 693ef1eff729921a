// Package browser reads the chat page from Chrome over the DevTools protocol.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"chatarchiver/internal/domain"
	"chatarchiver/internal/page"
)

const (
	defaultTimeout = 60 * time.Second
	defaultSettle  = 2 * time.Second
	userAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// Bridge is a page.Source backed by Chrome. With RemoteURL set it attaches to
// an already running browser (started with --remote-debugging-port) and reads
// the open chat tab. Otherwise it launches Chrome with the archiver profile and
// loads PageURL.
type Bridge struct {
	profileDir  string
	remoteURL   string
	pageURL     string
	hostPattern string
	headless    bool
	timeout     time.Duration
	settle      time.Duration
	logger      *slog.Logger
}

// BridgeConfig holds configuration for the browser bridge.
type BridgeConfig struct {
	ProfileDir  string // Chrome user data directory (persists cookies/sessions)
	RemoteURL   string // DevTools endpoint, e.g. ws://127.0.0.1:9222/devtools/browser/...
	PageURL     string // page loaded when launching
	HostPattern string // host of the chat site
	Headless    bool
	Timeout     time.Duration
	Settle      time.Duration // wait after load for client-side rendering
	Logger      *slog.Logger
}

func NewBridge(cfg BridgeConfig) *Bridge {
	if cfg.ProfileDir == "" {
		home, _ := os.UserHomeDir()
		cfg.ProfileDir = filepath.Join(home, ".chatarchiver", "chrome-profile")
	}
	if cfg.HostPattern == "" {
		cfg.HostPattern = page.DefaultHostPattern
	}
	if cfg.PageURL == "" {
		cfg.PageURL = "https://" + cfg.HostPattern + "/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Settle < 0 {
		cfg.Settle = 0
	} else if cfg.Settle == 0 {
		cfg.Settle = defaultSettle
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Bridge{
		profileDir:  cfg.ProfileDir,
		remoteURL:   cfg.RemoteURL,
		pageURL:     cfg.PageURL,
		hostPattern: cfg.HostPattern,
		headless:    cfg.Headless,
		timeout:     cfg.Timeout,
		settle:      cfg.Settle,
		logger:      cfg.Logger,
	}
}

func (b *Bridge) allocatorOptions(headless bool) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(b.profileDir),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.UserAgent(userAgent),
	)
	if headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	return opts
}

// newContext returns a browser context and reports whether it is attached to
// an existing tab. The caller MUST call cancel() when done.
func (b *Bridge) newContext(parent context.Context) (context.Context, context.CancelFunc, bool, error) {
	if b.remoteURL != "" {
		allocCtx, allocCancel := chromedp.NewRemoteAllocator(parent, b.remoteURL)
		browserCtx, browserCancel := chromedp.NewContext(allocCtx)

		targets, err := chromedp.Targets(browserCtx)
		if err != nil {
			browserCancel()
			allocCancel()
			return nil, nil, false, fmt.Errorf("list browser tabs: %w", err)
		}
		info := selectTarget(targets, b.hostPattern)
		if info == nil {
			browserCancel()
			allocCancel()
			return nil, nil, false, fmt.Errorf("%w: no %s tab open in %s", domain.ErrUnrecognizedContext, b.hostPattern, b.remoteURL)
		}
		b.logger.Debug("attaching to tab", "target", info.TargetID, "url", info.URL)

		tabCtx, tabCancel := chromedp.NewContext(browserCtx, chromedp.WithTargetID(info.TargetID))
		return tabCtx, func() {
			tabCancel()
			browserCancel()
			allocCancel()
		}, true, nil
	}

	if err := os.MkdirAll(b.profileDir, 0o755); err != nil {
		b.logger.Error("failed to create profile dir", "dir", b.profileDir, "err", err)
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, b.allocatorOptions(b.headless)...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	return taskCtx, func() {
		taskCancel()
		allocCancel()
	}, false, nil
}

// Snapshot captures the current DOM of the chat page.
func (b *Bridge) Snapshot(ctx context.Context) (*page.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	taskCtx, taskCancel, attached, err := b.newContext(ctx)
	if err != nil {
		return nil, err
	}
	defer taskCancel()

	var actions []chromedp.Action
	if !attached {
		actions = append(actions,
			chromedp.Navigate(b.pageURL),
			chromedp.WaitReady("body"),
			chromedp.Sleep(b.settle),
		)
	}

	var location, html string
	actions = append(actions,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return nil, fmt.Errorf("capture page: %w", err)
	}

	b.logger.Debug("page captured", "url", location, "bytes", len(html))
	return page.ParseString(html, location)
}

// ActiveURL returns the URL of the tab Snapshot would read.
func (b *Bridge) ActiveURL(ctx context.Context) (string, error) {
	if b.remoteURL == "" {
		return b.pageURL, nil
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, b.remoteURL)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	targets, err := chromedp.Targets(browserCtx)
	if err != nil {
		return "", fmt.Errorf("list browser tabs: %w", err)
	}
	info := selectTarget(targets, b.hostPattern)
	if info == nil {
		return "", nil
	}
	return info.URL, nil
}

// Login opens a visible browser for the user to log in manually.
// After login, cookies are saved in the profile directory.
func (b *Bridge) Login(ctx context.Context, url string) error {
	if url == "" {
		url = b.pageURL
	}
	b.logger.Info("opening browser for login", "url", url)

	if err := os.MkdirAll(b.profileDir, 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, b.allocatorOptions(false)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	if err := chromedp.Run(taskCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to login page: %w", err)
	}

	b.logger.Info("browser opened. Please log in manually. Press Ctrl+C when done.")

	<-ctx.Done()

	b.logger.Info("login session saved", "profile", b.profileDir)
	return nil
}

// selectTarget picks the first page tab on the chat host. Tabs on other sites
// are never read.
func selectTarget(targets []*target.Info, hostPattern string) *target.Info {
	for _, t := range targets {
		if t == nil || t.Type != "page" {
			continue
		}
		if page.HostMatches(t.URL, hostPattern) {
			return t
		}
	}
	return nil
}
