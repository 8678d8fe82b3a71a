package collector

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

const (
	// DefaultBrowserTimeout bounds one rendered page, navigation included.
	DefaultBrowserTimeout = 25 * time.Second
	settleWindow          = time.Second
)

// BrowserFetcher renders pages flagged with the render hint in headless
// Chromium and returns the resulting DOM. Other requests, and renders that
// fail, go to next. The browser is launched on first use.
type BrowserFetcher struct {
	next    Fetcher
	bin     string
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// BrowserOption configures a BrowserFetcher.
type BrowserOption func(*BrowserFetcher)

// WithBrowserBin uses the Chromium binary at path instead of a downloaded one.
func WithBrowserBin(path string) BrowserOption {
	return func(b *BrowserFetcher) {
		b.bin = path
	}
}

// WithBrowserTimeout sets the per-page render timeout.
func WithBrowserTimeout(d time.Duration) BrowserOption {
	return func(b *BrowserFetcher) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithBrowserLogger sets the logger.
func WithBrowserLogger(l *slog.Logger) BrowserOption {
	return func(b *BrowserFetcher) {
		b.logger = l
	}
}

// NewBrowserFetcher wraps next with local rendering.
func NewBrowserFetcher(next Fetcher, opts ...BrowserOption) *BrowserFetcher {
	b := &BrowserFetcher{
		next:    next,
		timeout: DefaultBrowserTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *BrowserFetcher) Name() string { return "browser+" + b.next.Name() }

func (b *BrowserFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if !req.Render {
		return b.next.Fetch(ctx, req)
	}
	body, err := b.render(ctx, req.URL)
	if err == nil {
		return body, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	b.logger.Warn("render failed, falling back",
		"source", req.Source,
		"fallback", b.next.Name(),
		"error", err,
	)
	return b.next.Fetch(ctx, req)
}

func (b *BrowserFetcher) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		return b.browser, nil
	}

	l := launcher.New().Headless(true).Leakless(false)
	if b.bin != "" {
		l = l.Bin(b.bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		discard(l)
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		discard(l)
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	b.logger.Info("headless browser started")
	b.launcher = l
	b.browser = browser
	return browser, nil
}

// discard stops the process started by l, if any, and removes its
// temporary profile directory.
func discard(l *launcher.Launcher) {
	if l.PID() == 0 {
		_ = os.RemoveAll(l.Get(flags.UserDataDir))
		return
	}
	l.Kill()
	l.Cleanup()
}

func (b *BrowserFetcher) render(ctx context.Context, url string) ([]byte, error) {
	browser, err := b.connect()
	if err != nil {
		return nil, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	p := page.Context(ctx)

	if err := p.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load %s: %w", url, err)
	}
	if err := p.WaitStable(settleWindow); err != nil {
		return nil, fmt.Errorf("wait stable %s: %w", url, err)
	}
	html, err := p.HTML()
	if err != nil {
		return nil, fmt.Errorf("read dom %s: %w", url, err)
	}
	return []byte(html), nil
}

// Close shuts the browser down if it was started.
func (b *BrowserFetcher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	discard(b.launcher)
	b.browser, b.launcher = nil, nil
	return err
}
