package fetcher

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type HeadlessConfig struct {
	UserAgent         string
	SettleDelay       time.Duration
	NavigationTimeout time.Duration
	RequestsPerSecond float64
}

// Headless renders pages in headless Chrome, one page at a time, and waits
// SettleDelay after the body is ready so client-side content can load.
type Headless struct {
	Log *zap.Logger

	cfg         HeadlessConfig
	limiter     *rate.Limiter
	mu          sync.Mutex
	allocator   context.Context
	allocCancel context.CancelFunc
}

func NewHeadless(cfg HeadlessConfig, log *zap.Logger) *Headless {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Headless{
		Log:         log,
		cfg:         cfg,
		limiter:     newLimiter(cfg.RequestsPerSecond),
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}
}

// Close shuts the browser down.
func (h *Headless) Close() {
	h.allocCancel()
}

func (h *Headless) Fetch(ctx context.Context, url string) (string, error) {
	if err := wait(ctx, h.limiter); err != nil {
		return "", err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	taskCtx, taskCancel := chromedp.NewContext(h.allocator)
	defer taskCancel()
	taskCtx, cancel := context.WithTimeout(taskCtx, h.cfg.NavigationTimeout+h.cfg.SettleDelay)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	start := time.Now()
	var html string
	if err := chromedp.Run(taskCtx, h.actions(url, &html)...); err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	h.Log.Debug("Rendered page",
		zap.String("url", url),
		zap.Int("bytes", len(html)),
		zap.Duration("took", time.Since(start)),
	)
	if strings.TrimSpace(html) == "" {
		return "", fmt.Errorf("render %s: %w", url, ErrEmptyPage)
	}
	return html, nil
}

func (h *Headless) actions(url string, html *string) []chromedp.Action {
	actions := []chromedp.Action{}
	if h.cfg.UserAgent != "" {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			if err := emulation.SetUserAgentOverride(h.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
			return nil
		}))
	}
	actions = append(actions,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if h.cfg.SettleDelay > 0 {
		actions = append(actions, chromedp.Sleep(h.cfg.SettleDelay))
	}
	return append(actions, chromedp.OuterHTML("html", html, chromedp.ByQuery))
}
