package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"post-crawler/internal/post_crawler/metrics"
	"post-crawler/internal/post_crawler/model"
	"post-crawler/internal/post_crawler/processor"
)

// FailurePolicy decides what a listing walk does with a page that failed.
type FailurePolicy string

const (
	// Skip advances past a failed page.
	Skip FailurePolicy = "skip"
	// Retry stays on a failed page for up to MaxPageRetries more ticks.
	Retry FailurePolicy = "retry"
)

// ListingSource scrapes one page of the site's index.
type ListingSource interface {
	Homepage(ctx context.Context, page, limit int) (model.ListingPage, error)
}

// ListingIngester stores the summaries of a scraped page.
type ListingIngester interface {
	IngestListing(ctx context.Context, posts []model.SummaryFields) processor.ListingResult
}

// ListingConfig bounds and paces a listing walk.
type ListingConfig struct {
	StartPage      int
	MaxPage        int // inclusive
	Limit          int
	Interval       time.Duration
	OnFailure      FailurePolicy
	MaxPageRetries int
}

// ListingWalk owns the page cursor of the index crawl.
type ListingWalk struct {
	Log     *zap.Logger
	Source  ListingSource
	Ingest  ListingIngester
	Metrics *metrics.Metrics

	cfg ListingConfig

	// tickMu serialises ticks; mu guards the cursor and is never held
	// across a fetch, so Stopped and CurrentPage answer mid-tick.
	tickMu  sync.Mutex
	mu      sync.Mutex
	current int
	retries int
	state   State
}

// NewListingWalk returns a walk positioned on cfg.StartPage.
func NewListingWalk(cfg ListingConfig, src ListingSource, ing ListingIngester, log *zap.Logger, m *metrics.Metrics) *ListingWalk {
	if cfg.StartPage <= 0 {
		cfg.StartPage = 1
	}
	if cfg.OnFailure == "" {
		cfg.OnFailure = Skip
	}
	return &ListingWalk{
		Log:     log.With(zap.String("walk", "listing")),
		Source:  src,
		Ingest:  ing,
		Metrics: m,
		cfg:     cfg,
		current: cfg.StartPage,
	}
}

// CurrentPage is the next page the walk will fetch.
func (w *ListingWalk) CurrentPage() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

func (w *ListingWalk) Stopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == Stopped
}

func (w *ListingWalk) Run(ctx context.Context) {
	w.Log.Info("Listing walk started",
		zap.Int("start_page", w.cfg.StartPage),
		zap.Int("max_page", w.cfg.MaxPage),
		zap.Duration("interval", w.cfg.Interval),
	)
	run(ctx, w.Log, w.cfg.Interval, w.Tick)
}

// Tick processes the page under the cursor and moves the cursor on.
func (w *ListingWalk) Tick(ctx context.Context) State {
	w.tickMu.Lock()
	defer w.tickMu.Unlock()

	w.mu.Lock()
	if w.state == Stopped {
		w.mu.Unlock()
		return Stopped
	}
	if w.current > w.cfg.MaxPage {
		w.state = Stopped
		w.mu.Unlock()
		w.Metrics.WalkTick("listing", "stopped")
		w.Log.Info("Listing walk reached max page", zap.Int("max_page", w.cfg.MaxPage))
		return Stopped
	}
	page := w.current
	w.mu.Unlock()

	err := guard(w.Log, func() error { return w.scrape(ctx, page) })

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		if ctx.Err() != nil {
			return Running
		}
		if w.cfg.OnFailure == Retry && w.retries < w.cfg.MaxPageRetries {
			w.retries++
			w.Metrics.WalkTick("listing", "retry")
			w.Log.Warn("Listing page failed, retrying on next tick",
				zap.Int("page", page),
				zap.Int("retry", w.retries),
				zap.Error(err),
			)
			return Running
		}
		w.Metrics.WalkTick("listing", "skipped")
		w.Log.Error("Listing page failed, skipping", zap.Int("page", page), zap.Error(err))
	} else {
		w.Metrics.WalkTick("listing", "advanced")
	}
	w.current++
	w.retries = 0
	return Running
}

func (w *ListingWalk) scrape(ctx context.Context, page int) error {
	listing, err := w.Source.Homepage(ctx, page, w.cfg.Limit)
	if err != nil {
		return fmt.Errorf("scrape page %d: %w", page, err)
	}
	if len(listing.Posts) == 0 {
		w.Log.Warn("Listing page returned no posts", zap.Int("page", page))
		return nil
	}
	res := w.Ingest.IngestListing(ctx, listing.Posts)
	w.Log.Info("Listing page ingested",
		zap.Int("page", page),
		zap.Int("posts", len(listing.Posts)),
		zap.Int("saved", len(res.Saved)),
		zap.Int("failed", res.Failed),
	)
	return nil
}
