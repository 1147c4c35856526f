// Package processor ingests scraped listing and detail pages into the stores.
//
// Every ensure operation is an idempotent upsert: look the record up, insert
// it when absent, and treat a duplicate-key rejection as proof that a
// concurrent caller already stored it. Correctness rests on the stores'
// unique indexes, not on locks held here.
package processor

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"post-crawler/internal/post_crawler/ident"
	"post-crawler/internal/post_crawler/metrics"
	"post-crawler/internal/post_crawler/model"
	"post-crawler/internal/post_crawler/store"
)

// DefaultRetryBackoff is the pause after a failed detail fetch before the
// stores are checked again.
const DefaultRetryBackoff = 3 * time.Second

// DetailSource fetches and extracts a post detail page.
type DetailSource interface {
	Post(ctx context.Context, url string) (model.DetailFields, error)
}

// Coordinator is the single writer path into the summary and detail stores.
type Coordinator struct {
	Log       *zap.Logger
	Summaries store.SummaryStore
	Details   store.DetailStore
	Source    DetailSource
	IDs       ident.Assigner
	Metrics   *metrics.Metrics

	RetryBackoff time.Duration
	// InsertAttempts bounds how often one in-flight record is offered to the
	// store after transient, non-duplicate failures.
	InsertAttempts int

	sleep func(ctx context.Context, d time.Duration) error
}

// DetailResult reports whether EnsureDetail found the record or created it.
type DetailResult struct {
	Detail   model.Detail
	Existing bool
}

// ListingResult summarises one batch of listing entries.
type ListingResult struct {
	Saved  []model.Summary `json:"saved"`
	Failed int             `json:"failed"`
}

// NewCoordinator reads and writes both collections through st.
func NewCoordinator(log *zap.Logger, st store.Store, src DetailSource, ids ident.Assigner, m *metrics.Metrics) *Coordinator {
	return &Coordinator{
		Log:            log,
		Summaries:      st,
		Details:        st,
		Source:         src,
		IDs:            ids,
		Metrics:        m,
		RetryBackoff:   DefaultRetryBackoff,
		InsertAttempts: 1,
	}
}

// EnsureSummary stores f unless a summary with the same url exists, and
// returns whichever record the store holds for that url.
func (c *Coordinator) EnsureSummary(ctx context.Context, f model.SummaryFields) (model.Summary, error) {
	if u := strings.TrimSpace(f.URL); u == "" || u == model.NoURL {
		return model.Summary{}, fmt.Errorf("%w: summary %q has no url", ErrValidation, f.Title)
	}

	existing, err := c.Summaries.FindSummary(ctx, store.SummaryQuery{URL: f.URL})
	if err == nil {
		c.Metrics.Summary(metrics.ResultExisting)
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		c.Metrics.Summary(metrics.ResultFailed)
		return model.Summary{}, fmt.Errorf("find summary %s: %w", f.URL, err)
	}

	id, err := c.IDs.SummaryID()
	if err != nil {
		c.Metrics.Summary(metrics.ResultFailed)
		return model.Summary{}, err
	}
	rec := model.Summary{ID: id, SummaryFields: f}

	saved, err := insert(ctx, c, func(ctx context.Context) (model.Summary, error) {
		return c.Summaries.InsertSummary(ctx, rec)
	})
	switch {
	case err == nil:
		c.Metrics.Summary(metrics.ResultCreated)
		c.Log.Debug("Summary stored", zap.String("url", f.URL), zap.String("id", id))
		return saved, nil
	case errors.Is(err, store.ErrDuplicate):
		winner, ferr := c.Summaries.FindSummary(ctx, store.SummaryQuery{URL: f.URL})
		if ferr != nil {
			c.Metrics.Summary(metrics.ResultFailed)
			return model.Summary{}, fmt.Errorf("reread summary %s: %w", f.URL, errors.Join(err, ferr))
		}
		c.Metrics.Summary(metrics.ResultExisting)
		c.Log.Debug("Summary already stored by a concurrent insert", zap.String("url", f.URL))
		return winner, nil
	default:
		c.Metrics.Summary(metrics.ResultFailed)
		return model.Summary{}, fmt.Errorf("insert summary %s: %w", f.URL, err)
	}
}

// IngestListing runs EnsureSummary over every entry of a scraped listing.
// Entries that fail are logged and counted, never fatal to the batch.
func (c *Coordinator) IngestListing(ctx context.Context, posts []model.SummaryFields) ListingResult {
	res := ListingResult{Saved: make([]model.Summary, 0, len(posts))}
	for _, p := range posts {
		s, err := c.EnsureSummary(ctx, p)
		if err != nil {
			res.Failed++
			c.Log.Warn("Failed to ensure summary",
				zap.String("url", p.URL),
				zap.String("title", p.Title),
				zap.Error(err),
			)
			continue
		}
		res.Saved = append(res.Saved, s)
	}
	return res
}

// EnsureDetail makes sure the post at url has a detail record, fetching the
// page only when neither its url nor its summary already has one.
func (c *Coordinator) EnsureDetail(ctx context.Context, rawURL string) (DetailResult, error) {
	if strings.TrimSpace(rawURL) == "" {
		return DetailResult{}, fmt.Errorf("%w: url is required", ErrValidation)
	}
	if err := checkASCII(rawURL); err != nil {
		return DetailResult{}, err
	}

	if d, ok, err := c.findDetail(ctx, c.Details.FindDetailByURL, rawURL); err != nil || ok {
		return c.existing(d, err)
	}

	sum, err := c.Summaries.FindSummary(ctx, store.SummaryQuery{URL: rawURL})
	if errors.Is(err, store.ErrNotFound) {
		return DetailResult{}, fmt.Errorf("%w: %s", ErrNotFound, rawURL)
	}
	if err != nil {
		return DetailResult{}, fmt.Errorf("find summary %s: %w", rawURL, err)
	}
	if sum.ID == "" {
		return DetailResult{}, fmt.Errorf("%w: summary for %s has no id", ErrValidation, rawURL)
	}

	if d, ok, err := c.findDetail(ctx, c.Details.FindDetailByCollectionID, sum.ID); err != nil || ok {
		return c.existing(d, err)
	}

	fields, err := c.Source.Post(ctx, rawURL)
	if err != nil {
		return c.recheck(ctx, sum, err)
	}

	postID, err := c.IDs.DetailID()
	if err != nil {
		c.Metrics.Detail(metrics.ResultFailed)
		return DetailResult{}, err
	}
	fields.URL = rawURL
	rec := model.Detail{PostID: postID, PostCollectionID: sum.ID, DetailFields: fields}

	saved, err := insert(ctx, c, func(ctx context.Context) (model.Detail, error) {
		return c.Details.InsertDetail(ctx, rec)
	})
	switch {
	case err == nil:
		c.Metrics.Detail(metrics.ResultCreated)
		c.Log.Info("Detail stored", zap.String("url", rawURL), zap.String("post_id", postID))
		return DetailResult{Detail: saved}, nil
	case errors.Is(err, store.ErrDuplicate):
		d, ok, ferr := c.findDetail(ctx, c.Details.FindDetailByCollectionID, sum.ID)
		if ferr == nil && !ok {
			d, ok, ferr = c.findDetail(ctx, c.Details.FindDetailByURL, rawURL)
		}
		if ferr != nil || !ok {
			c.Metrics.Detail(metrics.ResultFailed)
			return DetailResult{}, fmt.Errorf("reread detail %s: %w", rawURL, errors.Join(err, ferr))
		}
		c.Log.Debug("Detail already stored by a concurrent insert", zap.String("url", rawURL))
		return c.existing(d, nil)
	default:
		c.Metrics.Detail(metrics.ResultFailed)
		return DetailResult{}, fmt.Errorf("insert detail %s: %w", rawURL, err)
	}
}

// recheck waits out the retry backoff after a failed fetch and then looks
// for a detail another caller may have stored in the meantime.
func (c *Coordinator) recheck(ctx context.Context, sum model.Summary, cause error) (DetailResult, error) {
	c.Log.Warn("Failed to scrape post, checking again after backoff",
		zap.String("url", sum.URL),
		zap.Duration("backoff", c.RetryBackoff),
		zap.Error(cause),
	)
	if err := c.wait(ctx, c.RetryBackoff); err != nil {
		c.Metrics.Detail(metrics.ResultFailed)
		return DetailResult{}, fmt.Errorf("%w: %s: %w", ErrExtractionFailed, sum.URL, errors.Join(cause, err))
	}
	d, ok, err := c.findDetail(ctx, c.Details.FindDetailByCollectionID, sum.ID)
	if err == nil && !ok {
		d, ok, err = c.findDetail(ctx, c.Details.FindDetailByURL, sum.URL)
	}
	if err != nil || ok {
		return c.existing(d, err)
	}
	c.Metrics.Detail(metrics.ResultFailed)
	return DetailResult{}, fmt.Errorf("%w: %s: %w", ErrExtractionFailed, sum.URL, cause)
}

func (c *Coordinator) existing(d model.Detail, err error) (DetailResult, error) {
	if err != nil {
		c.Metrics.Detail(metrics.ResultFailed)
		return DetailResult{}, err
	}
	c.Metrics.Detail(metrics.ResultExisting)
	return DetailResult{Detail: d, Existing: true}, nil
}

func (c *Coordinator) findDetail(ctx context.Context, find func(context.Context, string) (model.Detail, error), key string) (model.Detail, bool, error) {
	d, err := find(ctx, key)
	switch {
	case err == nil:
		return d, true, nil
	case errors.Is(err, store.ErrNotFound):
		return model.Detail{}, false, nil
	default:
		return model.Detail{}, false, fmt.Errorf("find detail %s: %w", key, err)
	}
}

// BackfillSummaryIDs assigns an id to every summary stored without one and
// returns how many were updated.
func (c *Coordinator) BackfillSummaryIDs(ctx context.Context) (int, error) {
	missing, err := c.Summaries.SummariesMissingID(ctx)
	if err != nil {
		return 0, fmt.Errorf("list summaries missing id: %w", err)
	}
	updated := 0
	for _, s := range missing {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		id, err := c.IDs.SummaryID()
		if err != nil {
			return updated, err
		}
		err = c.Summaries.SetSummaryID(ctx, s.Key, id)
		switch {
		case err == nil:
			updated++
		case errors.Is(err, store.ErrNotFound):
			// assigned concurrently
		default:
			return updated, fmt.Errorf("set summary id %s: %w", s.URL, err)
		}
	}
	c.Log.Info("Summary id backfill finished", zap.Int("missing", len(missing)), zap.Int("updated", updated))
	return updated, nil
}

// insert offers one record to the store up to InsertAttempts times. The
// record, and so its identifier, is the same on every attempt.
func insert[T any](ctx context.Context, c *Coordinator, do func(context.Context) (T, error)) (T, error) {
	attempts := max(c.InsertAttempts, 1)
	var (
		out T
		err error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err = do(ctx)
		if err == nil || errors.Is(err, store.ErrDuplicate) || attempt == attempts {
			return out, err
		}
		c.Log.Warn("Insert failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		if werr := c.wait(ctx, c.RetryBackoff); werr != nil {
			return out, errors.Join(err, werr)
		}
	}
	return out, err
}

func (c *Coordinator) wait(ctx context.Context, d time.Duration) error {
	if c.sleep != nil {
		return c.sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// checkASCII rejects urls whose percent-decoded form carries non-ASCII bytes.
func checkASCII(raw string) error {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidURL, raw, err)
	}
	for i := 0; i < len(decoded); i++ {
		if decoded[i] >= utf8.RuneSelf {
			return fmt.Errorf("%w: %s contains non-ASCII characters", ErrInvalidURL, raw)
		}
	}
	return nil
}
