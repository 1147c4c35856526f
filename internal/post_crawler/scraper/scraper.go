// Package scraper fetches a site's listing, post and category pages and runs
// them through the extractor.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"post-crawler/internal/post_crawler/extractor"
	"post-crawler/internal/post_crawler/fetcher"
	"post-crawler/internal/post_crawler/metrics"
	"post-crawler/internal/post_crawler/model"
)

// ErrNoContent is returned when a post page renders without title or body.
var ErrNoContent = errors.New("page has no post content")

type Scraper struct {
	Log       *zap.Logger
	Fetcher   fetcher.Fetcher
	Extractor *extractor.Extractor
	Metrics   *metrics.Metrics
	BaseURL   string
}

func New(baseURL string, f fetcher.Fetcher, log *zap.Logger, m *metrics.Metrics) *Scraper {
	return &Scraper{
		Log:       log,
		Fetcher:   f,
		Extractor: extractor.New(),
		Metrics:   m,
		BaseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// PageURL returns the paginated form of a listing URL.
func PageURL(listingURL string, page int) string {
	return fmt.Sprintf("%s/page/%d/", strings.TrimRight(listingURL, "/"), page)
}

// Homepage scrapes one page of the site's main listing.
func (s *Scraper) Homepage(ctx context.Context, page, limit int) (model.ListingPage, error) {
	posts, err := s.listing(ctx, PageURL(s.BaseURL, page), limit)
	if err != nil {
		return model.ListingPage{}, err
	}
	return model.ListingPage{Page: page, Limit: limit, TotalPosts: len(posts), Posts: posts}, nil
}

// CategoryPage scrapes one page of a category listing.
func (s *Scraper) CategoryPage(ctx context.Context, categoryURL string, page, limit int) (model.ListingPage, error) {
	posts, err := s.listing(ctx, PageURL(categoryURL, page), limit)
	if err != nil {
		return model.ListingPage{}, err
	}
	return model.ListingPage{
		CategoryURL: categoryURL,
		Page:        page,
		Limit:       limit,
		TotalPosts:  len(posts),
		Posts:       posts,
	}, nil
}

func (s *Scraper) listing(ctx context.Context, url string, limit int) ([]model.SummaryFields, error) {
	html, err := s.fetch(ctx, "listing", url)
	if err != nil {
		return nil, err
	}
	posts, err := s.Extractor.Listing(html, limit)
	if err != nil {
		return nil, fmt.Errorf("extract listing %s: %w", url, err)
	}
	return posts, nil
}

// Post scrapes the detail page at url.
func (s *Scraper) Post(ctx context.Context, url string) (model.DetailFields, error) {
	html, err := s.fetch(ctx, "detail", url)
	if err != nil {
		return model.DetailFields{}, err
	}
	fields, err := s.Extractor.Detail(html, url)
	if err != nil {
		return model.DetailFields{}, fmt.Errorf("extract post %s: %w", url, err)
	}
	if !fields.Usable() {
		return model.DetailFields{}, fmt.Errorf("extract post %s: %w", url, ErrNoContent)
	}
	return fields, nil
}

// Categories scrapes the category widget rendered on the page at url.
func (s *Scraper) Categories(ctx context.Context, url string) ([]model.Category, error) {
	html, err := s.fetch(ctx, "categories", url)
	if err != nil {
		return nil, err
	}
	cats, err := s.Extractor.Categories(html)
	if err != nil {
		return nil, fmt.Errorf("extract categories %s: %w", url, err)
	}
	return cats, nil
}

func (s *Scraper) fetch(ctx context.Context, kind, url string) (string, error) {
	start := time.Now()
	html, err := s.Fetcher.Fetch(ctx, url)
	s.Metrics.ObserveFetch(kind, err, time.Since(start))
	if err != nil {
		s.Log.Warn("Fetch failed", zap.String("kind", kind), zap.String("url", url), zap.Error(err))
		return "", err
	}
	return html, nil
}
