// Package store defines the persistence contract for summary and detail
// records. Backends live in the mongostore, pgstore and memstore packages.
package store

import (
	"context"
	"errors"

	"post-crawler/internal/post_crawler/model"
)

var (
	// ErrNotFound is returned by point lookups that match nothing.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned by inserts that violate a unique key.
	ErrDuplicate = errors.New("duplicate key")
)

// SummaryQuery selects one summary. Fields left empty are ignored; at least
// one must be set.
type SummaryQuery struct {
	ID    string
	Title string
	URL   string
}

// Empty reports whether no field is set.
func (q SummaryQuery) Empty() bool {
	return q.ID == "" && q.Title == "" && q.URL == ""
}

type SummaryStore interface {
	FindSummary(ctx context.Context, q SummaryQuery) (model.Summary, error)
	InsertSummary(ctx context.Context, s model.Summary) (model.Summary, error)
	ListSummaries(ctx context.Context, page, limit int) ([]model.Summary, int64, error)
	SummaryRefs(ctx context.Context) ([]model.SummaryRef, error)

	// SummariesMissingID and SetSummaryID serve the one-off backfill of
	// legacy rows written before ids were assigned. They never touch a
	// record that already has an id.
	SummariesMissingID(ctx context.Context) ([]model.Summary, error)
	SetSummaryID(ctx context.Context, key, id string) error
}

type DetailStore interface {
	FindDetailByURL(ctx context.Context, url string) (model.Detail, error)
	FindDetailByCollectionID(ctx context.Context, postCollectionID string) (model.Detail, error)
	FindDetailByPostID(ctx context.Context, postID string) (model.Detail, error)
	InsertDetail(ctx context.Context, d model.Detail) (model.Detail, error)
}

// Store is a backend holding both collections.
type Store interface {
	SummaryStore
	DetailStore
	Close(ctx context.Context) error
}

// Page normalises pagination input into a skip offset and limit.
func Page(page, limit, maxLimit int) (skip, lim int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}
	return (page - 1) * limit, limit
}
