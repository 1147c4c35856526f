// Package fetcher returns the HTML of a page, either rendered by a headless
// browser or fetched statically.
package fetcher

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"
)

// ErrEmptyPage is returned when a fetch succeeds but yields no markup.
var ErrEmptyPage = errors.New("empty page")

// Fetcher returns the HTML for url.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// newLimiter spaces requests at rps per second. Zero disables limiting.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

func wait(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	if err := l.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}
