package fetcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type StaticConfig struct {
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Static fetches raw HTML without executing scripts.
type Static struct {
	Log *zap.Logger

	cfg     StaticConfig
	limiter *rate.Limiter
}

func NewStatic(cfg StaticConfig, log *zap.Logger) *Static {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Static{Log: log, cfg: cfg, limiter: newLimiter(cfg.RequestsPerSecond)}
}

func (s *Static) Fetch(ctx context.Context, url string) (string, error) {
	if err := wait(ctx, s.limiter); err != nil {
		return "", err
	}
	c := s.collector()

	var (
		body     []byte
		fetchErr error
	)
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
	})
	if err := c.Visit(url); err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	if fetchErr != nil {
		return "", fmt.Errorf("fetch %s: %w", url, fetchErr)
	}
	s.Log.Debug("Fetched page", zap.String("url", url), zap.Int("bytes", len(body)))
	if strings.TrimSpace(string(body)) == "" {
		return "", fmt.Errorf("fetch %s: %w", url, ErrEmptyPage)
	}
	return string(body), nil
}

func (s *Static) collector() *colly.Collector {
	opts := []colly.CollectorOption{colly.AllowURLRevisit()}
	if s.cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(s.cfg.UserAgent))
	}
	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(s.cfg.Timeout)
	return c
}
