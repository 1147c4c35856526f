package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"post-crawler/internal/post_crawler/metrics"
	"post-crawler/internal/post_crawler/model"
	"post-crawler/internal/post_crawler/processor"
	"post-crawler/internal/post_crawler/store"
)

type SweepStore interface {
	SummaryRefs(ctx context.Context) ([]model.SummaryRef, error)
	FindDetailByCollectionID(ctx context.Context, postCollectionID string) (model.Detail, error)
}

type DetailEnsurer interface {
	EnsureDetail(ctx context.Context, url string) (processor.DetailResult, error)
}

// Upstream is a walk whose output the sweep consumes.
type Upstream interface {
	Stopped() bool
}

// DetailSweep keeps no cursor: each tick rescans every summary and relies on
// the stores to tell which ones still lack a detail.
type DetailSweep struct {
	Log     *zap.Logger
	Store   SweepStore
	Ensure  DetailEnsurer
	Metrics *metrics.Metrics

	// Follow, when set, keeps an idle sweep alive until it stops.
	Follow   Upstream
	Interval time.Duration
}

func NewDetailSweep(interval time.Duration, st SweepStore, ens DetailEnsurer, log *zap.Logger, m *metrics.Metrics) *DetailSweep {
	return &DetailSweep{
		Log:      log.With(zap.String("walk", "sweep")),
		Store:    st,
		Ensure:   ens,
		Metrics:  m,
		Interval: interval,
	}
}

func (s *DetailSweep) Run(ctx context.Context) {
	s.Log.Info("Detail sweep started", zap.Duration("interval", s.Interval))
	run(ctx, s.Log, s.Interval, s.Tick)
}

type sweepStats struct {
	refs, missing, created, failed, noID int
}

func (s *DetailSweep) Tick(ctx context.Context) State {
	// read before the sweep so summaries stored by an upstream that stops
	// mid-tick are picked up next time
	upstreamDone := s.Follow == nil || s.Follow.Stopped()

	var st sweepStats
	err := guard(s.Log, func() (err error) {
		st, err = s.sweep(ctx)
		return err
	})
	if err != nil {
		s.Metrics.WalkTick("sweep", "error")
		s.Log.Error("Detail sweep tick failed", zap.Error(err))
		return Running
	}
	// a tick is idle only when every lookup answered and none was missing
	if st.refs == 0 || (st.missing == 0 && st.failed == 0) {
		if !upstreamDone {
			s.Metrics.WalkTick("sweep", "idle")
			return Running
		}
		s.Metrics.WalkTick("sweep", "stopped")
		if st.noID > 0 {
			s.Log.Warn("Summaries without id were not swept, run the id backfill",
				zap.Int("without_id", st.noID),
			)
		}
		s.Log.Info("No summary left to sweep", zap.Int("summaries", st.refs), zap.Int("without_id", st.noID))
		return Stopped
	}
	s.Metrics.WalkTick("sweep", "swept")
	s.Log.Info("Detail sweep tick finished",
		zap.Int("summaries", st.refs),
		zap.Int("missing", st.missing),
		zap.Int("created", st.created),
		zap.Int("failed", st.failed),
	)
	return Running
}

func (s *DetailSweep) sweep(ctx context.Context) (sweepStats, error) {
	refs, err := s.Store.SummaryRefs(ctx)
	if err != nil {
		return sweepStats{}, fmt.Errorf("read summary refs: %w", err)
	}
	st := sweepStats{refs: len(refs)}
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		if ref.ID == "" {
			// legacy row; the id backfill has to run first
			st.noID++
			continue
		}
		_, err := s.Store.FindDetailByCollectionID(ctx, ref.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			st.failed++
			s.Log.Warn("Failed to look up detail", zap.String("id", ref.ID), zap.Error(err))
			continue
		}
		st.missing++
		res, err := s.Ensure.EnsureDetail(ctx, ref.URL)
		if err != nil {
			st.failed++
			s.Log.Warn("Failed to ensure detail", zap.String("url", ref.URL), zap.Error(err))
			continue
		}
		if !res.Existing {
			st.created++
		}
	}
	return st, nil
}
