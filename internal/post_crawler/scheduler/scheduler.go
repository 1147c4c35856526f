// Package scheduler drives the crawl with two polling walks: the listing walk
// pages through the site's index and the detail sweep fills in missing
// detail records. Both survive individual tick failures.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type State int

const (
	Running State = iota
	Stopped
)

func (s State) String() string {
	if s == Stopped {
		return "stopped"
	}
	return "running"
}

// run calls tick on every interval until it reports Stopped or ctx ends.
// The first tick runs immediately.
func run(ctx context.Context, log *zap.Logger, interval time.Duration, tick func(context.Context) State) {
	for {
		if ctx.Err() != nil {
			log.Info("Walk canceled")
			return
		}
		if tick(ctx) == Stopped {
			log.Info("Walk finished")
			return
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("Walk canceled")
			return
		case <-timer.C:
		}
	}
}

// guard runs fn, turning a panic into an error.
func guard(log *zap.Logger, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered from panic in tick", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("tick panicked: %v", r)
		}
	}()
	return fn()
}
