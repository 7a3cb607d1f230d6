package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MRamiBalles/CookieClicker/internal/platform/logger"
)

// Ticker runs a callback at a fixed interval until stopped.
// It knows nothing about the economy, only about time.
type Ticker struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context)
	logger   *logger.Logger

	ticks    int64
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewTicker creates a named periodic trigger.
func NewTicker(name string, interval time.Duration, fn func(ctx context.Context), log *logger.Logger) *Ticker {
	return &Ticker{
		name:     name,
		interval: interval,
		fn:       fn,
		logger:   log,
		stopChan: make(chan struct{}),
	}
}

// Start blocks running the callback every interval. Call in a goroutine.
func (t *Ticker) Start(ctx context.Context) {
	t.logger.Infof("%s ticker started (every %s)", t.name, t.interval)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Infof("%s ticker stopped by context", t.name)
			return
		case <-t.stopChan:
			t.logger.Infof("%s ticker stopped manually", t.name)
			return
		case <-ticker.C:
			atomic.AddInt64(&t.ticks, 1)
			t.fn(ctx)
		}
	}
}

// Stop ends the loop. Safe to call more than once.
func (t *Ticker) Stop() {
	t.stopOnce.Do(func() { close(t.stopChan) })
}

// Ticks returns how many times the callback has fired.
func (t *Ticker) Ticks() int64 {
	return atomic.LoadInt64(&t.ticks)
}

// Interval is the configured period.
func (t *Ticker) Interval() time.Duration {
	return t.interval
}
