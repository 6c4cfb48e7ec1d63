package node

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// Watchdog kills the process when the control loop stops completing ticks,
// leaving the restart to the process supervisor. This is the safety net of
// last resort; no in-loop error path is allowed to reach it.
type Watchdog struct {
	bound time.Duration
	last  atomic.Int64

	// fatal is swapped out in tests
	fatal func(format string, v ...any)
}

func NewWatchdog(bound time.Duration) *Watchdog {
	if bound <= 0 {
		bound = 10 * time.Second
	}
	w := &Watchdog{bound: bound, fatal: log.Fatalf}
	w.Pat()
	return w
}

// Pat marks a completed tick.
func (w *Watchdog) Pat() {
	w.last.Store(time.Now().UnixNano())
}

// LastTickAge reports how long ago a tick completed.
func (w *Watchdog) LastTickAge() time.Duration {
	return time.Since(time.Unix(0, w.last.Load()))
}

// Run checks tick age until the context is cancelled.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.bound / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			age := time.Since(time.Unix(0, w.last.Load()))
			if age > w.bound {
				w.fatal("watchdog: control loop stalled for %s (bound %s)", age.Round(time.Millisecond), w.bound)
			}
		}
	}
}
