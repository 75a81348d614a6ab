package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// SweepAge is how old a window start must be before the sweep drops the entry.
const SweepAge = 24 * time.Hour

type window struct {
	count int
	start time.Time
}

type MemoryLimiter struct {
	clock clockwork.Clock

	mu      sync.Mutex
	windows map[string]window
}

func NewMemoryLimiter(clock clockwork.Clock) *MemoryLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryLimiter{
		clock:   clock,
		windows: make(map[string]window),
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string, rule Rule) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[key]
	count, start, res := decide(exists, w.count, w.start, now, rule)
	l.windows[key] = window{count: count, start: start}
	return res, nil
}

// Sweep removes entries whose window started more than SweepAge ago and returns how many were dropped.
func (l *MemoryLimiter) Sweep() int {
	cutoff := l.clock.Now().Add(-SweepAge)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		if w.start.Before(cutoff) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Run sweeps every interval until ctx is done.
func (l *MemoryLimiter) Run(ctx context.Context, interval time.Duration, logger *logrus.Entry) {
	ticker := l.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if removed := l.Sweep(); removed > 0 && logger != nil {
				logger.WithField("removed", removed).Debug("ratelimit: swept expired windows")
			}
		}
	}
}
