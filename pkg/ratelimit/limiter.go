// Package ratelimit implements fixed-window counters keyed by purpose, subject and window label.
//
// The first request for a key opens a window and is always allowed. Later requests inside the
// window are allowed while the count stays below the maximum. Once the window has fully elapsed
// the counter restarts, regardless of how many requests were seen before.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

type Limiter interface {
	Allow(ctx context.Context, key string, rule Rule) (Result, error)
}

type Rule struct {
	Max    int
	Window time.Duration
}

type Result struct {
	Allowed    bool
	Count      int
	RetryAfter time.Duration
}

const (
	Daily  = "daily"
	Weekly = "weekly"

	Day  = 24 * time.Hour
	Week = 7 * Day
)

// Key composes a limiter key such as "sms:lead:<id>:daily".
func Key(purpose, subjectID, label string) string {
	return fmt.Sprintf("%s:lead:%s:%s", purpose, subjectID, label)
}

// decide applies the fixed-window rule to a stored window. It is shared by every backend so
// that both produce identical outcomes for the same sequence of requests.
func decide(exists bool, count int, windowStart, now time.Time, rule Rule) (newCount int, newStart time.Time, res Result) {
	elapsed := now.Sub(windowStart)
	if !exists || elapsed >= rule.Window || elapsed < 0 {
		return 1, now, Result{Allowed: true, Count: 1}
	}
	if count < rule.Max {
		return count + 1, windowStart, Result{Allowed: true, Count: count + 1}
	}
	return count, windowStart, Result{
		Allowed:    false,
		Count:      count,
		RetryAfter: rule.Window - elapsed,
	}
}
