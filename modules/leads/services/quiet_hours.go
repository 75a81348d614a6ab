package services

import (
	"time"

	"github.com/go-faster/errors"
)

// QuietHours is a local wall-clock interval during which outbound texts are deferred.
// Start > End means the interval wraps midnight.
type QuietHours struct {
	Enabled  bool
	Start    int
	End      int
	Location *time.Location
}

func NewQuietHours(enabled bool, start, end int, timezone string) (QuietHours, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return QuietHours{}, errors.Wrap(err, "load quiet hours timezone")
	}
	if start < 0 || start > 23 || end < 0 || end > 23 {
		return QuietHours{}, errors.Errorf("quiet hours must be within 0-23, got %d-%d", start, end)
	}
	return QuietHours{Enabled: enabled, Start: start, End: end, Location: loc}, nil
}

func (q QuietHours) location() *time.Location {
	if q.Location == nil {
		return time.UTC
	}
	return q.Location
}

// IsQuietHours reports whether now falls inside the quiet interval in q's timezone.
func IsQuietHours(q QuietHours, now time.Time) bool {
	if !q.Enabled || q.Start == q.End {
		return false
	}
	hour := now.In(q.location()).Hour()
	if q.Start > q.End {
		return hour >= q.Start || hour < q.End
	}
	return hour >= q.Start && hour < q.End
}

// NextAllowedTime returns today's End hour in q's timezone, or tomorrow's when that
// instant is not strictly after now.
func NextAllowedTime(q QuietHours, now time.Time) time.Time {
	loc := q.location()
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), q.End, 0, 0, 0, loc)
	if !next.After(now) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, q.End, 0, 0, 0, loc)
	}
	return next
}
