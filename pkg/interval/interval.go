package interval

import (
	"time"
)

// Interval is a half-open lending window [Issue, Return).
type Interval struct {
	Issue  time.Time
	Return time.Time
}

func New(issue, ret time.Time) Interval {
	return Interval{Issue: issue, Return: ret}
}

// Valid reports whether the window has positive length.
func (iv Interval) Valid() bool {
	return iv.Return.After(iv.Issue)
}

// Overlaps reports whether two half-open intervals share at least one
// instant. A return at time T and a new issue at the same T are compatible.
func Overlaps(a, b Interval) bool {
	return a.Issue.Before(b.Return) && b.Issue.Before(a.Return)
}

// Contains reports whether now falls inside [Issue, Return).
func (iv Interval) Contains(now time.Time) bool {
	return !now.Before(iv.Issue) && now.Before(iv.Return)
}

// IsActive reports whether the interval covers now.
func IsActive(iv Interval, now time.Time) bool {
	return iv.Contains(now)
}
