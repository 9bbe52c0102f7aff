package models

import "time"

// ActivityEntry is one (activity tag, instant) pair in a subject's
// rolling window.
type ActivityEntry struct {
	Activity string
	At       time.Time
}

// MaxActivityWindow / TrimActivityWindow are the bounds spec.md §3
// gives every bounded per-subject sequence in this system: grow to
// 200, trim back to 100 on overflow.
const (
	MaxActivityWindow  = 200
	TrimActivityWindow = 100
)
