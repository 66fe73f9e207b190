package firing

import (
	"slices"
	"strings"
	"time"

	"kilnworks-backend/internal/model"
)

// Compare orders two scheduled firings by start priority. It returns a
// negative number when a should start before b.
//
// Past-due firings come first, then earlier scheduled starts. Firings
// without a scheduled start sort after all that have one. Remaining ties
// fall back to creation time and then ID.
func Compare(a, b model.Firing, now time.Time) int {
	switch {
	case a.ScheduledStart != nil && b.ScheduledStart != nil:
		aDue, bDue := PastDue(a, now), PastDue(b, now)
		if aDue != bDue {
			if aDue {
				return -1
			}
			return 1
		}
		if c := a.ScheduledStart.Compare(*b.ScheduledStart); c != 0 {
			return c
		}
	case a.ScheduledStart != nil:
		return -1
	case b.ScheduledStart != nil:
		return 1
	}

	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// SortByPriority sorts firings in place, highest priority first.
func SortByPriority(firings []model.Firing, now time.Time) {
	slices.SortFunc(firings, func(a, b model.Firing) int {
		return Compare(a, b, now)
	})
}

// PastDue reports whether f is scheduled and its planned start has passed.
func PastDue(f model.Firing, now time.Time) bool {
	return f.Status == model.FiringStatusScheduled && f.ScheduledStart != nil && f.ScheduledStart.Before(now)
}
