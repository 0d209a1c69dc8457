package ledger

import "time"

// NextDueDate returns the next payment due date relative to ref. When ref
// falls on or before the due day it is the due day of ref's month, otherwise
// the due day of the following month, rolling December into January. Every
// place a due date is computed or rolled forward goes through this function.
// Results are pinned at midnight UTC, matching DATE columns scanned back from
// the store.
func NextDueDate(ref time.Time, dueDay int) time.Time {
	year, month := ref.Year(), ref.Month()
	if ref.Day() > dueDay {
		if month == time.December {
			year++
			month = time.January
		} else {
			month++
		}
	}
	return time.Date(year, month, dueDay, 0, 0, 0, 0, time.UTC)
}

// DateOnly strips the clock from t, keeping its wall calendar date at
// midnight UTC. Due-date comparisons are calendar-date comparisons, and the
// stored due dates are midnight UTC, so reference times are normalized to the
// same shape before any comparison.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
