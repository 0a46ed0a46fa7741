package dashboard

import "time"

// ClassifyDue buckets a raw due date against now. An empty due means no due
// date; an unparseable one falls back to DueNone.
func ClassifyDue(due string, dueComplete bool, upcomingDays int, now time.Time) DueCategory {
	if due == "" {
		return DueNoDue
	}
	t, ok := parseTimestamp(due)
	if !ok {
		return DueNone
	}
	if dueComplete {
		return DueNone
	}
	if t.Before(now) {
		return DueOverdue
	}
	if !t.After(now.Add(time.Duration(upcomingDays) * 24 * time.Hour)) {
		return DueUpcoming
	}
	return DueNone
}
