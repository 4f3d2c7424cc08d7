package digest

import (
	"time"

	"inboxpilot/internal/model"
)

const dateLayout = "2006-01-02"

// WindowKey returns the idempotency key for a digest: the calendar date
// for daily windows, the ISO week's Monday for weekly.
func WindowKey(windowType model.WindowType, now time.Time) string {
	if windowType == model.WindowWeekly {
		return WeekStart(now).Format(dateLayout)
	}
	return now.Format(dateLayout)
}

// WeekStart returns midnight of the Monday starting the ISO week that
// contains t, in t's location.
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7 // Monday = 0 ... Sunday = 6
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -offset)
}

// WindowRange returns the item time range a digest covers. Daily
// windows cover the trailing day; the weekly window covers its ISO
// week up to now.
func WindowRange(windowType model.WindowType, now time.Time) (from, to time.Time) {
	if windowType == model.WindowWeekly {
		return WeekStart(now), now
	}
	return now.Add(-24 * time.Hour), now
}
