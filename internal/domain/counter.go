package domain

import "time"

// DateKeyLayout formats the day a counter belongs to.
const DateKeyLayout = "2006-01-02"

// DailySendCounter counts successful sends for the current day.
type DailySendCounter struct {
	Count     int
	DateKey   string
	LastPhone string
	LastAt    time.Time
}

// DateKey returns the counter day for t in loc.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DateKeyLayout)
}

// Today returns the count as seen on the day of now; a counter from a
// previous day reads as zero.
func (c DailySendCounter) Today(now time.Time, loc *time.Location) int {
	if c.DateKey != DateKey(now, loc) {
		return 0
	}
	return c.Count
}
