package utils

import "time"

// DayClock resolves calendar days for quota accounting in a fixed location.
type DayClock struct {
	loc *time.Location
	now func() time.Time
}

func NewDayClock(loc *time.Location, now func() time.Time) *DayClock {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &DayClock{loc: loc, now: now}
}

func (d *DayClock) Now() time.Time { return d.now().In(d.loc) }

func (d *DayClock) Location() *time.Location { return d.loc }

// Today returns the current calendar day as YYYY-MM-DD.
func (d *DayClock) Today() string { return d.Now().Format(time.DateOnly) }

// StartOfMonth returns the first day of the current month as YYYY-MM-DD.
func (d *DayClock) StartOfMonth() string {
	n := d.Now()
	return time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, d.loc).Format(time.DateOnly)
}

// DaysAgo returns the calendar day n days before today as YYYY-MM-DD.
func (d *DayClock) DaysAgo(n int) string {
	return d.Now().AddDate(0, 0, -n).Format(time.DateOnly)
}

func NowUnixSeconds() int64 { return time.Now().Unix() }

// FromUnixSeconds converts a nullable epoch-seconds column to *time.Time.
func FromUnixSeconds(t *int64) *time.Time {
	if t == nil || *t <= 0 {
		return nil
	}
	v := time.Unix(*t, 0).UTC()
	return &v
}

func Int64Ptr(v int64) *int64 { return &v }
