package domain

import "time"

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// Date builds a UTC calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf drops the clock part of t, keeping its calendar day in UTC.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return Date(u.Year(), u.Month(), u.Day())
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// DateRange is an inclusive calendar range.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [a.Start,a.End] and [b.Start,b.End] share a day.
func (r DateRange) Overlaps(o DateRange) bool {
	return !DateOf(r.Start).After(DateOf(o.End)) && !DateOf(o.Start).After(DateOf(r.End))
}
