// Package timeutil provides calendar-date utilities for the scheduling and
// streak engine. The engine tracks streaks against the UTC calendar date of a
// submission, while reflection views are aligned to a caller-supplied
// timezone offset; both conversions live here.
// No external dependencies - uses only standard library.
package timeutil

import "time"

// FormatDate is the standard date format (YYYY-MM-DD).
const FormatDate = "2006-01-02"

// DateOnly truncates a time to its UTC calendar date (00:00:00 UTC).
func DateOnly(t time.Time) time.Time {
	utc := t.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}

// DayOfYear returns the 1-based ordinal day of the year for the given time
// in UTC. January 1st is day 1.
func DayOfYear(t time.Time) int {
	return t.UTC().YearDay()
}

// LocalDate maps a UTC instant to the caller's calendar date by subtracting
// the timezone offset in minutes. The offset convention follows JavaScript's
// Date.getTimezoneOffset: positive values are west of UTC.
func LocalDate(t time.Time, tzOffsetMinutes int) time.Time {
	shifted := t.UTC().Add(-time.Duration(tzOffsetMinutes) * time.Minute)
	return time.Date(shifted.Year(), shifted.Month(), shifted.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfWeek returns the Monday of the week containing the given date.
// The result carries the same 00:00:00 UTC normalization as DateOnly.
func StartOfWeek(t time.Time) time.Time {
	day := DateOnly(t)
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return day.AddDate(0, 0, -(weekday - 1))
}

// SameDay checks whether two instants fall on the same UTC calendar date.
func SameDay(t1, t2 time.Time) bool {
	a, b := t1.UTC(), t2.UTC()
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// DayGap returns the signed number of calendar days from "from" to "to" in
// UTC. A gap of 1 means "to" is the day after "from"; negative values mean
// "to" precedes "from" (clock skew between writers).
func DayGap(from, to time.Time) int {
	a := DateOnly(from)
	b := DateOnly(to)
	return int(b.Sub(a).Hours() / 24)
}

// ParseDate parses a plain calendar date (YYYY-MM-DD) as a UTC date.
func ParseDate(value string) (time.Time, error) {
	return time.Parse(FormatDate, value)
}

// FormatDateStr formats a time as a date string (YYYY-MM-DD) in UTC.
func FormatDateStr(t time.Time) string {
	return t.UTC().Format(FormatDate)
}
