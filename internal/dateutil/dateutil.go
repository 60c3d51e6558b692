// Package dateutil parses calendar dates and models end-exclusive date windows.
package dateutil

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Layout is the only accepted calendar date format.
const Layout = "2006-01-02"

// Day is one UTC calendar day.
const Day = 24 * time.Hour

// ErrInvalidDate is returned when a date string does not match Layout.
var ErrInvalidDate = eris.New("invalid date")

// ParseDate parses a YYYY-MM-DD string into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) != len(Layout) {
		return time.Time{}, eris.Wrapf(ErrInvalidDate, "dateutil: %q is not YYYY-MM-DD", s)
	}
	t, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(ErrInvalidDate, "dateutil: parse %q: %v", s, err)
	}
	return t.UTC(), nil
}

// MustParseDate is ParseDate for compile-time constants. It panics on error.
func MustParseDate(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Format renders t as YYYY-MM-DD in UTC.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// DayStart truncates t to 00:00 UTC of its calendar day.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthStart returns the first day of t's month at 00:00 UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Millis returns t as milliseconds since the Unix epoch.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts epoch milliseconds to a UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// DayLabel renders t as YYYYMMDD.
func DayLabel(t time.Time) string {
	return t.UTC().Format("20060102")
}

// MonthLabel renders t as YYYYMM.
func MonthLabel(t time.Time) string {
	return t.UTC().Format("200601")
}
