package dateutil

import (
	"sort"
	"time"

	"github.com/rotisserie/eris"
)

// Window is a half-open time range [Start, End). A zero Start or End leaves
// that side unbounded.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow returns [start, end) and rejects empty or inverted ranges.
func NewWindow(start, end time.Time) (Window, error) {
	if !start.Before(end) {
		return Window{}, eris.Errorf("dateutil: start %s must be before end %s", Format(start), Format(end))
	}
	return Window{Start: start.UTC(), End: end.UTC()}, nil
}

// ParseWindow parses two YYYY-MM-DD strings into a window.
func ParseWindow(start, end string) (Window, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return Window{}, err
	}
	return NewWindow(s, e)
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && !t.Before(w.End) {
		return false
	}
	return true
}

// Overlaps reports whether two windows share at least one instant.
func (w Window) Overlaps(o Window) bool {
	if !w.End.IsZero() && !o.Start.IsZero() && !o.Start.Before(w.End) {
		return false
	}
	if !o.End.IsZero() && !w.Start.IsZero() && !w.Start.Before(o.End) {
		return false
	}
	return true
}

// Bounded reports whether both ends are set.
func (w Window) Bounded() bool {
	return !w.Start.IsZero() && !w.End.IsZero()
}

// Days returns every day start inside a bounded window.
func (w Window) Days() []time.Time {
	if !w.Bounded() {
		return nil
	}
	var out []time.Time
	for d := DayStart(w.Start); d.Before(w.End); d = d.AddDate(0, 0, 1) {
		if !d.Before(w.Start) {
			out = append(out, d)
		}
	}
	return out
}

// Months returns the first day of every month that intersects a bounded window.
func (w Window) Months() []time.Time {
	if !w.Bounded() {
		return nil
	}
	var out []time.Time
	for m := MonthStart(w.Start); m.Before(w.End); m = m.AddDate(0, 1, 0) {
		out = append(out, m)
	}
	return out
}

// Intersect returns the overlap of two windows, or false if they are disjoint.
func (w Window) Intersect(o Window) (Window, bool) {
	if !w.Overlaps(o) {
		return Window{}, false
	}
	out := w
	if out.Start.IsZero() || (!o.Start.IsZero() && o.Start.After(out.Start)) {
		out.Start = o.Start
	}
	if out.End.IsZero() || (!o.End.IsZero() && o.End.Before(out.End)) {
		out.End = o.End
	}
	return out, true
}

// String renders the window as start/end with ".." for open sides.
func (w Window) String() string {
	start, end := "..", ".."
	if !w.Start.IsZero() {
		start = Format(w.Start)
	}
	if !w.End.IsZero() {
		end = Format(w.End)
	}
	return start + "/" + end
}

// SortedUnique sorts dates ascending and drops duplicates after truncating
// each to its day start.
func SortedUnique(dates []time.Time) []time.Time {
	seen := make(map[int64]bool, len(dates))
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		d = DayStart(d)
		if seen[d.UnixMilli()] {
			continue
		}
		seen[d.UnixMilli()] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
