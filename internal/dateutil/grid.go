package dateutil

import "time"

// Grid is a strictly increasing list of day starts.
type Grid []time.Time

// DailyGrid holds every day of a bounded window.
func DailyGrid(w Window) Grid {
	return Grid(w.Days())
}

// MonthlyGrid holds the first day of every month intersecting a bounded window.
func MonthlyGrid(w Window) Grid {
	return Grid(w.Months())
}

// CustomGrid normalizes explicit dates to sorted, unique day starts.
func CustomGrid(dates []time.Time) Grid {
	return Grid(SortedUnique(dates))
}

// First returns the earliest date, or the zero time for an empty grid.
func (g Grid) First() time.Time {
	if len(g) == 0 {
		return time.Time{}
	}
	return g[0]
}

// Last returns the latest date, or the zero time for an empty grid.
func (g Grid) Last() time.Time {
	if len(g) == 0 {
		return time.Time{}
	}
	return g[len(g)-1]
}
