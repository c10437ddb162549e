package funds

import (
	"time"

	"github.com/aristath/fundsentry/pkg/formulas"
)

// Period labels for the standard trailing-return ladder.
var standardPeriods = []struct {
	Days  int
	Label string
}{
	{7, "1w"},
	{30, "1m"},
	{90, "3m"},
	{180, "6m"},
	{365, "1y"},
	{365 * 2, "2y"},
	{365 * 3, "3y"},
	{365 * 5, "5y"},
	{365 * 10, "10y"},
}

// PeriodReturn computes the simple percentage return over a trailing window
// of the given number of days. The window must be sorted ascending by date
// with null NAVs already excluded.
//
// The base observation is the latest one with date <= latest date - days.
// When no such observation exists the fund's history is too short and the
// result is Undefined - never zero, so callers can tell "flat" from
// "insufficient history".
func PeriodReturn(window []NavPoint, days int) Value {
	if len(window) < 2 {
		return Undefined()
	}

	latest := window[len(window)-1]
	target := latest.Date.AddDate(0, 0, -days)

	// Greatest date <= target
	var past *NavPoint
	for i := len(window) - 1; i >= 0; i-- {
		if !window[i].Date.After(target) {
			past = &window[i]
			break
		}
	}
	if past == nil || past.UnitNav == 0 {
		return Undefined()
	}

	ret := (latest.UnitNav - past.UnitNav) / past.UnitNav * 100
	return Ok(formulas.Round2(ret))
}

// YearReturn computes the calendar-year return for the given year.
//
// Start value: first NAV with date >= Jan 1 of the year.
// End value: last NAV with date <= Dec 31 for closed years; the still-open
// current year (year >= now.Year()) uses the latest available NAV instead.
// A missing endpoint or a zero base makes the result Undefined.
func YearReturn(window []NavPoint, year int, now time.Time) Value {
	if len(window) == 0 {
		return Undefined()
	}

	yearStart := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)

	var start *NavPoint
	for i := range window {
		if !window[i].Date.Before(yearStart) {
			start = &window[i]
			break
		}
	}
	if start == nil || start.UnitNav == 0 {
		return Undefined()
	}

	var end *NavPoint
	if year >= now.Year() {
		end = &window[len(window)-1]
	} else {
		for i := len(window) - 1; i >= 0; i-- {
			if !window[i].Date.After(yearEnd) {
				end = &window[i]
				break
			}
		}
	}
	if end == nil {
		return Undefined()
	}

	// A start point after the requested year means the fund had no data in
	// that year at all.
	if start.Date.After(yearEnd) {
		return Undefined()
	}

	ret := (end.UnitNav - start.UnitNav) / start.UnitNav * 100
	return Ok(formulas.Round2(ret))
}

// PeriodLadder computes the standard trailing windows (1w through 10y) over
// one window and returns them keyed by label.
func PeriodLadder(window []NavPoint) map[string]Value {
	ladder := make(map[string]Value, len(standardPeriods))
	for _, p := range standardPeriods {
		ladder[p.Label] = PeriodReturn(window, p.Days)
	}
	return ladder
}
