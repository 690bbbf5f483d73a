// Package ranking computes top-song lists per user and globally over
// calendar-anchored time windows.
package ranking

import (
	"errors"
	"time"
)

// Period identifies a ranking time window.
type Period string

// Supported periods.
const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"
)

// Periods lists all supported periods, from narrowest to widest.
var Periods = []Period{PeriodDay, PeriodWeek, PeriodMonth, PeriodAll}

// ErrInvalidPeriod is returned for an unrecognized period value.
var ErrInvalidPeriod = errors.New("invalid period")

// ParsePeriod validates a period string. An empty string defaults to "all".
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodAll:
		return Period(s), nil
	case "":
		return PeriodAll, nil
	default:
		return "", ErrInvalidPeriod
	}
}

// Window returns the half-open interval [start, end) of this period that
// contains t, anchored to the UTC calendar: midnight for days, Monday
// midnight for weeks, the first of the month for months. For PeriodAll both
// bounds are zero (unbounded).
//
// Windows are resolved from t every time, never cached, so queries made on
// different days naturally roll into different windows.
func (p Period) Window(t time.Time) (start, end time.Time) {
	t = t.UTC()
	switch p {
	case PeriodDay:
		start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 0, 1)
	case PeriodWeek:
		// ISO weeks start on Monday
		daysSinceMonday := (int(t.Weekday()) + 6) % 7
		start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -daysSinceMonday)
		return start, start.AddDate(0, 0, 7)
	case PeriodMonth:
		start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	default: // PeriodAll
		return time.Time{}, time.Time{}
	}
}
