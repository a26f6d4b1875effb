// Package keys derives the hour, day and ISO week bucket identifiers used by
// the aggregate store. Every bucket key in the system comes from here.
//
// All keys for an instant are computed in a single location so the date part
// of an hour key always matches the day key of the same instant.
package keys

import (
	"fmt"
	"time"
)

const (
	dayLayout  = "2006-01-02"
	hourLayout = "2006-01-02-15"
)

// Set holds the three bucket keys of one instant.
type Set struct {
	Hour string
	Day  string
	Week string
}

// Day returns the calendar date of t in loc as YYYY-MM-DD.
func Day(t time.Time, loc *time.Location) string {
	return t.In(location(loc)).Format(dayLayout)
}

// Hour returns Day(t) followed by the two-digit hour, e.g. 2024-03-09-07.
func Hour(t time.Time, loc *time.Location) string {
	return t.In(location(loc)).Format(hourLayout)
}

// Week returns the ISO-8601 week of t in loc as YYYY-Www.
//
// The date is shifted to the Thursday of its Monday-based week; that
// Thursday's year is the week-year and the week number counts from the
// first Thursday of that year. time.ISOWeek implements exactly this rule.
func Week(t time.Time, loc *time.Location) string {
	year, week := t.In(location(loc)).ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// For returns all bucket keys of t.
func For(t time.Time, loc *time.Location) Set {
	local := t.In(location(loc))
	year, week := local.ISOWeek()
	return Set{
		Hour: local.Format(hourLayout),
		Day:  local.Format(dayLayout),
		Week: fmt.Sprintf("%04d-W%02d", year, week),
	}
}

// WeekOfDay returns the week key of a stored day key.
func WeekOfDay(dayKey string) (string, error) {
	d, err := time.Parse(dayLayout, dayKey)
	if err != nil {
		return "", fmt.Errorf("parse day key %q: %w", dayKey, err)
	}
	return Week(d, time.UTC), nil
}

// SplitHour splits an hour key into its day key and two-digit hour.
func SplitHour(hourKey string) (day, hour string, err error) {
	if _, err := time.Parse(hourLayout, hourKey); err != nil {
		return "", "", fmt.Errorf("parse hour key %q: %w", hourKey, err)
	}
	return hourKey[:len(dayLayout)], hourKey[len(dayLayout)+1:], nil
}

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
