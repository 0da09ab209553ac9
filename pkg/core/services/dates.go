package services

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// dateOf truncates t to a calendar date at midnight UTC, keeping t's local day
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// addMonths adds calendar months, clamping to the last day of the target month
// (Aug 31 + 6 months = Feb 28, or Feb 29 in a leap year)
func addMonths(date time.Time, months int) time.Time {
	y, m, d := date.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	lastDay := first.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the number of whole calendar days from a to b
func daysBetween(a, b time.Time) int {
	return int(dateOf(b).Sub(dateOf(a)).Hours() / 24)
}

// parseClock parses an "HH:MM" time of day; single-digit hours are accepted
func parseClock(clock string) (time.Time, error) {
	t, err := time.Parse(clockLayout, strings.TrimSpace(clock))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", clock, err)
	}
	return t, nil
}

// clockBefore orders two times of day, falling back to text order when either is unparseable
func clockBefore(a, b string) bool {
	ta, errA := parseClock(a)
	tb, errB := parseClock(b)
	if errA != nil || errB != nil {
		return a < b
	}
	return ta.Before(tb)
}

// campStart combines a camp date with its "HH:MM" start time in loc
func campStart(date time.Time, clock string, loc *time.Location) (time.Time, error) {
	t, err := parseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}

// percent returns part/whole*100 rounded to two decimals, or 0 when whole is 0
func percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return round2(float64(part) * 100 / float64(whole))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
