// Package calendar holds the date arithmetic behind time logs and weekly
// timesheets.
//
// A calendar date is represented as a time.Time at midnight UTC carrying the
// year, month and day of the local day it names. Instants (timer starts,
// log spans) stay real instants; DateOf converts one into the date it falls
// on in the configured location.
package calendar

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const DateLayout = "2006-01-02"

var weekTokenRe = regexp.MustCompile(`^(\d{4})-?W(\d{2})$`)

// DateOf returns the calendar date of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Normalize strips any clock component from a date value.
func Normalize(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekStart returns the Monday of the ISO week containing date.
func WeekStart(date time.Time) time.Time {
	date = Normalize(date)
	offset := (int(date.Weekday()) + 6) % 7
	return date.AddDate(0, 0, -offset)
}

// WeekBounds returns the Monday and Sunday enclosing date.
func WeekBounds(date time.Time) (time.Time, time.Time) {
	start := WeekStart(date)
	return start, start.AddDate(0, 0, 6)
}

// ParseWeek resolves either an ISO week token ("2026-W42") or a plain date
// ("2026-10-15") to the Monday that starts the week.
func ParseWeek(identifier string) (time.Time, error) {
	if m := weekTokenRe.FindStringSubmatch(identifier); m != nil {
		year, _ := strconv.Atoi(m[1])
		week, _ := strconv.Atoi(m[2])
		return isoWeekStart(year, week)
	}

	date, err := time.Parse(DateLayout, identifier)
	if err != nil {
		return time.Time{}, fmt.Errorf("week identifier %q: expected YYYY-Www or YYYY-MM-DD", identifier)
	}
	return WeekStart(date), nil
}

func isoWeekStart(year, week int) (time.Time, error) {
	if week < 1 || week > 53 {
		return time.Time{}, fmt.Errorf("week %d out of range", week)
	}
	// January 4th always falls in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	start := WeekStart(jan4).AddDate(0, 0, (week-1)*7)
	if y, w := start.ISOWeek(); y != year || w != week {
		return time.Time{}, fmt.Errorf("year %d has no ISO week %d", year, week)
	}
	return start, nil
}

// WeekToken formats the ISO week containing date as "YYYY-Www".
func WeekToken(date time.Time) string {
	y, w := Normalize(date).ISOWeek()
	return fmt.Sprintf("%04d-W%02d", y, w)
}

// At returns the instant at hour:00 of date in loc.
func At(date time.Time, hour int, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, hour, 0, 0, 0, loc)
}

// Hours converts a duration to decimal hours.
func Hours(d time.Duration) float64 {
	return d.Hours()
}

// FromHours converts decimal hours back to a duration, rounded to the second.
func FromHours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour)).Round(time.Second)
}

// FormatHMS renders a duration as HH:MM:SS. Hours are not wrapped at 24.
func FormatHMS(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
