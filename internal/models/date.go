package models

import (
	"fmt"
	"time"
)

// DateLayout is the wire and storage format of a CalendarDate.
const DateLayout = "2006-01-02"

// CalendarDate is a day without time-of-day, serialized as YYYY-MM-DD.
type CalendarDate string

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) CalendarDate {
	return CalendarDate(t.Format(DateLayout))
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (CalendarDate, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// Time returns midnight UTC of the date. Invalid dates yield the zero time.
func (d CalendarDate) Time() time.Time {
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays shifts the date by n days.
func (d CalendarDate) AddDays(n int) CalendarDate {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Next is the following calendar day.
func (d CalendarDate) Next() CalendarDate { return d.AddDays(1) }

// Prev is the preceding calendar day.
func (d CalendarDate) Prev() CalendarDate { return d.AddDays(-1) }

// IsValid reports whether d is a well-formed date.
func (d CalendarDate) IsValid() bool {
	_, err := time.Parse(DateLayout, string(d))
	return err == nil
}

func (d CalendarDate) String() string { return string(d) }
