package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-day layout used for engagement dates.
const DateLayout = "2006-01-02"

// Date is an opaque calendar-day key in YYYY-MM-DD form. Lexical order of
// valid dates equals chronological order.
type Date string

// ParseDate accepts a calendar day or an RFC3339 timestamp and keeps only
// the day part as written. No timezone conversion is applied.
func ParseDate(value string) (Date, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", fmt.Errorf("empty date value")
	}
	if len(v) > len(DateLayout) && (v[len(DateLayout)] == 'T' || v[len(DateLayout)] == ' ') {
		v = v[:len(DateLayout)]
	}
	if _, err := time.Parse(DateLayout, v); err != nil {
		return "", fmt.Errorf("parse date %q: %w", value, err)
	}
	return Date(v), nil
}

// Time returns the date at midnight UTC, or the zero time if unparsable.
func (d Date) Time() time.Time {
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// Before reports whether d is chronologically earlier than other.
func (d Date) Before(other Date) bool { return d < other }

func (d Date) String() string { return string(d) }
