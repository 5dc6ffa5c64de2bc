package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ReferenceZone is the fixed zone "today" is computed in.
var ReferenceZone = time.FixedZone("UTC+8", 8*60*60)

// Today returns the calendar day of now in ReferenceZone.
func Today(now time.Time) Date {
	y, m, d := now.In(ReferenceZone).Date()
	return NewDate(y, int(m), d)
}

// MonthKey returns the English month name used as a ledger tab name.
func MonthKey(m time.Month) string {
	return m.String()
}

// ParseDisplayDate parses a DD/MM/YY date and rejects impossible days
// such as 31/02/25.
func ParseDisplayDate(s string) (Date, error) {
	t, err := time.Parse("02/01/06", strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return NewDate(t.Year(), int(t.Month()), t.Day()), nil
}

// ValidDate builds a Date and fails when the parts do not name a real day.
func ValidDate(year, month, day int) (Date, error) {
	if month < 1 || month > 12 {
		return Date{}, ErrInvalidMonth
	}
	d := NewDate(year, month, day)
	if d.Day() != day || int(d.Month()) != month {
		return Date{}, ErrInvalidDay
	}
	return d, nil
}

// ParseMonth accepts an English month name, a three-letter prefix or a
// number between 1 and 12.
func ParseMonth(s string) (time.Month, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 12 {
			return 0, fmt.Errorf("%w: %d", ErrInvalidMonth, n)
		}
		return time.Month(n), nil
	}
	lower := strings.ToLower(s)
	if len(lower) >= 3 {
		for m := time.January; m <= time.December; m++ {
			name := strings.ToLower(m.String())
			if lower == name || (len(lower) <= len(name) && strings.HasPrefix(name, lower)) {
				return m, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
}
