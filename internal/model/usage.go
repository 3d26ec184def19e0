package model

import (
	"fmt"
	"time"
)

// YearMonth identifies a calendar month. Local usage counters are bucketed by it.
type YearMonth struct {
	Year  int
	Month time.Month
}

// MonthOf returns the calendar month containing t, in UTC.
func MonthOf(t time.Time) YearMonth {
	t = t.UTC()
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// AddMonths shifts the month by n (which may be negative).
func (ym YearMonth) AddMonths(n int) YearMonth {
	return MonthOf(time.Date(ym.Year, ym.Month+time.Month(n), 1, 0, 0, 0, 0, time.UTC))
}

// Before reports whether ym is strictly earlier than other.
func (ym YearMonth) Before(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

// Start is the first instant of the month.
func (ym YearMonth) Start() time.Time {
	return time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.UTC)
}

// ParseYearMonth parses the "YYYY-MM" form produced by String.
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return YearMonth{}, fmt.Errorf("parse year-month %q: %w", s, err)
	}
	return MonthOf(t), nil
}

// LocalUsageEstimate is an optimistic, client-side approximation of quota
// consumption. It is advisory only and never an access boundary; see
// ServerUsage for the authoritative counterpart.
type LocalUsageEstimate struct {
	Feature   Meter  `json:"feature"`
	Month     string `json:"month"`
	Count     int    `json:"count"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	Unlimited bool   `json:"unlimited"`
}

// CounterKey addresses one local usage counter.
type CounterKey struct {
	UserID  string
	Feature Meter
	Month   YearMonth
}

// StorageKey is the flat key used by key/value stores.
func (k CounterKey) StorageKey() string {
	return "usage:" + k.UserID + ":" + string(k.Feature) + ":" + k.Month.String()
}
