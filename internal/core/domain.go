package core

import (
	"errors"
	"strings"
	"time"
)

const (
	// DateLayout is the calendar-date format used everywhere, storage included.
	DateLayout = "2006-01-02"
	// ClockLayout is the wall-clock format for interval boundaries.
	ClockLayout = "15:04"
	// MonthLayout identifies a target month for aggregation and export.
	MonthLayout = "2006-01"
)

type (
	// ClockTime is a wall-clock time of day with minute resolution.
	ClockTime struct {
		Hour   int
		Minute int
	}

	// WorkEntry is a completed, titled work interval on one calendar date.
	// Date is derived from the interval's start timestamp and is not
	// independently editable.
	WorkEntry struct {
		ID       int64
		Username string
		Date     string // DateLayout
		Start    ClockTime
		End      ClockTime
		Title    string
		Memo     string
	}

	// TaskDuration is one task's share of a day inside a monthly summary.
	TaskDuration struct {
		Title   string
		Minutes int64
	}
)

var (
	ErrUserExists     = errors.New("username already registered")
	ErrEntryNotFound  = errors.New("work entry not found")
	ErrEmptyTitle     = errors.New("empty title")
	ErrInvalidDate    = errors.New("invalid date")
	ErrInvalidClock   = errors.New("invalid clock time")
	ErrEndBeforeStart = errors.New("end is not after start")
)

// ParseClock parses a "15:04" wall-clock string.
func ParseClock(s string) (ClockTime, error) {
	t, err := time.Parse(ClockLayout, strings.TrimSpace(s))
	if err != nil {
		return ClockTime{}, ErrInvalidClock
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// ClockOf truncates a timestamp to its wall-clock time of day.
func ClockOf(t time.Time) ClockTime {
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}
}

func (c ClockTime) String() string {
	return time.Date(0, 1, 1, c.Hour, c.Minute, 0, 0, time.UTC).Format(ClockLayout)
}

// After reports whether c is strictly later in the day than o.
func (c ClockTime) After(o ClockTime) bool {
	return c.Hour*60+c.Minute > o.Hour*60+o.Minute
}

// ParseDate validates a "2006-01-02" calendar-date string and returns it
// normalized.
func ParseDate(s string) (string, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", ErrInvalidDate
	}
	return t.Format(DateLayout), nil
}

// ParseMonth validates a "2006-01" year-month string and returns it
// normalized.
func ParseMonth(s string) (string, error) {
	t, err := time.Parse(MonthLayout, strings.TrimSpace(s))
	if err != nil {
		return "", ErrInvalidDate
	}
	return t.Format(MonthLayout), nil
}

func (e WorkEntry) Validate() error {
	if _, err := ParseDate(e.Date); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(e.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if !e.End.After(e.Start) {
		return ErrEndBeforeStart
	}
	return nil
}

// Minutes returns the interval length using the historical arithmetic
// (end.hour-start.hour)*60 + (end.minute-start.minute). The formula is not
// midnight-safe; intervals are validated as same-day before they reach
// storage, so the clock path never feeds it a negative case.
func (e WorkEntry) Minutes() int64 {
	return int64((e.End.Hour-e.Start.Hour)*60 + (e.End.Minute - e.Start.Minute))
}
