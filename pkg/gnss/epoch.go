package gnss

import (
	"fmt"
	"strings"
	"time"
)

// Epoch is a moment in GNSS time together with its calendar and GPS week representation.
// The GPS week and day of week are derived from the calendar date, so both are always consistent.
// Epoch is a value type, all derivations return a new Epoch.
type Epoch struct {
	t time.Time
}

// NewEpoch returns the Epoch for t. t is converted to UTC.
func NewEpoch(t time.Time) Epoch {
	return Epoch{t: t.UTC()}
}

// NewEpochFromWeek returns the Epoch at midnight of the given GPS week and day of week.
func NewEpochFromWeek(wk, dow int) Epoch {
	return Epoch{t: GPSEpoch.Add(time.Duration(wk)*week + time.Duration(dow)*day)}
}

// ParseEpoch parses value using the Go time layout. If layout is empty, DefaultDateTimeLayout is used.
// A date-only value like "2023-01-01" is accepted as well.
func ParseEpoch(layout, value string) (Epoch, error) {
	if layout == "" {
		layout = DefaultDateTimeLayout
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return Epoch{}, fmt.Errorf("%w: empty value", ErrInvalidDate)
	}

	t, err := time.Parse(layout, value)
	if err != nil {
		if d, errDate := time.Parse(time.DateOnly, value); errDate == nil {
			return NewEpoch(d), nil
		}
		return Epoch{}, fmt.Errorf("%w: %q does not match layout %q: %v", ErrInvalidDate, value, layout, err)
	}
	return NewEpoch(t), nil
}

// Today returns the Epoch at midnight of the current UTC day.
func Today() Epoch {
	return NewEpoch(time.Now()).Midnight()
}

// Time returns the epoch as UTC time.
func (e Epoch) Time() time.Time {
	return e.t
}

// IsZero reports whether e is the zero epoch.
func (e Epoch) IsZero() bool {
	return e.t.IsZero()
}

// Year returns the calendar year.
func (e Epoch) Year() int {
	return e.t.Year()
}

// DayOfYear returns the day of the year, 1-366.
func (e Epoch) DayOfYear() int {
	return e.t.YearDay()
}

// Week returns the GPS week number.
func (e Epoch) Week() int {
	return floorDiv(e.daysSinceGPSEpoch(), 7)
}

// DayOfWeek returns the day within the GPS week, 0 (Sunday) to 6 (Saturday).
func (e Epoch) DayOfWeek() int {
	return e.daysSinceGPSEpoch() - 7*e.Week()
}

// WeekDay returns the GPS week and the day of week as one string, e.g. "22430".
func (e Epoch) WeekDay() string {
	return fmt.Sprintf("%04d%d", e.Week(), e.DayOfWeek())
}

// Add returns the epoch shifted by d.
func (e Epoch) Add(d time.Duration) Epoch {
	return Epoch{t: e.t.Add(d)}
}

// AddDays returns the epoch shifted by n calendar days.
func (e Epoch) AddDays(n int) Epoch {
	return Epoch{t: e.t.AddDate(0, 0, n)}
}

// StepBack returns the epoch n calendar days earlier.
func (e Epoch) StepBack(n int) Epoch {
	return e.AddDays(-n)
}

// Next returns the epoch one day later.
func (e Epoch) Next() Epoch {
	return e.AddDays(1)
}

// Midnight returns the epoch truncated to the start of its day.
func (e Epoch) Midnight() Epoch {
	y, m, d := e.t.Date()
	return Epoch{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Sub returns the duration e-u.
func (e Epoch) Sub(u Epoch) time.Duration {
	return e.t.Sub(u.t)
}

// Before reports whether e is before u.
func (e Epoch) Before(u Epoch) bool {
	return e.t.Before(u.t)
}

// Equal reports whether e and u represent the same instant.
func (e Epoch) Equal(u Epoch) bool {
	return e.t.Equal(u.t)
}

func (e Epoch) String() string {
	return fmt.Sprintf("%s (week %d day %d)", e.t.Format(time.RFC3339), e.Week(), e.DayOfWeek())
}

func (e Epoch) daysSinceGPSEpoch() int {
	mid := e.Midnight().t
	return int(mid.Sub(GPSEpoch).Round(time.Hour) / day)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
