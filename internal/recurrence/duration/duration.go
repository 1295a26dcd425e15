package duration

import (
	"errors"
	"fmt"
	"time"
)

// Approximation constants shared by ToMinutes, FromMinutes and Between.
// Years are treated as 365-day blocks and months as 30-day blocks. This is
// calendar-inexact over long spans, but stored durations depend on the exact
// decomposition, so both directions must use the same constants.
const (
	minutesPerHour  = 60
	minutesPerDay   = 24 * minutesPerHour
	minutesPerMonth = 30 * minutesPerDay
	minutesPerYear  = 365 * minutesPerDay
)

var (
	// ErrInvalidRange is returned when the end of a range is not after its start.
	ErrInvalidRange = errors.New("duration: end must be after start")
	// ErrNegativeDuration is returned when subtraction would go below zero.
	ErrNegativeDuration = errors.New("duration: result would be negative")
)

// Duration is a coarse task duration broken into calendar-ish components.
// All components are non-negative; see Validate for the accepted bounds.
type Duration struct {
	Years   int `json:"years"`
	Months  int `json:"months"`
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// Validate checks component bounds: years <= 99, months <= 11, days <= 30,
// hours <= 23, minutes <= 59, all non-negative.
func (d Duration) Validate() error {
	checks := []struct {
		name  string
		value int
		max   int
	}{
		{"years", d.Years, 99},
		{"months", d.Months, 11},
		{"days", d.Days, 30},
		{"hours", d.Hours, 23},
		{"minutes", d.Minutes, 59},
	}
	for _, c := range checks {
		if c.value < 0 {
			return fmt.Errorf("duration: %s must not be negative", c.name)
		}
		if c.value > c.max {
			return fmt.Errorf("duration: %s must not exceed %d", c.name, c.max)
		}
	}
	return nil
}

// IsZero reports whether every component is zero.
func (d Duration) IsZero() bool {
	return d.Years == 0 && d.Months == 0 && d.Days == 0 && d.Hours == 0 && d.Minutes == 0
}

// AddToDate applies the duration to a date one calendar field at a time:
// years, then months, then days, then hours and minutes. Month addition uses
// the calendar's natural rollover (Jan 31 + 1 month lands in early March when
// February is shorter). Callers depend on this exact order for determinism.
func (d Duration) AddToDate(t time.Time) time.Time {
	t = t.AddDate(d.Years, 0, 0)
	t = t.AddDate(0, d.Months, 0)
	t = t.AddDate(0, 0, d.Days)
	return t.Add(time.Duration(d.Hours)*time.Hour + time.Duration(d.Minutes)*time.Minute)
}

// Between computes the duration from start to end using the block
// approximation above. It is not a true calendar decomposition; a 366-day
// leap-year span comes back as 1 year 1 day. Returns ErrInvalidRange when
// end is not strictly after start.
func Between(start, end time.Time) (Duration, error) {
	if !end.After(start) {
		return Duration{}, ErrInvalidRange
	}
	return FromMinutes(int64(end.Sub(start) / time.Minute)), nil
}

// ToMinutes flattens the duration into total minutes under the block
// approximation.
func (d Duration) ToMinutes() int64 {
	return int64(d.Years)*minutesPerYear +
		int64(d.Months)*minutesPerMonth +
		int64(d.Days)*minutesPerDay +
		int64(d.Hours)*minutesPerHour +
		int64(d.Minutes)
}

// FromMinutes is the inverse of ToMinutes, dividing greedily from years down
// to minutes with the same constants.
func FromMinutes(minutes int64) Duration {
	if minutes < 0 {
		minutes = 0
	}
	d := Duration{}
	d.Years = int(minutes / minutesPerYear)
	minutes %= minutesPerYear
	d.Months = int(minutes / minutesPerMonth)
	minutes %= minutesPerMonth
	d.Days = int(minutes / minutesPerDay)
	minutes %= minutesPerDay
	d.Hours = int(minutes / minutesPerHour)
	d.Minutes = int(minutes % minutesPerHour)
	return d
}

// Add sums two durations component-wise and normalizes carries
// (minutes -> hours at 60, hours -> days at 24, days -> months at 30,
// months -> years at 12).
func (d Duration) Add(other Duration) Duration {
	sum := Duration{
		Years:   d.Years + other.Years,
		Months:  d.Months + other.Months,
		Days:    d.Days + other.Days,
		Hours:   d.Hours + other.Hours,
		Minutes: d.Minutes + other.Minutes,
	}
	sum.Hours += sum.Minutes / 60
	sum.Minutes %= 60
	sum.Days += sum.Hours / 24
	sum.Hours %= 24
	sum.Months += sum.Days / 30
	sum.Days %= 30
	sum.Years += sum.Months / 12
	sum.Months %= 12
	return sum
}

// Subtract returns d minus other, normalized through total minutes. It
// returns ErrNegativeDuration when other is larger than d.
func (d Duration) Subtract(other Duration) (Duration, error) {
	a, b := d.ToMinutes(), other.ToMinutes()
	if a < b {
		return Duration{}, ErrNegativeDuration
	}
	return FromMinutes(a - b), nil
}
