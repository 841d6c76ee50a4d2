package schedule

import (
	"errors"
	"time"

	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/model"
)

var (
	// ErrUnsupportedTimeUnit is returned when the unit is not one of the
	// four enumerated values. NextDate still returns the anchor, so the
	// caller can treat this as a recoverable warning.
	ErrUnsupportedTimeUnit = errors.New("unsupported time unit")

	// ErrInvalidInterval is returned for a non-positive interval.
	// Recoverable the same way as an unsupported unit.
	ErrInvalidInterval = errors.New("interval must be a positive integer")
)

// NextDate computes the date interval units after anchor.
//
// WEEKS is interval*7 days. MONTHS and YEARS use calendar-aware
// addition: the day of month is clamped to the target month's length,
// so Jan 31 + 1 month lands on the last day of February instead of
// normalizing into March. On an invalid interval or unit the anchor is
// returned unchanged together with a sentinel error.
func NextDate(anchor time.Time, interval int, unit model.TimeUnit) (time.Time, error) {
	if interval <= 0 {
		return anchor, ErrInvalidInterval
	}

	switch unit {
	case model.TimeUnitDays:
		return anchor.AddDate(0, 0, interval), nil
	case model.TimeUnitWeeks:
		return anchor.AddDate(0, 0, interval*7), nil
	case model.TimeUnitMonths:
		return addMonths(anchor, interval), nil
	case model.TimeUnitYears:
		return addMonths(anchor, interval*12), nil
	default:
		return anchor, ErrUnsupportedTimeUnit
	}
}

// addMonths adds n calendar months, clamping the day of month.
// time.Time.AddDate is unsuitable here: it normalizes Jan 31 + 1 month
// into March 2/3.
func addMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()

	total := int(month) - 1 + n
	year += total / 12
	month = time.Month(total%12 + 1)

	if last := lastDayOfMonth(year, month); day > last {
		day = last
	}

	hour, min, sec := t.Clock()
	return time.Date(year, month, day, hour, min, sec, t.Nanosecond(), t.Location())
}

// lastDayOfMonth returns the number of days in the given month.
func lastDayOfMonth(year int, month time.Month) int {
	// Day 0 of the next month normalizes to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
