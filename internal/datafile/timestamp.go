package datafile

import (
	"fmt"
	"time"
)

const (
	secondsPerDay = 86400

	// a "month" in the on-disk seconds value is always 31 days
	secondsPerMonth = 31 * secondsPerDay
)

// Timestamp is the on-disk date/time: a seconds value packing month, day and
// time of day, and a separate year. Year 0 means unset.
//
// The packing is not calendar math: every month counts 31 days, so values are
// only meaningful when produced from a real date.
type Timestamp struct {
	Year    int
	Month   int
	Day     int
	Hour    int
	Minute  int
	Second  int
	WeekDay time.Weekday
}

// TimestampFromParts rebuilds a Timestamp from its two on-disk integers
func TimestampFromParts(seconds uint64, year int) Timestamp {
	if year == 0 {
		return Timestamp{}
	}
	ts := Timestamp{
		Year:   year,
		Month:  int((seconds/secondsPerMonth)%12) + 1,
		Day:    int((seconds/secondsPerDay)%31) + 1,
		Hour:   int((seconds / 3600) % 24),
		Minute: int((seconds / 60) % 60),
		Second: int(seconds % 60),
	}
	ts.WeekDay = dayOfWeek(ts.Day, ts.Month, ts.Year)
	return ts
}

// TimestampOf converts t, the zero time gives an unset Timestamp
func TimestampOf(t time.Time) Timestamp {
	if t.IsZero() {
		return Timestamp{}
	}
	return Timestamp{
		Year:    t.Year(),
		Month:   int(t.Month()),
		Day:     t.Day(),
		Hour:    t.Hour(),
		Minute:  t.Minute(),
		Second:  t.Second(),
		WeekDay: t.Weekday(),
	}
}

func dayOfWeek(day, month, year int) time.Weekday {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).Weekday()
}

// IsSet returns false for the unset Timestamp
func (ts Timestamp) IsSet() bool {
	return ts.Year != 0
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Seconds returns the packed on-disk seconds value.
// Fields out of range are clamped, a zero Day or Month counts as 1.
func (ts Timestamp) Seconds() uint64 {
	if !ts.IsSet() {
		return 0
	}
	return uint64(clamp(ts.Second, 0, 59)) +
		uint64(clamp(ts.Minute, 0, 59))*60 +
		uint64(clamp(ts.Hour, 0, 23))*3600 +
		uint64(clamp(ts.Day, 1, 31)-1)*secondsPerDay +
		uint64(clamp(ts.Month, 1, 12)-1)*secondsPerMonth
}

// Time returns the UTC time, zero time if unset
func (ts Timestamp) Time() time.Time {
	if !ts.IsSet() {
		return time.Time{}
	}
	return time.Date(ts.Year, time.Month(ts.Month), ts.Day, ts.Hour, ts.Minute, ts.Second, 0, time.UTC)
}

// String implements Stringer interface
func (ts Timestamp) String() string {
	if !ts.IsSet() {
		return "unset"
	}
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", ts.Year, ts.Month, ts.Day, ts.Hour, ts.Minute, ts.Second)
}
