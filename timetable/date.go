/*
Package timetable provides the group scheduling core.

PURPOSE:
  Everything needed to answer "when does this group actually meet?":
  civil-date and time-of-day value types, the recurring weekday pattern,
  holidays, ad-hoc schedule overrides, and the resolver that combines
  them into the authoritative list of lesson dates. Also contains the
  room/time conflict checker used when groups are created or updated.

KEY CONCEPTS IN THIS FILE (date.go):
  - Date: a civil calendar date with no time-of-day or zone attached
  - TimeOfDay: a wall-clock session boundary (minutes since midnight)
  - WeekdaySet: the recurring pattern, ISO weekdays Monday=1..Sunday=7
  - DateRange: an inclusive [start, end] window

DESIGN PRINCIPLES:
  1. Value semantics: all types here are small comparable values, safe
     as map keys and cheap to copy.
  2. Month arithmetic clamps: Jan 31 + 1 month = Feb 28/29, never Mar 2.
  3. ISO weekdays throughout: Monday=1..Sunday=7, matching the stored
     weekday-pattern digits.

SEE ALSO:
  - group.go: the recurring schedule definition using these types
  - resolver.go: regular/actual lesson day calculation
*/
package timetable

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Civil calendar date
// =============================================================================

// Date is a civil date. The zero value is "no date".
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf truncates a time.Time to its civil date.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the current civil date in local time.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) timeValue() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Time returns the date at midnight in the given location.
func (d Date) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) IsZero() bool { return d == Date{} }

// Comparison
func (d Date) Before(other Date) bool { return d.timeValue().Before(other.timeValue()) }
func (d Date) After(other Date) bool  { return d.timeValue().After(other.timeValue()) }
func (d Date) Equal(other Date) bool  { return d == other }
func (d Date) BeforeOrEqual(other Date) bool {
	return d == other || d.Before(other)
}
func (d Date) AfterOrEqual(other Date) bool {
	return d == other || d.After(other)
}

// Arithmetic
func (d Date) AddDays(n int) Date { return DateOf(d.timeValue().AddDate(0, 0, n)) }

// AddMonths adds calendar months, clamping the day to the target month's
// length. Jan 31 + 1 month is Feb 28 (or 29), not Mar 2/3.
func (d Date) AddMonths(n int) Date {
	total := int(d.Month) - 1 + n
	year := d.Year + total/12
	month := time.Month(total%12 + 1)
	if total < 0 && total%12 != 0 {
		year--
		month = time.Month(total%12 + 13)
	}
	day := d.Day
	if max := DaysInMonth(year, month); day > max {
		day = max
	}
	return Date{Year: year, Month: month, Day: day}
}

// Properties
func (d Date) Weekday() time.Weekday { return d.timeValue().Weekday() }

// ISOWeekday returns Monday=1..Sunday=7.
func (d Date) ISOWeekday() int {
	wd := int(d.timeValue().Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func (d Date) String() string { return d.timeValue().Format("2006-01-02") }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		*d = Date{}
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// MONTH HELPERS
// =============================================================================

func DaysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func StartOfMonth(year int, month time.Month) Date { return Date{Year: year, Month: month, Day: 1} }

func EndOfMonth(year int, month time.Month) Date {
	return Date{Year: year, Month: month, Day: DaysInMonth(year, month)}
}

func DaysBetween(from, to Date) int {
	return int(to.timeValue().Sub(from.timeValue()).Hours() / 24)
}

// =============================================================================
// DATE RANGE - Inclusive [Start, End] window
// =============================================================================

type DateRange struct {
	Start Date
	End   Date
}

// IsEmpty reports whether the range contains no dates (start after end).
func (r DateRange) IsEmpty() bool { return r.Start.After(r.End) }

func (r DateRange) Contains(d Date) bool {
	return d.AfterOrEqual(r.Start) && d.BeforeOrEqual(r.End)
}

// Overlaps reports whether two inclusive ranges share at least one date.
func (r DateRange) Overlaps(other DateRange) bool {
	return r.Start.BeforeOrEqual(other.End) && r.End.AfterOrEqual(other.Start)
}

// Intersect returns the overlapping window. The result may be empty.
func (r DateRange) Intersect(other DateRange) DateRange {
	out := r
	if other.Start.After(out.Start) {
		out.Start = other.Start
	}
	if other.End.Before(out.End) {
		out.End = other.End
	}
	return out
}

func (r DateRange) String() string {
	return "[" + r.Start.String() + ", " + r.End.String() + "]"
}

// =============================================================================
// TIME OF DAY - Session window boundary
// =============================================================================

// TimeOfDay is a wall-clock time stored as minutes since midnight.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay { return TimeOfDay(hour*60 + minute) }

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return NewTimeOfDay(t.Hour(), t.Minute()), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) Before(other TimeOfDay) bool { return t < other }
func (t TimeOfDay) After(other TimeOfDay) bool  { return t > other }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// TimeWindowsOverlap reports whether two half-open [start, end) session
// windows intersect: startA < endB AND endA > startB.
func TimeWindowsOverlap(startA, endA, startB, endB TimeOfDay) bool {
	return startA < endB && endA > startB
}

// =============================================================================
// WEEKDAY SET - Recurring pattern, ISO weekdays 1..7
// =============================================================================

// WeekdaySet is a set of ISO weekdays stored as a bitmask (bit 1 = Monday).
type WeekdaySet uint8

// ParseWeekdays parses a digit string like "135" (Mon/Wed/Fri). Digits must
// be 1-7 with no duplicates; the set must be non-empty.
func ParseWeekdays(s string) (WeekdaySet, error) {
	if s == "" {
		return 0, ErrEmptyWeekdays
	}
	var ws WeekdaySet
	for _, r := range s {
		if r < '1' || r > '7' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidWeekdays, s)
		}
		day := int(r - '0')
		if ws.Contains(day) {
			return 0, fmt.Errorf("%w: duplicate day %d", ErrInvalidWeekdays, day)
		}
		ws |= 1 << day
	}
	return ws, nil
}

func (ws WeekdaySet) Contains(isoDay int) bool {
	if isoDay < 1 || isoDay > 7 {
		return false
	}
	return ws&(1<<isoDay) != 0
}

func (ws WeekdaySet) IsEmpty() bool { return ws == 0 }

func (ws WeekdaySet) Intersects(other WeekdaySet) bool { return ws&other != 0 }

// Days returns the member weekdays in ascending order.
func (ws WeekdaySet) Days() []int {
	var days []int
	for d := 1; d <= 7; d++ {
		if ws.Contains(d) {
			days = append(days, d)
		}
	}
	return days
}

// String renders the set back to digit form, e.g. "135".
func (ws WeekdaySet) String() string {
	out := make([]byte, 0, 7)
	for d := 1; d <= 7; d++ {
		if ws.Contains(d) {
			out = append(out, byte('0'+d))
		}
	}
	return string(out)
}
