package timetable

import "time"

// =============================================================================
// GROUP - Recurring schedule definition
// =============================================================================

type GroupID string

// Group defines a recurring class: which weekdays it meets, its lifetime,
// and the session time window. Pricing and enrollment live in the finance
// package; this type only carries what scheduling needs.
type Group struct {
	ID     GroupID
	Name   string
	RoomID string // empty = no room assigned, exempt from conflict checks

	Weekdays  WeekdaySet
	StartDate Date
	EndDate   Date
	StartTime TimeOfDay
	EndTime   TimeOfDay

	Archived   bool
	ArchivedAt time.Time
	CreatedAt  time.Time
}

// Validate checks the structural invariants: a non-empty weekday set,
// start_date <= end_date, and a positive session window.
func (g Group) Validate() error {
	if g.Weekdays.IsEmpty() {
		return ErrEmptyWeekdays
	}
	if g.StartDate.After(g.EndDate) {
		return ErrInvalidDateRange
	}
	if g.EndTime <= g.StartTime {
		return ErrInvalidTimeWindow
	}
	return nil
}

// Lifetime returns the group's inclusive [start_date, end_date] window.
func (g Group) Lifetime() DateRange {
	return DateRange{Start: g.StartDate, End: g.EndDate}
}

// IsActive is the single activity predicate: not archived and asOf within
// the group's lifetime. Every "currently running" check goes through here.
func (g Group) IsActive(asOf Date) bool {
	return !g.Archived && g.Lifetime().Contains(asOf)
}
