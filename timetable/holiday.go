package timetable

import (
	"context"
	"time"
)

// =============================================================================
// HOLIDAY - Global subtractive calendar entry
// =============================================================================

// Holiday removes a regularly-scheduled lesson date for every group.
// Holidays are global: one per calendar date, not per branch or group.
type Holiday struct {
	ID          string
	Date        Date
	Name        string
	Description string
	CreatedAt   time.Time
}

// HolidayCalendar provides holiday lookup for the schedule resolver.
type HolidayCalendar interface {
	// HolidaysInRange returns holidays with dates in [from, to] inclusive.
	HolidaysInRange(ctx context.Context, from, to Date) ([]Holiday, error)
}
