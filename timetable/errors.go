/*
errors.go - Centralized error types for the scheduling core

ERROR CATEGORIES:
  1. Validation errors - malformed group definitions and overrides,
     rejected synchronously at write time
  2. Conflict errors - room/time double-booking detected on create/update
  3. Not-found errors - missing referenced entities

Domain callers should match with errors.Is / errors.As; the API layer
maps IsClientError -> 400, IsNotFound -> 404, IsConflict -> 409.
*/
package timetable

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrEmptyWeekdays is returned when a group has no scheduled weekdays.
	ErrEmptyWeekdays = errors.New("weekday pattern must not be empty")

	// ErrInvalidWeekdays is returned for weekday digits outside 1-7 or duplicates.
	ErrInvalidWeekdays = errors.New("weekdays must be unique digits 1-7")

	// ErrInvalidDateRange is returned when a group or query range ends before it starts.
	ErrInvalidDateRange = errors.New("invalid date range: end before start")

	// ErrInvalidTimeWindow is returned when a session window ends at or before its start.
	ErrInvalidTimeWindow = errors.New("invalid time window: end must be after start")

	// ErrInvalidOverride is returned when an override carries fields that do not
	// match its variant (e.g. an extra lesson with an original date).
	ErrInvalidOverride = errors.New("invalid schedule override")

	// ErrRoomConflict is returned when a group would double-book a room.
	ErrRoomConflict = errors.New("room already booked")

	// ErrDuplicateHoliday is returned when a holiday already exists on a date.
	ErrDuplicateHoliday = errors.New("holiday already exists on this date")

	// ErrGroupNotFound is returned when a referenced group doesn't exist.
	ErrGroupNotFound = errors.New("group not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConflictError names the existing group that blocks a create/update.
type ConflictError struct {
	RoomID            string
	ExistingGroupID   GroupID
	ExistingGroupName string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("room %s is already booked by group %q at this time", e.RoomID, e.ExistingGroupName)
}

func (e *ConflictError) Unwrap() error { return ErrRoomConflict }

// OverrideError reports which variant rule an override violates.
type OverrideError struct {
	Kind   OverrideKind
	Detail string
}

func (e *OverrideError) Error() string {
	return fmt.Sprintf("invalid %s override: %s", e.Kind, e.Detail)
}

func (e *OverrideError) Unwrap() error { return ErrInvalidOverride }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrEmptyWeekdays) ||
		errors.Is(err, ErrInvalidWeekdays) ||
		errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrInvalidTimeWindow) ||
		errors.Is(err, ErrInvalidOverride)
}

// IsConflict returns true for double-booking and duplicate-date rejections.
func IsConflict(err error) bool {
	return errors.Is(err, ErrRoomConflict) || errors.Is(err, ErrDuplicateHoliday)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool { return errors.Is(err, ErrGroupNotFound) }
