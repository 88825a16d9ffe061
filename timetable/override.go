/*
override.go - Ad-hoc schedule overrides

PURPOSE:
  An Override changes one group's schedule for a single occasion. There
  are exactly three variants, and each variant has a fixed set of
  required and forbidden fields:

    Cancellation: original_date only. Removes that date.
    Reschedule:   original_date + new_date + session times. Moves a lesson.
    Extra:        new_date + session times. Adds a lesson.

  Rather than one record type with conditionally-required fields validated
  after the fact, each variant has its own constructor that only accepts
  the fields that variant allows. Validate() re-checks the invariant for
  records loaded from storage.

ORDERING:
  When several overrides touch the same date, they are applied in
  (created_at, id) ascending order and the last one wins. Stores must
  return them in that order so resolution stays reproducible.

SEE ALSO:
  - resolver.go: how overrides are applied to the candidate date set
*/
package timetable

import (
	"context"
	"time"
)

// =============================================================================
// OVERRIDE VARIANTS
// =============================================================================

type OverrideKind string

const (
	OverrideCancellation OverrideKind = "cancellation"
	OverrideReschedule   OverrideKind = "reschedule"
	OverrideExtra        OverrideKind = "extra"
)

type Override struct {
	ID      string
	GroupID GroupID
	Kind    OverrideKind

	// OriginalDate is set for cancellations and reschedules.
	OriginalDate Date
	// NewDate is set for reschedules and extra lessons.
	NewDate Date
	// Session window for the new date. Required for reschedules and
	// extra lessons, absent for cancellations.
	NewStartTime TimeOfDay
	NewEndTime   TimeOfDay

	Reason    string
	CreatedAt time.Time
}

// NewCancellation removes one regularly-scheduled lesson date.
func NewCancellation(groupID GroupID, originalDate Date, reason string) Override {
	return Override{
		GroupID:      groupID,
		Kind:         OverrideCancellation,
		OriginalDate: originalDate,
		Reason:       reason,
	}
}

// NewReschedule moves a lesson from originalDate to newDate with the given
// session window.
func NewReschedule(groupID GroupID, originalDate, newDate Date, start, end TimeOfDay, reason string) Override {
	return Override{
		GroupID:      groupID,
		Kind:         OverrideReschedule,
		OriginalDate: originalDate,
		NewDate:      newDate,
		NewStartTime: start,
		NewEndTime:   end,
		Reason:       reason,
	}
}

// NewExtraLesson adds a one-off lesson on newDate with the given session
// window. Extra lessons never remove anything.
func NewExtraLesson(groupID GroupID, newDate Date, start, end TimeOfDay, reason string) Override {
	return Override{
		GroupID:      groupID,
		Kind:         OverrideExtra,
		NewDate:      newDate,
		NewStartTime: start,
		NewEndTime:   end,
		Reason:       reason,
	}
}

// Validate enforces exactly one variant's field combination. Records built
// through the constructors always pass; this guards data loaded from
// storage or decoded from requests.
func (o Override) Validate() error {
	hasWindow := o.NewStartTime != 0 || o.NewEndTime != 0

	switch o.Kind {
	case OverrideCancellation:
		if o.OriginalDate.IsZero() {
			return &OverrideError{Kind: o.Kind, Detail: "original_date is required"}
		}
		if !o.NewDate.IsZero() || hasWindow {
			return &OverrideError{Kind: o.Kind, Detail: "must not carry a new date or time window"}
		}
	case OverrideReschedule:
		if o.OriginalDate.IsZero() || o.NewDate.IsZero() {
			return &OverrideError{Kind: o.Kind, Detail: "original_date and new_date are required"}
		}
		if o.NewEndTime <= o.NewStartTime {
			return &OverrideError{Kind: o.Kind, Detail: "a valid session time window is required"}
		}
	case OverrideExtra:
		if o.NewDate.IsZero() {
			return &OverrideError{Kind: o.Kind, Detail: "new_date is required"}
		}
		if !o.OriginalDate.IsZero() {
			return &OverrideError{Kind: o.Kind, Detail: "must not carry an original_date"}
		}
		if o.NewEndTime <= o.NewStartTime {
			return &OverrideError{Kind: o.Kind, Detail: "a valid session time window is required"}
		}
	default:
		return &OverrideError{Kind: o.Kind, Detail: "unknown override kind"}
	}
	return nil
}

// =============================================================================
// OVERRIDE SOURCE
// =============================================================================

// OverrideSource provides override lookup for the schedule resolver.
type OverrideSource interface {
	// OverridesAffecting returns the group's overrides whose original_date
	// falls inside originalWithin OR whose new_date falls inside newWithin,
	// ordered by (created_at, id) ascending.
	OverridesAffecting(ctx context.Context, groupID GroupID, originalWithin, newWithin DateRange) ([]Override, error)
}
