/*
conflict.go - Room double-booking detection

PURPOSE:
  Decides whether a candidate group clashes with existing ones. Two
  groups conflict when all four hold:

    - same room
    - neither archived
    - date ranges overlap
    - time windows overlap (start_a < end_b && end_a > start_b)
    - at least one shared weekday

  Back-to-back slots (one ends exactly when the other starts) do not
  conflict.
*/
package timetable

import (
	"context"
)

// ConflictsWith reports whether the two groups would double-book a room.
// Symmetric. A group never conflicts with itself by ID; callers filter
// that before invoking.
func ConflictsWith(a, b Group) bool {
	if a.RoomID != b.RoomID {
		return false
	}
	if a.Archived || b.Archived {
		return false
	}
	if !a.Lifetime().Overlaps(b.Lifetime()) {
		return false
	}
	if !TimeWindowsOverlap(a.StartTime, a.EndTime, b.StartTime, b.EndTime) {
		return false
	}
	return a.Weekdays.Intersects(b.Weekdays)
}

// GroupSource yields the non-archived groups occupying a room.
type GroupSource interface {
	ActiveGroupsByRoom(ctx context.Context, roomID string) ([]Group, error)
}

// ConflictChecker validates candidate groups against the stored ones.
type ConflictChecker struct {
	Groups GroupSource
}

func NewConflictChecker(groups GroupSource) *ConflictChecker {
	return &ConflictChecker{Groups: groups}
}

// Check returns a *ConflictError wrapping ErrRoomConflict naming the first
// clashing group, or nil if the candidate's slot is free. The candidate's
// own ID is skipped so updates do not conflict with themselves.
func (c *ConflictChecker) Check(ctx context.Context, candidate Group) error {
	existing, err := c.Groups.ActiveGroupsByRoom(ctx, candidate.RoomID)
	if err != nil {
		return err
	}
	for _, g := range existing {
		if g.ID == candidate.ID {
			continue
		}
		if ConflictsWith(candidate, g) {
			return &ConflictError{
				RoomID:            candidate.RoomID,
				ExistingGroupID:   g.ID,
				ExistingGroupName: g.Name,
			}
		}
	}
	return nil
}
