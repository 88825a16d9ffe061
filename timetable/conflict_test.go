package timetable_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omadli/tagayev-uz/timetable"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fakeGroupSource struct {
	groups []timetable.Group
}

func (f *fakeGroupSource) ActiveGroupsByRoom(_ context.Context, roomID string) ([]timetable.Group, error) {
	var out []timetable.Group
	for _, g := range f.groups {
		if g.RoomID == roomID && !g.Archived {
			out = append(out, g)
		}
	}
	return out, nil
}

func roomGroup(t *testing.T, id, room, weekdays, start, end string, from, until timetable.TimeOfDay) timetable.Group {
	t.Helper()
	ws, err := timetable.ParseWeekdays(weekdays)
	require.NoError(t, err)
	startDate, err := timetable.ParseDate(start)
	require.NoError(t, err)
	endDate, err := timetable.ParseDate(end)
	require.NoError(t, err)
	return timetable.Group{
		ID:        timetable.GroupID(id),
		Name:      "Group " + id,
		RoomID:    room,
		Weekdays:  ws,
		StartDate: startDate,
		EndDate:   endDate,
		StartTime: from,
		EndTime:   until,
	}
}

// =============================================================================
// PAIRWISE CONFLICT TESTS
// =============================================================================

func TestConflictsWith_SameSlotSameRoom(t *testing.T) {
	a := roomGroup(t, "a", "room-1", "135", "2025-01-01", "2025-06-30",
		timetable.NewTimeOfDay(14, 0), timetable.NewTimeOfDay(16, 0))
	b := roomGroup(t, "b", "room-1", "135", "2025-01-01", "2025-06-30",
		timetable.NewTimeOfDay(15, 0), timetable.NewTimeOfDay(17, 0))

	assert.True(t, timetable.ConflictsWith(a, b))
	assert.True(t, timetable.ConflictsWith(b, a), "conflict is symmetric")
}

func TestConflictsWith_DisjointWeekdays_NoConflict(t *testing.T) {
	// GIVEN: Two groups in one room, same hours, Mon/Wed/Fri vs Tue/Thu/Sat
	// WHEN: Checking for a clash
	// THEN: No conflict, they never meet on the same day

	a := roomGroup(t, "a", "room-1", "135", "2025-01-01", "2025-06-30",
		timetable.NewTimeOfDay(14, 0), timetable.NewTimeOfDay(16, 0))
	b := roomGroup(t, "b", "room-1", "246", "2025-01-01", "2025-06-30",
		timetable.NewTimeOfDay(14, 0), timetable.NewTimeOfDay(16, 0))

	assert.False(t, timetable.ConflictsWith(a, b))
}

func TestConflictsWith_BackToBack_NoConflict(t *testing.T) {
	a := roomGroup(t, "a", "room-1", "135", "2025-01-01", "2025-06-30",
		timetable.NewTimeOfDay(14, 0), timetable.NewTimeOfDay(16, 0))
	b := roomGroup(t, "b", "room-1", "135", "2025-01-01", "2025-06-30",
		timetable.NewTimeOfDay(16, 0), timetable.NewTimeOfDay(18, 0))

	assert.False(t, timetable.ConflictsWith(a, b))
}

func TestConflictsWith_DifferentRoomOrArchived(t *testing.T) {
	a := roomGroup(t, "a", "room-1", "135", "2025-01-01", "2025-06-30",
		timetable.NewTimeOfDay(14, 0), timetable.NewTimeOfDay(16, 0))
	b := roomGroup(t, "b", "room-2", "135", "2025-01-01", "2025-06-30",
		timetable.NewTimeOfDay(14, 0), timetable.NewTimeOfDay(16, 0))
	assert.False(t, timetable.ConflictsWith(a, b))

	archived := roomGroup(t, "c", "room-1", "135", "2025-01-01", "2025-06-30",
		timetable.NewTimeOfDay(14, 0), timetable.NewTimeOfDay(16, 0))
	archived.Archived = true
	assert.False(t, timetable.ConflictsWith(a, archived))
}

func TestConflictsWith_DisjointLifetimes_NoConflict(t *testing.T) {
	spring := roomGroup(t, "a", "room-1", "135", "2025-01-01", "2025-05-31",
		timetable.NewTimeOfDay(14, 0), timetable.NewTimeOfDay(16, 0))
	autumn := roomGroup(t, "b", "room-1", "135", "2025-09-01", "2025-12-31",
		timetable.NewTimeOfDay(14, 0), timetable.NewTimeOfDay(16, 0))

	assert.False(t, timetable.ConflictsWith(spring, autumn))
}

// =============================================================================
// CHECKER TESTS
// =============================================================================

func TestConflictChecker_ReportsExistingGroup(t *testing.T) {
	existing := roomGroup(t, "a", "room-1", "135", "2025-01-01", "2025-06-30",
		timetable.NewTimeOfDay(14, 0), timetable.NewTimeOfDay(16, 0))
	checker := timetable.NewConflictChecker(&fakeGroupSource{groups: []timetable.Group{existing}})

	candidate := roomGroup(t, "b", "room-1", "35", "2025-03-01", "2025-09-30",
		timetable.NewTimeOfDay(15, 30), timetable.NewTimeOfDay(17, 30))

	err := checker.Check(context.Background(), candidate)
	require.Error(t, err)
	assert.True(t, timetable.IsConflict(err))

	var cerr *timetable.ConflictError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, timetable.GroupID("a"), cerr.ExistingGroupID)
	assert.Equal(t, "room-1", cerr.RoomID)
}

func TestConflictChecker_SkipsSelfOnUpdate(t *testing.T) {
	// GIVEN: A stored group being updated in place
	// WHEN: Checking the updated definition
	// THEN: It does not conflict with its own stored row

	existing := roomGroup(t, "a", "room-1", "135", "2025-01-01", "2025-06-30",
		timetable.NewTimeOfDay(14, 0), timetable.NewTimeOfDay(16, 0))
	checker := timetable.NewConflictChecker(&fakeGroupSource{groups: []timetable.Group{existing}})

	updated := existing
	updated.EndTime = timetable.NewTimeOfDay(17, 0)
	assert.NoError(t, checker.Check(context.Background(), updated))
}

func TestConflictChecker_FreeSlot(t *testing.T) {
	existing := roomGroup(t, "a", "room-1", "135", "2025-01-01", "2025-06-30",
		timetable.NewTimeOfDay(14, 0), timetable.NewTimeOfDay(16, 0))
	checker := timetable.NewConflictChecker(&fakeGroupSource{groups: []timetable.Group{existing}})

	candidate := roomGroup(t, "b", "room-1", "135", "2025-01-01", "2025-06-30",
		timetable.NewTimeOfDay(16, 0), timetable.NewTimeOfDay(18, 0))
	assert.NoError(t, checker.Check(context.Background(), candidate))
}
