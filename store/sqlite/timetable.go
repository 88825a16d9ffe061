/*
timetable.go - Groups, holidays, and overrides

PURPOSE:
  The scheduling side of the store: group CRUD with archive/restore,
  the global holiday calendar, and schedule overrides. Implements the
  lookup interfaces the resolver and conflict checker depend on.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/omadli/tagayev-uz/timetable"
)

const groupColumns = `id, name, room_id, weekdays, start_date, end_date,
	start_time, end_time, archived, archived_at, created_at`

// =============================================================================
// GROUPS
// =============================================================================

// CreateGroup validates and inserts a group. An empty ID gets a generated
// one; the assigned ID is returned via the group value.
func (s *Store) CreateGroup(ctx context.Context, g timetable.Group) (timetable.Group, error) {
	if err := g.Validate(); err != nil {
		return timetable.Group{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertGroup(ctx, s.db, g)
}

// CreateGroupChecked inserts a group after a room-conflict check. Both
// run under the store's write lock, so two concurrent creates cannot
// each pass the check and double-book the room.
func (s *Store) CreateGroupChecked(ctx context.Context, g timetable.Group) (timetable.Group, error) {
	if err := g.Validate(); err != nil {
		return timetable.Group{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkRoomConflict(ctx, g); err != nil {
		return timetable.Group{}, err
	}
	return insertGroup(ctx, s.db, g)
}

func insertGroup(ctx context.Context, q querier, g timetable.Group) (timetable.Group, error) {
	if g.ID == "" {
		g.ID = timetable.GroupID(uuid.NewString())
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO groups (id, name, room_id, weekdays, start_date, end_date,
			start_time, end_time, archived, archived_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.RoomID, g.Weekdays.String(),
		g.StartDate.String(), g.EndDate.String(),
		int(g.StartTime), int(g.EndTime),
		g.Archived, nullTime(g.ArchivedAt), g.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return timetable.Group{}, fmt.Errorf("failed to create group: %w", mapUniqueError(err))
	}
	return g, nil
}

// UpdateGroup replaces the group's mutable schedule fields.
func (s *Store) UpdateGroup(ctx context.Context, g timetable.Group) error {
	if err := g.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateGroup(ctx, s.db, g)
}

// UpdateGroupChecked replaces the group's schedule after a room-conflict
// check, both under the store's write lock.
func (s *Store) UpdateGroupChecked(ctx context.Context, g timetable.Group) error {
	if err := g.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkRoomConflict(ctx, g); err != nil {
		return err
	}
	return updateGroup(ctx, s.db, g)
}

func updateGroup(ctx context.Context, q querier, g timetable.Group) error {
	res, err := q.ExecContext(ctx, `
		UPDATE groups SET name = ?, room_id = ?, weekdays = ?,
			start_date = ?, end_date = ?, start_time = ?, end_time = ?
		WHERE id = ?`,
		g.Name, g.RoomID, g.Weekdays.String(),
		g.StartDate.String(), g.EndDate.String(),
		int(g.StartTime), int(g.EndTime), g.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	return requireRow(res, timetable.ErrGroupNotFound)
}

// checkRoomConflict runs the conflict checker against the raw connection.
// Callers must already hold the write lock.
func (s *Store) checkRoomConflict(ctx context.Context, g timetable.Group) error {
	if g.RoomID == "" {
		return nil
	}
	checker := timetable.NewConflictChecker(rawGroupSource{s.db})
	return checker.Check(ctx, g)
}

// rawGroupSource reads groups without touching the store mutex, for use
// inside already-locked sections.
type rawGroupSource struct{ q querier }

func (r rawGroupSource) ActiveGroupsByRoom(ctx context.Context, roomID string) ([]timetable.Group, error) {
	return activeGroupsByRoom(ctx, r.q, roomID)
}

// GetGroup loads one group by ID.
func (s *Store) GetGroup(ctx context.Context, id timetable.GroupID) (timetable.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM groups WHERE id = ?`, id)
	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return timetable.Group{}, timetable.ErrGroupNotFound
	}
	return g, err
}

// ListGroups returns all groups, optionally including archived ones,
// ordered by name.
func (s *Store) ListGroups(ctx context.Context, includeArchived bool) ([]timetable.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + groupColumns + ` FROM groups`
	if !includeArchived {
		query += ` WHERE archived = FALSE`
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []timetable.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// ActiveGroupsByRoom returns the non-archived groups occupying a room.
// Feeds the conflict checker.
func (s *Store) ActiveGroupsByRoom(ctx context.Context, roomID string) ([]timetable.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activeGroupsByRoom(ctx, s.db, roomID)
}

func activeGroupsByRoom(ctx context.Context, q querier, roomID string) ([]timetable.Group, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+groupColumns+` FROM groups WHERE room_id = ? AND archived = FALSE`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to query room: %w", err)
	}
	defer rows.Close()

	var groups []timetable.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// ArchiveGroup soft-deletes a group. Archived groups keep their history
// but stop being scheduled, billed, or conflict-checked.
func (s *Store) ArchiveGroup(ctx context.Context, id timetable.GroupID) error {
	return s.setGroupArchived(ctx, id, true)
}

// RestoreGroup brings an archived group back.
func (s *Store) RestoreGroup(ctx context.Context, id timetable.GroupID) error {
	return s.setGroupArchived(ctx, id, false)
}

func (s *Store) setGroupArchived(ctx context.Context, id timetable.GroupID, archived bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var archivedAt any
	if archived {
		archivedAt = time.Now().UTC().Format(time.RFC3339)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE groups SET archived = ?, archived_at = ? WHERE id = ?`,
		archived, archivedAt, id)
	if err != nil {
		return fmt.Errorf("failed to archive group: %w", err)
	}
	return requireRow(res, timetable.ErrGroupNotFound)
}

func scanGroup(row interface{ Scan(...any) error }) (timetable.Group, error) {
	var (
		g          timetable.Group
		weekdays   string
		start, end string
		startTime  int
		endTime    int
		archivedAt sql.NullString
		createdAt  string
	)
	err := row.Scan(&g.ID, &g.Name, &g.RoomID, &weekdays, &start, &end,
		&startTime, &endTime, &g.Archived, &archivedAt, &createdAt)
	if err != nil {
		return timetable.Group{}, err
	}

	if g.Weekdays, err = timetable.ParseWeekdays(weekdays); err != nil {
		return timetable.Group{}, fmt.Errorf("corrupt weekdays for group %s: %w", g.ID, err)
	}
	if g.StartDate, err = timetable.ParseDate(start); err != nil {
		return timetable.Group{}, err
	}
	if g.EndDate, err = timetable.ParseDate(end); err != nil {
		return timetable.Group{}, err
	}
	g.StartTime = timetable.TimeOfDay(startTime)
	g.EndTime = timetable.TimeOfDay(endTime)
	g.ArchivedAt = parseNullTime(archivedAt)
	g.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return g, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// SaveHoliday inserts a holiday. At most one holiday per calendar date.
func (s *Store) SaveHoliday(ctx context.Context, h timetable.Holiday) (timetable.Holiday, error) {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holidays (id, date, name, description, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		h.ID, h.Date.String(), h.Name, h.Description, h.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return timetable.Holiday{}, fmt.Errorf("failed to save holiday: %w", mapUniqueError(err))
	}
	return h, nil
}

// DeleteHoliday removes a holiday by ID.
func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM holidays WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete holiday: %w", err)
	}
	return nil
}

// HolidaysInRange implements timetable.HolidayCalendar.
func (s *Store) HolidaysInRange(ctx context.Context, from, to timetable.Date) ([]timetable.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, name, description, created_at FROM holidays
		WHERE date >= ? AND date <= ? ORDER BY date`,
		from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var holidays []timetable.Holiday
	for rows.Next() {
		var (
			h         timetable.Holiday
			date      string
			createdAt string
		)
		if err := rows.Scan(&h.ID, &date, &h.Name, &h.Description, &createdAt); err != nil {
			return nil, err
		}
		if h.Date, err = timetable.ParseDate(date); err != nil {
			return nil, err
		}
		h.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// =============================================================================
// OVERRIDES
// =============================================================================

// SaveOverride validates and inserts a schedule override.
func (s *Store) SaveOverride(ctx context.Context, o timetable.Override) (timetable.Override, error) {
	if err := o.Validate(); err != nil {
		return timetable.Override{}, err
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO overrides (id, group_id, kind, original_date, new_date,
			new_start_time, new_end_time, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.GroupID, o.Kind,
		nullDate(o.OriginalDate), nullDate(o.NewDate),
		int(o.NewStartTime), int(o.NewEndTime),
		o.Reason, o.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return timetable.Override{}, fmt.Errorf("failed to save override: %w", err)
	}
	return o, nil
}

// DeleteOverride removes an override by ID.
func (s *Store) DeleteOverride(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM overrides WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete override: %w", err)
	}
	return nil
}

// OverridesAffecting implements timetable.OverrideSource. The (created_at,
// id) ordering keeps resolution reproducible when overrides stack on one
// date.
func (s *Store) OverridesAffecting(ctx context.Context, groupID timetable.GroupID, originalWithin, newWithin timetable.DateRange) ([]timetable.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return queryOverrides(ctx, s.db, `
		SELECT id, group_id, kind, original_date, new_date,
			new_start_time, new_end_time, reason, created_at
		FROM overrides
		WHERE group_id = ?
		  AND ((original_date IS NOT NULL AND original_date >= ? AND original_date <= ?)
		    OR (new_date IS NOT NULL AND new_date >= ? AND new_date <= ?))
		ORDER BY created_at, id`,
		groupID,
		originalWithin.Start.String(), originalWithin.End.String(),
		newWithin.Start.String(), newWithin.End.String())
}

// ListOverrides returns every override of a group, newest first.
func (s *Store) ListOverrides(ctx context.Context, groupID timetable.GroupID) ([]timetable.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return queryOverrides(ctx, s.db, `
		SELECT id, group_id, kind, original_date, new_date,
			new_start_time, new_end_time, reason, created_at
		FROM overrides WHERE group_id = ? ORDER BY created_at DESC, id DESC`,
		groupID)
}

func queryOverrides(ctx context.Context, q querier, query string, args ...any) ([]timetable.Override, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query overrides: %w", err)
	}
	defer rows.Close()

	var overrides []timetable.Override
	for rows.Next() {
		var (
			o             timetable.Override
			original      sql.NullString
			newDate       sql.NullString
			newStart, end int
			createdAt     string
		)
		if err := rows.Scan(&o.ID, &o.GroupID, &o.Kind, &original, &newDate,
			&newStart, &end, &o.Reason, &createdAt); err != nil {
			return nil, err
		}
		if o.OriginalDate, err = parseNullDate(original); err != nil {
			return nil, err
		}
		if o.NewDate, err = parseNullDate(newDate); err != nil {
			return nil, err
		}
		o.NewStartTime = timetable.TimeOfDay(newStart)
		o.NewEndTime = timetable.TimeOfDay(end)
		o.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

func nullDate(d timetable.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func parseNullDate(s sql.NullString) (timetable.Date, error) {
	if !s.Valid || s.String == "" {
		return timetable.Date{}, nil
	}
	return timetable.ParseDate(s.String)
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseNullTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, s.String)
	return t
}

// requireRow converts a zero-row UPDATE into the given not-found error.
func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
