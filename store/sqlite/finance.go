/*
finance.go - Enrollments, price history, and the transaction ledger

PURPOSE:
  The money side of the store. The ledger functions are written as free
  helpers over a querier so the billing batch can run the exact same code
  inside its transaction via WithTx.

PRICE DELETE PROTECTION:
  A price entry can only be deleted while it is fresh (created within the
  last four days) and never when it is the group's last remaining entry.
  Old prices are part of the billing audit trail.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/omadli/tagayev-uz/finance"
	"github.com/omadli/tagayev-uz/timetable"
)

// priceDeleteWindowDays bounds how far back a deletable price entry may
// start. Entries whose start date is this many days old (or older) are
// locked: the history behind them may already have been billed.
const priceDeleteWindowDays = 4

// =============================================================================
// ENROLLMENTS
// =============================================================================

const enrollmentColumns = `id, student_id, group_id, joined_at, override_price,
	archived, archived_at, created_at`

// CreateEnrollment inserts a membership. One row per (student, group).
func (s *Store) CreateEnrollment(ctx context.Context, e finance.Enrollment) (finance.Enrollment, error) {
	if e.ID == "" {
		e.ID = finance.EnrollmentID(uuid.NewString())
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var overridePrice any
	if e.OverridePrice != nil {
		overridePrice = e.OverridePrice.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO enrollments (id, student_id, group_id, joined_at,
			override_price, archived, archived_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.StudentID, e.GroupID, e.JoinedAt.String(),
		overridePrice, e.Archived, nullTime(e.ArchivedAt),
		e.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return finance.Enrollment{}, fmt.Errorf("failed to create enrollment: %w", mapUniqueError(err))
	}
	return e, nil
}

// GetEnrollment loads one enrollment by ID.
func (s *Store) GetEnrollment(ctx context.Context, id finance.EnrollmentID) (finance.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE id = ?`, id)
	e, err := scanEnrollment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return finance.Enrollment{}, finance.ErrEnrollmentNotFound
	}
	return e, err
}

// ListEnrollmentsByGroup returns a group's memberships, optionally
// including archived ones.
func (s *Store) ListEnrollmentsByGroup(ctx context.Context, groupID timetable.GroupID, includeArchived bool) ([]finance.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE group_id = ?`
	if !includeArchived {
		query += ` AND archived = FALSE`
	}
	query += ` ORDER BY joined_at`

	rows, err := s.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []finance.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}

// ArchiveEnrollment soft-deletes a membership; the ledger stays intact.
func (s *Store) ArchiveEnrollment(ctx context.Context, id finance.EnrollmentID) error {
	return s.setEnrollmentArchived(ctx, id, true)
}

// RestoreEnrollment brings an archived membership back.
func (s *Store) RestoreEnrollment(ctx context.Context, id finance.EnrollmentID) error {
	return s.setEnrollmentArchived(ctx, id, false)
}

func (s *Store) setEnrollmentArchived(ctx context.Context, id finance.EnrollmentID, archived bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var archivedAt any
	if archived {
		archivedAt = time.Now().UTC().Format(time.RFC3339)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE enrollments SET archived = ?, archived_at = ? WHERE id = ?`,
		archived, archivedAt, id)
	if err != nil {
		return fmt.Errorf("failed to archive enrollment: %w", err)
	}
	return requireRow(res, finance.ErrEnrollmentNotFound)
}

func scanEnrollment(row interface{ Scan(...any) error }) (finance.Enrollment, error) {
	var (
		e             finance.Enrollment
		joined        string
		overridePrice sql.NullString
		archivedAt    sql.NullString
		createdAt     string
	)
	err := row.Scan(&e.ID, &e.StudentID, &e.GroupID, &joined,
		&overridePrice, &e.Archived, &archivedAt, &createdAt)
	if err != nil {
		return finance.Enrollment{}, err
	}
	if e.JoinedAt, err = timetable.ParseDate(joined); err != nil {
		return finance.Enrollment{}, err
	}
	if overridePrice.Valid {
		price, err := decimal.NewFromString(overridePrice.String)
		if err != nil {
			return finance.Enrollment{}, fmt.Errorf("corrupt override price for enrollment %s: %w", e.ID, err)
		}
		e.OverridePrice = &price
	}
	e.ArchivedAt = parseNullTime(archivedAt)
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return e, nil
}

// activeEnrollments selects what the billing batch charges: enrollment not
// archived, group not archived, group still running as of runDate.
func activeEnrollments(ctx context.Context, q querier, runDate timetable.Date) ([]finance.BillingEnrollment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT e.id, e.student_id, e.group_id, e.joined_at, e.override_price,
			e.archived, e.archived_at, e.created_at,
			g.id, g.name, g.room_id, g.weekdays, g.start_date, g.end_date,
			g.start_time, g.end_time, g.archived, g.archived_at, g.created_at
		FROM enrollments e
		JOIN groups g ON g.id = e.group_id
		WHERE e.archived = FALSE AND g.archived = FALSE AND g.end_date >= ?
		ORDER BY e.created_at`,
		runDate.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query active enrollments: %w", err)
	}
	defer rows.Close()

	var out []finance.BillingEnrollment
	for rows.Next() {
		var (
			e             finance.Enrollment
			joined        string
			overridePrice sql.NullString
			eArchivedAt   sql.NullString
			eCreatedAt    string

			g           timetable.Group
			weekdays    string
			gStart      string
			gEnd        string
			startTime   int
			endTime     int
			gArchivedAt sql.NullString
			gCreatedAt  string
		)
		err := rows.Scan(&e.ID, &e.StudentID, &e.GroupID, &joined, &overridePrice,
			&e.Archived, &eArchivedAt, &eCreatedAt,
			&g.ID, &g.Name, &g.RoomID, &weekdays, &gStart, &gEnd,
			&startTime, &endTime, &g.Archived, &gArchivedAt, &gCreatedAt)
		if err != nil {
			return nil, err
		}
		if e.JoinedAt, err = timetable.ParseDate(joined); err != nil {
			return nil, err
		}
		if overridePrice.Valid {
			price, err := decimal.NewFromString(overridePrice.String)
			if err != nil {
				return nil, fmt.Errorf("corrupt override price for enrollment %s: %w", e.ID, err)
			}
			e.OverridePrice = &price
		}
		e.ArchivedAt = parseNullTime(eArchivedAt)
		e.CreatedAt, _ = time.Parse(time.RFC3339, eCreatedAt)

		if g.Weekdays, err = timetable.ParseWeekdays(weekdays); err != nil {
			return nil, fmt.Errorf("corrupt weekdays for group %s: %w", g.ID, err)
		}
		if g.StartDate, err = timetable.ParseDate(gStart); err != nil {
			return nil, err
		}
		if g.EndDate, err = timetable.ParseDate(gEnd); err != nil {
			return nil, err
		}
		g.StartTime = timetable.TimeOfDay(startTime)
		g.EndTime = timetable.TimeOfDay(endTime)
		g.ArchivedAt = parseNullTime(gArchivedAt)
		g.CreatedAt, _ = time.Parse(time.RFC3339, gCreatedAt)

		out = append(out, finance.BillingEnrollment{Enrollment: e, Group: g})
	}
	return out, rows.Err()
}

// ActiveEnrollments implements finance.BillingStore outside a transaction.
func (s *Store) ActiveEnrollments(ctx context.Context, runDate timetable.Date) ([]finance.BillingEnrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activeEnrollments(ctx, s.db, runDate)
}

// =============================================================================
// PRICE HISTORY
// =============================================================================

// AddPrice appends a price entry to a group's history.
func (s *Store) AddPrice(ctx context.Context, p finance.PricePoint) (finance.PricePoint, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prices (id, group_id, amount, start_date, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.GroupID, p.Amount.String(), p.StartDate.String(),
		p.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return finance.PricePoint{}, fmt.Errorf("failed to add price: %w", mapUniqueError(err))
	}
	return p, nil
}

// DeletePrice removes a price entry, refusing when the entry's start date
// is outside the edit window or the entry is the group's only one.
func (s *Store) DeletePrice(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		groupID   string
		startDate string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT group_id, start_date FROM prices WHERE id = ?`, id).
		Scan(&groupID, &startDate)
	if errors.Is(err, sql.ErrNoRows) {
		return finance.ErrPriceNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load price: %w", err)
	}

	start, err := timetable.ParseDate(startDate)
	if err != nil {
		return fmt.Errorf("corrupt price start date %s: %w", id, err)
	}
	if !start.After(timetable.Today().AddDays(-priceDeleteWindowDays)) {
		return finance.ErrPriceProtected
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM prices WHERE group_id = ?`, groupID).Scan(&count); err != nil {
		return fmt.Errorf("failed to count prices: %w", err)
	}
	if count <= 1 {
		return finance.ErrPriceProtected
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM prices WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete price: %w", err)
	}
	return nil
}

func queryPrices(ctx context.Context, q querier, groupID timetable.GroupID) ([]finance.PricePoint, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, group_id, amount, start_date, created_at
		FROM prices WHERE group_id = ? ORDER BY start_date`,
		groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	var prices []finance.PricePoint
	for rows.Next() {
		var (
			p         finance.PricePoint
			amount    string
			start     string
			createdAt string
		)
		if err := rows.Scan(&p.ID, &p.GroupID, &amount, &start, &createdAt); err != nil {
			return nil, err
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("corrupt price amount %s: %w", p.ID, err)
		}
		if p.StartDate, err = timetable.ParseDate(start); err != nil {
			return nil, err
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

// Prices implements finance.PriceHistory.
func (s *Store) Prices(ctx context.Context, groupID timetable.GroupID) ([]finance.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryPrices(ctx, s.db, groupID)
}

// =============================================================================
// TRANSACTION LEDGER
// =============================================================================

const txColumns = `id, enrollment_id, tx_type, category, amount,
	payment_method, receiver_id, comment, created_at`

const txByEnrollmentSQL = `
	SELECT ` + txColumns + ` FROM transactions
	WHERE enrollment_id = ? ORDER BY created_at, id`

const txByCategorySQL = `
	SELECT ` + txColumns + ` FROM transactions
	WHERE enrollment_id = ? AND category = ? ORDER BY created_at, id`

// billedMonth computes the value of the uniqueness column, "2025-01" style.
// Only monthly fees carry it.
func billedMonth(tx finance.Transaction) string {
	if tx.Category != finance.CategoryMonthlyFee {
		return ""
	}
	d := tx.Date()
	return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
}

func appendTransaction(ctx context.Context, q querier, tx finance.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO transactions (id, enrollment_id, tx_type, category, amount,
			payment_method, receiver_id, comment, billed_month, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.EnrollmentID, tx.Type, tx.Category, tx.Amount.String(),
		tx.PaymentMethod, tx.ReceiverID, tx.Comment, billedMonth(tx),
		tx.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", mapUniqueError(err))
	}
	return nil
}

func queryTransactions(ctx context.Context, q querier, query string, args ...any) ([]finance.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []finance.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func scanTransaction(row interface{ Scan(...any) error }) (finance.Transaction, error) {
	var (
		tx        finance.Transaction
		amount    string
		createdAt string
	)
	err := row.Scan(&tx.ID, &tx.EnrollmentID, &tx.Type, &tx.Category, &amount,
		&tx.PaymentMethod, &tx.ReceiverID, &tx.Comment, &createdAt)
	if err != nil {
		return finance.Transaction{}, err
	}
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return finance.Transaction{}, fmt.Errorf("corrupt amount for transaction %s: %w", tx.ID, err)
	}
	tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return tx, nil
}

func latestByCategory(ctx context.Context, q querier, id finance.EnrollmentID, category finance.Category) (finance.Transaction, bool, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+txColumns+` FROM transactions
		WHERE enrollment_id = ? AND category = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`,
		id, category)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return finance.Transaction{}, false, nil
	}
	if err != nil {
		return finance.Transaction{}, false, err
	}
	return tx, true, nil
}

func monthlyFeeExists(ctx context.Context, q querier, id finance.EnrollmentID, month timetable.Date) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions
		WHERE enrollment_id = ? AND category = ? AND billed_month = ?`,
		id, finance.CategoryMonthlyFee,
		fmt.Sprintf("%04d-%02d", month.Year, int(month.Month))).
		Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check monthly fee: %w", err)
	}
	return count > 0, nil
}

// Append implements finance.Ledger. The only write path into the ledger.
func (s *Store) Append(ctx context.Context, tx finance.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendTransaction(ctx, s.db, tx)
}

// Transactions implements finance.Ledger.
func (s *Store) Transactions(ctx context.Context, id finance.EnrollmentID) ([]finance.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryTransactions(ctx, s.db, txByEnrollmentSQL, string(id))
}

// TransactionsByCategory implements finance.Ledger.
func (s *Store) TransactionsByCategory(ctx context.Context, id finance.EnrollmentID, category finance.Category) ([]finance.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryTransactions(ctx, s.db, txByCategorySQL, string(id), string(category))
}

// LatestByCategory implements finance.Ledger.
func (s *Store) LatestByCategory(ctx context.Context, id finance.EnrollmentID, category finance.Category) (finance.Transaction, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return latestByCategory(ctx, s.db, id, category)
}

// MonthlyFeeExists implements finance.Ledger.
func (s *Store) MonthlyFeeExists(ctx context.Context, id finance.EnrollmentID, month timetable.Date) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return monthlyFeeExists(ctx, s.db, id, month)
}
