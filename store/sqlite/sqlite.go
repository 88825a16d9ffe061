/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  One store for everything the center persists: groups and their
  schedules, holidays, overrides, enrollments, price history, and the
  transaction ledger. In production the same patterns apply to
  PostgreSQL, only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  timetable.HolidayCalendar: holiday lookup for the resolver
  timetable.OverrideSource:  ordered override lookup for the resolver
  timetable.GroupSource:     room occupancy for the conflict checker
  finance.Ledger:            append-only transaction persistence
  finance.PriceHistory:      group price entries
  finance.BillingStore:      the monthly batch's storage surface

APPEND-ONLY ENFORCEMENT:
  No UPDATE and no DELETE statements touch the transactions table.
  Corrections are new entries.

KEY UNIQUE INDEXES (they are the data-layer locks):
  idx_unique_monthly_fee:  one MONTHLY_FEE per (enrollment, month), makes
                           double-billing impossible even under a race
  one enrollment per (student_id, group_id)
  one price entry per (group_id, start_date)
  one holiday per date

CONCURRENCY:
  sync.RWMutex for thread-safety, WAL mode so readers don't block.

USAGE:
  store, err := sqlite.New("./data/tagayev.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - timetable: the scheduling interfaces this store fulfils
  - finance: the ledger interfaces this store fulfils
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/omadli/tagayev-uz/finance"
	"github.com/omadli/tagayev-uz/timetable"
)

// querier is satisfied by both *sql.DB and *sql.Tx so every query helper
// can run inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database in tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Groups (recurring schedules)
	CREATE TABLE IF NOT EXISTS groups (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		room_id TEXT NOT NULL DEFAULT '',
		weekdays TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		start_time INTEGER NOT NULL,
		end_time INTEGER NOT NULL,
		archived BOOLEAN NOT NULL DEFAULT FALSE,
		archived_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_groups_room
		ON groups(room_id) WHERE room_id != '';
	CREATE INDEX IF NOT EXISTS idx_groups_archived
		ON groups(archived);

	-- Holidays (global, one per date)
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_unique_date
		ON holidays(date);

	-- Schedule overrides (cancellations, reschedules, extra lessons)
	CREATE TABLE IF NOT EXISTS overrides (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL REFERENCES groups(id),
		kind TEXT NOT NULL,
		original_date TEXT,
		new_date TEXT,
		new_start_time INTEGER NOT NULL DEFAULT 0,
		new_end_time INTEGER NOT NULL DEFAULT 0,
		reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_overrides_group
		ON overrides(group_id);
	CREATE INDEX IF NOT EXISTS idx_overrides_dates
		ON overrides(group_id, original_date, new_date);

	-- Enrollments (student x group, one row per pair)
	CREATE TABLE IF NOT EXISTS enrollments (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		group_id TEXT NOT NULL REFERENCES groups(id),
		joined_at TEXT NOT NULL,
		override_price TEXT,
		archived BOOLEAN NOT NULL DEFAULT FALSE,
		archived_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_enrollments_unique_pair
		ON enrollments(student_id, group_id);
	CREATE INDEX IF NOT EXISTS idx_enrollments_group
		ON enrollments(group_id);

	-- Price history (most-recent-wins per group)
	CREATE TABLE IF NOT EXISTS prices (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL REFERENCES groups(id),
		amount TEXT NOT NULL,
		start_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_prices_unique_start
		ON prices(group_id, start_date);

	-- Transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		enrollment_id TEXT NOT NULL REFERENCES enrollments(id),
		tx_type TEXT NOT NULL,
		category TEXT NOT NULL,
		amount TEXT NOT NULL,
		payment_method TEXT NOT NULL DEFAULT '',
		receiver_id TEXT NOT NULL DEFAULT '',
		comment TEXT NOT NULL DEFAULT '',
		billed_month TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_enrollment
		ON transactions(enrollment_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_category
		ON transactions(enrollment_id, category, created_at);

	-- CRITICAL: one monthly fee per enrollment per calendar month. The
	-- billing batch checks before inserting, but this index is what makes
	-- double-billing impossible under concurrent runs.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_monthly_fee
		ON transactions(enrollment_id, billed_month)
		WHERE category = 'MONTHLY_FEE';
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTION BOUNDARY
// =============================================================================

// WithTx executes fn inside one database transaction. The store handed to
// fn routes writes through the transaction; a returned error rolls
// everything back.
func (s *Store) WithTx(ctx context.Context, fn func(store finance.BillingStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{q: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes the billing surface through an open *sql.Tx. The parent
// holds the mutex for the duration, so no additional locking here.
type txStore struct {
	q *sql.Tx
}

func (ts *txStore) Append(ctx context.Context, tx finance.Transaction) error {
	return appendTransaction(ctx, ts.q, tx)
}

func (ts *txStore) Transactions(ctx context.Context, id finance.EnrollmentID) ([]finance.Transaction, error) {
	return queryTransactions(ctx, ts.q, txByEnrollmentSQL, string(id))
}

func (ts *txStore) TransactionsByCategory(ctx context.Context, id finance.EnrollmentID, category finance.Category) ([]finance.Transaction, error) {
	return queryTransactions(ctx, ts.q, txByCategorySQL, string(id), string(category))
}

func (ts *txStore) LatestByCategory(ctx context.Context, id finance.EnrollmentID, category finance.Category) (finance.Transaction, bool, error) {
	return latestByCategory(ctx, ts.q, id, category)
}

func (ts *txStore) MonthlyFeeExists(ctx context.Context, id finance.EnrollmentID, month timetable.Date) (bool, error) {
	return monthlyFeeExists(ctx, ts.q, id, month)
}

func (ts *txStore) Prices(ctx context.Context, groupID timetable.GroupID) ([]finance.PricePoint, error) {
	return queryPrices(ctx, ts.q, groupID)
}

func (ts *txStore) ActiveEnrollments(ctx context.Context, runDate timetable.Date) ([]finance.BillingEnrollment, error) {
	return activeEnrollments(ctx, ts.q, runDate)
}

func (ts *txStore) WithTx(_ context.Context, fn func(store finance.BillingStore) error) error {
	// Already inside a transaction.
	return fn(ts)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

// mapUniqueError translates SQLite unique-constraint violations onto the
// domain sentinels by constraint name.
func mapUniqueError(err error) error {
	if err == nil || !strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "transactions.enrollment_id"):
		return finance.ErrDuplicateMonthlyFee
	case strings.Contains(msg, "enrollments.student_id"):
		return finance.ErrDuplicateEnrollment
	case strings.Contains(msg, "prices.group_id"):
		return finance.ErrDuplicatePriceDate
	case strings.Contains(msg, "holidays.date"):
		return timetable.ErrDuplicateHoliday
	}
	return err
}
