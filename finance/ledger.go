/*
ledger.go - Append-only transaction log

PURPOSE:
  The Ledger is the source of truth for every balance change. Balance is
  always computed by replaying an enrollment's transactions; there is no
  stored "balance" column that can drift out of sync.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: no update, no delete
  2. IMMUTABLE: once written, entries never change
  3. IDEMPOTENT FEES: at most one MONTHLY_FEE per (enrollment, month)

CORRECTIONS:
  A mistaken charge is not edited. A matching entry of the opposite
  category (discount against a fee, refund against a payment) is appended
  and both stay in the history.
*/
package finance

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/omadli/tagayev-uz/timetable"
)

// =============================================================================
// LEDGER - Append-only transaction log
// =============================================================================

// Ledger persists transactions for enrollments.
//
// INVARIANTS:
//   - Append-only: no Update, no Delete.
//   - Append must reject a MONTHLY_FEE for an (enrollment, month) pair
//     that already has one, returning ErrDuplicateMonthlyFee.
type Ledger interface {
	// Append adds one transaction. The only write operation.
	Append(ctx context.Context, tx Transaction) error

	// Transactions returns every entry for the enrollment, ordered by
	// creation time ascending.
	Transactions(ctx context.Context, enrollmentID EnrollmentID) ([]Transaction, error)

	// TransactionsByCategory narrows to one category, same ordering.
	TransactionsByCategory(ctx context.Context, enrollmentID EnrollmentID, category Category) ([]Transaction, error)

	// LatestByCategory returns the most recently created entry of the
	// category, or ok=false if the enrollment has none.
	LatestByCategory(ctx context.Context, enrollmentID EnrollmentID, category Category) (Transaction, bool, error)

	// MonthlyFeeExists reports whether a MONTHLY_FEE entry exists for the
	// enrollment in the given calendar month. The billing batch's
	// idempotence check.
	MonthlyFeeExists(ctx context.Context, enrollmentID EnrollmentID, month timetable.Date) (bool, error)
}

// =============================================================================
// BALANCE REPLAY
// =============================================================================

// BalanceOf replays a transaction list into the running balance:
// sum of credits minus sum of debits. Negative means the student owes.
func BalanceOf(txs []Transaction) decimal.Decimal {
	balance := decimal.Zero
	for _, tx := range txs {
		balance = balance.Add(tx.Signed())
	}
	return balance
}
