/*
financials.go - Enrollment, price history, and the financial calculator

PURPOSE:
  Answers "what does this student's membership cost and where do they
  stand?": the enrollment record, most-recent-wins price lookup, payment
  status classification, and next-due-date computation.

KEY RULES:
  - effective price = the enrollment's override price if set, else the
    group price entry with the latest start_date <= asOf
  - balance < 0 is a debtor, > 0 overpaid, == 0 settled
  - next due date = (latest monthly fee date, else joined_at) + 1 month,
    day clamped; none once past the group's end date
  - "due soon" is a heuristic: a monthly fee created within the window
    [today-30, today-23], meaning the next charge lands within a week
*/
package finance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/omadli/tagayev-uz/timetable"
)

// =============================================================================
// ENROLLMENT - Student x Group membership
// =============================================================================

// Enrollment ties a student to a group. One row per (student, group) pair.
type Enrollment struct {
	ID        EnrollmentID
	StudentID string
	GroupID   timetable.GroupID

	JoinedAt timetable.Date

	// OverridePrice, when set, replaces the group's price history for this
	// student (individual discounts negotiated at the front desk).
	OverridePrice *decimal.Decimal

	Archived   bool
	ArchivedAt time.Time
	CreatedAt  time.Time
}

// IsActive mirrors the group predicate: the enrollment itself must not be
// archived. Group-side activity (archived flag, lifetime) is checked on
// the group, not duplicated here.
func (e Enrollment) IsActive() bool { return !e.Archived }

// =============================================================================
// PRICE HISTORY - Most-recent-wins group pricing
// =============================================================================

// PricePoint is one entry in a group's price history. Unique start date
// per group.
type PricePoint struct {
	ID        string
	GroupID   timetable.GroupID
	Amount    decimal.Decimal
	StartDate timetable.Date
	CreatedAt time.Time
}

// PriceHistory lists a group's price entries.
type PriceHistory interface {
	// Prices returns the group's price entries ordered by start date
	// ascending.
	Prices(ctx context.Context, groupID timetable.GroupID) ([]PricePoint, error)
}

// PriceOn picks the entry with the latest start date at or before asOf.
// Prices are never interpolated. Returns ErrNoPriceHistory when no entry
// is old enough, which signals broken data: every group gets an initial
// price at creation.
func PriceOn(prices []PricePoint, asOf timetable.Date) (decimal.Decimal, error) {
	var (
		best  decimal.Decimal
		found bool
	)
	for _, p := range prices {
		if p.StartDate.BeforeOrEqual(asOf) {
			best = p.Amount
			found = true
		}
	}
	if !found {
		return decimal.Zero, ErrNoPriceHistory
	}
	return best, nil
}

// =============================================================================
// PAYMENT STATUS
// =============================================================================

type PaymentStatus string

const (
	StatusDebtor   PaymentStatus = "debtor"
	StatusOverpaid PaymentStatus = "overpaid"
	StatusSettled  PaymentStatus = "settled"
)

// ClassifyBalance maps a balance onto its payment status.
func ClassifyBalance(balance decimal.Decimal) PaymentStatus {
	switch {
	case balance.IsNegative():
		return StatusDebtor
	case balance.IsPositive():
		return StatusOverpaid
	}
	return StatusSettled
}

// DueSoonWindow returns the fee-creation window [today-30, today-23] that
// marks an enrollment as "due soon": the previous charge is about a month
// old, so the next one lands within the coming week.
func DueSoonWindow(today timetable.Date) timetable.DateRange {
	return timetable.DateRange{Start: today.AddDays(-30), End: today.AddDays(-23)}
}

// =============================================================================
// CALCULATOR - Per-enrollment financial queries
// =============================================================================

// Financials is the aggregate the API returns for one enrollment.
type Financials struct {
	Balance        decimal.Decimal
	Status         PaymentStatus
	EffectivePrice decimal.Decimal
	NextDueDate    *timetable.Date
	NextDueAmount  decimal.Decimal
	DueSoon        bool
}

// Calculator computes financial state from the ledger and price history.
// Read-only; safe for concurrent use.
type Calculator struct {
	Ledger Ledger
	Prices PriceHistory
}

func NewCalculator(ledger Ledger, prices PriceHistory) *Calculator {
	return &Calculator{Ledger: ledger, Prices: prices}
}

// EffectivePrice resolves what the enrollment pays per month as of a date.
func (c *Calculator) EffectivePrice(ctx context.Context, e Enrollment, asOf timetable.Date) (decimal.Decimal, error) {
	if e.OverridePrice != nil {
		return *e.OverridePrice, nil
	}
	prices, err := c.Prices.Prices(ctx, e.GroupID)
	if err != nil {
		return decimal.Zero, err
	}
	return PriceOn(prices, asOf)
}

// Balance replays the enrollment's full ledger.
func (c *Calculator) Balance(ctx context.Context, enrollmentID EnrollmentID) (decimal.Decimal, error) {
	txs, err := c.Ledger.Transactions(ctx, enrollmentID)
	if err != nil {
		return decimal.Zero, err
	}
	return BalanceOf(txs), nil
}

// NextDueDate returns when the next monthly fee falls due, or nil once the
// group has ended. Base is the latest monthly fee's creation date when one
// exists, else the join date; the due date is one clamped calendar month
// later.
func (c *Calculator) NextDueDate(ctx context.Context, e Enrollment, g timetable.Group) (*timetable.Date, error) {
	base := e.JoinedAt
	if latest, ok, err := c.Ledger.LatestByCategory(ctx, e.ID, CategoryMonthlyFee); err != nil {
		return nil, err
	} else if ok {
		base = latest.Date()
	}

	due := base.AddMonths(1)
	if due.After(g.EndDate) {
		return nil, nil
	}
	return &due, nil
}

// DueSoon reports whether the enrollment's last monthly fee was created
// inside the due-soon window. Active checks (enrollment and group) are the
// caller's concern; this only inspects the ledger.
func (c *Calculator) DueSoon(ctx context.Context, enrollmentID EnrollmentID, today timetable.Date) (bool, error) {
	fees, err := c.Ledger.TransactionsByCategory(ctx, enrollmentID, CategoryMonthlyFee)
	if err != nil {
		return false, err
	}
	window := DueSoonWindow(today)
	for _, fee := range fees {
		if window.Contains(fee.Date()) {
			return true, nil
		}
	}
	return false, nil
}

// Financials aggregates everything the enrollment detail endpoint needs.
func (c *Calculator) Financials(ctx context.Context, e Enrollment, g timetable.Group, today timetable.Date) (Financials, error) {
	balance, err := c.Balance(ctx, e.ID)
	if err != nil {
		return Financials{}, err
	}
	price, err := c.EffectivePrice(ctx, e, today)
	if err != nil {
		return Financials{}, err
	}
	due, err := c.NextDueDate(ctx, e, g)
	if err != nil {
		return Financials{}, err
	}
	dueSoon := false
	if e.IsActive() && g.IsActive(today) {
		dueSoon, err = c.DueSoon(ctx, e.ID, today)
		if err != nil {
			return Financials{}, err
		}
	}

	f := Financials{
		Balance:        balance,
		Status:         ClassifyBalance(balance),
		EffectivePrice: price,
		NextDueDate:    due,
		DueSoon:        dueSoon,
	}
	if due != nil {
		// The next charge is a full month: pro-rating only ever applies in
		// the join month, which by then is already billed.
		f.NextDueAmount = price
	}
	return f, nil
}
