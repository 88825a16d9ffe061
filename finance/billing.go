/*
billing.go - Monthly fee batch

PURPOSE:
  Once a day, charge every active enrollment its monthly fee. Re-running
  the batch is always safe: the (enrollment, month) uniqueness guard on
  MONTHLY_FEE entries makes double-billing impossible, so a crashed or
  repeated run simply skips what is already charged.

BILLING DAY:
  Fees are charged on the 5th of each month. In the month a student
  joins, the day is pushed to max(5, join day + 4) so someone joining
  late in the month gets a grace period instead of an immediate charge.

PRO-RATING:
  Only the join month is pro-rated, and only when the student did not
  join on the 1st: price / days-in-month * days-from-join-to-month-end,
  rounded to the nearest thousand so charges stay in round sums.

FAILURE ISOLATION:
  One enrollment failing (usually a group without price history) must not
  stop the rest of the run. Failures are collected into the report; the
  caller logs them.
*/
package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/omadli/tagayev-uz/timetable"
)

// =============================================================================
// BILLING STORE - What the batch needs from persistence
// =============================================================================

// BillingEnrollment pairs an enrollment with its group for one batch pass.
type BillingEnrollment struct {
	Enrollment Enrollment
	Group      timetable.Group
}

// BillingStore is the persistence surface of the batch. WithTx must run
// the whole callback inside one storage transaction so a mid-run crash
// leaves no partially-billed month.
type BillingStore interface {
	Ledger
	PriceHistory

	// ActiveEnrollments returns every billable enrollment as of runDate:
	// enrollment not archived, group not archived, group end date on or
	// after runDate.
	ActiveEnrollments(ctx context.Context, runDate timetable.Date) ([]BillingEnrollment, error)

	// WithTx executes fn atomically. Writes made through the store handed
	// to fn either all commit or all roll back.
	WithTx(ctx context.Context, fn func(store BillingStore) error) error
}

// =============================================================================
// BILLING RULES
// =============================================================================

// BillingDay returns the day of month on which the enrollment is charged
// during runDate's month. Normally the 5th; in the join month the join
// day plus four, floored at 5.
func BillingDay(joinedAt, runDate timetable.Date) int {
	if joinedAt.Year == runDate.Year && joinedAt.Month == runDate.Month {
		if day := joinedAt.Day + 4; day > 5 {
			return day
		}
	}
	return 5
}

// roundToThousand rounds to the nearest multiple of 1000, halves away
// from zero.
func roundToThousand(d decimal.Decimal) decimal.Decimal {
	thousand := decimal.NewFromInt(1000)
	return d.Div(thousand).Round(0).Mul(thousand)
}

// ProRatedCharge computes the join-month charge and the number of billed
// days. Joining on the 1st pays the full price.
func ProRatedCharge(price decimal.Decimal, joinedAt timetable.Date) (decimal.Decimal, int) {
	daysInMonth := timetable.DaysInMonth(joinedAt.Year, joinedAt.Month)
	if joinedAt.Day == 1 {
		return price, daysInMonth
	}
	daysAttended := daysInMonth - joinedAt.Day + 1
	charge := roundToThousand(price.
		Div(decimal.NewFromInt(int64(daysInMonth))).
		Mul(decimal.NewFromInt(int64(daysAttended))))
	return charge, daysAttended
}

// =============================================================================
// BILLING BATCH
// =============================================================================

// BillingFailure records one enrollment the batch could not charge.
type BillingFailure struct {
	EnrollmentID EnrollmentID
	GroupID      timetable.GroupID
	Err          error
}

// BillingReport summarizes one batch run.
type BillingReport struct {
	RunDate  timetable.Date
	Created  int
	Skipped  int
	Failures []BillingFailure
}

type BillingBatch struct {
	Store  BillingStore
	Logger zerolog.Logger
}

func NewBillingBatch(store BillingStore, logger zerolog.Logger) *BillingBatch {
	return &BillingBatch{Store: store, Logger: logger}
}

// Run charges every eligible enrollment for runDate's month. Safe to call
// any number of times per day.
func (b *BillingBatch) Run(ctx context.Context, runDate timetable.Date) (BillingReport, error) {
	report := BillingReport{RunDate: runDate}

	err := b.Store.WithTx(ctx, func(store BillingStore) error {
		enrollments, err := store.ActiveEnrollments(ctx, runDate)
		if err != nil {
			return err
		}

		for _, be := range enrollments {
			created, err := b.chargeOne(ctx, store, be, runDate)
			switch {
			case err != nil:
				report.Failures = append(report.Failures, BillingFailure{
					EnrollmentID: be.Enrollment.ID,
					GroupID:      be.Group.ID,
					Err:          err,
				})
				b.Logger.Error().Err(err).
					Str("enrollment_id", string(be.Enrollment.ID)).
					Str("group_id", string(be.Group.ID)).
					Msg("monthly billing failed for enrollment")
			case created:
				report.Created++
			default:
				report.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	b.Logger.Info().
		Str("run_date", runDate.String()).
		Int("created", report.Created).
		Int("skipped", report.Skipped).
		Int("failures", len(report.Failures)).
		Msg("monthly billing batch finished")
	return report, nil
}

// chargeOne applies the eligibility rules to a single enrollment and
// appends its fee. Returns created=false for every skip condition.
func (b *BillingBatch) chargeOne(ctx context.Context, store BillingStore, be BillingEnrollment, runDate timetable.Date) (created bool, err error) {
	e := be.Enrollment

	// Not yet started: joined after the run date.
	if e.JoinedAt.After(runDate) {
		return false, nil
	}

	// Not yet this month's billing day.
	if runDate.Day < BillingDay(e.JoinedAt, runDate) {
		return false, nil
	}

	// Idempotence guard: one fee per enrollment per calendar month.
	exists, err := store.MonthlyFeeExists(ctx, e.ID, runDate)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	price, err := b.effectivePrice(ctx, store, e, runDate)
	if err != nil {
		return false, err
	}

	charge := price
	comment := fmt.Sprintf("Monthly fee for %s %d", runDate.Month, runDate.Year)
	if e.JoinedAt.Year == runDate.Year && e.JoinedAt.Month == runDate.Month && e.JoinedAt.Day != 1 {
		var days int
		charge, days = ProRatedCharge(price, e.JoinedAt)
		comment = fmt.Sprintf("Monthly fee for %s %d (%d days)", runDate.Month, runDate.Year, days)
	}

	fee := NewMonthlyFee(e.ID, charge, comment, runDate.Time(time.Local))
	if err := store.Append(ctx, fee); err != nil {
		return false, err
	}
	return true, nil
}

func (b *BillingBatch) effectivePrice(ctx context.Context, store BillingStore, e Enrollment, asOf timetable.Date) (decimal.Decimal, error) {
	if e.OverridePrice != nil {
		return *e.OverridePrice, nil
	}
	prices, err := store.Prices(ctx, e.GroupID)
	if err != nil {
		return decimal.Zero, err
	}
	return PriceOn(prices, asOf)
}
