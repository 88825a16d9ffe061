package finance_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omadli/tagayev-uz/finance"
	"github.com/omadli/tagayev-uz/timetable"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newBillingStore(t *testing.T, joined timetable.Date) (*memoryStore, *finance.BillingBatch) {
	t.Helper()
	store := newMemoryStore()
	store.prices["grp-1"] = []finance.PricePoint{
		{GroupID: "grp-1", Amount: money("300000"), StartDate: timetable.NewDate(2024, time.September, 1)},
	}
	store.active = []finance.BillingEnrollment{
		{Enrollment: testEnrollment(joined), Group: testGroup(t)},
	}
	return store, finance.NewBillingBatch(store, zerolog.Nop())
}

// =============================================================================
// BILLING DAY TESTS
// =============================================================================

func TestBillingDay(t *testing.T) {
	jan := timetable.NewDate(2025, time.January, 15)

	// Join month, late joiner: day 20 bills on the 24th
	assert.Equal(t, 24, finance.BillingDay(timetable.NewDate(2025, time.January, 20), jan))
	// Join month, early joiner: floor at 5
	assert.Equal(t, 5, finance.BillingDay(timetable.NewDate(2025, time.January, 1), jan))
	// Any later month: always the 5th
	assert.Equal(t, 5, finance.BillingDay(timetable.NewDate(2024, time.November, 20), jan))
}

// =============================================================================
// PRO-RATING TESTS
// =============================================================================

func TestProRatedCharge(t *testing.T) {
	// GIVEN: 300k/month, joined January 20 (12 of 31 days remain)
	// WHEN: Pro-rating
	// THEN: 300000/31*12 = 116129.03..., rounded to 116000

	charge, days := finance.ProRatedCharge(money("300000"), timetable.NewDate(2025, time.January, 20))
	assert.Equal(t, 12, days)
	assert.True(t, charge.Equal(money("116000")), charge.String())
}

func TestProRatedCharge_JoinedOnFirst_FullPrice(t *testing.T) {
	charge, days := finance.ProRatedCharge(money("300000"), timetable.NewDate(2025, time.January, 1))
	assert.Equal(t, 31, days)
	assert.True(t, charge.Equal(money("300000")))
}

// =============================================================================
// BATCH RUN TESTS
// =============================================================================

func TestBillingBatch_FullPriceAfterJoinMonth(t *testing.T) {
	store, batch := newBillingStore(t, timetable.NewDate(2024, time.November, 10))
	ctx := context.Background()

	report, err := batch.Run(ctx, timetable.NewDate(2025, time.January, 5))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 0, report.Skipped)
	assert.Empty(t, report.Failures)

	fees, err := store.TransactionsByCategory(ctx, "enr-1", finance.CategoryMonthlyFee)
	require.NoError(t, err)
	require.Len(t, fees, 1)
	assert.True(t, fees[0].Amount.Equal(money("300000")))
	assert.Equal(t, finance.TxDebit, fees[0].Type)
	assert.Contains(t, fees[0].Comment, "January 2025")
}

func TestBillingBatch_JoinMonthProRated(t *testing.T) {
	// GIVEN: Joined January 20, so billing day is the 24th
	// WHEN: Running on the 25th
	// THEN: One pro-rated fee of 116k with the day count in the comment

	store, batch := newBillingStore(t, timetable.NewDate(2025, time.January, 20))
	ctx := context.Background()

	report, err := batch.Run(ctx, timetable.NewDate(2025, time.January, 25))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)

	fees, err := store.TransactionsByCategory(ctx, "enr-1", finance.CategoryMonthlyFee)
	require.NoError(t, err)
	require.Len(t, fees, 1)
	assert.True(t, fees[0].Amount.Equal(money("116000")), fees[0].Amount.String())
	assert.Contains(t, fees[0].Comment, "(12 days)")
}

func TestBillingBatch_BeforeBillingDay_Skips(t *testing.T) {
	// Joined January 20 -> billing day 24; the 23rd is too early
	_, batch := newBillingStore(t, timetable.NewDate(2025, time.January, 20))

	report, err := batch.Run(context.Background(), timetable.NewDate(2025, time.January, 23))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 1, report.Skipped)
}

func TestBillingBatch_SecondRunIsNoOp(t *testing.T) {
	// GIVEN: The batch already charged this month
	// WHEN: Running again the same day
	// THEN: Nothing new is created, the run reports a skip

	store, batch := newBillingStore(t, timetable.NewDate(2024, time.November, 10))
	ctx := context.Background()
	runDate := timetable.NewDate(2025, time.January, 5)

	first, err := batch.Run(ctx, runDate)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	second, err := batch.Run(ctx, runDate)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Skipped)
	assert.Empty(t, second.Failures)

	fees, err := store.TransactionsByCategory(ctx, "enr-1", finance.CategoryMonthlyFee)
	require.NoError(t, err)
	assert.Len(t, fees, 1)
}

func TestBillingBatch_NotYetJoined_Skips(t *testing.T) {
	_, batch := newBillingStore(t, timetable.NewDate(2025, time.March, 1))

	report, err := batch.Run(context.Background(), timetable.NewDate(2025, time.January, 10))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 1, report.Skipped)
}

func TestBillingBatch_MissingPrice_IsolatedFailure(t *testing.T) {
	// GIVEN: Two enrollments, one in a group without price history
	// WHEN: Running the batch
	// THEN: The healthy one is charged; the broken one lands in Failures

	store, batch := newBillingStore(t, timetable.NewDate(2024, time.November, 10))
	broken := testEnrollment(timetable.NewDate(2024, time.November, 10))
	broken.ID = "enr-2"
	broken.GroupID = "grp-unpriced"
	brokenGroup := testGroup(t)
	brokenGroup.ID = "grp-unpriced"
	store.active = append(store.active, finance.BillingEnrollment{Enrollment: broken, Group: brokenGroup})

	report, err := batch.Run(context.Background(), timetable.NewDate(2025, time.January, 5))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, finance.EnrollmentID("enr-2"), report.Failures[0].EnrollmentID)
	assert.ErrorIs(t, report.Failures[0].Err, finance.ErrNoPriceHistory)
}

func TestBillingBatch_OverridePriceUsed(t *testing.T) {
	store, batch := newBillingStore(t, timetable.NewDate(2024, time.November, 10))
	override := money("200000")
	store.active[0].Enrollment.OverridePrice = &override

	_, err := batch.Run(context.Background(), timetable.NewDate(2025, time.January, 5))
	require.NoError(t, err)

	fees, err := store.TransactionsByCategory(context.Background(), "enr-1", finance.CategoryMonthlyFee)
	require.NoError(t, err)
	require.Len(t, fees, 1)
	assert.True(t, fees[0].Amount.Equal(override))
}
