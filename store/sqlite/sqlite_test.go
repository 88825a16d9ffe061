package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omadli/tagayev-uz/finance"
	"github.com/omadli/tagayev-uz/store/sqlite"
	"github.com/omadli/tagayev-uz/timetable"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func seedGroup(t *testing.T, store *sqlite.Store, name, room string) timetable.Group {
	t.Helper()
	ws, err := timetable.ParseWeekdays("135")
	require.NoError(t, err)
	g, err := store.CreateGroup(context.Background(), timetable.Group{
		Name:      name,
		RoomID:    room,
		Weekdays:  ws,
		StartDate: timetable.NewDate(2024, time.September, 1),
		EndDate:   timetable.NewDate(2025, time.June, 30),
		StartTime: timetable.NewTimeOfDay(14, 0),
		EndTime:   timetable.NewTimeOfDay(16, 0),
	})
	require.NoError(t, err)
	return g
}

func seedEnrollment(t *testing.T, store *sqlite.Store, g timetable.Group, studentID string, joined timetable.Date) finance.Enrollment {
	t.Helper()
	e, err := store.CreateEnrollment(context.Background(), finance.Enrollment{
		StudentID: studentID,
		GroupID:   g.ID,
		JoinedAt:  joined,
	})
	require.NoError(t, err)
	return e
}

// =============================================================================
// GROUP TESTS
// =============================================================================

func TestStore_GroupRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created := seedGroup(t, store, "Algebra MWF", "room-1")
	assert.NotEmpty(t, created.ID)

	got, err := store.GetGroup(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Algebra MWF", got.Name)
	assert.Equal(t, created.Weekdays, got.Weekdays)
	assert.Equal(t, created.StartDate, got.StartDate)
	assert.Equal(t, timetable.NewTimeOfDay(14, 0), got.StartTime)
	assert.False(t, got.Archived)
}

func TestStore_GetGroup_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetGroup(context.Background(), "missing")
	assert.ErrorIs(t, err, timetable.ErrGroupNotFound)
	assert.True(t, timetable.IsNotFound(err))
}

func TestStore_CreateGroup_RejectsInvalid(t *testing.T) {
	store := newTestStore(t)
	_, err := store.CreateGroup(context.Background(), timetable.Group{Name: "broken"})
	assert.ErrorIs(t, err, timetable.ErrEmptyWeekdays)
}

func TestStore_CreateGroupChecked_RejectsConflict(t *testing.T) {
	// GIVEN: A group occupying room-1 Mon/Wed/Fri 14:00-16:00
	// WHEN: Inserting overlapping and non-overlapping candidates through
	//       the checked create, which holds the write lock across check
	//       and insert
	// THEN: The overlap is rejected naming the existing group, the free
	//       slot is accepted

	store := newTestStore(t)
	ctx := context.Background()
	existing := seedGroup(t, store, "Algebra MWF", "room-1")

	clash := existing
	clash.ID = ""
	clash.Name = "Geometry MWF"
	clash.StartTime = timetable.NewTimeOfDay(15, 0)
	clash.EndTime = timetable.NewTimeOfDay(17, 0)
	_, err := store.CreateGroupChecked(ctx, clash)
	assert.ErrorIs(t, err, timetable.ErrRoomConflict)

	var conflict *timetable.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "Algebra MWF", conflict.ExistingGroupName)

	free := clash
	free.StartTime = timetable.NewTimeOfDay(16, 0)
	free.EndTime = timetable.NewTimeOfDay(18, 0)
	created, err := store.CreateGroupChecked(ctx, free)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
}

func TestStore_UpdateGroupChecked_SkipsSelf(t *testing.T) {
	// GIVEN: Two groups sharing a room in adjacent slots
	// WHEN: Re-saving one unchanged, then moving it onto the other
	// THEN: The self-overlap passes, the real overlap is rejected

	store := newTestStore(t)
	ctx := context.Background()
	seedGroup(t, store, "Algebra MWF", "room-1")

	ws, err := timetable.ParseWeekdays("135")
	require.NoError(t, err)
	other, err := store.CreateGroupChecked(ctx, timetable.Group{
		Name:      "Geometry MWF",
		RoomID:    "room-1",
		Weekdays:  ws,
		StartDate: timetable.NewDate(2024, time.September, 1),
		EndDate:   timetable.NewDate(2025, time.June, 30),
		StartTime: timetable.NewTimeOfDay(16, 0),
		EndTime:   timetable.NewTimeOfDay(18, 0),
	})
	require.NoError(t, err)

	require.NoError(t, store.UpdateGroupChecked(ctx, other))

	other.StartTime = timetable.NewTimeOfDay(15, 0)
	other.EndTime = timetable.NewTimeOfDay(17, 0)
	assert.ErrorIs(t, store.UpdateGroupChecked(ctx, other), timetable.ErrRoomConflict)
}

func TestStore_ArchiveAndRestoreGroup(t *testing.T) {
	// GIVEN: An archived group
	// WHEN: Listing active groups and room occupancy
	// THEN: It is hidden from both until restored

	store := newTestStore(t)
	ctx := context.Background()
	g := seedGroup(t, store, "Algebra MWF", "room-1")

	require.NoError(t, store.ArchiveGroup(ctx, g.ID))

	active, err := store.ListGroups(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := store.ListGroups(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Archived)
	assert.False(t, all[0].ArchivedAt.IsZero())

	byRoom, err := store.ActiveGroupsByRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.Empty(t, byRoom)

	require.NoError(t, store.RestoreGroup(ctx, g.ID))
	byRoom, err = store.ActiveGroupsByRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.Len(t, byRoom, 1)
}

// =============================================================================
// HOLIDAY TESTS
// =============================================================================

func TestStore_Holidays_UniquePerDate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	newYear := timetable.NewDate(2025, time.January, 1)

	_, err := store.SaveHoliday(ctx, timetable.Holiday{Date: newYear, Name: "New Year"})
	require.NoError(t, err)

	_, err = store.SaveHoliday(ctx, timetable.Holiday{Date: newYear, Name: "Another"})
	assert.ErrorIs(t, err, timetable.ErrDuplicateHoliday)

	got, err := store.HolidaysInRange(ctx,
		timetable.NewDate(2025, time.January, 1), timetable.NewDate(2025, time.January, 31))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, newYear, got[0].Date)
}

func TestStore_HolidaysInRange_Bounds(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for _, d := range []timetable.Date{
		timetable.NewDate(2025, time.January, 1),
		timetable.NewDate(2025, time.March, 8),
		timetable.NewDate(2025, time.March, 21),
	} {
		_, err := store.SaveHoliday(ctx, timetable.Holiday{Date: d, Name: d.String()})
		require.NoError(t, err)
	}

	got, err := store.HolidaysInRange(ctx,
		timetable.NewDate(2025, time.March, 1), timetable.NewDate(2025, time.March, 8))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, timetable.NewDate(2025, time.March, 8), got[0].Date)
}

// =============================================================================
// OVERRIDE TESTS
// =============================================================================

func TestStore_Overrides_OrderedByCreation(t *testing.T) {
	// GIVEN: Two overrides on the same date saved in sequence
	// WHEN: Fetching overrides for the resolver
	// THEN: They come back in creation order so the later one wins

	store := newTestStore(t)
	ctx := context.Background()
	g := seedGroup(t, store, "Algebra MWF", "room-1")
	jan15 := timetable.NewDate(2025, time.January, 15)

	first := timetable.NewCancellation(g.ID, jan15, "first")
	first.CreatedAt = time.Date(2025, time.January, 10, 8, 0, 0, 0, time.UTC)
	_, err := store.SaveOverride(ctx, first)
	require.NoError(t, err)

	second := timetable.NewReschedule(g.ID, jan15, timetable.NewDate(2025, time.January, 18),
		timetable.NewTimeOfDay(10, 0), timetable.NewTimeOfDay(12, 0), "second")
	second.CreatedAt = time.Date(2025, time.January, 11, 8, 0, 0, 0, time.UTC)
	_, err = store.SaveOverride(ctx, second)
	require.NoError(t, err)

	jan := timetable.DateRange{
		Start: timetable.NewDate(2025, time.January, 1),
		End:   timetable.NewDate(2025, time.January, 31),
	}
	got, err := store.OverridesAffecting(ctx, g.ID, jan, jan)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Reason)
	assert.Equal(t, "second", got[1].Reason)
}

func TestStore_SaveOverride_RejectsInvalidVariant(t *testing.T) {
	store := newTestStore(t)
	g := seedGroup(t, store, "Algebra MWF", "room-1")

	bad := timetable.NewExtraLesson(g.ID, timetable.NewDate(2025, time.January, 2),
		timetable.NewTimeOfDay(16, 0), timetable.NewTimeOfDay(14, 0), "")
	_, err := store.SaveOverride(context.Background(), bad)
	assert.ErrorIs(t, err, timetable.ErrInvalidOverride)
}

func TestStore_OverridesAffecting_FiltersByRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	g := seedGroup(t, store, "Algebra MWF", "room-1")

	_, err := store.SaveOverride(ctx, timetable.NewCancellation(g.ID,
		timetable.NewDate(2025, time.February, 5), "feb"))
	require.NoError(t, err)

	jan := timetable.DateRange{
		Start: timetable.NewDate(2025, time.January, 1),
		End:   timetable.NewDate(2025, time.January, 31),
	}
	got, err := store.OverridesAffecting(ctx, g.ID, jan, jan)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// =============================================================================
// ENROLLMENT TESTS
// =============================================================================

func TestStore_Enrollment_UniqueStudentGroupPair(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	g := seedGroup(t, store, "Algebra MWF", "room-1")

	seedEnrollment(t, store, g, "stu-1", timetable.NewDate(2025, time.January, 10))

	_, err := store.CreateEnrollment(ctx, finance.Enrollment{
		StudentID: "stu-1",
		GroupID:   g.ID,
		JoinedAt:  timetable.NewDate(2025, time.February, 1),
	})
	assert.ErrorIs(t, err, finance.ErrDuplicateEnrollment)
}

func TestStore_Enrollment_OverridePriceRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	g := seedGroup(t, store, "Algebra MWF", "room-1")

	override := money("250000")
	created, err := store.CreateEnrollment(ctx, finance.Enrollment{
		StudentID:     "stu-1",
		GroupID:       g.ID,
		JoinedAt:      timetable.NewDate(2025, time.January, 10),
		OverridePrice: &override,
	})
	require.NoError(t, err)

	got, err := store.GetEnrollment(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.OverridePrice)
	assert.True(t, got.OverridePrice.Equal(override))
}

func TestStore_ArchiveEnrollment_KeepsLedger(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	g := seedGroup(t, store, "Algebra MWF", "room-1")
	e := seedEnrollment(t, store, g, "stu-1", timetable.NewDate(2025, time.January, 10))

	require.NoError(t, store.Append(ctx,
		finance.NewMonthlyFee(e.ID, money("300000"), "", time.Now())))
	require.NoError(t, store.ArchiveEnrollment(ctx, e.ID))

	txs, err := store.Transactions(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	got, err := store.GetEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, got.Archived)
}

// =============================================================================
// PRICE TESTS
// =============================================================================

func TestStore_Prices_UniqueStartDate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	g := seedGroup(t, store, "Algebra MWF", "room-1")
	sept := timetable.NewDate(2024, time.September, 1)

	_, err := store.AddPrice(ctx, finance.PricePoint{GroupID: g.ID, Amount: money("250000"), StartDate: sept})
	require.NoError(t, err)
	_, err = store.AddPrice(ctx, finance.PricePoint{GroupID: g.ID, Amount: money("300000"), StartDate: sept})
	assert.ErrorIs(t, err, finance.ErrDuplicatePriceDate)
}

func TestStore_DeletePrice_Protection(t *testing.T) {
	// GIVEN: Price entries with old and recent start dates
	// WHEN: Deleting
	// THEN: Only an entry starting within the last few days can go; the
	//       window is keyed on the start date, not on when the row was
	//       inserted

	store := newTestStore(t)
	ctx := context.Background()
	g := seedGroup(t, store, "Algebra MWF", "room-1")
	today := timetable.Today()

	// Inserted just now, but effective for a month already: billing may
	// have used it, so it is locked.
	old, err := store.AddPrice(ctx, finance.PricePoint{
		GroupID:   g.ID,
		Amount:    money("250000"),
		StartDate: today.AddDays(-30),
	})
	require.NoError(t, err)
	assert.ErrorIs(t, store.DeletePrice(ctx, old.ID), finance.ErrPriceProtected)

	// Exactly on the window boundary: still locked.
	boundary, err := store.AddPrice(ctx, finance.PricePoint{
		GroupID:   g.ID,
		Amount:    money("280000"),
		StartDate: today.AddDays(-4),
	})
	require.NoError(t, err)
	assert.ErrorIs(t, store.DeletePrice(ctx, boundary.ID), finance.ErrPriceProtected)

	fresh, err := store.AddPrice(ctx, finance.PricePoint{
		GroupID:   g.ID,
		Amount:    money("300000"),
		StartDate: today,
	})
	require.NoError(t, err)
	require.NoError(t, store.DeletePrice(ctx, fresh.ID))

	prices, err := store.Prices(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, prices, 2)
}

func TestStore_DeletePrice_OnlyEntryProtected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	g := seedGroup(t, store, "Algebra MWF", "room-1")

	only, err := store.AddPrice(ctx, finance.PricePoint{
		GroupID:   g.ID,
		Amount:    money("300000"),
		StartDate: timetable.Today(),
	})
	require.NoError(t, err)
	assert.ErrorIs(t, store.DeletePrice(ctx, only.ID), finance.ErrPriceProtected)
}

func TestStore_DeletePrice_Missing(t *testing.T) {
	store := newTestStore(t)
	assert.ErrorIs(t, store.DeletePrice(context.Background(), "no-such-price"),
		finance.ErrPriceNotFound)
}

// =============================================================================
// LEDGER TESTS
// =============================================================================

func TestStore_Ledger_AppendAndReplay(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	g := seedGroup(t, store, "Algebra MWF", "room-1")
	e := seedEnrollment(t, store, g, "stu-1", timetable.NewDate(2025, time.January, 10))

	require.NoError(t, store.Append(ctx, finance.NewMonthlyFee(e.ID, money("300000"), "",
		time.Date(2025, time.January, 14, 0, 0, 0, 0, time.Local))))
	require.NoError(t, store.Append(ctx, finance.NewPayment(e.ID, money("200000"), "cash", "staff-1", "",
		time.Date(2025, time.January, 15, 0, 0, 0, 0, time.Local))))

	txs, err := store.Transactions(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, finance.CategoryMonthlyFee, txs[0].Category)
	assert.True(t, finance.BalanceOf(txs).Equal(money("-100000")))
}

func TestStore_Ledger_MonthlyFeeUniquePerMonth(t *testing.T) {
	// GIVEN: A January fee already in the ledger
	// WHEN: Appending another January fee, then a February one
	// THEN: January is rejected by the unique index, February passes

	store := newTestStore(t)
	ctx := context.Background()
	g := seedGroup(t, store, "Algebra MWF", "room-1")
	e := seedEnrollment(t, store, g, "stu-1", timetable.NewDate(2024, time.October, 1))

	jan := time.Date(2025, time.January, 5, 0, 0, 0, 0, time.Local)
	require.NoError(t, store.Append(ctx, finance.NewMonthlyFee(e.ID, money("300000"), "", jan)))

	dup := finance.NewMonthlyFee(e.ID, money("300000"), "", jan.AddDate(0, 0, 10))
	assert.ErrorIs(t, store.Append(ctx, dup), finance.ErrDuplicateMonthlyFee)

	feb := finance.NewMonthlyFee(e.ID, money("300000"), "", jan.AddDate(0, 1, 0))
	assert.NoError(t, store.Append(ctx, feb))

	exists, err := store.MonthlyFeeExists(ctx, e.ID, timetable.NewDate(2025, time.February, 1))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStore_LatestByCategory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	g := seedGroup(t, store, "Algebra MWF", "room-1")
	e := seedEnrollment(t, store, g, "stu-1", timetable.NewDate(2024, time.October, 1))

	_, ok, err := store.LatestByCategory(ctx, e.ID, finance.CategoryMonthlyFee)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Append(ctx, finance.NewMonthlyFee(e.ID, money("300000"), "first",
		time.Date(2025, time.January, 5, 0, 0, 0, 0, time.Local))))
	require.NoError(t, store.Append(ctx, finance.NewMonthlyFee(e.ID, money("300000"), "second",
		time.Date(2025, time.February, 5, 0, 0, 0, 0, time.Local))))

	latest, ok, err := store.LatestByCategory(ctx, e.ID, finance.CategoryMonthlyFee)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", latest.Comment)
}

// =============================================================================
// BILLING INTEGRATION
// =============================================================================

func TestStore_BillingBatch_EndToEnd(t *testing.T) {
	// GIVEN: Two enrollments, one mid-month joiner, real sqlite storage
	// WHEN: Running the batch twice on the same date
	// THEN: Each gets exactly one fee; the second run changes nothing

	store := newTestStore(t)
	ctx := context.Background()
	g := seedGroup(t, store, "Algebra MWF", "room-1")
	_, err := store.AddPrice(ctx, finance.PricePoint{
		GroupID:   g.ID,
		Amount:    money("300000"),
		StartDate: timetable.NewDate(2024, time.September, 1),
	})
	require.NoError(t, err)

	regular := seedEnrollment(t, store, g, "stu-1", timetable.NewDate(2024, time.November, 10))
	joiner := seedEnrollment(t, store, g, "stu-2", timetable.NewDate(2025, time.January, 20))

	batch := finance.NewBillingBatch(store, zerolog.Nop())
	runDate := timetable.NewDate(2025, time.January, 25)

	report, err := batch.Run(ctx, runDate)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)
	assert.Empty(t, report.Failures)

	again, err := batch.Run(ctx, runDate)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Created)
	assert.Equal(t, 2, again.Skipped)

	fees, err := store.TransactionsByCategory(ctx, regular.ID, finance.CategoryMonthlyFee)
	require.NoError(t, err)
	require.Len(t, fees, 1)
	assert.True(t, fees[0].Amount.Equal(money("300000")))

	prorated, err := store.TransactionsByCategory(ctx, joiner.ID, finance.CategoryMonthlyFee)
	require.NoError(t, err)
	require.Len(t, prorated, 1)
	assert.True(t, prorated[0].Amount.Equal(money("116000")), prorated[0].Amount.String())
	assert.Contains(t, prorated[0].Comment, "(12 days)")
}

func TestStore_ActiveEnrollments_Filters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	running := seedGroup(t, store, "Running", "room-1")
	seedEnrollment(t, store, running, "stu-1", timetable.NewDate(2024, time.October, 1))

	archivedEnrollment := seedEnrollment(t, store, running, "stu-2", timetable.NewDate(2024, time.October, 1))
	require.NoError(t, store.ArchiveEnrollment(ctx, archivedEnrollment.ID))

	archivedGroup := seedGroup(t, store, "Archived", "room-2")
	seedEnrollment(t, store, archivedGroup, "stu-3", timetable.NewDate(2024, time.October, 1))
	require.NoError(t, store.ArchiveGroup(ctx, archivedGroup.ID))

	got, err := store.ActiveEnrollments(ctx, timetable.NewDate(2025, time.January, 5))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "stu-1", got[0].Enrollment.StudentID)

	// A run date past every group's end date selects nothing.
	got, err = store.ActiveEnrollments(ctx, timetable.NewDate(2025, time.August, 1))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_WithTx_RollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	g := seedGroup(t, store, "Algebra MWF", "room-1")
	e := seedEnrollment(t, store, g, "stu-1", timetable.NewDate(2024, time.October, 1))

	boom := assert.AnError
	err := store.WithTx(ctx, func(tx finance.BillingStore) error {
		if err := tx.Append(ctx, finance.NewMonthlyFee(e.ID, money("300000"), "",
			time.Date(2025, time.January, 5, 0, 0, 0, 0, time.Local))); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	txs, err := store.Transactions(ctx, e.ID)
	require.NoError(t, err)
	assert.Empty(t, txs, "rolled-back write must not be visible")
}
