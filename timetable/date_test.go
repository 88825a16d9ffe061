package timetable_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omadli/tagayev-uz/timetable"
)

// =============================================================================
// DATE ARITHMETIC TESTS
// =============================================================================

func TestDate_AddMonths_ClampsToShorterMonth(t *testing.T) {
	// GIVEN: January 31
	// WHEN: Adding one month
	// THEN: The day clamps to February's last day

	d := timetable.NewDate(2025, time.January, 31)
	assert.Equal(t, timetable.NewDate(2025, time.February, 28), d.AddMonths(1))

	// Leap year keeps the 29th
	assert.Equal(t, timetable.NewDate(2024, time.February, 29),
		timetable.NewDate(2024, time.January, 31).AddMonths(1))
}

func TestDate_AddMonths_CrossesYearBoundary(t *testing.T) {
	d := timetable.NewDate(2025, time.November, 15)
	assert.Equal(t, timetable.NewDate(2026, time.January, 15), d.AddMonths(2))

	// Negative offsets walk backwards across the boundary
	assert.Equal(t, timetable.NewDate(2024, time.December, 15), d.AddMonths(-11))
}

func TestDate_ISOWeekday_SundayIsSeven(t *testing.T) {
	// 2025-01-05 is a Sunday
	assert.Equal(t, 7, timetable.NewDate(2025, time.January, 5).ISOWeekday())
	// 2025-01-06 is a Monday
	assert.Equal(t, 1, timetable.NewDate(2025, time.January, 6).ISOWeekday())
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 31, timetable.DaysInMonth(2025, time.January))
	assert.Equal(t, 28, timetable.DaysInMonth(2025, time.February))
	assert.Equal(t, 29, timetable.DaysInMonth(2024, time.February))
	assert.Equal(t, 30, timetable.DaysInMonth(2025, time.April))
}

func TestParseDate_RejectsGarbage(t *testing.T) {
	_, err := timetable.ParseDate("2025-13-01")
	assert.Error(t, err)

	d, err := timetable.ParseDate("2025-02-28")
	require.NoError(t, err)
	assert.Equal(t, timetable.NewDate(2025, time.February, 28), d)
}

func TestDate_JSONRoundTrip(t *testing.T) {
	d := timetable.NewDate(2025, time.March, 9)

	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2025-03-09"`, string(raw))

	var back timetable.Date
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, d, back)
}

// =============================================================================
// DATE RANGE TESTS
// =============================================================================

func TestDateRange_Overlaps(t *testing.T) {
	jan := timetable.DateRange{
		Start: timetable.NewDate(2025, time.January, 1),
		End:   timetable.NewDate(2025, time.January, 31),
	}
	feb := timetable.DateRange{
		Start: timetable.NewDate(2025, time.February, 1),
		End:   timetable.NewDate(2025, time.February, 28),
	}
	midJanToMidFeb := timetable.DateRange{
		Start: timetable.NewDate(2025, time.January, 15),
		End:   timetable.NewDate(2025, time.February, 15),
	}

	assert.False(t, jan.Overlaps(feb))
	assert.True(t, jan.Overlaps(midJanToMidFeb))
	assert.True(t, feb.Overlaps(midJanToMidFeb))

	// Single shared day counts as overlap
	oneDay := timetable.DateRange{
		Start: timetable.NewDate(2025, time.January, 31),
		End:   timetable.NewDate(2025, time.January, 31),
	}
	assert.True(t, jan.Overlaps(oneDay))
}

func TestDateRange_Intersect(t *testing.T) {
	a := timetable.DateRange{
		Start: timetable.NewDate(2025, time.January, 10),
		End:   timetable.NewDate(2025, time.January, 20),
	}
	b := timetable.DateRange{
		Start: timetable.NewDate(2025, time.January, 15),
		End:   timetable.NewDate(2025, time.January, 25),
	}

	got := a.Intersect(b)
	assert.Equal(t, timetable.NewDate(2025, time.January, 15), got.Start)
	assert.Equal(t, timetable.NewDate(2025, time.January, 20), got.End)

	disjoint := timetable.DateRange{
		Start: timetable.NewDate(2025, time.March, 1),
		End:   timetable.NewDate(2025, time.March, 10),
	}
	assert.True(t, a.Intersect(disjoint).IsEmpty())
}

// =============================================================================
// TIME OF DAY TESTS
// =============================================================================

func TestParseTimeOfDay(t *testing.T) {
	tod, err := timetable.ParseTimeOfDay("14:30")
	require.NoError(t, err)
	assert.Equal(t, 14, tod.Hour())
	assert.Equal(t, 30, tod.Minute())
	assert.Equal(t, "14:30", tod.String())

	_, err = timetable.ParseTimeOfDay("25:00")
	assert.Error(t, err)
	_, err = timetable.ParseTimeOfDay("9am")
	assert.Error(t, err)
}

func TestTimeWindowsOverlap_BackToBackDoesNot(t *testing.T) {
	nine := timetable.NewTimeOfDay(9, 0)
	ten := timetable.NewTimeOfDay(10, 0)
	eleven := timetable.NewTimeOfDay(11, 0)
	halfTen := timetable.NewTimeOfDay(10, 30)

	// [9,10) then [10,11) share no minute
	assert.False(t, timetable.TimeWindowsOverlap(nine, ten, ten, eleven))
	// [9,10:30) and [10,11) share half an hour
	assert.True(t, timetable.TimeWindowsOverlap(nine, halfTen, ten, eleven))
}

// =============================================================================
// WEEKDAY SET TESTS
// =============================================================================

func TestParseWeekdays(t *testing.T) {
	set, err := timetable.ParseWeekdays("135")
	require.NoError(t, err)
	assert.True(t, set.Contains(1))
	assert.False(t, set.Contains(2))
	assert.True(t, set.Contains(5))
	assert.Equal(t, []int{1, 3, 5}, set.Days())
	assert.Equal(t, "135", set.String())

	_, err = timetable.ParseWeekdays("")
	assert.ErrorIs(t, err, timetable.ErrEmptyWeekdays)
	_, err = timetable.ParseWeekdays("108")
	assert.ErrorIs(t, err, timetable.ErrInvalidWeekdays)
	_, err = timetable.ParseWeekdays("113")
	assert.ErrorIs(t, err, timetable.ErrInvalidWeekdays)
}

func TestWeekdaySet_Intersects(t *testing.T) {
	mwf, err := timetable.ParseWeekdays("135")
	require.NoError(t, err)
	tts, err := timetable.ParseWeekdays("246")
	require.NoError(t, err)
	weekend, err := timetable.ParseWeekdays("67")
	require.NoError(t, err)

	assert.False(t, mwf.Intersects(tts))
	assert.True(t, tts.Intersects(weekend))
}
