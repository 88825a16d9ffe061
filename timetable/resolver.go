/*
resolver.go - Lesson date resolution

PURPOSE:
  Computes which calendar dates a group actually meets. Two layers:

  RegularLessonDays: pure weekday-pattern expansion over the intersection
  of the group's lifetime and the queried range. No holidays, no overrides.

  Resolver.ActualLessonDays: regular days, minus holidays, with overrides
  applied on top. The application order matters and is fixed:

    1. expand the weekday pattern
    2. subtract holidays inside the effective window
    3. apply overrides in (created_at, id) order:
         cancellation  -> remove original_date (no-op if absent)
         reschedule    -> remove original_date, add new_date if in range
         extra         -> add new_date if in range

  A holiday can only remove a regularly-scheduled date; an override
  applied later can still add a lesson on a holiday (an extra lesson on
  New Year's Day is allowed - the center decided to meet).

SEE ALSO:
  - conflict.go: room/time double-booking detection
*/
package timetable

import (
	"context"
	"sort"
)

// =============================================================================
// REGULAR LESSON DAYS - Pure pattern expansion
// =============================================================================

// RegularLessonDays returns every date in the intersection of the group's
// lifetime and [from, to] whose ISO weekday is in the group's pattern,
// sorted ascending. An empty effective window yields an empty slice.
func RegularLessonDays(g Group, from, to Date) []Date {
	effective := g.Lifetime().Intersect(DateRange{Start: from, End: to})
	if effective.IsEmpty() {
		return nil
	}

	var days []Date
	for d := effective.Start; d.BeforeOrEqual(effective.End); d = d.AddDays(1) {
		if g.Weekdays.Contains(d.ISOWeekday()) {
			days = append(days, d)
		}
	}
	return days
}

// =============================================================================
// RESOLVER - Holidays and overrides on top of the pattern
// =============================================================================

// Resolver combines the weekday pattern with its two collaborator
// datasets. Read-only; safe for concurrent use.
type Resolver struct {
	Holidays  HolidayCalendar
	Overrides OverrideSource
}

func NewResolver(holidays HolidayCalendar, overrides OverrideSource) *Resolver {
	return &Resolver{Holidays: holidays, Overrides: overrides}
}

// ActualLessonDays returns the group's authoritative lesson dates within
// [from, to], sorted ascending.
func (r *Resolver) ActualLessonDays(ctx context.Context, g Group, from, to Date) ([]Date, error) {
	effective := g.Lifetime().Intersect(DateRange{Start: from, End: to})

	dates := make(map[Date]struct{})
	for _, d := range RegularLessonDays(g, from, to) {
		dates[d] = struct{}{}
	}

	// Holidays subtract regularly-scheduled dates inside the effective
	// window. They cannot affect dates outside the range.
	if !effective.IsEmpty() {
		holidays, err := r.Holidays.HolidaysInRange(ctx, effective.Start, effective.End)
		if err != nil {
			return nil, err
		}
		for _, h := range holidays {
			delete(dates, h.Date)
		}
	}

	// Overrides whose original_date could touch a candidate, or whose
	// new_date lands in the queried range. Removal of an absent date is a
	// no-op, so fetching on the effective window instead of the exact
	// candidate set does not change the result.
	queried := DateRange{Start: from, End: to}
	overrides, err := r.Overrides.OverridesAffecting(ctx, g.ID, effective, queried)
	if err != nil {
		return nil, err
	}

	for _, o := range overrides {
		switch o.Kind {
		case OverrideCancellation:
			delete(dates, o.OriginalDate)
		case OverrideReschedule:
			delete(dates, o.OriginalDate)
			if queried.Contains(o.NewDate) {
				dates[o.NewDate] = struct{}{}
			}
		case OverrideExtra:
			if queried.Contains(o.NewDate) {
				dates[o.NewDate] = struct{}{}
			}
		}
	}

	out := make([]Date, 0, len(dates))
	for d := range dates {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

// ScheduleDetails returns the holidays that fall on the group's regular
// schedule plus every override touching the range. Feeds the calendar UI.
type ScheduleDetails struct {
	Holidays  []Holiday
	Overrides []Override
}

func (r *Resolver) ScheduleDetails(ctx context.Context, g Group, from, to Date) (ScheduleDetails, error) {
	regular := make(map[Date]struct{})
	for _, d := range RegularLessonDays(g, from, to) {
		regular[d] = struct{}{}
	}

	queried := DateRange{Start: from, End: to}
	var details ScheduleDetails

	holidays, err := r.Holidays.HolidaysInRange(ctx, from, to)
	if err != nil {
		return ScheduleDetails{}, err
	}
	for _, h := range holidays {
		if _, ok := regular[h.Date]; ok {
			details.Holidays = append(details.Holidays, h)
		}
	}

	details.Overrides, err = r.Overrides.OverridesAffecting(ctx, g.ID, queried, queried)
	if err != nil {
		return ScheduleDetails{}, err
	}
	return details, nil
}
