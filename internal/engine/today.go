package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hyperengineering/cadence/internal/recur"
	"github.com/hyperengineering/cadence/internal/types"
)

// maxUpcomingDays caps range queries so the occurrence expansion stays
// finite for arbitrary caller-supplied ranges.
const maxUpcomingDays = 366

// TodayItems returns the items due on the given date, ordered by scheduled
// time (items without a time sort last). The result is a pure function of
// store state and the supplied date.
//
// Two resolution paths exist on purpose: structured schedules match on
// explicit weekdays, legacy bare-timescale items infer due days from their
// cadence and creation date. Collapsing them would change due-date
// semantics for historical items.
func (e *Engine) TodayItems(ctx context.Context, date time.Time) ([]types.ItineraryItem, error) {
	items, err := e.store.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	progress, err := e.store.ListProgress(ctx)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}

	var due []types.ItineraryItem
	for _, item := range items {
		if e.dueOn(item, progress, date) {
			due = append(due, item)
		}
	}

	sortByScheduleTime(due)
	return due, nil
}

// dueOn resolves a single item against a date.
func (e *Engine) dueOn(item types.ItineraryItem, progress map[string]types.ItemProgress, date time.Time) bool {
	switch item.Rule.Kind {
	case types.RuleScheduled:
		if item.Rule.Schedule == nil || !recur.ScheduleMatches(*item.Rule.Schedule, date) {
			return false
		}
		return !completedToday(item, progress, date)
	case types.RuleTimescale:
		if !recur.CadenceMatches(item.Rule.Timescale, item.CreatedAt, date) {
			return false
		}
		return !completedToday(item, progress, date)
	case types.RuleFixedDate:
		// A malformed date means never due rather than an error.
		dueDate, ok := recur.ParseDate(item.Rule.Date)
		return ok && recur.SameDay(dueDate, date)
	}
	return false
}

// completedToday suppresses recurring items already completed on the query
// date, so a habit ticked off this morning does not resurface this evening.
func completedToday(item types.ItineraryItem, progress map[string]types.ItemProgress, date time.Time) bool {
	if item.Status != types.StatusCompleted {
		return false
	}
	p, ok := progress[item.ID]
	return ok && recur.SameDay(p.LastUpdatedAt, date)
}

// sortByScheduleTime orders items ascending by scheduled time, then id for
// a stable itinerary.
func sortByScheduleTime(items []types.ItineraryItem) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := itemSortKey(items[i]), itemSortKey(items[j])
		if ti != tj {
			return ti < tj
		}
		return items[i].ID < items[j].ID
	})
}

func itemSortKey(item types.ItineraryItem) string {
	if item.Rule.Kind == types.RuleScheduled && item.Rule.Schedule != nil {
		return recur.SortKey(item.Rule.Schedule.Time)
	}
	return recur.TimeSentinel
}

// UpcomingItems expands each item's occurrences within [start, end],
// inclusive, ordered by date then scheduled time. Completion state is
// ignored: this is a forward-looking preview, not a due list.
func (e *Engine) UpcomingItems(ctx context.Context, start, end time.Time) ([]types.Occurrence, error) {
	start, end = recur.DayOf(start), recur.DayOf(end)
	if end.Before(start) {
		return []types.Occurrence{}, nil
	}
	if recur.DaysBetween(start, end) > maxUpcomingDays {
		end = start.AddDate(0, 0, maxUpcomingDays)
	}

	items, err := e.store.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	var occurrences []types.Occurrence
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		for _, item := range items {
			if occursOn(item, day) {
				occurrences = append(occurrences, types.Occurrence{
					ItineraryItem: item,
					Date:          day.Format(recur.DateLayout),
				})
			}
		}
	}

	sort.SliceStable(occurrences, func(i, j int) bool {
		if occurrences[i].Date != occurrences[j].Date {
			return occurrences[i].Date < occurrences[j].Date
		}
		ti, tj := itemSortKey(occurrences[i].ItineraryItem), itemSortKey(occurrences[j].ItineraryItem)
		if ti != tj {
			return ti < tj
		}
		return occurrences[i].ID < occurrences[j].ID
	})

	return occurrences, nil
}

// occursOn is the suppression-free variant of dueOn used for range queries.
func occursOn(item types.ItineraryItem, date time.Time) bool {
	switch item.Rule.Kind {
	case types.RuleScheduled:
		return item.Rule.Schedule != nil && recur.ScheduleMatches(*item.Rule.Schedule, date)
	case types.RuleTimescale:
		return recur.CadenceMatches(item.Rule.Timescale, item.CreatedAt, date)
	case types.RuleFixedDate:
		dueDate, ok := recur.ParseDate(item.Rule.Date)
		return ok && recur.SameDay(dueDate, date)
	}
	return false
}

// ActiveHabits returns all habit items enriched with their streak and
// progress for display. Missing tracking records enrich as zero values.
func (e *Engine) ActiveHabits(ctx context.Context) ([]types.HabitStatus, error) {
	items, err := e.store.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	streaks, err := e.store.ListStreaks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list streaks: %w", err)
	}
	progress, err := e.store.ListProgress(ctx)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}

	habits := []types.HabitStatus{}
	for _, item := range items {
		if item.Kind != types.KindHabit {
			continue
		}
		habits = append(habits, types.HabitStatus{
			ItineraryItem: item,
			Streak:        streaks[item.ID],
			Progress:      progress[item.ID],
		})
	}

	return habits, nil
}
