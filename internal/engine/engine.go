// Package engine implements the recurrence-and-occurrence engine: it turns
// goal step definitions into concrete itinerary items, resolves which items
// are due on a given day, and tracks completion streaks and progress
// counters. The engine never samples the clock for due-ness decisions;
// reference dates are always supplied by the caller.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperengineering/cadence/internal/metrics"
	"github.com/hyperengineering/cadence/internal/recur"
	"github.com/hyperengineering/cadence/internal/store"
	"github.com/hyperengineering/cadence/internal/types"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/singleflight"
)

// GoalSource supplies the current set of goals for full regeneration.
// Injected at construction; the engine never reaches into the goal
// aggregate on its own.
type GoalSource interface {
	Goals(ctx context.Context) ([]types.Goal, error)
}

// Engine owns the itinerary item, streak, and progress state.
type Engine struct {
	store   store.Store
	goals   GoalSource
	metrics *metrics.Metrics

	regen singleflight.Group
}

// New creates an engine over the given store. goals may be nil when full
// regeneration is not needed (completion-only deployments); metrics may be
// nil to disable instrumentation.
func New(s store.Store, goals GoalSource, m *metrics.Metrics) *Engine {
	return &Engine{store: s, goals: goals, metrics: m}
}

// Streak returns the streak for an item, or a zero-valued default when no
// record exists, so callers never need presence checks before display.
func (e *Engine) Streak(ctx context.Context, itemID string) (types.StreakData, error) {
	streak, err := e.store.GetStreak(ctx, itemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.StreakData{}, nil
		}
		return types.StreakData{}, err
	}
	return *streak, nil
}

// Progress returns the progress for an item, or a zero-valued default when
// no record exists.
func (e *Engine) Progress(ctx context.Context, itemID string) (types.ItemProgress, error) {
	progress, err := e.store.GetProgress(ctx, itemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.ItemProgress{}, nil
		}
		return types.ItemProgress{}, err
	}
	return *progress, nil
}

// Item returns a single item by id.
func (e *Engine) Item(ctx context.Context, id string) (*types.ItineraryItem, error) {
	return e.store.GetItem(ctx, id)
}

// ItemsByGoal returns the items derived from one goal.
func (e *Engine) ItemsByGoal(ctx context.Context, goalID string) ([]types.ItineraryItem, error) {
	return e.store.ListItemsByGoal(ctx, goalID)
}

// AddItem stores a manually created item. Items without an id get a ULID;
// goal-derived items keep their deterministic key. Habit items are seeded
// with default tracking records so completion events have state to mutate.
func (e *Engine) AddItem(ctx context.Context, item types.ItineraryItem, now time.Time) (*types.ItineraryItem, error) {
	if item.ID == "" {
		item.ID = ulid.Make().String()
	} else {
		if _, err := e.store.GetItem(ctx, item.ID); err == nil {
			return nil, store.ErrDuplicateItem
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("check item: %w", err)
		}
	}
	if item.Kind == "" {
		item.Kind = types.KindOneTimeTask
	}
	if item.Status == "" {
		item.Status = types.StatusPending
	}
	item.CreatedAt = now
	item.UpdatedAt = now

	if err := e.store.PutItem(ctx, item); err != nil {
		return nil, fmt.Errorf("put item: %w", err)
	}

	if item.Kind == types.KindHabit {
		target := recur.DefaultTarget(ruleTimescale(item.Rule))
		if err := e.store.PutProgress(ctx, item.ID, types.ItemProgress{Total: target, LastUpdatedAt: now}); err != nil {
			return nil, fmt.Errorf("seed progress: %w", err)
		}
		if err := e.store.PutStreak(ctx, item.ID, types.StreakData{}); err != nil {
			return nil, fmt.Errorf("seed streak: %w", err)
		}
	}

	return &item, nil
}

// UpdateItem replaces the mutable fields of an existing item.
func (e *Engine) UpdateItem(ctx context.Context, id string, update types.ItineraryItem, now time.Time) (*types.ItineraryItem, error) {
	existing, err := e.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}

	existing.Notes = update.Notes
	if update.Kind != "" {
		existing.Kind = update.Kind
	}
	if update.Status != "" {
		existing.Status = update.Status
	}
	if update.Rule.Kind != "" {
		existing.Rule = update.Rule
	}
	existing.UpdatedAt = now

	if err := e.store.PutItem(ctx, *existing); err != nil {
		return nil, fmt.Errorf("put item: %w", err)
	}
	return existing, nil
}

// UpdateSchedule replaces an item's due rule with an explicit weekday
// schedule, migrating legacy items onto the structured path.
func (e *Engine) UpdateSchedule(ctx context.Context, id string, schedule types.Schedule, now time.Time) (*types.ItineraryItem, error) {
	existing, err := e.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}

	existing.Rule = types.ScheduledRule(schedule)
	existing.UpdatedAt = now

	if err := e.store.PutItem(ctx, *existing); err != nil {
		return nil, fmt.Errorf("put item: %w", err)
	}
	return existing, nil
}

// RemoveItem deletes an item along with its tracking records.
func (e *Engine) RemoveItem(ctx context.Context, id string) error {
	return e.store.DeleteItem(ctx, id)
}

// ClearAll deletes every item and tracking record. When regenerate is true
// it immediately rebuilds from the goal source.
func (e *Engine) ClearAll(ctx context.Context, regenerate bool) (*types.RegenerateResult, error) {
	if regenerate {
		return e.RegenerateAll(ctx)
	}
	if err := e.store.DeleteAllItems(ctx); err != nil {
		return nil, fmt.Errorf("clear items: %w", err)
	}
	return &types.RegenerateResult{}, nil
}

// ruleTimescale extracts the cadence of a due rule, if it has one.
func ruleTimescale(rule types.DueRule) types.Timescale {
	switch rule.Kind {
	case types.RuleScheduled:
		if rule.Schedule != nil {
			return rule.Schedule.Repeat
		}
	case types.RuleTimescale:
		return rule.Timescale
	}
	return ""
}
