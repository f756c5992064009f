package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/cadence/internal/recur"
	"github.com/hyperengineering/cadence/internal/store"
	"github.com/hyperengineering/cadence/internal/types"
)

// trackingSnapshot holds the state carried forward across a regeneration of
// one goal's items, keyed by item id.
type trackingSnapshot struct {
	streaks  map[string]types.StreakData
	progress map[string]types.ItemProgress
	items    map[string]types.ItineraryItem
}

// GenerateFromGoal materializes the canonical item set for a goal's tracked
// steps, replacing any prior set for the same goal while preserving streak
// and progress state for items whose id is unchanged.
//
// Identity is (goal id, literal step text): a step whose text changes gets a
// new id and starts tracking from scratch. That discontinuity is a known
// property of the identity scheme, not a bug.
func (e *Engine) GenerateFromGoal(ctx context.Context, goal types.Goal, now time.Time) (*types.GenerateResult, error) {
	return e.generate(ctx, goal.ID, goal.TrackedSteps(), now)
}

// UpdateFromCriteria regenerates a goal's items from an externally edited
// step list. Same contract as GenerateFromGoal.
func (e *Engine) UpdateFromCriteria(ctx context.Context, goalID string, steps []types.SourceStep, now time.Time) (*types.GenerateResult, error) {
	var tracked []types.SourceStep
	for _, s := range steps {
		if s.StepType == types.StepHabit && s.IsTracked {
			tracked = append(tracked, s)
		}
	}
	return e.generate(ctx, goalID, tracked, now)
}

func (e *Engine) generate(ctx context.Context, goalID string, steps []types.SourceStep, now time.Time) (*types.GenerateResult, error) {
	snap, err := e.snapshotGoalState(ctx, goalID)
	if err != nil {
		return nil, err
	}

	if _, err := e.store.DeleteItemsByGoal(ctx, goalID); err != nil {
		return nil, fmt.Errorf("remove prior items: %w", err)
	}

	result := &types.GenerateResult{GoalID: goalID, Skipped: []string{}}

	for _, step := range steps {
		id := types.ItemKey{GoalID: goalID, StepText: step.Text}.String()

		// After deleting this goal's items, any survivor with the same id
		// belongs to another goal: a cross-goal id collision. Skip rather
		// than overwrite, but leave a trace.
		if other, err := e.store.GetItem(ctx, id); err == nil {
			slog.Warn("skipping duplicate item id",
				"component", "engine",
				"action", "generate_skip_duplicate",
				"item_id", id,
				"goal_id", goalID,
				"owner_goal_id", other.ReferenceID,
			)
			e.metrics.RecordDuplicateSkip()
			result.Skipped = append(result.Skipped, id)
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("check item %s: %w", id, err)
		}

		item := types.ItineraryItem{
			ID:          id,
			Kind:        types.KindHabit,
			ReferenceID: goalID,
			Status:      types.StatusPending,
			Notes:       step.Text,
			Rule:        stepRule(step),
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		// A surviving id keeps its original creation date (the legacy
		// cadence anchor) and completion status.
		prior, existed := snap.items[id]
		if existed {
			item.CreatedAt = prior.CreatedAt
			item.Status = prior.Status
		}

		if err := e.store.PutItem(ctx, item); err != nil {
			return nil, fmt.Errorf("put item %s: %w", id, err)
		}

		if streak, ok := snap.streaks[id]; ok {
			if err := e.store.PutStreak(ctx, id, streak); err != nil {
				return nil, fmt.Errorf("restore streak %s: %w", id, err)
			}
		} else {
			if err := e.store.PutStreak(ctx, id, types.StreakData{}); err != nil {
				return nil, fmt.Errorf("seed streak %s: %w", id, err)
			}
		}

		if progress, ok := snap.progress[id]; ok {
			if err := e.store.PutProgress(ctx, id, progress); err != nil {
				return nil, fmt.Errorf("restore progress %s: %w", id, err)
			}
			result.Preserved++
		} else {
			target := recur.Target(step.Text, step.Frequency, step.Timescale)
			seed := types.ItemProgress{Completed: 0, Total: target, LastUpdatedAt: now}
			if err := e.store.PutProgress(ctx, id, seed); err != nil {
				return nil, fmt.Errorf("seed progress %s: %w", id, err)
			}
			result.Created++
		}
	}

	e.metrics.RecordItemsGenerated(result.Created)

	slog.Info("goal items generated",
		"component", "engine",
		"action", "generate_complete",
		"goal_id", goalID,
		"created", result.Created,
		"preserved", result.Preserved,
		"skipped", len(result.Skipped),
	)

	return result, nil
}

// snapshotGoalState captures the goal's current items and tracking records
// before they are replaced.
func (e *Engine) snapshotGoalState(ctx context.Context, goalID string) (*trackingSnapshot, error) {
	prior, err := e.store.ListItemsByGoal(ctx, goalID)
	if err != nil {
		return nil, fmt.Errorf("list prior items: %w", err)
	}

	snap := &trackingSnapshot{
		streaks:  make(map[string]types.StreakData),
		progress: make(map[string]types.ItemProgress),
		items:    make(map[string]types.ItineraryItem),
	}

	for _, item := range prior {
		snap.items[item.ID] = item
		if streak, err := e.store.GetStreak(ctx, item.ID); err == nil {
			snap.streaks[item.ID] = *streak
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("snapshot streak %s: %w", item.ID, err)
		}
		if progress, err := e.store.GetProgress(ctx, item.ID); err == nil {
			snap.progress[item.ID] = *progress
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("snapshot progress %s: %w", item.ID, err)
		}
	}

	return snap, nil
}

// stepRule derives the due rule for a tracked step. Steps with explicit
// weekday selections get a structured schedule; everything else falls back
// to the legacy bare-timescale path. An invalid timescale yields a rule
// that never matches, so the item degrades to never-due instead of failing
// generation.
func stepRule(step types.SourceStep) types.DueRule {
	if len(step.SelectedDays) > 0 {
		return types.ScheduledRule(types.Schedule{
			Days:   normalizeDays(step.SelectedDays),
			Time:   firstClock(step.ScheduledTimes),
			Repeat: step.Timescale,
			Until:  step.RepeatEndDate,
		})
	}
	return types.TimescaleRule(step.Timescale)
}

// normalizeDays drops out-of-range weekday indices and duplicates while
// preserving order.
func normalizeDays(days []int) []int {
	seen := make(map[int]bool, len(days))
	var out []int
	for _, d := range days {
		if d < 0 || d > 6 || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

// firstClock returns the first parseable "HH:MM" entry, or empty.
func firstClock(times []string) string {
	for _, t := range times {
		if _, _, ok := recur.ParseClock(t); ok {
			return t
		}
	}
	return ""
}
