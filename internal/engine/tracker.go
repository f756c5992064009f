package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/cadence/internal/recur"
	"github.com/hyperengineering/cadence/internal/types"
)

// CompleteItem records a completion event (or reverses one) for an item and
// returns the item's updated tracking state.
//
// Completing increments the streak and stamps lastCompletedAt; un-completing
// decrements the streak but leaves lastCompletedAt untouched, so the
// streak-break history survives an accidental toggle. Progress moves in both
// directions and its lastUpdatedAt always advances to now.
//
// No period rollover happens here: resetting the progress counter at a
// period boundary belongs to the regeneration pass, not to completion
// events.
func (e *Engine) CompleteItem(ctx context.Context, id string, completed bool, now time.Time) (*types.HabitStatus, error) {
	item, err := e.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}

	if completed {
		item.Status = types.StatusCompleted
	} else {
		item.Status = types.StatusPending
	}
	item.UpdatedAt = now
	if err := e.store.PutItem(ctx, *item); err != nil {
		return nil, fmt.Errorf("put item: %w", err)
	}

	streak, err := e.Streak(ctx, id)
	if err != nil {
		return nil, err
	}
	if completed {
		streak.Count++
		ts := now
		streak.LastCompletedAt = &ts
	} else if streak.Count > 0 {
		streak.Count--
	}
	if err := e.store.PutStreak(ctx, id, streak); err != nil {
		return nil, fmt.Errorf("put streak: %w", err)
	}

	progress, err := e.Progress(ctx, id)
	if err != nil {
		return nil, err
	}
	if progress.Total == 0 {
		// Lazily created record for an item that never had one.
		progress.Total = recur.DefaultTarget(ruleTimescale(item.Rule))
	}
	if completed {
		progress.Completed++
	} else if progress.Completed > 0 {
		progress.Completed--
	}
	progress.LastUpdatedAt = now
	if err := e.store.PutProgress(ctx, id, progress); err != nil {
		return nil, fmt.Errorf("put progress: %w", err)
	}

	e.metrics.RecordCompletion(completed)

	slog.Debug("completion recorded",
		"component", "engine",
		"action", "complete_item",
		"item_id", id,
		"completed", completed,
		"streak", streak.Count,
		"progress", fmt.Sprintf("%d/%d", progress.Completed, progress.Total),
	)

	return &types.HabitStatus{
		ItineraryItem: *item,
		Streak:        streak,
		Progress:      progress,
	}, nil
}
