package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/cadence/internal/types"
)

// ErrNoGoalSource is returned when regeneration is requested but the engine
// was constructed without a goal provider.
var ErrNoGoalSource = errors.New("no goal source configured")

// RegenerateAll rebuilds the entire item set from the current goals: it
// clears all items and tracking records, then generates each goal in order.
//
// Calls are single-flight: a regeneration requested while one is already in
// progress joins the in-flight pass and reports Coalesced=true instead of
// racing a second rebuild. Completion events issued concurrently still
// follow last-write-wins on the affected item; callers should avoid
// regenerating while completions are in flight.
func (e *Engine) RegenerateAll(ctx context.Context) (*types.RegenerateResult, error) {
	// The singleflight shared flag is true for every participant, including
	// the call that ran the rebuild. Only the executing call's closure runs,
	// so a local flag distinguishes the originator from joiners.
	var originated bool
	v, err, _ := e.regen.Do("regenerate", func() (any, error) {
		originated = true
		return e.regenerateAll(ctx)
	})
	if err != nil {
		if originated {
			e.metrics.RecordRegeneration("error")
		}
		return nil, err
	}

	result := *(v.(*types.RegenerateResult))
	result.Coalesced = !originated
	if originated {
		e.metrics.RecordRegeneration("success")
	} else {
		e.metrics.RecordRegeneration("coalesced")
	}
	return &result, nil
}

func (e *Engine) regenerateAll(ctx context.Context) (*types.RegenerateResult, error) {
	if e.goals == nil {
		return nil, ErrNoGoalSource
	}

	start := time.Now()

	goals, err := e.goals.Goals(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch goals: %w", err)
	}

	if err := e.store.DeleteAllItems(ctx); err != nil {
		return nil, fmt.Errorf("clear items: %w", err)
	}

	now := time.Now().UTC()
	result := &types.RegenerateResult{Goals: len(goals)}
	for _, goal := range goals {
		genResult, err := e.GenerateFromGoal(ctx, goal, now)
		if err != nil {
			return nil, fmt.Errorf("generate goal %s: %w", goal.ID, err)
		}
		result.Items += genResult.Created + genResult.Preserved
	}

	slog.Info("regeneration completed",
		"component", "engine",
		"action", "regenerate_complete",
		"goals", result.Goals,
		"items", result.Items,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}
