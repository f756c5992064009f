package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperengineering/cadence/internal/recur"
	"github.com/hyperengineering/cadence/internal/types"
)

// attentionPaceRatio is the progress ratio below which an item counts as
// significantly behind pace.
const attentionPaceRatio = 0.5

// NeedsAttention returns the items that are behind schedule or have a
// broken streak as of the given date: either the streak's last completion
// is more than one day old, or progress is under half the target and has
// not moved in more than a day. Both are heuristics for UI surfacing;
// false positives near period boundaries are acceptable.
func (e *Engine) NeedsAttention(ctx context.Context, asOf time.Time) ([]types.HabitStatus, error) {
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

	flagged := []types.HabitStatus{}
	for _, item := range items {
		streak, hasStreak := streaks[item.ID]
		prog, hasProgress := progress[item.ID]

		brokenStreak := hasStreak && streak.LastCompletedAt != nil &&
			recur.DaysBetween(*streak.LastCompletedAt, asOf) > 1
		behindPace := hasProgress && prog.Ratio() < attentionPaceRatio &&
			recur.DaysBetween(prog.LastUpdatedAt, asOf) > 1

		if brokenStreak || behindPace {
			flagged = append(flagged, types.HabitStatus{
				ItineraryItem: item,
				Streak:        streak,
				Progress:      prog,
			})
		}
	}

	return flagged, nil
}
