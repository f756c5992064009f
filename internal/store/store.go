package store

import (
	"context"
	"io"

	"github.com/hyperengineering/cadence/internal/types"
)

// Store defines the interface contract for itinerary state persistence.
// Tracking records (streaks, progress) are keyed by item id and cascade
// on item deletion.
type Store interface {
	PutItem(ctx context.Context, item types.ItineraryItem) error
	GetItem(ctx context.Context, id string) (*types.ItineraryItem, error)
	ListItems(ctx context.Context) ([]types.ItineraryItem, error)
	ListItemsByGoal(ctx context.Context, goalID string) ([]types.ItineraryItem, error)
	DeleteItem(ctx context.Context, id string) error
	DeleteItemsByGoal(ctx context.Context, goalID string) (int64, error)
	DeleteAllItems(ctx context.Context) error

	GetStreak(ctx context.Context, itemID string) (*types.StreakData, error)
	PutStreak(ctx context.Context, itemID string, streak types.StreakData) error
	ListStreaks(ctx context.Context) (map[string]types.StreakData, error)

	GetProgress(ctx context.Context, itemID string) (*types.ItemProgress, error)
	PutProgress(ctx context.Context, itemID string, progress types.ItemProgress) error
	ListProgress(ctx context.Context) (map[string]types.ItemProgress, error)

	GetStats(ctx context.Context) (*types.StoreStats, error)
	GenerateSnapshot(ctx context.Context) error
	GetSnapshot(ctx context.Context) (io.ReadCloser, error)
	GetSnapshotPath(ctx context.Context) (string, error)
	Close() error
}
