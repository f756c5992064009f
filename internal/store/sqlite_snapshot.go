package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hyperengineering/cadence/internal/types"
)

// snapshotDocument is the serialized layout of the full itinerary state.
// It is the restart/survival format: everything the engine owns, nothing
// about the upstream goal store.
type snapshotDocument struct {
	GeneratedAt time.Time                     `json:"generated_at"`
	Items       []types.ItineraryItem         `json:"items"`
	Streaks     map[string]types.StreakData   `json:"streaks"`
	Progress    map[string]types.ItemProgress `json:"progress"`
}

// GenerateSnapshot serializes the current item/streak/progress state to the
// snapshot file. The write is atomic (temp file + rename) so readers never
// observe a partial snapshot.
func (s *SQLiteStore) GenerateSnapshot(ctx context.Context) error {
	items, err := s.ListItems(ctx)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}
	streaks, err := s.ListStreaks(ctx)
	if err != nil {
		return fmt.Errorf("list streaks: %w", err)
	}
	progress, err := s.ListProgress(ctx)
	if err != nil {
		return fmt.Errorf("list progress: %w", err)
	}

	if items == nil {
		items = []types.ItineraryItem{}
	}

	doc := snapshotDocument{
		GeneratedAt: time.Now().UTC(),
		Items:       items,
		Streaks:     streaks,
		Progress:    progress,
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmpPath := s.snapshotPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, s.snapshotPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshot_meta (id, generated_at, item_count, path)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			generated_at = excluded.generated_at,
			item_count = excluded.item_count,
			path = excluded.path
	`, doc.GeneratedAt.Format(time.RFC3339), len(items), s.snapshotPath)
	if err != nil {
		return fmt.Errorf("update snapshot meta: %w", err)
	}

	return nil
}

// GetSnapshot returns a reader over the current snapshot file.
func (s *SQLiteStore) GetSnapshot(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	return f, nil
}

// GetSnapshotPath returns the path of the last generated snapshot file as
// recorded in snapshot_meta, so the answer survives process restarts.
func (s *SQLiteStore) GetSnapshotPath(ctx context.Context) (string, error) {
	var path string
	err := s.db.QueryRowContext(ctx, `SELECT path FROM snapshot_meta WHERE id = 1`).Scan(&path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNoSnapshot
		}
		return "", fmt.Errorf("read snapshot meta: %w", err)
	}
	if path == "" {
		return "", ErrNoSnapshot
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoSnapshot
		}
		return "", fmt.Errorf("stat snapshot: %w", err)
	}
	return path, nil
}
