package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperengineering/cadence/internal/types"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the SQLite-backed itinerary state database.
type SQLiteStore struct {
	db           *sql.DB
	snapshotPath string
}

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	snapshotPath := "cadence-snapshot.json"
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		snapshotPath = filepath.Join(dir, "snapshot.json")
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable pragmas for performance and safety
	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	// Run goose migrations
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, snapshotPath: snapshotPath}, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// PutItem inserts or replaces an itinerary item.
func (s *SQLiteStore) PutItem(ctx context.Context, item types.ItineraryItem) error {
	ruleJSON, err := json.Marshal(item.Rule)
	if err != nil {
		return fmt.Errorf("marshal due rule: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO items (id, kind, reference_id, status, notes, due_rule, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			reference_id = excluded.reference_id,
			status = excluded.status,
			notes = excluded.notes,
			due_rule = excluded.due_rule,
			updated_at = excluded.updated_at
	`, item.ID, item.Kind, item.ReferenceID, item.Status, item.Notes,
		string(ruleJSON),
		item.CreatedAt.UTC().Format(time.RFC3339),
		item.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert item: %w", err)
	}

	return nil
}

// GetItem retrieves an itinerary item by id.
func (s *SQLiteStore) GetItem(ctx context.Context, id string) (*types.ItineraryItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, reference_id, status, notes, due_rule, created_at, updated_at
		FROM items
		WHERE id = ?
	`, id)

	item, err := scanItem(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan row: %w", err)
	}

	return item, nil
}

// ListItems returns all itinerary items ordered by creation time.
func (s *SQLiteStore) ListItems(ctx context.Context) ([]types.ItineraryItem, error) {
	return s.queryItems(ctx, `
		SELECT id, kind, reference_id, status, notes, due_rule, created_at, updated_at
		FROM items
		ORDER BY created_at ASC, id ASC
	`)
}

// ListItemsByGoal returns the items owned by a goal.
func (s *SQLiteStore) ListItemsByGoal(ctx context.Context, goalID string) ([]types.ItineraryItem, error) {
	return s.queryItems(ctx, `
		SELECT id, kind, reference_id, status, notes, due_rule, created_at, updated_at
		FROM items
		WHERE reference_id = ?
		ORDER BY created_at ASC, id ASC
	`, goalID)
}

func (s *SQLiteStore) queryItems(ctx context.Context, query string, args ...any) ([]types.ItineraryItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []types.ItineraryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return items, nil
}

// scanItem scans a row into an ItineraryItem, parsing the due-rule JSON.
// A corrupt due_rule degrades to an empty rule (never due) instead of failing
// the whole query.
func scanItem(scanner interface{ Scan(...any) error }) (*types.ItineraryItem, error) {
	var item types.ItineraryItem
	var ruleJSON string
	var createdAt, updatedAt string

	err := scanner.Scan(
		&item.ID,
		&item.Kind,
		&item.ReferenceID,
		&item.Status,
		&item.Notes,
		&ruleJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(ruleJSON), &item.Rule); err != nil {
		item.Rule = types.DueRule{}
	}

	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		item.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		item.UpdatedAt = t
	}

	return &item, nil
}

// DeleteItem removes an item. Streak and progress rows cascade.
func (s *SQLiteStore) DeleteItem(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteItemsByGoal removes all items owned by a goal and returns the count.
func (s *SQLiteStore) DeleteItemsByGoal(ctx context.Context, goalID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE reference_id = ?`, goalID)
	if err != nil {
		return 0, fmt.Errorf("delete items by goal: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	return affected, nil
}

// DeleteAllItems clears the item set (tracking rows cascade).
func (s *SQLiteStore) DeleteAllItems(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return fmt.Errorf("delete all items: %w", err)
	}
	return nil
}

// GetStreak retrieves the streak record for an item.
// Returns ErrNotFound when no record exists; callers decide the default.
func (s *SQLiteStore) GetStreak(ctx context.Context, itemID string) (*types.StreakData, error) {
	var streak types.StreakData
	var lastCompletedAt sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT count, last_completed_at FROM streaks WHERE item_id = ?
	`, itemID).Scan(&streak.Count, &lastCompletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query streak: %w", err)
	}

	if lastCompletedAt.Valid {
		if t, err := time.Parse(time.RFC3339, lastCompletedAt.String); err == nil {
			streak.LastCompletedAt = &t
		}
	}

	return &streak, nil
}

// PutStreak inserts or replaces the streak record for an item.
func (s *SQLiteStore) PutStreak(ctx context.Context, itemID string, streak types.StreakData) error {
	var lastCompletedAt any
	if streak.LastCompletedAt != nil {
		lastCompletedAt = streak.LastCompletedAt.UTC().Format(time.RFC3339)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO streaks (item_id, count, last_completed_at)
		VALUES (?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			count = excluded.count,
			last_completed_at = excluded.last_completed_at
	`, itemID, streak.Count, lastCompletedAt)
	if err != nil {
		return fmt.Errorf("upsert streak: %w", err)
	}

	return nil
}

// ListStreaks returns all streak records keyed by item id.
func (s *SQLiteStore) ListStreaks(ctx context.Context) (map[string]types.StreakData, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT item_id, count, last_completed_at FROM streaks`)
	if err != nil {
		return nil, fmt.Errorf("query streaks: %w", err)
	}
	defer rows.Close()

	streaks := make(map[string]types.StreakData)
	for rows.Next() {
		var itemID string
		var streak types.StreakData
		var lastCompletedAt sql.NullString
		if err := rows.Scan(&itemID, &streak.Count, &lastCompletedAt); err != nil {
			return nil, fmt.Errorf("scan streak: %w", err)
		}
		if lastCompletedAt.Valid {
			if t, err := time.Parse(time.RFC3339, lastCompletedAt.String); err == nil {
				streak.LastCompletedAt = &t
			}
		}
		streaks[itemID] = streak
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return streaks, nil
}

// GetProgress retrieves the progress record for an item.
// Returns ErrNotFound when no record exists; callers decide the default.
func (s *SQLiteStore) GetProgress(ctx context.Context, itemID string) (*types.ItemProgress, error) {
	var progress types.ItemProgress
	var lastUpdatedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT completed, total, last_updated_at FROM progress WHERE item_id = ?
	`, itemID).Scan(&progress.Completed, &progress.Total, &lastUpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query progress: %w", err)
	}

	if t, err := time.Parse(time.RFC3339, lastUpdatedAt); err == nil {
		progress.LastUpdatedAt = t
	}

	return &progress, nil
}

// PutProgress inserts or replaces the progress record for an item.
func (s *SQLiteStore) PutProgress(ctx context.Context, itemID string, progress types.ItemProgress) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO progress (item_id, completed, total, last_updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			completed = excluded.completed,
			total = excluded.total,
			last_updated_at = excluded.last_updated_at
	`, itemID, progress.Completed, progress.Total,
		progress.LastUpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}

	return nil
}

// ListProgress returns all progress records keyed by item id.
func (s *SQLiteStore) ListProgress(ctx context.Context) (map[string]types.ItemProgress, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT item_id, completed, total, last_updated_at FROM progress`)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	records := make(map[string]types.ItemProgress)
	for rows.Next() {
		var itemID string
		var progress types.ItemProgress
		var lastUpdatedAt string
		if err := rows.Scan(&itemID, &progress.Completed, &progress.Total, &lastUpdatedAt); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, lastUpdatedAt); err == nil {
			progress.LastUpdatedAt = t
		}
		records[itemID] = progress
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return records, nil
}

// GetStats returns aggregate store statistics.
func (s *SQLiteStore) GetStats(ctx context.Context) (*types.StoreStats, error) {
	stats := &types.StoreStats{}

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&stats.ItemCount)
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE kind = ?`, types.KindHabit).Scan(&stats.HabitCount)
	if err != nil {
		return nil, fmt.Errorf("count habits: %w", err)
	}

	var generatedAt sql.NullString
	err = s.db.QueryRowContext(ctx, `SELECT generated_at FROM snapshot_meta WHERE id = 1`).Scan(&generatedAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("query snapshot meta: %w", err)
	}
	if generatedAt.Valid {
		if t, err := time.Parse(time.RFC3339, generatedAt.String); err == nil {
			stats.LastSnapshot = &t
		}
	}

	return stats, nil
}
