package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/cadence/internal/config"
	"github.com/hyperengineering/cadence/internal/engine"
	"github.com/hyperengineering/cadence/internal/goals"
	"github.com/hyperengineering/cadence/internal/store"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show store statistics",
	RunE:  runInfo,
}

var regenerateCmd = &cobra.Command{
	Use:   "regenerate",
	Short: "Rebuild all itinerary items from the goal file",
	RunE:  runRegenerate,
}

// openStore loads configuration and opens the configured database.
func openStore() (*config.Config, *store.SQLiteStore, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.GetStats(context.Background())
	if err != nil {
		return err
	}

	var sizeBytes int64
	if info, statErr := os.Stat(cfg.Database.Path); statErr == nil {
		sizeBytes = info.Size()
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Database:      %s\n", cfg.Database.Path)
	fmt.Fprintf(out, "Items:         %d\n", stats.ItemCount)
	fmt.Fprintf(out, "Habits:        %d\n", stats.HabitCount)
	if stats.LastSnapshot != nil {
		fmt.Fprintf(out, "Last Snapshot: %s\n", stats.LastSnapshot.Format("2006-01-02 15:04:05 MST"))
	} else {
		fmt.Fprintf(out, "Last Snapshot: never\n")
	}
	fmt.Fprintf(out, "Size:          %d bytes\n", sizeBytes)

	return nil
}

func runRegenerate(cmd *cobra.Command, args []string) error {
	cfg, db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	source := goals.NewFileSource(cfg.Goals.Path)
	eng := engine.New(db, source, nil)

	result, err := eng.RegenerateAll(context.Background())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Regenerated %d items from %d goals\n", result.Items, result.Goals)
	return nil
}
