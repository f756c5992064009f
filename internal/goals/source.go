// Package goals supplies the engine with the current goal definitions.
//
// The file source reads a YAML document maintained by the household's goal
// collaborator. The engine treats it as read-only input: it derives items
// from tracked habit steps but never writes the file.
package goals

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hyperengineering/cadence/internal/types"
)

// FileSource loads goals from a YAML file on every call, so edits to the
// file are picked up by the next regeneration without a restart.
type FileSource struct {
	path string
}

// NewFileSource returns a source reading from the given path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

type goalDocument struct {
	Goals []goalEntry `yaml:"goals"`
}

type goalEntry struct {
	ID    string      `yaml:"id"`
	Title string      `yaml:"title"`
	Steps []stepEntry `yaml:"steps"`
}

type stepEntry struct {
	Text      string   `yaml:"text"`
	Type      string   `yaml:"type"`
	Tracked   bool     `yaml:"tracked"`
	Timescale string   `yaml:"timescale"`
	Frequency int      `yaml:"frequency"`
	Days      []int    `yaml:"days"`
	Times     []string `yaml:"times"`
	Until     string   `yaml:"until"`
}

// Goals reads and parses the goal file. A missing or malformed file is an
// error; regeneration must not silently wipe items because the file was
// temporarily unreadable.
func (s *FileSource) Goals(_ context.Context) ([]types.Goal, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read goal file: %w", err)
	}

	var doc goalDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse goal file %s: %w", s.path, err)
	}

	goals := make([]types.Goal, 0, len(doc.Goals))
	for i, entry := range doc.Goals {
		if entry.ID == "" {
			return nil, fmt.Errorf("goal file %s: goal %d has no id", s.path, i)
		}
		goal := types.Goal{
			ID:    entry.ID,
			Title: entry.Title,
			Steps: make([]types.SourceStep, 0, len(entry.Steps)),
		}
		for _, step := range entry.Steps {
			goal.Steps = append(goal.Steps, step.toSourceStep())
		}
		goals = append(goals, goal)
	}
	return goals, nil
}

func (e stepEntry) toSourceStep() types.SourceStep {
	stepType := types.StepTangible
	if e.Type == "habit" {
		stepType = types.StepHabit
	}
	return types.SourceStep{
		Text:           e.Text,
		StepType:       stepType,
		IsTracked:      e.Tracked,
		Timescale:      types.Timescale(e.Timescale),
		Frequency:      e.Frequency,
		SelectedDays:   e.Days,
		ScheduledTimes: e.Times,
		RepeatEndDate:  e.Until,
	}
}
