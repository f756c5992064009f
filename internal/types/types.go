package types

import (
	"encoding/json"
	"time"
)

// Timescale is the cadence unit for recurring items.
type Timescale string

const (
	TimescaleDaily     Timescale = "daily"
	TimescaleWeekly    Timescale = "weekly"
	TimescaleMonthly   Timescale = "monthly"
	TimescaleQuarterly Timescale = "quarterly"
	TimescaleYearly    Timescale = "yearly"
)

// Timescales lists the supported cadence units.
var Timescales = []Timescale{
	TimescaleDaily,
	TimescaleWeekly,
	TimescaleMonthly,
	TimescaleQuarterly,
	TimescaleYearly,
}

// Valid reports whether the timescale is one of the supported values.
func (t Timescale) Valid() bool {
	for _, ts := range Timescales {
		if t == ts {
			return true
		}
	}
	return false
}

// ItemKind classifies an itinerary item.
type ItemKind string

const (
	KindHabit       ItemKind = "habit"
	KindOneTimeTask ItemKind = "one-time-task"
	KindEvent       ItemKind = "event"
)

// ItemStatus is the completion state of an item.
type ItemStatus string

const (
	StatusPending   ItemStatus = "pending"
	StatusCompleted ItemStatus = "completed"
)

// Schedule is an explicit weekday/time recurrence rule.
// Days uses Go weekday indices (0 = Sunday .. 6 = Saturday).
// Time is a 24-hour "HH:MM" string; empty means no preferred time.
// Until, when set, is a "2006-01-02" date after which the schedule stops.
type Schedule struct {
	Days   []int     `json:"days"`
	Time   string    `json:"time,omitempty"`
	Repeat Timescale `json:"repeat,omitempty"`
	Until  string    `json:"until,omitempty"`
}

// RuleKind discriminates the due-determination variants of a DueRule.
type RuleKind string

const (
	// RuleScheduled items are due on explicit weekdays.
	RuleScheduled RuleKind = "scheduled"
	// RuleTimescale items infer due dates from their cadence and creation date.
	RuleTimescale RuleKind = "timescale"
	// RuleFixedDate items are due on exactly one date.
	RuleFixedDate RuleKind = "fixed"
)

// DueRule is the tagged variant describing when an item is due.
// Exactly one payload field is meaningful, selected by Kind.
type DueRule struct {
	Kind      RuleKind  `json:"kind"`
	Schedule  *Schedule `json:"schedule,omitempty"`
	Timescale Timescale `json:"timescale,omitempty"`
	// Date is a "2006-01-02" string for fixed-date items. An unparseable
	// value makes the item never due rather than erroring.
	Date string `json:"date,omitempty"`
}

// ScheduledRule builds a DueRule for an explicit weekday schedule.
func ScheduledRule(s Schedule) DueRule {
	return DueRule{Kind: RuleScheduled, Schedule: &s}
}

// TimescaleRule builds a DueRule for a legacy bare-timescale item.
func TimescaleRule(ts Timescale) DueRule {
	return DueRule{Kind: RuleTimescale, Timescale: ts}
}

// FixedDateRule builds a DueRule for a one-shot item due on the given date.
func FixedDateRule(date string) DueRule {
	return DueRule{Kind: RuleFixedDate, Date: date}
}

// ItemKey is the composite identity of a goal-derived item. Identity is the
// pair (goal id, literal step text): editing step text yields a new identity
// and therefore a fresh progress/streak history. Callers must treat that
// discontinuity as expected behavior, not data loss.
type ItemKey struct {
	GoalID   string
	StepText string
}

// String encodes the key in the stable "<goalID>-<stepText>" form used as
// the item id. The encoding is kept for compatibility with previously
// persisted items.
func (k ItemKey) String() string {
	return k.GoalID + "-" + k.StepText
}

// ItineraryItem is one trackable occurrence-series anchor derived from a
// goal step (or added directly by the UI).
type ItineraryItem struct {
	ID          string     `json:"id"`
	Kind        ItemKind   `json:"kind"`
	ReferenceID string     `json:"reference_id,omitempty"`
	Status      ItemStatus `json:"status"`
	Notes       string     `json:"notes"`
	Rule        DueRule    `json:"rule"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// StreakData counts consecutive completions for one item.
// Count is zero whenever LastCompletedAt is nil.
type StreakData struct {
	Count           int        `json:"count"`
	LastCompletedAt *time.Time `json:"last_completed_at,omitempty"`
}

// ItemProgress tracks completions against a target for the current period.
type ItemProgress struct {
	Completed     int       `json:"completed"`
	Total         int       `json:"total"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// Ratio returns completed/total, guarding against a zero target.
func (p ItemProgress) Ratio() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.Total)
}

// StepType classifies a goal step.
type StepType string

const (
	StepHabit    StepType = "Habit"
	StepTangible StepType = "Tangible"
)

// SourceStep is a goal sub-step as supplied by the goal collaborator.
// The engine reads tracked Habit steps and never mutates the goal.
type SourceStep struct {
	Text           string    `json:"text"`
	StepType       StepType  `json:"step_type"`
	IsTracked      bool      `json:"is_tracked"`
	Timescale      Timescale `json:"timescale,omitempty"`
	Frequency      int       `json:"frequency,omitempty"`
	SelectedDays   []int     `json:"selected_days,omitempty"`
	ScheduledTimes []string  `json:"scheduled_times,omitempty"`
	RepeatEndDate  string    `json:"repeat_end_date,omitempty"`
	NextOccurrence string    `json:"next_occurrence,omitempty"`
}

// Goal is the read-only view of a goal exposed to the engine.
type Goal struct {
	ID    string       `json:"id"`
	Title string       `json:"title,omitempty"`
	Steps []SourceStep `json:"steps"`
}

// TrackedSteps returns the steps the engine materializes items for.
func (g Goal) TrackedSteps() []SourceStep {
	var steps []SourceStep
	for _, s := range g.Steps {
		if s.StepType == StepHabit && s.IsTracked {
			steps = append(steps, s)
		}
	}
	return steps
}

// HabitStatus is a habit item enriched with its tracking state for display.
type HabitStatus struct {
	ItineraryItem
	Streak   StreakData   `json:"streak"`
	Progress ItemProgress `json:"progress"`
}

// Occurrence is a concrete dated occurrence of an item within a range query.
type Occurrence struct {
	ItineraryItem
	Date string `json:"date"` // "2006-01-02"
}

// GenerateResult reports the outcome of materializing one goal's items.
type GenerateResult struct {
	GoalID    string   `json:"goal_id"`
	Created   int      `json:"created"`
	Preserved int      `json:"preserved"`
	Skipped   []string `json:"skipped"` // ids skipped due to cross-goal collision
}

// RegenerateResult reports a full rebuild pass.
type RegenerateResult struct {
	Goals     int  `json:"goals"`
	Items     int  `json:"items"`
	Coalesced bool `json:"coalesced"` // true when this call joined an in-flight pass
}

// CompleteRequest toggles an item's completion for the day.
type CompleteRequest struct {
	Completed bool `json:"completed"`
}

// CriteriaRequest replaces the tracked steps of one goal.
type CriteriaRequest struct {
	Steps []SourceStep `json:"steps"`
}

// SnapshotURLResponse carries a pre-signed snapshot download URL.
type SnapshotURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status       string     `json:"status"`
	Version      string     `json:"version"`
	ItemCount    int64      `json:"item_count"`
	LastSnapshot *time.Time `json:"last_snapshot,omitempty"`
}

// StoreStats holds aggregate store statistics.
type StoreStats struct {
	ItemCount    int64      `json:"item_count"`
	HabitCount   int64      `json:"habit_count"`
	LastSnapshot *time.Time `json:"last_snapshot,omitempty"`
}

// MarshalJSON ensures a nil Days slice marshals as [] not null.
func (s Schedule) MarshalJSON() ([]byte, error) {
	if s.Days == nil {
		s.Days = []int{}
	}
	type Alias Schedule
	return json.Marshal(Alias(s))
}

// MarshalJSON ensures nil slices in GenerateResult marshal as [] not null.
func (r GenerateResult) MarshalJSON() ([]byte, error) {
	if r.Skipped == nil {
		r.Skipped = []string{}
	}
	type Alias GenerateResult
	return json.Marshal(Alias(r))
}
