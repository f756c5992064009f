package itinerary

import "time"

// Schedule is an explicit weekday/time recurrence rule.
// Days uses Go weekday indices (0 = Sunday .. 6 = Saturday).
type Schedule struct {
	Days   []int  `json:"days"`
	Time   string `json:"time,omitempty"`
	Repeat string `json:"repeat,omitempty"`
	Until  string `json:"until,omitempty"`
}

// Rule describes when an item is due. Exactly one payload field is
// meaningful, selected by Kind ("scheduled", "timescale" or "fixed").
type Rule struct {
	Kind      string    `json:"kind"`
	Schedule  *Schedule `json:"schedule,omitempty"`
	Timescale string    `json:"timescale,omitempty"`
	Date      string    `json:"date,omitempty"`
}

// Item is one trackable itinerary entry.
type Item struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	ReferenceID string    `json:"reference_id,omitempty"`
	Status      string    `json:"status"`
	Notes       string    `json:"notes"`
	Rule        Rule      `json:"rule"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Streak counts consecutive completions for one item.
type Streak struct {
	Count           int        `json:"count"`
	LastCompletedAt *time.Time `json:"last_completed_at,omitempty"`
}

// Progress tracks completions against a period target.
type Progress struct {
	Completed     int       `json:"completed"`
	Total         int       `json:"total"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// HabitStatus is an item enriched with its tracking state.
type HabitStatus struct {
	Item
	Streak   Streak   `json:"streak"`
	Progress Progress `json:"progress"`
}

// Occurrence is a dated occurrence of an item within a range query.
type Occurrence struct {
	Item
	Date string `json:"date"`
}

// Step is a goal sub-step submitted for generation.
type Step struct {
	Text           string   `json:"text"`
	StepType       string   `json:"step_type"`
	IsTracked      bool     `json:"is_tracked"`
	Timescale      string   `json:"timescale,omitempty"`
	Frequency      int      `json:"frequency,omitempty"`
	SelectedDays   []int    `json:"selected_days,omitempty"`
	ScheduledTimes []string `json:"scheduled_times,omitempty"`
	RepeatEndDate  string   `json:"repeat_end_date,omitempty"`
}

// Goal is a goal payload submitted for generation.
type Goal struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Steps []Step `json:"steps"`
}

// GenerateResult reports the outcome of materializing one goal's items.
type GenerateResult struct {
	GoalID    string   `json:"goal_id"`
	Created   int      `json:"created"`
	Preserved int      `json:"preserved"`
	Skipped   []string `json:"skipped"`
}

// RegenerateResult reports a full rebuild pass.
type RegenerateResult struct {
	Goals     int  `json:"goals"`
	Items     int  `json:"items"`
	Coalesced bool `json:"coalesced"`
}

// Health is the service health report.
type Health struct {
	Status       string     `json:"status"`
	Version      string     `json:"version"`
	ItemCount    int64      `json:"item_count"`
	LastSnapshot *time.Time `json:"last_snapshot,omitempty"`
}
