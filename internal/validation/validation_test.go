package validation

import (
	"strings"
	"testing"

	"github.com/hyperengineering/cadence/internal/types"
)

func TestValidateRequired(t *testing.T) {
	if err := ValidateRequired("text", "hello"); err != nil {
		t.Errorf("Expected no error for non-empty value, got %v", err)
	}
	if err := ValidateRequired("text", "   "); err == nil {
		t.Error("Expected error for whitespace-only value")
	}
	if err := ValidateRequired("text", ""); err == nil {
		t.Error("Expected error for empty value")
	}
}

func TestValidateClock(t *testing.T) {
	cases := []struct {
		value string
		ok    bool
	}{
		{"", true},
		{"07:30", true},
		{"23:59", true},
		{"24:00", false},
		{"7:3", false},
		{"noonish", false},
	}
	for _, tc := range cases {
		err := ValidateClock("time", tc.value)
		if tc.ok && err != nil {
			t.Errorf("ValidateClock(%q) = %v, want nil", tc.value, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("ValidateClock(%q) = nil, want error", tc.value)
		}
	}
}

func TestValidateDate(t *testing.T) {
	if err := ValidateDate("until", "2026-06-01"); err != nil {
		t.Errorf("Expected valid date accepted, got %v", err)
	}
	if err := ValidateDate("until", "someday"); err == nil {
		t.Error("Expected error for malformed date")
	}
	if err := ValidateDate("until", ""); err != nil {
		t.Errorf("Expected empty date allowed, got %v", err)
	}
}

func TestValidateWeekdays(t *testing.T) {
	if err := ValidateWeekdays("days", []int{0, 3, 6}); err != nil {
		t.Errorf("Expected valid weekdays accepted, got %v", err)
	}
	if err := ValidateWeekdays("days", []int{7}); err == nil {
		t.Error("Expected error for out-of-range weekday")
	}
	if err := ValidateWeekdays("days", []int{-1}); err == nil {
		t.Error("Expected error for negative weekday")
	}
}

func TestValidateItem(t *testing.T) {
	item := types.ItineraryItem{
		ID:   "goal-1-Meditate",
		Kind: types.KindHabit,
		Rule: types.TimescaleRule(types.TimescaleDaily),
	}
	if errs := ValidateItem(item); len(errs) != 0 {
		t.Errorf("Expected valid item, got %v", errs)
	}

	item.Kind = "chore"
	if errs := ValidateItem(item); len(errs) == 0 {
		t.Error("Expected error for unknown kind")
	}
}

func TestValidateItem_RuleVariants(t *testing.T) {
	// Scheduled rule without a schedule payload.
	bad := types.ItineraryItem{Rule: types.DueRule{Kind: types.RuleScheduled}}
	if errs := ValidateItem(bad); len(errs) == 0 {
		t.Error("Expected error for scheduled rule without schedule")
	}

	// Fixed rule needs a parseable date.
	fixed := types.ItineraryItem{Rule: types.FixedDateRule("not-a-date")}
	if errs := ValidateItem(fixed); len(errs) == 0 {
		t.Error("Expected error for malformed fixed date")
	}

	// Unknown rule kind.
	unknown := types.ItineraryItem{Rule: types.DueRule{Kind: "lunar"}}
	if errs := ValidateItem(unknown); len(errs) == 0 {
		t.Error("Expected error for unknown rule kind")
	}

	// Empty rule is fine; the item is never due.
	empty := types.ItineraryItem{}
	if errs := ValidateItem(empty); len(errs) != 0 {
		t.Errorf("Expected empty rule allowed, got %v", errs)
	}
}

func TestValidateGoal(t *testing.T) {
	goal := types.Goal{
		ID: "goal-1",
		Steps: []types.SourceStep{
			{Text: "Meditate", StepType: types.StepHabit, IsTracked: true, Timescale: types.TimescaleDaily},
		},
	}
	if errs := ValidateGoal(goal); len(errs) != 0 {
		t.Errorf("Expected valid goal, got %v", errs)
	}

	goal.ID = ""
	goal.Steps[0].Text = ""
	goal.Steps[0].SelectedDays = []int{9}
	errs := ValidateGoal(goal)
	if len(errs) < 3 {
		t.Errorf("Expected accumulated errors for id, text and days, got %v", errs)
	}
}

func TestValidateMaxLength(t *testing.T) {
	long := strings.Repeat("a", 100)
	if err := ValidateMaxLength("notes", long, 99); err == nil {
		t.Error("Expected error for over-length value")
	}
	if err := ValidateMaxLength("notes", long, 100); err != nil {
		t.Errorf("Expected value at limit accepted, got %v", err)
	}
}

func TestCollector(t *testing.T) {
	var c Collector
	c.Add(nil)
	if c.HasErrors() {
		t.Error("Collector should ignore nil errors")
	}
	c.Add(&ValidationError{Field: "x", Message: "bad"})
	if !c.HasErrors() || len(c.Errors()) != 1 {
		t.Errorf("Expected one collected error, got %v", c.Errors())
	}
}
