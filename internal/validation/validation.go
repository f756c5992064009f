// Package validation provides field-level request validation with
// accumulated errors suitable for RFC 7807 responses.
package validation

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hyperengineering/cadence/internal/types"
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

// ValidateRequired returns an error if the value is empty or whitespace-only.
func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{
			Field:   field,
			Message: "is required",
		}
	}
	return nil
}

// ValidateMaxLength returns an error if the value exceeds max runes.
func ValidateMaxLength(field, value string, max int) *ValidationError {
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("exceeds maximum length of %d characters", max),
		}
	}
	return nil
}

// ValidateEnum returns an error if the value is not in the allowed list.
func ValidateEnum(field, value string, allowed []string) *ValidationError {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidateClock returns an error if the value is not a 24-hour "HH:MM" time.
// An empty value is allowed; times are optional throughout.
func ValidateClock(field, value string) *ValidationError {
	if value == "" {
		return nil
	}
	if _, err := time.Parse("15:04", value); err != nil {
		return &ValidationError{
			Field:   field,
			Message: "must be a 24-hour HH:MM time",
		}
	}
	return nil
}

// ValidateDate returns an error if the value is not a "2006-01-02" date.
// An empty value is allowed.
func ValidateDate(field, value string) *ValidationError {
	if value == "" {
		return nil
	}
	if _, err := time.Parse("2006-01-02", value); err != nil {
		return &ValidationError{
			Field:   field,
			Message: "must be a date in YYYY-MM-DD form",
		}
	}
	return nil
}

// ValidateWeekdays returns an error if any day index is outside 0..6.
func ValidateWeekdays(field string, days []int) *ValidationError {
	for _, d := range days {
		if d < 0 || d > 6 {
			return &ValidationError{
				Field:   field,
				Message: "weekday indices must be between 0 (Sunday) and 6 (Saturday)",
			}
		}
	}
	return nil
}

// timescaleValues returns the supported timescales as strings.
func timescaleValues() []string {
	vals := make([]string, len(types.Timescales))
	for i, ts := range types.Timescales {
		vals[i] = string(ts)
	}
	return vals
}

// ValidateItem validates an itinerary item supplied by a client.
func ValidateItem(item types.ItineraryItem) []ValidationError {
	var c Collector

	c.Add(ValidateMaxLength("id", item.ID, 512))
	if item.Kind != "" {
		c.Add(ValidateEnum("kind", string(item.Kind), []string{
			string(types.KindHabit),
			string(types.KindOneTimeTask),
			string(types.KindEvent),
		}))
	}
	c.Add(ValidateMaxLength("notes", item.Notes, 4096))
	c.errors = append(c.errors, validateRule("rule", item.Rule)...)

	return c.Errors()
}

func validateRule(field string, rule types.DueRule) []ValidationError {
	var c Collector
	switch rule.Kind {
	case "":
		// No rule is allowed; the item is simply never due.
	case types.RuleScheduled:
		if rule.Schedule == nil {
			c.Add(&ValidationError{Field: field + ".schedule", Message: "is required for scheduled rules"})
			break
		}
		c.errors = append(c.errors, ValidateSchedule(field+".schedule", *rule.Schedule)...)
	case types.RuleTimescale:
		c.Add(ValidateEnum(field+".timescale", string(rule.Timescale), timescaleValues()))
	case types.RuleFixedDate:
		c.Add(ValidateRequired(field+".date", rule.Date))
		c.Add(ValidateDate(field+".date", rule.Date))
	default:
		c.Add(&ValidationError{Field: field + ".kind", Message: "must be one of: scheduled, timescale, fixed"})
	}
	return c.Errors()
}

// ValidateSchedule validates a weekday/time schedule.
func ValidateSchedule(field string, s types.Schedule) []ValidationError {
	var c Collector
	c.Add(ValidateWeekdays(field+".days", s.Days))
	c.Add(ValidateClock(field+".time", s.Time))
	c.Add(ValidateDate(field+".until", s.Until))
	if s.Repeat != "" && !s.Repeat.Valid() {
		c.Add(&ValidationError{
			Field:   field + ".repeat",
			Message: fmt.Sprintf("must be one of: %s", strings.Join(timescaleValues(), ", ")),
		})
	}
	return c.Errors()
}

// ValidateGoal validates a goal payload used for item generation.
func ValidateGoal(goal types.Goal) []ValidationError {
	var c Collector

	c.Add(ValidateRequired("id", goal.ID))
	c.Add(ValidateMaxLength("id", goal.ID, 256))
	c.Add(ValidateMaxLength("title", goal.Title, 1024))

	for i, step := range goal.Steps {
		prefix := fmt.Sprintf("steps[%d]", i)
		c.Add(ValidateRequired(prefix+".text", step.Text))
		c.Add(ValidateMaxLength(prefix+".text", step.Text, 1024))
		if step.Timescale != "" && !step.Timescale.Valid() {
			c.Add(&ValidationError{
				Field:   prefix + ".timescale",
				Message: fmt.Sprintf("must be one of: %s", strings.Join(timescaleValues(), ", ")),
			})
		}
		c.Add(ValidateWeekdays(prefix+".selected_days", step.SelectedDays))
		for j, clock := range step.ScheduledTimes {
			c.Add(ValidateClock(fmt.Sprintf("%s.scheduled_times[%d]", prefix, j), clock))
		}
		c.Add(ValidateDate(prefix+".repeat_end_date", step.RepeatEndDate))
	}

	return c.Errors()
}
