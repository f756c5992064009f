package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperengineering/cadence/internal/engine"
	"github.com/hyperengineering/cadence/internal/store"
	"github.com/hyperengineering/cadence/internal/types"
)

const testAPIKey = "test-api-key"

// staticGoals is a fixed in-memory goal source.
type staticGoals struct {
	goals []types.Goal
}

func (s *staticGoals) Goals(ctx context.Context) ([]types.Goal, error) {
	return s.goals, nil
}

func newTestServer(t *testing.T, goals engine.GoalSource) (http.Handler, *engine.Engine, store.Store) {
	t.Helper()
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "cadence.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	e := engine.New(db, goals, nil)
	h := NewHandler(e, db, nil, testAPIKey, "test")
	return NewRouter(h, nil), e, db
}

// stubUploader returns canned presigned-URL results.
type stubUploader struct {
	url    string
	expiry time.Time
	err    error
}

func (u *stubUploader) Upload(ctx context.Context, filePath string) error {
	return nil
}

func (u *stubUploader) PresignedURL(ctx context.Context) (string, time.Time, error) {
	return u.url, u.expiry, u.err
}

func authedRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func doRequest(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func seedScheduledItem(t *testing.T, router http.Handler, id string, days []int, clock string) {
	t.Helper()
	item := types.ItineraryItem{
		ID:   id,
		Kind: types.KindHabit,
		Rule: types.ScheduledRule(types.Schedule{
			Days:   days,
			Time:   clock,
			Repeat: types.TimescaleWeekly,
		}),
	}
	rec := doRequest(router, authedRequest(http.MethodPost, "/api/v1/items", item))
	if rec.Code != http.StatusCreated {
		t.Fatalf("seed item: status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealth_NoAuthRequired(t *testing.T) {
	router, _, _ := newTestServer(t, nil)

	rec := doRequest(router, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp types.HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "healthy" || resp.Version != "test" {
		t.Errorf("unexpected health response: %+v", resp)
	}
}

func TestAddItem_AndToday(t *testing.T) {
	router, _, _ := newTestServer(t, nil)

	// Monday 08:00 habit.
	seedScheduledItem(t, router, "habit-1", []int{1}, "08:00")

	rec := doRequest(router, authedRequest(http.MethodGet, "/api/v1/items/today?date=2026-03-02", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var items []types.ItineraryItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != "habit-1" {
		t.Errorf("expected habit-1 due on Monday, got %v", items)
	}

	// Tuesday: nothing due.
	rec = doRequest(router, authedRequest(http.MethodGet, "/api/v1/items/today?date=2026-03-03", nil))
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty Tuesday, got %v", items)
	}
}

func TestTodayItems_BadDate(t *testing.T) {
	router, _, _ := newTestServer(t, nil)

	rec := doRequest(router, authedRequest(http.MethodGet, "/api/v1/items/today?date=tomorrow", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q, want problem+json", ct)
	}
}

func TestAddItem_ValidationErrors(t *testing.T) {
	router, _, _ := newTestServer(t, nil)

	item := types.ItineraryItem{
		Kind: "chore",
		Rule: types.DueRule{Kind: "lunar"},
	}
	rec := doRequest(router, authedRequest(http.MethodPost, "/api/v1/items", item))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", rec.Code, rec.Body.String())
	}

	var resp ProblemWithErrors
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Errors) < 2 {
		t.Errorf("expected field errors for kind and rule, got %v", resp.Errors)
	}
}

func TestCompleteItem_RoundTrip(t *testing.T) {
	router, _, _ := newTestServer(t, nil)
	seedScheduledItem(t, router, "habit-1", []int{1}, "08:00")

	rec := doRequest(router, authedRequest(http.MethodPost, "/api/v1/items/habit-1/complete", types.CompleteRequest{Completed: true}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var status types.HabitStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.Streak.Count != 1 || status.Progress.Completed != 1 {
		t.Errorf("unexpected tracking after completion: %+v", status)
	}

	// Un-complete drops counters but keeps the completion timestamp.
	rec = doRequest(router, authedRequest(http.MethodPost, "/api/v1/items/habit-1/complete", types.CompleteRequest{Completed: false}))
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.Streak.Count != 0 || status.Progress.Completed != 0 {
		t.Errorf("unexpected tracking after un-completion: %+v", status)
	}
	if status.Streak.LastCompletedAt == nil {
		t.Error("expected last_completed_at retained after un-completion")
	}
}

func TestCompleteItem_UnknownItem(t *testing.T) {
	router, _, _ := newTestServer(t, nil)

	rec := doRequest(router, authedRequest(http.MethodPost, "/api/v1/items/ghost/complete", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404: %s", rec.Code, rec.Body.String())
	}
}

func TestStreakAndProgress_ZeroDefaults(t *testing.T) {
	router, _, _ := newTestServer(t, nil)
	seedScheduledItem(t, router, "habit-1", []int{1}, "08:00")

	rec := doRequest(router, authedRequest(http.MethodGet, "/api/v1/items/habit-1/streak", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var streak types.StreakData
	if err := json.Unmarshal(rec.Body.Bytes(), &streak); err != nil {
		t.Fatal(err)
	}
	if streak.Count != 0 || streak.LastCompletedAt != nil {
		t.Errorf("expected zero-value streak, got %+v", streak)
	}

	rec = doRequest(router, authedRequest(http.MethodGet, "/api/v1/items/habit-1/progress", nil))
	var progress types.ItemProgress
	if err := json.Unmarshal(rec.Body.Bytes(), &progress); err != nil {
		t.Fatal(err)
	}
	if progress.Completed != 0 {
		t.Errorf("expected zero progress, got %+v", progress)
	}
}

func TestGenerate_FromGoalPayload(t *testing.T) {
	router, _, _ := newTestServer(t, nil)

	goal := types.Goal{
		ID: "goal-1",
		Steps: []types.SourceStep{
			{Text: "Run 3 times per week", StepType: types.StepHabit, IsTracked: true, Timescale: types.TimescaleWeekly},
		},
	}
	rec := doRequest(router, authedRequest(http.MethodPost, "/api/v1/goals/generate", goal))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var result types.GenerateResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Created != 1 {
		t.Errorf("expected 1 created, got %+v", result)
	}

	itemPath := "/api/v1/items/" + url.PathEscape("goal-1-Run 3 times per week") + "/progress"
	rec = doRequest(router, authedRequest(http.MethodGet, itemPath, nil))
	var progress types.ItemProgress
	if err := json.Unmarshal(rec.Body.Bytes(), &progress); err != nil {
		t.Fatal(err)
	}
	if progress.Total != 3 {
		t.Errorf("expected inferred target 3, got %+v", progress)
	}
}

func TestUpdateCriteria(t *testing.T) {
	router, _, _ := newTestServer(t, nil)

	req := types.CriteriaRequest{
		Steps: []types.SourceStep{
			{Text: "Meditate", StepType: types.StepHabit, IsTracked: true, Timescale: types.TimescaleDaily},
		},
	}
	rec := doRequest(router, authedRequest(http.MethodPost, "/api/v1/goals/goal-1/criteria", req))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var result types.GenerateResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.GoalID != "goal-1" || result.Created != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestRegenerate_NoGoalSource(t *testing.T) {
	router, _, _ := newTestServer(t, nil)

	rec := doRequest(router, authedRequest(http.MethodPost, "/api/v1/admin/regenerate", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503: %s", rec.Code, rec.Body.String())
	}
}

func TestRegenerate_RebuildsFromSource(t *testing.T) {
	goals := &staticGoals{goals: []types.Goal{
		{ID: "goal-1", Steps: []types.SourceStep{
			{Text: "Meditate", StepType: types.StepHabit, IsTracked: true, Timescale: types.TimescaleDaily},
		}},
	}}
	router, _, _ := newTestServer(t, goals)

	rec := doRequest(router, authedRequest(http.MethodPost, "/api/v1/admin/regenerate", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}

	var result types.RegenerateResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Goals != 1 || result.Items != 1 {
		t.Errorf("expected 1 goal / 1 item, got %+v", result)
	}
	if result.Coalesced {
		t.Error("expected a solo regeneration not to be coalesced")
	}
}

func TestClearItems(t *testing.T) {
	router, _, db := newTestServer(t, nil)
	seedScheduledItem(t, router, "habit-1", []int{1}, "08:00")

	rec := doRequest(router, authedRequest(http.MethodDelete, "/api/v1/admin/items", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	items, err := db.ListItems(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Errorf("expected all items cleared, got %d", len(items))
	}
}

func TestUpdateSchedule(t *testing.T) {
	router, _, db := newTestServer(t, nil)
	seedScheduledItem(t, router, "habit-1", []int{1}, "08:00")

	schedule := types.Schedule{Days: []int{2, 4}, Time: "19:00", Repeat: types.TimescaleWeekly}
	rec := doRequest(router, authedRequest(http.MethodPut, "/api/v1/items/habit-1/schedule", schedule))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	item, err := db.GetItem(context.Background(), "habit-1")
	if err != nil {
		t.Fatal(err)
	}
	if item.Rule.Schedule == nil || item.Rule.Schedule.Time != "19:00" {
		t.Errorf("schedule not persisted: %+v", item.Rule)
	}
}

func TestRemoveItem(t *testing.T) {
	router, _, _ := newTestServer(t, nil)
	seedScheduledItem(t, router, "habit-1", []int{1}, "08:00")

	rec := doRequest(router, authedRequest(http.MethodDelete, "/api/v1/items/habit-1", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}

func TestUpcomingItems(t *testing.T) {
	router, _, _ := newTestServer(t, nil)
	seedScheduledItem(t, router, "habit-1", []int{1}, "08:00") // Mondays

	target := "/api/v1/items/upcoming?start=2026-03-02&end=2026-03-15"
	rec := doRequest(router, authedRequest(http.MethodGet, target, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var occurrences []types.Occurrence
	if err := json.Unmarshal(rec.Body.Bytes(), &occurrences); err != nil {
		t.Fatal(err)
	}
	if len(occurrences) != 2 {
		t.Errorf("expected 2 Monday occurrences, got %d", len(occurrences))
	}
}

func TestNeedsAttention_Endpoint(t *testing.T) {
	router, e, _ := newTestServer(t, nil)
	seedScheduledItem(t, router, "habit-1", []int{1}, "08:00")

	twoDaysAgo := time.Now().UTC().AddDate(0, 0, -2)
	if _, err := e.CompleteItem(context.Background(), "habit-1", true, twoDaysAgo); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(router, authedRequest(http.MethodGet, "/api/v1/items/attention", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var flagged []types.HabitStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &flagged); err != nil {
		t.Fatal(err)
	}
	if len(flagged) != 1 || flagged[0].ID != "habit-1" {
		t.Errorf("expected habit-1 flagged, got %v", flagged)
	}
}

func TestSnapshot_Endpoint(t *testing.T) {
	router, _, db := newTestServer(t, nil)

	// Before generation the endpoint reports not found.
	rec := doRequest(router, authedRequest(http.MethodGet, "/api/v1/items/snapshot", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 before generation", rec.Code)
	}

	seedScheduledItem(t, router, "habit-1", []int{1}, "08:00")
	if err := db.GenerateSnapshot(context.Background()); err != nil {
		t.Fatal(err)
	}

	rec = doRequest(router, authedRequest(http.MethodGet, "/api/v1/items/snapshot", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("snapshot is not valid JSON: %v", err)
	}
	if _, ok := doc["items"]; !ok {
		t.Errorf("snapshot missing items section: %s", rec.Body.String())
	}
}

func TestUpdateItem(t *testing.T) {
	router, _, db := newTestServer(t, nil)
	seedScheduledItem(t, router, "habit-1", []int{1}, "08:00")

	update := types.ItineraryItem{
		Kind:  types.KindHabit,
		Notes: "after breakfast",
		Rule:  types.TimescaleRule(types.TimescaleDaily),
	}
	rec := doRequest(router, authedRequest(http.MethodPut, "/api/v1/items/habit-1", update))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	item, err := db.GetItem(context.Background(), "habit-1")
	if err != nil {
		t.Fatal(err)
	}
	if item.Notes != "after breakfast" || item.Rule.Kind != types.RuleTimescale {
		t.Errorf("update not applied: %+v", item)
	}
}

func TestActiveHabits_Endpoint(t *testing.T) {
	router, _, _ := newTestServer(t, nil)
	for i := 0; i < 3; i++ {
		seedScheduledItem(t, router, fmt.Sprintf("habit-%d", i), []int{1}, "08:00")
	}

	rec := doRequest(router, authedRequest(http.MethodGet, "/api/v1/items/habits", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var habits []types.HabitStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &habits); err != nil {
		t.Fatal(err)
	}
	if len(habits) != 3 {
		t.Errorf("expected 3 habits, got %d", len(habits))
	}
}

func TestGetItem_Endpoint(t *testing.T) {
	router, _, _ := newTestServer(t, nil)
	seedScheduledItem(t, router, "habit-1", []int{1}, "08:00")

	rec := doRequest(router, authedRequest(http.MethodGet, "/api/v1/items/habit-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var item types.ItineraryItem
	if err := json.Unmarshal(rec.Body.Bytes(), &item); err != nil {
		t.Fatal(err)
	}
	if item.ID != "habit-1" || item.Rule.Kind != types.RuleScheduled {
		t.Errorf("unexpected item: %+v", item)
	}

	rec = doRequest(router, authedRequest(http.MethodGet, "/api/v1/items/ghost", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for unknown item", rec.Code)
	}
}

func TestGoalItems_Endpoint(t *testing.T) {
	router, _, _ := newTestServer(t, nil)

	goal := types.Goal{
		ID: "goal-1",
		Steps: []types.SourceStep{
			{Text: "Meditate", StepType: types.StepHabit, IsTracked: true, Timescale: types.TimescaleDaily},
			{Text: "Run", StepType: types.StepHabit, IsTracked: true, Timescale: types.TimescaleWeekly},
		},
	}
	rec := doRequest(router, authedRequest(http.MethodPost, "/api/v1/goals/generate", goal))
	if rec.Code != http.StatusOK {
		t.Fatalf("generate status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(router, authedRequest(http.MethodGet, "/api/v1/goals/goal-1/items", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var items []types.ItineraryItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 items for goal-1, got %d", len(items))
	}

	// An unknown goal yields an empty list, not an error.
	rec = doRequest(router, authedRequest(http.MethodGet, "/api/v1/goals/no-such-goal/items", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	items = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Errorf("expected no items for unknown goal, got %d", len(items))
	}
}

func TestNeedsAttention_AsOfParam(t *testing.T) {
	router, e, _ := newTestServer(t, nil)
	seedScheduledItem(t, router, "habit-1", []int{1}, "08:00")

	completedAt := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	if _, err := e.CompleteItem(context.Background(), "habit-1", true, completedAt); err != nil {
		t.Fatal(err)
	}

	// Three days after the last completion the streak counts as broken.
	rec := doRequest(router, authedRequest(http.MethodGet, "/api/v1/items/attention?asOf=2026-03-05", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var flagged []types.HabitStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &flagged); err != nil {
		t.Fatal(err)
	}
	if len(flagged) != 1 {
		t.Errorf("expected habit-1 flagged as of 2026-03-05, got %v", flagged)
	}

	// One day after is still within the allowed gap.
	rec = doRequest(router, authedRequest(http.MethodGet, "/api/v1/items/attention?asOf=2026-03-03", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	flagged = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &flagged); err != nil {
		t.Fatal(err)
	}
	if len(flagged) != 0 {
		t.Errorf("expected nothing flagged as of 2026-03-03, got %v", flagged)
	}

	rec = doRequest(router, authedRequest(http.MethodGet, "/api/v1/items/attention?asOf=bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for malformed asOf", rec.Code)
	}
}

func TestSnapshot_PresignedURL(t *testing.T) {
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "cadence.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	expiry := time.Now().UTC().Add(15 * time.Minute)
	up := &stubUploader{url: "https://s3.example.com/cadence/snapshot/current.json?sig=abc", expiry: expiry}
	h := NewHandler(engine.New(db, nil, nil), db, up, testAPIKey, "test")
	router := NewRouter(h, nil)

	rec := doRequest(router, authedRequest(http.MethodGet, "/api/v1/items/snapshot?presigned=true", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp types.SnapshotURLResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.URL != up.url {
		t.Errorf("url = %q, want %q", resp.URL, up.url)
	}
}

func TestSnapshot_PresignedURL_NotConfigured(t *testing.T) {
	router, _, _ := newTestServer(t, nil)

	rec := doRequest(router, authedRequest(http.MethodGet, "/api/v1/items/snapshot?presigned=true", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 when upload is not configured: %s", rec.Code, rec.Body.String())
	}
}

func TestAddItem_DuplicateID(t *testing.T) {
	router, _, _ := newTestServer(t, nil)
	seedScheduledItem(t, router, "habit-1", []int{1}, "08:00")

	dup := types.ItineraryItem{
		ID:   "habit-1",
		Kind: types.KindHabit,
		Rule: types.ScheduledRule(types.Schedule{Days: []int{2}, Time: "09:00"}),
	}
	rec := doRequest(router, authedRequest(http.MethodPost, "/api/v1/items", dup))
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 for duplicate id: %s", rec.Code, rec.Body.String())
	}
}
