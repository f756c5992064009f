package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/cadence/internal/engine"
	"github.com/hyperengineering/cadence/internal/recur"
	"github.com/hyperengineering/cadence/internal/snapshot"
	"github.com/hyperengineering/cadence/internal/store"
	"github.com/hyperengineering/cadence/internal/types"
	"github.com/hyperengineering/cadence/internal/validation"
)

// Handler implements the API handlers
type Handler struct {
	engine   *engine.Engine
	store    store.Store
	uploader snapshot.Uploader
	apiKey   string
	version  string
}

// NewHandler creates a new Handler. uploader may be nil when snapshot
// upload is not configured.
func NewHandler(e *engine.Engine, s store.Store, uploader snapshot.Uploader, apiKey, version string) *Handler {
	if uploader == nil {
		uploader = &snapshot.NoopUploader{}
	}
	return &Handler{
		engine:   e,
		store:    s,
		uploader: uploader,
		apiKey:   apiKey,
		version:  version,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// queryDate parses the "date" query parameter, defaulting to the current
// UTC day when absent.
func queryDate(r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return time.Now().UTC(), true
	}
	return recur.ParseDate(raw)
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:       "healthy",
		Version:      h.version,
		ItemCount:    stats.ItemCount,
		LastSnapshot: stats.LastSnapshot,
	})
}

// TodayItems handles GET /api/v1/items/today
func (h *Handler) TodayItems(w http.ResponseWriter, r *http.Request) {
	date, ok := queryDate(r)
	if !ok {
		WriteProblem(w, r, http.StatusBadRequest, "date must be in YYYY-MM-DD form")
		return
	}

	items, err := h.engine.TodayItems(r.Context(), date)
	if err != nil {
		slog.Error("today query failed", "error", err)
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// UpcomingItems handles GET /api/v1/items/upcoming
func (h *Handler) UpcomingItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, ok := recur.ParseDate(q.Get("start"))
	if !ok {
		WriteProblem(w, r, http.StatusBadRequest, "start must be in YYYY-MM-DD form")
		return
	}
	end, ok := recur.ParseDate(q.Get("end"))
	if !ok {
		WriteProblem(w, r, http.StatusBadRequest, "end must be in YYYY-MM-DD form")
		return
	}

	occurrences, err := h.engine.UpcomingItems(r.Context(), start, end)
	if err != nil {
		slog.Error("upcoming query failed", "error", err)
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, occurrences)
}

// ActiveHabits handles GET /api/v1/items/habits
func (h *Handler) ActiveHabits(w http.ResponseWriter, r *http.Request) {
	habits, err := h.engine.ActiveHabits(r.Context())
	if err != nil {
		slog.Error("habits query failed", "error", err)
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, habits)
}

// NeedsAttention handles GET /api/v1/items/attention. The reference day
// comes from the asOf query parameter (date is accepted as an alias),
// defaulting to the current UTC day.
func (h *Handler) NeedsAttention(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("asOf")
	if raw == "" {
		raw = r.URL.Query().Get("date")
	}
	asOf := time.Now().UTC()
	if raw != "" {
		var ok bool
		if asOf, ok = recur.ParseDate(raw); !ok {
			WriteProblem(w, r, http.StatusBadRequest, "asOf must be in YYYY-MM-DD form")
			return
		}
	}

	flagged, err := h.engine.NeedsAttention(r.Context(), asOf)
	if err != nil {
		slog.Error("attention query failed", "error", err)
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, flagged)
}

// GetItem handles GET /api/v1/items/{id}
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := h.engine.Item(r.Context(), id)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// GoalItems handles GET /api/v1/goals/{goalId}/items
func (h *Handler) GoalItems(w http.ResponseWriter, r *http.Request) {
	goalID := chi.URLParam(r, "goalId")
	items, err := h.engine.ItemsByGoal(r.Context(), goalID)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if items == nil {
		items = []types.ItineraryItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// GetStreak handles GET /api/v1/items/{id}/streak
func (h *Handler) GetStreak(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	streak, err := h.engine.Streak(r.Context(), id)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, streak)
}

// GetProgress handles GET /api/v1/items/{id}/progress
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	progress, err := h.engine.Progress(r.Context(), id)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// AddItem handles POST /api/v1/items
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var item types.ItineraryItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if errs := validation.ValidateItem(item); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	created, err := h.engine.AddItem(r.Context(), item, time.Now().UTC())
	if err != nil {
		slog.Error("add item failed", "error", err)
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateItem handles PUT /api/v1/items/{id}
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var update types.ItineraryItem
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if errs := validation.ValidateItem(update); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	item, err := h.engine.UpdateItem(r.Context(), id, update, time.Now().UTC())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// UpdateSchedule handles PUT /api/v1/items/{id}/schedule
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var schedule types.Schedule
	if err := json.NewDecoder(r.Body).Decode(&schedule); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if errs := validation.ValidateSchedule("schedule", schedule); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	item, err := h.engine.UpdateSchedule(r.Context(), id, schedule, time.Now().UTC())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// RemoveItem handles DELETE /api/v1/items/{id}
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.engine.RemoveItem(r.Context(), id); err != nil {
		MapStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CompleteItem handles POST /api/v1/items/{id}/complete
func (h *Handler) CompleteItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Missing body defaults to marking complete.
	req := types.CompleteRequest{Completed: true}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
			return
		}
	}

	status, err := h.engine.CompleteItem(r.Context(), id, req.Completed, time.Now().UTC())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Generate handles POST /api/v1/goals/generate
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var goal types.Goal
	if err := json.NewDecoder(r.Body).Decode(&goal); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if errs := validation.ValidateGoal(goal); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	result, err := h.engine.GenerateFromGoal(r.Context(), goal, time.Now().UTC())
	if err != nil {
		slog.Error("generation failed", "error", err, "goal_id", goal.ID)
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// UpdateCriteria handles POST /api/v1/goals/{goalId}/criteria
func (h *Handler) UpdateCriteria(w http.ResponseWriter, r *http.Request) {
	goalID := chi.URLParam(r, "goalId")

	var req types.CriteriaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if errs := validation.ValidateGoal(types.Goal{ID: goalID, Steps: req.Steps}); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	result, err := h.engine.UpdateFromCriteria(r.Context(), goalID, req.Steps, time.Now().UTC())
	if err != nil {
		slog.Error("criteria update failed", "error", err, "goal_id", goalID)
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Regenerate handles POST /api/v1/admin/regenerate
func (h *Handler) Regenerate(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.RegenerateAll(r.Context())
	if err != nil {
		if errors.Is(err, engine.ErrNoGoalSource) {
			WriteProblem(w, r, http.StatusServiceUnavailable, "No goal source configured")
			return
		}
		slog.Error("regeneration failed", "error", err)
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

// ClearItems handles DELETE /api/v1/admin/items
func (h *Handler) ClearItems(w http.ResponseWriter, r *http.Request) {
	regenerate, _ := strconv.ParseBool(r.URL.Query().Get("regenerate"))

	result, err := h.engine.ClearAll(r.Context(), regenerate)
	if err != nil {
		if errors.Is(err, engine.ErrNoGoalSource) {
			WriteProblem(w, r, http.StatusServiceUnavailable, "No goal source configured")
			return
		}
		slog.Error("clear failed", "error", err)
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Snapshot handles GET /api/v1/items/snapshot. By default it streams the
// local snapshot file; with ?presigned=true it returns a pre-signed S3
// download URL instead, when upload is configured.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if presigned, _ := strconv.ParseBool(r.URL.Query().Get("presigned")); presigned {
		url, expiry, err := h.uploader.PresignedURL(r.Context())
		if err != nil {
			if errors.Is(err, snapshot.ErrNotConfigured) {
				WriteProblem(w, r, http.StatusBadRequest, "Snapshot upload is not configured")
				return
			}
			slog.Error("pre-signed URL generation failed", "error", err)
			MapStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, types.SnapshotURLResponse{URL: url, ExpiresAt: expiry})
		return
	}

	rc, err := h.store.GetSnapshot(r.Context())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		slog.Error("failed to write snapshot response", "error", err)
	}
}
