// Package itinerary is the Go client for the cadence service. It mirrors the
// HTTP API with small request helpers; all methods take a context and return
// decoded responses or an *APIError for non-2xx statuses.
package itinerary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Config configures the client.
type Config struct {
	// BaseURL is the cadence service root, e.g. "http://localhost:8080".
	BaseURL string
	// APIKey is sent as a Bearer token on every request.
	APIKey string
	// Timeout applies per request; defaults to 30 seconds.
	Timeout time.Duration
}

// Client talks to a cadence service.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// APIError is returned for non-2xx responses, carrying the RFC 7807 detail.
type APIError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cadence: %s (%d): %s", e.Title, e.Status, e.Detail)
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("BaseURL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		buf = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
		// Problem details are best effort; the status alone is enough.
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Health reports service health. No authentication required.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/api/v1/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Today returns the items due on the given date. A zero date means the
// server's current day.
func (c *Client) Today(ctx context.Context, date string) ([]Item, error) {
	path := "/api/v1/items/today"
	if date != "" {
		path += "?date=" + url.QueryEscape(date)
	}
	var items []Item
	if err := c.do(ctx, http.MethodGet, path, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Upcoming returns dated occurrences in the inclusive range [start, end].
func (c *Client) Upcoming(ctx context.Context, start, end string) ([]Occurrence, error) {
	path := fmt.Sprintf("/api/v1/items/upcoming?start=%s&end=%s",
		url.QueryEscape(start), url.QueryEscape(end))
	var occurrences []Occurrence
	if err := c.do(ctx, http.MethodGet, path, nil, &occurrences); err != nil {
		return nil, err
	}
	return occurrences, nil
}

// Habits returns all habit items with their tracking state.
func (c *Client) Habits(ctx context.Context) ([]HabitStatus, error) {
	var habits []HabitStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/items/habits", nil, &habits); err != nil {
		return nil, err
	}
	return habits, nil
}

// NeedsAttention returns items with broken streaks or stalled progress.
func (c *Client) NeedsAttention(ctx context.Context) ([]HabitStatus, error) {
	var flagged []HabitStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/items/attention", nil, &flagged); err != nil {
		return nil, err
	}
	return flagged, nil
}

// AddItem creates an item directly.
func (c *Client) AddItem(ctx context.Context, item Item) (*Item, error) {
	var created Item
	if err := c.do(ctx, http.MethodPost, "/api/v1/items", item, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Item returns a single item by id.
func (c *Client) Item(ctx context.Context, id string) (*Item, error) {
	var item Item
	if err := c.do(ctx, http.MethodGet, "/api/v1/items/"+url.PathEscape(id), nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// GoalItems returns the items derived from one goal.
func (c *Client) GoalItems(ctx context.Context, goalID string) ([]Item, error) {
	var items []Item
	path := "/api/v1/goals/" + url.PathEscape(goalID) + "/items"
	if err := c.do(ctx, http.MethodGet, path, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// RemoveItem deletes an item and its tracking records.
func (c *Client) RemoveItem(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/items/"+url.PathEscape(id), nil, nil)
}

// Complete toggles an item's completion and returns the updated tracking.
func (c *Client) Complete(ctx context.Context, id string, completed bool) (*HabitStatus, error) {
	body := map[string]bool{"completed": completed}
	var status HabitStatus
	path := "/api/v1/items/" + url.PathEscape(id) + "/complete"
	if err := c.do(ctx, http.MethodPost, path, body, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Streak returns the streak for an item.
func (c *Client) Streak(ctx context.Context, id string) (*Streak, error) {
	var streak Streak
	path := "/api/v1/items/" + url.PathEscape(id) + "/streak"
	if err := c.do(ctx, http.MethodGet, path, nil, &streak); err != nil {
		return nil, err
	}
	return &streak, nil
}

// Progress returns the period progress for an item.
func (c *Client) Progress(ctx context.Context, id string) (*Progress, error) {
	var progress Progress
	path := "/api/v1/items/" + url.PathEscape(id) + "/progress"
	if err := c.do(ctx, http.MethodGet, path, nil, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

// Generate materializes items from a goal payload.
func (c *Client) Generate(ctx context.Context, goal Goal) (*GenerateResult, error) {
	var result GenerateResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/goals/generate", goal, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Regenerate rebuilds the whole item set from the server's goal source.
func (c *Client) Regenerate(ctx context.Context) (*RegenerateResult, error) {
	var result RegenerateResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/admin/regenerate", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
