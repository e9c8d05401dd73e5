// Package upstream is the proxy's HTTP client for the Backend Record
// Service. It separates transport failure from upstream-reported rejection
// so the proxy can pass validation feedback through verbatim while keeping
// everything else behind a generic error.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"crmlite/api/internal/record"
)

// ErrUnavailable signals the backend was unreachable or did not answer HTTP.
var ErrUnavailable = errors.New("backend unavailable")

// StatusError is a non-success response from a reachable backend. Detail is
// the backend's own message, preserved verbatim.
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend status %d: %s", e.Status, e.Detail)
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		// Generation requests are backend-synchronous and slow; the proxy
		// must not truncate them with a short timeout.
		http: &http.Client{Timeout: 120 * time.Second},
	}
}

func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, http: httpClient}
}

func (c *Client) ListOpportunities(ctx context.Context, userID string) ([]record.Opportunity, error) {
	query := url.Values{}
	if userID != "" {
		query.Set("user_id", userID)
	}
	var out []record.Opportunity
	if err := c.do(ctx, http.MethodGet, "/opportunities", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type CreateOpportunityRequest struct {
	Name   string  `json:"name"`
	Email  string  `json:"email"`
	Status string  `json:"status"`
	Value  float64 `json:"value"`
	UserID string  `json:"user_id"`
}

func (c *Client) CreateOpportunity(ctx context.Context, req CreateOpportunityRequest) (record.Opportunity, error) {
	var out record.Opportunity
	if err := c.do(ctx, http.MethodPost, "/opportunities", nil, req, &out); err != nil {
		return record.Opportunity{}, err
	}
	return out, nil
}

func (c *Client) GetOpportunity(ctx context.Context, id, userID string) (record.Opportunity, error) {
	query := url.Values{}
	if userID != "" {
		query.Set("user_id", userID)
	}
	var out record.Opportunity
	if err := c.do(ctx, http.MethodGet, "/opportunities/"+url.PathEscape(id), query, nil, &out); err != nil {
		return record.Opportunity{}, err
	}
	return out, nil
}

// UpdateOpportunity forwards a partial patch untouched. The backend is the
// source of truth for valid transitions, so no field re-validation happens
// here.
func (c *Client) UpdateOpportunity(ctx context.Context, id, userID string, patch json.RawMessage) (record.Opportunity, error) {
	query := url.Values{}
	if userID != "" {
		query.Set("user_id", userID)
	}
	var out record.Opportunity
	if err := c.do(ctx, http.MethodPatch, "/opportunities/"+url.PathEscape(id), query, patch, &out); err != nil {
		return record.Opportunity{}, err
	}
	return out, nil
}

func (c *Client) DeleteOpportunity(ctx context.Context, id, userID string) error {
	query := url.Values{}
	if userID != "" {
		query.Set("user_id", userID)
	}
	return c.do(ctx, http.MethodDelete, "/opportunities/"+url.PathEscape(id), query, nil, nil)
}

// ListInteractions returns interactions for one opportunity when the backend
// supports server-side filtering, or the full global set when opportunityID
// is empty (the caller filters).
func (c *Client) ListInteractions(ctx context.Context, opportunityID string) ([]record.Interaction, error) {
	query := url.Values{}
	if opportunityID != "" {
		query.Set("opportunity_id", opportunityID)
	}
	var out []record.Interaction
	if err := c.do(ctx, http.MethodGet, "/interactions", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type CreateInteractionRequest struct {
	OpportunityID string `json:"opportunity_id"`
	Type          string `json:"type"`
	Notes         string `json:"notes"`
}

func (c *Client) CreateInteraction(ctx context.Context, req CreateInteractionRequest) (record.Interaction, error) {
	var out record.Interaction
	if err := c.do(ctx, http.MethodPost, "/interactions", nil, req, &out); err != nil {
		return record.Interaction{}, err
	}
	return out, nil
}

// DeleteInteraction returns the backend's response body untouched; the proxy
// passes it through.
func (c *Client) DeleteInteraction(ctx context.Context, id, userID string) (json.RawMessage, error) {
	query := url.Values{}
	if userID != "" {
		query.Set("user_id", userID)
	}
	var out json.RawMessage
	if err := c.do(ctx, http.MethodDelete, "/interactions/"+url.PathEscape(id), query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GenerateStrategy triggers a fresh analysis. The backend exposes this as a
// GET that generates.
func (c *Client) GenerateStrategy(ctx context.Context, opportunityID string) (record.StrategyResult, error) {
	var out record.StrategyResult
	if err := c.do(ctx, http.MethodGet, "/opportunities/"+url.PathEscape(opportunityID)+"/strategy", nil, nil, &out); err != nil {
		return record.StrategyResult{}, err
	}
	return out, nil
}

// LatestStrategy is a pure retrieval; it never triggers generation.
func (c *Client) LatestStrategy(ctx context.Context, opportunityID string) (record.StrategyResult, error) {
	var out record.StrategyResult
	if err := c.do(ctx, http.MethodGet, "/opportunities/"+url.PathEscape(opportunityID)+"/strategy/latest", nil, nil, &out); err != nil {
		return record.StrategyResult{}, err
	}
	return out, nil
}

type UpsertUserRequest struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

func (c *Client) UpsertUser(ctx context.Context, req UpsertUserRequest) (record.UserProfile, error) {
	var out record.UserProfile
	if err := c.do(ctx, http.MethodPost, "/users", nil, req, &out); err != nil {
		return record.UserProfile{}, err
	}
	return out, nil
}

func (c *Client) GetUser(ctx context.Context, id string) (record.UserProfile, error) {
	var out record.UserProfile
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return record.UserProfile{}, err
	}
	return out, nil
}

func (c *Client) SearchOpportunities(ctx context.Context, userID, q string, limit int) ([]record.Opportunity, error) {
	query := url.Values{}
	if userID != "" {
		query.Set("user_id", userID)
	}
	query.Set("q", q)
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out []record.Opportunity
	if err := c.do(ctx, http.MethodGet, "/opportunities/search", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &StatusError{Status: resp.StatusCode, Detail: readDetail(resp.Body)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: malformed response: %v", ErrUnavailable, err)
	}
	return nil
}

func readDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 1<<16))
	if err != nil {
		return ""
	}
	var parsed struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if parsed.Detail != "" {
			return parsed.Detail
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return ""
}
