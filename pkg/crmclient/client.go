package crmclient

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
	"sync"
	"time"
)

const (
	keyOpportunities = "opportunities"

	defaultCacheTTL = 30 * time.Second
)

func keyOpportunity(id string) string  { return "opportunity/" + id }
func keyInteractions(id string) string { return "interactions/" + id }

// APIError is a non-success response from the proxy.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
}

var ErrUnavailable = errors.New("api unreachable")

// Client talks to the sync proxy. Reads go through the cache; mutations
// invalidate the affected keys so the next read refetches.
type Client struct {
	baseURL string
	http    *http.Client
	cache   *Cache

	mu    sync.Mutex
	token string
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.http = httpClient }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cache = NewCache(ttl) }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 120 * time.Second},
		cache:   NewCache(defaultCacheTTL),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cache exposes the underlying resource cache for observers.
func (c *Client) Cache() *Cache { return c.cache }

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// ── Auth ──

func (c *Client) SignUp(ctx context.Context, email, password, fullName string) (Session, error) {
	var session Session
	err := c.do(ctx, http.MethodPost, "/auth/signup", nil, map[string]string{
		"email":    email,
		"password": password,
		"fullName": fullName,
	}, &session)
	if err != nil {
		return Session{}, err
	}
	c.SetToken(session.AccessToken)
	return session, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (Session, error) {
	var session Session
	err := c.do(ctx, http.MethodPost, "/auth/signin", nil, map[string]string{
		"email":    email,
		"password": password,
	}, &session)
	if err != nil {
		return Session{}, err
	}
	c.SetToken(session.AccessToken)
	return session, nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	var session Session
	err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, map[string]string{
		"refreshToken": refreshToken,
	}, &session)
	if err != nil {
		return Session{}, err
	}
	c.SetToken(session.AccessToken)
	return session, nil
}

func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, map[string]string{
		"refreshToken": refreshToken,
	}, nil)
	c.SetToken("")
	return err
}

// ── Opportunities ──

func (c *Client) Opportunities(ctx context.Context) ([]Opportunity, error) {
	value, err := c.cache.Get(ctx, keyOpportunities, func(ctx context.Context) (any, error) {
		var wrapped struct {
			Opportunities []Opportunity `json:"opportunities"`
		}
		if err := c.do(ctx, http.MethodGet, "/opportunities", nil, nil, &wrapped); err != nil {
			return nil, err
		}
		return wrapped.Opportunities, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]Opportunity), nil
}

func (c *Client) Opportunity(ctx context.Context, id string) (Opportunity, error) {
	value, err := c.cache.Get(ctx, keyOpportunity(id), func(ctx context.Context) (any, error) {
		var wrapped struct {
			Opportunity Opportunity `json:"opportunity"`
		}
		if err := c.do(ctx, http.MethodGet, "/opportunities/"+url.PathEscape(id), nil, nil, &wrapped); err != nil {
			return nil, err
		}
		return wrapped.Opportunity, nil
	})
	if err != nil {
		return Opportunity{}, err
	}
	return value.(Opportunity), nil
}

func (c *Client) CreateOpportunity(ctx context.Context, name, email, status string, value float64) (Opportunity, error) {
	var wrapped struct {
		Opportunity Opportunity `json:"opportunity"`
	}
	err := c.do(ctx, http.MethodPost, "/opportunities", nil, map[string]any{
		"name":   name,
		"email":  email,
		"status": status,
		"value":  value,
	}, &wrapped)
	if err != nil {
		return Opportunity{}, err
	}
	c.cache.Invalidate(keyOpportunities)
	return wrapped.Opportunity, nil
}

func (c *Client) UpdateOpportunity(ctx context.Context, id string, patch OpportunityPatch) (Opportunity, error) {
	var wrapped struct {
		Opportunity Opportunity `json:"opportunity"`
	}
	err := c.do(ctx, http.MethodPatch, "/opportunities/"+url.PathEscape(id), nil, patch, &wrapped)
	if err != nil {
		return Opportunity{}, err
	}
	c.cache.Invalidate(keyOpportunities)
	c.cache.Invalidate(keyOpportunity(id))
	return wrapped.Opportunity, nil
}

func (c *Client) DeleteOpportunity(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/opportunities/"+url.PathEscape(id), nil, nil, nil); err != nil {
		return err
	}
	c.cache.Invalidate(keyOpportunities)
	c.cache.Invalidate(keyOpportunity(id))
	c.cache.Invalidate(keyInteractions(id))
	return nil
}

func (c *Client) SearchOpportunities(ctx context.Context, q string, limit int) ([]Opportunity, error) {
	query := url.Values{"q": []string{q}}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var wrapped struct {
		Opportunities []Opportunity `json:"opportunities"`
	}
	if err := c.do(ctx, http.MethodGet, "/opportunities/search", query, nil, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Opportunities, nil
}

// ── Interactions ──

func (c *Client) Interactions(ctx context.Context, opportunityID string) ([]Interaction, error) {
	value, err := c.cache.Get(ctx, keyInteractions(opportunityID), func(ctx context.Context) (any, error) {
		var wrapped struct {
			Interactions []Interaction `json:"interactions"`
		}
		path := "/opportunities/" + url.PathEscape(opportunityID) + "/interactions"
		if err := c.do(ctx, http.MethodGet, path, nil, nil, &wrapped); err != nil {
			return nil, err
		}
		return wrapped.Interactions, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]Interaction), nil
}

func (c *Client) AddInteraction(ctx context.Context, opportunityID, kind, notes string) (Interaction, error) {
	var wrapped struct {
		Interaction Interaction `json:"interaction"`
	}
	path := "/opportunities/" + url.PathEscape(opportunityID) + "/interactions"
	err := c.do(ctx, http.MethodPost, path, nil, map[string]string{
		"type":  kind,
		"notes": notes,
	}, &wrapped)
	if err != nil {
		return Interaction{}, err
	}
	c.cache.Invalidate(keyInteractions(opportunityID))
	// Logging an interaction touches the opportunity's updated_at.
	c.cache.Invalidate(keyOpportunity(opportunityID))
	return wrapped.Interaction, nil
}

func (c *Client) DeleteInteraction(ctx context.Context, id, opportunityID string) error {
	if err := c.do(ctx, http.MethodDelete, "/interactions/"+url.PathEscape(id), nil, nil, nil); err != nil {
		return err
	}
	c.cache.Invalidate(keyInteractions(opportunityID))
	return nil
}

// ── AI assist ──

func (c *Client) LatestAssist(ctx context.Context, opportunityID string) (Assist, error) {
	var result Assist
	path := "/opportunities/" + url.PathEscape(opportunityID) + "/ai-assist"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &result); err != nil {
		return Assist{}, err
	}
	return result, nil
}

func (c *Client) GenerateAssist(ctx context.Context, opportunityID string) (Assist, error) {
	var result Assist
	path := "/opportunities/" + url.PathEscape(opportunityID) + "/ai-assist"
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &result); err != nil {
		return Assist{}, err
	}
	return result, nil
}

// ── Profile ──

func (c *Client) Profile(ctx context.Context) (Profile, error) {
	var wrapped struct {
		User Profile `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/user", nil, nil, &wrapped); err != nil {
		return Profile{}, err
	}
	return wrapped.User, nil
}

func (c *Client) SyncProfile(ctx context.Context) (Profile, error) {
	var wrapped struct {
		User Profile `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/user", nil, nil, &wrapped); err != nil {
		return Profile{}, err
	}
	return wrapped.User, nil
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
	if token := c.currentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var parsed struct {
			Code  string `json:"code"`
			Error string `json:"error"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&parsed); err == nil {
			apiErr.Code = parsed.Code
			apiErr.Message = parsed.Error
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
