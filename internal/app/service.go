// Package app is the sync proxy: it sits between browser clients and the
// Backend Record Service, resolves identity, stamps ownership onto every
// opportunity operation, and passes backend validation feedback through
// verbatim.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"crmlite/api/internal/auth"
	"crmlite/api/internal/config"
	"crmlite/api/internal/identity"
	"crmlite/api/internal/record"
	"crmlite/api/internal/upstream"
	"crmlite/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	Email        string
	FullName     string
	JTI          string
	ExpiresAt    time.Time
}

// AssistPayload is the analysis shape served to clients. The backend's field
// names differ; the proxy re-keys them so clients never depend on the
// backend's wire format.
type AssistPayload struct {
	Summary           string    `json:"summary"`
	SuggestedNextStep string    `json:"suggestedNextStep"`
	Urgency           string    `json:"urgency"`
	TacticalAdvice    string    `json:"tacticalAdvice"`
	CreatedAt         time.Time `json:"created_at"`
}

type CreateOpportunityInput struct {
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Status string   `json:"status"`
	Value  *float64 `json:"value"`
}

type CreateInteractionInput struct {
	Type  string `json:"type"`
	Notes string `json:"notes"`
}

type backendClient interface {
	ListOpportunities(ctx context.Context, userID string) ([]record.Opportunity, error)
	CreateOpportunity(ctx context.Context, req upstream.CreateOpportunityRequest) (record.Opportunity, error)
	GetOpportunity(ctx context.Context, id, userID string) (record.Opportunity, error)
	UpdateOpportunity(ctx context.Context, id, userID string, patch json.RawMessage) (record.Opportunity, error)
	DeleteOpportunity(ctx context.Context, id, userID string) error
	ListInteractions(ctx context.Context, opportunityID string) ([]record.Interaction, error)
	CreateInteraction(ctx context.Context, req upstream.CreateInteractionRequest) (record.Interaction, error)
	DeleteInteraction(ctx context.Context, id, userID string) (json.RawMessage, error)
	GenerateStrategy(ctx context.Context, opportunityID string) (record.StrategyResult, error)
	LatestStrategy(ctx context.Context, opportunityID string) (record.StrategyResult, error)
	UpsertUser(ctx context.Context, req upstream.UpsertUserRequest) (record.UserProfile, error)
	GetUser(ctx context.Context, id string) (record.UserProfile, error)
	SearchOpportunities(ctx context.Context, userID, q string, limit int) ([]record.Opportunity, error)
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user identity.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (identity.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	Ping(ctx context.Context) error
}

type Service struct {
	cfg      config.Config
	identity *identity.Service
	sessions sessionStore
	backend  backendClient
}

func New(cfg config.Config, identitySvc *identity.Service, sessions sessionStore, backend backendClient) *Service {
	return &Service{
		cfg:      cfg,
		identity: identitySvc,
		sessions: sessions,
		backend:  backend,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.sessions.Ping(ctx)
}

// ── Identity and sessions ──

func (s *Service) SignUp(ctx context.Context, email, password, fullName string) (Session, error) {
	user, err := s.identity.SignUp(ctx, identity.SignUpRequest{
		Email:    email,
		Password: password,
		FullName: fullName,
	})
	if err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			return Session{}, domainError(http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
		}
		return Session{}, domainError(http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil)
	}
	s.syncProfile(ctx, user)
	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := s.identity.SignIn(ctx, email, password)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password", nil)
	}
	s.syncProfile(ctx, user)
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken != "" {
		return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) SessionFromToken(token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    claims.Sub,
		Email:     claims.Email,
		FullName:  claims.Name,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) issueSession(ctx context.Context, user identity.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Email: user.Email,
		Name:  user.FullName,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		Email:        user.Email,
		FullName:     user.FullName,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// syncProfile mirrors the identity into the record store so the backend can
// serve user lookups. Best effort; a down backend must not block login, but
// the failure is logged so it is never invisible.
func (s *Service) syncProfile(ctx context.Context, user identity.User) {
	if _, err := s.backend.UpsertUser(ctx, upstream.UpsertUserRequest{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
	}); err != nil {
		log.Printf("profile sync for %s failed: %v", user.ID, err)
	}
}

// ── Opportunities ──

func (s *Service) ListOpportunities(ctx context.Context, session Session) ([]record.Opportunity, error) {
	items, err := s.backend.ListOpportunities(ctx, session.UserID)
	if err != nil {
		return nil, mapBackendError(err)
	}
	if items == nil {
		items = []record.Opportunity{}
	}
	return items, nil
}

// CreateOpportunity validates required fields before touching the backend so
// a rejected create never persists anything.
func (s *Service) CreateOpportunity(ctx context.Context, session Session, input CreateOpportunityInput) (record.Opportunity, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(input.Email)
	if name == "" {
		return record.Opportunity{}, domainError(http.StatusBadRequest, "INVALID_INPUT", "name is required", nil)
	}
	if email == "" {
		return record.Opportunity{}, domainError(http.StatusBadRequest, "INVALID_INPUT", "email is required", nil)
	}

	status := strings.TrimSpace(input.Status)
	if status == "" {
		status = record.StatusNew
	}
	if !record.ValidStatus(status) {
		return record.Opportunity{}, domainError(http.StatusBadRequest, "INVALID_INPUT", "invalid status", nil)
	}

	value := 0.0
	if input.Value != nil {
		value = *input.Value
	}
	if value < 0 {
		return record.Opportunity{}, domainError(http.StatusBadRequest, "INVALID_INPUT", "value must not be negative", nil)
	}

	created, err := s.backend.CreateOpportunity(ctx, upstream.CreateOpportunityRequest{
		Name:   name,
		Email:  email,
		Status: status,
		Value:  value,
		UserID: session.UserID,
	})
	if err != nil {
		return record.Opportunity{}, mapBackendError(err)
	}
	return created, nil
}

func (s *Service) GetOpportunity(ctx context.Context, session Session, id string) (record.Opportunity, error) {
	opp, err := s.backend.GetOpportunity(ctx, id, session.UserID)
	if err != nil {
		return record.Opportunity{}, mapBackendError(err)
	}
	return opp, nil
}

func (s *Service) UpdateOpportunity(ctx context.Context, session Session, id string, patch json.RawMessage) (record.Opportunity, error) {
	var fields record.OpportunityPatch
	if err := json.Unmarshal(patch, &fields); err != nil {
		return record.Opportunity{}, domainError(http.StatusBadRequest, "INVALID_INPUT", "invalid JSON body", nil)
	}
	if fields.Status != nil && !record.ValidStatus(*fields.Status) {
		return record.Opportunity{}, domainError(http.StatusBadRequest, "INVALID_INPUT", "invalid status", nil)
	}
	if fields.Value != nil && *fields.Value < 0 {
		return record.Opportunity{}, domainError(http.StatusBadRequest, "INVALID_INPUT", "value must not be negative", nil)
	}

	updated, err := s.backend.UpdateOpportunity(ctx, id, session.UserID, patch)
	if err != nil {
		return record.Opportunity{}, mapBackendError(err)
	}
	return updated, nil
}

func (s *Service) DeleteOpportunity(ctx context.Context, session Session, id string) error {
	if err := s.backend.DeleteOpportunity(ctx, id, session.UserID); err != nil {
		return mapBackendError(err)
	}
	return nil
}

func (s *Service) SearchOpportunities(ctx context.Context, session Session, q string, limit int) ([]record.Opportunity, error) {
	items, err := s.backend.SearchOpportunities(ctx, session.UserID, q, limit)
	if err != nil {
		return nil, mapBackendError(err)
	}
	if items == nil {
		items = []record.Opportunity{}
	}
	return items, nil
}

// ── Interactions ──

// ListInteractions confirms the caller owns the opportunity, then returns
// that opportunity's interactions and nothing else. When the backend cannot
// filter, the full set is fetched and narrowed here.
func (s *Service) ListInteractions(ctx context.Context, session Session, opportunityID string) ([]record.Interaction, error) {
	if _, err := s.backend.GetOpportunity(ctx, opportunityID, session.UserID); err != nil {
		return nil, mapBackendError(err)
	}

	if s.cfg.BackendInteractionFilter {
		items, err := s.backend.ListInteractions(ctx, opportunityID)
		if err != nil {
			return nil, mapBackendError(err)
		}
		if items == nil {
			items = []record.Interaction{}
		}
		return items, nil
	}

	all, err := s.backend.ListInteractions(ctx, "")
	if err != nil {
		return nil, mapBackendError(err)
	}
	filtered := make([]record.Interaction, 0, len(all))
	for _, item := range all {
		if item.OpportunityID == opportunityID {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}

func (s *Service) CreateInteraction(ctx context.Context, session Session, opportunityID string, input CreateInteractionInput) (record.Interaction, error) {
	if !record.ValidInteractionType(input.Type) {
		return record.Interaction{}, domainError(http.StatusBadRequest, "INVALID_INPUT", "invalid interaction type", nil)
	}
	if strings.TrimSpace(input.Notes) == "" {
		return record.Interaction{}, domainError(http.StatusBadRequest, "INVALID_INPUT", "notes must not be empty", nil)
	}
	if _, err := s.backend.GetOpportunity(ctx, opportunityID, session.UserID); err != nil {
		return record.Interaction{}, mapBackendError(err)
	}

	created, err := s.backend.CreateInteraction(ctx, upstream.CreateInteractionRequest{
		OpportunityID: opportunityID,
		Type:          input.Type,
		Notes:         input.Notes,
	})
	if err != nil {
		return record.Interaction{}, mapBackendError(err)
	}
	return created, nil
}

// DeleteInteraction returns the backend's response body untouched.
func (s *Service) DeleteInteraction(ctx context.Context, session Session, id string) (json.RawMessage, error) {
	payload, err := s.backend.DeleteInteraction(ctx, id, session.UserID)
	if err != nil {
		return nil, mapBackendError(err)
	}
	return payload, nil
}

// ── AI assist ──

// GenerateAssist triggers a fresh backend analysis and re-keys the result.
func (s *Service) GenerateAssist(ctx context.Context, opportunityID string) (AssistPayload, error) {
	result, err := s.backend.GenerateStrategy(ctx, opportunityID)
	if err != nil {
		return AssistPayload{}, mapBackendError(err)
	}
	return toAssistPayload(result), nil
}

// LatestAssist returns the stored analysis without triggering generation.
func (s *Service) LatestAssist(ctx context.Context, opportunityID string) (AssistPayload, error) {
	result, err := s.backend.LatestStrategy(ctx, opportunityID)
	if err != nil {
		return AssistPayload{}, mapBackendError(err)
	}
	return toAssistPayload(result), nil
}

func toAssistPayload(result record.StrategyResult) AssistPayload {
	return AssistPayload{
		Summary:           result.Summary,
		SuggestedNextStep: result.NextStep,
		Urgency:           result.Sentiment,
		TacticalAdvice:    result.TacticalAdvice,
		CreatedAt:         result.CreatedAt,
	}
}

// ── Profiles ──

func (s *Service) GetProfile(ctx context.Context, session Session) (record.UserProfile, error) {
	profile, err := s.backend.GetUser(ctx, session.UserID)
	if err != nil {
		return record.UserProfile{}, mapBackendError(err)
	}
	return profile, nil
}

func (s *Service) SyncProfile(ctx context.Context, session Session) (record.UserProfile, error) {
	profile, err := s.backend.UpsertUser(ctx, upstream.UpsertUserRequest{
		ID:       session.UserID,
		Email:    session.Email,
		FullName: session.FullName,
	})
	if err != nil {
		return record.UserProfile{}, mapBackendError(err)
	}
	return profile, nil
}

// mapBackendError folds transport failure into a generic unavailable error
// and preserves backend rejections with their original status and detail.
// Backend 404s stay 404; a caller cannot tell a missing record from one
// owned by somebody else.
func mapBackendError(err error) error {
	var statusErr *upstream.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Status == http.StatusNotFound {
			return domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		}
		message := statusErr.Detail
		if message == "" {
			message = "Backend rejected the request"
		}
		return domainError(statusErr.Status, "UPSTREAM_REJECTED", message, nil)
	}
	if errors.Is(err, upstream.ErrUnavailable) {
		return domainError(http.StatusInternalServerError, "UPSTREAM_UNAVAILABLE", "Backend unavailable", nil)
	}
	return err
}
