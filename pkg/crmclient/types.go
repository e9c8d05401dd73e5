// Package crmclient is the Go client for the sync proxy. It wraps the HTTP
// API with a stale-while-revalidate resource cache and a state machine for
// the AI assist panel, so embedders get deduplicated fetches and consistent
// loading states without wiring either themselves.
package crmclient

import "time"

type Opportunity struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	Value     float64   `json:"value"`
	OwnerID   string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type OpportunityPatch struct {
	Name   *string  `json:"name,omitempty"`
	Email  *string  `json:"email,omitempty"`
	Status *string  `json:"status,omitempty"`
	Value  *float64 `json:"value,omitempty"`
}

type Interaction struct {
	ID            string    `json:"id"`
	OpportunityID string    `json:"opportunity_id"`
	Type          string    `json:"type"`
	Notes         string    `json:"notes"`
	Timestamp     time.Time `json:"timestamp"`
}

// Assist is one analysis result for an opportunity. A newer result fully
// replaces an older one.
type Assist struct {
	Summary           string    `json:"summary"`
	SuggestedNextStep string    `json:"suggestedNextStep"`
	Urgency           string    `json:"urgency"`
	TacticalAdvice    string    `json:"tacticalAdvice"`
	CreatedAt         time.Time `json:"created_at"`
}

type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
}

type Session struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
	UserName     string `json:"userName"`
	Email        string `json:"email"`
	ExpiresAt    int64  `json:"expiresAt"`
}
