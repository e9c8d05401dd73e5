package record

import (
	"context"
	"errors"
)

// ErrNotFound covers both a missing record and one owned by someone else.
// Callers cannot tell the two apart, so ownership never leaks existence.
var ErrNotFound = errors.New("record not found")

// Store is the persistence interface for the record service. ownerID scopes
// reads and writes to one identity; the empty string means unscoped and is
// reserved for operations where the caller carries no identity.
type Store interface {
	ListOpportunities(ctx context.Context, ownerID string) ([]Opportunity, error)
	GetOpportunity(ctx context.Context, id, ownerID string) (Opportunity, error)
	CreateOpportunity(ctx context.Context, opp Opportunity) error
	UpdateOpportunity(ctx context.Context, id, ownerID string, patch OpportunityPatch) (Opportunity, error)
	// DeleteOpportunity removes the opportunity and cascades to every
	// interaction referencing it.
	DeleteOpportunity(ctx context.Context, id, ownerID string) error

	// ListInteractions returns all interactions, newest first. A non-empty
	// opportunityID filters to that opportunity.
	ListInteractions(ctx context.Context, opportunityID string) ([]Interaction, error)
	CreateInteraction(ctx context.Context, interaction Interaction) error
	GetInteraction(ctx context.Context, id string) (Interaction, error)
	DeleteInteraction(ctx context.Context, id string) error

	SaveStrategy(ctx context.Context, result StrategyResult) error
	LatestStrategy(ctx context.Context, opportunityID string) (StrategyResult, error)

	UpsertUserProfile(ctx context.Context, profile UserProfile) (UserProfile, error)
	GetUserProfile(ctx context.Context, id string) (UserProfile, error)

	SearchOpportunities(ctx context.Context, ownerID, query string, limit int) ([]Opportunity, error)

	Ping(ctx context.Context) error
}
