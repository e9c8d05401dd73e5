package record

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"crmlite/api/internal/util"
)

// ValidationError is reported to callers with its message intact, so the
// proxy can pass actionable form feedback through verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Indexer receives opportunity changes for search indexing. Implementations
// must not block; failures are logged, never surfaced to the caller.
type Indexer interface {
	IndexOpportunity(opp Opportunity)
	DeleteOpportunity(id string)
}

// Service owns record semantics: validation, id assignment, timestamps,
// ownership scoping, and strategy generation.
type Service struct {
	store     Store
	generator Generator
	indexer   Indexer

	// genLocks serializes strategy generation per opportunity. Concurrent
	// analyze triggers from clients are not deduplicated upstream; this is
	// where at-most-one-in-flight is enforced.
	genMu    sync.Mutex
	genLocks map[string]*sync.Mutex
}

func NewService(store Store, generator Generator, indexer Indexer) *Service {
	if generator == nil {
		generator = HeuristicGenerator{}
	}
	return &Service{
		store:     store,
		generator: generator,
		indexer:   indexer,
		genLocks:  make(map[string]*sync.Mutex),
	}
}

func (s *Service) ListOpportunities(ctx context.Context, ownerID string) ([]Opportunity, error) {
	return s.store.ListOpportunities(ctx, ownerID)
}

func (s *Service) GetOpportunity(ctx context.Context, id, ownerID string) (Opportunity, error) {
	return s.store.GetOpportunity(ctx, id, ownerID)
}

type CreateOpportunityInput struct {
	Name    string
	Email   string
	Status  string
	Value   float64
	OwnerID string
}

func (s *Service) CreateOpportunity(ctx context.Context, input CreateOpportunityInput) (Opportunity, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(input.Email)
	if name == "" {
		return Opportunity{}, validationError("name is required")
	}
	if email == "" {
		return Opportunity{}, validationError("email is required")
	}
	status := input.Status
	if status == "" {
		status = StatusNew
	}
	if !ValidStatus(status) {
		return Opportunity{}, validationError("invalid status %q", status)
	}
	if input.Value < 0 {
		return Opportunity{}, validationError("value must be non-negative")
	}

	now := time.Now().UTC()
	opp := Opportunity{
		ID:        util.NewID("opp"),
		Name:      name,
		Email:     email,
		Status:    status,
		Value:     input.Value,
		OwnerID:   input.OwnerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateOpportunity(ctx, opp); err != nil {
		return Opportunity{}, err
	}
	if s.indexer != nil {
		s.indexer.IndexOpportunity(opp)
	}
	return opp, nil
}

func (s *Service) UpdateOpportunity(ctx context.Context, id, ownerID string, patch OpportunityPatch) (Opportunity, error) {
	if patch.Status != nil && !ValidStatus(*patch.Status) {
		return Opportunity{}, validationError("invalid status %q", *patch.Status)
	}
	if patch.Value != nil && *patch.Value < 0 {
		return Opportunity{}, validationError("value must be non-negative")
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return Opportunity{}, validationError("name cannot be empty")
	}
	if patch.Email != nil && strings.TrimSpace(*patch.Email) == "" {
		return Opportunity{}, validationError("email cannot be empty")
	}
	opp, err := s.store.UpdateOpportunity(ctx, id, ownerID, patch)
	if err != nil {
		return Opportunity{}, err
	}
	if s.indexer != nil {
		s.indexer.IndexOpportunity(opp)
	}
	return opp, nil
}

func (s *Service) DeleteOpportunity(ctx context.Context, id, ownerID string) error {
	if err := s.store.DeleteOpportunity(ctx, id, ownerID); err != nil {
		return err
	}
	if s.indexer != nil {
		s.indexer.DeleteOpportunity(id)
	}
	return nil
}

func (s *Service) ListInteractions(ctx context.Context, opportunityID string) ([]Interaction, error) {
	return s.store.ListInteractions(ctx, opportunityID)
}

type CreateInteractionInput struct {
	OpportunityID string
	Type          string
	Notes         string
}

func (s *Service) CreateInteraction(ctx context.Context, input CreateInteractionInput) (Interaction, error) {
	if !ValidInteractionType(input.Type) {
		return Interaction{}, validationError("invalid interaction type %q", input.Type)
	}
	if strings.TrimSpace(input.Notes) == "" {
		return Interaction{}, validationError("notes are required")
	}
	if _, err := s.store.GetOpportunity(ctx, input.OpportunityID, ""); err != nil {
		return Interaction{}, err
	}

	interaction := Interaction{
		ID:            util.NewID("int"),
		OpportunityID: input.OpportunityID,
		Type:          input.Type,
		Notes:         input.Notes,
		Timestamp:     time.Now().UTC(),
	}
	if err := s.store.CreateInteraction(ctx, interaction); err != nil {
		return Interaction{}, err
	}
	return interaction, nil
}

// DeleteInteraction removes an interaction. When ownerID is supplied, the
// parent opportunity must belong to that identity; a foreign parent reads as
// not found, same as a missing interaction.
func (s *Service) DeleteInteraction(ctx context.Context, id, ownerID string) error {
	interaction, err := s.store.GetInteraction(ctx, id)
	if err != nil {
		return err
	}
	if ownerID != "" {
		if _, err := s.store.GetOpportunity(ctx, interaction.OpportunityID, ownerID); err != nil {
			return err
		}
	}
	return s.store.DeleteInteraction(ctx, id)
}

// GenerateStrategy produces a fresh analysis and persists it as the new
// latest result for the opportunity. Generation for one opportunity is
// serialized; callers racing each other each still get a full generation.
func (s *Service) GenerateStrategy(ctx context.Context, opportunityID string) (StrategyResult, error) {
	lock := s.generationLock(opportunityID)
	lock.Lock()
	defer lock.Unlock()

	opp, err := s.store.GetOpportunity(ctx, opportunityID, "")
	if err != nil {
		return StrategyResult{}, err
	}
	interactions, err := s.store.ListInteractions(ctx, opportunityID)
	if err != nil {
		return StrategyResult{}, err
	}

	result, err := s.generator.Generate(ctx, opp, interactions)
	if err != nil {
		return StrategyResult{}, fmt.Errorf("generate strategy: %w", err)
	}
	result.OpportunityID = opportunityID
	result.CreatedAt = time.Now().UTC()

	if err := s.store.SaveStrategy(ctx, result); err != nil {
		return StrategyResult{}, err
	}
	return result, nil
}

// LatestStrategy is a pure read. It never triggers generation.
func (s *Service) LatestStrategy(ctx context.Context, opportunityID string) (StrategyResult, error) {
	return s.store.LatestStrategy(ctx, opportunityID)
}

func (s *Service) generationLock(opportunityID string) *sync.Mutex {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	lock, ok := s.genLocks[opportunityID]
	if !ok {
		lock = &sync.Mutex{}
		s.genLocks[opportunityID] = lock
	}
	return lock
}

type UpsertUserInput struct {
	ID       string
	Email    string
	FullName string
}

func (s *Service) UpsertUserProfile(ctx context.Context, input UpsertUserInput) (UserProfile, error) {
	if strings.TrimSpace(input.ID) == "" {
		return UserProfile{}, validationError("id is required")
	}
	return s.store.UpsertUserProfile(ctx, UserProfile{
		ID:       input.ID,
		Email:    strings.TrimSpace(input.Email),
		FullName: strings.TrimSpace(input.FullName),
	})
}

func (s *Service) GetUserProfile(ctx context.Context, id string) (UserProfile, error) {
	return s.store.GetUserProfile(ctx, id)
}

func (s *Service) SearchOpportunities(ctx context.Context, ownerID, query string, limit int) ([]Opportunity, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.SearchOpportunities(ctx, ownerID, query, limit)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// IsNotFound reports whether err is the store's not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
