package record

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps all records in process memory. It is the development and
// test backend; PostgresStore is the durable one.
type MemoryStore struct {
	mu            sync.RWMutex
	opportunities map[string]Opportunity
	interactions  map[string]Interaction
	strategies    map[string]StrategyResult
	profiles      map[string]UserProfile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		opportunities: make(map[string]Opportunity),
		interactions:  make(map[string]Interaction),
		strategies:    make(map[string]StrategyResult),
		profiles:      make(map[string]UserProfile),
	}
}

// nextTimestamp returns a mutation timestamp strictly after prev, so
// updated_at increases even when the clock does not.
func nextTimestamp(prev time.Time) time.Time {
	now := time.Now().UTC()
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}

func (m *MemoryStore) ListOpportunities(_ context.Context, ownerID string) ([]Opportunity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Opportunity, 0, len(m.opportunities))
	for _, opp := range m.opportunities {
		if ownerID != "" && opp.OwnerID != ownerID {
			continue
		}
		out = append(out, opp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) GetOpportunity(_ context.Context, id, ownerID string) (Opportunity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	opp, ok := m.opportunities[id]
	if !ok || (ownerID != "" && opp.OwnerID != ownerID) {
		return Opportunity{}, ErrNotFound
	}
	return opp, nil
}

func (m *MemoryStore) CreateOpportunity(_ context.Context, opp Opportunity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opportunities[opp.ID] = opp
	return nil
}

func (m *MemoryStore) UpdateOpportunity(_ context.Context, id, ownerID string, patch OpportunityPatch) (Opportunity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	opp, ok := m.opportunities[id]
	if !ok || (ownerID != "" && opp.OwnerID != ownerID) {
		return Opportunity{}, ErrNotFound
	}
	if patch.Name != nil {
		opp.Name = *patch.Name
	}
	if patch.Email != nil {
		opp.Email = *patch.Email
	}
	if patch.Status != nil {
		opp.Status = *patch.Status
	}
	if patch.Value != nil {
		opp.Value = *patch.Value
	}
	opp.UpdatedAt = nextTimestamp(opp.UpdatedAt)
	m.opportunities[id] = opp
	return opp, nil
}

func (m *MemoryStore) DeleteOpportunity(_ context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	opp, ok := m.opportunities[id]
	if !ok || (ownerID != "" && opp.OwnerID != ownerID) {
		return ErrNotFound
	}
	delete(m.opportunities, id)
	for intID, interaction := range m.interactions {
		if interaction.OpportunityID == id {
			delete(m.interactions, intID)
		}
	}
	delete(m.strategies, id)
	return nil
}

func (m *MemoryStore) ListInteractions(_ context.Context, opportunityID string) ([]Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Interaction, 0, len(m.interactions))
	for _, interaction := range m.interactions {
		if opportunityID != "" && interaction.OpportunityID != opportunityID {
			continue
		}
		out = append(out, interaction)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryStore) CreateInteraction(_ context.Context, interaction Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactions[interaction.ID] = interaction
	return nil
}

func (m *MemoryStore) GetInteraction(_ context.Context, id string) (Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	interaction, ok := m.interactions[id]
	if !ok {
		return Interaction{}, ErrNotFound
	}
	return interaction, nil
}

func (m *MemoryStore) DeleteInteraction(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.interactions[id]; !ok {
		return ErrNotFound
	}
	delete(m.interactions, id)
	return nil
}

func (m *MemoryStore) SaveStrategy(_ context.Context, result StrategyResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strategies[result.OpportunityID] = result
	return nil
}

func (m *MemoryStore) LatestStrategy(_ context.Context, opportunityID string) (StrategyResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result, ok := m.strategies[opportunityID]
	if !ok {
		return StrategyResult{}, ErrNotFound
	}
	return result, nil
}

func (m *MemoryStore) UpsertUserProfile(_ context.Context, profile UserProfile) (UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.profiles[profile.ID]; ok {
		existing.Email = profile.Email
		existing.FullName = profile.FullName
		m.profiles[profile.ID] = existing
		return existing, nil
	}
	profile.CreatedAt = time.Now().UTC()
	m.profiles[profile.ID] = profile
	return profile, nil
}

func (m *MemoryStore) GetUserProfile(_ context.Context, id string) (UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	profile, ok := m.profiles[id]
	if !ok {
		return UserProfile{}, ErrNotFound
	}
	return profile, nil
}

func (m *MemoryStore) SearchOpportunities(_ context.Context, ownerID, query string, limit int) ([]Opportunity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(query))
	out := make([]Opportunity, 0)
	for _, opp := range m.opportunities {
		if ownerID != "" && opp.OwnerID != ownerID {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(opp.Name), needle) &&
			!strings.Contains(strings.ToLower(opp.Email), needle) {
			continue
		}
		out = append(out, opp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }
