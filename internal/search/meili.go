// Package search provides Meilisearch-backed opportunity search. The record
// store remains the fallback when Meilisearch is absent or unhealthy.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"crmlite/api/internal/record"
	meili "github.com/meilisearch/meilisearch-go"
)

const idxOpportunities = "crmlite_opportunities"

// OpportunityRecord is the data we index for an opportunity.
type OpportunityRecord struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Status  string  `json:"status"`
	Value   float64 `json:"value"`
	OwnerID string  `json:"ownerId"`
}

// Meili indexes and searches opportunities via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the opportunity index.
// The client starts unhealthy if the initial connection fails; a background
// loop keeps probing so search recovers without a restart.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxOpportunities,
		PrimaryKey: "id",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxOpportunities, err)
	}

	index := m.client.Index(idxOpportunities)
	filterable := []interface{}{"ownerId", "status"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs: %v", err)
	}
	searchable := []string{"name", "email"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs: %v", err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the opportunity index scoped to ownerID. Results carry only
// indexed fields; callers needing full records re-read from the store.
func (m *Meili) Search(_ context.Context, ownerID, query string, limit int) ([]record.Opportunity, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}
	if limit <= 0 {
		limit = 20
	}

	request := &meili.SearchRequest{
		Limit: int64(limit),
	}
	if ownerID != "" {
		request.Filter = []string{fmt.Sprintf("ownerId = %q", ownerID)}
	}

	resp, err := m.client.Index(idxOpportunities).Search(query, request)
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	results := make([]record.Opportunity, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		results = append(results, record.Opportunity{
			ID:      decodeString(hit, "id"),
			Name:    decodeString(hit, "name"),
			Email:   decodeString(hit, "email"),
			Status:  decodeString(hit, "status"),
			Value:   decodeFloat(hit, "value"),
			OwnerID: decodeString(hit, "ownerId"),
		})
	}
	return results, nil
}

// IndexOpportunity adds or updates an opportunity in the index.
// Fire-and-forget: failures are logged, never surfaced.
func (m *Meili) IndexOpportunity(opp record.Opportunity) {
	if !m.healthy.Load() {
		return
	}
	go func() {
		doc := OpportunityRecord{
			ID:      opp.ID,
			Name:    opp.Name,
			Email:   opp.Email,
			Status:  opp.Status,
			Value:   opp.Value,
			OwnerID: opp.OwnerID,
		}
		if _, err := m.client.Index(idxOpportunities).AddDocuments([]OpportunityRecord{doc}, nil); err != nil {
			log.Printf("search: index opportunity %s: %v", opp.ID, err)
		}
	}()
}

// DeleteOpportunity removes an opportunity from the index.
func (m *Meili) DeleteOpportunity(id string) {
	if !m.healthy.Load() {
		return
	}
	go func() {
		if _, err := m.client.Index(idxOpportunities).DeleteDocument(id, nil); err != nil {
			log.Printf("search: delete opportunity %s: %v", id, err)
		}
	}()
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFloat(hit meili.Hit, key string) float64 {
	raw, ok := hit[key]
	if !ok {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	return 0
}
