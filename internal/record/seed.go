package record

import (
	"context"
	"time"
)

// SeedDemo loads the demo data set for ownerID. Existing records are left
// alone; seeding is skipped when the owner already has opportunities.
func (s *Service) SeedDemo(ctx context.Context, ownerID string) error {
	existing, err := s.store.ListOpportunities(ctx, ownerID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	ts := func(value string) time.Time {
		t, _ := time.Parse(time.RFC3339, value)
		return t
	}

	opportunities := []Opportunity{
		{ID: "opp_1", Name: "John Doe", Email: "john@email.com", Status: StatusContacted, Value: 1200,
			CreatedAt: ts("2026-01-15T10:00:00Z"), UpdatedAt: ts("2026-02-01T14:30:00Z")},
		{ID: "opp_2", Name: "Jane Smith", Email: "jane@company.com", Status: StatusNew, Value: 4500,
			CreatedAt: ts("2026-02-05T09:00:00Z"), UpdatedAt: ts("2026-02-05T09:00:00Z")},
		{ID: "opp_3", Name: "Acme Corp", Email: "deals@acme.com", Status: StatusFollowUp, Value: 12000,
			CreatedAt: ts("2026-01-20T11:00:00Z"), UpdatedAt: ts("2026-02-10T16:00:00Z")},
		{ID: "opp_4", Name: "Sarah Lee", Email: "sarah@startup.io", Status: StatusWon, Value: 8500,
			CreatedAt: ts("2025-12-10T08:00:00Z"), UpdatedAt: ts("2026-01-30T12:00:00Z")},
		{ID: "opp_5", Name: "Bob Williams", Email: "bob@enterprise.co", Status: StatusLost, Value: 3200,
			CreatedAt: ts("2026-01-05T15:00:00Z"), UpdatedAt: ts("2026-02-08T10:00:00Z")},
	}

	interactions := []Interaction{
		{ID: "int_1", OpportunityID: "opp_1", Type: TypePhoneCall,
			Notes:     "Client interested in our premium plan. Asked about pricing tiers and custom integrations.",
			Timestamp: ts("2026-01-20T10:00:00Z")},
		{ID: "int_2", OpportunityID: "opp_1", Type: TypeEmailSent,
			Notes:     "Sent detailed pricing breakdown with comparison chart. Highlighted annual discount.",
			Timestamp: ts("2026-01-22T14:00:00Z")},
		{ID: "int_3", OpportunityID: "opp_1", Type: TypeMeetingNotes,
			Notes:     "Had a 30-min demo call. Client is price-sensitive but impressed with features. Needs to discuss with their team.",
			Timestamp: ts("2026-01-28T11:00:00Z")},
		{ID: "int_4", OpportunityID: "opp_3", Type: TypePhoneCall,
			Notes:     "Initial discovery call. Acme needs a solution for 200+ employees. Current provider contract ends in March.",
			Timestamp: ts("2026-01-25T09:00:00Z")},
		{ID: "int_5", OpportunityID: "opp_3", Type: TypeEmailSent,
			Notes:     "Sent enterprise proposal with volume pricing. Included case studies from similar companies.",
			Timestamp: ts("2026-02-02T16:00:00Z")},
		{ID: "int_6", OpportunityID: "opp_3", Type: TypeCustomNote,
			Notes:     "Decision maker is the CTO. They have budget approval for Q1. Need to follow up before March 1st.",
			Timestamp: ts("2026-02-08T10:00:00Z")},
		{ID: "int_7", OpportunityID: "opp_4", Type: TypePhoneCall,
			Notes:     "Sarah loved the product demo. Wants to onboard her entire team of 15.",
			Timestamp: ts("2025-12-20T13:00:00Z")},
		{ID: "int_8", OpportunityID: "opp_4", Type: TypeMeetingNotes,
			Notes:     "Closed the deal! Signed annual contract. Sarah will be our champion for referrals.",
			Timestamp: ts("2026-01-30T12:00:00Z")},
	}

	for _, opp := range opportunities {
		opp.OwnerID = ownerID
		if err := s.store.CreateOpportunity(ctx, opp); err != nil {
			return err
		}
		if s.indexer != nil {
			s.indexer.IndexOpportunity(opp)
		}
	}
	for _, interaction := range interactions {
		if err := s.store.CreateInteraction(ctx, interaction); err != nil {
			return err
		}
	}
	return nil
}
