package record

import (
	"context"
	"fmt"
	"time"
)

// Generator produces a sales strategy for an opportunity. The default is the
// deterministic HeuristicGenerator; an LLM-backed implementation can be
// injected without touching the service.
type Generator interface {
	Generate(ctx context.Context, opp Opportunity, interactions []Interaction) (StrategyResult, error)
}

// HeuristicGenerator derives a strategy from pipeline status, deal value,
// and interaction recency. Output is stable for the same inputs, which keeps
// the supersede semantics testable.
type HeuristicGenerator struct{}

func (HeuristicGenerator) Generate(_ context.Context, opp Opportunity, interactions []Interaction) (StrategyResult, error) {
	sentiment := sentimentFor(opp, interactions)
	return StrategyResult{
		Summary:        summaryFor(opp, interactions),
		NextStep:       nextStepFor(opp, interactions),
		Sentiment:      sentiment,
		TacticalAdvice: tacticalAdviceFor(opp, interactions),
	}, nil
}

func sentimentFor(opp Opportunity, interactions []Interaction) string {
	switch opp.Status {
	case StatusWon:
		return "HOT - deal closed, protect the relationship"
	case StatusLost:
		return "COOL - deal lost, nurture for a future cycle"
	}
	if len(interactions) == 0 {
		return "COOL - no touchpoints logged yet"
	}
	// interactions arrive newest first
	age := time.Since(interactions[0].Timestamp)
	switch {
	case age < 7*24*time.Hour:
		return "HOT - active conversation within the last week"
	case age < 30*24*time.Hour:
		return "WARM - contact within the last month, momentum fading"
	default:
		return "COOL - no contact in over a month"
	}
}

func summaryFor(opp Opportunity, interactions []Interaction) string {
	if len(interactions) == 0 {
		return fmt.Sprintf("%s (%s) is in stage %q with no logged touchpoints. The relationship has not started yet.",
			opp.Name, opp.Email, opp.Status)
	}
	last := interactions[0]
	return fmt.Sprintf("%s is in stage %q across %d touchpoints. Most recent: %s on %s.",
		opp.Name, opp.Status, len(interactions), last.Type, last.Timestamp.Format("Jan 2, 2006"))
}

func nextStepFor(opp Opportunity, interactions []Interaction) string {
	switch opp.Status {
	case StatusNew:
		return "Make first contact: a short intro call to qualify the lead."
	case StatusContacted:
		return "Send a tailored follow-up referencing the last conversation and propose a demo."
	case StatusFollowUp:
		if opp.Value >= 10000 {
			return "High-value deal in follow-up: schedule a decision-maker meeting this week."
		}
		return "Confirm next steps in writing and set a concrete close date."
	case StatusWon:
		return "Kick off onboarding and ask for a referral while goodwill is high."
	case StatusLost:
		return "Log the loss reason and schedule a re-engagement check-in next quarter."
	}
	if len(interactions) == 0 {
		return "Log the first interaction to establish a baseline."
	}
	return "Review the latest notes and pick one concrete commitment to ask for."
}

func tacticalAdviceFor(opp Opportunity, interactions []Interaction) string {
	if len(interactions) == 0 {
		return "Research the account before reaching out; an informed opener doubles reply rates."
	}
	switch interactions[0].Type {
	case TypePhoneCall:
		return "Follow the call with a same-day recap email capturing commitments made on both sides."
	case TypeEmailSent:
		return "Email alone rarely closes: move the thread toward a live conversation."
	case TypeMeetingNotes:
		return "Convert meeting momentum into a dated next step before it cools."
	default:
		return fmt.Sprintf("Turn the latest note into an action item and share it with %s.", opp.Name)
	}
}
