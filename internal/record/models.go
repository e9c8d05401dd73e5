package record

import "time"

// OpportunityStatus values form the sales pipeline.
const (
	StatusNew       = "New"
	StatusContacted = "Contacted"
	StatusFollowUp  = "Follow-Up"
	StatusWon       = "Won"
	StatusLost      = "Lost"
)

var allowedStatuses = map[string]struct{}{
	StatusNew:       {},
	StatusContacted: {},
	StatusFollowUp:  {},
	StatusWon:       {},
	StatusLost:      {},
}

func ValidStatus(status string) bool {
	_, ok := allowedStatuses[status]
	return ok
}

// Interaction types.
const (
	TypePhoneCall    = "Phone Call"
	TypeEmailSent    = "Email Sent"
	TypeMeetingNotes = "Meeting Notes"
	TypeCustomNote   = "Custom Note"
)

var allowedInteractionTypes = map[string]struct{}{
	TypePhoneCall:    {},
	TypeEmailSent:    {},
	TypeMeetingNotes: {},
	TypeCustomNote:   {},
}

func ValidInteractionType(kind string) bool {
	_, ok := allowedInteractionTypes[kind]
	return ok
}

// Opportunity is a lead tracked through the status pipeline. OwnerID is set
// at creation and never changes; every read is scoped to it.
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

// OpportunityPatch carries a partial update. Nil fields are left untouched.
type OpportunityPatch struct {
	Name   *string  `json:"name"`
	Email  *string  `json:"email"`
	Status *string  `json:"status"`
	Value  *float64 `json:"value"`
}

// Interaction is an immutable logged touchpoint. There is no update
// operation; interactions only ever get created or deleted.
type Interaction struct {
	ID            string    `json:"id"`
	OpportunityID string    `json:"opportunity_id"`
	Type          string    `json:"type"`
	Notes         string    `json:"notes"`
	Timestamp     time.Time `json:"timestamp"`
}

// StrategyResult is the latest AI analysis for one opportunity. A new
// generation supersedes the prior result; they are never merged.
type StrategyResult struct {
	OpportunityID  string    `json:"opportunity_id"`
	Summary        string    `json:"summary"`
	NextStep       string    `json:"next_step"`
	Sentiment      string    `json:"sentiment"`
	TacticalAdvice string    `json:"tactical_advice"`
	CreatedAt      time.Time `json:"created_at"`
}

// UserProfile mirrors the identity provider's view of a user into the record
// store, synced by the proxy after login.
type UserProfile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
}
