package model

import "time"

// CandidateEvent is an extraction proposal, before confidence banding.
type CandidateEvent struct {
	Category    EventCategory      `json:"category"`
	Subtype     string             `json:"subtype"`
	Phrase      string             `json:"phrase"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	TextMetrics map[string]string  `json:"text_metrics,omitempty"`
	Tags        []string           `json:"tags,omitempty"`
	Confidence  float64            `json:"confidence"`
	Method      EnrichmentMethod   `json:"method"`
}

type Event struct {
	ID          string             `json:"id"`
	EntryID     string             `json:"entry_id"`
	Category    EventCategory      `json:"category"`
	Subtype     string             `json:"subtype"`
	Metrics     map[string]float64 `json:"metrics"`
	TextMetrics map[string]string  `json:"text_metrics"`
	Tags        []string           `json:"tags"`
	Confidence  float64            `json:"confidence"`
	Method      EnrichmentMethod   `json:"method"`
	OccurredAt  time.Time          `json:"occurred_at"`
	CreatedAt   time.Time          `json:"created_at"`
}

type UserAction string

const (
	UserActionPending   UserAction = "pending"
	UserActionValidated UserAction = "validated"
	UserActionRejected  UserAction = "rejected"
)

type PhrasePattern struct {
	ID         string        `json:"id"`
	Normalized string        `json:"normalized"`
	Phrase     string        `json:"phrase"`
	Category   EventCategory `json:"category"`
	UsageCount int           `json:"usage_count"`
	FirstSeen  time.Time     `json:"first_seen"`
	LastSeen   time.Time     `json:"last_seen"`
	UserAction UserAction    `json:"user_action"`
	Promoted   bool          `json:"promoted"`
	PromotedAt *time.Time    `json:"promoted_at,omitempty"`
}
