package model

import "time"

type EnrichmentStatus string

const (
	EnrichmentPending    EnrichmentStatus = "pending"
	EnrichmentProcessing EnrichmentStatus = "processing"
	EnrichmentComplete   EnrichmentStatus = "complete"
	EnrichmentFailed     EnrichmentStatus = "failed"
)

type EnrichmentMethod string

const (
	MethodLLM      EnrichmentMethod = "llm"
	MethodFallback EnrichmentMethod = "fallback"
	// MethodMixed: llm response with one or more fields replaced by fallback values
	MethodMixed EnrichmentMethod = "mixed"
)

// Confidence map keys.
const (
	FieldEmotion   = "emotion"
	FieldThemes    = "themes"
	FieldPeople    = "people"
	FieldUrgency   = "urgency"
	FieldActions   = "actions"
	FieldQuestions = "questions"
	FieldDecisions = "decisions"
)

type Person struct {
	Name      string    `json:"name"`
	Context   string    `json:"context,omitempty"`
	Sentiment Sentiment `json:"sentiment"`
}

type EnrichmentRecord struct {
	ID           string             `json:"id"`
	EntryID      string             `json:"entry_id"`
	EntryVersion int64              `json:"entry_version"`
	Emotion      Emotion            `json:"emotion"`
	Themes       []Theme            `json:"themes"`
	People       []Person           `json:"people"`
	Urgency      Urgency            `json:"urgency"`
	Actions      []string           `json:"actions"`
	Questions    []string           `json:"questions"`
	Decisions    []string           `json:"decisions"`
	Confidence   map[string]float64 `json:"confidence"`
	Status       EnrichmentStatus   `json:"status"`
	Method       EnrichmentMethod   `json:"method"`
	Error        string             `json:"error,omitempty"`
	Duration     time.Duration      `json:"duration"`
	CreatedAt    time.Time          `json:"created_at"`
}

// Enriched pairs an entry with its completed enrichment, as consumed by the
// pattern engine.
type Enriched struct {
	Entry  *Entry
	Record *EnrichmentRecord
}
