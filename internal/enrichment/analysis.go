// Package enrichment turns entries into enrichment records: LU analysis with
// closed-vocabulary validation, a deterministic local fallback, and the
// single-consumer queue that drives both.
package enrichment

import (
	"leannotes/internal/model"
)

// Baseline confidences.
const (
	// fallbackMatched: a keyword or rule supported the fallback value
	fallbackMatched = 0.5
	// fallbackDefault: the fallback value is a default
	fallbackDefault = 0.3
	// llmDefault: LU returned a field without a confidence
	llmDefault = 0.7

	metricEventConfidence  = 0.75
	keywordEventConfidence = 0.65

	// PromotedConfidence is the floor for candidates whose phrase was promoted.
	PromotedConfidence = 0.9
)

// Analysis is a validated extraction result, ready to persist.
type Analysis struct {
	Emotion    model.Emotion
	Themes     []model.Theme
	People     []model.Person
	Urgency    model.Urgency
	Actions    []string
	Questions  []string
	Decisions  []string
	Events     []model.CandidateEvent
	Confidence map[string]float64
	Method     model.EnrichmentMethod
}

// Record copies the analysis into rec, leaving identity and status alone.
func (a *Analysis) Record(rec *model.EnrichmentRecord) {
	rec.Emotion = a.Emotion
	rec.Themes = a.Themes
	rec.People = a.People
	rec.Urgency = a.Urgency
	rec.Actions = a.Actions
	rec.Questions = a.Questions
	rec.Decisions = a.Decisions
	rec.Confidence = a.Confidence
	rec.Method = a.Method
}
