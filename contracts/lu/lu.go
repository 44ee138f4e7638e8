// Package lu holds the request/response contract of the language-understanding
// capability. Values are raw strings; validation against the closed
// vocabularies happens on the consuming side.
package lu

type AnalyzeRequest struct {
	Text    string `json:"text"`
	Context string `json:"context,omitempty"`
}

type Person struct {
	Name      string `json:"name"`
	Context   string `json:"context,omitempty"`
	Sentiment string `json:"sentiment,omitempty"`
}

type CandidateEvent struct {
	Type        string             `json:"type"`
	Subtype     string             `json:"subtype,omitempty"`
	Phrase      string             `json:"phrase,omitempty"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	TextMetrics map[string]string  `json:"text_metrics,omitempty"`
	Confidence  float64            `json:"confidence"`
}

type AnalyzeResponse struct {
	Emotion         string             `json:"emotion"`
	Themes          []string           `json:"themes"`
	People          []Person           `json:"people"`
	Urgency         string             `json:"urgency"`
	Actions         []string           `json:"actions"`
	Questions       []string           `json:"questions"`
	Decisions       []string           `json:"decisions"`
	CandidateEvents []CandidateEvent   `json:"candidate_events"`
	Confidence      map[string]float64 `json:"confidence"`
}

type SummarizeRequest struct {
	Entries []string `json:"entries"`
}

type SummarizeResponse struct {
	Summary string `json:"summary"`
}
