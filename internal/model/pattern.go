package model

import "time"

type PatternType string

const (
	PatternTemporal    PatternType = "temporal"
	PatternCausal      PatternType = "causal"
	PatternStreak      PatternType = "streak"
	PatternCorrelation PatternType = "correlation"
	PatternAnomaly     PatternType = "anomaly"
)

type ConfidenceMetrics struct {
	Occurrences int       `json:"occurrences"`
	Confidence  float64   `json:"confidence"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
}

// PatternScope narrows where a pattern applies. Empty fields mean "any".
type PatternScope struct {
	TimeBlock string `json:"time_block,omitempty"`
	Weekday   string `json:"weekday,omitempty"`
	Entity    string `json:"entity,omitempty"`
}

type IntelligencePattern struct {
	ID        string            `json:"id"`
	Signature string            `json:"signature"`
	Type      PatternType       `json:"type"`
	Trigger   map[string]string `json:"trigger"`
	Outcome   map[string]string `json:"outcome"`
	Scope     PatternScope      `json:"scope"`
	Metrics   ConfidenceMetrics `json:"metrics"`
	// Stats holds distribution percentages (e.g. "emotion:anxious" -> 62.5).
	Stats     map[string]float64 `json:"stats,omitempty"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type Streak struct {
	Type      string    `json:"type"`
	Current   int       `json:"current"`
	Best      int       `json:"best"`
	LastDay   time.Time `json:"last_day"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Time blocks of the day.
const (
	BlockMorning   = "morning"
	BlockAfternoon = "afternoon"
	BlockEvening   = "evening"
	BlockNight     = "night"
)

// TimeBlockOf maps the local hour: 5-11 morning, 12-16 afternoon,
// 17-21 evening, otherwise night.
func TimeBlockOf(t time.Time) string {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return BlockMorning
	case h >= 12 && h < 17:
		return BlockAfternoon
	case h >= 17 && h < 22:
		return BlockEvening
	default:
		return BlockNight
	}
}
