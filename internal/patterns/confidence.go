package patterns

import (
	"time"

	"leannotes/pkg/config"
)

const day = 24 * time.Hour

// DefaultDecay is used when no decay buckets are configured. Past the first
// week every factor stays below StepConfidence(3)/StepConfidence(20), so a
// pattern nobody has reinforced recently scores under any pattern with three
// recent occurrences.
var DefaultDecay = []config.DecayStep{
	{MaxAge: 7 * day, Factor: 1.0},
	{MaxAge: 30 * day, Factor: 0.3},
	{MaxAge: 90 * day, Factor: 0.2},
}

const DefaultDecayFloor = 0.1

// StepConfidence maps an occurrence count to its base confidence. It never
// decreases as occurrences grow.
func StepConfidence(occurrences int) float64 {
	switch {
	case occurrences >= 20:
		return 0.9
	case occurrences >= 10:
		return 0.8
	case occurrences >= 5:
		return 0.6
	case occurrences >= 3:
		return 0.3
	default:
		return 0
	}
}

// Scorer combines the occurrence step with recency decay.
type Scorer struct {
	Decay []config.DecayStep
	Floor float64
}

func NewScorer(cfg config.PatternConfig) Scorer {
	s := Scorer{Decay: cfg.Decay, Floor: cfg.DecayFloor}
	if len(s.Decay) == 0 {
		s.Decay = DefaultDecay
	}
	if s.Floor <= 0 {
		s.Floor = DefaultDecayFloor
	}
	return s
}

// DecayFactor is the factor of the first bucket whose MaxAge covers age.
// Buckets are expected in ascending MaxAge order.
func (s Scorer) DecayFactor(age time.Duration) float64 {
	for _, step := range s.Decay {
		if age <= step.MaxAge {
			return step.Factor
		}
	}
	return s.Floor
}

func (s Scorer) Score(occurrences int, lastSeen, now time.Time) float64 {
	age := now.Sub(lastSeen)
	if age < 0 {
		age = 0
	}
	return StepConfidence(occurrences) * s.DecayFactor(age)
}
