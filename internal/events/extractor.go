// Package events bands candidate events by confidence into committed events,
// shadow events, or nothing.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"leannotes/internal/model"
	"leannotes/internal/repository"
	"leannotes/pkg/metrics"
)

const (
	DefaultCommitThreshold = 0.85
	DefaultShadowThreshold = 0.65
)

type Band string

const (
	BandCommit  Band = "commit"
	BandShadow  Band = "shadow"
	BandDiscard Band = "discard"
)

type Thresholds struct {
	Commit float64
	Shadow float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Commit: DefaultCommitThreshold, Shadow: DefaultShadowThreshold}
}

// Classify bands a confidence: [commit, 1] commit, [shadow, commit) shadow,
// anything lower discard.
func (t Thresholds) Classify(confidence float64) Band {
	switch {
	case confidence >= t.Commit:
		return BandCommit
	case confidence >= t.Shadow:
		return BandShadow
	default:
		return BandDiscard
	}
}

// Outcome counts candidates per band.
type Outcome struct {
	Committed int
	Shadowed  int
	Discarded int
}

type Extractor struct {
	events     *repository.EventRepository
	phrases    *repository.PhraseRepository
	thresholds Thresholds
	logger     *zap.Logger
	now        func() time.Time
}

func NewExtractor(events *repository.EventRepository, phrases *repository.PhraseRepository, thresholds Thresholds, logger *zap.Logger) *Extractor {
	if thresholds.Commit <= 0 {
		thresholds.Commit = DefaultCommitThreshold
	}
	if thresholds.Shadow <= 0 {
		thresholds.Shadow = DefaultShadowThreshold
	}
	return &Extractor{events: events, phrases: phrases, thresholds: thresholds, logger: logger, now: time.Now}
}

func (x *Extractor) Thresholds() Thresholds {
	return x.thresholds
}

// ApplyTx replaces the entry's events with the banded candidates. Shadowed
// candidates also count one use of their source phrase. Confidence is taken
// as given.
func (x *Extractor) ApplyTx(ctx context.Context, db repository.DBTX, entry *model.Entry, candidates []model.CandidateEvent) (Outcome, error) {
	var out Outcome
	if err := x.events.ReplaceForEntryTx(ctx, db, entry.ID); err != nil {
		return out, err
	}

	now := x.now()
	for _, c := range candidates {
		band := x.thresholds.Classify(c.Confidence)
		metrics.IncrementEventBand(string(band))

		if band == BandDiscard {
			out.Discarded++
			continue
		}

		ev := &model.Event{
			ID:          uuid.NewString(),
			EntryID:     entry.ID,
			Category:    c.Category,
			Subtype:     c.Subtype,
			Metrics:     c.Metrics,
			TextMetrics: c.TextMetrics,
			Tags:        c.Tags,
			Confidence:  c.Confidence,
			Method:      c.Method,
			OccurredAt:  entry.CreatedAt,
			CreatedAt:   now,
		}

		if band == BandCommit {
			if err := x.events.InsertTx(ctx, db, repository.SinkCommitted, ev); err != nil {
				return out, err
			}
			out.Committed++
			continue
		}

		if err := x.events.InsertTx(ctx, db, repository.SinkShadow, ev); err != nil {
			return out, err
		}
		if phrase := sourcePhrase(c); phrase != "" {
			if err := x.phrases.RecordUseTx(ctx, db, Normalize(phrase), phrase, c.Category, entry.ID, entry.CreatedAt); err != nil {
				return out, err
			}
		}
		out.Shadowed++
	}

	if out.Committed+out.Shadowed > 0 {
		x.logger.Debug("Events extracted",
			zap.String("entry_id", entry.ID),
			zap.Int("committed", out.Committed),
			zap.Int("shadowed", out.Shadowed),
			zap.Int("discarded", out.Discarded),
		)
	}
	return out, nil
}

func sourcePhrase(c model.CandidateEvent) string {
	if c.Phrase != "" {
		return c.Phrase
	}
	if c.Subtype != "" {
		return string(c.Category) + " " + c.Subtype
	}
	return ""
}
