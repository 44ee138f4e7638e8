// Package patterns aggregates enriched entries into recency-weighted
// patterns, streaks, stats and insights, published as an immutable snapshot.
package patterns

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"go.uber.org/zap"

	"leannotes/internal/model"
	"leannotes/internal/repository"
	"leannotes/pkg/config"
	"leannotes/pkg/metrics"
)

const (
	DefaultInterval         = time.Hour
	DefaultWindow           = 30 * day
	DefaultDisplayThreshold = 0.25
	DefaultPromotionCount   = 3
	DefaultPromotionWindow  = 28 * day

	// stats look back this far for streaks and week-over-week figures
	historyWindow = 365 * day
)

// Snapshot is the read model. It is never modified after publication.
type Snapshot struct {
	GeneratedAt time.Time                    `json:"generated_at"`
	Patterns    []*model.IntelligencePattern `json:"patterns"`
	Streaks     []*model.Streak              `json:"streaks"`
	Promoted    []*model.PhrasePattern       `json:"promoted"`
	Stats       Stats                        `json:"stats"`
	Insights    []Insight                    `json:"insights"`
}

type Engine struct {
	entries  *repository.EntryRepository
	records  *repository.EnrichmentRepository
	events   *repository.EventRepository
	phrases  *repository.PhraseRepository
	patterns *repository.PatternRepository
	streaks  *repository.StreakRepository
	cfg      config.PatternConfig
	scorer   Scorer
	insights insightRules
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	snapshot atomic.Pointer[Snapshot]
}

func NewEngine(
	entries *repository.EntryRepository,
	records *repository.EnrichmentRepository,
	events *repository.EventRepository,
	phrases *repository.PhraseRepository,
	patterns *repository.PatternRepository,
	streaks *repository.StreakRepository,
	cfg config.PatternConfig,
	logger *zap.Logger,
) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.DisplayThreshold <= 0 {
		cfg.DisplayThreshold = DefaultDisplayThreshold
	}
	if cfg.PromotionCount <= 0 {
		cfg.PromotionCount = DefaultPromotionCount
	}
	if cfg.PromotionWindow <= 0 {
		cfg.PromotionWindow = DefaultPromotionWindow
	}
	rules := insightRules{minSamples: cfg.InsightMinSamples, minFraction: cfg.InsightMinFraction}
	if rules.minSamples <= 0 {
		rules.minSamples = DefaultInsightMinSamples
	}
	if rules.minFraction <= 0 {
		rules.minFraction = DefaultInsightMinFraction
	}
	return &Engine{
		entries:  entries,
		records:  records,
		events:   events,
		phrases:  phrases,
		patterns: patterns,
		streaks:  streaks,
		cfg:      cfg,
		scorer:   NewScorer(cfg),
		insights: rules,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock 替换时钟（测试用）
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Latest returns the last published snapshot, or nil before the first run.
func (e *Engine) Latest() *Snapshot {
	return e.snapshot.Load()
}

// Start recomputes immediately and then on the interval until ctx is done.
func (e *Engine) Start(ctx context.Context) {
	e.logger.Info("Starting pattern engine",
		zap.Duration("interval", e.cfg.Interval),
		zap.Duration("window", e.cfg.Window),
	)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := e.Recompute(ctx); err != nil && ctx.Err() == nil {
			e.logger.Error("Pattern recompute failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			e.logger.Info("Pattern engine stopped")
			return
		case <-ticker.C:
		}
	}
}

// Recompute rebuilds every aggregate over the trailing window, persists
// patterns and streaks, and publishes a new snapshot.
func (e *Engine) Recompute(ctx context.Context) (*Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	now := e.now()
	windowStart := now.Add(-e.cfg.Window)

	items, err := e.records.ListEnrichedSince(ctx, windowStart)
	if err != nil {
		return nil, err
	}
	history, err := e.entries.ListCreatedBetween(ctx, dayOf(now.Add(-historyWindow)), now.Add(day))
	if err != nil {
		return nil, err
	}
	committed, err := e.events.ListSince(ctx, repository.SinkCommitted, windowStart)
	if err != nil {
		return nil, err
	}
	total, err := e.entries.Count(ctx)
	if err != nil {
		return nil, err
	}

	found := append(entityPatterns(items, e.scorer, now), temporalPatterns(items, e.scorer, now)...)
	streaks := streaksFor(history, committed, now)

	promoted, err := e.promote(ctx, now)
	if err != nil {
		return nil, err
	}

	err = repository.WithTx(ctx, e.patterns.DB(), func(tx *sql.Tx) error {
		for _, p := range found {
			if err := e.patterns.UpsertTx(ctx, tx, p); err != nil {
				return err
			}
		}
		if err := e.patterns.DecayUnseenTx(ctx, tx, now, func(p *model.IntelligencePattern) float64 {
			return e.scorer.Score(p.Metrics.Occurrences, p.Metrics.LastSeen, now)
		}); err != nil {
			return err
		}
		for _, s := range streaks {
			if err := e.streaks.SaveTx(ctx, tx, s); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist patterns: %w", err)
	}

	snap, err := e.readModel(ctx, now)
	if err != nil {
		return nil, err
	}
	var writing *model.Streak
	for _, s := range snap.Streaks {
		if s.Type == StreakWriting {
			writing = s
		}
	}
	snap.Stats = computeStats(total, history, writing, windowStart, now)
	snap.Insights = e.insights.compute(history, items, windowStart, now)

	e.snapshot.Store(snap)
	metrics.RecordPatternRecompute(time.Since(start))
	e.logger.Info("Patterns recomputed",
		zap.Int("enriched_entries", len(items)),
		zap.Int("patterns", len(found)),
		zap.Int("visible_patterns", len(snap.Patterns)),
		zap.Int("promoted_phrases", promoted),
		zap.Duration("duration", time.Since(start)),
	)
	return snap, nil
}

// promote flags phrases used often enough within the promotion window. Each
// phrase is promoted once.
func (e *Engine) promote(ctx context.Context, now time.Time) (int, error) {
	candidates, err := e.phrases.PromotionCandidates(ctx, now.Add(-e.cfg.PromotionWindow), e.cfg.PromotionCount)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range candidates {
		ok, err := e.phrases.MarkPromoted(ctx, p.ID, now)
		if err != nil {
			return n, err
		}
		if ok {
			n++
			e.logger.Info("Phrase promoted",
				zap.String("phrase", p.Phrase),
				zap.String("category", string(p.Category)),
				zap.Int("usage_count", p.UsageCount),
			)
		}
	}
	return n, nil
}

func (e *Engine) readModel(ctx context.Context, now time.Time) (*Snapshot, error) {
	visible, err := e.patterns.List(ctx, e.cfg.DisplayThreshold)
	if err != nil {
		return nil, err
	}
	streaks, err := e.streaks.List(ctx)
	if err != nil {
		return nil, err
	}
	promoted, err := e.phrases.ListPromoted(ctx)
	if err != nil {
		return nil, err
	}
	return &Snapshot{GeneratedAt: now, Patterns: visible, Streaks: streaks, Promoted: promoted}, nil
}

// RelevantContext describes visible patterns for people named in text and
// for the time slot of at. It only reads the published snapshot.
func (e *Engine) RelevantContext(text string, at time.Time) []string {
	snap := e.Latest()
	if snap == nil {
		return nil
	}

	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	}) {
		words[strings.TrimSuffix(w, "'s")] = true
	}
	block, weekday := model.TimeBlockOf(at), at.Weekday().String()

	var out []string
	for _, p := range snap.Patterns {
		switch {
		case p.Scope.Entity != "" && words[strings.ToLower(p.Scope.Entity)]:
			out = append(out, describe(p.Scope.Entity, p))
		case p.Type == model.PatternTemporal && p.Scope.TimeBlock == block && p.Scope.Weekday == weekday:
			out = append(out, describe(weekday+" "+block+"s", p))
		}
	}
	return out
}

func describe(label string, p *model.IntelligencePattern) string {
	parts := []string{}
	if emotion := p.Outcome["emotion"]; emotion != "" {
		parts = append(parts, fmt.Sprintf("mostly %s (%.0f%%)", emotion, p.Stats["emotion:"+emotion]))
	}
	if theme := p.Outcome["theme"]; theme != "" {
		parts = append(parts, "usually "+theme)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%s: %d entries", label, p.Metrics.Occurrences)
	}
	return label + ": " + strings.Join(parts, ", ")
}

// Describe renders a pattern for display, labelled by its scope.
func Describe(p *model.IntelligencePattern) string {
	label := p.Scope.Entity
	if label == "" {
		var parts []string
		if p.Scope.Weekday != "" {
			parts = append(parts, p.Scope.Weekday)
		}
		if p.Scope.TimeBlock != "" {
			parts = append(parts, p.Scope.TimeBlock+"s")
		}
		label = strings.Join(parts, " ")
	}
	if label == "" {
		label = p.Signature
	}
	return describe(label, p)
}
