package patterns

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"leannotes/internal/model"
	"leannotes/internal/repository"
	"leannotes/pkg/config"
	"leannotes/pkg/sqlite"
)

func TestStepConfidence(t *testing.T) {
	tests := []struct {
		occurrences int
		want        float64
	}{
		{0, 0}, {2, 0}, {3, 0.3}, {4, 0.3}, {5, 0.6}, {9, 0.6}, {10, 0.8}, {19, 0.8}, {20, 0.9}, {500, 0.9},
	}
	prev := 0.0
	for _, tt := range tests {
		got := StepConfidence(tt.occurrences)
		assert.Equal(t, tt.want, got, "occurrences %d", tt.occurrences)
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
}

func TestScorer_DecayOrdering(t *testing.T) {
	s := NewScorer(config.PatternConfig{})
	now := time.Date(2025, 5, 14, 12, 0, 0, 0, time.Local)

	fresh := s.Score(10, now.Add(-3*day), now)
	month := s.Score(10, now.Add(-20*day), now)
	quarter := s.Score(10, now.Add(-60*day), now)
	old := s.Score(10, now.Add(-200*day), now)

	assert.InDelta(t, 0.8, fresh, 1e-9)
	assert.Greater(t, fresh, month)
	assert.Greater(t, month, quarter)
	assert.Greater(t, quarter, old)
	assert.InDelta(t, 0.24, month, 1e-9)
	assert.InDelta(t, 0.08, old, 1e-9)
	assert.Equal(t, 1.0, s.DecayFactor(7*day))
}

func TestScorer_StaleHistoryBelowRecentMinimum(t *testing.T) {
	s := NewScorer(config.PatternConfig{})
	now := time.Date(2025, 5, 14, 12, 0, 0, 0, time.Local)
	recent := s.Score(3, now.Add(-day), now)
	require.InDelta(t, 0.3, recent, 1e-9)

	for _, occurrences := range []int{5, 10, 20, 500} {
		for _, age := range []time.Duration{7*day + time.Minute, 8 * day, 30 * day, 200 * day} {
			assert.Less(t, s.Score(occurrences, now.Add(-age), now), recent, "%d occurrences, %s old", occurrences, age)
		}
	}
}

func TestScorer_ConfiguredBuckets(t *testing.T) {
	s := NewScorer(config.PatternConfig{
		Decay:      []config.DecayStep{{MaxAge: day, Factor: 1}},
		DecayFloor: 0.5,
	})
	assert.Equal(t, 1.0, s.DecayFactor(12*time.Hour))
	assert.Equal(t, 0.5, s.DecayFactor(2*day))
}

func TestComputeStreak(t *testing.T) {
	base := time.Date(2025, 5, 1, 20, 0, 0, 0, time.Local)
	at := func(d int) time.Time { return base.AddDate(0, 0, d) }

	s := computeStreak(StreakWriting, []time.Time{at(0), at(1), at(1).Add(time.Hour), at(2), at(4), at(5)}, at(5))
	require.NotNil(t, s)
	assert.Equal(t, 2, s.Current)
	assert.Equal(t, 3, s.Best)
	assert.Equal(t, dayOf(at(5)), s.LastDay)

	assert.True(t, Active(s, at(6)))
	assert.False(t, Active(s, at(7)))
	assert.Nil(t, computeStreak(StreakWriting, nil, at(0)))
}

type fixture struct {
	db      *sql.DB
	engine  *Engine
	entries *repository.EntryRepository
	records *repository.EnrichmentRepository
	phrases *repository.PhraseRepository
	stored  *repository.PatternRepository
	now     time.Time
	seq     int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.Open(context.Background(), ":memory:", repository.Schema)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := zap.NewNop()
	f := &fixture{
		db:      db,
		entries: repository.NewEntryRepository(db, log),
		records: repository.NewEnrichmentRepository(db, log),
		phrases: repository.NewPhraseRepository(db, log),
		stored:  repository.NewPatternRepository(db, log),
		now:     time.Date(2025, 5, 14, 15, 0, 0, 0, time.Local), // Wednesday afternoon
	}
	f.engine = NewEngine(f.entries, f.records, repository.NewEventRepository(db, log), f.phrases,
		f.stored, repository.NewStreakRepository(db),
		config.PatternConfig{}, log).
		WithClock(func() time.Time { return f.now })
	return f
}

// enriched stores an entry created at the given time with a complete record.
func (f *fixture) enriched(t *testing.T, at time.Time, emotion model.Emotion, people ...string) *model.Entry {
	t.Helper()
	ctx := context.Background()
	f.seq++
	e := &model.Entry{
		ID:        fmt.Sprintf("entry-%d", f.seq),
		Content:   "note",
		CreatedAt: at,
		UpdatedAt: at,
		DeviceID:  "dev-a",
		SyncState: model.SyncStateSynced,
	}
	require.NoError(t, f.entries.Insert(ctx, e))

	rec := &model.EnrichmentRecord{ID: uuid.NewString(), EntryID: e.ID, EntryVersion: e.Version(), CreatedAt: at}
	require.NoError(t, f.records.CreatePending(ctx, rec))
	rec.Emotion = emotion
	rec.Themes = []model.Theme{model.ThemeWork}
	rec.Urgency = model.UrgencyNone
	rec.Method = model.MethodFallback
	rec.Confidence = map[string]float64{}
	for _, name := range people {
		rec.People = append(rec.People, model.Person{Name: name, Sentiment: model.SentimentNeutral})
	}
	require.NoError(t, repository.WithTx(ctx, f.db, func(tx *sql.Tx) error {
		return f.records.CompleteTx(ctx, tx, rec)
	}))
	return e
}

func (f *fixture) patternBySignature(snap *Snapshot, signature string) *model.IntelligencePattern {
	return findPattern(snap.Patterns, signature)
}

// storedPattern reads a pattern regardless of the display threshold.
func (f *fixture) storedPattern(t *testing.T, signature string) *model.IntelligencePattern {
	t.Helper()
	all, err := f.stored.List(context.Background(), 0)
	require.NoError(t, err)
	return findPattern(all, signature)
}

func findPattern(patterns []*model.IntelligencePattern, signature string) *model.IntelligencePattern {
	for _, p := range patterns {
		if p.Signature == signature {
			return p
		}
	}
	return nil
}

func TestEngine_EntityPatternsAndContext(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	assert.Nil(t, f.engine.Latest())
	assert.Nil(t, f.engine.RelevantContext("Sarah", f.now))

	for i := 1; i <= 5; i++ {
		at := time.Date(2025, 5, 14-i, 9, 0, 0, 0, time.Local)
		f.enriched(t, at, model.EmotionAnxious, "Sarah")
	}

	snap, err := f.engine.Recompute(ctx)
	require.NoError(t, err)
	assert.Same(t, snap, f.engine.Latest())

	sarah := f.patternBySignature(snap, "entity:person:sarah")
	require.NotNil(t, sarah)
	assert.Equal(t, model.PatternCorrelation, sarah.Type)
	assert.Equal(t, 5, sarah.Metrics.Occurrences)
	assert.InDelta(t, 0.6, sarah.Metrics.Confidence, 1e-9)
	assert.Equal(t, "anxious", sarah.Outcome["emotion"])
	assert.Equal(t, 100.0, sarah.Stats["emotion:anxious"])
	assert.Equal(t, 100.0, sarah.Stats["hour:09"])

	morning := f.patternBySignature(snap, "temporal:morning:all")
	require.NotNil(t, morning)
	assert.Equal(t, 5, morning.Metrics.Occurrences)

	assert.Equal(t, []string{"Sarah: mostly anxious (100%), usually work"},
		f.engine.RelevantContext("call with sarah's team", f.now))
	assert.Empty(t, f.engine.RelevantContext("quiet day", f.now))

	assert.Equal(t, 5, snap.Stats.TotalEntries)
	assert.Equal(t, 0, snap.Stats.Today)
	assert.Equal(t, 5, snap.Stats.ThisWeek)
	assert.Equal(t, 5, snap.Stats.CurrentStreak)
	assert.Equal(t, 5, snap.Stats.LongestStreak)
	assert.Equal(t, 1.0, snap.Stats.AveragePerActiveDay)
}

func TestEngine_PatternsBelowThresholdHidden(t *testing.T) {
	f := newFixture(t)
	f.enriched(t, f.now.Add(-time.Hour), model.EmotionCalm, "Omar")
	f.enriched(t, f.now.Add(-2*time.Hour), model.EmotionCalm, "Omar")

	snap, err := f.engine.Recompute(context.Background())
	require.NoError(t, err)
	assert.Nil(t, f.patternBySignature(snap, "entity:person:omar"))
}

func TestEngine_UnseenPatternsDecay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 1; i <= 5; i++ {
		f.enriched(t, f.now.AddDate(0, 0, -i), model.EmotionFocused, "Ana")
	}

	first, err := f.engine.Recompute(ctx)
	require.NoError(t, err)
	before := f.patternBySignature(first, "entity:person:ana")
	require.NotNil(t, before)

	// the entries fall out of the window, the stored pattern keeps decaying
	f.now = f.now.AddDate(0, 0, 40)
	later, err := f.engine.Recompute(ctx)
	require.NoError(t, err)
	assert.Nil(t, f.patternBySignature(later, "entity:person:ana"))

	after := f.storedPattern(t, "entity:person:ana")
	require.NotNil(t, after)
	assert.Less(t, after.Metrics.Confidence, before.Metrics.Confidence)
	assert.InDelta(t, 0.12, after.Metrics.Confidence, 1e-9)
	assert.Equal(t, before.Metrics.Occurrences, after.Metrics.Occurrences)
}

func TestEngine_StaleHistoryScoresBelowRecentPattern(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 8; i <= 17; i++ {
		f.enriched(t, f.now.AddDate(0, 0, -i), model.EmotionCalm, "Old")
	}
	for i := 1; i <= 3; i++ {
		f.enriched(t, f.now.AddDate(0, 0, -i), model.EmotionCalm, "New")
	}

	snap, err := f.engine.Recompute(ctx)
	require.NoError(t, err)

	old := f.storedPattern(t, "entity:person:old")
	recent := f.storedPattern(t, "entity:person:new")
	require.NotNil(t, old)
	require.NotNil(t, recent)
	assert.Equal(t, 10, old.Metrics.Occurrences)
	assert.Equal(t, 3, recent.Metrics.Occurrences)
	assert.Less(t, old.Metrics.Confidence, recent.Metrics.Confidence)

	assert.NotNil(t, f.patternBySignature(snap, "entity:person:new"))
	assert.Nil(t, f.patternBySignature(snap, "entity:person:old"))
}

func TestEngine_PhrasePromotedOnceAtThirdUse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	use := func() {
		e := f.enriched(t, f.now.Add(-time.Hour), model.EmotionNeutral)
		require.NoError(t, f.phrases.RecordUseTx(ctx, f.db, "went # gym", "went to the gym", model.EventExercise, e.ID, e.CreatedAt))
	}

	use()
	use()
	snap, err := f.engine.Recompute(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Promoted)

	use()
	snap, err = f.engine.Recompute(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Promoted, 1)
	promotedAt := *snap.Promoted[0].PromotedAt

	f.now = f.now.Add(time.Hour)
	use()
	snap, err = f.engine.Recompute(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Promoted, 1)
	assert.True(t, promotedAt.Equal(*snap.Promoted[0].PromotedAt))
	assert.Equal(t, 4, snap.Promoted[0].UsageCount)
}

func TestInsights(t *testing.T) {
	at := time.Date(2025, 5, 12, 9, 0, 0, 0, time.Local) // Monday
	var items []model.Enriched
	for i := 0; i < 10; i++ {
		emotion := model.EmotionStressed
		if i >= 8 {
			emotion = model.EmotionCalm
		}
		items = append(items, model.Enriched{
			Entry:  &model.Entry{CreatedAt: at.AddDate(0, 0, -7*(i%3))},
			Record: &model.EnrichmentRecord{Emotion: emotion, People: []model.Person{{Name: "Sarah"}}},
		})
	}

	people := personEmotions(items, 10, 0.7)
	require.Len(t, people, 1)
	assert.Equal(t, "Sarah", people[0].Subject)
	assert.Equal(t, "Entries mentioning Sarah are mostly stressed (80%)", people[0].Text)
	assert.Empty(t, personEmotions(items, 11, 0.7))

	days := dayEmotions(items)
	require.Len(t, days, 1)
	assert.Equal(t, "Mondays tend to be stressed (80%)", days[0].Text)
}

func TestDescribe(t *testing.T) {
	p := &model.IntelligencePattern{
		Signature: "temporal:morning:Monday",
		Type:      model.PatternTemporal,
		Scope:     model.PatternScope{TimeBlock: "morning", Weekday: "Monday"},
		Outcome:   map[string]string{"emotion": "stressed"},
		Stats:     map[string]float64{"emotion:stressed": 75},
	}
	assert.Equal(t, "Monday mornings: mostly stressed (75%)", Describe(p))

	p = &model.IntelligencePattern{
		Signature: "temporal:all:weekend",
		Scope:     model.PatternScope{Weekday: "weekend"},
		Metrics:   model.ConfidenceMetrics{Occurrences: 4},
	}
	assert.Equal(t, "weekend: 4 entries", Describe(p))
}
