package events

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"leannotes/internal/model"
	"leannotes/internal/repository"
	"leannotes/pkg/sqlite"
)

func TestThresholds_Classify(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		confidence float64
		want       Band
	}{
		{1.0, BandCommit},
		{0.85, BandCommit},
		{0.8499, BandShadow},
		{0.7, BandShadow},
		{0.65, BandShadow},
		{0.6499, BandDiscard},
		{0, BandDiscard},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, th.Classify(tt.confidence), "confidence %v", tt.confidence)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, Normalize("Slept 7 hours"), Normalize("slept 8 hours"))
	assert.Equal(t, Normalize("slept 8 hours"), Normalize("I slept 7.5 hours"))
	assert.Contains(t, Normalize("ran 5 km"), "#")
	assert.NotContains(t, Normalize("ran 5 km"), "5")
	assert.NotEmpty(t, Normalize("the"))
}

type fixture struct {
	db        *sql.DB
	extractor *Extractor
	events    *repository.EventRepository
	phrases   *repository.PhraseRepository
	entries   *repository.EntryRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.Open(context.Background(), ":memory:", repository.Schema)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	log := zap.NewNop()
	f := &fixture{
		db:      db,
		events:  repository.NewEventRepository(db, log),
		phrases: repository.NewPhraseRepository(db, log),
		entries: repository.NewEntryRepository(db, log),
	}
	f.extractor = NewExtractor(f.events, f.phrases, DefaultThresholds(), log)
	return f
}

func (f *fixture) entry(t *testing.T, id string, at time.Time) *model.Entry {
	t.Helper()
	e := &model.Entry{ID: id, Content: "x", CreatedAt: at, UpdatedAt: at, DeviceID: "d", SyncState: model.SyncStateUnsynced}
	require.NoError(t, f.entries.Insert(context.Background(), e))
	return e
}

func (f *fixture) apply(t *testing.T, e *model.Entry, candidates ...model.CandidateEvent) Outcome {
	t.Helper()
	var out Outcome
	err := repository.WithTx(context.Background(), f.db, func(tx *sql.Tx) error {
		var err error
		out, err = f.extractor.ApplyTx(context.Background(), tx, e, candidates)
		return err
	})
	require.NoError(t, err)
	return out
}

func candidate(confidence float64) model.CandidateEvent {
	return model.CandidateEvent{
		Category:   model.EventSleep,
		Subtype:    "duration",
		Phrase:     "slept 7 hours",
		Metrics:    map[string]float64{"hours": 7},
		Confidence: confidence,
		Method:     model.MethodFallback,
	}
}

func TestExtractor_BandEdges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.entry(t, "e1", time.Now())

	out := f.apply(t, e, candidate(0.85), candidate(0.8499), candidate(0.65), candidate(0.6499))
	assert.Equal(t, Outcome{Committed: 1, Shadowed: 2, Discarded: 1}, out)

	committed, err := f.events.ListByEntry(ctx, repository.SinkCommitted, e.ID)
	require.NoError(t, err)
	require.Len(t, committed, 1)
	assert.Equal(t, 0.85, committed[0].Confidence)
	assert.Equal(t, 7.0, committed[0].Metrics["hours"])

	shadow, err := f.events.ListByEntry(ctx, repository.SinkShadow, e.ID)
	require.NoError(t, err)
	assert.Len(t, shadow, 2)
}

func TestExtractor_ShadowCountsPhraseOncePerEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := time.Now()

	e1 := f.entry(t, "e1", now.Add(-2*time.Hour))
	f.apply(t, e1, candidate(0.7))
	// reprocessing the same entry does not count again
	f.apply(t, e1, candidate(0.7))

	p, err := f.phrases.Get(ctx, Normalize("slept 7 hours"))
	require.NoError(t, err)
	assert.Equal(t, 1, p.UsageCount)

	e2 := f.entry(t, "e2", now.Add(-time.Hour))
	f.apply(t, e2, model.CandidateEvent{Category: model.EventSleep, Phrase: "Slept 8 hours", Confidence: 0.7})

	p, err = f.phrases.Get(ctx, Normalize("slept 7 hours"))
	require.NoError(t, err)
	assert.Equal(t, 2, p.UsageCount)

	// committed candidates do not touch phrase usage
	e3 := f.entry(t, "e3", now)
	f.apply(t, e3, candidate(0.9))
	p, err = f.phrases.Get(ctx, Normalize("slept 7 hours"))
	require.NoError(t, err)
	assert.Equal(t, 2, p.UsageCount)
}

func TestExtractor_ReplacesPreviousEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.entry(t, "e1", time.Now())

	f.apply(t, e, candidate(0.9), candidate(0.9))
	f.apply(t, e, candidate(0.9))

	committed, err := f.events.ListByEntry(ctx, repository.SinkCommitted, e.ID)
	require.NoError(t, err)
	assert.Len(t, committed, 1)
}
