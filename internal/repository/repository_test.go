package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"leannotes/internal/model"
	"leannotes/pkg/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.Open(context.Background(), ":memory:", Schema)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newEntry(content string, at time.Time, tags ...string) *model.Entry {
	return &model.Entry{
		ID:        uuid.NewString(),
		Content:   content,
		Tags:      tags,
		CreatedAt: at,
		UpdatedAt: at,
		DeviceID:  "dev-a",
		SyncState: model.SyncStateUnsynced,
	}
}

func TestEntryRepository_InsertGetQuery(t *testing.T) {
	ctx := context.Background()
	repo := NewEntryRepository(newTestDB(t), zap.NewNop())
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)

	first := newEntry("Coffee with Sarah", base, "coffee")
	second := newEntry("Long run in the park", base.Add(time.Hour), "run", "health")
	require.NoError(t, repo.Insert(ctx, first))
	require.NoError(t, repo.Insert(ctx, second))

	got, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Coffee with Sarah", got.Content)
	assert.Equal(t, []string{"coffee"}, got.Tags)
	assert.Equal(t, base.UnixMilli(), got.CreatedAt.UnixMilli())
	assert.Nil(t, got.RemoteID)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	byText, err := repo.Query(ctx, EntryFilter{Contains: "sarah"}, 10)
	require.NoError(t, err)
	require.Len(t, byText, 1)
	assert.Equal(t, first.ID, byText[0].ID)

	byTag, err := repo.Query(ctx, EntryFilter{Tag: "#health"}, 10)
	require.NoError(t, err)
	require.Len(t, byTag, 1)
	assert.Equal(t, second.ID, byTag[0].ID)

	all, err := repo.Query(ctx, EntryFilter{}, 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest first")

	ranged, err := repo.Query(ctx, EntryFilter{Since: base.Add(30 * time.Minute)}, 10)
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, second.ID, ranged[0].ID)
}

func TestEntryRepository_ListPushableCursor(t *testing.T) {
	ctx := context.Background()
	repo := NewEntryRepository(newTestDB(t), zap.NewNop())
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)

	a, b, c := newEntry("a", base), newEntry("b", base), newEntry("c", base.Add(time.Minute))
	a.ID, b.ID, c.ID = "a", "b", "c"
	for _, e := range []*model.Entry{c, b, a} {
		require.NoError(t, repo.Insert(ctx, e))
	}

	first, err := repo.ListPushable(ctx, Cursor{}, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "a", first[0].ID)
	assert.Equal(t, "b", first[1].ID)

	// same updated_at as the cursor is broken by id
	rest, err := repo.ListPushable(ctx, CursorAt(first[1]), 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "c", rest[0].ID)

	none, err := repo.ListPushable(ctx, CursorAt(rest[0]), 2)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEntryRepository_MarkSyncedConditional(t *testing.T) {
	ctx := context.Background()
	repo := NewEntryRepository(newTestDB(t), zap.NewNop())
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)

	e := newEntry("draft", at)
	require.NoError(t, repo.Insert(ctx, e))

	ok, err := repo.MarkSyncing(ctx, e.ID, e.UpdatedAt)
	require.NoError(t, err)
	require.True(t, ok)

	state, err := repo.MarkSynced(ctx, e.ID, "remote-1", e.UpdatedAt)
	require.NoError(t, err)
	assert.Equal(t, model.SyncStateSynced, state)

	// Edited while a push was in flight: remote id recorded, state stays stale.
	e2 := newEntry("other", at)
	require.NoError(t, repo.Insert(ctx, e2))
	ok, err = repo.MarkSyncing(ctx, e2.ID, e2.UpdatedAt)
	require.NoError(t, err)
	require.True(t, ok)

	edited, err := repo.Get(ctx, e2.ID)
	require.NoError(t, err)
	edited.Content = "other, edited"
	edited.UpdatedAt = at.Add(time.Second)
	edited.SyncState = model.SyncStateStale
	require.NoError(t, repo.Save(ctx, edited))

	state, err = repo.MarkSynced(ctx, e2.ID, "remote-2", e2.UpdatedAt)
	require.NoError(t, err)
	assert.Equal(t, model.SyncStateStale, state)

	got, err := repo.Get(ctx, e2.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RemoteID)
	assert.Equal(t, "remote-2", *got.RemoteID)
}

func TestEntryRepository_ResetSyncing(t *testing.T) {
	ctx := context.Background()
	repo := NewEntryRepository(newTestDB(t), zap.NewNop())
	e := newEntry("x", time.Now())
	require.NoError(t, repo.Insert(ctx, e))
	_, err := repo.MarkSyncing(ctx, e.ID, e.UpdatedAt)
	require.NoError(t, err)

	n, err := repo.ResetSyncing(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SyncStateUnsynced, got.SyncState)
}

func TestEnrichmentRepository_OneCompletePerVersion(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	entries := NewEntryRepository(db, zap.NewNop())
	repo := NewEnrichmentRepository(db, zap.NewNop())

	e := newEntry("Meeting with Sarah", time.Now())
	require.NoError(t, entries.Insert(ctx, e))

	complete := func() error {
		rec := &model.EnrichmentRecord{
			ID:           uuid.NewString(),
			EntryID:      e.ID,
			EntryVersion: e.Version(),
			CreatedAt:    time.Now(),
		}
		require.NoError(t, repo.CreatePending(ctx, rec))
		rec.Emotion = model.EmotionFocused
		rec.Themes = []model.Theme{model.ThemeWork}
		rec.People = []model.Person{{Name: "Sarah", Sentiment: model.SentimentNeutral}}
		rec.Urgency = model.UrgencyMedium
		rec.Method = model.MethodFallback
		rec.Confidence = map[string]float64{model.FieldEmotion: 0.5}
		return repo.CompleteTx(ctx, db, rec)
	}

	require.NoError(t, complete())
	assert.ErrorIs(t, complete(), ErrAlreadyComplete)

	has, err := repo.HasComplete(ctx, e.ID, e.Version())
	require.NoError(t, err)
	assert.True(t, has)

	latest, err := repo.LatestForEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrichmentComplete, latest.Status)
	assert.Equal(t, []model.Theme{model.ThemeWork}, latest.Themes)
	assert.Equal(t, "Sarah", latest.People[0].Name)

	enriched, err := repo.ListEnrichedSince(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, enriched, 1)
	assert.Equal(t, e.ID, enriched[0].Entry.ID)

	missing, err := repo.ListUnenriched(ctx, Cursor{}, 10)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestEnrichmentRepository_FailedDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	entries := NewEntryRepository(db, zap.NewNop())
	repo := NewEnrichmentRepository(db, zap.NewNop())

	e := newEntry("note", time.Now())
	require.NoError(t, entries.Insert(ctx, e))

	rec := &model.EnrichmentRecord{ID: uuid.NewString(), EntryID: e.ID, EntryVersion: e.Version(), CreatedAt: time.Now()}
	require.NoError(t, repo.CreatePending(ctx, rec))
	require.NoError(t, repo.MarkFailed(ctx, rec.ID, "disk full", time.Millisecond))

	has, err := repo.HasComplete(ctx, e.ID, e.Version())
	require.NoError(t, err)
	assert.False(t, has)

	missing, err := repo.ListUnenriched(ctx, Cursor{}, 10)
	require.NoError(t, err)
	require.Len(t, missing, 1)
}

func TestPhraseRepository_UsesArePerEntry(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewPhraseRepository(db, zap.NewNop())
	now := time.Now()

	require.NoError(t, repo.RecordUseTx(ctx, db, "slept hours", "slept 7 hours", model.EventSleep, "e1", now))
	require.NoError(t, repo.RecordUseTx(ctx, db, "slept hours", "slept 7 hours", model.EventSleep, "e1", now))
	require.NoError(t, repo.RecordUseTx(ctx, db, "slept hours", "slept 6 hours", model.EventSleep, "e2", now))

	p, err := repo.Get(ctx, "slept hours")
	require.NoError(t, err)
	assert.Equal(t, 2, p.UsageCount)

	candidates, err := repo.PromotionCandidates(ctx, now.Add(-28*24*time.Hour), 3)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	require.NoError(t, repo.RecordUseTx(ctx, db, "slept hours", "slept 8 hours", model.EventSleep, "e3", now))
	candidates, err = repo.PromotionCandidates(ctx, now.Add(-28*24*time.Hour), 3)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	ok, err := repo.MarkPromoted(ctx, candidates[0].ID, now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.MarkPromoted(ctx, candidates[0].ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SetUserAction(ctx, "slept hours", model.UserActionRejected))
	promoted, err := repo.ListPromoted(ctx)
	require.NoError(t, err)
	assert.Empty(t, promoted)
}

func TestSyncMetaRepository_CheckpointOnlyMovesForward(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewSyncMetaRepository(db)

	rev, err := repo.Checkpoint(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), rev)

	require.NoError(t, repo.SetCheckpointTx(ctx, db, "u1", 12))
	require.NoError(t, repo.SetCheckpointTx(ctx, db, "u1", 5))

	rev, err = repo.Checkpoint(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(12), rev)
}

func TestFailureRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewFailureRepository(newTestDB(t))

	for want := int64(1); want <= 3; want++ {
		got, err := repo.IncrementAndGet(ctx, "push:e1")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	require.NoError(t, repo.Reset(ctx, "push:e1"))
	got, err := repo.IncrementAndGet(ctx, "push:e1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestPatternRepository_UpsertBySignature(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewPatternRepository(db, zap.NewNop())
	now := time.Now()

	p := &model.IntelligencePattern{
		Signature: "entity:sarah",
		Type:      model.PatternCorrelation,
		Trigger:   map[string]string{"person": "sarah"},
		Scope:     model.PatternScope{Entity: "sarah"},
		Metrics:   model.ConfidenceMetrics{Occurrences: 5, Confidence: 0.6, FirstSeen: now.Add(-time.Hour), LastSeen: now},
		UpdatedAt: now,
	}
	require.NoError(t, repo.UpsertTx(ctx, db, p))

	p2 := *p
	p2.ID = ""
	p2.Metrics = model.ConfidenceMetrics{Occurrences: 10, Confidence: 0.8, FirstSeen: now, LastSeen: now}
	require.NoError(t, repo.UpsertTx(ctx, db, &p2))

	list, err := repo.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 10, list[0].Metrics.Occurrences)
	assert.Equal(t, now.Add(-time.Hour).UnixMilli(), list[0].Metrics.FirstSeen.UnixMilli())
	assert.Equal(t, "sarah", list[0].Scope.Entity)

	high, err := repo.List(ctx, 0.9)
	require.NoError(t, err)
	assert.Empty(t, high)
}
