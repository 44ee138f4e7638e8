// Package entrystore is the local source of truth for notes. Writes complete
// without touching the network; enrichment and sync are only notified.
package entrystore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"leannotes/internal/model"
	"leannotes/internal/repository"
	"leannotes/pkg/auth"
)

var (
	ErrEmptyContent = errors.New("entry content is empty")
	ErrNotFound     = errors.New("entry not found")
	// ErrPersist wraps local storage failures; these are the only errors
	// surfaced to the user.
	ErrPersist = errors.New("local storage error")
)

// Predicate filters Query results.
type Predicate = repository.EntryFilter

// Enqueuer accepts entries for background enrichment. Submit must not block.
type Enqueuer interface {
	Submit(entry *model.Entry)
}

// SyncScheduler requests a sync cycle. TriggerNow must not block.
type SyncScheduler interface {
	TriggerNow()
}

type Store struct {
	entries  *repository.EntryRepository
	logger   *zap.Logger
	deviceID string
	now      func() time.Time

	enqueuer  Enqueuer
	scheduler SyncScheduler
	session   auth.SessionProvider

	mu sync.Mutex
}

func NewStore(entries *repository.EntryRepository, deviceID string, logger *zap.Logger) *Store {
	return &Store{
		entries:  entries,
		logger:   logger,
		deviceID: deviceID,
		now:      time.Now,
	}
}

// WithEnqueuer registers the enrichment hook.
func (s *Store) WithEnqueuer(e Enqueuer) *Store {
	s.enqueuer = e
	return s
}

// WithScheduler registers the sync hook; it only fires while session reports
// a signed-in user.
func (s *Store) WithScheduler(sched SyncScheduler, session auth.SessionProvider) *Store {
	s.scheduler = sched
	s.session = session
	return s
}

// WithClock replaces the time source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) DeviceID() string {
	return s.deviceID
}

func (s *Store) Insert(ctx context.Context, content string) (*model.Entry, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	s.mu.Lock()
	now := s.now().Truncate(time.Millisecond)
	e := &model.Entry{
		ID:        uuid.NewString(),
		Content:   content,
		Tags:      ExtractTags(content),
		CreatedAt: now,
		UpdatedAt: now,
		DeviceID:  s.deviceID,
		SyncState: model.SyncStateUnsynced,
	}
	err := s.entries.Insert(ctx, e)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to insert entry: %w", ErrPersist, err)
	}

	s.logger.Debug("Entry inserted", zap.String("entry_id", e.ID), zap.Int("tags", len(e.Tags)))
	s.afterWrite(ctx, e, true)
	return e, nil
}

func (s *Store) Update(ctx context.Context, id, content string) (*model.Entry, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	s.mu.Lock()
	var updated *model.Entry
	err := repository.WithTx(ctx, s.entries.DB(), func(tx *sql.Tx) error {
		e, err := s.entries.GetTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if e.Deleted() {
			return repository.ErrNotFound
		}

		e.Content = content
		e.Tags = ExtractTags(content)
		e.UpdatedAt = s.nextUpdatedAt(e.UpdatedAt)
		if e.SyncState == model.SyncStateSynced || e.SyncState == model.SyncStateSyncing {
			e.SyncState = model.SyncStateStale
		}
		if err := s.entries.SaveTx(ctx, tx, e); err != nil {
			return err
		}
		updated = e
		return nil
	})
	s.mu.Unlock()
	if err != nil {
		return nil, s.wrap("update", err)
	}

	s.logger.Debug("Entry updated",
		zap.String("entry_id", updated.ID),
		zap.String("sync_state", string(updated.SyncState)),
	)
	s.afterWrite(ctx, updated, true)
	return updated, nil
}

// Delete tombstones the entry so the deletion can propagate. An entry that
// never reached the remote store is removed outright.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	var (
		tombstone *model.Entry
		hard      bool
	)
	err := repository.WithTx(ctx, s.entries.DB(), func(tx *sql.Tx) error {
		e, err := s.entries.GetTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if e.Deleted() {
			return repository.ErrNotFound
		}

		if e.SyncState == model.SyncStateUnsynced && e.RemoteID == nil {
			hard = true
			return s.entries.HardDeleteTx(ctx, tx, id)
		}

		now := s.nextUpdatedAt(e.UpdatedAt)
		e.DeletedAt = &now
		e.UpdatedAt = now
		if e.SyncState == model.SyncStateSynced || e.SyncState == model.SyncStateSyncing {
			e.SyncState = model.SyncStateStale
		}
		tombstone = e
		return s.entries.SaveTx(ctx, tx, e)
	})
	s.mu.Unlock()
	if err != nil {
		return s.wrap("delete", err)
	}

	s.logger.Debug("Entry deleted", zap.String("entry_id", id), zap.Bool("hard", hard))
	if tombstone != nil {
		s.afterWrite(ctx, tombstone, false)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*model.Entry, error) {
	e, err := s.entries.Get(ctx, id)
	if err != nil {
		return nil, s.wrap("get", err)
	}
	return e, nil
}

func (s *Store) Query(ctx context.Context, p Predicate, limit int) ([]*model.Entry, error) {
	entries, err := s.entries.Query(ctx, p, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query entries: %w", ErrPersist, err)
	}
	return entries, nil
}

// Today returns entries created since local midnight.
func (s *Store) Today(ctx context.Context) ([]*model.Entry, error) {
	start := startOfDay(s.now())
	return s.Query(ctx, Predicate{Since: start}, 0)
}

func (s *Store) Yesterday(ctx context.Context) ([]*model.Entry, error) {
	today := startOfDay(s.now())
	return s.Query(ctx, Predicate{Since: today.AddDate(0, 0, -1), Until: today}, 0)
}

// LastWeek returns entries from the trailing seven days.
func (s *Store) LastWeek(ctx context.Context) ([]*model.Entry, error) {
	return s.Query(ctx, Predicate{Since: s.now().Add(-7 * 24 * time.Hour)}, 0)
}

// nextUpdatedAt keeps updated_at strictly increasing per entry even when the
// clock stalls or steps back.
func (s *Store) nextUpdatedAt(prev time.Time) time.Time {
	now := s.now().Truncate(time.Millisecond)
	if !now.After(prev) {
		return prev.Add(time.Millisecond)
	}
	return now
}

func (s *Store) afterWrite(ctx context.Context, e *model.Entry, enrich bool) {
	if enrich && s.enqueuer != nil {
		s.enqueuer.Submit(e)
	}
	if s.scheduler == nil || s.session == nil {
		return
	}
	if _, ok := s.session.UserID(ctx); ok {
		s.scheduler.TriggerNow()
	}
}

func (s *Store) wrap(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: failed to %s entry: %w", ErrPersist, op, err)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
