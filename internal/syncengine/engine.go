// Package syncengine converges the local cache with the remote store: push
// local changes, then pull remote revisions past the checkpoint, last write
// wins on updated_at.
package syncengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	mqcontracts "leannotes/contracts/mq"
	"leannotes/internal/entrystore"
	"leannotes/internal/model"
	"leannotes/internal/remote"
	"leannotes/internal/repository"
	"leannotes/pkg/auth"
	"leannotes/pkg/config"
	"leannotes/pkg/logger"
	"leannotes/pkg/metrics"
	"leannotes/pkg/trace"
	"leannotes/pkg/util"
)

// Notifier publishes cross-device notifications. *mq.Publisher satisfies it.
type Notifier interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Enqueuer receives entries changed by pull so they get enriched.
type Enqueuer interface {
	Submit(e *model.Entry)
}

// Result summarizes one cycle.
type Result struct {
	Pushed      int
	Pulled      int
	KeptLocal   int
	Quarantined int
	Checkpoint  int64
	Skipped     bool
}

type Engine struct {
	entries    *repository.EntryRepository
	meta       *repository.SyncMetaRepository
	quarantine *Quarantine
	remote     remote.Store
	session    auth.SessionProvider
	cfg        config.SyncConfig
	deviceID   string
	logger     *zap.Logger

	notifier Notifier
	enqueuer Enqueuer

	kick    chan struct{}
	running sync.Mutex
}

func NewEngine(
	entries *repository.EntryRepository,
	meta *repository.SyncMetaRepository,
	quarantine *Quarantine,
	store remote.Store,
	session auth.SessionProvider,
	cfg config.SyncConfig,
	deviceID string,
	logger *zap.Logger,
) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = 30 * time.Second
	}
	if cfg.PullBatchSize <= 0 {
		cfg.PullBatchSize = 200
	}
	return &Engine{
		entries:    entries,
		meta:       meta,
		quarantine: quarantine,
		remote:     store,
		session:    session,
		cfg:        cfg,
		deviceID:   deviceID,
		logger:     logger,
		kick:       make(chan struct{}, 1),
	}
}

// WithNotifier 设置跨设备通知发布者
func (e *Engine) WithNotifier(n Notifier) *Engine {
	e.notifier = n
	return e
}

// WithEnqueuer 设置拉取后的富化入队
func (e *Engine) WithEnqueuer(q Enqueuer) *Engine {
	e.enqueuer = q
	return e
}

// TriggerNow asks for a cycle as soon as possible. It never blocks; triggers
// arriving while one is pending coalesce.
func (e *Engine) TriggerNow() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Start runs cycles on the interval and on every trigger until ctx is done.
func (e *Engine) Start(ctx context.Context) {
	if n, err := e.entries.ResetSyncing(ctx); err != nil {
		e.logger.Error("Failed to recover syncing entries", zap.Error(err))
	} else if n > 0 {
		e.logger.Info("Recovered entries left in syncing", zap.Int64("count", n))
	}

	e.logger.Info("Starting sync engine",
		zap.Duration("interval", e.cfg.Interval),
		zap.String("device_id", e.deviceID),
	)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Sync engine stopped")
			return
		case <-ticker.C:
		case <-e.kick:
		}
		if _, err := e.RunCycle(ctx); err != nil && ctx.Err() == nil {
			e.logger.Warn("Sync cycle incomplete, will retry", zap.Error(err))
		}
	}
}

// RunCycle pushes then pulls once. A cycle already in flight makes this call
// return Skipped. The returned error is always transient.
func (e *Engine) RunCycle(ctx context.Context) (Result, error) {
	if !e.running.TryLock() {
		return Result{Skipped: true}, nil
	}
	defer e.running.Unlock()

	userID, ok := e.session.UserID(ctx)
	if !ok {
		return Result{Skipped: true}, nil
	}

	ctx = trace.Ensure(ctx)
	ctx, cancel := context.WithTimeout(ctx, e.cfg.CycleTimeout)
	defer cancel()
	log := logger.WithTrace(ctx, e.logger).With(zap.String("user_id", userID))

	start := time.Now()
	var res Result
	err := e.push(ctx, log, userID, &res)
	if err == nil {
		err = e.pull(ctx, log, userID, &res)
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordSyncCycle(status, time.Since(start))

	if res.Pushed > 0 {
		e.notify(ctx, log, userID, res.Pushed)
	}

	log.Debug("Sync cycle finished",
		zap.Int("pushed", res.Pushed),
		zap.Int("pulled", res.Pulled),
		zap.Int("kept_local", res.KeptLocal),
		zap.Int("quarantined", res.Quarantined),
		zap.Int64("checkpoint", res.Checkpoint),
		zap.Duration("duration", time.Since(start)),
	)
	return res, err
}

func (e *Engine) push(ctx context.Context, log *zap.Logger, userID string, res *Result) error {
	pending, err := e.pushable(ctx)
	if err != nil {
		return err
	}

	for _, entry := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}

		marked, err := e.entries.MarkSyncing(ctx, entry.ID, entry.UpdatedAt)
		if err != nil {
			return err
		}
		if !marked {
			// edited since listed; next cycle picks up the new version
			continue
		}

		upserted, err := e.remote.Upsert(ctx, userID, toRecord(entry))
		if err != nil {
			// revert even when the cycle deadline fired
			if revertErr := e.entries.RevertSyncing(context.WithoutCancel(ctx), entry.ID, entry.SyncState); revertErr != nil {
				log.Error("Failed to revert entry state", zap.String("entry_id", entry.ID), zap.Error(revertErr))
			}
			if util.IsDataShapeError(err) {
				metrics.IncrementSyncEntries("push", "rejected", 1)
				q, qErr := e.quarantine.RecordFailure(ctx, entry, err)
				if qErr != nil {
					log.Error("Failed to record push failure", zap.String("entry_id", entry.ID), zap.Error(qErr))
				}
				if q {
					res.Quarantined++
				}
				continue
			}
			metrics.IncrementSyncEntries("push", "failed", 1)
			return fmt.Errorf("failed to push entry %s: %w", entry.ID, err)
		}

		if !upserted.Applied && upserted.Current != nil && newer(upserted.Current.UpdatedAt, entry.UpdatedAt) {
			// remote already holds a newer version; it wins
			if err := e.applyRemote(ctx, *upserted.Current, res); err != nil {
				_ = e.entries.RevertSyncing(context.WithoutCancel(ctx), entry.ID, entry.SyncState)
				return err
			}
			continue
		}

		if _, err := e.entries.MarkSynced(context.WithoutCancel(ctx), entry.ID, upserted.RemoteID, entry.UpdatedAt); err != nil {
			return err
		}
		if err := e.quarantine.Clear(ctx, entry); err != nil {
			log.Warn("Failed to reset push failure count", zap.String("entry_id", entry.ID), zap.Error(err))
		}
		res.Pushed++
	}

	metrics.IncrementSyncEntries("push", "ok", res.Pushed)
	return nil
}

// pushable collects up to one batch of entries to push, paging past
// quarantined ones so they never hold back newer changes.
func (e *Engine) pushable(ctx context.Context) ([]*model.Entry, error) {
	var (
		out    []*model.Entry
		cursor repository.Cursor
	)
	for len(out) < e.cfg.PullBatchSize {
		page, err := e.entries.ListPushable(ctx, cursor, e.cfg.PullBatchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list pushable entries: %w", err)
		}
		for _, entry := range page {
			cursor = repository.CursorAt(entry)
			quarantined, err := e.quarantine.Check(ctx, entry)
			if err != nil {
				return nil, fmt.Errorf("failed to check quarantine: %w", err)
			}
			if quarantined {
				continue
			}
			out = append(out, entry)
			if len(out) == e.cfg.PullBatchSize {
				break
			}
		}
		if len(page) < e.cfg.PullBatchSize {
			break
		}
	}
	return out, nil
}

func (e *Engine) pull(ctx context.Context, log *zap.Logger, userID string, res *Result) error {
	checkpoint, err := e.meta.Checkpoint(ctx, userID)
	if err != nil {
		return err
	}
	res.Checkpoint = checkpoint

	for {
		records, err := e.remote.ChangedSince(ctx, userID, checkpoint, e.cfg.PullBatchSize)
		if err != nil {
			return fmt.Errorf("failed to pull changes: %w", err)
		}

		for _, rec := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			var changed *model.Entry
			err := repository.WithTx(ctx, e.entries.DB(), func(tx *sql.Tx) error {
				var err error
				if changed, err = e.applyRemoteTx(ctx, tx, rec, res); err != nil {
					return err
				}
				return e.meta.SetCheckpointTx(ctx, tx, userID, rec.Revision)
			})
			if err != nil {
				log.Error("Failed to apply remote record",
					zap.String("client_id", rec.ClientID),
					zap.Int64("revision", rec.Revision),
					zap.Error(err),
				)
				return err
			}
			if changed != nil && !changed.Deleted() && e.enqueuer != nil {
				e.enqueuer.Submit(changed)
			}
			checkpoint = rec.Revision
			res.Checkpoint = checkpoint
		}

		if len(records) < e.cfg.PullBatchSize {
			break
		}
	}

	metrics.IncrementSyncEntries("pull", "applied", res.Pulled)
	metrics.IncrementSyncEntries("pull", "kept_local", res.KeptLocal)
	return nil
}

// applyRemote applies a single record outside the pull loop, without moving
// the checkpoint.
func (e *Engine) applyRemote(ctx context.Context, rec remote.Record, res *Result) error {
	var changed *model.Entry
	err := repository.WithTx(ctx, e.entries.DB(), func(tx *sql.Tx) error {
		var err error
		changed, err = e.applyRemoteTx(ctx, tx, rec, res)
		return err
	})
	if err != nil {
		return err
	}
	if changed != nil && !changed.Deleted() && e.enqueuer != nil {
		e.enqueuer.Submit(changed)
	}
	return nil
}

// applyRemoteTx resolves one remote record against the local copy. It returns
// the entry when local content changed.
func (e *Engine) applyRemoteTx(ctx context.Context, tx *sql.Tx, rec remote.Record, res *Result) (*model.Entry, error) {
	local, err := e.entries.GetTx(ctx, tx, rec.ClientID)
	if errors.Is(err, repository.ErrNotFound) {
		if rec.Deleted {
			return nil, nil
		}
		entry := fromRecord(rec)
		if err := e.entries.InsertTx(ctx, tx, entry); err != nil {
			return nil, err
		}
		res.Pulled++
		return entry, nil
	}
	if err != nil {
		return nil, err
	}

	if !newer(rec.UpdatedAt, local.UpdatedAt) {
		// local is at least as new; it goes out on the next push
		if local.RemoteID == nil {
			id := rec.RemoteID
			local.RemoteID = &id
			if err := e.entries.SaveTx(ctx, tx, local); err != nil {
				return nil, err
			}
		}
		if local.SyncState != model.SyncStateSynced {
			res.KeptLocal++
		}
		return nil, nil
	}

	entry := fromRecord(rec)
	entry.CreatedAt = local.CreatedAt
	if err := e.entries.SaveTx(ctx, tx, entry); err != nil {
		return nil, err
	}
	res.Pulled++
	return entry, nil
}

func (e *Engine) notify(ctx context.Context, log *zap.Logger, userID string, pushed int) {
	if e.notifier == nil {
		return
	}
	payload := mqcontracts.NotesChangedPayload{
		UserID:   userID,
		DeviceID: e.deviceID,
		Pushed:   pushed,
		At:       time.Now(),
		TraceID:  trace.FromContext(ctx),
	}
	if err := e.notifier.Publish(ctx, mqcontracts.RoutingKeyNotesChanged, payload); err != nil {
		log.Warn("Failed to publish notes.changed", zap.Error(err))
	}
}

func newer(a, b time.Time) bool {
	return a.UnixMilli() > b.UnixMilli()
}

func toRecord(e *model.Entry) remote.Record {
	return remote.Record{
		ClientID:  e.ID,
		Content:   e.Content,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
		DeviceID:  e.DeviceID,
		Deleted:   e.Deleted(),
	}
}

func fromRecord(rec remote.Record) *model.Entry {
	remoteID := rec.RemoteID
	entry := &model.Entry{
		ID:        rec.ClientID,
		RemoteID:  &remoteID,
		Content:   rec.Content,
		Tags:      entrystore.ExtractTags(rec.Content),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
		DeviceID:  rec.DeviceID,
		SyncState: model.SyncStateSynced,
	}
	if rec.Deleted {
		at := rec.UpdatedAt
		entry.DeletedAt = &at
	}
	return entry
}
