package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const keyPullCheckpoint = "pull_checkpoint"

// SyncMetaRepository stores small key/value sync bookkeeping.
type SyncMetaRepository struct {
	db *sql.DB
}

func NewSyncMetaRepository(db *sql.DB) *SyncMetaRepository {
	return &SyncMetaRepository{db: db}
}

// Checkpoint returns the highest remote revision applied locally for the user.
func (r *SyncMetaRepository) Checkpoint(ctx context.Context, userID string) (int64, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM sync_meta WHERE key = ?`, keyPullCheckpoint+":"+userID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	rev, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse checkpoint: %w", err)
	}
	return rev, nil
}

// SetCheckpointTx only moves the checkpoint forward.
func (r *SyncMetaRepository) SetCheckpointTx(ctx context.Context, db DBTX, userID string, revision int64) error {
	_, err := db.ExecContext(ctx, `
        INSERT INTO sync_meta (key, value) VALUES (?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value
        WHERE CAST(sync_meta.value AS INTEGER) < CAST(excluded.value AS INTEGER)
    `, keyPullCheckpoint+":"+userID, strconv.FormatInt(revision, 10))
	if err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// FailureRepository counts consecutive permanent failures per key. It has the
// same shape as the redis-backed util.RetryCounter.
type FailureRepository struct {
	db *sql.DB
}

func NewFailureRepository(db *sql.DB) *FailureRepository {
	return &FailureRepository{db: db}
}

func (r *FailureRepository) IncrementAndGet(ctx context.Context, key string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `
        INSERT INTO sync_failures (key, count, updated_at) VALUES (?, 1, ?)
        ON CONFLICT(key) DO UPDATE SET count = sync_failures.count + 1, updated_at = excluded.updated_at
        RETURNING count
    `, key, toMillis(time.Now())).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to increment failure count: %w", err)
	}
	return count, nil
}

func (r *FailureRepository) Reset(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sync_failures WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to reset failure count: %w", err)
	}
	return nil
}

type QuarantineRecord struct {
	EntryID       string
	Fingerprint   string
	Reason        string
	QuarantinedAt time.Time
}

type QuarantineRepository struct {
	db *sql.DB
}

func NewQuarantineRepository(db *sql.DB) *QuarantineRepository {
	return &QuarantineRepository{db: db}
}

func (r *QuarantineRepository) Put(ctx context.Context, rec QuarantineRecord) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO quarantine (entry_id, fingerprint, reason, quarantined_at) VALUES (?, ?, ?, ?)
        ON CONFLICT(entry_id) DO UPDATE SET
            fingerprint = excluded.fingerprint,
            reason = excluded.reason,
            quarantined_at = excluded.quarantined_at
    `, rec.EntryID, rec.Fingerprint, rec.Reason, toMillis(rec.QuarantinedAt))
	if err != nil {
		return fmt.Errorf("failed to quarantine entry: %w", err)
	}
	return nil
}

// Get returns the quarantine record for the entry, or ErrNotFound.
func (r *QuarantineRepository) Get(ctx context.Context, entryID string) (*QuarantineRecord, error) {
	var (
		rec QuarantineRecord
		at  int64
	)
	err := r.db.QueryRowContext(ctx, `
        SELECT entry_id, fingerprint, reason, quarantined_at FROM quarantine WHERE entry_id = ?
    `, entryID).Scan(&rec.EntryID, &rec.Fingerprint, &rec.Reason, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read quarantine: %w", err)
	}
	rec.QuarantinedAt = fromMillis(at)
	return &rec, nil
}

func (r *QuarantineRepository) Delete(ctx context.Context, entryID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM quarantine WHERE entry_id = ?`, entryID); err != nil {
		return fmt.Errorf("failed to release quarantine: %w", err)
	}
	return nil
}

func (r *QuarantineRepository) List(ctx context.Context) ([]QuarantineRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT entry_id, fingerprint, reason, quarantined_at FROM quarantine ORDER BY quarantined_at
    `)
	if err != nil {
		return nil, fmt.Errorf("failed to list quarantine: %w", err)
	}
	defer rows.Close()

	out := []QuarantineRecord{}
	for rows.Next() {
		var (
			rec QuarantineRecord
			at  int64
		)
		if err := rows.Scan(&rec.EntryID, &rec.Fingerprint, &rec.Reason, &at); err != nil {
			return nil, err
		}
		rec.QuarantinedAt = fromMillis(at)
		out = append(out, rec)
	}
	return out, rows.Err()
}
