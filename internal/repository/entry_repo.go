package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"leannotes/internal/model"
)

const entryColumns = `id, remote_id, content, tags, created_at, updated_at, device_id, sync_state, deleted_at`

// EntryFilter selects entries. Zero-valued fields do not filter.
type EntryFilter struct {
	Contains       string
	Tag            string
	Since          time.Time
	Until          time.Time
	States         []model.SyncState
	IncludeDeleted bool
}

type EntryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewEntryRepository(db *sql.DB, logger *zap.Logger) *EntryRepository {
	return &EntryRepository{db: db, logger: logger}
}

func (r *EntryRepository) DB() *sql.DB {
	return r.db
}

func (r *EntryRepository) Insert(ctx context.Context, e *model.Entry) error {
	return r.InsertTx(ctx, r.db, e)
}

func (r *EntryRepository) InsertTx(ctx context.Context, db DBTX, e *model.Entry) error {
	tags, err := encodeJSON(nonNilStrings(e.Tags))
	if err != nil {
		return err
	}
	query := `
        INSERT INTO entries (` + entryColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err = db.ExecContext(ctx, query,
		e.ID,
		e.RemoteID,
		e.Content,
		tags,
		toMillis(e.CreatedAt),
		toMillis(e.UpdatedAt),
		e.DeviceID,
		string(e.SyncState),
		nullMillis(e.DeletedAt),
	)
	if err != nil {
		r.logger.Error("Failed to insert entry",
			zap.String("entry_id", e.ID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// Save overwrites every mutable column of an existing entry.
func (r *EntryRepository) Save(ctx context.Context, e *model.Entry) error {
	return r.SaveTx(ctx, r.db, e)
}

func (r *EntryRepository) SaveTx(ctx context.Context, db DBTX, e *model.Entry) error {
	tags, err := encodeJSON(nonNilStrings(e.Tags))
	if err != nil {
		return err
	}
	query := `
        UPDATE entries
        SET remote_id = ?, content = ?, tags = ?, created_at = ?, updated_at = ?,
            device_id = ?, sync_state = ?, deleted_at = ?
        WHERE id = ?
    `
	result, err := db.ExecContext(ctx, query,
		e.RemoteID,
		e.Content,
		tags,
		toMillis(e.CreatedAt),
		toMillis(e.UpdatedAt),
		e.DeviceID,
		string(e.SyncState),
		nullMillis(e.DeletedAt),
		e.ID,
	)
	if err != nil {
		r.logger.Error("Failed to save entry",
			zap.String("entry_id", e.ID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to save entry: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *EntryRepository) Get(ctx context.Context, id string) (*model.Entry, error) {
	return r.GetTx(ctx, r.db, id)
}

func (r *EntryRepository) GetTx(ctx context.Context, db DBTX, id string) (*model.Entry, error) {
	row := db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return e, nil
}

func (r *EntryRepository) HardDeleteTx(ctx context.Context, db DBTX, id string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// Query returns entries matching f, newest first.
func (r *EntryRepository) Query(ctx context.Context, f EntryFilter, limit int) ([]*model.Entry, error) {
	var (
		where []string
		args  []any
	)
	if !f.IncludeDeleted {
		where = append(where, "deleted_at IS NULL")
	}
	if f.Contains != "" {
		where = append(where, "instr(lower(content), lower(?)) > 0")
		args = append(args, f.Contains)
	}
	if f.Tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(entries.tags) WHERE json_each.value = ?)")
		args = append(args, strings.ToLower(strings.TrimPrefix(f.Tag, "#")))
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, toMillis(f.Since))
	}
	if !f.Until.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, toMillis(f.Until))
	}
	if len(f.States) > 0 {
		placeholders := make([]string, len(f.States))
		for i, s := range f.States {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		where = append(where, "sync_state IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := `SELECT ` + entryColumns + ` FROM entries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return r.list(ctx, r.db, query, args...)
}

// ListPushable returns unsynced and stale entries after the cursor, oldest
// change first. Tombstones are included so deletions propagate.
func (r *EntryRepository) ListPushable(ctx context.Context, after Cursor, limit int) ([]*model.Entry, error) {
	cond, args := after.where("", nil)
	query := `
        SELECT ` + entryColumns + `
        FROM entries
        WHERE sync_state IN ('unsynced', 'stale')` + cond + `
        ORDER BY updated_at ASC, id ASC
        LIMIT ?
    `
	return r.list(ctx, r.db, query, append(args, limit)...)
}

// ListCreatedBetween returns live entries created in [since, until), oldest first.
func (r *EntryRepository) ListCreatedBetween(ctx context.Context, since, until time.Time) ([]*model.Entry, error) {
	query := `
        SELECT ` + entryColumns + `
        FROM entries
        WHERE deleted_at IS NULL AND created_at >= ? AND created_at < ?
        ORDER BY created_at ASC
    `
	return r.list(ctx, r.db, query, toMillis(since), toMillis(until))
}

// MarkSyncing moves a pushable entry to syncing. It reports false when the
// entry changed state or content since it was listed.
func (r *EntryRepository) MarkSyncing(ctx context.Context, id string, updatedAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
        UPDATE entries SET sync_state = 'syncing'
        WHERE id = ? AND updated_at = ? AND sync_state IN ('unsynced', 'stale')
    `, id, toMillis(updatedAt))
	if err != nil {
		return false, fmt.Errorf("failed to mark entry syncing: %w", err)
	}
	n, _ := result.RowsAffected()
	return n == 1, nil
}

// MarkSynced records the remote id and moves the entry to synced, unless it was
// edited while the push was in flight; then it stays stale for the next cycle.
func (r *EntryRepository) MarkSynced(ctx context.Context, id, remoteID string, pushedUpdatedAt time.Time) (model.SyncState, error) {
	var state string
	err := r.db.QueryRowContext(ctx, `
        UPDATE entries
        SET remote_id = ?,
            sync_state = CASE
                WHEN sync_state = 'syncing' AND updated_at = ? THEN 'synced'
                ELSE sync_state
            END
        WHERE id = ?
        RETURNING sync_state
    `, remoteID, toMillis(pushedUpdatedAt), id).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to mark entry synced: %w", err)
	}
	return model.SyncState(state), nil
}

// RevertSyncing puts a syncing entry back to the state it had before the push.
func (r *EntryRepository) RevertSyncing(ctx context.Context, id string, previous model.SyncState) error {
	_, err := r.db.ExecContext(ctx, `
        UPDATE entries SET sync_state = ?
        WHERE id = ? AND sync_state = 'syncing'
    `, string(previous), id)
	if err != nil {
		return fmt.Errorf("failed to revert entry state: %w", err)
	}
	return nil
}

// ResetSyncing recovers entries left in syncing by an interrupted process.
// Entries that already have a remote id were edited after a sync, so they go
// back to stale; the rest to unsynced.
func (r *EntryRepository) ResetSyncing(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
        UPDATE entries
        SET sync_state = CASE WHEN remote_id IS NULL THEN 'unsynced' ELSE 'stale' END
        WHERE sync_state = 'syncing'
    `)
	if err != nil {
		return 0, fmt.Errorf("failed to reset syncing entries: %w", err)
	}
	return result.RowsAffected()
}

func (r *EntryRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE deleted_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

func (r *EntryRepository) list(ctx context.Context, db DBTX, query string, args ...any) ([]*model.Entry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query entries", zap.Error(err))
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := []*model.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(s scanner) (*model.Entry, error) {
	var (
		e        model.Entry
		remoteID sql.NullString
		tags     string
		created  int64
		updated  int64
		state    string
		deleted  sql.NullInt64
	)
	if err := s.Scan(&e.ID, &remoteID, &e.Content, &tags, &created, &updated, &e.DeviceID, &state, &deleted); err != nil {
		return nil, err
	}
	if remoteID.Valid {
		e.RemoteID = &remoteID.String
	}
	if err := decodeJSON(tags, &e.Tags); err != nil {
		return nil, err
	}
	e.CreatedAt = fromMillis(created)
	e.UpdatedAt = fromMillis(updated)
	e.SyncState = model.SyncState(state)
	e.DeletedAt = fromNullMillis(deleted)
	return &e, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
