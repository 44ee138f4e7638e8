package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const remoteSchema = `
CREATE SEQUENCE IF NOT EXISTS notes_revision_seq;
CREATE TABLE IF NOT EXISTS notes (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id TEXT NOT NULL,
    client_id TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    device_id TEXT NOT NULL,
    deleted BOOLEAN NOT NULL DEFAULT FALSE,
    revision BIGINT NOT NULL DEFAULT nextval('notes_revision_seq')
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_notes_user_client ON notes (user_id, client_id);
CREATE INDEX IF NOT EXISTS idx_notes_user_revision ON notes (user_id, revision);
`

const noteColumns = `id::text, client_id, content, created_at, updated_at, device_id, deleted, revision`

type PostgresStore struct {
	db              *pgxpool.Pool
	logger          *zap.Logger
	maxContentBytes int
}

func NewPostgresStore(db *pgxpool.Pool, maxContentBytes int, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger, maxContentBytes: maxContentBytes}
}

// EnsureSchema creates the notes table and revision sequence if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, remoteSchema); err != nil {
		return fmt.Errorf("failed to ensure remote schema: %w", err)
	}
	return nil
}

// lockUserRevisions serializes revision assignment per user until commit.
// A sequence value is drawn before commit, so without it a lower revision
// could become visible after a puller already checkpointed past it.
const lockUserRevisions = `SELECT pg_advisory_xact_lock(hashtext($1))`

const upsertNote = `
        INSERT INTO notes (user_id, client_id, content, created_at, updated_at, device_id, deleted)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (user_id, client_id) DO UPDATE SET
            content = EXCLUDED.content,
            updated_at = EXCLUDED.updated_at,
            device_id = EXCLUDED.device_id,
            deleted = EXCLUDED.deleted,
            revision = nextval('notes_revision_seq')
        WHERE notes.updated_at < EXCLUDED.updated_at
        RETURNING id::text, revision
    `

// Upsert writes the record under the user's revision lock. An existing row is
// only replaced by a strictly newer updated_at, and every replacement draws a
// new revision.
func (s *PostgresStore) Upsert(ctx context.Context, userID string, rec Record) (UpsertResult, error) {
	if err := Validate(rec, s.maxContentBytes); err != nil {
		return UpsertResult{}, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, lockUserRevisions, userID); err != nil {
		return UpsertResult{}, fmt.Errorf("failed to lock user revisions: %w", err)
	}

	var res UpsertResult
	err = tx.QueryRow(ctx, upsertNote,
		userID, rec.ClientID, rec.Content, rec.CreatedAt.UTC(), rec.UpdatedAt.UTC(), rec.DeviceID, rec.Deleted,
	).Scan(&res.RemoteID, &res.Revision)
	switch {
	case err == nil:
		res.Applied = true
	case errors.Is(err, pgx.ErrNoRows):
		// 冲突且远端不旧于本次推送，返回远端当前版本
		row := tx.QueryRow(ctx, `SELECT `+noteColumns+` FROM notes WHERE user_id = $1 AND client_id = $2`, userID, rec.ClientID)
		current, err := scanNote(row)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("failed to load current note: %w", err)
		}
		res = UpsertResult{RemoteID: current.RemoteID, Revision: current.Revision, Current: current}
	default:
		s.logger.Error("Failed to upsert note",
			zap.String("client_id", rec.ClientID),
			zap.Error(err),
		)
		return UpsertResult{}, fmt.Errorf("failed to upsert note: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return UpsertResult{}, fmt.Errorf("failed to commit note: %w", err)
	}
	return res, nil
}

func (s *PostgresStore) ChangedSince(ctx context.Context, userID string, since int64, limit int) ([]Record, error) {
	sql := `
        SELECT ` + noteColumns + `
        FROM notes
        WHERE user_id = $1 AND revision > $2
        ORDER BY revision ASC
        LIMIT $3
    `
	rows, err := s.db.Query(ctx, sql, userID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query changed notes: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func scanNote(row pgx.Row) (*Record, error) {
	var rec Record
	if err := row.Scan(&rec.RemoteID, &rec.ClientID, &rec.Content, &rec.CreatedAt, &rec.UpdatedAt,
		&rec.DeviceID, &rec.Deleted, &rec.Revision); err != nil {
		return nil, err
	}
	rec.CreatedAt = rec.CreatedAt.Local()
	rec.UpdatedAt = rec.UpdatedAt.Local()
	return &rec, nil
}
