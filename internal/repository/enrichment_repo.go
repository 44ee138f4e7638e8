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

// ErrAlreadyComplete is returned when a complete record already exists for
// the entry version.
var ErrAlreadyComplete = errors.New("enrichment already complete for entry version")

const enrichmentColumns = `id, entry_id, entry_version, emotion, themes, people, urgency, actions, questions,
    decisions, confidence, status, method, error, duration_ms, created_at`

type EnrichmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewEnrichmentRepository(db *sql.DB, logger *zap.Logger) *EnrichmentRepository {
	return &EnrichmentRepository{db: db, logger: logger}
}

func (r *EnrichmentRepository) DB() *sql.DB {
	return r.db
}

// CreatePending inserts a new attempt in pending state.
func (r *EnrichmentRepository) CreatePending(ctx context.Context, rec *model.EnrichmentRecord) error {
	now := toMillis(rec.CreatedAt)
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO enrichments (id, entry_id, entry_version, status, created_at, updated_at)
        VALUES (?, ?, ?, 'pending', ?, ?)
    `, rec.ID, rec.EntryID, rec.EntryVersion, now, now)
	if err != nil {
		return fmt.Errorf("failed to create pending enrichment: %w", err)
	}
	rec.Status = model.EnrichmentPending
	return nil
}

func (r *EnrichmentRepository) SetStatus(ctx context.Context, id string, status model.EnrichmentStatus) error {
	_, err := r.db.ExecContext(ctx, `UPDATE enrichments SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), toMillis(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to set enrichment status: %w", err)
	}
	return nil
}

// CompleteTx writes the extracted fields and marks the attempt complete.
func (r *EnrichmentRepository) CompleteTx(ctx context.Context, db DBTX, rec *model.EnrichmentRecord) error {
	themes, err := encodeJSON(nonNilThemes(rec.Themes))
	if err != nil {
		return err
	}
	people, err := encodeJSON(nonNilPeople(rec.People))
	if err != nil {
		return err
	}
	actions, err := encodeJSON(nonNilStrings(rec.Actions))
	if err != nil {
		return err
	}
	questions, err := encodeJSON(nonNilStrings(rec.Questions))
	if err != nil {
		return err
	}
	decisions, err := encodeJSON(nonNilStrings(rec.Decisions))
	if err != nil {
		return err
	}
	confidence, err := encodeJSON(rec.Confidence)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
        UPDATE enrichments
        SET emotion = ?, themes = ?, people = ?, urgency = ?, actions = ?, questions = ?,
            decisions = ?, confidence = ?, status = 'complete', method = ?, error = NULL,
            duration_ms = ?, updated_at = ?
        WHERE id = ?
    `,
		string(rec.Emotion), themes, people, string(rec.Urgency), actions, questions,
		decisions, confidence, string(rec.Method), rec.Duration.Milliseconds(), toMillis(time.Now()), rec.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyComplete
		}
		return fmt.Errorf("failed to complete enrichment: %w", err)
	}
	rec.Status = model.EnrichmentComplete
	return nil
}

func (r *EnrichmentRepository) MarkFailed(ctx context.Context, id, reason string, duration time.Duration) error {
	_, err := r.db.ExecContext(ctx, `
        UPDATE enrichments SET status = 'failed', error = ?, duration_ms = ?, updated_at = ?
        WHERE id = ?
    `, reason, duration.Milliseconds(), toMillis(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to mark enrichment failed: %w", err)
	}
	return nil
}

// FailAbandoned marks attempts left pending or processing by an earlier run as failed.
func (r *EnrichmentRepository) FailAbandoned(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
        UPDATE enrichments SET status = 'failed', error = 'abandoned', updated_at = ?
        WHERE status IN ('pending', 'processing')
    `, toMillis(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("failed to fail abandoned enrichments: %w", err)
	}
	return result.RowsAffected()
}

func (r *EnrichmentRepository) HasComplete(ctx context.Context, entryID string, version int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM enrichments
        WHERE entry_id = ? AND entry_version = ? AND status = 'complete'
    `, entryID, version).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check enrichment: %w", err)
	}
	return n > 0, nil
}

// LatestForEntry returns the most recent attempt for the entry, of any status.
func (r *EnrichmentRepository) LatestForEntry(ctx context.Context, entryID string) (*model.EnrichmentRecord, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT `+enrichmentColumns+` FROM enrichments
        WHERE entry_id = ?
        ORDER BY entry_version DESC, CASE status WHEN 'complete' THEN 0 ELSE 1 END, created_at DESC
        LIMIT 1
    `, entryID)
	rec, err := scanEnrichment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get enrichment: %w", err)
	}
	return rec, nil
}

// CountByStatus returns attempts per status for an entry.
func (r *EnrichmentRepository) CountByStatus(ctx context.Context, entryID string) (map[model.EnrichmentStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT status, COUNT(*) FROM enrichments WHERE entry_id = ? GROUP BY status
    `, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to count enrichments: %w", err)
	}
	defer rows.Close()

	out := make(map[model.EnrichmentStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[model.EnrichmentStatus(status)] = n
	}
	return out, rows.Err()
}

// ListEnrichedSince joins live entries created since the given time with the
// complete record of their current version.
func (r *EnrichmentRepository) ListEnrichedSince(ctx context.Context, since time.Time) ([]model.Enriched, error) {
	cols := prefixColumns("e.", entryColumns) + ", " + prefixColumns("en.", enrichmentColumns)
	rows, err := r.db.QueryContext(ctx, `
        SELECT `+cols+`
        FROM entries e
        JOIN enrichments en
          ON en.entry_id = e.id AND en.entry_version = e.updated_at AND en.status = 'complete'
        WHERE e.deleted_at IS NULL AND e.created_at >= ?
        ORDER BY e.created_at ASC
    `, toMillis(since))
	if err != nil {
		return nil, fmt.Errorf("failed to list enriched entries: %w", err)
	}
	defer rows.Close()

	out := []model.Enriched{}
	for rows.Next() {
		entry, rec, err := scanEnriched(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enriched entry: %w", err)
		}
		out = append(out, model.Enriched{Entry: entry, Record: rec})
	}
	return out, rows.Err()
}

// ListUnenriched returns live entries after the cursor without a complete
// record for their current version, oldest change first.
func (r *EnrichmentRepository) ListUnenriched(ctx context.Context, after Cursor, limit int) ([]*model.Entry, error) {
	cond, args := after.where("e.", nil)
	rows, err := r.db.QueryContext(ctx, `
        SELECT `+prefixColumns("e.", entryColumns)+`
        FROM entries e
        WHERE e.deleted_at IS NULL
          AND NOT EXISTS (
              SELECT 1 FROM enrichments en
              WHERE en.entry_id = e.id AND en.entry_version = e.updated_at AND en.status = 'complete'
          )`+cond+`
        ORDER BY e.updated_at ASC, e.id ASC
        LIMIT ?
    `, append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list unenriched entries: %w", err)
	}
	defer rows.Close()

	entries := []*model.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEnrichment(s scanner) (*model.EnrichmentRecord, error) {
	var dest enrichmentDest
	if err := s.Scan(dest.targets()...); err != nil {
		return nil, err
	}
	return dest.record()
}

func scanEnriched(s scanner) (*model.Entry, *model.EnrichmentRecord, error) {
	var (
		e        model.Entry
		remoteID sql.NullString
		tags     string
		created  int64
		updated  int64
		state    string
		deleted  sql.NullInt64
		dest     enrichmentDest
	)
	targets := append([]any{&e.ID, &remoteID, &e.Content, &tags, &created, &updated, &e.DeviceID, &state, &deleted}, dest.targets()...)
	if err := s.Scan(targets...); err != nil {
		return nil, nil, err
	}
	if remoteID.Valid {
		e.RemoteID = &remoteID.String
	}
	if err := decodeJSON(tags, &e.Tags); err != nil {
		return nil, nil, err
	}
	e.CreatedAt = fromMillis(created)
	e.UpdatedAt = fromMillis(updated)
	e.SyncState = model.SyncState(state)
	e.DeletedAt = fromNullMillis(deleted)

	rec, err := dest.record()
	if err != nil {
		return nil, nil, err
	}
	return &e, rec, nil
}

type enrichmentDest struct {
	id, entryID                 string
	version                     int64
	emotion, urgency            sql.NullString
	themes, people              string
	actions, questions, decided string
	confidence, status          string
	method, errMsg              sql.NullString
	durationMS, created         int64
}

func (d *enrichmentDest) targets() []any {
	return []any{
		&d.id, &d.entryID, &d.version, &d.emotion, &d.themes, &d.people, &d.urgency, &d.actions,
		&d.questions, &d.decided, &d.confidence, &d.status, &d.method, &d.errMsg, &d.durationMS, &d.created,
	}
}

func (d *enrichmentDest) record() (*model.EnrichmentRecord, error) {
	rec := &model.EnrichmentRecord{
		ID:           d.id,
		EntryID:      d.entryID,
		EntryVersion: d.version,
		Emotion:      model.Emotion(d.emotion.String),
		Urgency:      model.Urgency(d.urgency.String),
		Status:       model.EnrichmentStatus(d.status),
		Method:       model.EnrichmentMethod(d.method.String),
		Error:        d.errMsg.String,
		Duration:     time.Duration(d.durationMS) * time.Millisecond,
		CreatedAt:    fromMillis(d.created),
	}
	for _, col := range []struct {
		raw string
		out any
	}{
		{d.themes, &rec.Themes},
		{d.people, &rec.People},
		{d.actions, &rec.Actions},
		{d.questions, &rec.Questions},
		{d.decided, &rec.Decisions},
		{d.confidence, &rec.Confidence},
	} {
		if err := decodeJSON(col.raw, col.out); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func prefixColumns(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nonNilThemes(t []model.Theme) []model.Theme {
	if t == nil {
		return []model.Theme{}
	}
	return t
}

func nonNilPeople(p []model.Person) []model.Person {
	if p == nil {
		return []model.Person{}
	}
	return p
}
