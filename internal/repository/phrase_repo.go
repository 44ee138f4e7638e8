package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"leannotes/internal/model"
)

const phraseColumns = `id, normalized, phrase, category, usage_count, first_seen, last_seen, user_action, promoted, promoted_at`

type PhraseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPhraseRepository(db *sql.DB, logger *zap.Logger) *PhraseRepository {
	return &PhraseRepository{db: db, logger: logger}
}

// RecordUseTx counts one use of the phrase by the entry. A second use by the
// same entry (e.g. reprocessing) is ignored.
func (r *PhraseRepository) RecordUseTx(ctx context.Context, db DBTX, normalized, phrase string, category model.EventCategory, entryID string, at time.Time) error {
	ts := toMillis(at)
	_, err := db.ExecContext(ctx, `
        INSERT INTO phrase_patterns (id, normalized, phrase, category, usage_count, first_seen, last_seen)
        VALUES (?, ?, ?, ?, 0, ?, ?)
        ON CONFLICT(normalized) DO NOTHING
    `, uuid.NewString(), normalized, phrase, string(category), ts, ts)
	if err != nil {
		return fmt.Errorf("failed to upsert phrase pattern: %w", err)
	}

	var id string
	if err := db.QueryRowContext(ctx, `SELECT id FROM phrase_patterns WHERE normalized = ?`, normalized).Scan(&id); err != nil {
		return fmt.Errorf("failed to load phrase pattern: %w", err)
	}

	result, err := db.ExecContext(ctx, `
        INSERT OR IGNORE INTO phrase_uses (phrase_id, entry_id, used_at) VALUES (?, ?, ?)
    `, id, entryID, ts)
	if err != nil {
		return fmt.Errorf("failed to record phrase use: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil
	}

	_, err = db.ExecContext(ctx, `
        UPDATE phrase_patterns
        SET usage_count = usage_count + 1,
            first_seen = MIN(first_seen, ?),
            last_seen = MAX(last_seen, ?)
        WHERE id = ?
    `, ts, ts, id)
	if err != nil {
		return fmt.Errorf("failed to bump phrase usage: %w", err)
	}
	return nil
}

func (r *PhraseRepository) Get(ctx context.Context, normalized string) (*model.PhrasePattern, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+phraseColumns+` FROM phrase_patterns WHERE normalized = ?`, normalized)
	p, err := scanPhrase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get phrase pattern: %w", err)
	}
	return p, nil
}

func (r *PhraseRepository) List(ctx context.Context) ([]*model.PhrasePattern, error) {
	return r.list(ctx, `SELECT `+phraseColumns+` FROM phrase_patterns ORDER BY usage_count DESC, normalized`)
}

func (r *PhraseRepository) ListPromoted(ctx context.Context) ([]*model.PhrasePattern, error) {
	return r.list(ctx, `
        SELECT `+phraseColumns+` FROM phrase_patterns
        WHERE promoted = 1 AND user_action != 'rejected'
        ORDER BY normalized
    `)
}

// PromotionCandidates returns unpromoted, unrejected phrases with at least
// minUses uses at or after since.
func (r *PhraseRepository) PromotionCandidates(ctx context.Context, since time.Time, minUses int) ([]*model.PhrasePattern, error) {
	return r.list(ctx, `
        SELECT `+prefixColumns("p.", phraseColumns)+`
        FROM phrase_patterns p
        WHERE p.promoted = 0
          AND p.user_action != 'rejected'
          AND (SELECT COUNT(*) FROM phrase_uses u WHERE u.phrase_id = p.id AND u.used_at >= ?) >= ?
        ORDER BY p.normalized
    `, toMillis(since), minUses)
}

// MarkPromoted flags the phrase as promoted. It reports false if it already was.
func (r *PhraseRepository) MarkPromoted(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
        UPDATE phrase_patterns SET promoted = 1, promoted_at = ?
        WHERE id = ? AND promoted = 0 AND user_action != 'rejected'
    `, toMillis(at), id)
	if err != nil {
		return false, fmt.Errorf("failed to promote phrase: %w", err)
	}
	n, _ := result.RowsAffected()
	return n == 1, nil
}

// SetUserAction records the user's verdict. A rejection also revokes promotion.
func (r *PhraseRepository) SetUserAction(ctx context.Context, normalized string, action model.UserAction) error {
	query := `UPDATE phrase_patterns SET user_action = ? WHERE normalized = ?`
	if action == model.UserActionRejected {
		query = `UPDATE phrase_patterns SET user_action = ?, promoted = 0, promoted_at = NULL WHERE normalized = ?`
	}
	result, err := r.db.ExecContext(ctx, query, string(action), normalized)
	if err != nil {
		return fmt.Errorf("failed to set phrase user action: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PhraseRepository) list(ctx context.Context, query string, args ...any) ([]*model.PhrasePattern, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query phrase patterns: %w", err)
	}
	defer rows.Close()

	out := []*model.PhrasePattern{}
	for rows.Next() {
		p, err := scanPhrase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan phrase pattern: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPhrase(s scanner) (*model.PhrasePattern, error) {
	var (
		p                   model.PhrasePattern
		category, action    string
		firstSeen, lastSeen int64
		promoted            int
		promotedAt          sql.NullInt64
	)
	if err := s.Scan(&p.ID, &p.Normalized, &p.Phrase, &category, &p.UsageCount, &firstSeen, &lastSeen,
		&action, &promoted, &promotedAt); err != nil {
		return nil, err
	}
	p.Category = model.EventCategory(category)
	p.UserAction = model.UserAction(action)
	p.FirstSeen = fromMillis(firstSeen)
	p.LastSeen = fromMillis(lastSeen)
	p.Promoted = promoted == 1
	p.PromotedAt = fromNullMillis(promotedAt)
	return &p, nil
}
