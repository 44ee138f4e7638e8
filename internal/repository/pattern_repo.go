package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"leannotes/internal/model"
)

const patternColumns = `id, signature, type, trigger_conditions, outcome_conditions, scope, stats,
    occurrences, confidence, first_seen, last_seen, updated_at`

type PatternRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPatternRepository(db *sql.DB, logger *zap.Logger) *PatternRepository {
	return &PatternRepository{db: db, logger: logger}
}

func (r *PatternRepository) DB() *sql.DB {
	return r.db
}

// UpsertTx stores the pattern by signature. first_seen only ever moves back.
func (r *PatternRepository) UpsertTx(ctx context.Context, db DBTX, p *model.IntelligencePattern) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	trigger, err := encodeJSON(p.Trigger)
	if err != nil {
		return err
	}
	outcome, err := encodeJSON(p.Outcome)
	if err != nil {
		return err
	}
	scope, err := encodeJSON(p.Scope)
	if err != nil {
		return err
	}
	stats, err := encodeJSON(p.Stats)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
        INSERT INTO intelligence_patterns (`+patternColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(signature) DO UPDATE SET
            trigger_conditions = excluded.trigger_conditions,
            outcome_conditions = excluded.outcome_conditions,
            scope = excluded.scope,
            stats = excluded.stats,
            occurrences = excluded.occurrences,
            confidence = excluded.confidence,
            first_seen = MIN(intelligence_patterns.first_seen, excluded.first_seen),
            last_seen = excluded.last_seen,
            updated_at = excluded.updated_at
    `,
		p.ID, p.Signature, string(p.Type), trigger, outcome, scope, stats,
		p.Metrics.Occurrences, p.Metrics.Confidence, toMillis(p.Metrics.FirstSeen),
		toMillis(p.Metrics.LastSeen), toMillis(p.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to upsert pattern",
			zap.String("signature", p.Signature),
			zap.Error(err),
		)
		return fmt.Errorf("failed to upsert pattern: %w", err)
	}
	return nil
}

// DecayUnseenTx rescores patterns that were not refreshed in this run, so
// their confidence keeps decaying while their history stays stored.
func (r *PatternRepository) DecayUnseenTx(ctx context.Context, db DBTX, refreshedAt time.Time, rescore func(p *model.IntelligencePattern) float64) error {
	rows, err := db.QueryContext(ctx, `SELECT `+patternColumns+` FROM intelligence_patterns WHERE updated_at < ?`, toMillis(refreshedAt))
	if err != nil {
		return fmt.Errorf("failed to query stale patterns: %w", err)
	}
	patterns, err := scanPatterns(rows)
	if err != nil {
		return err
	}

	for _, p := range patterns {
		if _, err := db.ExecContext(ctx, `UPDATE intelligence_patterns SET confidence = ? WHERE id = ?`, rescore(p), p.ID); err != nil {
			return fmt.Errorf("failed to rescore pattern: %w", err)
		}
	}
	return nil
}

// List returns patterns with confidence at or above minConfidence, best first.
func (r *PatternRepository) List(ctx context.Context, minConfidence float64) ([]*model.IntelligencePattern, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT `+patternColumns+` FROM intelligence_patterns
        WHERE confidence >= ?
        ORDER BY confidence DESC, occurrences DESC, signature
    `, minConfidence)
	if err != nil {
		return nil, fmt.Errorf("failed to list patterns: %w", err)
	}
	return scanPatterns(rows)
}

func scanPatterns(rows *sql.Rows) ([]*model.IntelligencePattern, error) {
	defer rows.Close()

	out := []*model.IntelligencePattern{}
	for rows.Next() {
		var (
			p                              model.IntelligencePattern
			typ                            string
			trigger, outcome, scope, stats string
			firstSeen, lastSeen, updated   int64
		)
		if err := rows.Scan(&p.ID, &p.Signature, &typ, &trigger, &outcome, &scope, &stats,
			&p.Metrics.Occurrences, &p.Metrics.Confidence, &firstSeen, &lastSeen, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		p.Type = model.PatternType(typ)
		p.Metrics.FirstSeen = fromMillis(firstSeen)
		p.Metrics.LastSeen = fromMillis(lastSeen)
		p.UpdatedAt = fromMillis(updated)
		if err := decodeJSON(trigger, &p.Trigger); err != nil {
			return nil, err
		}
		if err := decodeJSON(outcome, &p.Outcome); err != nil {
			return nil, err
		}
		if err := decodeJSON(scope, &p.Scope); err != nil {
			return nil, err
		}
		if err := decodeJSON(stats, &p.Stats); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

type StreakRepository struct {
	db *sql.DB
}

func NewStreakRepository(db *sql.DB) *StreakRepository {
	return &StreakRepository{db: db}
}

func (r *StreakRepository) SaveTx(ctx context.Context, db DBTX, s *model.Streak) error {
	_, err := db.ExecContext(ctx, `
        INSERT INTO streaks (type, current_count, best_count, last_day, updated_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(type) DO UPDATE SET
            current_count = excluded.current_count,
            best_count = MAX(streaks.best_count, excluded.best_count),
            last_day = excluded.last_day,
            updated_at = excluded.updated_at
    `, s.Type, s.Current, s.Best, toMillis(s.LastDay), toMillis(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save streak: %w", err)
	}
	return nil
}

func (r *StreakRepository) List(ctx context.Context) ([]*model.Streak, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT type, current_count, best_count, last_day, updated_at FROM streaks ORDER BY type
    `)
	if err != nil {
		return nil, fmt.Errorf("failed to list streaks: %w", err)
	}
	defer rows.Close()

	out := []*model.Streak{}
	for rows.Next() {
		var (
			s                model.Streak
			lastDay, updated int64
		)
		if err := rows.Scan(&s.Type, &s.Current, &s.Best, &lastDay, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan streak: %w", err)
		}
		s.LastDay = fromMillis(lastDay)
		s.UpdatedAt = fromMillis(updated)
		out = append(out, &s)
	}
	return out, rows.Err()
}
