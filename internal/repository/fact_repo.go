package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"leannotes/internal/model"
)

type FactRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewFactRepository(db *sql.DB, logger *zap.Logger) *FactRepository {
	return &FactRepository{db: db, logger: logger}
}

func (r *FactRepository) Insert(ctx context.Context, f *model.UserFact) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO user_facts (id, category, fact, active, created_at) VALUES (?, ?, ?, ?, ?)
    `, f.ID, string(f.Category), f.Fact, boolToInt(f.Active), toMillis(f.CreatedAt))
	if err != nil {
		r.logger.Error("Failed to insert user fact", zap.Error(err))
		return fmt.Errorf("failed to insert user fact: %w", err)
	}
	return nil
}

func (r *FactRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE user_facts SET active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("failed to update user fact: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActive returns active facts, oldest first.
func (r *FactRepository) ListActive(ctx context.Context) ([]*model.UserFact, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, category, fact, active, created_at FROM user_facts
        WHERE active = 1
        ORDER BY created_at, id
    `)
	if err != nil {
		return nil, fmt.Errorf("failed to list user facts: %w", err)
	}
	defer rows.Close()

	out := []*model.UserFact{}
	for rows.Next() {
		var (
			f        model.UserFact
			category string
			active   int
			created  int64
		)
		if err := rows.Scan(&f.ID, &category, &f.Fact, &active, &created); err != nil {
			return nil, fmt.Errorf("failed to scan user fact: %w", err)
		}
		f.Category = model.FactCategory(category)
		f.Active = active == 1
		f.CreatedAt = fromMillis(created)
		out = append(out, &f)
	}
	return out, rows.Err()
}
