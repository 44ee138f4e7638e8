package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"leannotes/internal/model"
)

const eventColumns = `id, entry_id, category, subtype, metrics, text_metrics, tags, confidence, method, occurred_at, created_at`

// Sink names the table an event is written to.
type Sink string

const (
	SinkCommitted Sink = "events"
	SinkShadow    Sink = "shadow_events"
)

type EventRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewEventRepository(db *sql.DB, logger *zap.Logger) *EventRepository {
	return &EventRepository{db: db, logger: logger}
}

// ReplaceForEntryTx drops every committed and shadow event of the entry, so a
// re-enriched entry does not accumulate events from older versions.
func (r *EventRepository) ReplaceForEntryTx(ctx context.Context, db DBTX, entryID string) error {
	for _, sink := range []Sink{SinkCommitted, SinkShadow} {
		if _, err := db.ExecContext(ctx, `DELETE FROM `+string(sink)+` WHERE entry_id = ?`, entryID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", sink, err)
		}
	}
	return nil
}

func (r *EventRepository) InsertTx(ctx context.Context, db DBTX, sink Sink, ev *model.Event) error {
	metrics, err := encodeJSON(ev.Metrics)
	if err != nil {
		return err
	}
	textMetrics, err := encodeJSON(ev.TextMetrics)
	if err != nil {
		return err
	}
	tags, err := encodeJSON(nonNilStrings(ev.Tags))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
        INSERT INTO `+string(sink)+` (`+eventColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `,
		ev.ID, ev.EntryID, string(ev.Category), ev.Subtype, metrics, textMetrics, tags,
		ev.Confidence, string(ev.Method), toMillis(ev.OccurredAt), toMillis(ev.CreatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to insert event",
			zap.String("sink", string(sink)),
			zap.String("entry_id", ev.EntryID),
			zap.String("category", string(ev.Category)),
			zap.Error(err),
		)
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (r *EventRepository) ListByEntry(ctx context.Context, sink Sink, entryID string) ([]*model.Event, error) {
	return r.list(ctx, `SELECT `+eventColumns+` FROM `+string(sink)+` WHERE entry_id = ? ORDER BY created_at, id`, entryID)
}

func (r *EventRepository) ListSince(ctx context.Context, sink Sink, since time.Time) ([]*model.Event, error) {
	return r.list(ctx, `SELECT `+eventColumns+` FROM `+string(sink)+` WHERE occurred_at >= ? ORDER BY occurred_at, id`, toMillis(since))
}

func (r *EventRepository) list(ctx context.Context, query string, args ...any) ([]*model.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []*model.Event{}
	for rows.Next() {
		var (
			ev                         model.Event
			category, method           string
			metrics, textMetrics, tags string
			occurred, created          int64
		)
		if err := rows.Scan(&ev.ID, &ev.EntryID, &category, &ev.Subtype, &metrics, &textMetrics, &tags,
			&ev.Confidence, &method, &occurred, &created); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Category = model.EventCategory(category)
		ev.Method = model.EnrichmentMethod(method)
		ev.OccurredAt = fromMillis(occurred)
		ev.CreatedAt = fromMillis(created)
		if err := decodeJSON(metrics, &ev.Metrics); err != nil {
			return nil, err
		}
		if err := decodeJSON(textMetrics, &ev.TextMetrics); err != nil {
			return nil, err
		}
		if err := decodeJSON(tags, &ev.Tags); err != nil {
			return nil, err
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}
