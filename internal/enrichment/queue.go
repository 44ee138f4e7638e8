package enrichment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	lucontracts "leannotes/contracts/lu"
	"leannotes/internal/events"
	"leannotes/internal/lu"
	"leannotes/internal/model"
	"leannotes/internal/repository"
	"leannotes/pkg/config"
	"leannotes/pkg/logger"
	"leannotes/pkg/metrics"
	"leannotes/pkg/trace"
)

const dedupeHandler = "enrichment"

// QuarantineChecker reports entries held back by sync quarantine.
type QuarantineChecker interface {
	Check(ctx context.Context, e *model.Entry) (bool, error)
}

// Deduper guards an entry version across processes. *util.Deduper satisfies it.
type Deduper interface {
	AcquireOnce(ctx context.Context, handler string, id string) bool
	Release(ctx context.Context, handler string, id string)
}

type Queue struct {
	entries   *repository.EntryRepository
	records   *repository.EnrichmentRepository
	facts     *repository.FactRepository
	phrases   *repository.PhraseRepository
	extractor *events.Extractor
	client    lu.Client
	fallback  *Fallback
	cfg       config.EnrichmentConfig
	logger    *zap.Logger

	quarantine QuarantineChecker
	dedupe     Deduper
	source     ContextSource

	ch chan string
}

func NewQueue(
	entries *repository.EntryRepository,
	records *repository.EnrichmentRepository,
	facts *repository.FactRepository,
	phrases *repository.PhraseRepository,
	extractor *events.Extractor,
	client lu.Client,
	cfg config.EnrichmentConfig,
	logger *zap.Logger,
) *Queue {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.BacklogInterval <= 0 {
		cfg.BacklogInterval = time.Minute
	}
	if cfg.ContextWords <= 0 {
		cfg.ContextWords = DefaultContextWords
	}
	return &Queue{
		entries:   entries,
		records:   records,
		facts:     facts,
		phrases:   phrases,
		extractor: extractor,
		client:    client,
		fallback:  NewFallback(),
		cfg:       cfg,
		logger:    logger,
		ch:        make(chan string, cfg.QueueSize),
	}
}

// WithQuarantine 跳过被同步隔离的条目
func (q *Queue) WithQuarantine(c QuarantineChecker) *Queue {
	q.quarantine = c
	return q
}

// WithDeduper 设置跨进程去重
func (q *Queue) WithDeduper(d Deduper) *Queue {
	q.dedupe = d
	return q
}

// WithContextSource 设置模式上下文来源
func (q *Queue) WithContextSource(s ContextSource) *Queue {
	q.source = s
	return q
}

// Submit never blocks. When the queue is full the entry is left to the
// backlog sweep.
func (q *Queue) Submit(e *model.Entry) {
	select {
	case q.ch <- e.ID:
	default:
		q.logger.Debug("Enrichment queue full, deferring to backlog sweep",
			zap.String("entry_id", e.ID),
		)
	}
}

// Len reports queued entry ids.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Start consumes the queue until ctx is done.
func (q *Queue) Start(ctx context.Context) {
	if n, err := q.records.FailAbandoned(ctx); err != nil {
		q.logger.Error("Failed to fail abandoned enrichments", zap.Error(err))
	} else if n > 0 {
		q.logger.Info("Marked abandoned enrichments as failed", zap.Int64("count", n))
	}

	q.logger.Info("Starting enrichment queue",
		zap.Int("queue_size", q.cfg.QueueSize),
		zap.Duration("poll_interval", q.cfg.PollInterval),
	)

	poll := time.NewTicker(q.cfg.PollInterval)
	defer poll.Stop()
	backlog := time.NewTicker(q.cfg.BacklogInterval)
	defer backlog.Stop()

	q.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			q.logger.Info("Enrichment queue stopped")
			return
		case <-poll.C:
			q.Drain(ctx)
		case <-backlog.C:
			q.Sweep(ctx)
		}
	}
}

// Drain processes everything currently queued, in order.
func (q *Queue) Drain(ctx context.Context) int {
	n := 0
	for {
		select {
		case id := <-q.ch:
			if _, err := q.Process(ctx, id); err != nil {
				q.logger.Warn("Enrichment failed", zap.String("entry_id", id), zap.Error(err))
			}
			n++
		default:
			return n
		}
	}
}

// Sweep processes entries without a complete record for their current version.
// It pages past entries it cannot enrich now, quarantined ones included, until
// a queue's worth of entries was enriched or the backlog is exhausted.
func (q *Queue) Sweep(ctx context.Context) int {
	var (
		cursor     repository.Cursor
		n, visited int
	)
	for n < q.cfg.QueueSize && ctx.Err() == nil {
		page, err := q.records.ListUnenriched(ctx, cursor, q.cfg.QueueSize)
		if err != nil {
			q.logger.Error("Failed to list unenriched entries", zap.Error(err))
			break
		}
		for _, e := range page {
			if ctx.Err() != nil || n >= q.cfg.QueueSize {
				break
			}
			cursor = repository.CursorAt(e)
			visited++
			rec, err := q.Process(ctx, e.ID)
			if err != nil {
				q.logger.Warn("Backlog enrichment failed", zap.String("entry_id", e.ID), zap.Error(err))
				continue
			}
			if rec != nil {
				n++
			}
		}
		if len(page) < q.cfg.QueueSize {
			break
		}
	}
	if n > 0 {
		q.logger.Info("Backlog sweep completed", zap.Int("processed", n), zap.Int("candidates", visited))
	}
	return n
}

// Process enriches the current version of one entry. It returns nil without
// error when there is nothing to do.
func (q *Queue) Process(ctx context.Context, entryID string) (*model.EnrichmentRecord, error) {
	ctx = trace.Ensure(ctx)
	log := logger.WithTrace(ctx, q.logger).With(zap.String("entry_id", entryID))

	entry, err := q.entries.Get(ctx, entryID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if entry.Deleted() {
		return nil, nil
	}
	if q.quarantine != nil {
		held, err := q.quarantine.Check(ctx, entry)
		if err != nil {
			return nil, err
		}
		if held {
			log.Debug("Skipping quarantined entry")
			return nil, nil
		}
	}

	version := entry.Version()
	done, err := q.records.HasComplete(ctx, entry.ID, version)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, nil
	}

	dedupeID := fmt.Sprintf("%s:%d", entry.ID, version)
	if q.dedupe != nil && !q.dedupe.AcquireOnce(ctx, dedupeHandler, dedupeID) {
		return nil, nil
	}

	start := time.Now()
	rec := &model.EnrichmentRecord{
		ID:           uuid.NewString(),
		EntryID:      entry.ID,
		EntryVersion: version,
		CreatedAt:    start,
	}
	if err := q.records.CreatePending(ctx, rec); err != nil {
		q.release(ctx, dedupeID)
		return nil, err
	}
	if err := q.records.SetStatus(ctx, rec.ID, model.EnrichmentProcessing); err != nil {
		q.fail(ctx, log, rec, start, err)
		return rec, err
	}

	analysis := q.analyze(ctx, log, entry)
	if err := q.applyPromotions(ctx, analysis.Events); err != nil {
		log.Warn("Failed to load promoted phrases", zap.Error(err))
	}
	analysis.Record(rec)
	rec.Duration = time.Since(start)

	var outcome events.Outcome
	err = repository.WithTx(ctx, q.records.DB(), func(tx *sql.Tx) error {
		if err := q.records.CompleteTx(ctx, tx, rec); err != nil {
			return err
		}
		var err error
		outcome, err = q.extractor.ApplyTx(ctx, tx, entry, analysis.Events)
		return err
	})
	if errors.Is(err, repository.ErrAlreadyComplete) {
		// another attempt won the race
		q.markFailed(ctx, log, rec.ID, "already complete", rec.Duration)
		rec.Status = model.EnrichmentFailed
		return rec, nil
	}
	if err != nil {
		q.fail(ctx, log, rec, start, err)
		return rec, fmt.Errorf("failed to persist enrichment: %w", err)
	}

	metrics.RecordEnrichment(string(rec.Method), string(rec.Status), rec.Duration)
	log.Info("Entry enriched",
		zap.String("method", string(rec.Method)),
		zap.String("emotion", string(rec.Emotion)),
		zap.Int("committed_events", outcome.Committed),
		zap.Int("shadow_events", outcome.Shadowed),
		zap.Duration("duration", rec.Duration),
	)
	return rec, nil
}

// analyze asks LU and validates the answer, or falls back entirely.
func (q *Queue) analyze(ctx context.Context, log *zap.Logger, entry *model.Entry) Analysis {
	facts, err := q.facts.ListActive(ctx)
	if err != nil {
		log.Warn("Failed to load user facts", zap.Error(err))
	}
	fb := q.fallback.Analyze(entry.Content, KnownNames(facts))

	var correlations []string
	if q.source != nil {
		correlations = q.source.RelevantContext(entry.Content, entry.CreatedAt)
	}
	resp, err := q.client.Analyze(ctx, lucontracts.AnalyzeRequest{
		Text:    entry.Content,
		Context: BuildContext(entry.CreatedAt, facts, correlations, q.cfg.ContextWords),
	})
	if err != nil {
		if !errors.Is(err, lu.ErrUnavailable) {
			log.Warn("LU analyze failed, using fallback", zap.Error(err))
		}
		return fb
	}
	return Validate(resp, fb)
}

// applyPromotions raises candidates whose phrase was promoted.
func (q *Queue) applyPromotions(ctx context.Context, candidates []model.CandidateEvent) error {
	if len(candidates) == 0 {
		return nil
	}
	promoted, err := q.phrases.ListPromoted(ctx)
	if err != nil {
		return err
	}
	set := make(map[string]bool, len(promoted))
	for _, p := range promoted {
		set[p.Normalized] = true
	}
	for i := range candidates {
		phrase := candidates[i].Phrase
		if phrase == "" {
			continue
		}
		if set[events.Normalize(phrase)] && candidates[i].Confidence < PromotedConfidence {
			candidates[i].Confidence = PromotedConfidence
		}
	}
	return nil
}

func (q *Queue) fail(ctx context.Context, log *zap.Logger, rec *model.EnrichmentRecord, start time.Time, cause error) {
	duration := time.Since(start)
	q.markFailed(ctx, log, rec.ID, cause.Error(), duration)
	rec.Status = model.EnrichmentFailed
	rec.Error = cause.Error()
	metrics.RecordEnrichment(string(rec.Method), string(rec.Status), duration)
	q.release(ctx, fmt.Sprintf("%s:%d", rec.EntryID, rec.EntryVersion))
}

func (q *Queue) markFailed(ctx context.Context, log *zap.Logger, id, reason string, duration time.Duration) {
	if err := q.records.MarkFailed(context.WithoutCancel(ctx), id, reason, duration); err != nil {
		log.Error("Failed to mark enrichment failed", zap.Error(err))
	}
}

func (q *Queue) release(ctx context.Context, dedupeID string) {
	if q.dedupe != nil {
		q.dedupe.Release(context.WithoutCancel(ctx), dedupeHandler, dedupeID)
	}
}
