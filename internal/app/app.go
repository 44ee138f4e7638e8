// Package app wires the local cache, sync, enrichment and pattern components
// from configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"leannotes/config"
	mqcontracts "leannotes/contracts/mq"
	"leannotes/internal/enrichment"
	"leannotes/internal/entrystore"
	"leannotes/internal/events"
	"leannotes/internal/httpserver"
	"leannotes/internal/lu"
	"leannotes/internal/model"
	"leannotes/internal/mqhandler"
	"leannotes/internal/patterns"
	"leannotes/internal/remote"
	"leannotes/internal/repository"
	"leannotes/internal/syncengine"
	"leannotes/pkg/auth"
	"leannotes/pkg/db"
	"leannotes/pkg/mq"
	"leannotes/pkg/redis"
	"leannotes/pkg/sqlite"
	"leannotes/pkg/util"
)

// ErrSyncDisabled is returned by sync operations when no remote store is configured.
var ErrSyncDisabled = errors.New("remote store not configured")

const retryCounterTTL = 24 * time.Hour

type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Session auth.SessionProvider

	DB         *sql.DB
	Entries    *repository.EntryRepository
	Facts      *repository.FactRepository
	Store      *entrystore.Store
	Queue      *enrichment.Queue
	Patterns   *patterns.Engine
	Summarizer *enrichment.Summarizer
	// Sync is nil when no remote store is configured.
	Sync *syncengine.Engine

	pool      *pgxpool.Pool
	rdb       *goredis.Client
	publisher *mq.Publisher
}

// New opens the local cache and every configured backend. Optional backends
// (PostgreSQL, Redis, RabbitMQ, LU) that are not configured are skipped.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Session: auth.NewTokenSession(cfg.JWT.Token, cfg.JWT.Secret),
	}

	sqlDB, err := sqlite.Open(ctx, cfg.Local.Path, repository.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to open local cache: %w", err)
	}
	a.DB = sqlDB

	a.init(ctx)
	return a, nil
}

func (a *App) init(ctx context.Context) {
	cfg, logger := a.Config, a.Logger

	a.Entries = repository.NewEntryRepository(a.DB, logger)
	a.Facts = repository.NewFactRepository(a.DB, logger)
	records := repository.NewEnrichmentRepository(a.DB, logger)
	eventRepo := repository.NewEventRepository(a.DB, logger)
	phrases := repository.NewPhraseRepository(a.DB, logger)
	patternRepo := repository.NewPatternRepository(a.DB, logger)
	streaks := repository.NewStreakRepository(a.DB)

	rdb, err := redis.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		// Redis 仅用于跨进程去重，不可用时退回本地计数
		logger.Warn("Redis unavailable, using local failure counter", zap.Error(err))
	}
	a.rdb = rdb

	var failures syncengine.FailureCounter = repository.NewFailureRepository(a.DB)
	var deduper enrichment.Deduper
	if a.rdb != nil {
		failures = util.NewRetryCounter(a.rdb, retryCounterTTL)
		deduper = util.NewDeduper(a.rdb, cfg.Redis.DedupTTL, logger)
	}
	quarantine := syncengine.NewQuarantine(repository.NewQuarantineRepository(a.DB), failures, cfg.Sync.QuarantineThreshold, logger)

	extractor := events.NewExtractor(eventRepo, phrases, events.Thresholds{
		Commit: cfg.Patterns.CommitThreshold,
		Shadow: cfg.Patterns.ShadowThreshold,
	}, logger)
	client := lu.New(cfg.LU, logger)

	a.Patterns = patterns.NewEngine(a.Entries, records, eventRepo, phrases, patternRepo, streaks, cfg.Patterns, logger)
	a.Queue = enrichment.NewQueue(a.Entries, records, a.Facts, phrases, extractor, client, cfg.Enrichment, logger).
		WithQuarantine(quarantine).
		WithContextSource(a.Patterns)
	if deduper != nil {
		a.Queue.WithDeduper(deduper)
	}
	a.Summarizer = enrichment.NewSummarizer(client, logger)
	a.Store = entrystore.NewStore(a.Entries, cfg.Local.DeviceID, logger).WithEnqueuer(a.Queue)

	store, err := a.openRemote(ctx)
	if err != nil {
		// 远端不可用不影响本地写入
		logger.Warn("Remote store unavailable, running local only", zap.Error(err))
		store = nil
	}
	if store == nil {
		return
	}

	a.Sync = syncengine.NewEngine(a.Entries, repository.NewSyncMetaRepository(a.DB), quarantine, store, a.Session, cfg.Sync, cfg.Local.DeviceID, logger).
		WithEnqueuer(a.Queue)
	a.Store.WithScheduler(a.Sync, a.Session)

	if cfg.MQ.URL != "" {
		pub, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			logger.Warn("MQ unavailable, cross-device notifications disabled", zap.Error(err))
		} else {
			a.publisher = pub
			a.Sync.WithNotifier(pub)
		}
	}
}

func (a *App) openRemote(ctx context.Context) (remote.Store, error) {
	if !a.Config.DB.Enabled {
		a.Logger.Info("Remote store not configured, running local only")
		return nil, nil
	}
	pool, err := db.NewConnection(ctx, a.Config.DB, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect remote store: %w", err)
	}
	a.pool = pool

	store := remote.NewPostgresStore(pool, a.Config.Sync.MaxContentBytes, a.Logger)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		a.pool = nil
		return nil, err
	}
	return store, nil
}

// Close releases every backend. Safe to call on a partially built App.
func (a *App) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

// SyncOnce runs a single sync cycle.
func (a *App) SyncOnce(ctx context.Context) (syncengine.Result, error) {
	if a.Sync == nil {
		return syncengine.Result{}, ErrSyncDisabled
	}
	return a.Sync.RunCycle(ctx)
}

// Settle does the background work a write triggers, in the foreground:
// enrich what is queued, then push if a remote is configured. Used by one-shot
// CLI commands after the write has already returned.
func (a *App) Settle(ctx context.Context) {
	a.Queue.Drain(ctx)
	if a.Sync == nil {
		return
	}
	if _, err := a.Sync.RunCycle(ctx); err != nil {
		a.Logger.Warn("Sync after write failed, will retry next cycle", zap.Error(err))
	}
}

// AddFact stores a user fact with its category inferred from the text.
func (a *App) AddFact(ctx context.Context, text string) (*model.UserFact, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, entrystore.ErrEmptyContent
	}
	f := &model.UserFact{
		ID:        uuid.NewString(),
		Category:  enrichment.CategorizeFact(text),
		Fact:      text,
		Active:    true,
		CreatedAt: time.Now(),
	}
	if err := a.Facts.Insert(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Summarize summarizes entries created in the trailing window.
func (a *App) Summarize(ctx context.Context, window time.Duration) (string, model.EnrichmentMethod, error) {
	now := time.Now()
	entries, err := a.Entries.ListCreatedBetween(ctx, now.Add(-window), now)
	if err != nil {
		return "", "", err
	}
	return a.Summarizer.Summarize(ctx, entries)
}

// Serve runs the sync, enrichment and pattern loops, the notification
// consumer and the HTTP API until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	run := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	run(a.Queue.Start)
	run(a.Patterns.Start)

	var syncer httpserver.Syncer = disabledSyncer{}
	if a.Sync != nil {
		syncer = a.Sync
		run(a.Sync.Start)
		if err := a.consumeNotifications(ctx, run); err != nil {
			a.Logger.Warn("Notification consumer unavailable", zap.Error(err))
		}
	}

	handler := httpserver.NewHandler(a.Store, syncer, a.Patterns, a.Logger)
	router := httpserver.NewRouter(handler, a.Config.JWT.Secret)

	a.Logger.Info("Starting HTTP server", zap.String("port", a.Config.Server.Port))
	err := router.Serve(ctx, a.Config.Server.Port)
	if err != nil {
		a.Logger.Error("HTTP server stopped", zap.Error(err))
	} else {
		a.Logger.Info("HTTP server stopped")
	}
	cancel()
	wg.Wait()
	return err
}

func (a *App) consumeNotifications(ctx context.Context, run func(func(context.Context))) error {
	if a.Config.MQ.URL == "" {
		return nil
	}
	deviceID := a.Config.Local.DeviceID
	consumer, err := mq.NewConsumer(a.Config.MQ.URL, "leannotes.notes_changed."+deviceID, mqcontracts.RoutingKeyNotesChanged, a.Logger)
	if err != nil {
		return err
	}
	h := mqhandler.NewNotesChangedHandler(a.Sync, a.Session, deviceID, a.Logger)
	consumer.SetHandler(h.HandleNotesChanged)

	run(func(ctx context.Context) {
		defer consumer.Close()
		if err := consumer.StartConsuming(ctx); err != nil {
			a.Logger.Error("Notification consumer stopped", zap.Error(err))
		}
	})
	return nil
}

type disabledSyncer struct{}

func (disabledSyncer) RunCycle(context.Context) (syncengine.Result, error) {
	return syncengine.Result{}, ErrSyncDisabled
}
