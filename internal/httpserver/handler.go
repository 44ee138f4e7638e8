package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"leannotes/internal/entrystore"
	"leannotes/internal/model"
	"leannotes/internal/patterns"
	"leannotes/internal/syncengine"
)

const defaultListLimit = 50

// Syncer runs one sync cycle. *syncengine.Engine satisfies it.
type Syncer interface {
	RunCycle(ctx context.Context) (syncengine.Result, error)
}

// SnapshotReader exposes the latest pattern snapshot. *patterns.Engine satisfies it.
type SnapshotReader interface {
	Latest() *patterns.Snapshot
}

type Handler struct {
	store    *entrystore.Store
	syncer   Syncer
	snapshot SnapshotReader
	logger   *zap.Logger
}

func NewHandler(store *entrystore.Store, syncer Syncer, snapshot SnapshotReader, logger *zap.Logger) *Handler {
	return &Handler{store: store, syncer: syncer, snapshot: snapshot, logger: logger}
}

type contentRequest struct {
	Content string `json:"content"`
}

// CreateEntry handles POST /entries
func (h *Handler) CreateEntry(c *gin.Context) {
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	e, err := h.store.Insert(c.Request.Context(), req.Content)
	if err != nil {
		h.writeError(c, "create", err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

// ListEntries handles GET /entries?q=&tag=&range=today|yesterday|week&limit=
func (h *Handler) ListEntries(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		entries []*model.Entry
		err     error
	)
	switch c.Query("range") {
	case "today":
		entries, err = h.store.Today(ctx)
	case "yesterday":
		entries, err = h.store.Yesterday(ctx)
	case "week":
		entries, err = h.store.LastWeek(ctx)
	case "":
		limit := defaultListLimit
		if raw := c.Query("limit"); raw != "" {
			n, convErr := strconv.Atoi(raw)
			if convErr != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			limit = n
		}
		entries, err = h.store.Query(ctx, entrystore.Predicate{Contains: c.Query("q"), Tag: c.Query("tag")}, limit)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
		return
	}
	if err != nil {
		h.writeError(c, "list", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

// UpdateEntry handles PUT /entries/:id
func (h *Handler) UpdateEntry(c *gin.Context) {
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	e, err := h.store.Update(c.Request.Context(), c.Param("id"), req.Content)
	if err != nil {
		h.writeError(c, "update", err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// DeleteEntry handles DELETE /entries/:id
func (h *Handler) DeleteEntry(c *gin.Context) {
	if err := h.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, "delete", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetPatterns handles GET /patterns
func (h *Handler) GetPatterns(c *gin.Context) {
	snap := h.snapshot.Latest()
	if snap == nil {
		c.JSON(http.StatusOK, gin.H{"patterns": []any{}, "insights": []any{}, "promoted": []any{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"generated_at": snap.GeneratedAt,
		"patterns":     snap.Patterns,
		"insights":     snap.Insights,
		"promoted":     snap.Promoted,
	})
}

// GetStats handles GET /stats
func (h *Handler) GetStats(c *gin.Context) {
	snap := h.snapshot.Latest()
	if snap == nil {
		c.JSON(http.StatusOK, gin.H{"stats": patterns.Stats{}, "streaks": []any{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"generated_at": snap.GeneratedAt,
		"stats":        snap.Stats,
		"streaks":      snap.Streaks,
	})
}

// TriggerSync handles POST /sync
func (h *Handler) TriggerSync(c *gin.Context) {
	start := time.Now()
	res, err := h.syncer.RunCycle(c.Request.Context())
	if err != nil {
		h.logger.Warn("Manual sync failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sync failed, changes stay queued", "retry": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pushed":      res.Pushed,
		"pulled":      res.Pulled,
		"kept_local":  res.KeptLocal,
		"quarantined": res.Quarantined,
		"checkpoint":  res.Checkpoint,
		"skipped":     res.Skipped,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

func (h *Handler) writeError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, entrystore.ErrEmptyContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, entrystore.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Entry operation failed", zap.String("op", op), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "local storage error", "retry": true})
	}
}
