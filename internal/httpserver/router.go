package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(h *Handler, jwtSecret string) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), MetricsMiddleware())

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected
	api := r.Group("/")
	api.Use(AuthMiddleware(jwtSecret))
	{
		api.POST("/entries", h.CreateEntry)
		api.GET("/entries", h.ListEntries)
		api.PUT("/entries/:id", h.UpdateEntry)
		api.DELETE("/entries/:id", h.DeleteEntry)
		api.GET("/patterns", h.GetPatterns)
		api.GET("/stats", h.GetStats)
		api.POST("/sync", h.TriggerSync)
	}

	return &Router{Engine: r}
}

const shutdownTimeout = 30 * time.Second

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (r *Router) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return r.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is done. In-flight requests get
// shutdownTimeout to finish.
func (r *Router) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: r.Engine}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	return <-errCh
}
