package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"leannotes/internal/entrystore"
	"leannotes/internal/model"
	"leannotes/internal/patterns"
	"leannotes/internal/repository"
	"leannotes/internal/syncengine"
	"leannotes/pkg/auth"
	"leannotes/pkg/sqlite"
)

const testSecret = "test-secret"

type fakeSyncer struct {
	res   syncengine.Result
	err   error
	calls int
}

func (f *fakeSyncer) RunCycle(context.Context) (syncengine.Result, error) {
	f.calls++
	return f.res, f.err
}

type fixedSnapshot struct {
	snap *patterns.Snapshot
}

func (f fixedSnapshot) Latest() *patterns.Snapshot { return f.snap }

type server struct {
	router *Router
	syncer *fakeSyncer
	token  string
}

func newServer(t *testing.T, snap *patterns.Snapshot) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(context.Background(), ":memory:", repository.Schema)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := entrystore.NewStore(repository.NewEntryRepository(db, zap.NewNop()), "dev-a", zap.NewNop())
	syncer := &fakeSyncer{}
	h := NewHandler(store, syncer, fixedSnapshot{snap: snap}, zap.NewNop())

	token, err := auth.GenerateJWT("user-1", testSecret, time.Hour)
	require.NoError(t, err)
	return &server{router: NewRouter(h, testSecret), syncer: syncer, token: token}
}

func (s *server) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)
	w := httptest.NewRecorder()
	s.router.Engine.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	s := newServer(t, nil)

	w := httptest.NewRecorder()
	s.router.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	assert.Len(t, w.Header().Get("X-Trace-ID"), 32)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodHead, "/healthz", nil)
	req.Header.Set("X-Trace-ID", "trace-from-client")
	s.router.Engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "trace-from-client", w.Header().Get("X-Trace-ID"))
}

func TestAuthRequired(t *testing.T) {
	s := newServer(t, nil)

	w := httptest.NewRecorder()
	s.router.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/entries", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	s.token = "garbage"
	w = s.do(t, http.MethodGet, "/entries", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEntryLifecycle(t *testing.T) {
	s := newServer(t, nil)

	w := s.do(t, http.MethodPost, "/entries", gin.H{"content": "ran 5km #health"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created model.Entry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, []string{"health"}, created.Tags)

	w = s.do(t, http.MethodGet, "/entries?tag=health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Entries []model.Entry `json:"entries"`
		Count   int           `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)

	w = s.do(t, http.MethodPut, "/entries/"+created.ID, gin.H{"content": "ran 6km"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/entries?range=today", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Entries, 1)
	assert.Equal(t, "ran 6km", list.Entries[0].Content)

	w = s.do(t, http.MethodDelete, "/entries/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodDelete, "/entries/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEntryValidation(t *testing.T) {
	s := newServer(t, nil)

	w := s.do(t, http.MethodPost, "/entries", gin.H{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/entries/missing", gin.H{"content": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/entries?range=decade", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/entries?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPatternsAndStats(t *testing.T) {
	s := newServer(t, nil)

	w := s.do(t, http.MethodGet, "/patterns", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"patterns":[]`)

	snap := &patterns.Snapshot{
		GeneratedAt: time.Now(),
		Patterns: []*model.IntelligencePattern{
			{Signature: "entity:person:sarah", Type: model.PatternCorrelation, Metrics: model.ConfidenceMetrics{Occurrences: 5, Confidence: 0.6}},
		},
		Stats: patterns.Stats{TotalEntries: 5, CurrentStreak: 2},
	}
	s = newServer(t, snap)

	w = s.do(t, http.MethodGet, "/patterns", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "entity:person:sarah")

	w = s.do(t, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Stats patterns.Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 5, body.Stats.TotalEntries)
	assert.Equal(t, 2, body.Stats.CurrentStreak)
}

func TestTriggerSync(t *testing.T) {
	s := newServer(t, nil)
	s.syncer.res = syncengine.Result{Pushed: 2, Pulled: 1}

	w := s.do(t, http.MethodPost, "/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pushed":2`)
	assert.Equal(t, 1, s.syncer.calls)

	s.syncer.err = errors.New("connection refused")
	w = s.do(t, http.MethodPost, "/sync", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"retry":true`)
}

func TestRouter_ServeShutsDownWithContext(t *testing.T) {
	s := newServer(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	url := "http://" + ln.Addr().String() + "/healthz"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.router.ServeListener(ctx, ln) }()

	resp, err := http.Get(url)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	_, err = http.Get(url)
	assert.Error(t, err)
}
