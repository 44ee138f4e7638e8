package lu

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"leannotes/contracts/lu"
	"leannotes/pkg/circuitbreaker"
	"leannotes/pkg/config"
	"leannotes/pkg/trace"
)

func completionBody(content string) []byte {
	b, _ := json.Marshal(map[string]any{
		"id":     "cmpl-1",
		"object": "chat.completion",
		"model":  "test",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return b
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(config.LUConfig{
		Enabled: true,
		BaseURL: srv.URL + "/",
		APIKey:  "secret",
		Model:   "test-model",
		Timeout: time.Second,
	}, zap.NewNop())
}

func TestHTTPClient_Analyze(t *testing.T) {
	var gotAuth, gotTrace, gotPath string
	var gotBody map[string]any

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTrace = r.Header.Get(trace.HeaderName())
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write(completionBody("```json\n" + `{"emotion":"anxious","themes":["work"],"people":[{"name":"Sarah","sentiment":"neutral"}],"urgency":"medium","confidence":{"emotion":0.8}}` + "\n```"))
	})

	ctx := trace.WithContext(context.Background(), "trace-123")
	resp, err := client.Analyze(ctx, lu.AnalyzeRequest{Text: "Meeting with Sarah", Context: "I work at Acme"})
	require.NoError(t, err)

	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "trace-123", gotTrace)
	assert.Equal(t, "test-model", gotBody["model"])
	messages, ok := gotBody["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)

	assert.Equal(t, "anxious", resp.Emotion)
	assert.Equal(t, []string{"work"}, resp.Themes)
	require.Len(t, resp.People, 1)
	assert.Equal(t, "Sarah", resp.People[0].Name)
	assert.Equal(t, 0.8, resp.Confidence["emotion"])
}

func TestHTTPClient_AnalyzeErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "overloaded", http.StatusServiceUnavailable)
			},
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write(completionBody("I cannot help with that"))
			},
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)
			_, err := client.Analyze(context.Background(), lu.AnalyzeRequest{Text: "hello"})
			assert.Error(t, err)
		})
	}
}

func TestHTTPClient_CircuitOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	client.WithCircuitBreaker(circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
		FailureThreshold:    2,
		SuccessThreshold:    1,
		Timeout:             time.Hour,
		HalfOpenMaxRequests: 1,
	}))

	for i := 0; i < 2; i++ {
		_, err := client.Analyze(context.Background(), lu.AnalyzeRequest{Text: "x"})
		require.Error(t, err)
	}
	_, err := client.Analyze(context.Background(), lu.AnalyzeRequest{Text: "x"})
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitBreakerOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPClient_Summarize(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(completionBody("  A busy week at work.  "))
	})

	resp, err := client.Summarize(context.Background(), lu.SummarizeRequest{Entries: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "A busy week at work.", resp.Summary)
}

func TestDisabled(t *testing.T) {
	c := New(config.LUConfig{Enabled: false}, zap.NewNop())
	_, err := c.Analyze(context.Background(), lu.AnalyzeRequest{Text: "x"})
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = c.Summarize(context.Background(), lu.SummarizeRequest{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, extractJSON(`Sure! {"a":1} Hope that helps.`))
}
