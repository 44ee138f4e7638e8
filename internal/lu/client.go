// Package lu calls the language-understanding capability through an
// OpenAI-compatible chat completions endpoint.
package lu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"go.uber.org/zap"

	"leannotes/contracts/lu"
	"leannotes/pkg/circuitbreaker"
	"leannotes/pkg/config"
	"leannotes/pkg/metrics"
	"leannotes/pkg/trace"
)

// ErrUnavailable is returned when no LU endpoint is configured.
var ErrUnavailable = errors.New("language understanding unavailable")

type Client interface {
	Analyze(ctx context.Context, req lu.AnalyzeRequest) (*lu.AnalyzeResponse, error)
	Summarize(ctx context.Context, req lu.SummarizeRequest) (*lu.SummarizeResponse, error)
}

// New returns the HTTP client, or Disabled when LU is switched off.
func New(cfg config.LUConfig, logger *zap.Logger) Client {
	if !cfg.Enabled || cfg.BaseURL == "" {
		logger.Info("LU disabled, enrichment uses the local fallback only")
		return Disabled{}
	}
	return NewHTTPClient(cfg, logger)
}

// Disabled fails every call with ErrUnavailable.
type Disabled struct{}

func (Disabled) Analyze(context.Context, lu.AnalyzeRequest) (*lu.AnalyzeResponse, error) {
	return nil, ErrUnavailable
}

func (Disabled) Summarize(context.Context, lu.SummarizeRequest) (*lu.SummarizeResponse, error) {
	return nil, ErrUnavailable
}

type HTTPClient struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker // 熔断器
	logger     *zap.Logger
}

func NewHTTPClient(cfg config.LUConfig, logger *zap.Logger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      model,
		timeout:    timeout,
		httpClient: &http.Client{},
		cb:         circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()),
		logger:     logger,
	}
}

// WithCircuitBreaker 替换熔断器（测试用）
func (c *HTTPClient) WithCircuitBreaker(cb *circuitbreaker.CircuitBreaker) *HTTPClient {
	c.cb = cb
	return c
}

func (c *HTTPClient) Analyze(ctx context.Context, req lu.AnalyzeRequest) (*lu.AnalyzeResponse, error) {
	content, err := c.complete(ctx, "analyze", analyzePrompt, analyzeInput(req))
	if err != nil {
		return nil, err
	}

	var resp lu.AnalyzeResponse
	if err := json.Unmarshal([]byte(extractJSON(content)), &resp); err != nil {
		return nil, fmt.Errorf("failed to decode analyze response: %w", err)
	}
	return &resp, nil
}

func (c *HTTPClient) Summarize(ctx context.Context, req lu.SummarizeRequest) (*lu.SummarizeResponse, error) {
	if len(req.Entries) == 0 {
		return &lu.SummarizeResponse{}, nil
	}
	content, err := c.complete(ctx, "summarize", summarizePrompt, strings.Join(req.Entries, "\n\n"))
	if err != nil {
		return nil, err
	}
	return &lu.SummarizeResponse{Summary: strings.TrimSpace(content)}, nil
}

// complete sends one system+user exchange and returns the assistant text.
func (c *HTTPClient) complete(ctx context.Context, operation, system, user string) (string, error) {
	var content string

	err := c.cb.Execute(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		start := time.Now()
		body, err := json.Marshal(map[string]any{
			"model": c.model,
			"messages": []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(system),
				openai.UserMessage(user),
			},
			"temperature": 0,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		// 传播 trace_id
		if traceID := trace.FromContext(ctx); traceID != "" {
			req.Header.Set(trace.HeaderName(), traceID)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			metrics.RecordLUCallLatency(operation, "error", time.Since(start))
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			metrics.RecordLUCallLatency(operation, fmt.Sprintf("%d", resp.StatusCode), time.Since(start))
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("LU request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		}

		var completion openai.ChatCompletion
		if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
			metrics.RecordLUCallLatency(operation, "decode_error", time.Since(start))
			return fmt.Errorf("failed to decode completion: %w", err)
		}
		if len(completion.Choices) == 0 {
			metrics.RecordLUCallLatency(operation, "empty", time.Since(start))
			return errors.New("LU response has no choices")
		}

		metrics.RecordLUCallLatency(operation, "success", time.Since(start))
		content = completion.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		c.logger.Debug("LU call failed",
			zap.String("operation", operation),
			zap.String("breaker", c.cb.GetState().String()),
			zap.Error(err),
		)
		return "", err
	}
	return content, nil
}

// extractJSON drops markdown code fences and any prose around the object.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return strings.TrimSpace(s)
}
