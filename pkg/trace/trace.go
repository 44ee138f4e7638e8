// Package trace carries a per-operation trace id through context, log fields,
// outgoing HTTP headers and MQ message headers.
package trace

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Header carries the trace id across HTTP and AMQP.
const Header = "X-Trace-ID"

const maxTraceIDLen = 64

type contextKey struct{}

// GenerateTraceID 生成新的 trace ID（32 位十六进制）
func GenerateTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func FromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(contextKey{}).(string); ok {
		return traceID
	}
	return ""
}

// WithContext 写入 trace_id；空值或超长值被忽略
func WithContext(ctx context.Context, traceID string) context.Context {
	traceID = strings.TrimSpace(traceID)
	if traceID == "" || len(traceID) > maxTraceIDLen {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, traceID)
}

// Ensure returns ctx unchanged when it already has a trace id, otherwise a
// child context with a fresh one.
func Ensure(ctx context.Context) context.Context {
	if FromContext(ctx) != "" {
		return ctx
	}
	return WithContext(ctx, GenerateTraceID())
}

func HeaderName() string {
	return Header
}
