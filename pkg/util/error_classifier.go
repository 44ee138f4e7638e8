package util

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"leannotes/pkg/circuitbreaker"
)

// ErrInvalidData 标记记录本身的数据形状问题（非法 UTF-8、NUL 字节、超长内容等）
var ErrInvalidData = errors.New("invalid data")

// 错误类型
const (
	ErrorTypeData        = "data_error"
	ErrorTypeConstraint  = "constraint_violation"
	ErrorTypeSchema      = "schema_error"
	ErrorTypeJSON        = "json_decode_error"
	ErrorTypeNotFound    = "not_found"
	ErrorTypeConnection  = "db_connection_error"
	ErrorTypeNetwork     = "network_error"
	ErrorTypeTimeout     = "timeout"
	ErrorTypeCanceled    = "context_canceled"
	ErrorTypeCircuitOpen = "circuit_open"
	ErrorTypeUnknown     = "unknown_error"
)

// IsRetryableError determines if an error is retryable
// Returns: (isRetryable, errorType)
func IsRetryableError(err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	if errors.Is(err, ErrInvalidData) {
		return false, ErrorTypeData
	}

	// PostgreSQL 错误按 SQLSTATE 类别判断
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifySQLState(pgErr.Code)
	}

	// JSON decode errors - 不可重试（数据格式错误）
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return false, ErrorTypeJSON
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrorTypeNotFound
	}

	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		return true, ErrorTypeCircuitOpen
	}

	// Context timeout - 可重试
	if errors.Is(err, context.DeadlineExceeded) {
		return true, ErrorTypeTimeout
	}
	if errors.Is(err, context.Canceled) {
		return false, ErrorTypeCanceled
	}

	// URL / network errors - 可重试
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true, ErrorTypeTimeout
		}
		return true, ErrorTypeNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true, ErrorTypeTimeout
		}
		return true, ErrorTypeNetwork
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true, ErrorTypeConnection
	}

	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "connection reset") {
		return true, ErrorTypeConnection
	}

	// 默认：未知错误，保守处理 - 不重试
	return false, ErrorTypeUnknown
}

// IsDataShapeError reports whether err is caused by the record itself and will
// fail identically on every retry.
func IsDataShapeError(err error) bool {
	retryable, errType := IsRetryableError(err)
	if retryable {
		return false
	}
	return errType == ErrorTypeData || errType == ErrorTypeConstraint || errType == ErrorTypeJSON
}

func classifySQLState(code string) (bool, string) {
	if len(code) < 2 {
		return false, ErrorTypeUnknown
	}
	switch code[:2] {
	case "22": // data exception
		return false, ErrorTypeData
	case "23": // integrity constraint violation
		return false, ErrorTypeConstraint
	case "42": // syntax error or access rule violation
		return false, ErrorTypeSchema
	case "08", "53", "57", "40": // connection, resources, operator intervention, rollback
		return true, ErrorTypeConnection
	default:
		return false, ErrorTypeUnknown
	}
}

// ShouldRetry checks if an error should be retried based on retry count
func ShouldRetry(retryCount int64, maxRetries int64, isRetryable bool) bool {
	if !isRetryable {
		return false
	}
	return retryCount <= maxRetries
}
