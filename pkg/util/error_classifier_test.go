package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"leannotes/pkg/circuitbreaker"
)

func TestIsRetryableError(t *testing.T) {
	var syntaxErr error
	{
		var v map[string]any
		syntaxErr = json.Unmarshal([]byte("{"), &v)
	}

	tests := []struct {
		name      string
		err       error
		retryable bool
		errType   string
	}{
		{"nil", nil, false, ""},
		{"invalid data", fmt.Errorf("push entry: %w", ErrInvalidData), false, ErrorTypeData},
		{"pg data exception", &pgconn.PgError{Code: "22021"}, false, ErrorTypeData},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, false, ErrorTypeConstraint},
		{"pg undefined table", &pgconn.PgError{Code: "42P01"}, false, ErrorTypeSchema},
		{"pg admin shutdown", &pgconn.PgError{Code: "57P01"}, true, ErrorTypeConnection},
		{"pg too many connections", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "53300"}), true, ErrorTypeConnection},
		{"json", syntaxErr, false, ErrorTypeJSON},
		{"deadline", context.DeadlineExceeded, true, ErrorTypeTimeout},
		{"canceled", context.Canceled, false, ErrorTypeCanceled},
		{"circuit open", circuitbreaker.ErrCircuitBreakerOpen, true, ErrorTypeCircuitOpen},
		{"refused", errors.New("dial tcp 127.0.0.1:5432: connection refused"), true, ErrorTypeConnection},
		{"unknown", errors.New("boom"), false, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retryable, errType := IsRetryableError(tt.err)
			assert.Equal(t, tt.retryable, retryable)
			assert.Equal(t, tt.errType, errType)
		})
	}
}

func TestIsDataShapeError(t *testing.T) {
	assert.True(t, IsDataShapeError(fmt.Errorf("x: %w", ErrInvalidData)))
	assert.True(t, IsDataShapeError(&pgconn.PgError{Code: "23502"}))
	assert.False(t, IsDataShapeError(&pgconn.PgError{Code: "42P01"}))
	assert.False(t, IsDataShapeError(context.DeadlineExceeded))
	assert.False(t, IsDataShapeError(errors.New("boom")))
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, ShouldRetry(1, 3, true))
	assert.False(t, ShouldRetry(4, 3, true))
	assert.False(t, ShouldRetry(0, 3, false))
}
