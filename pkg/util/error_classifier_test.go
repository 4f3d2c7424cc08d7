package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"

	"inboxpilot/pkg/circuitbreaker"
)

func TestIsRetryableError(t *testing.T) {
	syntaxErr := json.Unmarshal([]byte("{"), &struct{}{})

	tests := []struct {
		name      string
		err       error
		retryable bool
		errType   string
	}{
		{"nil", nil, false, ""},
		{"json syntax", syntaxErr, false, "json_decode_error"},
		{"no rows", pgx.ErrNoRows, false, "record_not_found"},
		{"wrapped no rows", fmt.Errorf("load item: %w", pgx.ErrNoRows), false, "record_not_found"},
		{"duplicate key", errors.New(`duplicate key value violates unique constraint "items_pkey"`), false, "duplicate_key"},
		{"connection refused", errors.New("dial tcp: connection refused"), true, "db_connection_error"},
		{"statement timeout", errors.New("pq: canceling statement due to statement timeout"), true, "db_connection_error"},
		{"deadline", context.DeadlineExceeded, true, "timeout"},
		{"canceled", context.Canceled, false, "context_canceled"},
		{"completion error", errors.New("completion service returned error: 500"), true, "completion_service_error"},
		{"completion unreachable", errors.New("failed to call completion service: dial tcp"), true, "completion_service_unavailable"},
		{"breaker open", circuitbreaker.ErrCircuitBreakerOpen, true, "circuit_breaker_open"},
		{"wrapped breaker open", fmt.Errorf("enrich item 7: %w", circuitbreaker.ErrCircuitBreakerOpen), true, "circuit_breaker_open"},
		{"unknown", errors.New("boom"), false, "unknown_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retryable, errType := IsRetryableError(tt.err)
			assert.Equal(t, tt.retryable, retryable)
			assert.Equal(t, tt.errType, errType)
		})
	}
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, ShouldRetry(1, 3, true))
	assert.True(t, ShouldRetry(2, 3, true))
	assert.False(t, ShouldRetry(3, 3, true))
	assert.False(t, ShouldRetry(1, 3, false))
}
