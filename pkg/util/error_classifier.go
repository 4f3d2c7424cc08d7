package util

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"

	"inboxpilot/pkg/circuitbreaker"
)

// IsRetryableError determines if an error is worth retrying.
// Returns: (isRetryable, errorType).
func IsRetryableError(err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	errStr := err.Error()

	// JSON decode errors: malformed payload, retrying cannot help
	if _, ok := err.(*json.SyntaxError); ok {
		return false, "json_decode_error"
	}
	if _, ok := err.(*json.UnmarshalTypeError); ok {
		return false, "json_decode_error"
	}
	if strings.Contains(errStr, "json:") {
		return false, "json_decode_error"
	}

	// Database errors
	if errors.Is(err, pgx.ErrNoRows) {
		return false, "record_not_found"
	}
	if strings.Contains(errStr, "duplicate key") || strings.Contains(errStr, "UNIQUE constraint") {
		// unique conflicts are resolved by upsert, not by retry
		return false, "duplicate_key"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "timeout") {
		return true, "db_connection_error"
	}

	// Network errors
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true, "network_timeout"
		}
		return true, "network_error"
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true, "network_timeout"
		}
		return true, "network_error"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true, "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return false, "context_canceled"
	}

	// Completion service errors. An open breaker clears on its own
	// after the open timeout, so the job retries with backoff instead
	// of dead-lettering.
	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		return true, "circuit_breaker_open"
	}
	if strings.Contains(errStr, "completion service returned error") {
		return true, "completion_service_error"
	}
	if strings.Contains(errStr, "failed to call completion service") {
		return true, "completion_service_unavailable"
	}

	// Unknown errors: stay conservative, do not retry
	return false, "unknown_error"
}

// ShouldRetry checks if an error should be retried based on attempt count.
func ShouldRetry(attempts int, maxAttempts int, isRetryable bool) bool {
	if !isRetryable {
		return false
	}
	return attempts < maxAttempts
}
