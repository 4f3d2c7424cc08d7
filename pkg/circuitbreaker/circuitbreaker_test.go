package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func testConfig() Config {
	return Config{
		FailureThreshold:    3,
		SuccessThreshold:    2,
		Timeout:             20 * time.Millisecond,
		HalfOpenMaxRequests: 2,
	}
}

func TestClosedPassesThrough(t *testing.T) {
	cb := NewCircuitBreaker(testConfig())

	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(testConfig())

	for i := 0; i < 3; i++ {
		err := cb.Execute(func() error { return errBoom })
		assert.ErrorIs(t, err, errBoom)
	}

	// the transition is applied on the next call, which gets rejected
	err := cb.Execute(func() error {
		t.Fatal("open breaker must not run fn")
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(testConfig())

	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error { return errBoom })
	}
	require.NoError(t, cb.Execute(func() error { return nil }))

	// two more failures still do not trip a threshold of three
	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error { return errBoom })
	}
	err := cb.Execute(func() error { return nil })
	assert.NoError(t, err)
}

func TestHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(testConfig())

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errBoom })
	}
	_ = cb.Execute(func() error { return nil }) // rejected, flips to open
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(30 * time.Millisecond)

	// probes succeed, breaker closes after the success threshold
	for i := 0; i < 2; i++ {
		err := cb.Execute(func() error { return nil })
		require.NoError(t, err)
	}
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(testConfig())

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errBoom })
	}
	_ = cb.Execute(func() error { return nil })
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(30 * time.Millisecond)

	err := cb.Execute(func() error { return errBoom })
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestReset(t *testing.T) {
	cb := NewCircuitBreaker(testConfig())

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errBoom })
	}
	_ = cb.Execute(func() error { return nil })
	require.Equal(t, StateOpen, cb.GetState())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.NoError(t, cb.Execute(func() error { return nil }))
}
