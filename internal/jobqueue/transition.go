package jobqueue

import (
	"fmt"
	"time"

	"inboxpilot/internal/model"
)

// Event is something that happens to a claimed or queued job.
type Event string

const (
	EventClaim   Event = "claim"
	EventSucceed Event = "succeed"
	EventFail    Event = "fail"
)

// Next is the job state machine as a pure function: given the current
// status, an event and the attempt counters, it returns the next
// status and the updated attempt count. A fail event consumes one
// attempt; a job that still has attempts left goes back to pending,
// otherwise it is failed for good. Invalid transitions are errors so a
// bug in the pool surfaces instead of silently corrupting a row.
func Next(status model.JobStatus, event Event, attempts, maxAttempts int) (model.JobStatus, int, error) {
	switch {
	case status == model.JobPending && event == EventClaim:
		return model.JobRunning, attempts, nil
	case status == model.JobRunning && event == EventSucceed:
		return model.JobSucceeded, attempts, nil
	case status == model.JobRunning && event == EventFail:
		attempts++
		if attempts < maxAttempts {
			return model.JobPending, attempts, nil
		}
		return model.JobFailed, attempts, nil
	default:
		return status, attempts, fmt.Errorf("invalid transition: %s on %s", event, status)
	}
}

// Backoff returns the retry delay before attempt n+1, doubling per
// consumed attempt and capped at max. attempts is the count already
// consumed, so the first retry waits base.
func Backoff(base, max time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
