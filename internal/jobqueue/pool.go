package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"inboxpilot/config"
	contracts "inboxpilot/contracts/mq"
	"inboxpilot/internal/model"
	"inboxpilot/pkg/metrics"
	"inboxpilot/pkg/util"
)

// Store is the job persistence the pool drives. Implemented by
// repository.JobRepository; tests use an in-memory fake.
type Store interface {
	Enqueue(ctx context.Context, j *model.Job) error
	Claim(ctx context.Context, limit int) ([]*model.Job, error)
	MarkSucceeded(ctx context.Context, id string) error
	Reschedule(ctx context.Context, id string, attempts int, runAt time.Time, lastErr string) error
	MarkFailed(ctx context.Context, id string, attempts int, lastErr string) error
	RequeueRunning(ctx context.Context) (int, error)
	ResetFailed(ctx context.Context, limit int) (int, error)
	Counts(ctx context.Context) (map[model.JobStatus]int, error)
}

// Handler executes one job. A nil return moves the job to succeeded;
// an error consumes an attempt.
type Handler func(ctx context.Context, job *model.Job) error

// DeadLetterer receives jobs that exhausted their retries.
type DeadLetterer interface {
	PublishToDLQ(routingKey string, payload []byte, originalError string) error
}

// Pool runs a fixed set of workers over the jobs table. Several pools
// may run against the same table; SKIP LOCKED claiming keeps them from
// stepping on each other.
type Pool struct {
	cfg      config.QueueConfig
	store    Store
	handlers map[model.JobType]Handler
	dlq      DeadLetterer
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	kickCh  chan struct{}
	wg      sync.WaitGroup
	active  int64
}

func NewPool(cfg config.QueueConfig, store Store, dlq DeadLetterer, logger *zap.Logger) *Pool {
	return &Pool{
		cfg:      cfg,
		store:    store,
		handlers: make(map[model.JobType]Handler),
		dlq:      dlq,
		logger:   logger,
		kickCh:   make(chan struct{}, 1),
	}
}

// Register binds a handler to a job type. Must be called before
// Initialize.
func (p *Pool) Register(jobType model.JobType, h Handler) {
	p.handlers[jobType] = h
}

// Initialize starts the dispatcher and workers. Calling it on a
// running pool is a no-op. Jobs left in running by a previous unclean
// stop are returned to pending first.
func (p *Pool) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}

	requeued, err := p.store.RequeueRunning(ctx)
	if err != nil {
		return err
	}
	if requeued > 0 {
		p.logger.Info("requeued abandoned jobs", zap.Int("count", requeued))
	}

	p.stopCh = make(chan struct{})
	jobs := make(chan *model.Job)

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(jobs)
	}
	p.wg.Add(1)
	go p.dispatch(jobs)

	p.running = true
	p.logger.Info("worker pool started",
		zap.Int("workers", p.cfg.Workers),
		zap.Duration("poll_interval", p.cfg.PollInterval))
	return nil
}

// Shutdown stops intake and drains in-flight jobs, bounded by the
// drain timeout. After a timeout any job still running is returned to
// pending for the next pool start. Idempotent.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool drained")
		return nil
	case <-time.After(p.cfg.DrainTimeout):
		requeued, err := p.store.RequeueRunning(context.Background())
		if err != nil {
			p.logger.Error("failed to requeue jobs after drain timeout", zap.Error(err))
			return err
		}
		p.logger.Warn("drain timeout reached, requeued in-flight jobs",
			zap.Int("requeued", requeued))
		return nil
	}
}

// Kick wakes the dispatcher without waiting for the next poll tick.
func (p *Pool) Kick() {
	select {
	case p.kickCh <- struct{}{}:
	default:
	}
}

func (p *Pool) dispatch(jobs chan<- *model.Job) {
	defer p.wg.Done()
	defer close(jobs)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
		case <-p.kickCh:
		}

		claimed, err := p.store.Claim(context.Background(), p.cfg.Workers)
		if err != nil {
			p.logger.Error("failed to claim jobs", zap.Error(err))
			continue
		}
		for _, job := range claimed {
			select {
			case jobs <- job:
			case <-p.stopCh:
				// Stop mid-batch; unclaimed handoffs are recovered by
				// the drain-timeout requeue or the next start.
				return
			}
		}
	}
}

func (p *Pool) worker(jobs <-chan *model.Job) {
	defer p.wg.Done()
	for job := range jobs {
		atomic.AddInt64(&p.active, 1)
		p.process(job)
		atomic.AddInt64(&p.active, -1)
	}
}

func (p *Pool) process(job *model.Job) {
	ctx := context.Background()
	start := time.Now()
	log := p.logger.With(
		zap.String("job_id", job.ID),
		zap.String("job_type", string(job.Type)),
		zap.Int("attempts", job.Attempts))

	handler, ok := p.handlers[job.Type]
	if !ok {
		log.Error("no handler registered for job type")
		p.fail(ctx, job, job.Attempts+1, "no handler registered")
		metrics.RecordJobProcessed(string(job.Type), "failed", time.Since(start))
		return
	}

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &panicError{value: r}
			}
		}()
		return handler(ctx, job)
	}()

	if err == nil {
		if markErr := p.store.MarkSucceeded(ctx, job.ID); markErr != nil {
			log.Error("failed to mark job succeeded", zap.Error(markErr))
		}
		metrics.RecordJobProcessed(string(job.Type), "succeeded", time.Since(start))
		return
	}

	retryable, errType := util.IsRetryableError(err)
	next, attempts, terr := Next(model.JobRunning, EventFail, job.Attempts, job.MaxAttempts)
	if terr != nil {
		log.Error("invalid job transition", zap.Error(terr))
		return
	}
	if !retryable {
		next = model.JobFailed
	}

	switch next {
	case model.JobPending:
		delay := Backoff(p.cfg.BackoffBase, p.cfg.BackoffMax, attempts)
		if rerr := p.store.Reschedule(ctx, job.ID, attempts, time.Now().Add(delay), err.Error()); rerr != nil {
			log.Error("failed to reschedule job", zap.Error(rerr))
		}
		log.Warn("job failed, scheduled for retry",
			zap.String("error_type", errType),
			zap.Duration("backoff", delay),
			zap.Error(err))
		metrics.RecordJobProcessed(string(job.Type), "retried", time.Since(start))
	case model.JobFailed:
		p.fail(ctx, job, attempts, err.Error())
		log.Error("job failed permanently",
			zap.String("error_type", errType),
			zap.Bool("retryable", retryable),
			zap.Error(err))
		metrics.RecordJobProcessed(string(job.Type), "failed", time.Since(start))
	}
}

func (p *Pool) fail(ctx context.Context, job *model.Job, attempts int, lastErr string) {
	if err := p.store.MarkFailed(ctx, job.ID, attempts, lastErr); err != nil {
		p.logger.Error("failed to mark job failed",
			zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	if p.dlq != nil {
		payload, _ := json.Marshal(contracts.JobDeadPayload{
			JobID:    job.ID,
			Type:     string(job.Type),
			UserID:   job.UserID,
			Attempts: attempts,
			Error:    lastErr,
		})
		if err := p.dlq.PublishToDLQ(contracts.RoutingKeyJobDead, payload, lastErr); err != nil {
			p.logger.Warn("failed to publish dead job",
				zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("job handler panicked: %v", e.value)
}

// Enqueue inserts a job scheduled at runAt and wakes the pool when the
// job is already due.
func (p *Pool) Enqueue(ctx context.Context, jobType model.JobType, userID int, payload any, runAt time.Time) (*model.Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	job := &model.Job{
		ID:          uuid.NewString(),
		Type:        jobType,
		UserID:      userID,
		Payload:     body,
		Status:      model.JobPending,
		MaxAttempts: p.cfg.MaxAttempts,
		ScheduledAt: runAt,
	}
	if err := p.store.Enqueue(ctx, job); err != nil {
		return nil, err
	}
	if !runAt.After(time.Now()) {
		p.Kick()
	}
	return job, nil
}

// ProcessImmediate enqueues a bounded batch of due-now jobs, sharing
// the pool's worker capacity rather than spawning extra concurrency.
// Returns how many jobs were accepted; the rest of the batch is
// dropped and reported to the caller.
func (p *Pool) ProcessImmediate(ctx context.Context, jobType model.JobType, userID int, payloads []any) (int, error) {
	limit := p.cfg.ImmediateLimit
	if len(payloads) < limit {
		limit = len(payloads)
	}
	now := time.Now()
	accepted := 0
	for _, payload := range payloads[:limit] {
		if _, err := p.Enqueue(ctx, jobType, userID, payload, now); err != nil {
			return accepted, err
		}
		accepted++
	}
	p.Kick()
	return accepted, nil
}

// RetryFailed resets up to limit failed jobs to pending with attempts
// back at zero. Explicit operator action.
func (p *Pool) RetryFailed(ctx context.Context, limit int) (int, error) {
	n, err := p.store.ResetFailed(ctx, limit)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		p.Kick()
	}
	return n, nil
}

// Status describes the pool and queue for the operator endpoint.
type Status struct {
	Running       bool                    `json:"running"`
	Workers       int                     `json:"workers"`
	ActiveWorkers int                     `json:"active_workers"`
	Counts        map[model.JobStatus]int `json:"counts"`
}

func (p *Pool) Status(ctx context.Context) (Status, error) {
	counts, err := p.store.Counts(ctx)
	if err != nil {
		return Status{}, err
	}
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	return Status{
		Running:       running,
		Workers:       p.cfg.Workers,
		ActiveWorkers: int(atomic.LoadInt64(&p.active)),
		Counts:        counts,
	}, nil
}
