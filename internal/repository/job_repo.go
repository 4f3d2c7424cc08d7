package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"inboxpilot/internal/model"
)

type JobRepository struct {
	db *pgxpool.Pool
}

func NewJobRepository(db *pgxpool.Pool) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `
        id, type, user_id, payload, status, attempts, max_attempts,
        COALESCE(last_error, ''), scheduled_at, created_at, updated_at`

func scanJobs(rows pgx.Rows) ([]*model.Job, error) {
	var jobs []*model.Job
	for rows.Next() {
		var j model.Job
		err := rows.Scan(
			&j.ID, &j.Type, &j.UserID, &j.Payload, &j.Status, &j.Attempts,
			&j.MaxAttempts, &j.LastError, &j.ScheduledAt, &j.CreatedAt, &j.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

// Enqueue inserts a pending job.
func (r *JobRepository) Enqueue(ctx context.Context, j *model.Job) error {
	query := `
        INSERT INTO jobs (id, type, user_id, payload, status, attempts, max_attempts, scheduled_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, 'pending', 0, $5, $6, NOW(), NOW())
    `
	_, err := r.db.Exec(ctx, query, j.ID, j.Type, j.UserID, j.Payload, j.MaxAttempts, j.ScheduledAt)
	return err
}

// Claim atomically moves up to limit due pending jobs to running and
// returns them. SKIP LOCKED keeps concurrent pools from claiming the
// same rows.
func (r *JobRepository) Claim(ctx context.Context, limit int) ([]*model.Job, error) {
	query := `
        UPDATE jobs
        SET status = 'running', updated_at = NOW()
        WHERE id IN (
            SELECT id FROM jobs
            WHERE status = 'pending' AND scheduled_at <= NOW()
            ORDER BY scheduled_at ASC
            LIMIT $1
            FOR UPDATE SKIP LOCKED
        )
        RETURNING` + jobColumns + `
    `
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

// MarkSucceeded finishes a running job.
func (r *JobRepository) MarkSucceeded(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `
        UPDATE jobs SET status = 'succeeded', updated_at = NOW()
        WHERE id = $1 AND status = 'running'
    `, id)
	return err
}

// Reschedule returns a failed attempt to pending with a pushed-forward
// scheduled_at.
func (r *JobRepository) Reschedule(ctx context.Context, id string, attempts int, runAt time.Time, lastErr string) error {
	_, err := r.db.Exec(ctx, `
        UPDATE jobs
        SET status = 'pending', attempts = $2, scheduled_at = $3, last_error = $4, updated_at = NOW()
        WHERE id = $1 AND status = 'running'
    `, id, attempts, runAt, lastErr)
	return err
}

// MarkFailed finishes a job that exhausted its retries.
func (r *JobRepository) MarkFailed(ctx context.Context, id string, attempts int, lastErr string) error {
	_, err := r.db.Exec(ctx, `
        UPDATE jobs
        SET status = 'failed', attempts = $2, last_error = $3, updated_at = NOW()
        WHERE id = $1 AND status = 'running'
    `, id, attempts, lastErr)
	return err
}

// RequeueRunning returns all running jobs to pending. Called on pool
// start and after a drain timeout so no job is abandoned mid-running.
func (r *JobRepository) RequeueRunning(ctx context.Context) (int, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE jobs SET status = 'pending', updated_at = NOW()
        WHERE status = 'running'
    `)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ResetFailed re-enqueues up to limit failed jobs with attempts reset
// to zero. Explicit operator action, not automatic.
func (r *JobRepository) ResetFailed(ctx context.Context, limit int) (int, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE jobs
        SET status = 'pending', attempts = 0, last_error = NULL, scheduled_at = NOW(), updated_at = NOW()
        WHERE id IN (
            SELECT id FROM jobs
            WHERE status = 'failed'
            ORDER BY updated_at ASC
            LIMIT $1
        )
    `, limit)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Counts returns the number of jobs per status.
func (r *JobRepository) Counts(ctx context.Context) (map[model.JobStatus]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.JobStatus]int)
	for rows.Next() {
		var status model.JobStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
