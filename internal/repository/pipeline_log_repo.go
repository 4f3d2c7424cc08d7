package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"inboxpilot/internal/model"
)

type PipelineLogRepository struct {
	db *pgxpool.Pool
}

func NewPipelineLogRepository(db *pgxpool.Pool) *PipelineLogRepository {
	return &PipelineLogRepository{db: db}
}

func (r *PipelineLogRepository) Insert(ctx context.Context, log *model.PipelineLog) error {
	query := `
        INSERT INTO pipeline_log (user_id, item_id, event, message, created_at)
        VALUES ($1, $2, $3, $4, NOW())
    `
	_, err := r.db.Exec(ctx, query, log.UserID, log.ItemID, log.Event, log.Message)
	return err
}

func (r *PipelineLogRepository) ListRecentByUser(ctx context.Context, userID, limit int) ([]model.PipelineLog, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, user_id, item_id, event, message, created_at
        FROM pipeline_log
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []model.PipelineLog
	for rows.Next() {
		var l model.PipelineLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.ItemID, &l.Event, &l.Message, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
