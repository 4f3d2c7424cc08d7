package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"inboxpilot/internal/model"
)

type ActionRepository struct {
	db *pgxpool.Pool
}

func NewActionRepository(db *pgxpool.Pool) *ActionRepository {
	return &ActionRepository{db: db}
}

// Insert appends a user action. Rows are never updated except for the
// processed_at watermark owned by the feedback loop.
func (r *ActionRepository) Insert(ctx context.Context, a *model.UserAction) error {
	query := `
        INSERT INTO user_actions (user_id, item_id, action, sender, score_snapshot, tier_snapshot, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW())
        RETURNING id, created_at
    `
	return r.db.QueryRow(ctx, query,
		a.UserID, a.ItemID, a.Action, a.Sender, a.ScoreSnapshot, a.TierSnapshot,
	).Scan(&a.ID, &a.CreatedAt)
}

// ListRecent returns recent actions for a user, optionally filtered by
// item and action type. Zero values disable a filter.
func (r *ActionRepository) ListRecent(ctx context.Context, userID, itemID int, action model.UserActionType, limit int) ([]model.UserAction, error) {
	query := `
        SELECT id, user_id, item_id, action, sender, score_snapshot, tier_snapshot, created_at, processed_at
        FROM user_actions
        WHERE user_id = $1
          AND ($2 = 0 OR item_id = $2)
          AND ($3 = '' OR action = $3)
        ORDER BY created_at DESC
        LIMIT $4
    `
	rows, err := r.db.Query(ctx, query, userID, itemID, string(action), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []model.UserAction
	for rows.Next() {
		var a model.UserAction
		err := rows.Scan(
			&a.ID, &a.UserID, &a.ItemID, &a.Action, &a.Sender,
			&a.ScoreSnapshot, &a.TierSnapshot, &a.CreatedAt, &a.ProcessedAt,
		)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// ListUnprocessed returns up to limit actions not yet consumed by the
// feedback loop, oldest first.
func (r *ActionRepository) ListUnprocessed(ctx context.Context, userID, limit int) ([]model.UserAction, error) {
	query := `
        SELECT id, user_id, item_id, action, sender, score_snapshot, tier_snapshot, created_at, processed_at
        FROM user_actions
        WHERE user_id = $1 AND processed_at IS NULL
        ORDER BY created_at ASC
        LIMIT $2
    `
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []model.UserAction
	for rows.Next() {
		var a model.UserAction
		err := rows.Scan(
			&a.ID, &a.UserID, &a.ItemID, &a.Action, &a.Sender,
			&a.ScoreSnapshot, &a.TierSnapshot, &a.CreatedAt, &a.ProcessedAt,
		)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// CountsByAction aggregates action totals for a user.
func (r *ActionRepository) CountsByAction(ctx context.Context, userID int) (map[model.UserActionType]int, error) {
	rows, err := r.db.Query(ctx, `
        SELECT action, COUNT(*) FROM user_actions WHERE user_id = $1 GROUP BY action
    `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.UserActionType]int)
	for rows.Next() {
		var action model.UserActionType
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return nil, err
		}
		counts[action] = n
	}
	return counts, rows.Err()
}
