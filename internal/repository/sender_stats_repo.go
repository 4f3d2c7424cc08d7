package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"inboxpilot/internal/model"
)

type SenderStatsRepository struct {
	db *pgxpool.Pool
}

func NewSenderStatsRepository(db *pgxpool.Pool) *SenderStatsRepository {
	return &SenderStatsRepository{db: db}
}

// UserScoringContext returns the learned sender weights and VIP boosts
// for one user, as plain maps so the scoring engine stays pure.
func (r *SenderStatsRepository) UserScoringContext(ctx context.Context, userID int) (weights map[string]float64, vipBoosts map[string]float64, err error) {
	rows, err := r.db.Query(ctx, `
        SELECT sender, weight, vip, vip_boost
        FROM sender_stats
        WHERE user_id = $1
    `, userID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	weights = make(map[string]float64)
	vipBoosts = make(map[string]float64)
	for rows.Next() {
		var sender string
		var weight, boost float64
		var vip bool
		if err := rows.Scan(&sender, &weight, &vip, &boost); err != nil {
			return nil, nil, err
		}
		weights[sender] = weight
		if vip {
			vipBoosts[sender] = boost
		}
	}
	return weights, vipBoosts, rows.Err()
}

// SetVIP marks a sender as VIP with a boost value (or clears it).
func (r *SenderStatsRepository) SetVIP(ctx context.Context, userID int, sender string, vip bool, boost float64) error {
	query := `
        INSERT INTO sender_stats (user_id, sender, weight, vip, vip_boost, action_count, updated_at)
        VALUES ($1, $2, 0, $3, $4, 0, NOW())
        ON CONFLICT (user_id, sender) DO UPDATE SET
            vip = EXCLUDED.vip,
            vip_boost = EXCLUDED.vip_boost,
            updated_at = NOW()
    `
	_, err := r.db.Exec(ctx, query, userID, sender, vip, boost)
	return err
}

// ListBySender returns a user's learned sender stats, strongest weight
// first.
func (r *SenderStatsRepository) ListBySender(ctx context.Context, userID, limit int) ([]model.SenderStats, error) {
	rows, err := r.db.Query(ctx, `
        SELECT user_id, sender, weight, vip, vip_boost, action_count, updated_at
        FROM sender_stats
        WHERE user_id = $1
        ORDER BY weight DESC, sender ASC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []model.SenderStats
	for rows.Next() {
		var s model.SenderStats
		err := rows.Scan(&s.UserID, &s.Sender, &s.Weight, &s.VIP, &s.VIPBoost, &s.ActionCount, &s.UpdatedAt)
		if err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// ApplyFeedback applies weight deltas per sender and marks the source
// actions processed, in one transaction. Running it twice cannot double
// count: the second run sees no unprocessed actions.
func (r *SenderStatsRepository) ApplyFeedback(ctx context.Context, userID int, deltas map[string]float64, counts map[string]int, actionIDs []int, minWeight, maxWeight float64) error {
	if len(actionIDs) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin feedback tx: %w", err)
	}
	defer tx.Rollback(ctx)

	upsert := `
        INSERT INTO sender_stats (user_id, sender, weight, vip, vip_boost, action_count, updated_at)
        VALUES ($1, $2, LEAST($5, GREATEST($4, $3)), FALSE, 0, $6, NOW())
        ON CONFLICT (user_id, sender) DO UPDATE SET
            weight = LEAST($5, GREATEST($4, sender_stats.weight + $3)),
            action_count = sender_stats.action_count + $6,
            updated_at = NOW()
    `
	for sender, delta := range deltas {
		if _, err := tx.Exec(ctx, upsert, userID, sender, delta, minWeight, maxWeight, counts[sender]); err != nil {
			return fmt.Errorf("failed to upsert sender weight: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
        UPDATE user_actions SET processed_at = NOW()
        WHERE id = ANY($1) AND processed_at IS NULL
    `, actionIDs); err != nil {
		return fmt.Errorf("failed to mark actions processed: %w", err)
	}

	return tx.Commit(ctx)
}
