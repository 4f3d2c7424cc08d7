package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"inboxpilot/internal/model"
)

type ScoreRepository struct {
	db *pgxpool.Pool
}

func NewScoreRepository(db *pgxpool.Pool) *ScoreRepository {
	return &ScoreRepository{db: db}
}

// Upsert stores the active score for (user_id, item_id). Re-scoring
// replaces the previous row, so concurrent workers converge on one
// score per item.
func (r *ScoreRepository) Upsert(ctx context.Context, s *model.Score) error {
	query := `
        INSERT INTO scores (user_id, item_id, raw_score, final_score, tier, factors, scored_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (user_id, item_id) DO UPDATE SET
            raw_score = EXCLUDED.raw_score,
            final_score = EXCLUDED.final_score,
            tier = EXCLUDED.tier,
            factors = EXCLUDED.factors,
            scored_at = EXCLUDED.scored_at
        RETURNING id
    `
	return r.db.QueryRow(ctx, query,
		s.UserID, s.ItemID, s.RawScore, s.FinalScore, s.Tier, s.Factors, s.ScoredAt,
	).Scan(&s.ID)
}

// FindByItem returns the active score for an item.
func (r *ScoreRepository) FindByItem(ctx context.Context, userID, itemID int) (*model.Score, error) {
	query := `
        SELECT id, user_id, item_id, raw_score, final_score, tier, factors, scored_at
        FROM scores
        WHERE user_id = $1 AND item_id = $2
    `
	var s model.Score
	err := r.db.QueryRow(ctx, query, userID, itemID).Scan(
		&s.ID, &s.UserID, &s.ItemID, &s.RawScore, &s.FinalScore, &s.Tier, &s.Factors, &s.ScoredAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ApplyBoost shifts the final score by delta, clamped to [min, max],
// and records the cumulative rule boost in the factors map. Returns the
// new final score so the caller can re-derive the tier.
func (r *ScoreRepository) ApplyBoost(ctx context.Context, userID, itemID int, delta, min, max float64) (float64, error) {
	query := `
        UPDATE scores
        SET final_score = LEAST($5, GREATEST($4, final_score + $3)),
            factors = factors || jsonb_build_object(
                'rule_boost', COALESCE((factors->>'rule_boost')::float, 0) + $3
            )
        WHERE user_id = $1 AND item_id = $2
        RETURNING final_score
    `
	var final float64
	err := r.db.QueryRow(ctx, query, userID, itemID, delta, min, max).Scan(&final)
	return final, err
}

// SetTier updates the derived tier after a boost.
func (r *ScoreRepository) SetTier(ctx context.Context, userID, itemID int, tier model.Tier) error {
	_, err := r.db.Exec(ctx,
		`UPDATE scores SET tier = $3 WHERE user_id = $1 AND item_id = $2`,
		userID, itemID, tier,
	)
	return err
}
