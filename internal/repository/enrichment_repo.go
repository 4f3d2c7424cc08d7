package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"inboxpilot/internal/model"
)

type EnrichmentRepository struct {
	db *pgxpool.Pool
}

func NewEnrichmentRepository(db *pgxpool.Pool) *EnrichmentRepository {
	return &EnrichmentRepository{db: db}
}

// Upsert stores completion-service output for an item. A retried
// enrich job overwrites rather than duplicates.
func (r *EnrichmentRepository) Upsert(ctx context.Context, e *model.Enrichment) error {
	query := `
        INSERT INTO enrichments (user_id, item_id, summary, suggested_replies, created_at)
        VALUES ($1, $2, $3, $4, NOW())
        ON CONFLICT (item_id) DO UPDATE SET
            summary = EXCLUDED.summary,
            suggested_replies = EXCLUDED.suggested_replies
        RETURNING id
    `
	return r.db.QueryRow(ctx, query,
		e.UserID, e.ItemID, e.Summary, e.SuggestedReplies,
	).Scan(&e.ID)
}

// FindByItem returns the enrichment for an item, if any.
func (r *EnrichmentRepository) FindByItem(ctx context.Context, itemID int) (*model.Enrichment, error) {
	query := `
        SELECT id, user_id, item_id, summary, suggested_replies, created_at
        FROM enrichments
        WHERE item_id = $1
    `
	var e model.Enrichment
	err := r.db.QueryRow(ctx, query, itemID).Scan(
		&e.ID, &e.UserID, &e.ItemID, &e.Summary, &e.SuggestedReplies, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
