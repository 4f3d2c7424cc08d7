package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"inboxpilot/internal/model"
)

type ItemRepository struct {
	db *pgxpool.Pool
}

func NewItemRepository(db *pgxpool.Pool) *ItemRepository {
	return &ItemRepository{db: db}
}

// Upsert inserts or updates an item keyed by (user_id, source,
// external_id). Re-ingestion of the same provider item updates the
// stored copy and never duplicates it.
func (r *ItemRepository) Upsert(ctx context.Context, it *model.Item) error {
	query := `
        INSERT INTO items (user_id, source, external_id, sender, title, body, occurs_at, received_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
        ON CONFLICT (user_id, source, external_id) DO UPDATE SET
            sender = EXCLUDED.sender,
            title = EXCLUDED.title,
            body = EXCLUDED.body,
            occurs_at = EXCLUDED.occurs_at,
            received_at = EXCLUDED.received_at
        RETURNING id, created_at
    `
	return r.db.QueryRow(ctx, query,
		it.UserID, it.Source, it.ExternalID, it.Sender, it.Title, it.Body, it.OccursAt, it.ReceivedAt,
	).Scan(&it.ID, &it.CreatedAt)
}

// FindByID returns one item.
func (r *ItemRepository) FindByID(ctx context.Context, id int) (*model.Item, error) {
	query := `
        SELECT id, user_id, source, external_id, sender, title, body,
               COALESCE(category, ''), COALESCE(label, ''), archived, read,
               occurs_at, received_at, created_at
        FROM items
        WHERE id = $1
    `
	var it model.Item
	err := r.db.QueryRow(ctx, query, id).Scan(
		&it.ID, &it.UserID, &it.Source, &it.ExternalID, &it.Sender, &it.Title, &it.Body,
		&it.Category, &it.Label, &it.Archived, &it.Read,
		&it.OccursAt, &it.ReceivedAt, &it.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// FindByExternal resolves an item by its provider identity. Used by
// weekly digest bulk actions, which must act on current state rather
// than the digest snapshot.
func (r *ItemRepository) FindByExternal(ctx context.Context, userID int, source model.Source, externalID string) (*model.Item, error) {
	query := `
        SELECT id, user_id, source, external_id, sender, title, body,
               COALESCE(category, ''), COALESCE(label, ''), archived, read,
               occurs_at, received_at, created_at
        FROM items
        WHERE user_id = $1 AND source = $2 AND external_id = $3
    `
	var it model.Item
	err := r.db.QueryRow(ctx, query, userID, source, externalID).Scan(
		&it.ID, &it.UserID, &it.Source, &it.ExternalID, &it.Sender, &it.Title, &it.Body,
		&it.Category, &it.Label, &it.Archived, &it.Read,
		&it.OccursAt, &it.ReceivedAt, &it.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// SetCategory sets the semantic bucket derived from the tier.
func (r *ItemRepository) SetCategory(ctx context.Context, id int, category string) error {
	_, err := r.db.Exec(ctx, `UPDATE items SET category = $1 WHERE id = $2`, category, id)
	return err
}

// SetLabel applies a label rule action.
func (r *ItemRepository) SetLabel(ctx context.Context, id int, label string) error {
	_, err := r.db.Exec(ctx, `UPDATE items SET label = $1 WHERE id = $2`, label, id)
	return err
}

// SetArchived archives or unarchives an item.
func (r *ItemRepository) SetArchived(ctx context.Context, id int, archived bool) error {
	_, err := r.db.Exec(ctx, `UPDATE items SET archived = $1 WHERE id = $2`, archived, id)
	return err
}

// SetRead marks an item read or unread.
func (r *ItemRepository) SetRead(ctx context.Context, id int, read bool) error {
	_, err := r.db.Exec(ctx, `UPDATE items SET read = $1 WHERE id = $2`, read, id)
	return err
}

// ScoredItem is an item joined with its active score.
type ScoredItem struct {
	Item       model.Item
	FinalScore float64
	Tier       model.Tier
}

const scoredItemColumns = `
            i.id, i.user_id, i.source, i.external_id, i.sender, i.title, i.body,
            COALESCE(i.category, ''), COALESCE(i.label, ''), i.archived, i.read,
            i.occurs_at, i.received_at, i.created_at,
            s.final_score, s.tier`

func scanScoredItems(rows pgx.Rows) ([]ScoredItem, error) {
	var out []ScoredItem
	for rows.Next() {
		var si ScoredItem
		err := rows.Scan(
			&si.Item.ID, &si.Item.UserID, &si.Item.Source, &si.Item.ExternalID,
			&si.Item.Sender, &si.Item.Title, &si.Item.Body,
			&si.Item.Category, &si.Item.Label, &si.Item.Archived, &si.Item.Read,
			&si.Item.OccursAt, &si.Item.ReceivedAt, &si.Item.CreatedAt,
			&si.FinalScore, &si.Tier,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, si)
	}
	return out, rows.Err()
}

// ListScoredInRange returns scored, unarchived items received inside
// [from, to), ordered by final score descending. Daily digests read
// from here.
func (r *ItemRepository) ListScoredInRange(ctx context.Context, userID int, from, to time.Time) ([]ScoredItem, error) {
	query := `
        SELECT` + scoredItemColumns + `
        FROM items i
        JOIN scores s ON s.item_id = i.id AND s.user_id = i.user_id
        WHERE i.user_id = $1
          AND i.received_at >= $2 AND i.received_at < $3
          AND NOT i.archived
        ORDER BY s.final_score DESC, i.id ASC
    `
	rows, err := r.db.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanScoredItems(rows)
}

// ListLowTierInRange returns low tier items received inside [from, to),
// for the weekly bulk digest.
func (r *ItemRepository) ListLowTierInRange(ctx context.Context, userID int, from, to time.Time) ([]ScoredItem, error) {
	query := `
        SELECT` + scoredItemColumns + `
        FROM items i
        JOIN scores s ON s.item_id = i.id AND s.user_id = i.user_id
        WHERE i.user_id = $1
          AND i.received_at >= $2 AND i.received_at < $3
          AND s.tier = 'low'
          AND NOT i.archived
        ORDER BY i.received_at ASC, i.id ASC
    `
	rows, err := r.db.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanScoredItems(rows)
}
