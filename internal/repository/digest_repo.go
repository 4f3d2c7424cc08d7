package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"inboxpilot/internal/model"
)

type DigestRepository struct {
	db *pgxpool.Pool
}

func NewDigestRepository(db *pgxpool.Pool) *DigestRepository {
	return &DigestRepository{db: db}
}

// Upsert stores a digest snapshot keyed by (user_id, window_type,
// window_key). Regeneration overwrites the same row; duplicate rows
// cannot exist.
func (r *DigestRepository) Upsert(ctx context.Context, d *model.Digest) error {
	buckets, err := json.Marshal(d.Buckets)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO digests (user_id, window_type, window_key, buckets, generated_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (user_id, window_type, window_key) DO UPDATE SET
            buckets = EXCLUDED.buckets,
            generated_at = EXCLUDED.generated_at
        RETURNING id
    `
	return r.db.QueryRow(ctx, query,
		d.UserID, d.WindowType, d.WindowKey, buckets, d.GeneratedAt,
	).Scan(&d.ID)
}

// Exists reports whether a digest has already been generated for the key.
func (r *DigestRepository) Exists(ctx context.Context, userID int, windowType model.WindowType, windowKey string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM digests
            WHERE user_id = $1 AND window_type = $2 AND window_key = $3
        )
    `, userID, windowType, windowKey).Scan(&exists)
	return exists, err
}

// FindByKey loads one digest snapshot.
func (r *DigestRepository) FindByKey(ctx context.Context, userID int, windowType model.WindowType, windowKey string) (*model.Digest, error) {
	query := `
        SELECT id, user_id, window_type, window_key, buckets, generated_at
        FROM digests
        WHERE user_id = $1 AND window_type = $2 AND window_key = $3
    `
	var d model.Digest
	var buckets []byte
	err := r.db.QueryRow(ctx, query, userID, windowType, windowKey).Scan(
		&d.ID, &d.UserID, &d.WindowType, &d.WindowKey, &buckets, &d.GeneratedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(buckets, &d.Buckets); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListByUser returns recent digests, newest first.
func (r *DigestRepository) ListByUser(ctx context.Context, userID int, limit int) ([]model.Digest, error) {
	query := `
        SELECT id, user_id, window_type, window_key, buckets, generated_at
        FROM digests
        WHERE user_id = $1
        ORDER BY generated_at DESC
        LIMIT $2
    `
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var digests []model.Digest
	for rows.Next() {
		var d model.Digest
		var buckets []byte
		err := rows.Scan(&d.ID, &d.UserID, &d.WindowType, &d.WindowKey, &buckets, &d.GeneratedAt)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(buckets, &d.Buckets); err != nil {
			return nil, err
		}
		digests = append(digests, d)
	}
	return digests, rows.Err()
}
