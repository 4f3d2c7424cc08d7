package digest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"inboxpilot/internal/model"
)

// BulkAction is a weekly-digest action applied to every item of one
// bulk category.
type BulkAction string

const (
	BulkActionArchive     BulkAction = "archive"
	BulkActionMarkRead    BulkAction = "mark_read"
	BulkActionUnsubscribe BulkAction = "unsubscribe_request"
	BulkActionKeep        BulkAction = "keep"
)

func (a BulkAction) Valid() bool {
	switch a {
	case BulkActionArchive, BulkActionMarkRead, BulkActionUnsubscribe, BulkActionKeep:
		return true
	}
	return false
}

// BulkResult reports how many referenced items a bulk action reached.
type BulkResult struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"` // refs no longer resolvable
}

// ApplyBulkAction runs one action over every item of a weekly digest
// category. The digest snapshot only supplies references; each item is
// re-resolved by its provider identity so the action lands on current
// state. Items deleted since the snapshot are counted as skipped.
func (b *Builder) ApplyBulkAction(ctx context.Context, userID int, windowKey, category string, action BulkAction) (BulkResult, error) {
	if !action.Valid() {
		return BulkResult{}, fmt.Errorf("unknown bulk action: %s", action)
	}

	d, err := b.digests.FindByKey(ctx, userID, model.WindowWeekly, windowKey)
	if err != nil {
		return BulkResult{}, fmt.Errorf("weekly digest not found for %s: %w", windowKey, err)
	}

	var refs []model.ItemRef
	switch category {
	case model.BulkMarketing:
		refs = d.Buckets.Marketing
	case model.BulkNewsletters:
		refs = d.Buckets.Newsletters
	case model.BulkSocial:
		refs = d.Buckets.Social
	case model.BulkAutomated:
		refs = d.Buckets.Automated
	default:
		return BulkResult{}, fmt.Errorf("unknown bulk category: %s", category)
	}

	var result BulkResult
	for _, ref := range refs {
		it, err := b.items.FindByExternal(ctx, userID, ref.Source, ref.ExternalID)
		if err != nil {
			result.Skipped++
			continue
		}
		if err := b.applyToItem(ctx, it, action); err != nil {
			b.logger.Warn("bulk action failed for item",
				zap.Int("item_id", it.ID),
				zap.String("action", string(action)),
				zap.Error(err))
			result.Skipped++
			continue
		}
		result.Applied++
	}

	b.logger.Info("bulk digest action applied",
		zap.Int("user_id", userID),
		zap.String("window_key", windowKey),
		zap.String("category", category),
		zap.String("action", string(action)),
		zap.Int("applied", result.Applied),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

func (b *Builder) applyToItem(ctx context.Context, it *model.Item, action BulkAction) error {
	switch action {
	case BulkActionArchive:
		return b.items.SetArchived(ctx, it.ID, true)
	case BulkActionMarkRead:
		return b.items.SetRead(ctx, it.ID, true)
	case BulkActionUnsubscribe:
		// Actual unsubscribe delivery is the mail provider's job; here
		// the item is labeled for the adapter to pick up and archived.
		if err := b.items.SetLabel(ctx, it.ID, "unsubscribe-requested"); err != nil {
			return err
		}
		return b.items.SetArchived(ctx, it.ID, true)
	case BulkActionKeep:
		return b.items.SetRead(ctx, it.ID, false)
	}
	return nil
}
