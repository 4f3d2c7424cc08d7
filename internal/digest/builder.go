package digest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	contracts "inboxpilot/contracts/mq"
	"inboxpilot/internal/model"
	"inboxpilot/internal/repository"
	"inboxpilot/pkg/metrics"
)

// ItemStore is the slice of the item repository the builder needs.
type ItemStore interface {
	ListScoredInRange(ctx context.Context, userID int, from, to time.Time) ([]repository.ScoredItem, error)
	ListLowTierInRange(ctx context.Context, userID int, from, to time.Time) ([]repository.ScoredItem, error)
	FindByExternal(ctx context.Context, userID int, source model.Source, externalID string) (*model.Item, error)
	SetArchived(ctx context.Context, id int, archived bool) error
	SetRead(ctx context.Context, id int, read bool) error
	SetLabel(ctx context.Context, id int, label string) error
}

type DigestStore interface {
	Upsert(ctx context.Context, d *model.Digest) error
	Exists(ctx context.Context, userID int, windowType model.WindowType, windowKey string) (bool, error)
	FindByKey(ctx context.Context, userID int, windowType model.WindowType, windowKey string) (*model.Digest, error)
}

type EventPublisher interface {
	PublishWithContext(ctx context.Context, routingKey string, payload any) error
}

// Deduper is the window-marker surface the builder uses. Satisfied by
// util.Deduper.
type Deduper interface {
	Seen(ctx context.Context, scope, key string) bool
	AcquireOnce(ctx context.Context, scope, key string) bool
}

type Builder struct {
	items     ItemStore
	digests   DigestStore
	deduper   Deduper
	publisher EventPublisher
	logger    *zap.Logger
}

func NewBuilder(items ItemStore, digests DigestStore, deduper Deduper, publisher EventPublisher, logger *zap.Logger) *Builder {
	return &Builder{
		items:     items,
		digests:   digests,
		deduper:   deduper,
		publisher: publisher,
		logger:    logger,
	}
}

// ShouldGenerate reports whether a digest for this window still needs
// building. Manual digests always build. The redis mark is a fast path
// only and is written by Build after the row is stored; the digest row
// is the source of truth, so a failed build leaves the window open for
// the next retry.
func (b *Builder) ShouldGenerate(ctx context.Context, userID int, windowType model.WindowType, now time.Time) (bool, error) {
	if windowType == model.WindowManual {
		return true, nil
	}
	key := WindowKey(windowType, now)
	if b.deduper != nil && b.deduper.Seen(ctx, "digest", windowMark(userID, windowType, key)) {
		return false, nil
	}
	exists, err := b.digests.Exists(ctx, userID, windowType, key)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// Existing returns the digest already stored for this window, if any.
func (b *Builder) Existing(ctx context.Context, userID int, windowType model.WindowType, now time.Time) (*model.Digest, error) {
	return b.digests.FindByKey(ctx, userID, windowType, WindowKey(windowType, now))
}

func windowMark(userID int, windowType model.WindowType, key string) string {
	return fmt.Sprintf("%d:%s:%s", userID, windowType, key)
}

// Build produces and stores the digest snapshot for one user and
// window, and announces it on the exchange.
func (b *Builder) Build(ctx context.Context, userID int, windowType model.WindowType, now time.Time) (*model.Digest, error) {
	var buckets model.DigestBuckets
	var err error
	if windowType == model.WindowWeekly {
		buckets, err = b.weeklyBuckets(ctx, userID, now)
	} else {
		buckets, err = b.dailyBuckets(ctx, userID, windowType, now)
	}
	if err != nil {
		return nil, err
	}

	d := &model.Digest{
		UserID:      userID,
		WindowType:  windowType,
		WindowKey:   WindowKey(windowType, now),
		Buckets:     buckets,
		GeneratedAt: now,
	}
	if err := b.digests.Upsert(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to store digest: %w", err)
	}

	// Mark the window only once the row is durable.
	if b.deduper != nil && windowType != model.WindowManual {
		b.deduper.AcquireOnce(ctx, "digest", windowMark(userID, windowType, d.WindowKey))
	}

	metrics.RecordDigestBuild(string(windowType))
	b.logger.Info("digest generated",
		zap.Int("user_id", userID),
		zap.String("window_type", string(windowType)),
		zap.String("window_key", d.WindowKey),
		zap.Int("item_count", buckets.Count()))

	if b.publisher != nil {
		payload := contracts.DigestGeneratedPayload{
			UserID:      userID,
			WindowType:  string(windowType),
			WindowKey:   d.WindowKey,
			ItemCount:   buckets.Count(),
			GeneratedAt: now,
		}
		if err := b.publisher.PublishWithContext(ctx, contracts.RoutingKeyDigestGenerated, payload); err != nil {
			b.logger.Warn("failed to publish digest.generated", zap.Error(err))
		}
	}
	return d, nil
}

func (b *Builder) dailyBuckets(ctx context.Context, userID int, windowType model.WindowType, now time.Time) (model.DigestBuckets, error) {
	from, to := WindowRange(windowType, now)
	scored, err := b.items.ListScoredInRange(ctx, userID, from, to)
	if err != nil {
		return model.DigestBuckets{}, fmt.Errorf("failed to load scored items: %w", err)
	}

	var buckets model.DigestBuckets
	for _, si := range scored {
		ref := itemRef(si.Item)
		switch si.Item.Category {
		case model.CategoryNow:
			buckets.Now = append(buckets.Now, ref)
		case model.CategoryNext:
			buckets.Next = append(buckets.Next, ref)
		default:
			buckets.Later = append(buckets.Later, ref)
		}
	}
	return buckets, nil
}

func (b *Builder) weeklyBuckets(ctx context.Context, userID int, now time.Time) (model.DigestBuckets, error) {
	from, to := WindowRange(model.WindowWeekly, now)
	lowTier, err := b.items.ListLowTierInRange(ctx, userID, from, to)
	if err != nil {
		return model.DigestBuckets{}, fmt.Errorf("failed to load low tier items: %w", err)
	}

	var buckets model.DigestBuckets
	for _, si := range lowTier {
		ref := itemRef(si.Item)
		switch CategorizeBulk(si.Item.Title, si.Item.Body) {
		case model.BulkMarketing:
			buckets.Marketing = append(buckets.Marketing, ref)
		case model.BulkNewsletters:
			buckets.Newsletters = append(buckets.Newsletters, ref)
		case model.BulkSocial:
			buckets.Social = append(buckets.Social, ref)
		default:
			buckets.Automated = append(buckets.Automated, ref)
		}
	}
	return buckets, nil
}

func itemRef(it model.Item) model.ItemRef {
	return model.ItemRef{
		ItemID:     it.ID,
		Source:     it.Source,
		ExternalID: it.ExternalID,
		Sender:     it.Sender,
		Title:      it.Title,
	}
}
