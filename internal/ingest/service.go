package ingest

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"go.uber.org/zap"

	contracts "inboxpilot/contracts/mq"
	"inboxpilot/internal/model"
	"inboxpilot/internal/rules"
	"inboxpilot/internal/scoring"
	"inboxpilot/pkg/metrics"
)

type ItemStore interface {
	Upsert(ctx context.Context, it *model.Item) error
	SetCategory(ctx context.Context, id int, category string) error
}

type ScoreStore interface {
	Upsert(ctx context.Context, s *model.Score) error
}

type SenderStore interface {
	UserScoringContext(ctx context.Context, userID int) (map[string]float64, map[string]float64, error)
}

type RuleStore interface {
	ListEnabledByUser(ctx context.Context, userID int) ([]model.AutomationRule, error)
}

// JobEnqueuer is the pool surface the ingestion path needs: deferred
// work only, never execution.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, jobType model.JobType, userID int, payload any, runAt time.Time) (*model.Job, error)
}

type EventPublisher interface {
	PublishWithContext(ctx context.Context, routingKey string, payload any) error
}

// Deduper is the delivery-marker surface the pipeline uses. Satisfied
// by util.Deduper.
type Deduper interface {
	Seen(ctx context.Context, scope, key string) bool
	AcquireOnce(ctx context.Context, scope, key string) bool
}

// PassResult counts one ingestion-and-score pass.
type PassResult struct {
	High    int `json:"high"`
	Medium  int `json:"medium"`
	Low     int `json:"low"`
	Skipped int `json:"skipped"`
}

func (r PassResult) Total() int {
	return r.High + r.Medium + r.Low
}

// Service runs the synchronous part of the pipeline: fetch, score,
// tier, select rules. Everything expensive or side-effecting beyond
// the store writes is deferred to jobs.
type Service struct {
	adapters   []SourceAdapter
	items      ItemStore
	scores     ScoreStore
	senders    SenderStore
	ruleStore  RuleStore
	ruleEngine *rules.Engine
	engine     *scoring.Engine
	classifier *scoring.Classifier
	jobs       JobEnqueuer
	publisher  EventPublisher
	deduper    Deduper
	logger     *zap.Logger
}

type ServiceDeps struct {
	Adapters   []SourceAdapter
	Items      ItemStore
	Scores     ScoreStore
	Senders    SenderStore
	RuleStore  RuleStore
	RuleEngine *rules.Engine
	Engine     *scoring.Engine
	Classifier *scoring.Classifier
	Jobs       JobEnqueuer
	Publisher  EventPublisher
	Deduper    Deduper
	Logger     *zap.Logger
}

func NewService(deps ServiceDeps) *Service {
	return &Service{
		adapters:   deps.Adapters,
		items:      deps.Items,
		scores:     deps.Scores,
		senders:    deps.Senders,
		ruleStore:  deps.RuleStore,
		ruleEngine: deps.RuleEngine,
		engine:     deps.Engine,
		classifier: deps.Classifier,
		jobs:       deps.Jobs,
		publisher:  deps.Publisher,
		deduper:    deps.Deduper,
		logger:     deps.Logger,
	}
}

// RunPass ingests and scores everything the adapters return for one
// user. Each item is isolated: a failure is logged and counted as
// skipped, never aborts the pass.
func (s *Service) RunPass(ctx context.Context, userID int, window time.Duration) (PassResult, error) {
	weights, vips, err := s.senders.UserScoringContext(ctx, userID)
	if err != nil {
		return PassResult{}, fmt.Errorf("failed to load scoring context: %w", err)
	}
	uc := scoring.UserContext{SenderWeights: weights, VIPBoosts: vips}

	ruleSet, err := s.ruleStore.ListEnabledByUser(ctx, userID)
	if err != nil {
		return PassResult{}, fmt.Errorf("failed to load rules: %w", err)
	}

	var result PassResult
	for _, adapter := range s.adapters {
		raws, err := adapter.FetchRecent(ctx, userID, window)
		if err != nil {
			s.logger.Warn("source fetch failed, continuing pass",
				zap.String("source", string(adapter.Source())),
				zap.Int("user_id", userID),
				zap.Error(err))
			continue
		}

		for _, raw := range raws {
			tier, err := s.processItem(ctx, userID, adapter.Source(), raw, uc, ruleSet)
			if err != nil {
				s.logger.Warn("item processing failed, skipping",
					zap.String("source", string(adapter.Source())),
					zap.String("external_id", raw.ExternalID),
					zap.Error(err))
				result.Skipped++
				continue
			}
			switch tier {
			case model.TierHigh:
				result.High++
			case model.TierMedium:
				result.Medium++
			case model.TierLow:
				result.Low++
			}
		}
	}

	s.logger.Info("ingestion pass complete",
		zap.Int("user_id", userID),
		zap.Int("high", result.High),
		zap.Int("medium", result.Medium),
		zap.Int("low", result.Low),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

func (s *Service) processItem(ctx context.Context, userID int, source model.Source, raw RawItem, uc scoring.UserContext, ruleSet []model.AutomationRule) (model.Tier, error) {
	if raw.ExternalID == "" {
		return "", fmt.Errorf("item has no external id")
	}
	dedupKey := deliveryKey(userID, source, raw)
	if s.deduper != nil && s.deduper.Seen(ctx, "ingest", dedupKey) {
		return "", fmt.Errorf("duplicate delivery")
	}

	item := &model.Item{
		UserID:     userID,
		Source:     source,
		ExternalID: raw.ExternalID,
		Sender:     raw.Sender,
		Title:      raw.Title,
		Body:       raw.Body,
		OccursAt:   raw.OccursAt,
		ReceivedAt: raw.ReceivedAt,
	}
	if err := s.items.Upsert(ctx, item); err != nil {
		return "", fmt.Errorf("failed to upsert item: %w", err)
	}

	now := time.Now()
	score := s.engine.Score(item, uc, now)
	score.UserID = userID
	score.ItemID = item.ID
	score.Tier = s.classifier.Classify(score.FinalScore)
	score.ScoredAt = now

	if err := s.scores.Upsert(ctx, score); err != nil {
		return "", fmt.Errorf("failed to store score: %w", err)
	}
	if err := s.items.SetCategory(ctx, item.ID, scoring.CategoryFor(score.Tier)); err != nil {
		return "", fmt.Errorf("failed to set category: %w", err)
	}
	metrics.RecordItemScored(string(source), string(score.Tier))

	if score.Tier.EnrichmentEligible() {
		_, err := s.jobs.Enqueue(ctx, model.JobEnrich, userID, model.EnrichJobPayload{ItemID: item.ID}, now)
		if err != nil {
			s.logger.Warn("failed to enqueue enrich job",
				zap.Int("item_id", item.ID), zap.Error(err))
		}
	}

	for _, matched := range s.ruleEngine.Evaluate(item, score, ruleSet) {
		_, err := s.jobs.Enqueue(ctx, model.JobRuleAction, userID, model.RuleActionJobPayload{
			RuleID:       matched.RuleID,
			RuleName:     matched.RuleName,
			ItemID:       matched.ItemID,
			ActionType:   matched.ActionType,
			ActionConfig: matched.ActionConfig,
		}, now)
		if err != nil {
			s.logger.Warn("failed to enqueue rule action",
				zap.Int("rule_id", matched.RuleID),
				zap.Int("item_id", item.ID),
				zap.Error(err))
		}
	}

	if s.publisher != nil {
		_ = s.publisher.PublishWithContext(ctx, contracts.RoutingKeyItemScored, contracts.ItemScoredPayload{
			ItemID:     item.ID,
			UserID:     userID,
			Source:     string(source),
			Tier:       string(score.Tier),
			FinalScore: score.FinalScore,
			ScoredAt:   now,
		})
	}

	// Mark the delivery only once the item is durably processed, so a
	// failed pass stays retryable on the next fetch.
	if s.deduper != nil {
		s.deduper.AcquireOnce(ctx, "ingest", dedupKey)
	}
	return score.Tier, nil
}

// deliveryKey identifies one provider delivery by identity plus a
// content fingerprint: a re-delivery carrying changed content is an
// update, not a duplicate, and must reach the upsert.
func deliveryKey(userID int, source model.Source, raw RawItem) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s|%d", raw.Sender, raw.Title, raw.Body, raw.ReceivedAt.UnixNano())
	if raw.OccursAt != nil {
		fmt.Fprintf(h, "|%d", raw.OccursAt.UnixNano())
	}
	return fmt.Sprintf("%d:%s:%s:%x", userID, source, raw.ExternalID, h.Sum64())
}
