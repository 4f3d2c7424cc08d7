package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	contracts "inboxpilot/contracts/mq"
	"inboxpilot/internal/model"
	"inboxpilot/internal/rules"
	"inboxpilot/internal/scoring"
	"inboxpilot/pkg/metrics"
)

// Stores and collaborators the handlers touch, narrowed to what each
// handler actually calls so tests can fake them.

type ItemStore interface {
	FindByID(ctx context.Context, id int) (*model.Item, error)
	SetCategory(ctx context.Context, id int, category string) error
	SetLabel(ctx context.Context, id int, label string) error
	SetArchived(ctx context.Context, id int, archived bool) error
}

type ScoreStore interface {
	Upsert(ctx context.Context, s *model.Score) error
	FindByItem(ctx context.Context, userID, itemID int) (*model.Score, error)
	ApplyBoost(ctx context.Context, userID, itemID int, delta, min, max float64) (float64, error)
	SetTier(ctx context.Context, userID, itemID int, tier model.Tier) error
}

type RuleStore interface {
	IncrementExecution(ctx context.Context, id int) error
}

type SenderStore interface {
	UserScoringContext(ctx context.Context, userID int) (map[string]float64, map[string]float64, error)
}

type EnrichmentStore interface {
	Upsert(ctx context.Context, e *model.Enrichment) error
}

type Enricher interface {
	Summarize(ctx context.Context, text string) (string, error)
	SuggestReplies(ctx context.Context, content string) ([]string, error)
}

type DigestBuilder interface {
	ShouldGenerate(ctx context.Context, userID int, windowType model.WindowType, now time.Time) (bool, error)
	Build(ctx context.Context, userID int, windowType model.WindowType, now time.Time) (*model.Digest, error)
}

type EventPublisher interface {
	PublishWithContext(ctx context.Context, routingKey string, payload any) error
}

// Handlers wires the job types to the pipeline components.
type Handlers struct {
	items       ItemStore
	scores      ScoreStore
	rules       RuleStore
	senders     SenderStore
	enrichments EnrichmentStore
	enricher    Enricher
	builder     DigestBuilder
	publisher   EventPublisher
	engine      *scoring.Engine
	classifier  *scoring.Classifier
	scoreMin    float64
	scoreMax    float64
	logger      *zap.Logger
}

type HandlerDeps struct {
	Items       ItemStore
	Scores      ScoreStore
	Rules       RuleStore
	Senders     SenderStore
	Enrichments EnrichmentStore
	Enricher    Enricher
	Builder     DigestBuilder
	Publisher   EventPublisher
	Engine      *scoring.Engine
	Classifier  *scoring.Classifier
	ScoreMin    float64
	ScoreMax    float64
	Logger      *zap.Logger
}

func NewHandlers(deps HandlerDeps) *Handlers {
	return &Handlers{
		items:       deps.Items,
		scores:      deps.Scores,
		rules:       deps.Rules,
		senders:     deps.Senders,
		enrichments: deps.Enrichments,
		enricher:    deps.Enricher,
		builder:     deps.Builder,
		publisher:   deps.Publisher,
		engine:      deps.Engine,
		classifier:  deps.Classifier,
		scoreMin:    deps.ScoreMin,
		scoreMax:    deps.ScoreMax,
		logger:      deps.Logger,
	}
}

// RegisterAll binds every job type on the pool.
func (h *Handlers) RegisterAll(pool *Pool) {
	pool.Register(model.JobScore, h.HandleScore)
	pool.Register(model.JobEnrich, h.HandleEnrich)
	pool.Register(model.JobDigest, h.HandleDigest)
	pool.Register(model.JobRuleAction, h.HandleRuleAction)
}

// HandleScore re-scores one item with the user's current adjustments.
func (h *Handlers) HandleScore(ctx context.Context, job *model.Job) error {
	var payload model.ScoreJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("invalid score payload: %w", err)
	}

	item, err := h.items.FindByID(ctx, payload.ItemID)
	if err != nil {
		return fmt.Errorf("failed to load item %d: %w", payload.ItemID, err)
	}

	weights, vips, err := h.senders.UserScoringContext(ctx, item.UserID)
	if err != nil {
		return fmt.Errorf("failed to load scoring context: %w", err)
	}

	now := time.Now()
	score := h.engine.Score(item, scoring.UserContext{
		SenderWeights: weights,
		VIPBoosts:     vips,
	}, now)
	score.UserID = item.UserID
	score.ItemID = item.ID
	score.Tier = h.classifier.Classify(score.FinalScore)
	score.ScoredAt = now

	if err := h.scores.Upsert(ctx, score); err != nil {
		return fmt.Errorf("failed to store score: %w", err)
	}
	if err := h.items.SetCategory(ctx, item.ID, scoring.CategoryFor(score.Tier)); err != nil {
		return fmt.Errorf("failed to set category: %w", err)
	}

	metrics.RecordItemScored(string(item.Source), string(score.Tier))
	if h.publisher != nil {
		_ = h.publisher.PublishWithContext(ctx, contracts.RoutingKeyItemScored, contracts.ItemScoredPayload{
			ItemID:     item.ID,
			UserID:     item.UserID,
			Source:     string(item.Source),
			Tier:       string(score.Tier),
			FinalScore: score.FinalScore,
			ScoredAt:   now,
		})
	}
	return nil
}

// HandleEnrich calls the completion service for a high or medium tier
// item. An item whose tier dropped below eligibility since the job was
// queued is skipped, not failed.
func (h *Handlers) HandleEnrich(ctx context.Context, job *model.Job) error {
	var payload model.EnrichJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("invalid enrich payload: %w", err)
	}

	item, err := h.items.FindByID(ctx, payload.ItemID)
	if err != nil {
		return fmt.Errorf("failed to load item %d: %w", payload.ItemID, err)
	}
	score, err := h.scores.FindByItem(ctx, item.UserID, item.ID)
	if err != nil {
		return fmt.Errorf("failed to load score for item %d: %w", item.ID, err)
	}
	if !score.Tier.EnrichmentEligible() {
		h.logger.Info("skipping enrichment, tier no longer eligible",
			zap.Int("item_id", item.ID),
			zap.String("tier", string(score.Tier)))
		return nil
	}

	text := item.Title + "\n" + item.Body
	summary, err := h.enricher.Summarize(ctx, text)
	if err != nil {
		return err
	}
	replies, err := h.enricher.SuggestReplies(ctx, text)
	if err != nil {
		return err
	}

	return h.enrichments.Upsert(ctx, &model.Enrichment{
		UserID:           item.UserID,
		ItemID:           item.ID,
		Summary:          summary,
		SuggestedReplies: replies,
	})
}

// HandleDigest builds the digest window named in the payload for the
// job's user, once per window.
func (h *Handlers) HandleDigest(ctx context.Context, job *model.Job) error {
	var payload model.DigestJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("invalid digest payload: %w", err)
	}

	windowType := model.WindowType(payload.WindowType)
	now := time.Now()
	ok, err := h.builder.ShouldGenerate(ctx, job.UserID, windowType, now)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	_, err = h.builder.Build(ctx, job.UserID, windowType, now)
	return err
}

// HandleRuleAction executes one matched rule action. The rule's
// execution count is only incremented after the action succeeds, so a
// retried job counts once.
func (h *Handlers) HandleRuleAction(ctx context.Context, job *model.Job) error {
	var payload model.RuleActionJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("invalid rule_action payload: %w", err)
	}

	if err := h.executeAction(ctx, job.UserID, payload); err != nil {
		return err
	}
	if err := h.rules.IncrementExecution(ctx, payload.RuleID); err != nil {
		return fmt.Errorf("failed to record rule execution: %w", err)
	}
	return nil
}

func (h *Handlers) executeAction(ctx context.Context, userID int, payload model.RuleActionJobPayload) error {
	cfg, err := rules.ParseAction(payload.ActionType, payload.ActionConfig)
	if err != nil {
		return err
	}

	switch payload.ActionType {
	case model.ActionLabel:
		return h.items.SetLabel(ctx, payload.ItemID, cfg.(*rules.LabelAction).Label)
	case model.ActionArchive:
		return h.items.SetArchived(ctx, payload.ItemID, true)
	case model.ActionForward:
		return h.publisher.PublishWithContext(ctx, contracts.RoutingKeyRuleForward, contracts.RuleForwardPayload{
			UserID: userID,
			ItemID: payload.ItemID,
			RuleID: payload.RuleID,
			To:     cfg.(*rules.ForwardAction).To,
		})
	case model.ActionNotify:
		notify := cfg.(*rules.NotifyAction)
		return h.publisher.PublishWithContext(ctx, contracts.RoutingKeyRuleNotify, contracts.RuleNotifyPayload{
			UserID:  userID,
			ItemID:  payload.ItemID,
			RuleID:  payload.RuleID,
			Channel: notify.Channel,
			Message: notify.Message,
		})
	case model.ActionBoostScore:
		final, err := h.scores.ApplyBoost(ctx, userID, payload.ItemID,
			cfg.(*rules.BoostScoreAction).Delta, h.scoreMin, h.scoreMax)
		if err != nil {
			return fmt.Errorf("failed to apply boost: %w", err)
		}
		tier := h.classifier.Classify(final)
		if err := h.scores.SetTier(ctx, userID, payload.ItemID, tier); err != nil {
			return err
		}
		return h.items.SetCategory(ctx, payload.ItemID, scoring.CategoryFor(tier))
	default:
		return fmt.Errorf("unknown action type: %s", payload.ActionType)
	}
}
