package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"inboxpilot/internal/model"
	"inboxpilot/internal/scoring"
)

type fakeItems struct {
	items      map[int]*model.Item
	categories map[int]string
	labels     map[int]string
	archived   map[int]bool
}

func newFakeItems() *fakeItems {
	return &fakeItems{
		items:      make(map[int]*model.Item),
		categories: make(map[int]string),
		labels:     make(map[int]string),
		archived:   make(map[int]bool),
	}
}

func (f *fakeItems) FindByID(ctx context.Context, id int) (*model.Item, error) {
	it, ok := f.items[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	return it, nil
}

func (f *fakeItems) SetCategory(ctx context.Context, id int, category string) error {
	f.categories[id] = category
	return nil
}

func (f *fakeItems) SetLabel(ctx context.Context, id int, label string) error {
	f.labels[id] = label
	return nil
}

func (f *fakeItems) SetArchived(ctx context.Context, id int, archived bool) error {
	f.archived[id] = archived
	return nil
}

type fakeScores struct {
	upserted []*model.Score
	byItem   map[int]*model.Score
	boosted  float64
	tiers    map[int]model.Tier
}

func newFakeScores() *fakeScores {
	return &fakeScores{
		byItem: make(map[int]*model.Score),
		tiers:  make(map[int]model.Tier),
	}
}

func (f *fakeScores) Upsert(ctx context.Context, s *model.Score) error {
	f.upserted = append(f.upserted, s)
	f.byItem[s.ItemID] = s
	return nil
}

func (f *fakeScores) FindByItem(ctx context.Context, userID, itemID int) (*model.Score, error) {
	s, ok := f.byItem[itemID]
	if !ok {
		return nil, errors.New("no rows")
	}
	return s, nil
}

func (f *fakeScores) ApplyBoost(ctx context.Context, userID, itemID int, delta, min, max float64) (float64, error) {
	s := f.byItem[itemID]
	s.FinalScore += delta
	if s.FinalScore > max {
		s.FinalScore = max
	}
	if s.FinalScore < min {
		s.FinalScore = min
	}
	f.boosted = s.FinalScore
	return s.FinalScore, nil
}

func (f *fakeScores) SetTier(ctx context.Context, userID, itemID int, tier model.Tier) error {
	f.tiers[itemID] = tier
	return nil
}

type fakeRuleStore struct {
	executions map[int]int
	failNext   bool
}

func (f *fakeRuleStore) IncrementExecution(ctx context.Context, id int) error {
	if f.failNext {
		return errors.New("connection reset")
	}
	if f.executions == nil {
		f.executions = make(map[int]int)
	}
	f.executions[id]++
	return nil
}

type fakeSenders struct {
	weights map[string]float64
	vips    map[string]float64
}

func (f *fakeSenders) UserScoringContext(ctx context.Context, userID int) (map[string]float64, map[string]float64, error) {
	return f.weights, f.vips, nil
}

type fakeEnrichments struct {
	stored []*model.Enrichment
}

func (f *fakeEnrichments) Upsert(ctx context.Context, e *model.Enrichment) error {
	f.stored = append(f.stored, e)
	return nil
}

type fakeEnricher struct {
	summary string
	replies []string
	err     error
	calls   int
}

func (f *fakeEnricher) Summarize(ctx context.Context, text string) (string, error) {
	f.calls++
	return f.summary, f.err
}

func (f *fakeEnricher) SuggestReplies(ctx context.Context, content string) ([]string, error) {
	return f.replies, f.err
}

type fakeDigestBuilder struct {
	shouldGenerate bool
	built          []model.WindowType
}

func (f *fakeDigestBuilder) ShouldGenerate(ctx context.Context, userID int, wt model.WindowType, now time.Time) (bool, error) {
	return f.shouldGenerate, nil
}

func (f *fakeDigestBuilder) Build(ctx context.Context, userID int, wt model.WindowType, now time.Time) (*model.Digest, error) {
	f.built = append(f.built, wt)
	return &model.Digest{UserID: userID, WindowType: wt}, nil
}

type capturePublisher struct {
	keys []string
}

func (c *capturePublisher) PublishWithContext(ctx context.Context, routingKey string, payload any) error {
	c.keys = append(c.keys, routingKey)
	return nil
}

func testHandlers(t *testing.T, items *fakeItems, scores *fakeScores, ruleStore *fakeRuleStore, builder *fakeDigestBuilder, enricher *fakeEnricher, enrichments *fakeEnrichments, pub *capturePublisher) *Handlers {
	t.Helper()
	classifier, err := scoring.NewClassifier(70, 40)
	require.NoError(t, err)
	return NewHandlers(HandlerDeps{
		Items:       items,
		Scores:      scores,
		Rules:       ruleStore,
		Senders:     &fakeSenders{},
		Enrichments: enrichments,
		Enricher:    enricher,
		Builder:     builder,
		Publisher:   pub,
		Engine:      scoring.NewEngine(0, 100, 50),
		Classifier:  classifier,
		ScoreMin:    0,
		ScoreMax:    100,
		Logger:      zap.NewNop(),
	})
}

func ruleActionJob(t *testing.T, actionType model.RuleActionType, actionConfig string) *model.Job {
	t.Helper()
	payload, err := json.Marshal(model.RuleActionJobPayload{
		RuleID:       5,
		RuleName:     "r",
		ItemID:       10,
		ActionType:   actionType,
		ActionConfig: json.RawMessage(actionConfig),
	})
	require.NoError(t, err)
	return &model.Job{ID: "j1", Type: model.JobRuleAction, UserID: 1, Payload: payload}
}

func TestHandleRuleActionLabelIncrementsOnce(t *testing.T) {
	items := newFakeItems()
	ruleStore := &fakeRuleStore{}
	h := testHandlers(t, items, newFakeScores(), ruleStore, &fakeDigestBuilder{}, &fakeEnricher{}, &fakeEnrichments{}, &capturePublisher{})

	job := ruleActionJob(t, model.ActionLabel, `{"label":"priority"}`)
	require.NoError(t, h.HandleRuleAction(context.Background(), job))

	assert.Equal(t, "priority", items.labels[10])
	assert.Equal(t, 1, ruleStore.executions[5])
}

func TestHandleRuleActionNoIncrementOnFailure(t *testing.T) {
	items := newFakeItems()
	ruleStore := &fakeRuleStore{}
	h := testHandlers(t, items, newFakeScores(), ruleStore, &fakeDigestBuilder{}, &fakeEnricher{}, &fakeEnrichments{}, &capturePublisher{})

	// malformed action config fails before any side effect
	job := ruleActionJob(t, model.ActionLabel, `{"label":""}`)
	assert.Error(t, h.HandleRuleAction(context.Background(), job))
	assert.Zero(t, ruleStore.executions[5])
}

func TestHandleRuleActionForwardAndNotifyPublish(t *testing.T) {
	pub := &capturePublisher{}
	ruleStore := &fakeRuleStore{}
	h := testHandlers(t, newFakeItems(), newFakeScores(), ruleStore, &fakeDigestBuilder{}, &fakeEnricher{}, &fakeEnrichments{}, pub)

	require.NoError(t, h.HandleRuleAction(context.Background(),
		ruleActionJob(t, model.ActionForward, `{"to":"team@example.com"}`)))
	require.NoError(t, h.HandleRuleAction(context.Background(),
		ruleActionJob(t, model.ActionNotify, `{"channel":"PUSH","message":"hi"}`)))

	assert.Equal(t, []string{"rule.forward", "rule.notify"}, pub.keys)
	assert.Equal(t, 2, ruleStore.executions[5])
}

func TestHandleRuleActionBoostReclassifies(t *testing.T) {
	items := newFakeItems()
	scores := newFakeScores()
	scores.byItem[10] = &model.Score{UserID: 1, ItemID: 10, FinalScore: 65, Tier: model.TierMedium}
	h := testHandlers(t, items, scores, &fakeRuleStore{}, &fakeDigestBuilder{}, &fakeEnricher{}, &fakeEnrichments{}, &capturePublisher{})

	job := ruleActionJob(t, model.ActionBoostScore, `{"delta":10}`)
	require.NoError(t, h.HandleRuleAction(context.Background(), job))

	assert.Equal(t, 75.0, scores.boosted)
	assert.Equal(t, model.TierHigh, scores.tiers[10])
	assert.Equal(t, model.CategoryNow, items.categories[10])
}

func TestHandleScoreStoresScoreAndCategory(t *testing.T) {
	items := newFakeItems()
	items.items[7] = &model.Item{
		ID: 7, UserID: 1, Source: model.SourceMail,
		Sender: "a@example.com", Title: "urgent deadline", Body: "asap",
		ReceivedAt: time.Now(),
	}
	scores := newFakeScores()
	pub := &capturePublisher{}
	h := testHandlers(t, items, scores, &fakeRuleStore{}, &fakeDigestBuilder{}, &fakeEnricher{}, &fakeEnrichments{}, pub)

	payload, _ := json.Marshal(model.ScoreJobPayload{ItemID: 7})
	job := &model.Job{ID: "s1", Type: model.JobScore, UserID: 1, Payload: payload}
	require.NoError(t, h.HandleScore(context.Background(), job))

	require.Len(t, scores.upserted, 1)
	assert.NotEmpty(t, scores.upserted[0].Tier)
	assert.NotEmpty(t, items.categories[7])
	assert.Equal(t, []string{"item.scored"}, pub.keys)
}

func TestHandleEnrichSkipsIneligibleTier(t *testing.T) {
	items := newFakeItems()
	items.items[3] = &model.Item{ID: 3, UserID: 1, Title: "x", Body: "y"}
	scores := newFakeScores()
	scores.byItem[3] = &model.Score{UserID: 1, ItemID: 3, Tier: model.TierLow}
	enricher := &fakeEnricher{}
	h := testHandlers(t, items, scores, &fakeRuleStore{}, &fakeDigestBuilder{}, enricher, &fakeEnrichments{}, &capturePublisher{})

	payload, _ := json.Marshal(model.EnrichJobPayload{ItemID: 3})
	job := &model.Job{ID: "e1", Type: model.JobEnrich, UserID: 1, Payload: payload}

	require.NoError(t, h.HandleEnrich(context.Background(), job))
	assert.Zero(t, enricher.calls)
}

func TestHandleEnrichStoresEnrichment(t *testing.T) {
	items := newFakeItems()
	items.items[3] = &model.Item{ID: 3, UserID: 1, Title: "meeting", Body: "tomorrow?"}
	scores := newFakeScores()
	scores.byItem[3] = &model.Score{UserID: 1, ItemID: 3, Tier: model.TierHigh}
	enricher := &fakeEnricher{summary: "a meeting", replies: []string{"sure", "can't"}}
	enrichments := &fakeEnrichments{}
	h := testHandlers(t, items, scores, &fakeRuleStore{}, &fakeDigestBuilder{}, enricher, enrichments, &capturePublisher{})

	payload, _ := json.Marshal(model.EnrichJobPayload{ItemID: 3})
	job := &model.Job{ID: "e2", Type: model.JobEnrich, UserID: 1, Payload: payload}

	require.NoError(t, h.HandleEnrich(context.Background(), job))
	require.Len(t, enrichments.stored, 1)
	assert.Equal(t, "a meeting", enrichments.stored[0].Summary)
	assert.Equal(t, []string{"sure", "can't"}, enrichments.stored[0].SuggestedReplies)
}

func TestHandleDigestRespectsShouldGenerate(t *testing.T) {
	builder := &fakeDigestBuilder{shouldGenerate: false}
	h := testHandlers(t, newFakeItems(), newFakeScores(), &fakeRuleStore{}, builder, &fakeEnricher{}, &fakeEnrichments{}, &capturePublisher{})

	payload, _ := json.Marshal(model.DigestJobPayload{WindowType: "morning"})
	job := &model.Job{ID: "d1", Type: model.JobDigest, UserID: 1, Payload: payload}

	require.NoError(t, h.HandleDigest(context.Background(), job))
	assert.Empty(t, builder.built)

	builder.shouldGenerate = true
	require.NoError(t, h.HandleDigest(context.Background(), job))
	assert.Equal(t, []model.WindowType{model.WindowMorning}, builder.built)
}
