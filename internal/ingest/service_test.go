package ingest

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
	"inboxpilot/internal/rules"
	"inboxpilot/internal/scoring"
)

type fakeAdapter struct {
	source model.Source
	items  []RawItem
	err    error
}

func (f *fakeAdapter) Source() model.Source { return f.source }

func (f *fakeAdapter) FetchRecent(ctx context.Context, userID int, window time.Duration) ([]RawItem, error) {
	return f.items, f.err
}

type fakeItemStore struct {
	upserts    int
	failOn     string
	categories map[int]string
}

func (f *fakeItemStore) Upsert(ctx context.Context, it *model.Item) error {
	if it.ExternalID == f.failOn {
		return errors.New("insert failed")
	}
	f.upserts++
	it.ID = f.upserts
	return nil
}

func (f *fakeItemStore) SetCategory(ctx context.Context, id int, category string) error {
	if f.categories == nil {
		f.categories = make(map[int]string)
	}
	f.categories[id] = category
	return nil
}

type fakeScoreStore struct {
	scores []*model.Score
}

func (f *fakeScoreStore) Upsert(ctx context.Context, s *model.Score) error {
	f.scores = append(f.scores, s)
	return nil
}

type fakeSenderStore struct {
	weights map[string]float64
	vips    map[string]float64
}

func (f *fakeSenderStore) UserScoringContext(ctx context.Context, userID int) (map[string]float64, map[string]float64, error) {
	return f.weights, f.vips, nil
}

type fakeRuleStore struct {
	rules []model.AutomationRule
}

func (f *fakeRuleStore) ListEnabledByUser(ctx context.Context, userID int) ([]model.AutomationRule, error) {
	return f.rules, nil
}

type enqueuedJob struct {
	jobType model.JobType
	payload any
}

type fakeJobs struct {
	enqueued []enqueuedJob
}

func (f *fakeJobs) Enqueue(ctx context.Context, jobType model.JobType, userID int, payload any, runAt time.Time) (*model.Job, error) {
	f.enqueued = append(f.enqueued, enqueuedJob{jobType: jobType, payload: payload})
	return &model.Job{ID: "x", Type: jobType}, nil
}

func (f *fakeJobs) countByType(jobType model.JobType) int {
	n := 0
	for _, j := range f.enqueued {
		if j.jobType == jobType {
			n++
		}
	}
	return n
}

type fakeDeduper struct {
	marks map[string]bool
}

func newFakeDeduper() *fakeDeduper {
	return &fakeDeduper{marks: make(map[string]bool)}
}

func (f *fakeDeduper) Seen(ctx context.Context, scope, key string) bool {
	return f.marks[scope+":"+key]
}

func (f *fakeDeduper) AcquireOnce(ctx context.Context, scope, key string) bool {
	k := scope + ":" + key
	if f.marks[k] {
		return false
	}
	f.marks[k] = true
	return true
}

type fakePublisher struct {
	keys []string
}

func (f *fakePublisher) PublishWithContext(ctx context.Context, routingKey string, payload any) error {
	f.keys = append(f.keys, routingKey)
	return nil
}

func raw(externalID, sender, title string, age time.Duration) RawItem {
	return RawItem{
		ExternalID: externalID,
		Sender:     sender,
		Title:      title,
		Body:       "body",
		ReceivedAt: time.Now().Add(-age),
	}
}

func newTestService(t *testing.T, adapters []SourceAdapter, items *fakeItemStore, scores *fakeScoreStore, senders *fakeSenderStore, ruleStore *fakeRuleStore, jobs *fakeJobs, pub *fakePublisher) *Service {
	t.Helper()
	classifier, err := scoring.NewClassifier(70, 40)
	require.NoError(t, err)
	var publisher EventPublisher
	if pub != nil {
		publisher = pub
	}
	return NewService(ServiceDeps{
		Adapters:   adapters,
		Items:      items,
		Scores:     scores,
		Senders:    senders,
		RuleStore:  ruleStore,
		RuleEngine: rules.NewEngine(zap.NewNop()),
		Engine:     scoring.NewEngine(0, 100, 50),
		Classifier: classifier,
		Jobs:       jobs,
		Publisher:  publisher,
		Logger:     zap.NewNop(),
	})
}

func TestRunPassCountsTiers(t *testing.T) {
	adapter := &fakeAdapter{
		source: model.SourceMail,
		items: []RawItem{
			raw("m1", "vip@example.com", "urgent deadline asap", time.Minute),
			raw("m2", "other@example.com", "weekly notes", 48*time.Hour),
		},
	}
	senders := &fakeSenderStore{vips: map[string]float64{"vip@example.com": 30}}
	items := &fakeItemStore{}
	scores := &fakeScoreStore{}
	jobs := &fakeJobs{}
	pub := &fakePublisher{}
	svc := newTestService(t, []SourceAdapter{adapter}, items, scores, senders, &fakeRuleStore{}, jobs, pub)

	res, err := svc.RunPass(context.Background(), 1, 15*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Total())
	assert.Equal(t, 1, res.High)
	assert.Equal(t, 1, res.Low)
	assert.Zero(t, res.Skipped)
	assert.Len(t, scores.scores, 2)
	assert.Equal(t, []string{"item.scored", "item.scored"}, pub.keys)
}

func TestRunPassIsolatesItemFailures(t *testing.T) {
	adapter := &fakeAdapter{
		source: model.SourceMail,
		items: []RawItem{
			raw("bad", "a@example.com", "x", time.Minute),
			raw("good", "a@example.com", "y", time.Minute),
		},
	}
	items := &fakeItemStore{failOn: "bad"}
	svc := newTestService(t, []SourceAdapter{adapter}, items, &fakeScoreStore{}, &fakeSenderStore{}, &fakeRuleStore{}, &fakeJobs{}, nil)

	res, err := svc.RunPass(context.Background(), 1, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Total())
}

func TestRunPassSkipsItemsWithoutExternalID(t *testing.T) {
	adapter := &fakeAdapter{
		source: model.SourceChat,
		items:  []RawItem{{Sender: "s", Title: "t", ReceivedAt: time.Now()}},
	}
	svc := newTestService(t, []SourceAdapter{adapter}, &fakeItemStore{}, &fakeScoreStore{}, &fakeSenderStore{}, &fakeRuleStore{}, &fakeJobs{}, nil)

	res, err := svc.RunPass(context.Background(), 1, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
}

func TestRunPassContinuesAfterAdapterFailure(t *testing.T) {
	broken := &fakeAdapter{source: model.SourceMail, err: errors.New("provider down")}
	working := &fakeAdapter{
		source: model.SourceChat,
		items:  []RawItem{raw("c1", "a@example.com", "hello", time.Minute)},
	}
	svc := newTestService(t, []SourceAdapter{broken, working}, &fakeItemStore{}, &fakeScoreStore{}, &fakeSenderStore{}, &fakeRuleStore{}, &fakeJobs{}, nil)

	res, err := svc.RunPass(context.Background(), 1, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total())
}

func TestRunPassSkipsRepeatDeliveries(t *testing.T) {
	delivery := raw("m1", "a@example.com", "status", time.Minute)
	adapter := &fakeAdapter{source: model.SourceMail, items: []RawItem{delivery}}
	items := &fakeItemStore{}
	svc := newTestService(t, []SourceAdapter{adapter}, items, &fakeScoreStore{}, &fakeSenderStore{}, &fakeRuleStore{}, &fakeJobs{}, nil)
	svc.deduper = newFakeDeduper()

	res, err := svc.RunPass(context.Background(), 1, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total())

	// The provider hands back the identical delivery on the next fetch.
	res, err = svc.RunPass(context.Background(), 1, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Total())
	assert.Equal(t, 1, items.upserts)
}

func TestRunPassReprocessesChangedContent(t *testing.T) {
	delivery := raw("m1", "a@example.com", "status", time.Minute)
	adapter := &fakeAdapter{source: model.SourceMail, items: []RawItem{delivery}}
	items := &fakeItemStore{}
	svc := newTestService(t, []SourceAdapter{adapter}, items, &fakeScoreStore{}, &fakeSenderStore{}, &fakeRuleStore{}, &fakeJobs{}, nil)
	svc.deduper = newFakeDeduper()

	_, err := svc.RunPass(context.Background(), 1, 15*time.Minute)
	require.NoError(t, err)

	// Same external id, edited body: an update, not a duplicate.
	updated := delivery
	updated.Body = "edited body"
	adapter.items = []RawItem{updated}

	res, err := svc.RunPass(context.Background(), 1, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total())
	assert.Zero(t, res.Skipped)
	assert.Equal(t, 2, items.upserts)
}

func TestRunPassFailedItemStaysRetryable(t *testing.T) {
	delivery := raw("m1", "a@example.com", "status", time.Minute)
	adapter := &fakeAdapter{source: model.SourceMail, items: []RawItem{delivery}}
	items := &fakeItemStore{failOn: "m1"}
	svc := newTestService(t, []SourceAdapter{adapter}, items, &fakeScoreStore{}, &fakeSenderStore{}, &fakeRuleStore{}, &fakeJobs{}, nil)
	svc.deduper = newFakeDeduper()

	res, err := svc.RunPass(context.Background(), 1, 15*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, res.Skipped)

	// The store failure left no mark; the same delivery processes once
	// the store recovers, then dedups on the pass after.
	items.failOn = ""
	res, err = svc.RunPass(context.Background(), 1, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total())

	res, err = svc.RunPass(context.Background(), 1, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
}

func TestRunPassEnqueuesEnrichOnlyForEligibleTiers(t *testing.T) {
	adapter := &fakeAdapter{
		source: model.SourceMail,
		items: []RawItem{
			raw("high", "vip@example.com", "urgent asap deadline", time.Minute),
			raw("low", "noreply@example.com", "nothing", 72*time.Hour),
		},
	}
	senders := &fakeSenderStore{vips: map[string]float64{"vip@example.com": 30}}
	jobs := &fakeJobs{}
	svc := newTestService(t, []SourceAdapter{adapter}, &fakeItemStore{}, &fakeScoreStore{}, senders, &fakeRuleStore{}, jobs, nil)

	_, err := svc.RunPass(context.Background(), 1, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, jobs.countByType(model.JobEnrich))
}

func TestRunPassEnqueuesMatchedRuleActions(t *testing.T) {
	adapter := &fakeAdapter{
		source: model.SourceMail,
		items:  []RawItem{raw("m1", "news@letters.example.com", "hello", time.Minute)},
	}
	ruleStore := &fakeRuleStore{
		rules: []model.AutomationRule{{
			ID:            3,
			UserID:        1,
			Name:          "archive news",
			TriggerType:   model.TriggerSenderMatch,
			TriggerConfig: json.RawMessage(`{"pattern":"letters"}`),
			ActionType:    model.ActionArchive,
			Enabled:       true,
		}},
	}
	jobs := &fakeJobs{}
	svc := newTestService(t, []SourceAdapter{adapter}, &fakeItemStore{}, &fakeScoreStore{}, &fakeSenderStore{}, ruleStore, jobs, nil)

	_, err := svc.RunPass(context.Background(), 1, 15*time.Minute)
	require.NoError(t, err)

	require.Equal(t, 1, jobs.countByType(model.JobRuleAction))
	for _, j := range jobs.enqueued {
		if j.jobType == model.JobRuleAction {
			payload := j.payload.(model.RuleActionJobPayload)
			assert.Equal(t, 3, payload.RuleID)
			assert.Equal(t, model.ActionArchive, payload.ActionType)
		}
	}
}
