package scheduler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"inboxpilot/config"
	"inboxpilot/internal/model"
	"inboxpilot/internal/rules"
)

type fakeUsers struct {
	ids []int
}

func (f *fakeUsers) ListIDs(ctx context.Context) ([]int, error) { return f.ids, nil }

type fakeRuleStore struct {
	rules []model.AutomationRule
}

func (f *fakeRuleStore) ListEnabledByUser(ctx context.Context, userID int) ([]model.AutomationRule, error) {
	return f.rules, nil
}

type enqueuedJob struct {
	jobType model.JobType
	userID  int
	payload any
}

type fakeJobs struct {
	enqueued []enqueuedJob
}

func (f *fakeJobs) Enqueue(ctx context.Context, jobType model.JobType, userID int, payload any, runAt time.Time) (*model.Job, error) {
	f.enqueued = append(f.enqueued, enqueuedJob{jobType: jobType, userID: userID, payload: payload})
	return &model.Job{ID: "x", Type: jobType}, nil
}

func testConfig() config.Config {
	var cfg config.Config
	cfg.Scheduler.Timezone = "UTC"
	cfg.Scheduler.IngestInterval = time.Minute
	cfg.Scheduler.IngestWindow = 15 * time.Minute
	cfg.Scheduler.FeedbackBatch = 100
	cfg.Digest.MorningAt = "07:00"
	cfg.Digest.AfternoonAt = "13:00"
	cfg.Digest.EveningAt = "19:00"
	cfg.Digest.WeeklyAt = "08:00"
	return cfg
}

func TestCronSpec(t *testing.T) {
	spec, err := cronSpec("07:00", false)
	require.NoError(t, err)
	assert.Equal(t, "00 07 * * *", spec)

	spec, err = cronSpec("08:30", true)
	require.NoError(t, err)
	assert.Equal(t, "30 08 * * 1", spec)

	_, err = cronSpec("eight", false)
	assert.Error(t, err)
}

func TestRunScheduleRulesEnqueuesDueActions(t *testing.T) {
	users := &fakeUsers{ids: []int{1}}
	ruleStore := &fakeRuleStore{rules: []model.AutomationRule{{
		ID:            5,
		UserID:        1,
		Name:          "every minute",
		TriggerType:   model.TriggerSchedule,
		TriggerConfig: json.RawMessage(`{"cron":"* * * * *"}`),
		ActionType:    model.ActionNotify,
		ActionConfig:  json.RawMessage(`{"channel":"default","message":"ping"}`),
		Enabled:       true,
	}}}
	jobs := &fakeJobs{}

	s, err := New(users, nil, ruleStore, rules.NewEngine(zap.NewNop()), jobs, nil, testConfig(), zap.NewNop())
	require.NoError(t, err)

	s.mu.Lock()
	s.lastRuleSweep = time.Now().Add(-2 * time.Minute)
	s.mu.Unlock()

	s.runScheduleRules()

	require.Len(t, jobs.enqueued, 1)
	assert.Equal(t, model.JobRuleAction, jobs.enqueued[0].jobType)
	assert.Equal(t, 1, jobs.enqueued[0].userID)
	payload := jobs.enqueued[0].payload.(model.RuleActionJobPayload)
	assert.Equal(t, 5, payload.RuleID)
	assert.Zero(t, payload.ItemID)
}
