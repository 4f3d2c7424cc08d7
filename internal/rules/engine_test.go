package rules

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"inboxpilot/internal/model"
)

func testItem() *model.Item {
	return &model.Item{
		ID:     42,
		UserID: 1,
		Source: model.SourceMail,
		Sender: "news@weekly-digest.example.com",
		Title:  "This week",
		Body:   "roundup",
	}
}

func testScore(final float64) *model.Score {
	return &model.Score{UserID: 1, ItemID: 42, FinalScore: final}
}

func newItemRule(id, priority int, createdAt time.Time) model.AutomationRule {
	return model.AutomationRule{
		ID:          id,
		UserID:      1,
		Name:        "rule",
		TriggerType: model.TriggerNewItem,
		ActionType:  model.ActionArchive,
		Enabled:     true,
		Priority:    priority,
		CreatedAt:   createdAt,
	}
}

func TestEvaluatePriorityOrderWithCreationTiebreak(t *testing.T) {
	e := NewEngine(zap.NewNop())
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	ruleSet := []model.AutomationRule{
		newItemRule(1, 10, base),
		newItemRule(2, 5, base.Add(time.Minute)),
		newItemRule(3, 5, base.Add(2*time.Minute)),
	}

	matched := e.Evaluate(testItem(), testScore(50), ruleSet)

	var ids []int
	for _, m := range matched {
		ids = append(ids, m.RuleID)
	}
	assert.Equal(t, []int{2, 3, 1}, ids)
}

func TestEvaluateIDTiebreakOnEqualCreation(t *testing.T) {
	e := NewEngine(zap.NewNop())
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	ruleSet := []model.AutomationRule{
		newItemRule(7, 5, base),
		newItemRule(3, 5, base),
	}

	matched := e.Evaluate(testItem(), testScore(50), ruleSet)
	assert.Equal(t, 3, matched[0].RuleID)
	assert.Equal(t, 7, matched[1].RuleID)
}

func TestEvaluateSkipsDisabledRules(t *testing.T) {
	e := NewEngine(zap.NewNop())
	rule := newItemRule(1, 1, time.Now())
	rule.Enabled = false

	matched := e.Evaluate(testItem(), testScore(50), []model.AutomationRule{rule})
	assert.Empty(t, matched)
}

func TestEvaluateSkipsMalformedRules(t *testing.T) {
	e := NewEngine(zap.NewNop())
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	malformed := model.AutomationRule{
		ID:            1,
		UserID:        1,
		Name:          "broken",
		TriggerType:   model.TriggerScoreThreshold,
		TriggerConfig: json.RawMessage(`{not json`),
		ActionType:    model.ActionArchive,
		Enabled:       true,
		Priority:      1,
		CreatedAt:     base,
	}
	ok := newItemRule(2, 2, base)

	matched := e.Evaluate(testItem(), testScore(50), []model.AutomationRule{malformed, ok})
	assert.Len(t, matched, 1)
	assert.Equal(t, 2, matched[0].RuleID)
}

func TestEvaluateScoreThresholdTrigger(t *testing.T) {
	e := NewEngine(zap.NewNop())
	rule := model.AutomationRule{
		ID:            1,
		UserID:        1,
		Name:          "high only",
		TriggerType:   model.TriggerScoreThreshold,
		TriggerConfig: json.RawMessage(`{"min":70}`),
		ActionType:    model.ActionNotify,
		ActionConfig:  json.RawMessage(`{"channel":"default","message":"hi"}`),
		Enabled:       true,
	}

	assert.Len(t, e.Evaluate(testItem(), testScore(85), []model.AutomationRule{rule}), 1)
	assert.Len(t, e.Evaluate(testItem(), testScore(70), []model.AutomationRule{rule}), 1)
	assert.Empty(t, e.Evaluate(testItem(), testScore(69), []model.AutomationRule{rule}))
}

func TestEvaluateSenderMatchTrigger(t *testing.T) {
	e := NewEngine(zap.NewNop())
	rule := model.AutomationRule{
		ID:            1,
		UserID:        1,
		Name:          "newsletters",
		TriggerType:   model.TriggerSenderMatch,
		TriggerConfig: json.RawMessage(`{"pattern":"Weekly-Digest"}`),
		ActionType:    model.ActionArchive,
		Enabled:       true,
	}

	matched := e.Evaluate(testItem(), testScore(50), []model.AutomationRule{rule})
	assert.Len(t, matched, 1)
	assert.Equal(t, model.ActionArchive, matched[0].ActionType)

	other := testItem()
	other.Sender = "boss@example.com"
	assert.Empty(t, e.Evaluate(other, testScore(50), []model.AutomationRule{rule}))
}

func TestEvaluateScheduleTriggerNeverFiresInline(t *testing.T) {
	e := NewEngine(zap.NewNop())
	rule := model.AutomationRule{
		ID:            1,
		UserID:        1,
		Name:          "nightly",
		TriggerType:   model.TriggerSchedule,
		TriggerConfig: json.RawMessage(`{"cron":"0 3 * * *"}`),
		ActionType:    model.ActionArchive,
		Enabled:       true,
	}

	assert.Empty(t, e.Evaluate(testItem(), testScore(99), []model.AutomationRule{rule}))
}

func scheduleRule(id int, cronExpr string) model.AutomationRule {
	return model.AutomationRule{
		ID:            id,
		UserID:        1,
		Name:          "scheduled",
		TriggerType:   model.TriggerSchedule,
		TriggerConfig: json.RawMessage(`{"cron":"` + cronExpr + `"}`),
		ActionType:    model.ActionNotify,
		ActionConfig:  json.RawMessage(`{"channel":"default","message":"sweep"}`),
		Enabled:       true,
		Priority:      1,
	}
}

func TestDueScheduleRulesFireInsideWindow(t *testing.T) {
	e := NewEngine(zap.NewNop())
	rule := scheduleRule(1, "0 9 * * *")

	// Cron schedules resolve in local time.
	before := time.Date(2025, 3, 12, 8, 59, 0, 0, time.Local)

	due := e.DueScheduleRules(1, []model.AutomationRule{rule}, before, before.Add(2*time.Minute))
	require.Len(t, due, 1)
	assert.Equal(t, 1, due[0].RuleID)
	assert.Equal(t, 1, due[0].UserID)
	assert.Zero(t, due[0].ItemID)
	assert.Equal(t, model.ActionNotify, due[0].ActionType)

	// A window that starts after the firing stays empty.
	after := time.Date(2025, 3, 12, 9, 1, 0, 0, time.Local)
	assert.Empty(t, e.DueScheduleRules(1, []model.AutomationRule{rule}, after, after.Add(2*time.Minute)))
}

func TestDueScheduleRulesSkipDisabledAndNonSchedule(t *testing.T) {
	e := NewEngine(zap.NewNop())
	disabled := scheduleRule(1, "* * * * *")
	disabled.Enabled = false
	inline := newItemRule(2, 1, time.Now())
	malformed := scheduleRule(3, "* * * * *")
	malformed.TriggerConfig = json.RawMessage(`{"cron":"not a cron"}`)
	due := scheduleRule(4, "* * * * *")

	from := time.Now().Add(-2 * time.Minute)
	matched := e.DueScheduleRules(1, []model.AutomationRule{disabled, inline, malformed, due}, from, time.Now())
	require.Len(t, matched, 1)
	assert.Equal(t, 4, matched[0].RuleID)
}

func TestEvaluateCarriesActionConfig(t *testing.T) {
	e := NewEngine(zap.NewNop())
	rule := model.AutomationRule{
		ID:           1,
		UserID:       1,
		Name:         "label it",
		TriggerType:  model.TriggerNewItem,
		ActionType:   model.ActionLabel,
		ActionConfig: json.RawMessage(`{"label":"priority"}`),
		Enabled:      true,
	}

	matched := e.Evaluate(testItem(), testScore(50), []model.AutomationRule{rule})
	assert.Len(t, matched, 1)
	assert.JSONEq(t, `{"label":"priority"}`, string(matched[0].ActionConfig))
	assert.Equal(t, 42, matched[0].ItemID)
	assert.Equal(t, 1, matched[0].UserID)
}
