package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inboxpilot/internal/model"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(0, 100, 50)
}

func TestFinalScoreClampsAtMax(t *testing.T) {
	e := testEngine(t)
	assert.Equal(t, 100.0, e.FinalScore(72, 30))
}

func TestFinalScoreClampsAtMin(t *testing.T) {
	e := testEngine(t)
	assert.Equal(t, 0.0, e.FinalScore(10, -40))
}

func TestFinalScoreWithinRangePassesThrough(t *testing.T) {
	e := testEngine(t)
	assert.Equal(t, 65.0, e.FinalScore(40, 25))
}

func TestScoreIsDeterministic(t *testing.T) {
	e := testEngine(t)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	item := &model.Item{
		UserID:     1,
		Source:     model.SourceMail,
		Sender:     "boss@example.com",
		Title:      "Urgent: deadline today",
		Body:       "please review asap",
		ReceivedAt: now.Add(-2 * time.Hour),
	}
	uc := UserContext{
		SenderWeights: map[string]float64{"boss@example.com": 8},
		VIPBoosts:     map[string]float64{"boss@example.com": 20},
	}

	first := e.Score(item, uc, now)
	second := e.Score(item, uc, now)
	assert.Equal(t, first.RawScore, second.RawScore)
	assert.Equal(t, first.FinalScore, second.FinalScore)
	assert.Equal(t, first.Factors, second.Factors)
}

func TestScoreAppliesVIPBoost(t *testing.T) {
	e := testEngine(t)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	item := &model.Item{
		UserID:     1,
		Source:     model.SourceMail,
		Sender:     "vip@example.com",
		Title:      "hello",
		Body:       "catching up",
		ReceivedAt: now.Add(-48 * time.Hour),
	}

	plain := e.Score(item, UserContext{}, now)
	boosted := e.Score(item, UserContext{
		VIPBoosts: map[string]float64{"vip@example.com": 30},
	}, now)

	assert.Equal(t, plain.RawScore, boosted.RawScore)
	assert.Equal(t, plain.FinalScore+30, boosted.FinalScore)
	assert.Equal(t, 30.0, boosted.Factors["vip_boost"])
}

func TestScoreUrgencyIsCapped(t *testing.T) {
	e := testEngine(t)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	item := &model.Item{
		UserID:     1,
		Source:     model.SourceMail,
		Sender:     "someone@example.com",
		Title:      "URGENT action required: deadline today",
		Body:       "important, asap, reminder",
		ReceivedAt: now.Add(-72 * time.Hour),
	}

	score := e.Score(item, UserContext{}, now)
	assert.Equal(t, 25.0, score.Factors["urgency"])
}

func TestScoreMalformedItemGetsNeutralDefault(t *testing.T) {
	e := testEngine(t)
	now := time.Now()

	for name, item := range map[string]*model.Item{
		"nil item":      nil,
		"no sender":     {Title: "x", Body: "y"},
		"empty content": {Sender: "a@example.com"},
	} {
		score := e.Score(item, UserContext{}, now)
		require.NotNil(t, score, name)
		assert.Equal(t, 50.0, score.RawScore, name)
		assert.Equal(t, 50.0, score.FinalScore, name)
	}
}

func TestScoreRecencyDecays(t *testing.T) {
	e := testEngine(t)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	base := &model.Item{
		UserID: 1,
		Source: model.SourceMail,
		Sender: "a@example.com",
		Title:  "weekly notes",
		Body:   "nothing pressing",
	}

	fresh := *base
	fresh.ReceivedAt = now
	stale := *base
	stale.ReceivedAt = now.Add(-30 * time.Hour)

	freshScore := e.Score(&fresh, UserContext{}, now)
	staleScore := e.Score(&stale, UserContext{}, now)

	assert.Equal(t, 15.0, freshScore.Factors["recency"])
	assert.NotContains(t, staleScore.Factors, "recency")
	assert.Greater(t, freshScore.FinalScore, staleScore.FinalScore)
}

func TestScoreCalendarProximity(t *testing.T) {
	e := testEngine(t)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	soon := now.Add(time.Hour)
	later := now.Add(10 * time.Hour)
	past := now.Add(-time.Hour)

	mk := func(occurs time.Time) *model.Item {
		return &model.Item{
			UserID:     1,
			Source:     model.SourceCalendar,
			Sender:     "calendar@example.com",
			Title:      "standup",
			OccursAt:   &occurs,
			ReceivedAt: now.Add(-48 * time.Hour),
		}
	}

	assert.Equal(t, 20.0, e.Score(mk(soon), UserContext{}, now).Factors["calendar_proximity"])
	assert.Equal(t, 10.0, e.Score(mk(later), UserContext{}, now).Factors["calendar_proximity"])
	assert.NotContains(t, e.Score(mk(past), UserContext{}, now).Factors, "calendar_proximity")
}

func TestScoreChatMention(t *testing.T) {
	e := testEngine(t)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	item := &model.Item{
		UserID:     1,
		Source:     model.SourceChat,
		Sender:     "teammate",
		Title:      "",
		Body:       "@you can you take a look",
		ReceivedAt: now.Add(-48 * time.Hour),
	}

	score := e.Score(item, UserContext{}, now)
	assert.Equal(t, 5.0, score.Factors["chat_mention"])
}
