package scoring

import (
	"strings"
	"time"

	"inboxpilot/internal/model"
)

// UserContext carries the per-user adjustments the engine applies on
// top of content signals. Callers load it once per pass and hand the
// engine a snapshot, so concurrent scoring never reads shared state.
type UserContext struct {
	SenderWeights map[string]float64
	VIPBoosts     map[string]float64
}

type Engine struct {
	min     float64
	max     float64
	neutral float64
}

func NewEngine(min, max, neutral float64) *Engine {
	return &Engine{min: min, max: max, neutral: neutral}
}

const baseScore = 30

var urgencyKeywords = map[string]float64{
	"urgent":          10,
	"asap":            10,
	"action required": 8,
	"deadline":        8,
	"today":           5,
	"important":       5,
	"reminder":        3,
}

const urgencyCap = 25

// Score computes the raw and final score for one item. It is pure:
// identical inputs always yield identical output, and now is passed in
// rather than read from the clock. Malformed items degrade to the
// configured neutral score instead of erroring, a scoring failure must
// never block an ingestion pass.
func (e *Engine) Score(item *model.Item, uc UserContext, now time.Time) *model.Score {
	if item == nil || item.Sender == "" || (item.Title == "" && item.Body == "") {
		return &model.Score{
			RawScore:   e.neutral,
			FinalScore: e.clamp(e.neutral),
			Factors:    map[string]float64{"neutral_default": e.neutral},
		}
	}

	factors := make(map[string]float64)
	raw := float64(baseScore)
	factors["base"] = baseScore

	if w, ok := uc.SenderWeights[item.Sender]; ok && w != 0 {
		raw += w
		factors["sender_weight"] = w
	}

	if u := urgencySignal(item.Title, item.Body); u > 0 {
		raw += u
		factors["urgency"] = u
	}

	if rec := recencySignal(item.ReceivedAt, now); rec > 0 {
		raw += rec
		factors["recency"] = rec
	}

	switch item.Source {
	case model.SourceCalendar:
		if prox := calendarSignal(item.OccursAt, now); prox > 0 {
			raw += prox
			factors["calendar_proximity"] = prox
		}
	case model.SourceChat:
		if strings.Contains(item.Body, "@") {
			raw += 5
			factors["chat_mention"] = 5
		}
	}

	var boosts float64
	if b, ok := uc.VIPBoosts[item.Sender]; ok && b != 0 {
		boosts += b
		factors["vip_boost"] = b
	}

	score := &model.Score{
		UserID:     item.UserID,
		ItemID:     item.ID,
		RawScore:   raw,
		FinalScore: e.FinalScore(raw, boosts),
		Factors:    factors,
	}
	return score
}

// FinalScore clamps raw plus boosts into the configured range.
func (e *Engine) FinalScore(raw, boosts float64) float64 {
	return e.clamp(raw + boosts)
}

func (e *Engine) clamp(v float64) float64 {
	if v < e.min {
		return e.min
	}
	if v > e.max {
		return e.max
	}
	return v
}

func urgencySignal(title, body string) float64 {
	text := strings.ToLower(title + " " + body)
	var total float64
	for kw, pts := range urgencyKeywords {
		if strings.Contains(text, kw) {
			total += pts
		}
	}
	if total > urgencyCap {
		total = urgencyCap
	}
	return total
}

// recencySignal rewards fresh items, decaying linearly to zero over a
// day.
func recencySignal(receivedAt, now time.Time) float64 {
	age := now.Sub(receivedAt)
	if age < 0 {
		age = 0
	}
	if age >= 24*time.Hour {
		return 0
	}
	return 15 * (1 - age.Hours()/24)
}

// calendarSignal rewards events starting soon.
func calendarSignal(occursAt *time.Time, now time.Time) float64 {
	if occursAt == nil {
		return 0
	}
	until := occursAt.Sub(now)
	if until < 0 {
		return 0
	}
	if until <= 2*time.Hour {
		return 20
	}
	if until <= 24*time.Hour {
		return 10
	}
	return 0
}
