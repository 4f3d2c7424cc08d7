package rules

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"inboxpilot/internal/model"
)

// Trigger and action configs are stored as raw JSON on the rule row and
// parsed per evaluation. A config that fails to parse or validate makes
// the rule malformed: skipped and logged, never fatal to the batch.

type ScoreThresholdTrigger struct {
	Min float64 `json:"min"`
}

type SenderMatchTrigger struct {
	Pattern string `json:"pattern"` // substring match, case-insensitive
}

type ScheduleTrigger struct {
	Cron string `json:"cron"`
}

type LabelAction struct {
	Label string `json:"label"`
}

type ForwardAction struct {
	To string `json:"to"`
}

type NotifyAction struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
}

type BoostScoreAction struct {
	Delta float64 `json:"delta"`
}

// ParseTrigger validates and decodes a rule's trigger config. new_item
// triggers carry no required fields.
func ParseTrigger(triggerType model.TriggerType, raw json.RawMessage) (interface{}, error) {
	switch triggerType {
	case model.TriggerNewItem:
		return nil, nil
	case model.TriggerScoreThreshold:
		var t ScoreThresholdTrigger
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("invalid score_threshold config: %w", err)
		}
		return &t, nil
	case model.TriggerSenderMatch:
		var t SenderMatchTrigger
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("invalid sender_match config: %w", err)
		}
		if strings.TrimSpace(t.Pattern) == "" {
			return nil, fmt.Errorf("sender_match requires a non-empty pattern")
		}
		return &t, nil
	case model.TriggerSchedule:
		var t ScheduleTrigger
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("invalid schedule config: %w", err)
		}
		if strings.TrimSpace(t.Cron) == "" {
			return nil, fmt.Errorf("schedule requires a cron expression")
		}
		if _, err := cron.ParseStandard(t.Cron); err != nil {
			return nil, fmt.Errorf("invalid cron expression %q: %w", t.Cron, err)
		}
		return &t, nil
	default:
		return nil, fmt.Errorf("unknown trigger type: %s", triggerType)
	}
}

// ParseAction validates and decodes a rule's action config.
func ParseAction(actionType model.RuleActionType, raw json.RawMessage) (interface{}, error) {
	switch actionType {
	case model.ActionArchive:
		return nil, nil
	case model.ActionLabel:
		var a LabelAction
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("invalid label config: %w", err)
		}
		if strings.TrimSpace(a.Label) == "" {
			return nil, fmt.Errorf("label action requires a non-empty label")
		}
		return &a, nil
	case model.ActionForward:
		var a ForwardAction
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("invalid forward config: %w", err)
		}
		if !strings.Contains(a.To, "@") {
			return nil, fmt.Errorf("forward action requires a valid address")
		}
		return &a, nil
	case model.ActionNotify:
		var a NotifyAction
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("invalid notify config: %w", err)
		}
		if a.Channel == "" {
			a.Channel = "default"
		}
		return &a, nil
	case model.ActionBoostScore:
		var a BoostScoreAction
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("invalid boost_score config: %w", err)
		}
		if a.Delta == 0 {
			return nil, fmt.Errorf("boost_score requires a non-zero delta")
		}
		return &a, nil
	default:
		return nil, fmt.Errorf("unknown action type: %s", actionType)
	}
}
