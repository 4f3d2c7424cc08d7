package rules

import (
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"inboxpilot/internal/model"
	"inboxpilot/pkg/metrics"
)

// MatchedAction is a rule match selected for execution. The engine only
// selects; the worker pool executes the resulting rule_action jobs and
// increments the rule's execution count on success.
type MatchedAction struct {
	RuleID       int
	RuleName     string
	UserID       int
	ItemID       int
	ActionType   model.RuleActionType
	ActionConfig []byte
}

type Engine struct {
	logger *zap.Logger
}

func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{logger: logger}
}

// Evaluate checks every enabled rule against a scored item and returns
// the matched actions in evaluation order: ascending priority, then
// creation time, then id. Disabled rules are skipped; malformed rules
// are logged and skipped.
func (e *Engine) Evaluate(item *model.Item, score *model.Score, ruleSet []model.AutomationRule) []MatchedAction {
	ordered := orderEnabled(ruleSet)

	var matched []MatchedAction
	for _, rule := range ordered {
		trigger, err := ParseTrigger(rule.TriggerType, rule.TriggerConfig)
		if err != nil {
			e.logger.Warn("skipping rule with malformed trigger config",
				zap.Int("rule_id", rule.ID),
				zap.String("rule_name", rule.Name),
				zap.Error(err))
			continue
		}
		if _, err := ParseAction(rule.ActionType, rule.ActionConfig); err != nil {
			e.logger.Warn("skipping rule with malformed action config",
				zap.Int("rule_id", rule.ID),
				zap.String("rule_name", rule.Name),
				zap.Error(err))
			continue
		}

		if !triggerMatches(rule.TriggerType, trigger, item, score) {
			continue
		}

		metrics.RecordRuleMatch(string(rule.TriggerType), string(rule.ActionType))
		matched = append(matched, MatchedAction{
			RuleID:       rule.ID,
			RuleName:     rule.Name,
			UserID:       item.UserID,
			ItemID:       item.ID,
			ActionType:   rule.ActionType,
			ActionConfig: rule.ActionConfig,
		})
	}
	return matched
}

// DueScheduleRules returns the enabled schedule rules whose cron
// expression fires inside (from, to], in the same order Evaluate uses.
// Matches carry no item; malformed rules are logged and skipped.
func (e *Engine) DueScheduleRules(userID int, ruleSet []model.AutomationRule, from, to time.Time) []MatchedAction {
	var matched []MatchedAction
	for _, rule := range orderEnabled(ruleSet) {
		if rule.TriggerType != model.TriggerSchedule {
			continue
		}
		trigger, err := ParseTrigger(rule.TriggerType, rule.TriggerConfig)
		if err != nil {
			e.logger.Warn("skipping schedule rule with malformed trigger config",
				zap.Int("rule_id", rule.ID),
				zap.String("rule_name", rule.Name),
				zap.Error(err))
			continue
		}
		if _, err := ParseAction(rule.ActionType, rule.ActionConfig); err != nil {
			e.logger.Warn("skipping schedule rule with malformed action config",
				zap.Int("rule_id", rule.ID),
				zap.String("rule_name", rule.Name),
				zap.Error(err))
			continue
		}

		sched, err := cron.ParseStandard(trigger.(*ScheduleTrigger).Cron)
		if err != nil {
			continue
		}
		if sched.Next(from).After(to) {
			continue
		}

		metrics.RecordRuleMatch(string(rule.TriggerType), string(rule.ActionType))
		matched = append(matched, MatchedAction{
			RuleID:       rule.ID,
			RuleName:     rule.Name,
			UserID:       userID,
			ActionType:   rule.ActionType,
			ActionConfig: rule.ActionConfig,
		})
	}
	return matched
}

func orderEnabled(ruleSet []model.AutomationRule) []model.AutomationRule {
	ordered := make([]model.AutomationRule, 0, len(ruleSet))
	for _, r := range ruleSet {
		if r.Enabled {
			ordered = append(ordered, r)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})
	return ordered
}

func triggerMatches(triggerType model.TriggerType, trigger interface{}, item *model.Item, score *model.Score) bool {
	switch triggerType {
	case model.TriggerNewItem:
		return true
	case model.TriggerScoreThreshold:
		t := trigger.(*ScoreThresholdTrigger)
		return score != nil && score.FinalScore >= t.Min
	case model.TriggerSenderMatch:
		t := trigger.(*SenderMatchTrigger)
		return strings.Contains(strings.ToLower(item.Sender), strings.ToLower(t.Pattern))
	case model.TriggerSchedule:
		// Schedule triggers fire from the cron scheduler, not from the
		// ingestion path.
		return false
	default:
		return false
	}
}
