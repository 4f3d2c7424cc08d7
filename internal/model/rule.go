package model

import (
	"encoding/json"
	"time"
)

type TriggerType string

const (
	TriggerNewItem        TriggerType = "new_item"
	TriggerScoreThreshold TriggerType = "score_threshold"
	TriggerSenderMatch    TriggerType = "sender_match"
	TriggerSchedule       TriggerType = "schedule"
)

type RuleActionType string

const (
	ActionLabel      RuleActionType = "label"
	ActionArchive    RuleActionType = "archive"
	ActionForward    RuleActionType = "forward"
	ActionNotify     RuleActionType = "notify"
	ActionBoostScore RuleActionType = "boost_score"
)

// AutomationRule is a user-owned trigger/action pair. Rules are
// evaluated in ascending Priority order; ties break by CreatedAt then
// ID, so evaluation order is stable.
type AutomationRule struct {
	ID             int
	UserID         int
	Name           string
	TriggerType    TriggerType
	TriggerConfig  json.RawMessage
	ActionType     RuleActionType
	ActionConfig   json.RawMessage
	Enabled        bool
	Priority       int
	ExecutionCount int // monotonically incremented, never decremented
	LastExecutedAt *time.Time
	CreatedAt      time.Time
}
