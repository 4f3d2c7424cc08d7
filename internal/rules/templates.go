package rules

import (
	"encoding/json"

	"inboxpilot/internal/model"
)

// Template is a pre-built rule users can instantiate without writing
// trigger/action JSON by hand.
type Template struct {
	ID            string
	Name          string
	Description   string
	TriggerType   model.TriggerType
	TriggerConfig json.RawMessage
	ActionType    model.RuleActionType
	ActionConfig  json.RawMessage
	Priority      int
}

var builtinTemplates = []Template{
	{
		ID:            "archive-newsletters",
		Name:          "Archive newsletters",
		Description:   "Archive anything from a newsletter sender",
		TriggerType:   model.TriggerSenderMatch,
		TriggerConfig: json.RawMessage(`{"pattern":"newsletter"}`),
		ActionType:    model.ActionArchive,
		Priority:      100,
	},
	{
		ID:            "flag-high-priority",
		Name:          "Flag high priority",
		Description:   "Label items that score above the high threshold",
		TriggerType:   model.TriggerScoreThreshold,
		TriggerConfig: json.RawMessage(`{"min":70}`),
		ActionType:    model.ActionLabel,
		ActionConfig:  json.RawMessage(`{"label":"priority"}`),
		Priority:      10,
	},
	{
		ID:            "notify-high-priority",
		Name:          "Notify on high priority",
		Description:   "Send a notification for items that score above the high threshold",
		TriggerType:   model.TriggerScoreThreshold,
		TriggerConfig: json.RawMessage(`{"min":70}`),
		ActionType:    model.ActionNotify,
		ActionConfig:  json.RawMessage(`{"channel":"default","message":"High priority item received"}`),
		Priority:      20,
	},
	{
		ID:            "boost-team",
		Name:          "Boost team mail",
		Description:   "Raise the score of items from your own domain",
		TriggerType:   model.TriggerSenderMatch,
		TriggerConfig: json.RawMessage(`{"pattern":"@mycompany.com"}`),
		ActionType:    model.ActionBoostScore,
		ActionConfig:  json.RawMessage(`{"delta":10}`),
		Priority:      5,
	},
}

// Templates returns the built-in rule templates.
func Templates() []Template {
	out := make([]Template, len(builtinTemplates))
	copy(out, builtinTemplates)
	return out
}

func TemplateByID(id string) (Template, bool) {
	for _, t := range builtinTemplates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

func (t Template) Instantiate(userID int) *model.AutomationRule {
	return &model.AutomationRule{
		UserID:        userID,
		Name:          t.Name,
		TriggerType:   t.TriggerType,
		TriggerConfig: t.TriggerConfig,
		ActionType:    t.ActionType,
		ActionConfig:  t.ActionConfig,
		Enabled:       true,
		Priority:      t.Priority,
	}
}
