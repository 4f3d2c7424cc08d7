package model

import (
	"encoding/json"
	"time"
)

type JobType string

const (
	JobScore      JobType = "score"
	JobEnrich     JobType = "enrich"
	JobDigest     JobType = "digest"
	JobRuleAction JobType = "rule_action"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is a unit of deferred asynchronous work. Status transitions are
// owned exclusively by the worker pool; succeeded and failed are
// terminal.
type Job struct {
	ID          string // uuid
	Type        JobType
	UserID      int
	Payload     json.RawMessage
	Status      JobStatus
	Attempts    int
	MaxAttempts int
	LastError   string
	ScheduledAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Job payloads. Each job type unmarshals its own variant.

type ScoreJobPayload struct {
	ItemID int `json:"item_id"`
}

type EnrichJobPayload struct {
	ItemID int `json:"item_id"`
}

type DigestJobPayload struct {
	WindowType string `json:"window_type"`
}

type RuleActionJobPayload struct {
	RuleID       int             `json:"rule_id"`
	RuleName     string          `json:"rule_name"`
	ItemID       int             `json:"item_id"`
	ActionType   RuleActionType  `json:"action_type"`
	ActionConfig json.RawMessage `json:"action_config"`
}
