// Package mq holds the wire payloads published on the pipeline exchange.
package mq

import "time"

// Routing keys on the pipeline exchange.
const (
	RoutingKeyItemScored      = "item.scored"
	RoutingKeyDigestGenerated = "digest.generated"
	RoutingKeyRuleNotify      = "rule.notify"
	RoutingKeyRuleForward     = "rule.forward"
	RoutingKeyJobDead         = "job.dead"
)

type ItemScoredPayload struct {
	ItemID     int       `json:"item_id"`
	UserID     int       `json:"user_id"`
	Source     string    `json:"source"`
	Tier       string    `json:"tier"`
	FinalScore float64   `json:"final_score"`
	ScoredAt   time.Time `json:"scored_at"`
}

type DigestGeneratedPayload struct {
	UserID      int       `json:"user_id"`
	WindowType  string    `json:"window_type"`
	WindowKey   string    `json:"window_key"`
	ItemCount   int       `json:"item_count"`
	GeneratedAt time.Time `json:"generated_at"`
}

// RuleNotifyPayload asks the external notifier to deliver a message.
type RuleNotifyPayload struct {
	UserID  int    `json:"user_id"`
	ItemID  int    `json:"item_id"`
	RuleID  int    `json:"rule_id"`
	Channel string `json:"channel"` // EMAIL / PUSH / WEBHOOK
	Message string `json:"message"`
}

// RuleForwardPayload asks the external deliverer to forward an item.
type RuleForwardPayload struct {
	UserID int    `json:"user_id"`
	ItemID int    `json:"item_id"`
	RuleID int    `json:"rule_id"`
	To     string `json:"to"`
}

// JobDeadPayload is published when a job exhausts its retries.
type JobDeadPayload struct {
	JobID    string `json:"job_id"`
	Type     string `json:"type"`
	UserID   int    `json:"user_id"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error"`
}
