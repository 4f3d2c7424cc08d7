package model

import "time"

// PipelineLog is an audit row written by the MQ log consumers for each
// pipeline event observed on the exchange.
type PipelineLog struct {
	ID        int
	UserID    int
	ItemID    *int
	Event     string // routing key of the observed event
	Message   string
	CreatedAt time.Time
}
