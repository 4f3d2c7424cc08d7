package model

import "time"

// Enrichment stores completion-service output for one item. Missing
// enrichment is normal: the service degrades to none on failure.
type Enrichment struct {
	ID               int
	UserID           int
	ItemID           int
	Summary          string
	SuggestedReplies []string
	CreatedAt        time.Time
}
