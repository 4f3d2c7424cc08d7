package model

import "time"

type Source string

const (
	SourceMail     Source = "mail"
	SourceChat     Source = "chat"
	SourceCalendar Source = "calendar"
)

// Item is one unit of incoming content. (user_id, source, external_id)
// is unique: re-ingestion upserts, never duplicates.
type Item struct {
	ID         int
	UserID     int
	Source     Source
	ExternalID string
	Sender     string
	Title      string
	Body       string
	Category   string // now / next / later, "" before scoring
	Label      string // set by label rule actions, "" when unset
	Archived   bool
	Read       bool
	OccursAt   *time.Time // calendar items only
	ReceivedAt time.Time
	CreatedAt  time.Time
}

const (
	CategoryNow   = "now"
	CategoryNext  = "next"
	CategoryLater = "later"
)
