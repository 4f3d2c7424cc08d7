package model

import "time"

type WindowType string

const (
	WindowMorning   WindowType = "morning"
	WindowAfternoon WindowType = "afternoon"
	WindowEvening   WindowType = "evening"
	WindowManual    WindowType = "manual"
	WindowWeekly    WindowType = "weekly"
)

// Weekly low-tier bulk categories, in match order.
const (
	BulkMarketing   = "marketing"
	BulkNewsletters = "newsletters"
	BulkSocial      = "social"
	BulkAutomated   = "automated"
)

// ItemRef is a durable reference to an item inside a digest snapshot.
// Bulk actions resolve these against current item state, not the
// snapshot itself.
type ItemRef struct {
	ItemID     int    `json:"item_id"`
	Source     Source `json:"source"`
	ExternalID string `json:"external_id"`
	Sender     string `json:"sender"`
	Title      string `json:"title"`
}

// DigestBuckets holds now/next/later lists for daily digests and the
// bulk category lists for weekly digests. Unused buckets stay empty.
type DigestBuckets struct {
	Now         []ItemRef `json:"now,omitempty"`
	Next        []ItemRef `json:"next,omitempty"`
	Later       []ItemRef `json:"later,omitempty"`
	Marketing   []ItemRef `json:"marketing,omitempty"`
	Newsletters []ItemRef `json:"newsletters,omitempty"`
	Social      []ItemRef `json:"social,omitempty"`
	Automated   []ItemRef `json:"automated,omitempty"`
}

func (b DigestBuckets) Count() int {
	return len(b.Now) + len(b.Next) + len(b.Later) +
		len(b.Marketing) + len(b.Newsletters) + len(b.Social) + len(b.Automated)
}

// Digest is a point-in-time aggregation snapshot. At most one digest
// exists per (user, window type, window key); regeneration upserts.
type Digest struct {
	ID          int
	UserID      int
	WindowType  WindowType
	WindowKey   string // date for daily windows, ISO week start for weekly
	Buckets     DigestBuckets
	GeneratedAt time.Time
}
