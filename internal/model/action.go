package model

import "time"

type UserActionType string

const (
	UserActionStar    UserActionType = "star"
	UserActionArchive UserActionType = "archive"
	UserActionReply   UserActionType = "reply"
	UserActionDelete  UserActionType = "delete"
	UserActionRead    UserActionType = "read"
	UserActionUnread  UserActionType = "unread"
)

func (a UserActionType) Valid() bool {
	switch a {
	case UserActionStar, UserActionArchive, UserActionReply,
		UserActionDelete, UserActionRead, UserActionUnread:
		return true
	}
	return false
}

// UserAction is an immutable audit record of a user interacting with an
// item. Rows are append-only; the feedback loop consumes them and marks
// them processed, it never mutates the recorded facts.
type UserAction struct {
	ID            int
	UserID        int
	ItemID        int
	Action        UserActionType
	Sender        string  // snapshot at record time
	ScoreSnapshot float64 // final score at record time
	TierSnapshot  Tier
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}
