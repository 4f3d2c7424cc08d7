// Package feedback turns user actions into sender weight adjustments
// for the scoring engine.
package feedback

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"inboxpilot/internal/model"
)

// Weight bounds: a single sender can never dominate the score range.
const (
	MinSenderWeight = -25
	MaxSenderWeight = 25
)

type ActionStore interface {
	Insert(ctx context.Context, a *model.UserAction) error
	ListUnprocessed(ctx context.Context, userID, limit int) ([]model.UserAction, error)
	CountsByAction(ctx context.Context, userID int) (map[model.UserActionType]int, error)
}

type WeightStore interface {
	ApplyFeedback(ctx context.Context, userID int, deltas map[string]float64, counts map[string]int, actionIDs []int, minWeight, maxWeight float64) error
	ListBySender(ctx context.Context, userID, limit int) ([]model.SenderStats, error)
}

type Tracker struct {
	actions ActionStore
	weights WeightStore
	logger  *zap.Logger
}

func NewTracker(actions ActionStore, weights WeightStore, logger *zap.Logger) *Tracker {
	return &Tracker{actions: actions, weights: weights, logger: logger}
}

// actionDelta maps an action to its sender weight contribution.
// Positive engagement pulls the sender up, dismissal pushes it down.
func actionDelta(action model.UserActionType) float64 {
	switch action {
	case model.UserActionStar:
		return 5
	case model.UserActionReply:
		return 4
	case model.UserActionRead:
		return 0.5
	case model.UserActionArchive:
		return -1
	case model.UserActionDelete:
		return -3
	case model.UserActionUnread:
		return -0.5
	default:
		return 0
	}
}

// TrackAction appends one action record. Recording never evaluates
// anything; weight adjustment happens in bulk via
// ProcessHistoricalActions.
func (t *Tracker) TrackAction(ctx context.Context, a *model.UserAction) error {
	if !a.Action.Valid() {
		return fmt.Errorf("unknown action type: %s", a.Action)
	}
	if err := t.actions.Insert(ctx, a); err != nil {
		return fmt.Errorf("failed to record action: %w", err)
	}
	return nil
}

// ProcessHistoricalActions folds up to limit unprocessed actions into
// the per-sender weights. Processed rows are watermarked inside the
// same transaction as the weight update, so rerunning (or a crash
// between runs) never counts an action twice.
func (t *Tracker) ProcessHistoricalActions(ctx context.Context, userID, limit int) (int, error) {
	actions, err := t.actions.ListUnprocessed(ctx, userID, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to load unprocessed actions: %w", err)
	}
	if len(actions) == 0 {
		return 0, nil
	}

	deltas := make(map[string]float64)
	counts := make(map[string]int)
	ids := make([]int, 0, len(actions))
	for _, a := range actions {
		if a.Sender == "" {
			ids = append(ids, a.ID)
			continue
		}
		deltas[a.Sender] += actionDelta(a.Action)
		counts[a.Sender]++
		ids = append(ids, a.ID)
	}

	err = t.weights.ApplyFeedback(ctx, userID, deltas, counts, ids, MinSenderWeight, MaxSenderWeight)
	if err != nil {
		return 0, fmt.Errorf("failed to apply feedback: %w", err)
	}

	t.logger.Info("processed historical actions",
		zap.Int("user_id", userID),
		zap.Int("actions", len(actions)),
		zap.Int("senders", len(deltas)))
	return len(actions), nil
}

// Statistics summarizes the learning state for one user.
type Statistics struct {
	ActionCounts map[model.UserActionType]int `json:"action_counts"`
	TopSenders   []model.SenderStats          `json:"top_senders"`
}

func (t *Tracker) Statistics(ctx context.Context, userID int) (*Statistics, error) {
	counts, err := t.actions.CountsByAction(ctx, userID)
	if err != nil {
		return nil, err
	}
	senders, err := t.weights.ListBySender(ctx, userID, 20)
	if err != nil {
		return nil, err
	}
	return &Statistics{ActionCounts: counts, TopSenders: senders}, nil
}
