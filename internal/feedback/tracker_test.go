package feedback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"inboxpilot/internal/model"
)

type fakeActionStore struct {
	inserted    []*model.UserAction
	unprocessed []model.UserAction
	counts      map[model.UserActionType]int
}

func (f *fakeActionStore) Insert(ctx context.Context, a *model.UserAction) error {
	a.ID = len(f.inserted) + 1
	f.inserted = append(f.inserted, a)
	return nil
}

func (f *fakeActionStore) ListUnprocessed(ctx context.Context, userID, limit int) ([]model.UserAction, error) {
	if limit < len(f.unprocessed) {
		return f.unprocessed[:limit], nil
	}
	return f.unprocessed, nil
}

func (f *fakeActionStore) CountsByAction(ctx context.Context, userID int) (map[model.UserActionType]int, error) {
	return f.counts, nil
}

type fakeWeightStore struct {
	applied      map[string]float64
	appliedIDs   []int
	appliedCalls int
	stats        []model.SenderStats
}

func (f *fakeWeightStore) ApplyFeedback(ctx context.Context, userID int, deltas map[string]float64, counts map[string]int, actionIDs []int, minWeight, maxWeight float64) error {
	f.applied = deltas
	f.appliedIDs = actionIDs
	f.appliedCalls++
	return nil
}

func (f *fakeWeightStore) ListBySender(ctx context.Context, userID, limit int) ([]model.SenderStats, error) {
	return f.stats, nil
}

func action(id int, sender string, kind model.UserActionType) model.UserAction {
	return model.UserAction{
		ID:        id,
		UserID:    1,
		ItemID:    id,
		Action:    kind,
		Sender:    sender,
		CreatedAt: time.Now(),
	}
}

func TestTrackActionRejectsUnknownType(t *testing.T) {
	actions := &fakeActionStore{}
	tr := NewTracker(actions, &fakeWeightStore{}, zap.NewNop())

	err := tr.TrackAction(context.Background(), &model.UserAction{Action: "shred"})
	assert.Error(t, err)
	assert.Empty(t, actions.inserted)

	err = tr.TrackAction(context.Background(), &model.UserAction{UserID: 1, ItemID: 2, Action: model.UserActionStar})
	require.NoError(t, err)
	assert.Len(t, actions.inserted, 1)
}

func TestProcessHistoricalActionsAggregatesDeltas(t *testing.T) {
	actions := &fakeActionStore{
		unprocessed: []model.UserAction{
			action(1, "boss@example.com", model.UserActionStar),
			action(2, "boss@example.com", model.UserActionReply),
			action(3, "spam@example.com", model.UserActionDelete),
			action(4, "spam@example.com", model.UserActionArchive),
			action(5, "news@example.com", model.UserActionRead),
			action(6, "news@example.com", model.UserActionUnread),
		},
	}
	weights := &fakeWeightStore{}
	tr := NewTracker(actions, weights, zap.NewNop())

	n, err := tr.ProcessHistoricalActions(context.Background(), 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	assert.Equal(t, 9.0, weights.applied["boss@example.com"])  // +5 +4
	assert.Equal(t, -4.0, weights.applied["spam@example.com"]) // -3 -1
	assert.Equal(t, 0.0, weights.applied["news@example.com"])  // +0.5 -0.5
	assert.Len(t, weights.appliedIDs, 6)
}

func TestProcessHistoricalActionsRespectsLimit(t *testing.T) {
	actions := &fakeActionStore{
		unprocessed: []model.UserAction{
			action(1, "a@example.com", model.UserActionStar),
			action(2, "a@example.com", model.UserActionStar),
			action(3, "a@example.com", model.UserActionStar),
		},
	}
	weights := &fakeWeightStore{}
	tr := NewTracker(actions, weights, zap.NewNop())

	n, err := tr.ProcessHistoricalActions(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 10.0, weights.applied["a@example.com"])
}

func TestProcessHistoricalActionsNothingPending(t *testing.T) {
	weights := &fakeWeightStore{}
	tr := NewTracker(&fakeActionStore{}, weights, zap.NewNop())

	n, err := tr.ProcessHistoricalActions(context.Background(), 1, 100)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, weights.appliedCalls)
}

func TestProcessHistoricalActionsMarksSenderlessRows(t *testing.T) {
	actions := &fakeActionStore{
		unprocessed: []model.UserAction{
			action(1, "", model.UserActionRead),
			action(2, "a@example.com", model.UserActionStar),
		},
	}
	weights := &fakeWeightStore{}
	tr := NewTracker(actions, weights, zap.NewNop())

	_, err := tr.ProcessHistoricalActions(context.Background(), 1, 100)
	require.NoError(t, err)

	// the senderless row contributes no delta but is still watermarked
	assert.Len(t, weights.appliedIDs, 2)
	assert.NotContains(t, weights.applied, "")
}

func TestStatistics(t *testing.T) {
	actions := &fakeActionStore{
		counts: map[model.UserActionType]int{model.UserActionStar: 3},
	}
	weights := &fakeWeightStore{
		stats: []model.SenderStats{{Sender: "boss@example.com", Weight: 12}},
	}
	tr := NewTracker(actions, weights, zap.NewNop())

	stats, err := tr.Statistics(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.ActionCounts[model.UserActionStar])
	require.Len(t, stats.TopSenders, 1)
	assert.Equal(t, 12.0, stats.TopSenders[0].Weight)
}

func TestActionDeltaTable(t *testing.T) {
	assert.Equal(t, 5.0, actionDelta(model.UserActionStar))
	assert.Equal(t, 4.0, actionDelta(model.UserActionReply))
	assert.Equal(t, 0.5, actionDelta(model.UserActionRead))
	assert.Equal(t, -1.0, actionDelta(model.UserActionArchive))
	assert.Equal(t, -3.0, actionDelta(model.UserActionDelete))
	assert.Equal(t, -0.5, actionDelta(model.UserActionUnread))
}
