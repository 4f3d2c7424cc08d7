package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"inboxpilot/internal/httpserver"
	"inboxpilot/internal/model"
)

type actionRequest struct {
	ItemID int    `json:"item_id" binding:"required"`
	Action string `json:"action" binding:"required"`
}

// recordAction appends a user action with a snapshot of the item's
// current score state.
func (a *API) recordAction(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := httpserver.UserID(c)
	ctx := c.Request.Context()

	item, err := a.items.FindByID(ctx, req.ItemID)
	if err != nil || item.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}

	action := &model.UserAction{
		UserID: userID,
		ItemID: item.ID,
		Action: model.UserActionType(req.Action),
		Sender: item.Sender,
	}
	if score, err := a.scores.FindByItem(ctx, userID, item.ID); err == nil {
		action.ScoreSnapshot = score.FinalScore
		action.TierSnapshot = score.Tier
	}

	if err := a.tracker.TrackAction(ctx, action); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// mirror read/archive state onto the item itself
	switch action.Action {
	case model.UserActionRead:
		_ = a.items.SetRead(ctx, item.ID, true)
	case model.UserActionUnread:
		_ = a.items.SetRead(ctx, item.ID, false)
	case model.UserActionArchive:
		_ = a.items.SetArchived(ctx, item.ID, true)
	}

	c.JSON(http.StatusCreated, action)
}

// listActions returns recent actions, optionally filtered by item and
// action type.
func (a *API) listActions(c *gin.Context) {
	itemID := 0
	if raw := c.Query("item_id"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "item_id must be a positive integer"})
			return
		}
		itemID = n
	}
	actionType := model.UserActionType(c.Query("action"))
	if actionType != "" && !actionType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action type"})
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	actions, err := a.actions.ListRecent(c.Request.Context(),
		httpserver.UserID(c), itemID, actionType, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list actions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": actions})
}

func (a *API) actionStatistics(c *gin.Context) {
	stats, err := a.tracker.Statistics(c.Request.Context(), httpserver.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load statistics"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// processActions folds the caller's unprocessed actions into sender
// weights immediately instead of waiting for the scheduler.
func (a *API) processActions(c *gin.Context) {
	n, err := a.tracker.ProcessHistoricalActions(c.Request.Context(),
		httpserver.UserID(c), a.cfg.Scheduler.FeedbackBatch)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process actions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"processed": n})
}
