package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"inboxpilot/internal/httpserver"
)

// getItem returns an item with its score and, when present, the AI
// enrichment.
func (a *API) getItem(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	userID := httpserver.UserID(c)
	ctx := c.Request.Context()

	item, err := a.items.FindByID(ctx, id)
	if err != nil || item.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}

	resp := gin.H{"item": item}
	if score, err := a.scores.FindByItem(ctx, userID, item.ID); err == nil {
		resp["score"] = score
	}
	if enrichment, err := a.enrichments.FindByItem(ctx, item.ID); err == nil {
		resp["enrichment"] = enrichment
	}
	c.JSON(http.StatusOK, resp)
}

type vipRequest struct {
	Sender string  `json:"sender" binding:"required"`
	VIP    bool    `json:"vip"`
	Boost  float64 `json:"boost"`
}

func (a *API) setSenderVIP(c *gin.Context) {
	var req vipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.VIP && req.Boost <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "vip senders need a positive boost"})
		return
	}

	err := a.senders.SetVIP(c.Request.Context(),
		httpserver.UserID(c), req.Sender, req.VIP, req.Boost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update sender"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) listSenders(c *gin.Context) {
	stats, err := a.senders.ListBySender(c.Request.Context(), httpserver.UserID(c), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list senders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"senders": stats})
}

func (a *API) listLogs(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	logs, err := a.logs.ListRecentByUser(c.Request.Context(), httpserver.UserID(c), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
