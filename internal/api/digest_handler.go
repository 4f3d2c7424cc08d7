package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"inboxpilot/internal/digest"
	"inboxpilot/internal/httpserver"
	"inboxpilot/internal/model"
)

func parseWindowType(raw string) (model.WindowType, bool) {
	switch wt := model.WindowType(raw); wt {
	case model.WindowMorning, model.WindowAfternoon, model.WindowEvening,
		model.WindowManual, model.WindowWeekly:
		return wt, true
	}
	return "", false
}

func (a *API) buildDigest(c *gin.Context) {
	userID := httpserver.UserID(c)
	windowType, ok := parseWindowType(c.Param("windowType"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown window type"})
		return
	}

	ctx := c.Request.Context()
	now := time.Now()
	generate, err := a.builder.ShouldGenerate(ctx, userID, windowType, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check digest state"})
		return
	}
	if !generate {
		// Already generated; hand back the stored digest instead of
		// treating the repeat as an error.
		d, err := a.builder.Existing(ctx, userID, windowType, now)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load digest"})
			return
		}
		c.JSON(http.StatusOK, d)
		return
	}

	d, err := a.builder.Build(ctx, userID, windowType, now)
	if err != nil {
		a.logger.Error("digest build failed",
			zap.Int("user_id", userID),
			zap.String("window", string(windowType)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "digest build failed"})
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (a *API) listDigests(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	digests, err := a.digests.ListByUser(c.Request.Context(), httpserver.UserID(c), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list digests"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"digests": digests})
}

func (a *API) getDigest(c *gin.Context) {
	windowType, ok := parseWindowType(c.Param("windowType"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown window type"})
		return
	}

	d, err := a.digests.FindByKey(c.Request.Context(),
		httpserver.UserID(c), windowType, c.Param("key"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "digest not found"})
		return
	}
	c.JSON(http.StatusOK, d)
}

type weeklyActionRequest struct {
	WindowKey string `json:"window_key" binding:"required"`
	Category  string `json:"category" binding:"required"`
	Action    string `json:"action" binding:"required"`
}

func (a *API) applyWeeklyAction(c *gin.Context) {
	var req weeklyActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := a.builder.ApplyBulkAction(c.Request.Context(),
		httpserver.UserID(c), req.WindowKey, req.Category, digest.BulkAction(req.Action))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
