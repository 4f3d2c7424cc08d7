package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"inboxpilot/internal/httpserver"
)

// runIngest triggers an ingestion-and-score pass for the caller and
// reports counts per tier.
func (a *API) runIngest(c *gin.Context) {
	userID := httpserver.UserID(c)

	window := a.cfg.Scheduler.IngestWindow
	if raw := c.Query("window_minutes"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "window_minutes must be a positive integer"})
			return
		}
		window = time.Duration(minutes) * time.Minute
	}

	result, err := a.ingester.RunPass(c.Request.Context(), userID, window)
	if err != nil {
		a.logger.Error("ingestion pass failed", zap.Int("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ingestion pass failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}
