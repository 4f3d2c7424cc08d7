package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"inboxpilot/internal/httpserver"
	"inboxpilot/internal/model"
)

func (a *API) queueStatus(c *gin.Context) {
	status, err := a.pool.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read queue status"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// initializeQueue starts job processing in this process. Idempotent.
func (a *API) initializeQueue(c *gin.Context) {
	if err := a.pool.Initialize(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start worker pool"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": true})
}

// shutdownQueue stops intake and drains in-flight jobs. Idempotent.
func (a *API) shutdownQueue(c *gin.Context) {
	if err := a.pool.Shutdown(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to stop worker pool"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": false})
}

type retryFailedRequest struct {
	Limit int `json:"limit" binding:"required,min=1"`
}

func (a *API) retryFailed(c *gin.Context) {
	var req retryFailedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	moved, err := a.pool.RetryFailed(c.Request.Context(), req.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retry jobs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"retried": moved})
}

type processImmediateRequest struct {
	JobType string `json:"job_type" binding:"required"`
	ItemIDs []int  `json:"item_ids" binding:"required,min=1"`
}

// processImmediate enqueues due-now jobs for a bounded batch of items.
func (a *API) processImmediate(c *gin.Context) {
	var req processImmediateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobType := model.JobType(req.JobType)
	if jobType != model.JobScore && jobType != model.JobEnrich {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_type must be score or enrich"})
		return
	}

	payloads := make([]any, 0, len(req.ItemIDs))
	for _, id := range req.ItemIDs {
		switch jobType {
		case model.JobScore:
			payloads = append(payloads, model.ScoreJobPayload{ItemID: id})
		case model.JobEnrich:
			payloads = append(payloads, model.EnrichJobPayload{ItemID: id})
		}
	}

	accepted, err := a.pool.ProcessImmediate(c.Request.Context(),
		jobType, httpserver.UserID(c), payloads)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue jobs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accepted": accepted,
		"dropped":  len(req.ItemIDs) - accepted,
	})
}
