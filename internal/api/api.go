// Package api exposes the pipeline over HTTP.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"inboxpilot/config"
	"inboxpilot/internal/digest"
	"inboxpilot/internal/feedback"
	"inboxpilot/internal/httpserver"
	"inboxpilot/internal/ingest"
	"inboxpilot/internal/jobqueue"
	"inboxpilot/internal/repository"
	"inboxpilot/internal/rules"
	"inboxpilot/internal/service"
	"inboxpilot/pkg/rbac"
)

type API struct {
	auth     *service.AuthService
	ingester *ingest.Service
	rules    *rules.Service
	builder  *digest.Builder
	pool     *jobqueue.Pool
	tracker  *feedback.Tracker

	digests     *repository.DigestRepository
	items       *repository.ItemRepository
	scores      *repository.ScoreRepository
	enrichments *repository.EnrichmentRepository
	senders     *repository.SenderStatsRepository
	actions     *repository.ActionRepository
	logs        *repository.PipelineLogRepository

	checker *rbac.Checker
	cfg     *config.Config
	logger  *zap.Logger
}

type Deps struct {
	Auth     *service.AuthService
	Ingester *ingest.Service
	Rules    *rules.Service
	Builder  *digest.Builder
	Pool     *jobqueue.Pool
	Tracker  *feedback.Tracker

	Digests     *repository.DigestRepository
	Items       *repository.ItemRepository
	Scores      *repository.ScoreRepository
	Enrichments *repository.EnrichmentRepository
	Senders     *repository.SenderStatsRepository
	Actions     *repository.ActionRepository
	Logs        *repository.PipelineLogRepository

	Checker *rbac.Checker
	Config  *config.Config
	Logger  *zap.Logger
}

func New(deps Deps) *API {
	return &API{
		auth:        deps.Auth,
		ingester:    deps.Ingester,
		rules:       deps.Rules,
		builder:     deps.Builder,
		pool:        deps.Pool,
		tracker:     deps.Tracker,
		digests:     deps.Digests,
		items:       deps.Items,
		scores:      deps.Scores,
		enrichments: deps.Enrichments,
		senders:     deps.Senders,
		actions:     deps.Actions,
		logs:        deps.Logs,
		checker:     deps.Checker,
		cfg:         deps.Config,
		logger:      deps.Logger,
	}
}

// Router builds the gin engine with all routes and middleware.
func (a *API) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpserver.TraceMiddleware())
	r.Use(httpserver.MetricsMiddleware())

	r.GET("/healthz", a.healthz)
	r.GET("/readyz", a.readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/auth/register", a.register)
	r.POST("/auth/login", a.login)

	authed := r.Group("/", httpserver.AuthMiddleware(a.cfg.JWT.Secret))
	{
		authed.POST("/ingest/run",
			httpserver.RequirePermission(a.checker, rbac.PermissionRunIngest), a.runIngest)

		ruleRoutes := authed.Group("/rules",
			httpserver.RequirePermission(a.checker, rbac.PermissionManageRules))
		{
			ruleRoutes.GET("", a.listRules)
			ruleRoutes.POST("", a.createRule)
			ruleRoutes.GET("/templates", a.listRuleTemplates)
			ruleRoutes.POST("/templates/:templateID", a.createRuleFromTemplate)
			ruleRoutes.GET("/:id", a.getRule)
			ruleRoutes.PUT("/:id", a.updateRule)
			ruleRoutes.DELETE("/:id", a.deleteRule)
		}

		digestRoutes := authed.Group("/digests",
			httpserver.RequirePermission(a.checker, rbac.PermissionBuildDigest))
		{
			digestRoutes.GET("", a.listDigests)
			digestRoutes.POST("/build/:windowType", a.buildDigest)
			digestRoutes.GET("/:windowType/:key", a.getDigest)
			digestRoutes.POST("/weekly-actions", a.applyWeeklyAction)
		}

		actionRoutes := authed.Group("/actions",
			httpserver.RequirePermission(a.checker, rbac.PermissionRecordAction))
		{
			actionRoutes.POST("", a.recordAction)
			actionRoutes.GET("", a.listActions)
			actionRoutes.GET("/statistics", a.actionStatistics)
			actionRoutes.POST("/process", a.processActions)
		}

		authed.GET("/items/:id", a.getItem)
		authed.GET("/senders", a.listSenders)
		authed.PUT("/senders/vip", a.setSenderVIP)
		authed.GET("/logs", a.listLogs)

		queueRoutes := authed.Group("/queue")
		{
			queueRoutes.GET("/status",
				httpserver.RequirePermission(a.checker, rbac.PermissionQueueControl), a.queueStatus)
			queueRoutes.POST("/initialize",
				httpserver.RequirePermission(a.checker, rbac.PermissionQueueControl), a.initializeQueue)
			queueRoutes.POST("/shutdown",
				httpserver.RequirePermission(a.checker, rbac.PermissionQueueControl), a.shutdownQueue)
			queueRoutes.POST("/retry-failed",
				httpserver.RequirePermission(a.checker, rbac.PermissionQueueRetry), a.retryFailed)
			queueRoutes.POST("/process-immediate",
				httpserver.RequirePermission(a.checker, rbac.PermissionQueueControl), a.processImmediate)
		}
	}
	return r
}

func (a *API) healthz(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}

func (a *API) readyz(c *gin.Context) {
	status, err := a.pool.Status(c.Request.Context())
	if err != nil {
		c.JSON(503, gin.H{"status": "degraded", "error": "store unreachable"})
		return
	}
	c.JSON(200, gin.H{"status": "ok", "pool_running": status.Running})
}
