package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"inboxpilot/config"
	"inboxpilot/internal/api"
	"inboxpilot/internal/digest"
	"inboxpilot/internal/enrich"
	"inboxpilot/internal/feedback"
	"inboxpilot/internal/ingest"
	"inboxpilot/internal/jobqueue"
	"inboxpilot/internal/model"
	"inboxpilot/internal/repository"
	"inboxpilot/internal/rules"
	"inboxpilot/internal/scoring"
	"inboxpilot/internal/service"
	"inboxpilot/pkg/db"
	"inboxpilot/pkg/logger"
	"inboxpilot/pkg/mq"
	"inboxpilot/pkg/rbac"
	redisclient "inboxpilot/pkg/redis"
	"inboxpilot/pkg/util"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting api service...",
		zap.String("db_host", cfg.DB.Host),
		zap.String("port", cfg.Server.Port),
	)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	// Redis
	rdb := redisclient.NewRedisClient(cfg.Redis)
	defer rdb.Close()
	deduper := util.NewDeduperWithLogger(rdb, 24*time.Hour, log)

	// MQ Publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Repositories
	userRepo := repository.NewUserRepository(dbConn)
	itemRepo := repository.NewItemRepository(dbConn)
	scoreRepo := repository.NewScoreRepository(dbConn)
	ruleRepo := repository.NewRuleRepository(dbConn)
	digestRepo := repository.NewDigestRepository(dbConn)
	jobRepo := repository.NewJobRepository(dbConn)
	actionRepo := repository.NewActionRepository(dbConn)
	senderRepo := repository.NewSenderStatsRepository(dbConn)
	enrichmentRepo := repository.NewEnrichmentRepository(dbConn)
	logRepo := repository.NewPipelineLogRepository(dbConn)

	// Scoring
	engine := scoring.NewEngine(cfg.Scoring.Min, cfg.Scoring.Max, cfg.Scoring.NeutralScore)
	classifier, err := scoring.NewClassifier(cfg.Scoring.HighTier, cfg.Scoring.MediumTier)
	if err != nil {
		log.Fatal("Invalid tier thresholds", zap.Error(err))
	}

	// Rules
	ruleEngine := rules.NewEngine(log)
	ruleService := rules.NewService(ruleRepo, log)

	// Digests
	builder := digest.NewBuilder(itemRepo, digestRepo, deduper, publisher, log)

	// Job queue. The api process enqueues and inspects; its workers
	// stay idle unless an operator calls /queue/initialize. Handlers
	// are registered so that path is fully functional.
	enricher := enrich.NewClient(cfg.Enrich.BaseURL, log)
	pool := jobqueue.NewPool(cfg.Queue, jobRepo, publisher, log)
	jobqueue.NewHandlers(jobqueue.HandlerDeps{
		Items:       itemRepo,
		Scores:      scoreRepo,
		Rules:       ruleRepo,
		Senders:     senderRepo,
		Enrichments: enrichmentRepo,
		Enricher:    enricher,
		Builder:     builder,
		Publisher:   publisher,
		Engine:      engine,
		Classifier:  classifier,
		ScoreMin:    cfg.Scoring.Min,
		ScoreMax:    cfg.Scoring.Max,
		Logger:      log,
	}).RegisterAll(pool)

	// Ingestion
	var adapters []ingest.SourceAdapter
	if cfg.Sources.MailURL != "" {
		adapters = append(adapters, ingest.NewHTTPAdapter(model.SourceMail, cfg.Sources.MailURL))
	}
	if cfg.Sources.ChatURL != "" {
		adapters = append(adapters, ingest.NewHTTPAdapter(model.SourceChat, cfg.Sources.ChatURL))
	}
	if cfg.Sources.CalendarURL != "" {
		adapters = append(adapters, ingest.NewHTTPAdapter(model.SourceCalendar, cfg.Sources.CalendarURL))
	}
	ingester := ingest.NewService(ingest.ServiceDeps{
		Adapters:   adapters,
		Items:      itemRepo,
		Scores:     scoreRepo,
		Senders:    senderRepo,
		RuleStore:  ruleRepo,
		RuleEngine: ruleEngine,
		Engine:     engine,
		Classifier: classifier,
		Jobs:       pool,
		Publisher:  publisher,
		Deduper:    deduper,
		Logger:     log,
	})

	// Feedback
	tracker := feedback.NewTracker(actionRepo, senderRepo, log)

	// Auth
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, log)
	checker := rbac.NewChecker(cfg.Operators)

	apiServer := api.New(api.Deps{
		Auth:        authService,
		Ingester:    ingester,
		Rules:       ruleService,
		Builder:     builder,
		Pool:        pool,
		Tracker:     tracker,
		Digests:     digestRepo,
		Items:       itemRepo,
		Scores:      scoreRepo,
		Enrichments: enrichmentRepo,
		Senders:     senderRepo,
		Actions:     actionRepo,
		Logs:        logRepo,
		Checker:     checker,
		Config:      cfg,
		Logger:      log,
	})

	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: apiServer.Router(),
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down api service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	// no-op unless an operator started the in-process pool
	if err := pool.Shutdown(shutdownCtx); err != nil {
		log.Error("worker pool shutdown error", zap.Error(err))
	}

	log.Info("api service shutdown complete")
}
