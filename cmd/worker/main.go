package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"inboxpilot/config"
	contracts "inboxpilot/contracts/mq"
	"inboxpilot/internal/digest"
	"inboxpilot/internal/enrich"
	"inboxpilot/internal/feedback"
	"inboxpilot/internal/ingest"
	"inboxpilot/internal/jobqueue"
	"inboxpilot/internal/model"
	"inboxpilot/internal/mqhandler"
	"inboxpilot/internal/repository"
	"inboxpilot/internal/rules"
	"inboxpilot/internal/scheduler"
	"inboxpilot/internal/scoring"
	"inboxpilot/pkg/db"
	"inboxpilot/pkg/logger"
	"inboxpilot/pkg/mq"
	redisclient "inboxpilot/pkg/redis"
	"inboxpilot/pkg/util"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting worker service...",
		zap.String("db_host", cfg.DB.Host),
		zap.String("mq_url", cfg.MQ.URL),
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

	// Declare the DLQ topology so dead jobs have somewhere to land.
	mqConn, err := mq.NewConnection(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to connect to MQ", zap.Error(err))
	}
	defer mqConn.Close()
	ch, err := mqConn.Channel()
	if err != nil {
		log.Fatal("Failed to open MQ channel", zap.Error(err))
	}
	if err := mq.DeclareExchange(ch); err != nil {
		log.Fatal("Failed to declare exchange", zap.Error(err))
	}
	if err := mq.DeclareDLQExchange(ch); err != nil {
		log.Fatal("Failed to declare DLQ exchange", zap.Error(err))
	}
	if _, err := mq.DeclareDLQQueue(ch, contracts.RoutingKeyJobDead); err != nil {
		log.Fatal("Failed to declare DLQ queue", zap.Error(err))
	}
	ch.Close()

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

	ruleEngine := rules.NewEngine(log)
	builder := digest.NewBuilder(itemRepo, digestRepo, deduper, publisher, log)
	enricher := enrich.NewClient(cfg.Enrich.BaseURL, log)

	// Job queue
	pool := jobqueue.NewPool(cfg.Queue, jobRepo, publisher, log)
	handlers := jobqueue.NewHandlers(jobqueue.HandlerDeps{
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
	})
	handlers.RegisterAll(pool)

	if err := pool.Initialize(context.Background()); err != nil {
		log.Fatal("Failed to start worker pool", zap.Error(err))
	}
	log.Info("Worker pool started", zap.Int("workers", cfg.Queue.Workers))

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

	// Scheduler
	sched, err := scheduler.New(userRepo, ingester, ruleRepo, ruleEngine, pool, tracker, *cfg, log)
	if err != nil {
		log.Fatal("Failed to build scheduler", zap.Error(err))
	}
	sched.Start()
	log.Info("Scheduler started", zap.String("timezone", cfg.Scheduler.Timezone))

	// Pipeline log consumers
	logHandler := mqhandler.NewPipelineLogHandler(logRepo, deduper, log)

	log.Info("Initializing scored-item consumer", zap.String("queue", "item.scored.log.q"))
	consumerScored, err := mq.NewConsumer(cfg.MQ.URL, "item.scored.log.q", contracts.RoutingKeyItemScored, log)
	if err != nil {
		log.Fatal("failed to init scored consumer", zap.Error(err))
	}
	consumerScored.SetHandler(logHandler.HandleItemScored)
	go func() {
		if err := consumerScored.StartConsuming(); err != nil {
			log.Fatal("scored consumer failed", zap.Error(err))
		}
	}()
	defer consumerScored.Close()

	log.Info("Initializing digest consumer", zap.String("queue", "digest.generated.log.q"))
	consumerDigest, err := mq.NewConsumer(cfg.MQ.URL, "digest.generated.log.q", contracts.RoutingKeyDigestGenerated, log)
	if err != nil {
		log.Fatal("failed to init digest consumer", zap.Error(err))
	}
	consumerDigest.SetHandler(logHandler.HandleDigestGenerated)
	go func() {
		if err := consumerDigest.StartConsuming(); err != nil {
			log.Fatal("digest consumer failed", zap.Error(err))
		}
	}()
	defer consumerDigest.Close()

	log.Info("worker service is fully initialized and running")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down worker service...")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Queue.DrainTimeout+5*time.Second)
	defer cancel()
	if err := pool.Shutdown(shutdownCtx); err != nil {
		log.Error("worker pool shutdown error", zap.Error(err))
	}

	log.Info("worker service shutdown complete")
}
