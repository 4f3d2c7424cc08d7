// Package scheduler drives the periodic side of the pipeline:
// ingestion passes, digest windows and feedback reprocessing.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"inboxpilot/config"
	"inboxpilot/internal/ingest"
	"inboxpilot/internal/model"
	"inboxpilot/internal/rules"
)

type UserLister interface {
	ListIDs(ctx context.Context) ([]int, error)
}

type RuleLister interface {
	ListEnabledByUser(ctx context.Context, userID int) ([]model.AutomationRule, error)
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, jobType model.JobType, userID int, payload any, runAt time.Time) (*model.Job, error)
}

type FeedbackProcessor interface {
	ProcessHistoricalActions(ctx context.Context, userID, limit int) (int, error)
}

type Scheduler struct {
	cron       *cron.Cron
	users      UserLister
	ingester   *ingest.Service
	ruleStore  RuleLister
	ruleEngine *rules.Engine
	jobs       JobEnqueuer
	feedback   FeedbackProcessor
	cfg        config.Config
	logger     *zap.Logger

	mu            sync.Mutex
	lastRuleSweep time.Time
}

func New(users UserLister, ingester *ingest.Service, ruleStore RuleLister, ruleEngine *rules.Engine, jobs JobEnqueuer, feedback FeedbackProcessor, cfg config.Config, logger *zap.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Scheduler.Timezone, err)
	}

	s := &Scheduler{
		users:         users,
		ingester:      ingester,
		ruleStore:     ruleStore,
		ruleEngine:    ruleEngine,
		jobs:          jobs,
		feedback:      feedback,
		cfg:           cfg,
		logger:        logger,
		lastRuleSweep: time.Now(),
	}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{logger})),
	)

	if err := s.registerJobs(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) registerJobs() error {
	ingestSpec := fmt.Sprintf("@every %s", s.cfg.Scheduler.IngestInterval)
	if _, err := s.cron.AddFunc(ingestSpec, s.runIngestion); err != nil {
		return fmt.Errorf("failed to schedule ingestion: %w", err)
	}

	windows := []struct {
		window model.WindowType
		at     string
		weekly bool
	}{
		{model.WindowMorning, s.cfg.Digest.MorningAt, false},
		{model.WindowAfternoon, s.cfg.Digest.AfternoonAt, false},
		{model.WindowEvening, s.cfg.Digest.EveningAt, false},
		{model.WindowWeekly, s.cfg.Digest.WeeklyAt, true},
	}
	for _, w := range windows {
		spec, err := cronSpec(w.at, w.weekly)
		if err != nil {
			return fmt.Errorf("invalid digest time for %s: %w", w.window, err)
		}
		window := w.window
		if _, err := s.cron.AddFunc(spec, func() { s.enqueueDigests(window) }); err != nil {
			return fmt.Errorf("failed to schedule %s digest: %w", w.window, err)
		}
	}

	if _, err := s.cron.AddFunc("@every 1m", s.runScheduleRules); err != nil {
		return fmt.Errorf("failed to schedule rule sweep: %w", err)
	}

	if _, err := s.cron.AddFunc("@hourly", s.runFeedback); err != nil {
		return fmt.Errorf("failed to schedule feedback processing: %w", err)
	}
	return nil
}

// cronSpec turns "HH:MM" into a cron expression, Mondays only when
// weekly.
func cronSpec(at string, weekly bool) (string, error) {
	parts := strings.Split(at, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("expected HH:MM, got %q", at)
	}
	dow := "*"
	if weekly {
		dow = "1"
	}
	return fmt.Sprintf("%s %s * * %s", parts[1], parts[0], dow), nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.Duration("ingest_interval", s.cfg.Scheduler.IngestInterval),
		zap.String("timezone", s.cfg.Scheduler.Timezone))
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runIngestion() {
	ctx := context.Background()
	ids, err := s.users.ListIDs(ctx)
	if err != nil {
		s.logger.Error("failed to list users for ingestion", zap.Error(err))
		return
	}
	for _, userID := range ids {
		if _, err := s.ingester.RunPass(ctx, userID, s.cfg.Scheduler.IngestWindow); err != nil {
			s.logger.Error("ingestion pass failed",
				zap.Int("user_id", userID), zap.Error(err))
		}
	}
}

func (s *Scheduler) enqueueDigests(window model.WindowType) {
	ctx := context.Background()
	ids, err := s.users.ListIDs(ctx)
	if err != nil {
		s.logger.Error("failed to list users for digest", zap.Error(err))
		return
	}
	now := time.Now()
	for _, userID := range ids {
		_, err := s.jobs.Enqueue(ctx, model.JobDigest, userID,
			model.DigestJobPayload{WindowType: string(window)}, now)
		if err != nil {
			s.logger.Error("failed to enqueue digest job",
				zap.Int("user_id", userID),
				zap.String("window", string(window)),
				zap.Error(err))
		}
	}
	s.logger.Info("digest jobs enqueued",
		zap.String("window", string(window)),
		zap.Int("users", len(ids)))
}

// runScheduleRules enqueues a rule_action job for every schedule rule
// whose cron expression fired since the previous sweep. Sweep windows
// abut, so a tick delayed by a slow run still covers every firing once.
func (s *Scheduler) runScheduleRules() {
	now := time.Now()
	s.mu.Lock()
	from := s.lastRuleSweep
	s.lastRuleSweep = now
	s.mu.Unlock()

	ctx := context.Background()
	ids, err := s.users.ListIDs(ctx)
	if err != nil {
		s.logger.Error("failed to list users for schedule rules", zap.Error(err))
		return
	}
	for _, userID := range ids {
		ruleSet, err := s.ruleStore.ListEnabledByUser(ctx, userID)
		if err != nil {
			s.logger.Error("failed to load rules for schedule sweep",
				zap.Int("user_id", userID), zap.Error(err))
			continue
		}
		for _, due := range s.ruleEngine.DueScheduleRules(userID, ruleSet, from, now) {
			_, err := s.jobs.Enqueue(ctx, model.JobRuleAction, userID, model.RuleActionJobPayload{
				RuleID:       due.RuleID,
				RuleName:     due.RuleName,
				ActionType:   due.ActionType,
				ActionConfig: due.ActionConfig,
			}, now)
			if err != nil {
				s.logger.Error("failed to enqueue scheduled rule action",
					zap.Int("rule_id", due.RuleID),
					zap.Int("user_id", userID),
					zap.Error(err))
			}
		}
	}
}

func (s *Scheduler) runFeedback() {
	ctx := context.Background()
	ids, err := s.users.ListIDs(ctx)
	if err != nil {
		s.logger.Error("failed to list users for feedback", zap.Error(err))
		return
	}
	for _, userID := range ids {
		n, err := s.feedback.ProcessHistoricalActions(ctx, userID, s.cfg.Scheduler.FeedbackBatch)
		if err != nil {
			s.logger.Error("feedback processing failed",
				zap.Int("user_id", userID), zap.Error(err))
			continue
		}
		if n > 0 {
			s.logger.Info("feedback processed",
				zap.Int("user_id", userID), zap.Int("actions", n))
		}
	}
}

// cronLogger adapts zap to the cron logger contract.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
