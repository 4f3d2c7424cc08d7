package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type MQConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// ScoringConfig holds the score range and tier thresholds.
// Thresholds partition [Min, Max]: final >= HighTier is high,
// final >= MediumTier is medium, everything below is low.
type ScoringConfig struct {
	Min          float64 `yaml:"min"`
	Max          float64 `yaml:"max"`
	HighTier     float64 `yaml:"high_tier"`
	MediumTier   float64 `yaml:"medium_tier"`
	NeutralScore float64 `yaml:"neutral_score"`
}

type QueueConfig struct {
	Workers        int           `yaml:"workers"`
	MaxAttempts    int           `yaml:"max_attempts"`
	PollInterval   time.Duration `yaml:"-"`
	BackoffBase    time.Duration `yaml:"-"`
	BackoffMax     time.Duration `yaml:"-"`
	DrainTimeout   time.Duration `yaml:"-"`
	ImmediateLimit int           `yaml:"immediate_limit"`
}

func (q *QueueConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain QueueConfig
	var raw struct {
		plain        `yaml:",inline"`
		PollInterval string `yaml:"poll_interval"`
		BackoffBase  string `yaml:"backoff_base"`
		BackoffMax   string `yaml:"backoff_max"`
		DrainTimeout string `yaml:"drain_timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*q = QueueConfig(raw.plain)
	var err error
	if q.PollInterval, err = parseDuration(raw.PollInterval); err != nil {
		return err
	}
	if q.BackoffBase, err = parseDuration(raw.BackoffBase); err != nil {
		return err
	}
	if q.BackoffMax, err = parseDuration(raw.BackoffMax); err != nil {
		return err
	}
	if q.DrainTimeout, err = parseDuration(raw.DrainTimeout); err != nil {
		return err
	}
	return nil
}

type DigestConfig struct {
	MorningAt   string `yaml:"morning_at"`   // "07:00"
	AfternoonAt string `yaml:"afternoon_at"` // "13:00"
	EveningAt   string `yaml:"evening_at"`   // "19:00"
	WeeklyAt    string `yaml:"weekly_at"`    // "08:00", fires Mondays
}

type EnrichConfig struct {
	BaseURL string `yaml:"base_url"`
}

// SourcesConfig holds the provider endpoints the ingestion adapters
// poll. An empty URL disables that source.
type SourcesConfig struct {
	MailURL     string `yaml:"mail_url"`
	ChatURL     string `yaml:"chat_url"`
	CalendarURL string `yaml:"calendar_url"`
}

type SchedulerConfig struct {
	IngestInterval time.Duration `yaml:"-"`
	IngestWindow   time.Duration `yaml:"-"`
	FeedbackBatch  int           `yaml:"feedback_batch"`
	Timezone       string        `yaml:"timezone"`
}

// UnmarshalYAML accepts durations in "5m" form; yaml cannot decode
// those into time.Duration directly.
func (s *SchedulerConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain SchedulerConfig
	var raw struct {
		plain          `yaml:",inline"`
		IngestInterval string `yaml:"ingest_interval"`
		IngestWindow   string `yaml:"ingest_window"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*s = SchedulerConfig(raw.plain)
	var err error
	if s.IngestInterval, err = parseDuration(raw.IngestInterval); err != nil {
		return err
	}
	if s.IngestWindow, err = parseDuration(raw.IngestWindow); err != nil {
		return err
	}
	return nil
}

func parseDuration(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}

type Config struct {
	DB        DBConfig        `yaml:"db"`
	MQ        MQConfig        `yaml:"mq"`
	Redis     RedisConfig     `yaml:"redis"`
	JWT       JWTConfig       `yaml:"jwt"`
	Server    ServerConfig    `yaml:"server"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Queue     QueueConfig     `yaml:"queue"`
	Digest    DigestConfig    `yaml:"digest"`
	Enrich    EnrichConfig    `yaml:"enrich"`
	Sources   SourcesConfig   `yaml:"sources"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Operators []int           `yaml:"operators"` // user ids granted queue control
}

func Load() *Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		log.Fatalf("failed to decode %s: %v", path, err)
	}

	overrideFromEnv(&cfg)
	applyDefaults(&cfg)

	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Scoring.Max == 0 {
		cfg.Scoring.Max = 100
	}
	if cfg.Scoring.HighTier == 0 {
		cfg.Scoring.HighTier = 70
	}
	if cfg.Scoring.MediumTier == 0 {
		cfg.Scoring.MediumTier = 40
	}
	if cfg.Scoring.NeutralScore == 0 {
		cfg.Scoring.NeutralScore = 50
	}
	if cfg.Queue.Workers == 0 {
		cfg.Queue.Workers = 4
	}
	if cfg.Queue.MaxAttempts == 0 {
		cfg.Queue.MaxAttempts = 3
	}
	if cfg.Queue.PollInterval == 0 {
		cfg.Queue.PollInterval = time.Second
	}
	if cfg.Queue.BackoffBase == 0 {
		cfg.Queue.BackoffBase = 5 * time.Second
	}
	if cfg.Queue.BackoffMax == 0 {
		cfg.Queue.BackoffMax = 5 * time.Minute
	}
	if cfg.Queue.DrainTimeout == 0 {
		cfg.Queue.DrainTimeout = 30 * time.Second
	}
	if cfg.Queue.ImmediateLimit == 0 {
		cfg.Queue.ImmediateLimit = 50
	}
	if cfg.Digest.MorningAt == "" {
		cfg.Digest.MorningAt = "07:00"
	}
	if cfg.Digest.AfternoonAt == "" {
		cfg.Digest.AfternoonAt = "13:00"
	}
	if cfg.Digest.EveningAt == "" {
		cfg.Digest.EveningAt = "19:00"
	}
	if cfg.Digest.WeeklyAt == "" {
		cfg.Digest.WeeklyAt = "08:00"
	}
	if cfg.Scheduler.IngestInterval == 0 {
		cfg.Scheduler.IngestInterval = 5 * time.Minute
	}
	if cfg.Scheduler.IngestWindow == 0 {
		cfg.Scheduler.IngestWindow = 15 * time.Minute
	}
	if cfg.Scheduler.FeedbackBatch == 0 {
		cfg.Scheduler.FeedbackBatch = 200
	}
	if cfg.Scheduler.Timezone == "" {
		cfg.Scheduler.Timezone = "UTC"
	}
}

func overrideFromEnv(cfg *Config) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DB.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.DB.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DB.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DB.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.DB.Name = name
	}

	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.MQ.URL = url
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.JWT.Secret = secret
	}

	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Server.Port = port
	}

	if url := os.Getenv("ENRICH_BASE_URL"); url != "" {
		cfg.Enrich.BaseURL = url
	}
}
