package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported event backends.
const (
	EventsBackendMemory = "memory"
	EventsBackendRedis  = "redis"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig          `yaml:"app"`
	Postgres     PostgresConfig     `yaml:"postgres"`
	Redis        RedisConfig        `yaml:"redis"`
	Logger       LoggerConfig       `yaml:"logger"`
	Auth         AuthConfig         `yaml:"auth"`
	Notification NotificationConfig `yaml:"notification"`
	Classifier   ClassifierConfig   `yaml:"classifier"`
	Workflow     WorkflowConfig     `yaml:"workflow"`
	Events       EventsConfig       `yaml:"events"`
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string `yaml:"name"`
	Env                   string `yaml:"env"`
	Host                  string `yaml:"host"`
	Port                  string `yaml:"port"`
	Version               string `yaml:"version"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	MaxConns       int32  `yaml:"max_conns"`
	MinConns       int32  `yaml:"min_conns"`
	RunMigrations  bool   `yaml:"run_migrations"`
	MigrationsDir  string `yaml:"migrations_dir"`
	ConnMaxIdleSec int32  `yaml:"conn_max_idle_seconds"`
	ConnMaxLifeSec int32  `yaml:"conn_max_life_seconds"`
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LoggerConfig configures logging behavior. Output is a zap sink path,
// "stdout" when empty.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Output string `yaml:"output"`
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string `yaml:"jwt_secret"`
	AccessTokenTTLMinutes int    `yaml:"access_token_ttl_minutes"`
	BcryptCost            int    `yaml:"bcrypt_cost"`
}

// NotificationConfig holds SMTP settings. An empty SMTPHost selects the
// logging notifier.
type NotificationConfig struct {
	EmailFrom    string `yaml:"email_from"`
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUsername string `yaml:"smtp_username"`
	SMTPPassword string `yaml:"smtp_password"`
}

// ClassifierConfig points at an LLM Messages endpoint. An empty Endpoint
// disables classification; every ticket is then treated as unclassified.
type ClassifierConfig struct {
	Endpoint       string `yaml:"endpoint"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	MaxTokens      int    `yaml:"max_tokens"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// WorkflowConfig controls step retry behaviour.
type WorkflowConfig struct {
	MaxAttempts        int `yaml:"max_attempts"`
	RetryBackoffMillis int `yaml:"retry_backoff_millis"`
	StepTimeoutSeconds int `yaml:"step_timeout_seconds"`
}

// EventsConfig selects how ticket events reach the worker.
type EventsConfig struct {
	Backend           string `yaml:"backend"`
	QueueKey          string `yaml:"queue_key"`
	WorkerConcurrency int    `yaml:"worker_concurrency"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		App: AppConfig{
			Name:                  "ticket-intake",
			Env:                   "development",
			Host:                  "0.0.0.0",
			Port:                  "8080",
			Version:               "dev",
			RequestTimeoutSeconds: 30,
		},
		Postgres: PostgresConfig{
			MaxConns:       10,
			MinConns:       2,
			RunMigrations:  true,
			MigrationsDir:  "migrations",
			ConnMaxIdleSec: 30,
			ConnMaxLifeSec: 300,
		},
		Redis: RedisConfig{
			Addr: "127.0.0.1:6379",
		},
		Logger: LoggerConfig{
			Level: "info",
		},
		Auth: AuthConfig{
			JWTSecret:             "dev-secret",
			AccessTokenTTLMinutes: 60,
			BcryptCost:            12,
		},
		Notification: NotificationConfig{
			EmailFrom: "Ticket Intake <no-reply@example.com>",
			SMTPPort:  587,
		},
		Classifier: ClassifierConfig{
			Model:          "claude-sonnet-4-5",
			MaxTokens:      1024,
			TimeoutSeconds: 20,
		},
		Workflow: WorkflowConfig{
			MaxAttempts:        2,
			RetryBackoffMillis: 500,
			StepTimeoutSeconds: 30,
		},
		Events: EventsConfig{
			Backend:           EventsBackendMemory,
			QueueKey:          "ticket-intake:events",
			WorkerConcurrency: 4,
		},
	}
}

// Load reads configuration from an optional YAML file (CONFIG_FILE) and
// then environment variables, which take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", strconv.Itoa(cfg.Redis.DB)))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnv("APP_PORT", cfg.App.Port)
	cfg.App.Version = getEnv("APP_VERSION", cfg.App.Version)
	cfg.App.RequestTimeoutSeconds = getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", cfg.App.RequestTimeoutSeconds)

	cfg.Postgres.DSN = getEnv("POSTGRES_DSN", cfg.Postgres.DSN)
	cfg.Postgres.MaxConns = int32(getEnvAsInt("POSTGRES_MAX_CONNS", int(cfg.Postgres.MaxConns)))
	cfg.Postgres.MinConns = int32(getEnvAsInt("POSTGRES_MIN_CONNS", int(cfg.Postgres.MinConns)))
	cfg.Postgres.RunMigrations = getEnvAsBool("POSTGRES_RUN_MIGRATIONS", cfg.Postgres.RunMigrations)
	cfg.Postgres.MigrationsDir = getEnv("POSTGRES_MIGRATIONS_DIR", cfg.Postgres.MigrationsDir)
	cfg.Postgres.ConnMaxIdleSec = int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", int(cfg.Postgres.ConnMaxIdleSec)))
	cfg.Postgres.ConnMaxLifeSec = int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", int(cfg.Postgres.ConnMaxLifeSec)))

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = redisDB

	cfg.Logger.Level = getEnv("LOG_LEVEL", cfg.Logger.Level)
	cfg.Logger.Output = getEnv("LOG_OUTPUT", cfg.Logger.Output)

	cfg.Auth.JWTSecret = getEnv("AUTH_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.AccessTokenTTLMinutes = getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", cfg.Auth.AccessTokenTTLMinutes)
	cfg.Auth.BcryptCost = getEnvAsInt("AUTH_BCRYPT_COST", cfg.Auth.BcryptCost)

	cfg.Notification.EmailFrom = getEnv("NOTIFY_EMAIL_FROM", cfg.Notification.EmailFrom)
	cfg.Notification.SMTPHost = getEnv("NOTIFY_SMTP_HOST", cfg.Notification.SMTPHost)
	cfg.Notification.SMTPPort = getEnvAsInt("NOTIFY_SMTP_PORT", cfg.Notification.SMTPPort)
	cfg.Notification.SMTPUsername = getEnv("NOTIFY_SMTP_USER", cfg.Notification.SMTPUsername)
	cfg.Notification.SMTPPassword = getEnv("NOTIFY_SMTP_PASS", cfg.Notification.SMTPPassword)

	cfg.Classifier.Endpoint = getEnv("CLASSIFIER_ENDPOINT", cfg.Classifier.Endpoint)
	cfg.Classifier.APIKey = getEnv("CLASSIFIER_API_KEY", cfg.Classifier.APIKey)
	cfg.Classifier.Model = getEnv("CLASSIFIER_MODEL", cfg.Classifier.Model)
	cfg.Classifier.MaxTokens = getEnvAsInt("CLASSIFIER_MAX_TOKENS", cfg.Classifier.MaxTokens)
	cfg.Classifier.TimeoutSeconds = getEnvAsInt("CLASSIFIER_TIMEOUT_SECONDS", cfg.Classifier.TimeoutSeconds)

	cfg.Workflow.MaxAttempts = getEnvAsInt("WORKFLOW_MAX_ATTEMPTS", cfg.Workflow.MaxAttempts)
	cfg.Workflow.RetryBackoffMillis = getEnvAsInt("WORKFLOW_RETRY_BACKOFF_MILLIS", cfg.Workflow.RetryBackoffMillis)
	cfg.Workflow.StepTimeoutSeconds = getEnvAsInt("WORKFLOW_STEP_TIMEOUT_SECONDS", cfg.Workflow.StepTimeoutSeconds)

	cfg.Events.Backend = strings.ToLower(getEnv("EVENTS_BACKEND", cfg.Events.Backend))
	cfg.Events.QueueKey = getEnv("EVENTS_QUEUE_KEY", cfg.Events.QueueKey)
	cfg.Events.WorkerConcurrency = getEnvAsInt("WORKER_CONCURRENCY", cfg.Events.WorkerConcurrency)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile overlays the YAML document at path onto cfg. Keys missing from
// the file keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Workflow.MaxAttempts < 1 {
		errs = append(errs, errors.New("WORKFLOW_MAX_ATTEMPTS must be at least 1"))
	}
	if c.Workflow.RetryBackoffMillis < 0 {
		errs = append(errs, errors.New("WORKFLOW_RETRY_BACKOFF_MILLIS must not be negative"))
	}
	if c.Events.WorkerConcurrency < 1 {
		errs = append(errs, errors.New("WORKER_CONCURRENCY must be at least 1"))
	}
	if step := c.Workflow.StepTimeout(); c.Classifier.Endpoint != "" && step > 0 && c.Classifier.Timeout() >= step {
		errs = append(errs, fmt.Errorf("CLASSIFIER_TIMEOUT_SECONDS (%s) must be below WORKFLOW_STEP_TIMEOUT_SECONDS (%s)",
			c.Classifier.Timeout(), step))
	}
	switch c.Events.Backend {
	case EventsBackendMemory, EventsBackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown EVENTS_BACKEND %q", c.Events.Backend))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// RetryBackoff returns the pause between step attempts.
func (w WorkflowConfig) RetryBackoff() time.Duration {
	return time.Duration(w.RetryBackoffMillis) * time.Millisecond
}

// StepTimeout returns the per-attempt deadline, or zero for none.
func (w WorkflowConfig) StepTimeout() time.Duration {
	if w.StepTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(w.StepTimeoutSeconds) * time.Second
}

// Timeout returns the classifier HTTP timeout.
func (c ClassifierConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
