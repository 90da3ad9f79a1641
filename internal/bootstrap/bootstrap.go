// Package bootstrap assembles the stores, adapters and workflows shared by
// the API server and the operator CLI.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/classifier"
	"github.com/spec-kit/ticket-intake/internal/config"
	"github.com/spec-kit/ticket-intake/internal/matcher"
	"github.com/spec-kit/ticket-intake/internal/notifier"
	"github.com/spec-kit/ticket-intake/internal/observability"
	"github.com/spec-kit/ticket-intake/internal/persistence"
	"github.com/spec-kit/ticket-intake/internal/repository"
	"github.com/spec-kit/ticket-intake/internal/workflow"
)

// Options tune what New sets up.
type Options struct {
	// Migrate applies SQL migrations when Postgres is configured.
	Migrate bool
	// RequirePostgres fails instead of falling back to the memory store.
	RequirePostgres bool
}

// Container holds the wired components.
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Postgres   *persistence.Postgres
	Redis      *persistence.Redis
	Tickets    repository.TicketRepository
	Accounts   repository.AccountRepository
	Runs       repository.RunRepository
	Notifier   notifier.Notifier
	Classifier classifier.Classifier
	Intake     *workflow.Intake
	Signup     *workflow.Signup
}

// New connects to the configured backends and wires the workflows. Redis is
// only connected when it carries the event queue.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, cfg.App.Name, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	c.Postgres = pg

	if pg.Configured() {
		if opts.Migrate {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				pg.Close()
				return nil, err
			}
		}
		pool := pg.PoolHandle()
		c.Tickets = repository.NewTicketRepository(pool)
		c.Accounts = repository.NewAccountRepository(pool)
		c.Runs = repository.NewRunRepository(pool)
	} else {
		if opts.RequirePostgres {
			return nil, fmt.Errorf("POSTGRES_DSN is required")
		}
		logger.Warn("using in-memory store; data is lost on restart")
		store := repository.NewMemoryStore()
		c.Tickets = store.Tickets()
		c.Accounts = store.Accounts()
		c.Runs = store.Runs()
	}

	if cfg.Events.Backend == config.EventsBackendRedis {
		if c.Redis, err = persistence.NewRedis(ctx, cfg.Redis, logger); err != nil {
			c.Close()
			return nil, err
		}
	}

	if c.Notifier, err = newNotifier(cfg.Notification, logger); err != nil {
		c.Close()
		return nil, err
	}
	c.Classifier = newClassifier(cfg.Classifier, logger)

	runner := workflow.NewRunner(workflow.RunnerDependencies{
		Runs:    c.Runs,
		Logger:  logger,
		Metrics: c.Metrics,
		Options: workflow.Options{
			MaxAttempts: cfg.Workflow.MaxAttempts,
			Backoff:     cfg.Workflow.RetryBackoff(),
			StepTimeout: cfg.Workflow.StepTimeout(),
		},
	})
	c.Intake = workflow.NewIntake(workflow.IntakeDependencies{
		Tickets:    c.Tickets,
		Classifier: c.Classifier,
		Assigner:   matcher.New(c.Accounts),
		Notifier:   c.Notifier,
		Runner:     runner,

		ClassifyTimeout: cfg.Classifier.Timeout(),
	})
	c.Signup = workflow.NewSignup(workflow.SignupDependencies{
		Accounts: c.Accounts,
		Notifier: c.Notifier,
		Runner:   runner,
	})
	return c, nil
}

// Close releases backend connections.
func (c *Container) Close() {
	c.Redis.Close()
	c.Postgres.Close()
}

func newNotifier(cfg config.NotificationConfig, logger *zap.Logger) (notifier.Notifier, error) {
	if cfg.SMTPHost == "" {
		logger.Info("NOTIFY_SMTP_HOST not set; emails are logged only")
		return notifier.NewLog(logger), nil
	}
	return notifier.NewSMTP(notifier.SMTPOptions{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.EmailFrom,
	})
}

func newClassifier(cfg config.ClassifierConfig, logger *zap.Logger) classifier.Classifier {
	if cfg.Endpoint == "" {
		logger.Warn("CLASSIFIER_ENDPOINT not set; tickets will not be classified")
		return classifier.Disabled{}
	}
	return classifier.NewLLM(nil, classifier.LLMOptions{
		Endpoint:  cfg.Endpoint,
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Timeout:   cfg.Timeout(),
	})
}
