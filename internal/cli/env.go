// Package cli implements the ticketctl commands.
package cli

import (
	"context"
	"fmt"

	"github.com/spec-kit/ticket-intake/internal/bootstrap"
	"github.com/spec-kit/ticket-intake/internal/config"
	"github.com/spec-kit/ticket-intake/internal/observability"
)

// open loads configuration and connects to Postgres. Commands that touch
// data refuse to run against the throwaway memory store.
func open(ctx context.Context, migrate bool) (*bootstrap.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	// stdout belongs to command output
	cfg.Logger.Level = "warn"
	cfg.Logger.Output = "stderr"
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	c, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{Migrate: migrate, RequirePostgres: true})
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return c, nil
}

func closeContainer(c *bootstrap.Container) {
	c.Close()
	_ = c.Logger.Sync()
}
