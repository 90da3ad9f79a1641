package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// MigrateCmd applies the SQL migrations and exits.
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply every migration in POSTGRES_MIGRATIONS_DIR to POSTGRES_DSN.
Migrations are idempotent; running them twice is harmless.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer closeContainer(c)

			fmt.Fprintf(cmd.OutOrStdout(), "%s migrations applied from %s\n",
				color.New(color.FgGreen).Sprint("✓"), c.Config.Postgres.MigrationsDir)
			return nil
		},
	}
}
