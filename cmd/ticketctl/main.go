package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spec-kit/ticket-intake/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ticketctl",
		Short: "Operator tooling for the ticket intake service",
		Long: `ticketctl works directly against the ticket database. It applies
migrations, replays the intake workflow for a ticket, shows workflow run
history and bootstraps staff accounts.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.MigrateCmd())
	rootCmd.AddCommand(cli.IntakeCmd())
	rootCmd.AddCommand(cli.RunsCmd())
	rootCmd.AddCommand(cli.AccountCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
