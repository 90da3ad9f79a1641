package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// IntakeCmd replays the intake workflow for one ticket in the foreground.
func IntakeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "intake <ticket-id>",
		Short: "Run the intake workflow for a ticket now",
		Long: `Run the intake workflow synchronously for an existing ticket and print
the outcome of every step. The run is recorded like any event-driven run.

Examples:
  ticketctl intake 6f1c...    # classify, assign and notify`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeContainer(c)

			run, err := c.Intake.Run(cmd.Context(), args[0], "manual-"+uuid.NewString())
			if run != nil {
				printRun(cmd.OutOrStdout(), run)
			}
			return err
		},
	}
}

// RunsCmd lists recorded workflow runs for a ticket.
func RunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs <ticket-id>",
		Short: "Show workflow run history for a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeContainer(c)

			runs, err := c.Runs.ListBySubject(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "no runs recorded")
				return nil
			}
			for i := range runs {
				if i > 0 {
					fmt.Fprintln(out)
				}
				printRun(out, &runs[i])
			}
			return nil
		},
	}
}

func printRun(w io.Writer, run *domain.WorkflowRun) {
	fmt.Fprintf(w, "%s %s  %s  event=%s  %s\n",
		runStatusLabel(run.Status),
		run.Workflow,
		run.SubjectID,
		run.EventID,
		run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond),
	)
	fmt.Fprintln(w, "Step                       Tries  Outcome")
	fmt.Fprintln(w, "──────────────────────────────────────────")
	for _, step := range run.Steps {
		fmt.Fprintf(w, "%-26s %5d  %s\n", step.Name, step.Attempts, stepOutcomeLabel(step.Outcome))
		if step.Error != "" {
			fmt.Fprintf(w, "  %s\n", color.New(color.FgYellow).Sprint(step.Error))
		}
	}
}

func runStatusLabel(status domain.RunStatus) string {
	if status == domain.RunStatusSucceeded {
		return color.New(color.FgGreen).Sprint("✓")
	}
	return color.New(color.FgRed).Sprint("✗")
}

func stepOutcomeLabel(outcome domain.StepOutcome) string {
	switch outcome {
	case domain.StepOutcomeCompleted:
		return color.New(color.FgGreen).Sprint(string(outcome))
	case domain.StepOutcomeAborted:
		return color.New(color.FgYellow).Sprint(string(outcome))
	default:
		return color.New(color.FgRed).Sprint(string(outcome))
	}
}
