package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Reopen the latest failed or interrupted run",
	Long: `Retry finds the most recent run that failed or never finished,
returns its failed checks to pending, and drives them again. Checks
that were skipped keep their skip verdict; start a fresh run to
re-evaluate everything.`,
	Args: cobra.NoArgs,
	RunE: runRetry,
}

func runRetry(cmd *cobra.Command, args []string) error {
	plan, err := loadPlan(nil)
	if err != nil {
		return err
	}

	orch, cleanup := newOrchestrator(plan)
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome, err := orch.RetryFailed(ctx)
	if err != nil {
		return err
	}
	return printOutcome(outcome)
}
