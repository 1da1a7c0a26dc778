package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solutionqa/solqa/internal/agent"
	"github.com/solutionqa/solqa/internal/orchestrator"
	"github.com/solutionqa/solqa/internal/qarun"
	"github.com/solutionqa/solqa/internal/scoring"
)

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run [plan]",
	Short: "Run every check in the QA plan",
	Long: `Run loads the QA plan (qa-plan.yaml by default), creates a run
record, and drives the agent CLI through every check in dependency
order. The finished run is archived with a markdown report next to
run.json.

The exit status is non-zero when the run fails or the weighted score
misses the gate.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the resolved check order without calling the agent")
}

func runRun(cmd *cobra.Command, args []string) error {
	plan, err := loadPlan(args)
	if err != nil {
		return err
	}

	if dryRun || cfg.DryRun {
		return printPlanOrder(plan)
	}

	orch, cleanup := newOrchestrator(plan)
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome, err := orch.Run(ctx)
	if err != nil {
		return err
	}
	return printOutcome(outcome)
}

// loadPlan resolves the plan path from the argument or the config.
func loadPlan(args []string) (*qarun.Plan, error) {
	path := cfg.PlanPath
	if len(args) > 0 {
		path = args[0]
	}
	return qarun.LoadPlan(path)
}

// printPlanOrder lists the checks in execution order without running
// anything. This is the dry-run output.
func printPlanOrder(plan *qarun.Plan) error {
	ordered, err := qarun.OrderChecks(plan.Checks)
	if err != nil {
		return err
	}

	fmt.Printf("Plan %q: %d checks, gate %d\n\n", plan.Name, len(ordered), plan.GateThreshold)
	for i, c := range ordered {
		fmt.Printf("%2d. %s — %s (%s, weight %d)\n", i+1, c.ID, c.Name, c.Category, c.EffectiveWeight())
		if len(c.DependsOn) > 0 {
			fmt.Printf("      needs %s\n", strings.Join(c.DependsOn, ", "))
		}
	}
	return nil
}

// newOrchestrator wires an orchestrator from the loaded config. The
// returned cleanup closes the score store and must run after the run.
func newOrchestrator(plan *qarun.Plan) (*orchestrator.Orchestrator, func()) {
	caller := agent.NewCaller(cfg.AgentCommand, cfg.AgentModel, "", cfg.LogsDir)
	caller.Verbose = cfg.Verbose

	runs := qarun.NewFileStore(cfg.ProjectRoot)

	// Score history is best effort: without it runs still work, the
	// report just loses trend context.
	cleanup := func() {}
	scores, err := scoring.New(scoring.Config{DataDir: cfg.ScoresDir})
	if err != nil {
		logger.Warn("score history disabled", zap.Error(err))
	} else {
		cleanup = func() { _ = scores.Close() }
	}

	return orchestrator.New(caller, plan, runs, scores, cfg, logger), cleanup
}

// printOutcome summarizes the finished run on stdout and decides the
// exit status.
func printOutcome(out *orchestrator.Outcome) error {
	fmt.Printf("Run %s finished: %s\n", out.RunID, out.Status)
	if s := out.Summary; s != nil {
		gate := "✅ gate passed"
		if !s.GatePassed {
			gate = "❌ gate failed"
		}
		fmt.Printf("Score %d/100 against a gate of %d — %s\n", s.WeightedScore, s.GateThreshold, gate)
		fmt.Printf("Verdicts: %d pass, %d warn, %d fail, %d skip\n",
			s.VerdictCounts["pass"], s.VerdictCounts["warn"], s.VerdictCounts["fail"], s.VerdictCounts["skip"])
	}
	if out.ReportPath != "" {
		fmt.Printf("Report: %s\n", out.ReportPath)
	}

	if out.Status == qarun.StatusFailed {
		return fmt.Errorf("run %s did not complete cleanly", out.RunID)
	}
	if out.Summary != nil && !out.Summary.GatePassed {
		return fmt.Errorf("weighted score %d is below the gate %d", out.Summary.WeightedScore, out.Summary.GateThreshold)
	}
	return nil
}
