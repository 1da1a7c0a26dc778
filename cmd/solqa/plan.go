package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solutionqa/solqa/internal/qarun"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Work with QA plans",
}

var planValidateCmd = &cobra.Command{
	Use:   "validate [plan]",
	Short: "Validate a QA plan file",
	Long: `Validate loads the plan (qa-plan.yaml by default) and checks it for
structural problems: missing names, unknown categories, duplicate or
unknown check IDs, out-of-range weights, and dependency cycles.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlanValidate,
}

func init() {
	planCmd.AddCommand(planValidateCmd)
}

func runPlanValidate(cmd *cobra.Command, args []string) error {
	path := cfg.PlanPath
	if len(args) > 0 {
		path = args[0]
	}

	plan, err := qarun.LoadPlan(path)
	if err != nil {
		return err
	}

	fmt.Printf("✅ plan %q is valid: %d checks, gate %d\n", plan.Name, len(plan.Checks), plan.GateThreshold)
	return nil
}
