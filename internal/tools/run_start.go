package tools

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/solutionqa/solqa/internal/qarun"
	"github.com/solutionqa/solqa/internal/scoring"
)

// RunStartTool handles the qa_run_start MCP tool.
// It loads and validates the project's QA plan, orders its checks by
// dependency, and opens a new run. One run at a time: starting while
// another run is underway is an error.
type RunStartTool struct {
	runs   qarun.Store
	scores *scoring.Store // nullable — runs work without score history
}

// NewRunStartTool creates a RunStartTool with its dependencies.
func NewRunStartTool(runs qarun.Store, scores *scoring.Store) *RunStartTool {
	return &RunStartTool{runs: runs, scores: scores}
}

// Definition returns the MCP tool definition for registration.
func (t *RunStartTool) Definition() mcp.Tool {
	return mcp.NewTool("qa_run_start",
		mcp.WithDescription(
			"Start a QA run from the project's plan. Loads and validates the "+
				"plan file, orders its checks so dependencies come first, and "+
				"creates the run record. Only one run can be active at a time. "+
				"Call this once, then verify checks and report each one with "+
				"qa_check_report.",
		),
		mcp.WithString("plan",
			mcp.Description("Path to the plan file. Relative paths resolve "+
				"against the project root. Defaults to "+qarun.PlanFile+"."),
		),
	)
}

// Handle processes the qa_run_start tool call.
func (t *RunStartTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, err := findProjectRoot()
	if err != nil {
		return nil, err
	}

	planPath := strings.TrimSpace(req.GetString("plan", ""))
	if planPath == "" {
		planPath = qarun.PlanFile
	}
	if !filepath.IsAbs(planPath) {
		planPath = filepath.Join(root, planPath)
	}

	plan, err := qarun.LoadPlan(planPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Cannot load plan: %v", err)), nil
	}

	run, err := qarun.NewRun(plan)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Cannot build run: %v", err)), nil
	}

	if err := t.runs.Create(run); err != nil {
		if errors.Is(err, qarun.ErrRunExists) {
			return mcp.NewToolResultError(fmt.Sprintf(
				"%v. Check its progress with qa_run_status and report its "+
					"remaining checks with qa_check_report; a new run can start "+
					"once it finishes.",
				err)), nil
		}
		return nil, fmt.Errorf("creating run: %w", err)
	}

	// Score history is best effort; the run record is the source of truth.
	if t.scores != nil {
		_ = t.scores.RecordRun(scoring.RunParams{
			ID:            run.ID,
			Project:       run.Project,
			Plan:          run.PlanName,
			Status:        string(run.Status),
			GateThreshold: run.GateThreshold,
		})
	}

	return mcp.NewToolResultText(renderRunStarted(run)), nil
}

// renderRunStarted builds the markdown response for a fresh run.
func renderRunStarted(run *qarun.Run) string {
	categories := make(map[qarun.Category]bool)
	for _, st := range run.Checks {
		categories[st.Check.Category] = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# QA Run Started\n\n")
	fmt.Fprintf(&b, "**Run:** `%s`\n", run.Slug)
	fmt.Fprintf(&b, "**Plan:** %s\n", run.PlanName)
	if run.Project != "" {
		fmt.Fprintf(&b, "**Project:** %s\n", run.Project)
	}
	fmt.Fprintf(&b, "**Gate:** weighted score ≥ %d\n", run.GateThreshold)
	fmt.Fprintf(&b, "**Checks:** %d across %d categories\n\n", len(run.Checks), len(categories))

	b.WriteString("## Checklist\n\n")
	b.WriteString("| # | Check | Category | Weight | Depends on |\n")
	b.WriteString("|---|-------|----------|--------|------------|\n")
	for i, st := range run.Checks {
		deps := "—"
		if len(st.Check.DependsOn) > 0 {
			deps = strings.Join(st.Check.DependsOn, ", ")
		}
		fmt.Fprintf(&b, "| %d | %s `%s` | %s | %d | %s |\n",
			i+1, statusMarker(st.Status), st.Check.ID, st.Check.Category,
			st.Check.EffectiveWeight(), tableCell(deps))
	}

	b.WriteString("\n## Ready now\n\n")
	for _, c := range qarun.ProcessableChecks(run) {
		fmt.Fprintf(&b, "- `%s` — %s\n", c.ID, c.Name)
	}

	b.WriteString("\nVerify each check and report it with qa_check_report. ")
	b.WriteString("Checks with unmet dependencies unlock as their dependencies pass.\n")
	return b.String()
}
