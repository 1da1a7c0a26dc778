package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/solutionqa/solqa/internal/qarun"
)

// RunStatusTool handles the qa_run_status MCP tool.
// It reports the active run's progress: per-check status, what is ready
// to verify, what is blocked, and the next action.
type RunStatusTool struct {
	runs qarun.Store
}

// NewRunStatusTool creates a RunStatusTool with its dependencies.
func NewRunStatusTool(runs qarun.Store) *RunStatusTool {
	return &RunStatusTool{runs: runs}
}

// Definition returns the MCP tool definition for registration.
func (t *RunStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("qa_run_status",
		mcp.WithDescription(
			"Show the active QA run: per-check status and verdicts, which "+
				"checks are ready to verify, which are blocked on dependencies, "+
				"and what to do next. Call this to orient yourself before "+
				"picking the next check.",
		),
	)
}

// Handle processes the qa_run_status tool call.
func (t *RunStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	run, err := t.runs.LoadActive()
	if err != nil {
		if errors.Is(err, qarun.ErrNoActiveRun) {
			return mcp.NewToolResultError(
				"No active run. Start one with qa_run_start."), nil
		}
		return nil, fmt.Errorf("loading active run: %w", err)
	}

	return mcp.NewToolResultText(renderRunStatus(run)), nil
}

// renderRunStatus builds the markdown progress report for a run.
func renderRunStatus(run *qarun.Run) string {
	counts := qarun.CountByStatus(run)
	finished := counts[qarun.StatusCompleted] + counts[qarun.StatusFailed]

	var b strings.Builder
	fmt.Fprintf(&b, "# QA Run Status\n\n")
	fmt.Fprintf(&b, "**Run:** `%s`\n", run.Slug)
	fmt.Fprintf(&b, "**Plan:** %s\n", run.PlanName)
	fmt.Fprintf(&b, "**Status:** %s %s\n", statusMarker(run.Status), run.Status)
	fmt.Fprintf(&b, "**Progress:** %d/%d checks finished\n\n", finished, len(run.Checks))

	b.WriteString("## Checks\n\n")
	b.WriteString("| Check | Category | Status | Verdict | Score |\n")
	b.WriteString("|-------|----------|--------|---------|-------|\n")
	for _, st := range run.Checks {
		verdict := "—"
		score := "—"
		if st.Verdict != "" {
			verdict = string(st.Verdict)
			if st.Verdict != qarun.VerdictSkip {
				score = fmt.Sprintf("%d", st.Score)
			}
		}
		fmt.Fprintf(&b, "| %s `%s` | %s | %s | %s | %s |\n",
			statusMarker(st.Status), st.Check.ID, st.Check.Category,
			st.Status, verdict, score)
	}

	if ready := qarun.ProcessableChecks(run); len(ready) > 0 {
		b.WriteString("\n## Ready now\n\n")
		for _, c := range ready {
			fmt.Fprintf(&b, "- `%s` — %s\n", c.ID, c.Name)
		}
	}

	if blocked := qarun.BlockedChecks(run); len(blocked) > 0 {
		b.WriteString("\n## Blocked\n\n")
		for _, c := range blocked {
			fmt.Fprintf(&b, "- `%s` — waiting on: %s\n",
				c.ID, strings.Join(qarun.MissingDependencies(run, c.ID), ", "))
		}
	}

	fmt.Fprintf(&b, "\n## Next action\n\n%s\n", nextAction(run))
	return b.String()
}

// nextAction names the most useful thing to do given the run's state.
func nextAction(run *qarun.Run) string {
	if run.Status.Terminal() {
		return fmt.Sprintf("Run finished (%s). Start a new run with qa_run_start "+
			"when the next round is due.", run.Status)
	}
	if ready := qarun.ProcessableChecks(run); len(ready) > 0 {
		return fmt.Sprintf("Verify `%s` and report the outcome with qa_check_report.",
			ready[0].ID)
	}
	if counts := qarun.CountByStatus(run); counts[qarun.StatusInProgress] > 0 {
		return "Finish the in-progress checks and report them with qa_check_report."
	}
	return "Remaining checks are waiting on dependencies. Report finished " +
		"checks with qa_check_report to unblock them."
}
