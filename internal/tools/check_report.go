package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/solutionqa/solqa/internal/qarun"
	"github.com/solutionqa/solqa/internal/scoring"
)

// CheckReportTool handles the qa_check_report MCP tool.
// It records the verdict for one check of the active run, skips any
// dependents the verdict stranded, and closes the run once every check
// is terminal.
type CheckReportTool struct {
	runs   qarun.Store
	scores *scoring.Store // nullable — verdicts still land in the run record
}

// NewCheckReportTool creates a CheckReportTool with its dependencies.
func NewCheckReportTool(runs qarun.Store, scores *scoring.Store) *CheckReportTool {
	return &CheckReportTool{runs: runs, scores: scores}
}

// Definition returns the MCP tool definition for registration.
func (t *CheckReportTool) Definition() mcp.Tool {
	return mcp.NewTool("qa_check_report",
		mcp.WithDescription(
			"Report the verdict for one check of the active QA run. Verify "+
				"the check first (qa_db_query, qa_measure_load_time, manual "+
				"inspection), then call this with what you found. Checks whose "+
				"dependencies failed or were skipped are skipped automatically. "+
				"When the last check is reported the run finishes and the "+
				"response carries the score summary.",
		),
		mcp.WithString("check_id",
			mcp.Required(),
			mcp.Description("ID of the check being reported, as listed by "+
				"qa_run_start or qa_run_status."),
		),
		mcp.WithString("verdict",
			mcp.Required(),
			mcp.Description("Outcome of the check. 'pass' means verified, "+
				"'warn' means working with concerns, 'fail' means broken, "+
				"'skip' means the check could not or should not run."),
			mcp.Enum("pass", "warn", "fail", "skip"),
		),
		mcp.WithNumber("score",
			mcp.Description("Quality score 0-100 for the check. Required for "+
				"pass, warn, and fail verdicts; ignored for skip."),
		),
		mcp.WithString("detail",
			mcp.Description("Short explanation of the verdict: what was "+
				"verified and what was found."),
		),
		mcp.WithString("evidence",
			mcp.Description("Tool output, query results, or file paths "+
				"backing the verdict."),
		),
		mcp.WithString("tool",
			mcp.Description("Name of the tool that produced the evidence, "+
				"e.g. qa_db_query. Recorded in score history."),
		),
	)
}

// Handle processes the qa_check_report tool call.
func (t *CheckReportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	checkID := strings.TrimSpace(req.GetString("check_id", ""))
	if checkID == "" {
		return mcp.NewToolResultError("check_id is required"), nil
	}

	verdict := qarun.Verdict(req.GetString("verdict", ""))
	if err := qarun.ValidateVerdict(verdict); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	score := intArg(req, "score", -1)
	if verdict == qarun.VerdictSkip {
		score = 0
	} else if score < 0 || score > 100 {
		return mcp.NewToolResultError(fmt.Sprintf(
			"score is required for a %s verdict and must be between 0 and 100",
			verdict)), nil
	}

	detail := strings.TrimSpace(req.GetString("detail", ""))
	evidence := strings.TrimSpace(req.GetString("evidence", ""))
	if evidence != "" {
		if detail != "" {
			detail += "\n"
		}
		detail += "Evidence: " + evidence
	}

	run, err := t.runs.LoadActive()
	if err != nil {
		if errors.Is(err, qarun.ErrNoActiveRun) {
			return mcp.NewToolResultError(
				"No active run. Start one with qa_run_start."), nil
		}
		return nil, fmt.Errorf("loading active run: %w", err)
	}

	st := checkState(run, checkID)
	if st == nil {
		return mcp.NewToolResultError(fmt.Sprintf(
			"Run %q has no check %q. Its checks: %s",
			run.Slug, checkID, strings.Join(checkIDs(run), ", "))), nil
	}

	if st.Status == qarun.StatusPending {
		if err := qarun.StartCheck(run, checkID); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	if verdict == qarun.VerdictSkip {
		err = qarun.SkipCheck(run, checkID, detail)
	} else {
		err = qarun.CompleteCheck(run, checkID, qarun.CheckResult{
			CheckID: checkID,
			Verdict: verdict,
			Score:   score,
			Detail:  detail,
		})
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	skipped := qarun.SweepStranded(run)

	finished := false
	counts := qarun.CountByStatus(run)
	if counts[qarun.StatusPending]+counts[qarun.StatusInProgress] == 0 {
		if err := qarun.FinishRun(run); err != nil {
			return nil, fmt.Errorf("finishing run: %w", err)
		}
		finished = true
	}

	if err := t.runs.Save(run); err != nil {
		return nil, fmt.Errorf("saving run: %w", err)
	}

	// Score history is best effort; the run record is the source of truth.
	if t.scores != nil {
		toolName := strings.TrimSpace(req.GetString("tool", ""))
		t.recordResult(run, checkID, toolName)
		for _, id := range skipped {
			t.recordResult(run, id, "")
		}
		if finished {
			_ = t.scores.CompleteRun(run.ID, string(run.Status))
		}
	}

	return mcp.NewToolResultText(renderCheckReported(run, checkID, skipped, finished)), nil
}

// recordResult mirrors one check's outcome into score history.
func (t *CheckReportTool) recordResult(run *qarun.Run, id, toolName string) {
	st := checkState(run, id)
	if st == nil {
		return
	}
	_, _ = t.scores.RecordResult(scoring.ResultParams{
		RunID:      run.ID,
		CheckID:    id,
		Category:   string(st.Check.Category),
		Verdict:    string(st.Verdict),
		Score:      st.Score,
		Weight:     st.Check.EffectiveWeight(),
		Detail:     st.Detail,
		ToolName:   toolName,
		DurationMs: checkDurationMs(st),
	})
}

// checkDurationMs is the check's wall time from start to completion,
// or 0 when the timestamps are absent or unparseable.
func checkDurationMs(st *qarun.CheckState) int64 {
	start, err := time.Parse(time.RFC3339, st.StartedAt)
	if err != nil {
		return 0
	}
	end, err := time.Parse(time.RFC3339, st.CompletedAt)
	if err != nil {
		return 0
	}
	if d := end.Sub(start); d > 0 {
		return d.Milliseconds()
	}
	return 0
}

// checkIDs lists the run's check IDs in order.
func checkIDs(run *qarun.Run) []string {
	ids := make([]string, len(run.Checks))
	for i, st := range run.Checks {
		ids[i] = st.Check.ID
	}
	return ids
}

// renderCheckReported builds the markdown response: the recorded verdict,
// any automatic skips, and either the next checks or the final summary.
func renderCheckReported(run *qarun.Run, checkID string, skipped []string, finished bool) string {
	st := checkState(run, checkID)

	var b strings.Builder
	fmt.Fprintf(&b, "# Check Reported: `%s`\n\n", checkID)
	if st.Verdict == qarun.VerdictSkip {
		fmt.Fprintf(&b, "**Verdict:** skip\n")
	} else {
		fmt.Fprintf(&b, "**Verdict:** %s (score %d)\n", st.Verdict, st.Score)
	}
	if st.Detail != "" {
		fmt.Fprintf(&b, "**Detail:** %s\n", st.Detail)
	}

	if len(skipped) > 0 {
		b.WriteString("\n## Skipped automatically\n\n")
		for _, id := range skipped {
			dep := checkState(run, id)
			fmt.Fprintf(&b, "- `%s` — %s\n", id, dep.Detail)
		}
	}

	if finished {
		fmt.Fprintf(&b, "\n## Run finished: %s\n\n", run.Status)
		b.WriteString(renderRunSummary(run))
		return b.String()
	}

	counts := qarun.CountByStatus(run)
	remaining := counts[qarun.StatusPending] + counts[qarun.StatusInProgress]
	b.WriteString("\n## Next\n\n")
	if ready := qarun.ProcessableChecks(run); len(ready) > 0 {
		b.WriteString("Ready to verify:\n\n")
		for _, c := range ready {
			fmt.Fprintf(&b, "- `%s` — %s\n", c.ID, c.Name)
		}
	} else {
		b.WriteString("No checks are ready; finish the in-progress ones.\n")
	}
	fmt.Fprintf(&b, "\n%d of %d checks remain.\n", remaining, len(run.Checks))
	return b.String()
}

// renderRunSummary aggregates the run record into per-category scores
// and the gate outcome. Skips count toward coverage, not the score.
func renderRunSummary(run *qarun.Run) string {
	type bucket struct {
		category qarun.Category
		sum      int
		weight   int
		checks   int
	}
	var buckets []*bucket
	byCategory := make(map[qarun.Category]*bucket)

	weightedSum := 0
	totalWeight := 0
	verdicts := make(map[qarun.Verdict]int)

	for _, st := range run.Checks {
		verdicts[st.Verdict]++

		bk := byCategory[st.Check.Category]
		if bk == nil {
			bk = &bucket{category: st.Check.Category}
			byCategory[st.Check.Category] = bk
			buckets = append(buckets, bk)
		}
		bk.checks++

		if st.Verdict == qarun.VerdictSkip {
			continue
		}
		w := st.Check.EffectiveWeight()
		bk.sum += st.Score * w
		bk.weight += w
		weightedSum += st.Score * w
		totalWeight += w
	}

	var b strings.Builder
	b.WriteString("| Category | Score | Weight | Checks |\n")
	b.WriteString("|----------|------:|-------:|-------:|\n")
	for _, bk := range buckets {
		score := 0
		if bk.weight > 0 {
			score = bk.sum / bk.weight
		}
		fmt.Fprintf(&b, "| %s | %d | %d | %d |\n", bk.category, score, bk.weight, bk.checks)
	}

	total := 0
	if totalWeight > 0 {
		total = weightedSum / totalWeight
	}
	gate := "❌ FAILED"
	if total >= run.GateThreshold {
		gate = "✅ PASSED"
	}
	fmt.Fprintf(&b, "\n**Weighted score:** %d/100 — gate %d %s\n",
		total, run.GateThreshold, gate)

	parts := make([]string, 0, 4)
	for _, v := range []qarun.Verdict{qarun.VerdictPass, qarun.VerdictWarn, qarun.VerdictFail, qarun.VerdictSkip} {
		if verdicts[v] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", verdicts[v], v))
		}
	}
	fmt.Fprintf(&b, "**Verdicts:** %s\n", strings.Join(parts, ", "))
	return b.String()
}
