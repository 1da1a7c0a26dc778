package scoretools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/solutionqa/solqa/internal/scoring"
)

// ReportTool handles the score_report MCP tool.
type ReportTool struct {
	store *scoring.Store
}

// NewReportTool creates a ReportTool with the given scoring store.
func NewReportTool(store *scoring.Store) *ReportTool {
	return &ReportTool{store: store}
}

// Definition returns the MCP tool definition for score_report.
func (t *ReportTool) Definition() mcp.Tool {
	return mcp.NewTool("score_report",
		mcp.WithDescription(
			"Show the score report for one QA run: per-category scores, the "+
				"weighted total, the gate outcome, and verdict counts. Defaults "+
				"to the most recent run.",
		),
		mcp.WithString("run_id",
			mcp.Description("Run to report on. Omit for the latest run."),
		),
	)
}

// Handle processes the score_report tool call.
func (t *ReportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID := strings.TrimSpace(req.GetString("run_id", ""))
	if runID == "" {
		latest, err := latestRunID(t.store, "")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to find a run: %v", err)), nil
		}
		runID = latest
	}

	summary, err := t.store.Summary(runID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to build report: %v", err)), nil
	}

	return mcp.NewToolResultText(renderSummary(summary)), nil
}

// renderSummary builds the markdown score report.
func renderSummary(s *scoring.RunSummary) string {
	var sb strings.Builder
	sb.WriteString("## Score Report\n\n")
	sb.WriteString(fmt.Sprintf("- **Run**: `%s`\n", s.RunID))
	sb.WriteString(fmt.Sprintf("- **Plan**: %s\n", s.Plan))
	if s.Project != "" {
		sb.WriteString(fmt.Sprintf("- **Project**: %s\n", s.Project))
	}
	sb.WriteString(fmt.Sprintf("- **Status**: %s\n", s.Status))
	sb.WriteString(fmt.Sprintf("- **Started**: %s\n", s.StartedAt))
	if s.CompletedAt != nil {
		sb.WriteString(fmt.Sprintf("- **Completed**: %s\n", *s.CompletedAt))
	}

	if s.TotalChecks == 0 {
		sb.WriteString("\nNo check results recorded for this run yet.\n")
		return sb.String()
	}

	sb.WriteString("\n| Category | Score | Weight | Checks |\n")
	sb.WriteString("|----------|------:|-------:|-------:|\n")
	for _, c := range s.Categories {
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d |\n", c.Category, c.Score, c.Weight, c.Checks))
	}

	sb.WriteString(fmt.Sprintf("\n- **Weighted score**: %d/100\n", s.WeightedScore))
	sb.WriteString(fmt.Sprintf("- **Gate**: %d %s\n", s.GateThreshold, gateMarker(s.GatePassed)))

	parts := make([]string, 0, len(s.VerdictCounts))
	for _, v := range []string{"pass", "warn", "fail", "skip"} {
		if n := s.VerdictCounts[v]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, v))
		}
	}
	sb.WriteString(fmt.Sprintf("- **Verdicts** (%d checks): %s\n", s.TotalChecks, strings.Join(parts, ", ")))
	return sb.String()
}
