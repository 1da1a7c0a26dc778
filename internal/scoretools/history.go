package scoretools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/solutionqa/solqa/internal/scoring"
)

// HistoryTool handles the score_history MCP tool.
type HistoryTool struct {
	store *scoring.Store
}

// NewHistoryTool creates a HistoryTool with the given scoring store.
func NewHistoryTool(store *scoring.Store) *HistoryTool {
	return &HistoryTool{store: store}
}

// Definition returns the MCP tool definition for score_history.
func (t *HistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("score_history",
		mcp.WithDescription(
			"List past QA runs newest first, with their weighted scores. Use "+
				"this to spot regressions between deliveries; drill into one "+
				"run with score_report.",
		),
		mcp.WithString("project",
			mcp.Description("Only show runs for this project."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum runs to list (default: 10)"),
		),
	)
}

// Handle processes the score_history tool call.
func (t *HistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := strings.TrimSpace(req.GetString("project", ""))
	limit := intArg(req, "limit", 10)

	entries, err := t.store.History(project, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load history: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString("## Score History\n\n")
	if project != "" {
		sb.WriteString(fmt.Sprintf("- **Project**: %s\n\n", project))
	}

	if len(entries) == 0 {
		sb.WriteString("No runs recorded yet.\n")
		return mcp.NewToolResultText(sb.String()), nil
	}

	sb.WriteString("| Started | Plan | Status | Score | Checks | Run |\n")
	sb.WriteString("|---------|------|--------|------:|-------:|-----|\n")
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %d | `%s` |\n",
			e.StartedAt, e.Plan, e.Status, e.WeightedScore, e.Checks, e.ID))
	}
	return mcp.NewToolResultText(sb.String()), nil
}
