package scoretools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/solutionqa/solqa/internal/scoring"
)

// StatsTool handles the score_stats MCP tool.
type StatsTool struct {
	store *scoring.Store
}

// NewStatsTool creates a StatsTool with the given scoring store.
func NewStatsTool(store *scoring.Store) *StatsTool {
	return &StatsTool{store: store}
}

// Definition returns the MCP tool definition for score_stats.
func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("score_stats",
		mcp.WithDescription(
			"Show score store statistics — total runs, recorded check results, and projects tracked.",
		),
	)
}

// Handle processes the score_stats tool call.
func (t *StatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := t.store.Stats()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get stats: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString("## Score Statistics\n\n")
	sb.WriteString(fmt.Sprintf("- **Runs**: %d\n", stats.TotalRuns))
	sb.WriteString(fmt.Sprintf("- **Check results**: %d\n", stats.TotalResults))

	if len(stats.Projects) > 0 {
		sb.WriteString(fmt.Sprintf("- **Projects** (%d): %s\n", len(stats.Projects), strings.Join(stats.Projects, ", ")))
	} else {
		sb.WriteString("- **Projects**: none\n")
	}

	return mcp.NewToolResultText(sb.String()), nil
}
