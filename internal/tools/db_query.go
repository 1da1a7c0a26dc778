package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/solutionqa/solqa/internal/dbcheck"
)

// maxQueryRows caps the limit argument of qa_db_query.
const maxQueryRows = 1000

// DBQueryTool handles the qa_db_query MCP tool.
// It runs read-only SQL against the project database and renders the
// result as a markdown table. Writes and schema changes are refused.
type DBQueryTool struct {
	db dbcheck.Config // Path may be empty; resolved from the plan per call
}

// NewDBQueryTool creates a DBQueryTool with its database settings.
func NewDBQueryTool(db dbcheck.Config) *DBQueryTool {
	return &DBQueryTool{db: db}
}

// Definition returns the MCP tool definition for registration.
func (t *DBQueryTool) Definition() mcp.Tool {
	return mcp.NewTool("qa_db_query",
		mcp.WithDescription(
			"Run a read-only SQL query against the project database and get "+
				"the rows as a markdown table. Only SELECT and WITH statements "+
				"are accepted; one statement per call. Use this to verify data "+
				"integrity checks: totals, foreign keys, row counts after an "+
				"operation.",
		),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("The SELECT (or WITH) statement to run."),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum rows to return. Defaults to "+
				"%d, capped at %d.", dbcheck.DefaultMaxRows, maxQueryRows)),
		),
	)
}

// Handle processes the qa_db_query tool call.
func (t *DBQueryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.TrimSpace(req.GetString("sql", ""))
	if query == "" {
		return mcp.NewToolResultError("sql is required"), nil
	}

	cfg := t.db
	if limit := intArg(req, "limit", 0); limit > 0 {
		if limit > maxQueryRows {
			limit = maxQueryRows
		}
		cfg.MaxRows = limit
	}

	cfg, err := resolveDatabase(cfg)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf(
			"Cannot resolve project database: %v", err)), nil
	}

	insp, err := dbcheck.Open(cfg)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf(
			"Cannot open database: %v", err)), nil
	}
	defer func() { _ = insp.Close() }()

	res, err := insp.Query(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Query failed: %v", err)), nil
	}

	return mcp.NewToolResultText(renderQueryResult(res)), nil
}

// renderQueryResult builds the markdown table for a query result.
func renderQueryResult(res *dbcheck.QueryResult) string {
	var b strings.Builder
	b.WriteString("# Query Result\n\n")
	if res.Truncated {
		fmt.Fprintf(&b, "**Rows:** %d (truncated; raise limit for more)\n", len(res.Rows))
	} else {
		fmt.Fprintf(&b, "**Rows:** %d\n", len(res.Rows))
	}
	fmt.Fprintf(&b, "**Duration:** %dms\n\n", res.Duration.Milliseconds())

	if len(res.Rows) == 0 {
		b.WriteString("The query returned no rows.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "| %s |\n", strings.Join(res.Columns, " | "))
	b.WriteString("|" + strings.Repeat("---|", len(res.Columns)) + "\n")
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = tableCell(v)
		}
		fmt.Fprintf(&b, "| %s |\n", strings.Join(cells, " | "))
	}
	return b.String()
}
