package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/solutionqa/solqa/internal/dbcheck"
)

// DBTablesTool handles the qa_db_tables MCP tool.
// Without arguments it lists the project database's tables with row
// counts; with a table name it describes that table's columns.
type DBTablesTool struct {
	db dbcheck.Config // Path may be empty; resolved from the plan per call
}

// NewDBTablesTool creates a DBTablesTool with its database settings.
func NewDBTablesTool(db dbcheck.Config) *DBTablesTool {
	return &DBTablesTool{db: db}
}

// Definition returns the MCP tool definition for registration.
func (t *DBTablesTool) Definition() mcp.Tool {
	return mcp.NewTool("qa_db_tables",
		mcp.WithDescription(
			"List the project database's tables with row counts, or describe "+
				"one table's columns. Call this before qa_db_query to learn the "+
				"schema you are querying.",
		),
		mcp.WithString("table",
			mcp.Description("Table to describe. Omit to list all tables."),
		),
	)
}

// Handle processes the qa_db_tables tool call.
func (t *DBTablesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := resolveDatabase(t.db)
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

	if table := strings.TrimSpace(req.GetString("table", "")); table != "" {
		cols, err := insp.Columns(ctx, table)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(renderColumns(table, cols)), nil
	}

	tables, err := insp.Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	return mcp.NewToolResultText(renderTables(cfg.Path, tables)), nil
}

// renderTables builds the markdown table listing.
func renderTables(path string, tables []dbcheck.TableInfo) string {
	var b strings.Builder
	b.WriteString("# Database Tables\n\n")
	fmt.Fprintf(&b, "**Database:** `%s`\n\n", path)

	if len(tables) == 0 {
		b.WriteString("The database has no tables.\n")
		return b.String()
	}

	b.WriteString("| Table | Rows |\n")
	b.WriteString("|-------|-----:|\n")
	for _, t := range tables {
		fmt.Fprintf(&b, "| %s | %d |\n", tableCell(t.Name), t.RowCount)
	}
	b.WriteString("\nDescribe a table by calling qa_db_tables with its name.\n")
	return b.String()
}

// renderColumns builds the markdown column detail for one table.
func renderColumns(table string, cols []dbcheck.ColumnInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Table: `%s`\n\n", table)
	b.WriteString("| Column | Type | Nullable | Key |\n")
	b.WriteString("|--------|------|----------|-----|\n")
	for _, c := range cols {
		nullable := "yes"
		if c.NotNull {
			nullable = "no"
		}
		key := ""
		if c.PK {
			key = "PK"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			tableCell(c.Name), tableCell(c.Type), nullable, key)
	}
	return b.String()
}
