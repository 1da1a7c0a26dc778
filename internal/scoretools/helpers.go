// Package scoretools provides MCP tool handlers for score history.
//
// Each tool handler follows the same pattern as internal/tools:
// - A struct with dependencies (scoring.Store) injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// These tools only read: verdicts are written by qa_check_report, and
// the orchestrator records unattended runs itself.
package scoretools

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/solutionqa/solqa/internal/scoring"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// latestRunID resolves the most recently started run, optionally within
// one project.
func latestRunID(store *scoring.Store, project string) (string, error) {
	entries, err := store.History(project, 1)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("no runs recorded yet")
	}
	return entries[0].ID, nil
}

// gateMarker renders a pass/fail gate as a symbol.
func gateMarker(passed bool) string {
	if passed {
		return "✅"
	}
	return "❌"
}
