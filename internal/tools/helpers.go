// Package tools implements MCP tool handlers for QA runs.
//
// Each tool follows the same pattern:
// - A struct with dependencies (qarun.Store, scoring.Store, probe.Manager) injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a markdown result
//
// Run tools go through qarun.Store; inspection tools (database, browser,
// documents) read the project directly and leave run state alone. The
// scoring store is nullable everywhere: verdicts always land in the run
// record, score history is an extra.
package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/solutionqa/solqa/internal/dbcheck"
	"github.com/solutionqa/solqa/internal/qarun"
)

// findProjectRoot walks up from the current working directory looking
// for qa-plan.yaml or an existing qa/ directory. If neither is found,
// returns cwd. This allows tools to work from any subdirectory of the
// project.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}

	current := dir
	for {
		if _, err := os.Stat(filepath.Join(current, qarun.PlanFile)); err == nil {
			return current, nil
		}
		if info, err := os.Stat(filepath.Join(current, "qa")); err == nil && info.IsDir() {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			// Reached filesystem root, no QA project found.
			// Return original cwd — the caller decides what to do.
			return dir, nil
		}
		current = parent
	}
}

// resolveDatabase fills in cfg.Path for the project database. An
// explicit path wins; otherwise the plan's database field, resolved
// against the project root.
func resolveDatabase(cfg dbcheck.Config) (dbcheck.Config, error) {
	if cfg.Path != "" {
		return cfg, nil
	}

	root, err := findProjectRoot()
	if err != nil {
		return cfg, err
	}

	plan, err := qarun.LoadPlan(filepath.Join(root, qarun.PlanFile))
	if err != nil {
		return cfg, err
	}
	if plan.Database == "" {
		return cfg, fmt.Errorf("plan %q declares no database", plan.Name)
	}

	cfg.Path = plan.Database
	if !filepath.IsAbs(cfg.Path) {
		cfg.Path = filepath.Join(root, cfg.Path)
	}
	return cfg, nil
}

// checkState returns the state for a check ID within the run, or nil.
func checkState(run *qarun.Run, id string) *qarun.CheckState {
	for i := range run.Checks {
		if run.Checks[i].Check.ID == id {
			return &run.Checks[i]
		}
	}
	return nil
}

// statusMarker maps a check status to its progress symbol.
func statusMarker(s qarun.RunStatus) string {
	switch s {
	case qarun.StatusCompleted:
		return "✅"
	case qarun.StatusInProgress:
		return "🔄"
	case qarun.StatusFailed:
		return "❌"
	default:
		return "⬜"
	}
}

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// tableCell makes a value safe inside a markdown table row.
func tableCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "\\|")
}
