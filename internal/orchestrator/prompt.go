package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/solutionqa/solqa/internal/config"
	"github.com/solutionqa/solqa/internal/qarun"
)

// mcpConfigFile is written under the logs directory once per run and
// handed to the agent CLI via --mcp-config.
const mcpConfigFile = "mcp-config.json"

// verdictContract is the reply format appended to every check prompt.
// The %s is the check ID.
const verdictContract = "End your reply with exactly one fenced json block:\n\n" +
	"```json\n" +
	"{\n" +
	"  \"check_id\": \"%s\",\n" +
	"  \"verdict\": \"pass\",\n" +
	"  \"score\": 90,\n" +
	"  \"detail\": \"what you verified and what you found\",\n" +
	"  \"evidence\": [\"queries run, measurements taken, files read\"]\n" +
	"}\n" +
	"```\n\n" +
	"verdict is one of pass, warn, fail, skip; score is an integer 0-100.\n" +
	"Bands: pass 80-100, warn 50-79, fail 0-49. Use skip only when the\n" +
	"check cannot be executed at all, with the reason in detail.\n"

// buildCheckPrompt assembles the single-check instruction for the
// agent: what to verify, where the solution runs, which tools to lean
// on, and the exact reply format. Config target overrides win over the
// plan's own values.
func buildCheckPrompt(plan *qarun.Plan, check qarun.Check, cfg *config.Config) string {
	var b strings.Builder

	b.WriteString("You are executing one check of a QA plan against a candidate solution.\n\n")
	fmt.Fprintf(&b, "Plan: %s\n", plan.Name)
	if plan.Project != "" {
		fmt.Fprintf(&b, "Project: %s\n", plan.Project)
	}

	b.WriteString("\n## The check\n\n")
	fmt.Fprintf(&b, "Check ID: %s\n", check.ID)
	fmt.Fprintf(&b, "Name: %s\n", check.Name)
	fmt.Fprintf(&b, "Category: %s (weight %d)\n", check.Category, check.EffectiveWeight())
	if check.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", check.Description)
	}
	if check.Target != "" {
		fmt.Fprintf(&b, "Target: %s\n", check.Target)
	}
	if len(check.DependsOn) > 0 {
		fmt.Fprintf(&b, "Verified prerequisites: %s\n", strings.Join(check.DependsOn, ", "))
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = plan.BaseURL
	}
	database := cfg.DatabasePath
	if database == "" {
		database = plan.Database
	}
	if baseURL != "" || database != "" {
		b.WriteString("\n## The solution\n\n")
		if baseURL != "" {
			fmt.Fprintf(&b, "Base URL: %s\n", baseURL)
		}
		if database != "" {
			fmt.Fprintf(&b, "Database: %s\n", database)
		}
	}

	b.WriteString("\n## How to work\n\n" +
		"Gather evidence with the solqa MCP tools before judging: qa_db_query\n" +
		"and qa_db_tables for data, qa_measure_load_time, qa_console_errors,\n" +
		"and qa_screenshot for the running app, qa_doc_lint for documents.\n" +
		"Read source files directly when the check calls for it. Do not call\n" +
		"qa_run_start or qa_check_report: the run record is managed for you.\n\n")

	fmt.Fprintf(&b, "## Your reply\n\n"+verdictContract, check.ID)
	return b.String()
}

// writeMCPConfig writes the MCP registration the agent CLI needs to
// reach the solqa tools. Without it agents still run, just toolless.
func (o *Orchestrator) writeMCPConfig() (string, error) {
	mcpCfg := map[string]any{
		"mcpServers": map[string]any{
			"solqa": map[string]any{
				"command": "solqa-mcp",
			},
		},
	}
	data, err := json.MarshalIndent(mcpCfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling MCP config: %w", err)
	}

	if err := os.MkdirAll(o.cfg.LogsDir, 0o755); err != nil {
		return "", fmt.Errorf("creating logs directory: %w", err)
	}
	path := filepath.Join(o.cfg.LogsDir, mcpConfigFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing MCP config: %w", err)
	}
	return path, nil
}
