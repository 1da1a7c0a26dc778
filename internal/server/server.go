// Package server wires all MCP components and creates the server instance.
//
// This is the composition root (DIP): it creates concrete implementations
// and injects them into the tools/prompts/resources that depend on abstractions.
// No business logic lives here — only wiring.
package server

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/solutionqa/solqa/internal/dbcheck"
	"github.com/solutionqa/solqa/internal/probe"
	"github.com/solutionqa/solqa/internal/prompts"
	"github.com/solutionqa/solqa/internal/qarun"
	"github.com/solutionqa/solqa/internal/resources"
	"github.com/solutionqa/solqa/internal/scoretools"
	"github.com/solutionqa/solqa/internal/scoring"
	"github.com/solutionqa/solqa/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools, prompts,
// and resources registered. This is the single place where all
// dependencies are resolved.
//
// The returned cleanup function closes the score store's database
// connection and shuts the browser down, and must be called on shutdown
// (typically via defer). It is always non-nil and safe to call even if
// score history init failed or no browser was ever launched.
func New() (*server.MCPServer, func(), error) {
	// --- Create shared dependencies ---

	root, err := projectRoot()
	if err != nil {
		return nil, noop, fmt.Errorf("resolving project root: %w", err)
	}

	runs := qarun.NewFileStore(root)

	// The browser launches on the first probe call, not here. A machine
	// without Chrome still serves database and document checks.
	probes := probe.NewManager(probe.DefaultConfig())

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"solqa",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register run tools ---
	//
	// Score history is an independent subsystem: if its database fails
	// to open, QA runs keep working — verdicts land in the run file and
	// only the score_* tools go missing. We log a warning and skip score
	// tool registration; the server is still fully functional for runs.

	cleanup := func() { shutdownProbes(probes) }
	scores, scoreErr := scoring.New(scoring.DefaultConfig())

	// Run tools registered unconditionally — they take a nil score store
	// and record history best effort.
	runStart := tools.NewRunStartTool(runs, scores)
	s.AddTool(runStart.Definition(), runStart.Handle)

	runStatus := tools.NewRunStatusTool(runs)
	s.AddTool(runStatus.Definition(), runStatus.Handle)

	checkReport := tools.NewCheckReportTool(runs, scores)
	s.AddTool(checkReport.Definition(), checkReport.Handle)

	if scoreErr != nil {
		log.Printf("WARNING: score history disabled: %v", scoreErr)
	} else {
		cleanup = func() {
			shutdownProbes(probes)
			if err := scores.Close(); err != nil {
				log.Printf("WARNING: score store close: %v", err)
			}
		}
		registerScoreTools(s, scores)
	}

	// --- Register database tools ---
	//
	// The database path is resolved from the plan on every call, so
	// these work even when the plan is written after the server starts.

	dbCfg := dbcheck.Config{}

	dbQuery := tools.NewDBQueryTool(dbCfg)
	s.AddTool(dbQuery.Definition(), dbQuery.Handle)

	dbTables := tools.NewDBTablesTool(dbCfg)
	s.AddTool(dbTables.Definition(), dbTables.Handle)

	// --- Register browser tools ---

	loadTime := tools.NewLoadTimeTool(probes)
	s.AddTool(loadTime.Definition(), loadTime.Handle)

	consoleErrors := tools.NewConsoleErrorsTool(probes)
	s.AddTool(consoleErrors.Definition(), consoleErrors.Handle)

	screenshot := tools.NewScreenshotTool(probes)
	s.AddTool(screenshot.Definition(), screenshot.Handle)

	// --- Register document tools ---

	docLint := tools.NewDocLintTool()
	s.AddTool(docLint.Definition(), docLint.Handle)

	// --- Register prompts ---

	startPrompt := prompts.NewStartPrompt()
	s.AddPrompt(startPrompt.Definition(), startPrompt.Handle)

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(runs)
	s.AddResource(resourceHandler.RunStatusResource(), resourceHandler.HandleRunStatus)
	s.AddResource(resourceHandler.PlanResource(), resourceHandler.HandlePlan)

	return s, cleanup, nil
}

// noop is a no-op cleanup function returned when construction fails
// before any resource has been opened.
func noop() {}

// shutdownProbes closes the browser if one was launched. Safe to call
// when no probe tool ever ran.
func shutdownProbes(probes *probe.Manager) {
	if err := probes.Shutdown(context.Background()); err != nil {
		log.Printf("WARNING: browser shutdown: %v", err)
	}
}

// projectRoot walks up from the working directory looking for
// qa-plan.yaml or an existing qa/ directory, falling back to the
// working directory itself. The run store is anchored here once at
// startup; tools re-resolve the plan per call, so a plan written after
// the server starts is still found.
func projectRoot() (string, error) {
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
			return dir, nil
		}
		current = parent
	}
}

// registerScoreTools registers the score history MCP tools with the server.
func registerScoreTools(s *server.MCPServer, ss *scoring.Store) {
	reportTool := scoretools.NewReportTool(ss)
	s.AddTool(reportTool.Definition(), reportTool.Handle)

	historyTool := scoretools.NewHistoryTool(ss)
	s.AddTool(historyTool.Definition(), historyTool.Handle)

	statsTool := scoretools.NewStatsTool(ss)
	s.AddTool(statsTool.Definition(), statsTool.Handle)
}

// serverInstructions returns the system instructions that tell the AI
// how to run QA effectively.
func serverInstructions() string {
	return `You have access to solqa, a Solution QA MCP server.

## WHEN TO ACTIVATE solqa

You MUST proactively suggest a QA run when the user:
- Finishes a feature or milestone and asks whether everything still works
- Asks to verify, test, or QA an application end to end
- Asks whether a build is ready to ship or demo
- Mentions qa-plan.yaml or an acceptance checklist

When you detect any of these, say something like:
"This project has a QA plan. Should I work through the checklist with
solqa and give you a scored report?"

You do NOT need solqa for:
- Unit tests (run the project's own test suite directly)
- One-off questions about the code
- Debugging a single known failure

## CRITICAL: How Verdicts Work

solqa tools are EVIDENCE and RECORD tools, not judges. The inspection
tools (database, browser, documents) gather facts; YOU weigh those facts
against the check description and decide the verdict. The workflow for
each check is:

1. READ the check description from qa_run_start or qa_run_status
2. GATHER evidence with the matching inspection tools
3. JUDGE: decide pass/warn/fail/skip and a 0-100 score yourself
4. CALL qa_check_report with the verdict, score, detail, and evidence

NEVER report a verdict without evidence. ALWAYS put what you observed in
the detail and evidence parameters — a report is only as trustworthy as
the evidence behind it.

## The Run Loop

1. qa_run_start loads qa-plan.yaml and opens a run
2. qa_run_status shows progress — call it whenever you lose track
3. For each check listed under "Ready now":
   - gather evidence (see the tool guide below)
   - qa_check_report with check_id, verdict, score, detail, evidence
4. Dependencies resolve automatically: a pass or warn unlocks dependent
   checks, while a fail or skip skips everything downstream of it
5. Reporting the last check finishes the run — the response carries the
   scored category summary and the gate outcome

Only one run is active at a time; a finished run frees the slot.

## Verdicts and Scores

- pass: the check holds as described (score roughly 80-100)
- warn: works, with caveats worth fixing (score roughly 50-79)
- fail: the check does not hold (score roughly 0-49)
- skip: not verifiable right now — no score, excluded from the average

Scores roll up into a weighted average by category. Default weights:
functionality 10, data_integrity 8, security 8, performance 6, ux 5.
A plan can override the weight per check. The run passes its gate when
the weighted score reaches the plan's threshold (default 70).

## Tool Guide by Category

- data_integrity: qa_db_tables to orient in the schema, then
  qa_db_query (SELECT only) to verify counts, constraints, and
  cross-table consistency
- performance: qa_measure_load_time for first byte, DOM content loaded,
  load event, transfer size, and request count
- functionality / ux: qa_console_errors to surface silent page errors,
  qa_screenshot to capture visual evidence
- decision docs: qa_doc_lint flags structural gaps (missing tradeoffs,
  malformed comparison matrix, phases without tools)

Browser tools launch a headless browser on first use. If the launch
fails, report the affected checks as skip and name the launch error as
the reason.

## Score History

When score history is available:
- score_report: the scored summary for a run (latest by default)
- score_history: recent runs, optionally filtered by project
- score_stats: totals across everything recorded

Use history to spot regressions — compare the new weighted score with
the previous run's before declaring the gate outcome.

## Prompts and Resources

- The qa-start and qa-status prompts walk a user through the loop
- The qa://plan and qa://run/status resources expose raw JSON state`
}
