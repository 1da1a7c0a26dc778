// Package prompts implements MCP prompt handlers for QA runs.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// StartPrompt handles the qa-start MCP prompt.
// It guides the AI to open a QA run and work through its checks.
type StartPrompt struct{}

// NewStartPrompt creates a StartPrompt.
func NewStartPrompt() *StartPrompt {
	return &StartPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StartPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("qa-start",
		mcp.WithPromptDescription(
			"Run QA on the delivered solution. Starts a run from the "+
				"project's plan, then works through every check with the "+
				"qa_* tools and reports a verdict for each.",
		),
		mcp.WithArgument("plan",
			mcp.ArgumentDescription("Path to the plan file. Default: qa-plan.yaml"),
		),
		mcp.WithArgument("focus",
			mcp.ArgumentDescription(
				"Category to prioritize, e.g. 'data_integrity' or 'performance'. "+
					"Other checks still run, these come first.",
			),
		),
	)
}

// Handle processes the qa-start prompt request.
func (p *StartPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	plan := "qa-plan.yaml"
	if args := req.Params.Arguments; args != nil {
		if v, ok := args["plan"]; ok && v != "" {
			plan = v
		}
	}

	focus := ""
	if args := req.Params.Arguments; args != nil {
		if v, ok := args["focus"]; ok && v != "" {
			focus = v
		}
	}

	focusLine := ""
	if focus != "" {
		focusLine = fmt.Sprintf(
			"\n\nPrioritize the **%s** category: verify those checks first "+
				"whenever their dependencies allow it.", focus)
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Run QA from %s", plan),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I want to QA the delivered solution against '%s'.\n\n"+
						"Please:\n"+
						"1. Run `qa_run_start` with plan='%s'\n"+
						"2. Work through the checklist it returns. For each check, gather "+
						"evidence with the matching tool: `qa_db_query`/`qa_db_tables` for "+
						"data checks, `qa_measure_load_time`/`qa_console_errors`/`qa_screenshot` "+
						"for web checks\n"+
						"3. Report every check with `qa_check_report` (verdict, score, detail, "+
						"evidence) as soon as you have judged it\n"+
						"4. When the run finishes, show me the score summary and call out "+
						"anything below the gate%s",
					plan, plan, focusLine,
				)),
			},
		},
	}, nil
}
