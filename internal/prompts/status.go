package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the qa-status MCP prompt.
// It instructs the AI to read and present the active run's state.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("qa-status",
		mcp.WithPromptDescription(
			"Check the active QA run. Shows per-check progress, verdicts "+
				"so far, what is blocked, and what to verify next.",
		),
	)
}

// Handle processes the qa-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "QA Run Status",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `qa_run_status` to check the active QA run.\n\n" +
						"Then:\n" +
						"1. Show me the progress in a clear, visual format\n" +
						"2. Call out failed or skipped checks and why\n" +
						"3. Tell me exactly which check to verify next\n" +
						"4. If the run has finished, run `score_report` and summarize the gate outcome",
				),
			},
		},
	}, nil
}
