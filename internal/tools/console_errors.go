package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/solutionqa/solqa/internal/probe"
)

// ConsoleErrorsTool handles the qa_console_errors MCP tool.
// It loads a page in the headless browser and collects console errors
// and warnings emitted during load.
type ConsoleErrorsTool struct {
	probes *probe.Manager
}

// NewConsoleErrorsTool creates a ConsoleErrorsTool with its browser manager.
func NewConsoleErrorsTool(probes *probe.Manager) *ConsoleErrorsTool {
	return &ConsoleErrorsTool{probes: probes}
}

// Definition returns the MCP tool definition for registration.
func (t *ConsoleErrorsTool) Definition() mcp.Tool {
	return mcp.NewTool("qa_console_errors",
		mcp.WithDescription(
			"Load a page in a headless browser and list the console errors "+
				"and warnings it emits. A clean console is evidence for ux and "+
				"functionality checks; errors point at broken scripts.",
		),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Absolute http(s) URL of the page to inspect."),
		),
	)
}

// Handle processes the qa_console_errors tool call.
func (t *ConsoleErrorsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url := strings.TrimSpace(req.GetString("url", ""))
	if url == "" {
		return mcp.NewToolResultError("url is required"), nil
	}

	messages, err := t.probes.ConsoleErrors(ctx, url)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf(
			"Cannot inspect %s: %v", url, err)), nil
	}

	return mcp.NewToolResultText(renderConsoleMessages(url, messages)), nil
}

// renderConsoleMessages builds the markdown console listing.
func renderConsoleMessages(url string, messages []probe.ConsoleMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Console Errors: %s\n\n", url)

	if len(messages) == 0 {
		b.WriteString("No errors or warnings during page load.\n")
		return b.String()
	}

	errs := 0
	for _, m := range messages {
		if m.Type == "error" {
			errs++
		}
	}
	fmt.Fprintf(&b, "**Found:** %d (%d errors, %d warnings)\n\n",
		len(messages), errs, len(messages)-errs)

	for _, m := range messages {
		fmt.Fprintf(&b, "- **%s** — %s\n", m.Type, m.Text)
	}
	return b.String()
}
