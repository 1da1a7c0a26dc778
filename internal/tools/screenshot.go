package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/solutionqa/solqa/internal/probe"
)

// ScreenshotTool handles the qa_screenshot MCP tool.
// It captures a full-page screenshot in the headless browser, for visual
// evidence on ux checks.
type ScreenshotTool struct {
	probes *probe.Manager
}

// NewScreenshotTool creates a ScreenshotTool with its browser manager.
func NewScreenshotTool(probes *probe.Manager) *ScreenshotTool {
	return &ScreenshotTool{probes: probes}
}

// Definition returns the MCP tool definition for registration.
func (t *ScreenshotTool) Definition() mcp.Tool {
	return mcp.NewTool("qa_screenshot",
		mcp.WithDescription(
			"Capture a full-page screenshot of a URL in a headless browser "+
				"and save it as a PNG. Reference the saved file as evidence "+
				"when reporting ux checks.",
		),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Absolute http(s) URL of the page to capture."),
		),
		mcp.WithString("path",
			mcp.Description("Where to save the PNG. Relative paths land in "+
				"the screenshot directory. Defaults to a timestamped name."),
		),
	)
}

// Handle processes the qa_screenshot tool call.
func (t *ScreenshotTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url := strings.TrimSpace(req.GetString("url", ""))
	if url == "" {
		return mcp.NewToolResultError("url is required"), nil
	}

	path := strings.TrimSpace(req.GetString("path", ""))
	if path == "" {
		path = fmt.Sprintf("screenshot-%s.png", time.Now().Format("20060102-150405"))
	}

	saved, err := t.probes.Screenshot(ctx, url, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf(
			"Cannot capture %s: %v", url, err)), nil
	}

	var b strings.Builder
	b.WriteString("# Screenshot Saved\n\n")
	fmt.Fprintf(&b, "**URL:** %s\n", url)
	fmt.Fprintf(&b, "**File:** `%s`\n\n", saved)
	b.WriteString("Reference this file as evidence when reporting the related check.\n")
	return mcp.NewToolResultText(b.String()), nil
}
