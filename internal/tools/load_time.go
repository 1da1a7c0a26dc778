package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/solutionqa/solqa/internal/probe"
)

// LoadTimeTool handles the qa_measure_load_time MCP tool.
// It loads a page in the headless browser and reports navigation-timing
// metrics for performance checks.
type LoadTimeTool struct {
	probes *probe.Manager
}

// NewLoadTimeTool creates a LoadTimeTool with its browser manager.
func NewLoadTimeTool(probes *probe.Manager) *LoadTimeTool {
	return &LoadTimeTool{probes: probes}
}

// Definition returns the MCP tool definition for registration.
func (t *LoadTimeTool) Definition() mcp.Tool {
	return mcp.NewTool("qa_measure_load_time",
		mcp.WithDescription(
			"Load a page in a headless browser and measure it: time to first "+
				"byte, DOM content loaded, the load event, bytes transferred, "+
				"and request count. Use the numbers as evidence for performance "+
				"checks.",
		),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Absolute http(s) URL of the page to measure."),
		),
	)
}

// Handle processes the qa_measure_load_time tool call.
func (t *LoadTimeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url := strings.TrimSpace(req.GetString("url", ""))
	if url == "" {
		return mcp.NewToolResultError("url is required"), nil
	}

	metrics, err := t.probes.MeasureLoadTime(ctx, url)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf(
			"Cannot measure %s: %v", url, err)), nil
	}

	return mcp.NewToolResultText(renderLoadMetrics(metrics)), nil
}

// renderLoadMetrics builds the markdown metrics table.
func renderLoadMetrics(m *probe.LoadMetrics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Load Time: %s\n\n", m.URL)
	b.WriteString("| Metric | Value |\n")
	b.WriteString("|--------|------:|\n")
	fmt.Fprintf(&b, "| First byte | %.0f ms |\n", m.FirstByteMs)
	fmt.Fprintf(&b, "| DOM content loaded | %.0f ms |\n", m.DOMContentLoadedMs)
	fmt.Fprintf(&b, "| Load event | %.0f ms |\n", m.LoadEventMs)
	fmt.Fprintf(&b, "| Transferred | %s |\n", formatBytes(m.TransferBytes))
	fmt.Fprintf(&b, "| Requests | %d |\n", m.Requests)
	b.WriteString("\nScore this under the `performance` category when reporting " +
		"the related check.\n")
	return b.String()
}

// formatBytes renders a byte count with a readable unit.
func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
