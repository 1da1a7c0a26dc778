package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/solutionqa/solqa/internal/decision"
)

// DocLintTool handles the qa_doc_lint MCP tool.
// It parses a decision document and checks the five structural
// properties every document must satisfy before review.
type DocLintTool struct{}

// NewDocLintTool creates a DocLintTool.
func NewDocLintTool() *DocLintTool {
	return &DocLintTool{}
}

// Definition returns the MCP tool definition for registration.
func (t *DocLintTool) Definition() mcp.Tool {
	return mcp.NewTool("qa_doc_lint",
		mcp.WithDescription(
			"Lint a decision document. Verifies the five structural checks: "+
				"every option lists pros and cons, the comparison matrix is "+
				"complete, every implementation phase names tools and a purpose, "+
				"open questions are phrased as questions, and references "+
				"resolve somewhere. Use this before reviewing a document's "+
				"content.",
		),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the document. Relative paths resolve "+
				"against the project root."),
		),
	)
}

// Handle processes the qa_doc_lint tool call.
func (t *DocLintTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := strings.TrimSpace(req.GetString("path", ""))
	if path == "" {
		return mcp.NewToolResultError("path is required"), nil
	}
	if !filepath.IsAbs(path) {
		root, err := findProjectRoot()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(root, path)
	}

	doc, err := decision.ParseFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf(
			"Cannot parse document: %v", err)), nil
	}

	findings := decision.Lint(doc)
	return mcp.NewToolResultText(renderLintReport(path, doc, findings)), nil
}

// renderLintReport builds the markdown lint report, grouping findings
// by check in document order.
func renderLintReport(path string, doc *decision.Document, findings []decision.Finding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Document Lint: `%s`\n\n", filepath.Base(path))
	fmt.Fprintf(&b, "**Title:** %s\n", doc.Title)
	if doc.Status != "" {
		fmt.Fprintf(&b, "**Status:** %s\n", doc.Status)
	}

	if len(findings) == 0 {
		b.WriteString("\n✅ Passes all 5 checks.\n")
		return b.String()
	}

	var order []string
	grouped := make(map[string][]decision.Finding)
	for _, f := range findings {
		if _, ok := grouped[f.Check]; !ok {
			order = append(order, f.Check)
		}
		grouped[f.Check] = append(grouped[f.Check], f)
	}

	fmt.Fprintf(&b, "**Findings:** %d across %d checks\n", len(findings), len(order))
	for _, check := range order {
		fmt.Fprintf(&b, "\n## %s\n\n", check)
		for _, f := range grouped[check] {
			fmt.Fprintf(&b, "- %s: %s\n", f.Section, f.Message)
		}
	}
	return b.String()
}
