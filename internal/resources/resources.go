// Package resources implements MCP resource handlers for QA runs.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (qa://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/solutionqa/solqa/internal/qarun"
)

// Handler manages QA resource endpoints.
type Handler struct {
	runs qarun.Store
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(runs qarun.Store) *Handler {
	return &Handler{runs: runs}
}

// RunStatusResource returns the MCP resource definition for the active run.
func (h *Handler) RunStatusResource() mcp.Resource {
	return mcp.NewResource(
		"qa://run/status",
		"QA Run Status",
		mcp.WithResourceDescription("The active QA run record: checks, verdicts, and progress"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleRunStatus returns the active run record as JSON.
func (h *Handler) HandleRunStatus(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	run, err := h.runs.LoadActive()
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling run: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// PlanResource returns the MCP resource definition for the QA plan.
func (h *Handler) PlanResource() mcp.Resource {
	return mcp.NewResource(
		"qa://plan",
		"QA Plan",
		mcp.WithResourceDescription("The project's QA plan: checks, categories, weights, and the gate threshold"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandlePlan returns the validated plan as JSON.
func (h *Handler) HandlePlan(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	root, err := findResourceRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}

	plan, err := qarun.LoadPlan(filepath.Join(root, qarun.PlanFile))
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling plan: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}

// findResourceRoot is a simplified version of project root detection
// for resource handlers.
func findResourceRoot() (string, error) {
	// Resources reuse the same logic as tools.
	// In a more complex setup, this could be injected.
	return findRoot()
}
