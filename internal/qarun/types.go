// Package qarun handles QA plans and run records for solution checking.
//
// A plan (qa-plan.yaml) declares what to verify: checks grouped into
// weighted categories, optionally depending on one another. A run is one
// execution of a plan against a candidate solution, tracking per-check
// status, verdicts, and timestamps, persisted as run.json under qa/runs/.
//
// Types, plan loading, dependency ordering, the state machine, and the
// store live in separate files. Store is an interface so tools and the
// orchestrator depend on the abstraction, not the filesystem layout.
package qarun

import (
	"fmt"
	"strings"
)

// --- Run status enum ---

// RunStatus tracks lifecycle for both runs and individual checks.
type RunStatus string

const (
	StatusPending    RunStatus = "pending"
	StatusInProgress RunStatus = "in_progress"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
)

// validRunStatuses is the set of allowed statuses.
var validRunStatuses = map[RunStatus]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusFailed:     true,
}

// ValidateRunStatus returns an error if the status is not recognized.
func ValidateRunStatus(s RunStatus) error {
	if !validRunStatuses[s] {
		return fmt.Errorf("invalid run status %q: must be one of: pending, in_progress, completed, failed", s)
	}
	return nil
}

// Terminal reports whether the status is a final one.
func (s RunStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// --- Verdict enum ---

// Verdict is the outcome of a completed check. A check whose execution
// errored carries StatusFailed and no verdict.
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictWarn Verdict = "warn"
	VerdictFail Verdict = "fail"
	VerdictSkip Verdict = "skip"
)

// validVerdicts is the set of allowed verdicts.
var validVerdicts = map[Verdict]bool{
	VerdictPass: true,
	VerdictWarn: true,
	VerdictFail: true,
	VerdictSkip: true,
}

// ValidateVerdict returns an error if the verdict is not recognized.
func ValidateVerdict(v Verdict) error {
	if !validVerdicts[v] {
		return fmt.Errorf("invalid verdict %q: must be one of: pass, warn, fail, skip", v)
	}
	return nil
}

// Satisfies reports whether a check with this verdict unblocks its
// dependents. Warnings count: they flag concerns, not broken behavior.
func (v Verdict) Satisfies() bool {
	return v == VerdictPass || v == VerdictWarn
}

// --- Category enum ---

// Category groups checks by what aspect of the solution they exercise.
// Each category carries a default weight used in score aggregation;
// individual checks may override it.
type Category string

const (
	CategoryFunctionality Category = "functionality"
	CategoryDataIntegrity Category = "data_integrity"
	CategoryPerformance   Category = "performance"
	CategorySecurity      Category = "security"
	CategoryUX            Category = "ux"
)

// categoryWeights holds the default weight per category.
var categoryWeights = map[Category]int{
	CategoryFunctionality: 10,
	CategoryDataIntegrity: 8,
	CategoryPerformance:   6,
	CategorySecurity:      8,
	CategoryUX:            5,
}

// ValidateCategory returns an error if the category is not recognized.
func ValidateCategory(c Category) error {
	if _, ok := categoryWeights[c]; !ok {
		return fmt.Errorf("invalid category %q: must be one of: functionality, data_integrity, performance, security, ux", c)
	}
	return nil
}

// DefaultWeight returns the aggregation weight for the category,
// or 0 for unknown categories.
func (c Category) DefaultWeight() int {
	return categoryWeights[c]
}

// --- Core data structures ---

// Check is one verifiable property of a solution, declared in the plan.
type Check struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Category    Category `json:"category" yaml:"category"`
	Description string   `json:"description" yaml:"description"`
	Target      string   `json:"target,omitempty" yaml:"target,omitempty"`
	Weight      int      `json:"weight,omitempty" yaml:"weight,omitempty"`
	DependsOn   []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// EffectiveWeight returns the check's weight, falling back to the
// category default when the plan leaves it zero.
func (c Check) EffectiveWeight() int {
	if c.Weight > 0 {
		return c.Weight
	}
	return c.Category.DefaultWeight()
}

// CheckResult carries the outcome of executing one check.
type CheckResult struct {
	CheckID     string  `json:"check_id"`
	Verdict     Verdict `json:"verdict"`
	Score       int     `json:"score"`
	Detail      string  `json:"detail,omitempty"`
	CompletedAt string  `json:"completed_at,omitempty"`
}

// CheckState tracks progress for a single check within a run.
type CheckState struct {
	Check       Check     `json:"check"`
	Status      RunStatus `json:"status"`
	Verdict     Verdict   `json:"verdict,omitempty"`
	Score       int       `json:"score,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	StartedAt   string    `json:"started_at,omitempty"`
	CompletedAt string    `json:"completed_at,omitempty"`
}

// Run is the root data structure for one QA run, persisted as run.json.
type Run struct {
	ID            string       `json:"id"`
	Slug          string       `json:"slug"`
	PlanName      string       `json:"plan_name"`
	Project       string       `json:"project,omitempty"`
	GateThreshold int          `json:"gate_threshold"`
	Status        RunStatus    `json:"status"`
	Checks        []CheckState `json:"checks"`
	CreatedAt     string       `json:"created_at"`
	UpdatedAt     string       `json:"updated_at"`
	CompletedAt   string       `json:"completed_at,omitempty"`
}

// --- Slug generation ---

const maxSlugLen = 50

// Slugify converts a plan name into a filesystem-safe run slug.
// Example: "Checkout flow regression QA" → "checkout-flow-regression-qa"
//
// Rules:
//   - Lowercase
//   - Spaces and underscores become hyphens
//   - Non-alphanumeric characters (except hyphens) are removed
//   - Consecutive hyphens are collapsed
//   - Leading/trailing hyphens are trimmed
//   - Truncated to 50 characters (at a word boundary if possible)
//   - Empty input returns "unnamed-run"
func Slugify(name string) string {
	if strings.TrimSpace(name) == "" {
		return "unnamed-run"
	}

	s := strings.ToLower(strings.TrimSpace(name))

	var b strings.Builder
	prevHyphen := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			prevHyphen = false
		case r == ' ' || r == '_' || r == '-':
			if !prevHyphen {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")

	if slug == "" {
		return "unnamed-run"
	}

	if len(slug) <= maxSlugLen {
		return slug
	}

	// Truncate at word boundary if possible.
	truncated := slug[:maxSlugLen]
	if lastHyphen := strings.LastIndex(truncated, "-"); lastHyphen > maxSlugLen/2 {
		truncated = truncated[:lastHyphen]
	}

	return strings.TrimRight(truncated, "-")
}
