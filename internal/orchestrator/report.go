package orchestrator

import (
	"fmt"
	"strings"

	"github.com/solutionqa/solqa/internal/qarun"
	"github.com/solutionqa/solqa/internal/scoring"
)

// ReportFile is the markdown report written into the run directory
// next to run.json.
const ReportFile = "report.md"

// renderReport builds the markdown QA report for a finished run.
func renderReport(run *qarun.Run, summary *scoring.RunSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# QA Report: %s\n\n", run.PlanName)
	fmt.Fprintf(&b, "**Run:** `%s`\n", run.ID)
	if run.Project != "" {
		fmt.Fprintf(&b, "**Project:** %s\n", run.Project)
	}
	fmt.Fprintf(&b, "**Status:** %s\n", run.Status)
	fmt.Fprintf(&b, "**Started:** %s\n", run.CreatedAt)
	if run.CompletedAt != "" {
		fmt.Fprintf(&b, "**Finished:** %s\n", run.CompletedAt)
	}

	b.WriteString("\n## Score\n\n")
	gate := "❌ gate failed"
	if summary.GatePassed {
		gate = "✅ gate passed"
	}
	fmt.Fprintf(&b, "**%d / 100** against a gate of %d — %s\n\n",
		summary.WeightedScore, summary.GateThreshold, gate)

	if len(summary.Categories) > 0 {
		b.WriteString("| Category | Score | Weight | Checks |\n")
		b.WriteString("|----------|------:|-------:|-------:|\n")
		for _, c := range summary.Categories {
			fmt.Fprintf(&b, "| %s | %d | %d | %d |\n", c.Category, c.Score, c.Weight, c.Checks)
		}
	}

	b.WriteString("\n## Checks\n\n")
	b.WriteString("| Check | Category | Verdict | Score | Detail |\n")
	b.WriteString("|-------|----------|---------|------:|--------|\n")
	for _, st := range run.Checks {
		verdict := string(st.Verdict)
		score := fmt.Sprintf("%d", st.Score)
		switch {
		case st.Status == qarun.StatusFailed:
			verdict = "error"
			score = "-"
		case st.Verdict == qarun.VerdictSkip:
			score = "-"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			st.Check.ID, st.Check.Category, verdict, score, tableCell(st.Detail))
	}

	var failures []qarun.CheckState
	for _, st := range run.Checks {
		if st.Status == qarun.StatusFailed || st.Verdict == qarun.VerdictFail {
			failures = append(failures, st)
		}
	}
	if len(failures) > 0 {
		b.WriteString("\n## Failures\n\n")
		for _, st := range failures {
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", st.Check.ID, st.Check.Name, st.Detail)
		}
	}

	if counts := summary.VerdictCounts; len(counts) > 0 {
		fmt.Fprintf(&b, "\n_%d scored checks: %d pass, %d warn, %d fail, %d skip_\n",
			summary.TotalChecks, counts["pass"], counts["warn"], counts["fail"], counts["skip"])
	}

	return b.String()
}

// tableCell makes free text safe for a one-line markdown table cell.
func tableCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "|", "\\|")
	if runes := []rune(s); len(runes) > 120 {
		s = string(runes[:120]) + "..."
	}
	if s == "" {
		s = "-"
	}
	return s
}

// summaryFromRun computes the summary directly from the run record,
// matching the score store's aggregation: skipped checks are counted
// but excluded from the weighted averages, and execution failures carry
// no verdict and contribute nothing.
func summaryFromRun(run *qarun.Run) *scoring.RunSummary {
	summary := &scoring.RunSummary{
		RunID:         run.ID,
		Project:       run.Project,
		Plan:          run.PlanName,
		Status:        string(run.Status),
		GateThreshold: run.GateThreshold,
		VerdictCounts: make(map[string]int),
		StartedAt:     run.CreatedAt,
	}
	if run.CompletedAt != "" {
		completed := run.CompletedAt
		summary.CompletedAt = &completed
	}

	type bucket struct {
		weightedSum int
		totalWeight int
		checks      int
	}
	buckets := make(map[string]*bucket)
	var order []string

	totalWeight := 0
	weightedSum := 0
	for _, st := range run.Checks {
		if st.Verdict == "" {
			continue
		}
		summary.TotalChecks++
		summary.VerdictCounts[string(st.Verdict)]++

		cat := string(st.Check.Category)
		b, ok := buckets[cat]
		if !ok {
			b = &bucket{}
			buckets[cat] = b
			order = append(order, cat)
		}
		b.checks++

		if st.Verdict == qarun.VerdictSkip {
			continue
		}
		weight := st.Check.EffectiveWeight()
		weightedSum += st.Score * weight
		totalWeight += weight
		b.weightedSum += st.Score * weight
		b.totalWeight += weight
	}

	if totalWeight > 0 {
		summary.WeightedScore = weightedSum / totalWeight
	}
	summary.GatePassed = summary.WeightedScore >= summary.GateThreshold

	for _, cat := range order {
		b := buckets[cat]
		cs := scoring.CategoryScore{Category: cat, Weight: b.totalWeight, Checks: b.checks}
		if b.totalWeight > 0 {
			cs.Score = b.weightedSum / b.totalWeight
		}
		summary.Categories = append(summary.Categories, cs)
	}

	return summary
}
