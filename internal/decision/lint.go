package decision

import (
	"fmt"
	"strings"
)

// Check names, used to group findings in reports.
const (
	CheckOptionTradeoffs = "option-tradeoffs"
	CheckMatrixShape     = "matrix-shape"
	CheckPhaseTools      = "phase-tools"
	CheckQuestionForm    = "question-form"
	CheckReferenceTarget = "reference-target"
)

// Finding is one structural problem discovered by Lint.
type Finding struct {
	Check   string `json:"check"`
	Section string `json:"section"`
	Message string `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s: %s", f.Check, f.Section, f.Message)
}

// Lint verifies the five structural properties every decision document
// must satisfy before review:
//
//  1. every evaluated option lists both pros and cons;
//  2. the comparison matrix has one row per criterion and one column per
//     option, with every cell populated;
//  3. every implementation phase names at least one tool and states a purpose;
//  4. every open question is phrased as a question;
//  5. every reference resolves to a URL or an internal-repository label.
//
// A nil return means the document is clean. Findings follow document order.
func Lint(doc *Document) []Finding {
	var findings []Finding
	findings = append(findings, lintOptions(doc)...)
	findings = append(findings, lintMatrix(doc)...)
	findings = append(findings, lintPhases(doc)...)
	findings = append(findings, lintQuestions(doc)...)
	findings = append(findings, lintReferences(doc)...)
	return findings
}

// lintOptions: a Pros list and a Cons list, both present and non-empty,
// for every evaluated option.
func lintOptions(doc *Document) []Finding {
	var findings []Finding
	for _, opt := range doc.Options {
		name := optionLabel(opt)
		if len(nonEmpty(opt.Pros)) == 0 {
			findings = append(findings, Finding{
				Check:   CheckOptionTradeoffs,
				Section: "Options Evaluated",
				Message: fmt.Sprintf("%s has no pros listed", name),
			})
		}
		if len(nonEmpty(opt.Cons)) == 0 {
			findings = append(findings, Finding{
				Check:   CheckOptionTradeoffs,
				Section: "Options Evaluated",
				Message: fmt.Sprintf("%s has no cons listed", name),
			})
		}
	}
	return findings
}

// lintMatrix: exactly one row per criterion, exactly one column per
// evaluated option, every cell populated.
func lintMatrix(doc *Document) []Finding {
	const section = "Comparison Matrix"

	if doc.Matrix == nil {
		if len(doc.Options) == 0 {
			return nil
		}
		return []Finding{{
			Check:   CheckMatrixShape,
			Section: section,
			Message: "comparison matrix is missing",
		}}
	}

	var findings []Finding
	m := doc.Matrix

	if len(doc.Options) > 0 && len(m.Options) != len(doc.Options) {
		findings = append(findings, Finding{
			Check:   CheckMatrixShape,
			Section: section,
			Message: fmt.Sprintf("matrix has %d option columns but %d options were evaluated", len(m.Options), len(doc.Options)),
		})
	}

	if len(m.Criteria) == 0 {
		findings = append(findings, Finding{
			Check:   CheckMatrixShape,
			Section: section,
			Message: "matrix has no criterion rows",
		})
	}

	seen := make(map[string]bool, len(m.Criteria))
	for i, criterion := range m.Criteria {
		key := strings.ToLower(strings.TrimSpace(criterion))
		if key == "" {
			findings = append(findings, Finding{
				Check:   CheckMatrixShape,
				Section: section,
				Message: fmt.Sprintf("row %d has an empty criterion", i+1),
			})
		} else if seen[key] {
			findings = append(findings, Finding{
				Check:   CheckMatrixShape,
				Section: section,
				Message: fmt.Sprintf("criterion %q appears more than once", criterion),
			})
		}
		seen[key] = true

		if i >= len(m.Cells) {
			findings = append(findings, Finding{
				Check:   CheckMatrixShape,
				Section: section,
				Message: fmt.Sprintf("row %q has no cells", criterion),
			})
			continue
		}
		row := m.Cells[i]
		if len(row) != len(m.Options) {
			findings = append(findings, Finding{
				Check:   CheckMatrixShape,
				Section: section,
				Message: fmt.Sprintf("row %q has %d cells, want %d (one per option)", criterion, len(row), len(m.Options)),
			})
			continue
		}
		for j, cell := range row {
			if strings.TrimSpace(cell) == "" {
				findings = append(findings, Finding{
					Check:   CheckMatrixShape,
					Section: section,
					Message: fmt.Sprintf("empty cell for criterion %q, option %q", criterion, columnName(m, j)),
				})
			}
		}
	}

	return findings
}

// lintPhases: at least one named tool and a stated purpose per phase.
func lintPhases(doc *Document) []Finding {
	var findings []Finding
	for _, phase := range doc.Phases {
		name := phaseLabel(phase)
		if len(nonEmpty(phase.Tools)) == 0 {
			findings = append(findings, Finding{
				Check:   CheckPhaseTools,
				Section: "Implementation Plan",
				Message: fmt.Sprintf("%s names no tools", name),
			})
		}
		if strings.TrimSpace(phase.Purpose) == "" {
			findings = append(findings, Finding{
				Check:   CheckPhaseTools,
				Section: "Implementation Plan",
				Message: fmt.Sprintf("%s states no purpose", name),
			})
		}
	}
	return findings
}

// lintQuestions: every open question ends with "?".
func lintQuestions(doc *Document) []Finding {
	var findings []Finding
	for i, q := range doc.OpenQuestions {
		if !strings.HasSuffix(strings.TrimSpace(q), "?") {
			findings = append(findings, Finding{
				Check:   CheckQuestionForm,
				Section: "Open Questions",
				Message: fmt.Sprintf("question %d is not phrased as a question: %q", i+1, q),
			})
		}
	}
	return findings
}

// lintReferences: every entry resolves to a URL or an internal-repository label.
func lintReferences(doc *Document) []Finding {
	var findings []Finding
	for i, ref := range doc.References {
		if !ref.Resolvable() {
			findings = append(findings, Finding{
				Check:   CheckReferenceTarget,
				Section: "References",
				Message: fmt.Sprintf("reference %d resolves to neither a URL nor an internal repository: %q", i+1, ref.String()),
			})
		}
	}
	return findings
}

// --- helpers ---

func optionLabel(opt Option) string {
	if opt.Name != "" {
		return fmt.Sprintf("option %d (%s)", opt.Number, opt.Name)
	}
	return fmt.Sprintf("option %d", opt.Number)
}

func phaseLabel(p Phase) string {
	if p.Name != "" {
		return fmt.Sprintf("phase %d (%s)", p.Number, p.Name)
	}
	return fmt.Sprintf("phase %d", p.Number)
}

func columnName(m *Matrix, j int) string {
	if j < len(m.Options) {
		return m.Options[j]
	}
	return fmt.Sprintf("column %d", j+1)
}

func nonEmpty(items []string) []string {
	var out []string
	for _, s := range items {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
