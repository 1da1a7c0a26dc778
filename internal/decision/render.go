package decision

import (
	"fmt"
	"strings"
)

// Render produces the canonical markdown form of a document. Parsing the
// output yields a document the linter scores identically to the input.
func Render(doc *Document) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", doc.Title)
	fmt.Fprintf(&b, "Date: %s\n", doc.Date)
	fmt.Fprintf(&b, "Status: %s\n", doc.Status)
	fmt.Fprintf(&b, "Author: %s\n\n", doc.Author)

	b.WriteString("## Overview\n\n")
	writeProse(&b, doc.Overview)

	b.WriteString("## Requirements\n\n")
	writeBullets(&b, doc.Requirements)

	b.WriteString("## Options Evaluated\n\n")
	for _, opt := range doc.Options {
		fmt.Fprintf(&b, "### Option %d: %s\n\n", opt.Number, opt.Name)
		writeProse(&b, opt.Summary)
		b.WriteString("**Pros:**\n\n")
		writeBullets(&b, opt.Pros)
		b.WriteString("**Cons:**\n\n")
		writeBullets(&b, opt.Cons)
	}

	b.WriteString("## Comparison Matrix\n\n")
	if doc.Matrix != nil {
		writeMatrix(&b, doc.Matrix)
	}

	b.WriteString("## Recommendation\n\n")
	writeProse(&b, doc.Recommendation)

	b.WriteString("## Recommended Architecture\n\n")
	if doc.Architecture != "" {
		b.WriteString("```\n")
		b.WriteString(doc.Architecture)
		b.WriteString("\n```\n\n")
	}

	b.WriteString("## Implementation Plan\n\n")
	for _, phase := range doc.Phases {
		fmt.Fprintf(&b, "### Phase %d: %s\n\n", phase.Number, phase.Name)
		fmt.Fprintf(&b, "**Tools:** %s\n", strings.Join(phase.Tools, ", "))
		fmt.Fprintf(&b, "**Purpose:** %s\n\n", phase.Purpose)
	}

	b.WriteString("## Decision Summary\n\n")
	writeProse(&b, doc.Summary)

	b.WriteString("## Open Questions\n\n")
	writeBullets(&b, doc.OpenQuestions)

	b.WriteString("## References\n\n")
	for _, ref := range doc.References {
		fmt.Fprintf(&b, "- %s\n", ref.String())
	}

	return b.String()
}

// NewTemplate builds a skeleton document for the given option names.
// The skeleton parses cleanly; its deliberately blank parts (matrix cells,
// phase purposes) are exactly what the linter reports until filled in.
func NewTemplate(title, author string, optionNames []string) *Document {
	doc := &Document{
		Title:  title,
		Date:   "",
		Status: StatusProposed,
		Author: author,
	}

	for i, name := range optionNames {
		doc.Options = append(doc.Options, Option{Number: i + 1, Name: name})
	}

	if len(optionNames) > 0 {
		doc.Matrix = &Matrix{Options: optionNames}
	}

	return doc
}

// --- rendering helpers ---

func writeProse(b *strings.Builder, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	b.WriteString(strings.TrimSpace(text))
	b.WriteString("\n\n")
}

func writeBullets(b *strings.Builder, items []string) {
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	if len(items) > 0 {
		b.WriteString("\n")
	}
}

func writeMatrix(b *strings.Builder, m *Matrix) {
	fmt.Fprintf(b, "| Criterion | %s |\n", strings.Join(m.Options, " | "))
	b.WriteString("|---|")
	for range m.Options {
		b.WriteString("---|")
	}
	b.WriteString("\n")
	for i, criterion := range m.Criteria {
		row := []string{criterion}
		if i < len(m.Cells) {
			row = append(row, m.Cells[i]...)
		}
		fmt.Fprintf(b, "| %s |\n", strings.Join(row, " | "))
	}
	if len(m.Criteria) > 0 {
		b.WriteString("\n")
	}
}
