package decision

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Section names as they appear in document headings. Matching is
// case-insensitive; the canonical order is what Render emits.
const (
	sectionOverview       = "overview"
	sectionRequirements   = "requirements"
	sectionOptions        = "options evaluated"
	sectionMatrix         = "comparison matrix"
	sectionRecommendation = "recommendation"
	sectionArchitecture   = "recommended architecture"
	sectionPlan           = "implementation plan"
	sectionSummary        = "decision summary"
	sectionQuestions      = "open questions"
	sectionReferences     = "references"
)

// ParseFile reads and parses the decision document at path.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening document: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

// Parse reads a decision document from r. Parsing is permissive about
// missing sections (they are the linter's business) but strict about the
// skeleton: a document must have a title, and a Status line, when present,
// must carry a recognized status.
func Parse(r io.Reader) (*Document, error) {
	doc := &Document{}

	var (
		section    string          // current ## section, canonical lowercase
		listTarget *[]string       // where bullets currently land
		prose      *strings.Builder // where prose lines currently land
		curOption  *Option
		curPhase   *Phase
		inFence    bool
		fence      strings.Builder
		matrixSeen bool // separator row consumed
	)

	overview := &strings.Builder{}
	recommendation := &strings.Builder{}
	summary := &strings.Builder{}
	optionSummary := &strings.Builder{}

	flushOption := func() {
		if curOption != nil {
			curOption.Summary = strings.TrimSpace(optionSummary.String())
			optionSummary.Reset()
			doc.Options = append(doc.Options, *curOption)
			curOption = nil
		}
	}
	flushPhase := func() {
		if curPhase != nil {
			doc.Phases = append(doc.Phases, *curPhase)
			curPhase = nil
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		// Fenced blocks only matter inside Recommended Architecture,
		// but fences elsewhere must not be misread as prose.
		if strings.HasPrefix(trimmed, "```") {
			if section == sectionArchitecture {
				if inFence {
					doc.Architecture = strings.TrimRight(fence.String(), "\n")
					fence.Reset()
				}
			}
			inFence = !inFence
			continue
		}
		if inFence {
			if section == sectionArchitecture {
				fence.WriteString(line)
				fence.WriteByte('\n')
			}
			continue
		}

		// Title.
		if doc.Title == "" && strings.HasPrefix(trimmed, "# ") {
			doc.Title = strings.TrimSpace(trimmed[2:])
			continue
		}

		// Section headings.
		if name, ok := heading(trimmed, "## "); ok {
			flushOption()
			flushPhase()
			section = strings.ToLower(name)
			listTarget = nil
			prose = nil
			matrixSeen = false
			switch section {
			case sectionOverview:
				prose = overview
			case sectionRequirements:
				listTarget = &doc.Requirements
			case sectionRecommendation:
				prose = recommendation
			case sectionSummary:
				prose = summary
			case sectionQuestions:
				listTarget = &doc.OpenQuestions
			}
			continue
		}

		// Subsection headings (options and phases).
		if name, ok := heading(trimmed, "### "); ok {
			switch section {
			case sectionOptions:
				flushOption()
				num, title := splitNumbered(name, "option")
				if num == 0 {
					num = len(doc.Options) + 1
				}
				curOption = &Option{Number: num, Name: title}
				listTarget = nil
			case sectionPlan:
				flushPhase()
				num, title := splitNumbered(name, "phase")
				if num == 0 {
					num = len(doc.Phases) + 1
				}
				curPhase = &Phase{Number: num, Name: title}
			}
			continue
		}

		// Front matter: plain lines between the title and the first section.
		if section == "" {
			if v, ok := frontMatter(trimmed, "Date"); ok {
				doc.Date = v
				continue
			}
			if v, ok := frontMatter(trimmed, "Status"); ok {
				status := Status(strings.ToLower(v))
				if err := ValidateStatus(status); err != nil {
					return nil, err
				}
				doc.Status = status
				continue
			}
			if v, ok := frontMatter(trimmed, "Author"); ok {
				doc.Author = v
				continue
			}
			continue
		}

		// Bold field lines: **Pros:**, **Cons:**, **Tools:**, **Purpose:**.
		if key, rest, ok := boldField(trimmed); ok {
			switch {
			case curOption != nil && key == "pros":
				listTarget = &curOption.Pros
			case curOption != nil && key == "cons":
				listTarget = &curOption.Cons
			case curPhase != nil && key == "tools":
				curPhase.Tools = append(curPhase.Tools, splitList(rest)...)
			case curPhase != nil && key == "purpose":
				curPhase.Purpose = rest
			}
			continue
		}

		// Table rows (comparison matrix).
		if section == sectionMatrix && strings.HasPrefix(trimmed, "|") {
			cells := splitTableRow(trimmed)
			if len(cells) == 0 {
				continue
			}
			if doc.Matrix == nil {
				doc.Matrix = &Matrix{Options: cells[1:]}
				continue
			}
			if !matrixSeen && isSeparatorRow(cells) {
				matrixSeen = true
				continue
			}
			doc.Matrix.Criteria = append(doc.Matrix.Criteria, cells[0])
			doc.Matrix.Cells = append(doc.Matrix.Cells, cells[1:])
			continue
		}

		// Bullets.
		if item, ok := bullet(trimmed); ok {
			switch {
			case section == sectionReferences:
				doc.References = append(doc.References, parseReference(item))
			case curPhase != nil:
				// Tool bullets under a **Tools:** header line.
				curPhase.Tools = append(curPhase.Tools, item)
			case listTarget != nil:
				*listTarget = append(*listTarget, item)
			}
			continue
		}

		// Prose.
		if trimmed == "" {
			continue
		}
		switch {
		case curOption != nil && listTarget == nil:
			if optionSummary.Len() > 0 {
				optionSummary.WriteByte('\n')
			}
			optionSummary.WriteString(trimmed)
		case prose != nil:
			if prose.Len() > 0 {
				prose.WriteByte('\n')
			}
			prose.WriteString(trimmed)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}

	flushOption()
	flushPhase()

	if doc.Title == "" {
		return nil, fmt.Errorf("document has no title (expected a leading '# ...' heading)")
	}

	doc.Overview = strings.TrimSpace(overview.String())
	doc.Recommendation = strings.TrimSpace(recommendation.String())
	doc.Summary = strings.TrimSpace(summary.String())

	return doc, nil
}

// --- line classification helpers ---

// heading strips a heading prefix ("## " or "### ") and returns the text.
func heading(line, prefix string) (string, bool) {
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return strings.TrimSpace(line[len(prefix):]), true
}

// frontMatter matches "Key: value" lines (case-insensitive key).
func frontMatter(line, key string) (string, bool) {
	if len(line) <= len(key) || !strings.EqualFold(line[:len(key)], key) {
		return "", false
	}
	rest := line[len(key):]
	if !strings.HasPrefix(rest, ":") {
		return "", false
	}
	return strings.TrimSpace(rest[1:]), true
}

// bullet matches "- x", "* x" and "1. x" list items.
func bullet(line string) (string, bool) {
	if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
		return strings.TrimSpace(line[2:]), true
	}
	for i, r := range line {
		if r >= '0' && r <= '9' {
			continue
		}
		if r == '.' && i > 0 && strings.HasPrefix(line[i:], ". ") {
			return strings.TrimSpace(line[i+2:]), true
		}
		break
	}
	return "", false
}

// boldField matches "**Key:** rest" lines and lowercases the key.
func boldField(line string) (key, rest string, ok bool) {
	if !strings.HasPrefix(line, "**") {
		return "", "", false
	}
	end := strings.Index(line, ":**")
	if end < 0 {
		return "", "", false
	}
	key = strings.ToLower(strings.TrimSpace(line[2:end]))
	rest = strings.TrimSpace(line[end+len(":**"):])
	return key, rest, true
}

// splitNumbered parses "Option 2: Name" / "Phase 1: Name" subsection titles.
// The kind match is case-insensitive; a missing number yields 0.
func splitNumbered(text, kind string) (int, string) {
	lower := strings.ToLower(text)
	if !strings.HasPrefix(lower, kind) {
		return 0, text
	}
	rest := strings.TrimSpace(text[len(kind):])
	colon := strings.Index(rest, ":")
	if colon < 0 {
		return 0, text
	}
	num, err := strconv.Atoi(strings.TrimSpace(rest[:colon]))
	if err != nil {
		return 0, text
	}
	return num, strings.TrimSpace(rest[colon+1:])
}

// splitTableRow breaks "| a | b | c |" into trimmed cells.
func splitTableRow(line string) []string {
	parts := strings.Split(line, "|")
	// Leading and trailing pipes produce empty fragments.
	if len(parts) > 0 && strings.TrimSpace(parts[0]) == "" {
		parts = parts[1:]
	}
	if len(parts) > 0 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		cells = append(cells, strings.TrimSpace(p))
	}
	return cells
}

// isSeparatorRow reports whether all cells are markdown alignment dashes.
func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if c == "" {
			return false
		}
		for _, r := range c {
			if r != '-' && r != ':' && r != ' ' {
				return false
			}
		}
	}
	return true
}

// splitList breaks an inline "a, b, c" list into trimmed non-empty items.
func splitList(text string) []string {
	var items []string
	for _, part := range strings.Split(text, ",") {
		if p := strings.TrimSpace(part); p != "" {
			items = append(items, p)
		}
	}
	return items
}

// parseReference classifies one References bullet. Recognized forms:
// "[label](url)", a bare URL, and "internal repository: name". Anything
// else becomes a bare label, which the linter flags as unresolvable.
func parseReference(item string) Reference {
	lower := strings.ToLower(item)
	if strings.HasPrefix(lower, "internal repository:") {
		return Reference{Repo: strings.TrimSpace(item[len("internal repository:"):])}
	}

	if strings.HasPrefix(item, "[") {
		if close := strings.Index(item, "]("); close > 0 && strings.HasSuffix(item, ")") {
			return Reference{
				Label: item[1:close],
				URL:   strings.TrimSpace(item[close+2 : len(item)-1]),
			}
		}
	}

	if idx := strings.Index(item, "http://"); idx < 0 {
		if idx = strings.Index(item, "https://"); idx >= 0 {
			return splitLabeledURL(item, idx)
		}
	} else {
		return splitLabeledURL(item, idx)
	}

	return Reference{Label: item}
}

// splitLabeledURL splits "Some label https://..." into label and URL parts.
func splitLabeledURL(item string, idx int) Reference {
	url := strings.TrimSpace(item[idx:])
	if end := strings.IndexAny(url, " \t"); end > 0 {
		url = url[:end]
	}
	label := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(item[:idx]), "-–:"))
	return Reference{Label: label, URL: url}
}
