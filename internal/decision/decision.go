// Package decision models architecture decision documents: the memo format
// used to record how a solution's QA approach was chosen. A document carries
// plain-text front matter (Date, Status, Author) and a fixed section order:
// Overview, Requirements, Options Evaluated, Comparison Matrix,
// Recommendation, Recommended Architecture, Implementation Plan,
// Decision Summary, Open Questions, References.
//
// The package separates concerns across files:
// - types and the status enum here
// - Parse (markdown → Document) in parse.go
// - Lint (structural checks) in lint.go
// - Render (Document → canonical markdown) in render.go
//
// Parsing is permissive: missing sections produce zero values and are the
// linter's business. Lint is strict: it enforces the five structural
// properties every reviewable decision document must satisfy.
package decision

import (
	"fmt"
	"strings"
)

// --- Status enum ---

// Status is the lifecycle state of a decision document.
type Status string

const (
	StatusProposed   Status = "proposed"
	StatusAccepted   Status = "accepted"
	StatusRejected   Status = "rejected"
	StatusDeprecated Status = "deprecated"
	StatusSuperseded Status = "superseded"
)

// validStatuses is the set of allowed document statuses.
var validStatuses = map[Status]bool{
	StatusProposed:   true,
	StatusAccepted:   true,
	StatusRejected:   true,
	StatusDeprecated: true,
	StatusSuperseded: true,
}

// ValidateStatus returns an error if the status is not recognized.
func ValidateStatus(s Status) error {
	if !validStatuses[s] {
		return fmt.Errorf("invalid document status %q: must be one of: proposed, accepted, rejected, deprecated, superseded", s)
	}
	return nil
}

// --- Core data structures ---

// Document is the parsed form of a decision document.
type Document struct {
	Title  string `json:"title"`
	Date   string `json:"date"`
	Status Status `json:"status"`
	Author string `json:"author"`

	Overview       string      `json:"overview"`
	Requirements   []string    `json:"requirements"`
	Options        []Option    `json:"options"`
	Matrix         *Matrix     `json:"matrix,omitempty"`
	Recommendation string      `json:"recommendation"`
	Architecture   string      `json:"architecture"` // ASCII diagram, fence contents
	Phases         []Phase     `json:"phases"`
	Summary        string      `json:"summary"`
	OpenQuestions  []string    `json:"open_questions"`
	References     []Reference `json:"references"`
}

// Option is one evaluated approach, with its trade-offs.
type Option struct {
	Number  int      `json:"number"`
	Name    string   `json:"name"`
	Summary string   `json:"summary,omitempty"`
	Pros    []string `json:"pros"`
	Cons    []string `json:"cons"`
}

// Matrix is the comparison table: one row per criterion, one column
// per evaluated option. Cells[i][j] scores criterion i for option j.
type Matrix struct {
	Criteria []string   `json:"criteria"`
	Options  []string   `json:"options"`
	Cells    [][]string `json:"cells"`
}

// Phase is one step of the implementation plan. Every phase names the
// tools it delivers and states what they are for.
type Phase struct {
	Number  int      `json:"number"`
	Name    string   `json:"name"`
	Tools   []string `json:"tools"`
	Purpose string   `json:"purpose"`
}

// Reference is one entry of the References section. A reference resolves
// either to a URL or to an explicit internal-repository label.
type Reference struct {
	Label string `json:"label,omitempty"`
	URL   string `json:"url,omitempty"`
	Repo  string `json:"repo,omitempty"`
}

// Resolvable reports whether the reference points somewhere a reader
// can follow: an http(s) URL or a named internal repository.
func (r Reference) Resolvable() bool {
	if strings.HasPrefix(r.URL, "http://") || strings.HasPrefix(r.URL, "https://") {
		return true
	}
	return strings.TrimSpace(r.Repo) != ""
}

// String renders the reference the way the References section lists it.
func (r Reference) String() string {
	switch {
	case r.Repo != "":
		return "internal repository: " + r.Repo
	case r.Label != "" && r.URL != "":
		return fmt.Sprintf("[%s](%s)", r.Label, r.URL)
	case r.URL != "":
		return r.URL
	default:
		return r.Label
	}
}
