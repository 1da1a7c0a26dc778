package agent

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schema/verdict.schema.json
var verdictSchemaBytes []byte

var (
	verdictSchema     *jsonschema.Schema
	verdictCompile    sync.Once
	verdictCompileErr error
	verdictPrinter    = message.NewPrinter(language.English)
)

// Verdict is the structured outcome the agent reports for one check.
type Verdict struct {
	CheckID  string   `json:"check_id,omitempty"`
	Verdict  string   `json:"verdict"`
	Score    int      `json:"score"`
	Detail   string   `json:"detail,omitempty"`
	Evidence []string `json:"evidence,omitempty"`
}

// getVerdictSchema compiles the embedded JSON schema once.
func getVerdictSchema() (*jsonschema.Schema, error) {
	verdictCompile.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(verdictSchemaBytes))
		if err != nil {
			verdictCompileErr = fmt.Errorf("unmarshaling schema JSON: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource("verdict.schema.json", doc); err != nil {
			verdictCompileErr = fmt.Errorf("adding schema resource: %w", err)
			return
		}
		verdictSchema, verdictCompileErr = c.Compile("verdict.schema.json")
		if verdictCompileErr != nil {
			verdictCompileErr = fmt.Errorf("compiling schema: %w", verdictCompileErr)
		}
	})
	return verdictSchema, verdictCompileErr
}

// ParseVerdict validates raw JSON against the verdict schema and
// unmarshals it. Schema violations are reported with their instance
// paths so the orchestrator can feed them back to the agent.
func ParseVerdict(data []byte) (*Verdict, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("agent: empty verdict")
	}

	schema, err := getVerdictSchema()
	if err != nil {
		return nil, fmt.Errorf("agent: loading verdict schema: %w", err)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("agent: verdict is not valid JSON: %w", err)
	}

	if err := schema.Validate(inst); err != nil {
		validationErr, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return nil, fmt.Errorf("agent: verdict validation: %w", err)
		}
		return nil, fmt.Errorf("agent: invalid verdict: %s", strings.Join(verdictIssues(validationErr), "; "))
	}

	var v Verdict
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("agent: unmarshal verdict: %w", err)
	}
	return &v, nil
}

// verdictIssues walks the validation error tree and collects leaf
// errors with their instance paths.
func verdictIssues(ve *jsonschema.ValidationError) []string {
	var issues []string
	collectVerdictIssues(ve, &issues)
	if len(issues) == 0 {
		return []string{ve.Error()}
	}
	return issues
}

func collectVerdictIssues(ve *jsonschema.ValidationError, issues *[]string) {
	if len(ve.Causes) == 0 {
		path := "/" + strings.Join(ve.InstanceLocation, "/")
		if len(ve.InstanceLocation) == 0 {
			path = "/"
		}

		msg := ""
		if ve.ErrorKind != nil {
			msg = ve.ErrorKind.LocalizedString(verdictPrinter)
		}
		if msg == "" {
			return
		}

		*issues = append(*issues, fmt.Sprintf("%s: %s", path, msg))
		return
	}
	for _, cause := range ve.Causes {
		collectVerdictIssues(cause, issues)
	}
}

// VerdictFromResult extracts the verdict JSON from agent output. The
// agent is asked to finish with a fenced JSON block; some runs emit
// bare JSON instead, so both forms are accepted. When several fenced
// blocks appear, the last one wins.
func VerdictFromResult(res *Result) (*Verdict, error) {
	if res == nil || strings.TrimSpace(res.Output) == "" {
		return nil, fmt.Errorf("agent: no output to extract a verdict from")
	}

	raw := extractJSON(res.Output)
	if raw == "" {
		return nil, fmt.Errorf("agent: no verdict JSON found in output")
	}
	return ParseVerdict([]byte(raw))
}

// extractJSON finds the most likely JSON payload in free-form output.
func extractJSON(output string) string {
	// last fenced block, ```json or bare ```
	if block := lastFencedBlock(output); block != "" {
		return block
	}

	trimmed := strings.TrimSpace(output)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return trimmed
	}

	// fall back to the outermost brace span
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		return trimmed[start : end+1]
	}
	return ""
}

func lastFencedBlock(output string) string {
	var last string
	rest := output
	for {
		open := strings.Index(rest, "```")
		if open < 0 {
			break
		}
		body := rest[open+3:]
		// skip the language tag on the opening fence
		if nl := strings.Index(body, "\n"); nl >= 0 {
			body = body[nl+1:]
		}
		closing := strings.Index(body, "```")
		if closing < 0 {
			break
		}
		candidate := strings.TrimSpace(body[:closing])
		if strings.HasPrefix(candidate, "{") {
			last = candidate
		}
		rest = body[closing+3:]
	}
	return last
}
