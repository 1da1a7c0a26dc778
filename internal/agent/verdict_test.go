package agent

import (
	"strings"
	"testing"
)

func TestParseVerdict(t *testing.T) {
	data := []byte(`{
		"check_id": "login-happy-path",
		"verdict": "pass",
		"score": 88,
		"detail": "login succeeds and lands on the dashboard",
		"evidence": ["POST /login returned 302", "dashboard heading rendered"]
	}`)

	v, err := ParseVerdict(data)
	if err != nil {
		t.Fatalf("ParseVerdict: %v", err)
	}
	if v.CheckID != "login-happy-path" {
		t.Errorf("CheckID = %q", v.CheckID)
	}
	if v.Verdict != "pass" || v.Score != 88 {
		t.Errorf("verdict = %s/%d, want pass/88", v.Verdict, v.Score)
	}
	if len(v.Evidence) != 2 {
		t.Errorf("len(Evidence) = %d, want 2", len(v.Evidence))
	}
}

func TestParseVerdictMinimal(t *testing.T) {
	v, err := ParseVerdict([]byte(`{"verdict":"fail","score":0}`))
	if err != nil {
		t.Fatalf("ParseVerdict: %v", err)
	}
	if v.Verdict != "fail" || v.Score != 0 {
		t.Errorf("verdict = %s/%d", v.Verdict, v.Score)
	}
}

func TestParseVerdictInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing verdict", `{"score": 50}`},
		{"missing score", `{"verdict": "pass"}`},
		{"unknown verdict value", `{"verdict": "maybe", "score": 50}`},
		{"score above range", `{"verdict": "pass", "score": 150}`},
		{"score below range", `{"verdict": "pass", "score": -1}`},
		{"score not integer", `{"verdict": "pass", "score": "high"}`},
		{"evidence not strings", `{"verdict": "pass", "score": 80, "evidence": [42]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseVerdict([]byte(tt.data))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), "invalid verdict") {
				t.Errorf("error = %v", err)
			}
		})
	}
}

func TestParseVerdictNotJSON(t *testing.T) {
	_, err := ParseVerdict([]byte("the check passed, I think"))
	if err == nil {
		t.Fatal("expected error for non-JSON input")
	}
	if !strings.Contains(err.Error(), "not valid JSON") {
		t.Errorf("error = %v", err)
	}
}

func TestParseVerdictEmpty(t *testing.T) {
	if _, err := ParseVerdict(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestVerdictFromResult(t *testing.T) {
	tests := []struct {
		name        string
		output      string
		wantVerdict string
		wantScore   int
	}{
		{
			name:        "bare JSON output",
			output:      `{"verdict":"pass","score":90}`,
			wantVerdict: "pass",
			wantScore:   90,
		},
		{
			name: "fenced json block",
			output: "I finished the check.\n\n```json\n" +
				`{"verdict":"warn","score":65,"detail":"slow login"}` +
				"\n```\n",
			wantVerdict: "warn",
			wantScore:   65,
		},
		{
			name: "last fenced block wins",
			output: "First attempt:\n```json\n" +
				`{"verdict":"fail","score":20}` +
				"\n```\nAfter retrying:\n```json\n" +
				`{"verdict":"pass","score":85}` +
				"\n```\n",
			wantVerdict: "pass",
			wantScore:   85,
		},
		{
			name: "fence without language tag",
			output: "```\n" +
				`{"verdict":"skip","score":0,"detail":"no database configured"}` +
				"\n```",
			wantVerdict: "skip",
			wantScore:   0,
		},
		{
			name:        "JSON embedded in prose",
			output:      `The verdict is {"verdict":"pass","score":70} as requested.`,
			wantVerdict: "pass",
			wantScore:   70,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := VerdictFromResult(&Result{Success: true, Output: tt.output})
			if err != nil {
				t.Fatalf("VerdictFromResult: %v", err)
			}
			if v.Verdict != tt.wantVerdict || v.Score != tt.wantScore {
				t.Errorf("verdict = %s/%d, want %s/%d", v.Verdict, v.Score, tt.wantVerdict, tt.wantScore)
			}
		})
	}
}

func TestVerdictFromResultNoJSON(t *testing.T) {
	_, err := VerdictFromResult(&Result{Success: true, Output: "all good, trust me"})
	if err == nil {
		t.Fatal("expected error when no JSON present")
	}
}

func TestVerdictFromResultNil(t *testing.T) {
	if _, err := VerdictFromResult(nil); err == nil {
		t.Fatal("expected error for nil result")
	}
}
