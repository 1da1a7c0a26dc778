package qarun

import (
	"testing"
)

func TestValidateRunStatus(t *testing.T) {
	tests := []struct {
		name    string
		input   RunStatus
		wantErr bool
	}{
		{"pending is valid", StatusPending, false},
		{"in_progress is valid", StatusInProgress, false},
		{"completed is valid", StatusCompleted, false},
		{"failed is valid", StatusFailed, false},
		{"empty is invalid", RunStatus(""), true},
		{"unknown is invalid", RunStatus("done"), true},
		{"case sensitive", RunStatus("Pending"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRunStatus(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRunStatus(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestRunStatusTerminal(t *testing.T) {
	tests := []struct {
		input RunStatus
		want  bool
	}{
		{StatusPending, false},
		{StatusInProgress, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}

	for _, tt := range tests {
		if got := tt.input.Terminal(); got != tt.want {
			t.Errorf("%q.Terminal() = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestValidateVerdict(t *testing.T) {
	tests := []struct {
		name    string
		input   Verdict
		wantErr bool
	}{
		{"pass is valid", VerdictPass, false},
		{"warn is valid", VerdictWarn, false},
		{"fail is valid", VerdictFail, false},
		{"skip is valid", VerdictSkip, false},
		{"empty is invalid", Verdict(""), true},
		{"unknown is invalid", Verdict("maybe"), true},
		{"case sensitive", Verdict("PASS"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVerdict(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVerdict(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestVerdictSatisfies(t *testing.T) {
	tests := []struct {
		input Verdict
		want  bool
	}{
		{VerdictPass, true},
		{VerdictWarn, true},
		{VerdictFail, false},
		{VerdictSkip, false},
		{Verdict(""), false},
	}

	for _, tt := range tests {
		if got := tt.input.Satisfies(); got != tt.want {
			t.Errorf("%q.Satisfies() = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestValidateCategory(t *testing.T) {
	tests := []struct {
		name    string
		input   Category
		wantErr bool
	}{
		{"functionality is valid", CategoryFunctionality, false},
		{"data_integrity is valid", CategoryDataIntegrity, false},
		{"performance is valid", CategoryPerformance, false},
		{"security is valid", CategorySecurity, false},
		{"ux is valid", CategoryUX, false},
		{"empty is invalid", Category(""), true},
		{"unknown is invalid", Category("style"), true},
		{"case sensitive", Category("Security"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCategory(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCategory(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestCategoryDefaultWeight(t *testing.T) {
	tests := []struct {
		input Category
		want  int
	}{
		{CategoryFunctionality, 10},
		{CategoryDataIntegrity, 8},
		{CategoryPerformance, 6},
		{CategorySecurity, 8},
		{CategoryUX, 5},
		{Category("bogus"), 0},
	}

	for _, tt := range tests {
		if got := tt.input.DefaultWeight(); got != tt.want {
			t.Errorf("%q.DefaultWeight() = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestEffectiveWeight(t *testing.T) {
	tests := []struct {
		name  string
		check Check
		want  int
	}{
		{
			name:  "explicit weight wins",
			check: Check{ID: "c1", Category: CategoryFunctionality, Weight: 3},
			want:  3,
		},
		{
			name:  "zero weight falls back to category",
			check: Check{ID: "c2", Category: CategorySecurity},
			want:  8,
		},
		{
			name:  "unknown category with zero weight",
			check: Check{ID: "c3", Category: Category("bogus")},
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.check.EffectiveWeight(); got != tt.want {
				t.Errorf("EffectiveWeight() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple plan name",
			input: "Checkout flow regression QA",
			want:  "checkout-flow-regression-qa",
		},
		{
			name:  "already slugified",
			input: "nightly-smoke",
			want:  "nightly-smoke",
		},
		{
			name:  "special characters removed",
			input: "Verify OAuth2.0 (Google) login!",
			want:  "verify-oauth20-google-login",
		},
		{
			name:  "consecutive spaces collapsed",
			input: "check   multiple   spaces",
			want:  "check-multiple-spaces",
		},
		{
			name:  "underscores become hyphens",
			input: "inventory_sync_audit",
			want:  "inventory-sync-audit",
		},
		{
			name:  "mixed separators",
			input: "qa - the _ works -- now",
			want:  "qa-the-works-now",
		},
		{
			name:  "empty string",
			input: "",
			want:  "unnamed-run",
		},
		{
			name:  "only special characters",
			input: "!@#$%^&*()",
			want:  "unnamed-run",
		},
		{
			name:  "long name truncated at word boundary",
			input: "this is a very long plan name that exceeds the maximum slug length of fifty characters significantly",
			want:  "this-is-a-very-long-plan-name-that-exceeds-the",
		},
		{
			name:  "exactly 50 chars",
			input: "12345678901234567890123456789012345678901234567890",
			want:  "12345678901234567890123456789012345678901234567890",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Slugify(tt.input)
			if got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if len(got) > maxSlugLen {
				t.Errorf("Slugify(%q) length = %d, exceeds max %d", tt.input, len(got), maxSlugLen)
			}
		})
	}
}
