package qarun

import (
	"testing"
)

// --- Helper: an in-progress run with a small dependency chain ---
//
// a <- b <- c, with d independent.

func testDepsRun() *Run {
	checks := []Check{
		{ID: "a", Name: "A", Category: CategoryDataIntegrity},
		{ID: "b", Name: "B", Category: CategoryFunctionality, DependsOn: []string{"a"}},
		{ID: "c", Name: "C", Category: CategoryPerformance, DependsOn: []string{"b"}},
		{ID: "d", Name: "D", Category: CategoryUX},
	}
	run := &Run{
		ID:     "test-run-id",
		Slug:   "test-run",
		Status: StatusInProgress,
		Checks: make([]CheckState, len(checks)),
	}
	for i, c := range checks {
		run.Checks[i] = CheckState{Check: c, Status: StatusPending}
	}
	return run
}

func checkIDs(checks []Check) []string {
	ids := make([]string, len(checks))
	for i, c := range checks {
		ids[i] = c.ID
	}
	return ids
}

func sameIDs(got []Check, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i, c := range got {
		if c.ID != want[i] {
			return false
		}
	}
	return true
}

// --- OrderChecks ---

func TestOrderChecks_DependenciesFirst(t *testing.T) {
	checks := []Check{
		{ID: "c", Category: CategoryPerformance, DependsOn: []string{"b"}},
		{ID: "b", Category: CategoryFunctionality, DependsOn: []string{"a"}},
		{ID: "a", Category: CategoryDataIntegrity},
	}

	ordered, err := OrderChecks(checks)
	if err != nil {
		t.Fatalf("OrderChecks failed: %v", err)
	}
	if !sameIDs(ordered, "a", "b", "c") {
		t.Errorf("OrderChecks = %v, want [a b c]", checkIDs(ordered))
	}
}

func TestOrderChecks_KeepsPlanOrderForIndependentChecks(t *testing.T) {
	checks := []Check{
		{ID: "first", Category: CategoryFunctionality},
		{ID: "second", Category: CategorySecurity},
		{ID: "third", Category: CategoryUX},
	}

	ordered, err := OrderChecks(checks)
	if err != nil {
		t.Fatalf("OrderChecks failed: %v", err)
	}
	if !sameIDs(ordered, "first", "second", "third") {
		t.Errorf("OrderChecks = %v, want plan order preserved", checkIDs(ordered))
	}
}

func TestOrderChecks_Diamond(t *testing.T) {
	checks := []Check{
		{ID: "top", Category: CategoryDataIntegrity},
		{ID: "left", Category: CategoryFunctionality, DependsOn: []string{"top"}},
		{ID: "right", Category: CategorySecurity, DependsOn: []string{"top"}},
		{ID: "bottom", Category: CategoryUX, DependsOn: []string{"left", "right"}},
	}

	ordered, err := OrderChecks(checks)
	if err != nil {
		t.Fatalf("OrderChecks failed: %v", err)
	}
	if !sameIDs(ordered, "top", "left", "right", "bottom") {
		t.Errorf("OrderChecks = %v, want [top left right bottom]", checkIDs(ordered))
	}
}

func TestOrderChecks_UnknownDependency(t *testing.T) {
	checks := []Check{
		{ID: "a", Category: CategoryFunctionality, DependsOn: []string{"ghost"}},
	}

	if _, err := OrderChecks(checks); err == nil {
		t.Fatal("OrderChecks with unknown dependency should fail")
	}
}

func TestOrderChecks_Cycle(t *testing.T) {
	checks := []Check{
		{ID: "a", Category: CategoryFunctionality, DependsOn: []string{"b"}},
		{ID: "b", Category: CategorySecurity, DependsOn: []string{"a"}},
	}

	_, err := OrderChecks(checks)
	if err == nil {
		t.Fatal("OrderChecks with cycle should fail")
	}
	if !containsStr(err.Error(), "cycle") {
		t.Errorf("error should mention cycle, got: %s", err.Error())
	}
	if !containsStr(err.Error(), "a, b") {
		t.Errorf("error should name the cyclic checks, got: %s", err.Error())
	}
}

func TestOrderChecks_Empty(t *testing.T) {
	ordered, err := OrderChecks(nil)
	if err != nil {
		t.Fatalf("OrderChecks(nil) failed: %v", err)
	}
	if len(ordered) != 0 {
		t.Errorf("OrderChecks(nil) = %v, want empty", checkIDs(ordered))
	}
}

// --- ProcessableChecks / BlockedChecks / SkippableChecks ---

func TestProcessableChecks_Initial(t *testing.T) {
	run := testDepsRun()
	got := ProcessableChecks(run)
	if !sameIDs(got, "a", "d") {
		t.Errorf("ProcessableChecks = %v, want [a d]", checkIDs(got))
	}
}

func TestProcessableChecks_AfterDependencyPasses(t *testing.T) {
	run := testDepsRun()
	findCheck(run, "a").Status = StatusCompleted
	findCheck(run, "a").Verdict = VerdictPass

	got := ProcessableChecks(run)
	if !sameIDs(got, "b", "d") {
		t.Errorf("ProcessableChecks = %v, want [b d]", checkIDs(got))
	}
}

func TestProcessableChecks_WarnAlsoSatisfies(t *testing.T) {
	run := testDepsRun()
	findCheck(run, "a").Status = StatusCompleted
	findCheck(run, "a").Verdict = VerdictWarn

	got := ProcessableChecks(run)
	if !sameIDs(got, "b", "d") {
		t.Errorf("ProcessableChecks = %v, want [b d]", checkIDs(got))
	}
}

func TestProcessableChecks_InProgressNotIncluded(t *testing.T) {
	run := testDepsRun()
	findCheck(run, "a").Status = StatusInProgress

	got := ProcessableChecks(run)
	if !sameIDs(got, "d") {
		t.Errorf("ProcessableChecks = %v, want [d]", checkIDs(got))
	}
}

func TestSkippableChecks_AfterDependencyFails(t *testing.T) {
	run := testDepsRun()
	findCheck(run, "a").Status = StatusCompleted
	findCheck(run, "a").Verdict = VerdictFail

	// b's dependency is dead; c waits on b, which is still pending.
	if got := SkippableChecks(run); !sameIDs(got, "b") {
		t.Errorf("SkippableChecks = %v, want [b]", checkIDs(got))
	}
	if got := BlockedChecks(run); !sameIDs(got, "c") {
		t.Errorf("BlockedChecks = %v, want [c]", checkIDs(got))
	}
}

func TestSkippableChecks_SkipCascades(t *testing.T) {
	run := testDepsRun()
	findCheck(run, "a").Status = StatusCompleted
	findCheck(run, "a").Verdict = VerdictFail
	findCheck(run, "b").Status = StatusCompleted
	findCheck(run, "b").Verdict = VerdictSkip

	if got := SkippableChecks(run); !sameIDs(got, "c") {
		t.Errorf("SkippableChecks = %v, want [c]", checkIDs(got))
	}
}

func TestSkippableChecks_ExecutionFailureAlsoKills(t *testing.T) {
	run := testDepsRun()
	findCheck(run, "a").Status = StatusFailed

	if got := SkippableChecks(run); !sameIDs(got, "b") {
		t.Errorf("SkippableChecks = %v, want [b]", checkIDs(got))
	}
}

func TestBlockedChecks_Initial(t *testing.T) {
	run := testDepsRun()
	got := BlockedChecks(run)
	if !sameIDs(got, "b", "c") {
		t.Errorf("BlockedChecks = %v, want [b c]", checkIDs(got))
	}
}

func TestMissingDependencies(t *testing.T) {
	run := testDepsRun()
	if got := MissingDependencies(run, "b"); len(got) != 1 || got[0] != "a" {
		t.Errorf("MissingDependencies(b) = %v, want [a]", got)
	}

	findCheck(run, "a").Status = StatusCompleted
	findCheck(run, "a").Verdict = VerdictPass
	if got := MissingDependencies(run, "b"); len(got) != 0 {
		t.Errorf("MissingDependencies(b) after pass = %v, want none", got)
	}

	if got := MissingDependencies(run, "ghost"); got != nil {
		t.Errorf("MissingDependencies(ghost) = %v, want nil", got)
	}
}
