package qarun

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// --- State machine for QA runs ---
//
// A run starts pending with every check pending. Checks move
// pending -> in_progress -> completed (with a verdict) or failed
// (execution error, no verdict). The run finishes completed when every
// check reached a verdict, failed when any check's execution failed.

// NewRun builds a run record for the plan: fresh ID, slug from the plan
// name, and one pending CheckState per check in dependency order.
func NewRun(plan *Plan) (*Run, error) {
	ordered, err := OrderChecks(plan.Checks)
	if err != nil {
		return nil, err
	}

	threshold := plan.GateThreshold
	if threshold == 0 {
		threshold = DefaultGateThreshold
	}

	now := timeNow().UTC().Format(time.RFC3339)
	run := &Run{
		ID:            uuid.NewString(),
		Slug:          Slugify(plan.Name),
		PlanName:      plan.Name,
		Project:       plan.Project,
		GateThreshold: threshold,
		Status:        StatusPending,
		Checks:        make([]CheckState, len(ordered)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for i, c := range ordered {
		run.Checks[i] = CheckState{Check: c, Status: StatusPending}
	}
	return run, nil
}

// findCheck returns a pointer to the state for the given check ID,
// or nil if the run has no such check.
func findCheck(run *Run, id string) *CheckState {
	for i := range run.Checks {
		if run.Checks[i].Check.ID == id {
			return &run.Checks[i]
		}
	}
	return nil
}

// StartCheck marks a pending check in progress. The first started check
// also moves the run itself to in_progress.
func StartCheck(run *Run, id string) error {
	st := findCheck(run, id)
	if st == nil {
		return fmt.Errorf("unknown check %q in run %q", id, run.Slug)
	}
	if st.Status != StatusPending {
		return fmt.Errorf("check %q is not pending (status: %s)", id, st.Status)
	}

	now := timeNow().UTC().Format(time.RFC3339)
	st.Status = StatusInProgress
	st.StartedAt = now
	if run.Status == StatusPending {
		run.Status = StatusInProgress
	}
	run.UpdatedAt = now
	return nil
}

// CompleteCheck records the result for an in-progress check and marks
// it completed.
func CompleteCheck(run *Run, id string, result CheckResult) error {
	st := findCheck(run, id)
	if st == nil {
		return fmt.Errorf("unknown check %q in run %q", id, run.Slug)
	}
	if st.Status.Terminal() {
		return fmt.Errorf("check %q already finished (status: %s)", id, st.Status)
	}
	if err := ValidateVerdict(result.Verdict); err != nil {
		return err
	}
	if result.Score < 0 || result.Score > 100 {
		return fmt.Errorf("score %d for check %q out of range 0-100", result.Score, id)
	}

	now := timeNow().UTC().Format(time.RFC3339)
	st.Status = StatusCompleted
	st.Verdict = result.Verdict
	st.Score = result.Score
	st.Detail = result.Detail
	st.CompletedAt = result.CompletedAt
	if st.CompletedAt == "" {
		st.CompletedAt = now
	}
	run.UpdatedAt = now
	return nil
}

// SkipCheck marks a check completed with a skip verdict. Used when a
// dependency failed or the operator rules the check out.
func SkipCheck(run *Run, id, reason string) error {
	st := findCheck(run, id)
	if st == nil {
		return fmt.Errorf("unknown check %q in run %q", id, run.Slug)
	}
	if st.Status.Terminal() {
		return fmt.Errorf("check %q already finished (status: %s)", id, st.Status)
	}

	now := timeNow().UTC().Format(time.RFC3339)
	st.Status = StatusCompleted
	st.Verdict = VerdictSkip
	st.Detail = reason
	st.CompletedAt = now
	run.UpdatedAt = now
	return nil
}

// SweepStranded skips every pending check whose dependencies can no
// longer be satisfied, repeating until nothing new strands. Returns the
// skipped check IDs in sweep order.
func SweepStranded(run *Run) []string {
	var skipped []string
	for {
		stranded := SkippableChecks(run)
		if len(stranded) == 0 {
			return skipped
		}
		for _, c := range stranded {
			reason := fmt.Sprintf("dependency not satisfied: %s",
				strings.Join(MissingDependencies(run, c.ID), ", "))
			if err := SkipCheck(run, c.ID, reason); err == nil {
				skipped = append(skipped, c.ID)
			}
		}
	}
}

// FailCheck marks a check's execution as failed. No verdict is recorded;
// the check is eligible for RetryFailed.
func FailCheck(run *Run, id, detail string) error {
	st := findCheck(run, id)
	if st == nil {
		return fmt.Errorf("unknown check %q in run %q", id, run.Slug)
	}
	if st.Status.Terminal() {
		return fmt.Errorf("check %q already finished (status: %s)", id, st.Status)
	}

	now := timeNow().UTC().Format(time.RFC3339)
	st.Status = StatusFailed
	st.Verdict = ""
	st.Detail = detail
	st.CompletedAt = now
	run.UpdatedAt = now
	return nil
}

// FinishRun closes the run once every check is terminal: completed when
// all checks reached a verdict, failed when any execution failed.
func FinishRun(run *Run) error {
	if run.Status.Terminal() {
		return fmt.Errorf("run %q already finished (status: %s)", run.Slug, run.Status)
	}

	unfinished := 0
	anyFailed := false
	for _, st := range run.Checks {
		if !st.Status.Terminal() {
			unfinished++
		}
		if st.Status == StatusFailed {
			anyFailed = true
		}
	}
	if unfinished > 0 {
		return fmt.Errorf("run %q still has %d unfinished checks", run.Slug, unfinished)
	}

	now := timeNow().UTC().Format(time.RFC3339)
	if anyFailed {
		run.Status = StatusFailed
	} else {
		run.Status = StatusCompleted
	}
	run.CompletedAt = now
	run.UpdatedAt = now
	return nil
}

// RetryFailed resets every failed check to pending, clearing its result
// fields, and reopens the run if it had finished. Returns the number of
// checks reset.
func RetryFailed(run *Run) int {
	count := 0
	for i := range run.Checks {
		if run.Checks[i].Status != StatusFailed {
			continue
		}
		run.Checks[i].Status = StatusPending
		run.Checks[i].Verdict = ""
		run.Checks[i].Score = 0
		run.Checks[i].Detail = ""
		run.Checks[i].StartedAt = ""
		run.Checks[i].CompletedAt = ""
		count++
	}

	if count > 0 {
		if run.Status.Terminal() {
			run.Status = StatusInProgress
			run.CompletedAt = ""
		}
		run.UpdatedAt = timeNow().UTC().Format(time.RFC3339)
	}
	return count
}

// CountByStatus tallies the run's checks per status.
func CountByStatus(run *Run) map[RunStatus]int {
	counts := make(map[RunStatus]int)
	for _, st := range run.Checks {
		counts[st.Status]++
	}
	return counts
}
