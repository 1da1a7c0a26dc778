package qarun

import (
	"fmt"
	"sort"
	"strings"
)

// --- Dependency ordering and readiness ---
//
// Checks declare dependencies by ID. A check becomes processable once
// every dependency has completed with a satisfying verdict; a failed or
// skipped dependency makes its dependents skippable instead.

// OrderChecks sorts checks so that dependencies come before dependents,
// using Kahn's algorithm. Ties keep plan order, so the result is stable.
// Unknown dependencies and cycles are errors.
func OrderChecks(checks []Check) ([]Check, error) {
	graph := make(map[string][]string)
	inDegree := make(map[string]int)
	byID := make(map[string]Check)

	for _, c := range checks {
		byID[c.ID] = c
		graph[c.ID] = make([]string, 0)
		if _, ok := inDegree[c.ID]; !ok {
			inDegree[c.ID] = 0
		}
	}

	for _, c := range checks {
		for _, depID := range c.DependsOn {
			if _, ok := graph[depID]; !ok {
				return nil, fmt.Errorf("check %q depends on unknown check %q", c.ID, depID)
			}
			graph[depID] = append(graph[depID], c.ID)
			inDegree[c.ID]++
		}
	}

	queue := make([]string, 0, len(checks))
	for _, c := range checks {
		if inDegree[c.ID] == 0 {
			queue = append(queue, c.ID)
		}
	}

	sorted := make([]Check, 0, len(checks))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, byID[id])

		for _, neighbor := range graph[id] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(sorted) != len(checks) {
		var cyclic []string
		for id, degree := range inDegree {
			if degree > 0 {
				cyclic = append(cyclic, id)
			}
		}
		sort.Strings(cyclic)
		return nil, fmt.Errorf("dependency cycle involving checks: %s", strings.Join(cyclic, ", "))
	}

	return sorted, nil
}

// depSatisfied reports whether the dependency completed with a verdict
// that unblocks dependents.
func depSatisfied(run *Run, id string) bool {
	st := findCheck(run, id)
	return st != nil && st.Status == StatusCompleted && st.Verdict.Satisfies()
}

// depDead reports whether the dependency can no longer satisfy anyone:
// its execution failed, it was skipped, or its verdict was fail.
func depDead(run *Run, id string) bool {
	st := findCheck(run, id)
	if st == nil {
		return true
	}
	if st.Status == StatusFailed {
		return true
	}
	return st.Status == StatusCompleted && !st.Verdict.Satisfies()
}

// ProcessableChecks returns pending checks whose dependencies have all
// completed with a satisfying verdict.
func ProcessableChecks(run *Run) []Check {
	processable := make([]Check, 0)
	for _, st := range run.Checks {
		if st.Status != StatusPending {
			continue
		}
		ready := true
		for _, dep := range st.Check.DependsOn {
			if !depSatisfied(run, dep) {
				ready = false
				break
			}
		}
		if ready {
			processable = append(processable, st.Check)
		}
	}
	return processable
}

// SkippableChecks returns pending checks that can never run because at
// least one dependency failed or was skipped.
func SkippableChecks(run *Run) []Check {
	skippable := make([]Check, 0)
	for _, st := range run.Checks {
		if st.Status != StatusPending {
			continue
		}
		for _, dep := range st.Check.DependsOn {
			if depDead(run, dep) {
				skippable = append(skippable, st.Check)
				break
			}
		}
	}
	return skippable
}

// BlockedChecks returns pending checks waiting on dependencies that are
// still pending or in progress.
func BlockedChecks(run *Run) []Check {
	blocked := make([]Check, 0)
	for _, st := range run.Checks {
		if st.Status != StatusPending {
			continue
		}
		waiting := false
		dead := false
		for _, dep := range st.Check.DependsOn {
			if depDead(run, dep) {
				dead = true
				break
			}
			if !depSatisfied(run, dep) {
				waiting = true
			}
		}
		if waiting && !dead {
			blocked = append(blocked, st.Check)
		}
	}
	return blocked
}

// MissingDependencies returns the dependency IDs of a check that have
// not yet completed with a satisfying verdict.
func MissingDependencies(run *Run, id string) []string {
	st := findCheck(run, id)
	if st == nil {
		return nil
	}
	missing := make([]string, 0)
	for _, dep := range st.Check.DependsOn {
		if !depSatisfied(run, dep) {
			missing = append(missing, dep)
		}
	}
	return missing
}
