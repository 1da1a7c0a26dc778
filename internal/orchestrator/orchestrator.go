// Package orchestrator drives complete QA runs without an interactive
// agent session. It creates the run record for a plan, walks checks in
// dependency order, calls the agent CLI once per check, and turns the
// returned verdicts into run state, score history, and a markdown
// report next to run.json.
//
// The orchestrator owns the run record for the duration of the run.
// Agents it spawns use the solqa MCP tools for inspection only and
// reply with a verdict JSON block; recording happens here.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/solutionqa/solqa/internal/agent"
	"github.com/solutionqa/solqa/internal/config"
	"github.com/solutionqa/solqa/internal/qarun"
	"github.com/solutionqa/solqa/internal/scoring"
)

// Caller is the slice of the agent client the orchestrator needs.
// *agent.Caller satisfies it; tests substitute a fake.
type Caller interface {
	CallWithRetry(ctx context.Context, prompt string, maxRetries int, opts ...agent.CallOption) (*agent.Result, error)
	IsAvailable() bool
}

// Orchestrator runs every check of one plan to completion.
type Orchestrator struct {
	caller Caller
	plan   *qarun.Plan
	runs   qarun.Store
	scores *scoring.Store // nullable — runs work without score history
	cfg    *config.Config
	log    *zap.Logger
}

// New creates an orchestrator for the plan. scores may be nil; a nil
// logger discards all logging.
func New(caller Caller, plan *qarun.Plan, runs qarun.Store, scores *scoring.Store, cfg *config.Config, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		caller: caller,
		plan:   plan,
		runs:   runs,
		scores: scores,
		cfg:    cfg,
		log:    log,
	}
}

// Outcome summarizes a finished run for the caller.
type Outcome struct {
	RunID      string
	Status     qarun.RunStatus
	Summary    *scoring.RunSummary
	ReportPath string
}

// Run executes the plan end to end: create the run record, process
// checks in dependency order, skip whatever strands, then finish,
// report, and archive. Agent and verdict problems mark the affected
// check failed and the loop moves on; only persistence errors abort.
func (o *Orchestrator) Run(ctx context.Context) (*Outcome, error) {
	if err := o.plan.Validate(); err != nil {
		return nil, fmt.Errorf("validating plan: %w", err)
	}
	if !o.caller.IsAvailable() {
		return nil, fmt.Errorf("%w: %q is not on PATH", agent.ErrAgentNotFound, o.cfg.AgentCommand)
	}

	run, err := qarun.NewRun(o.plan)
	if err != nil {
		return nil, err
	}
	if err := o.runs.Create(run); err != nil {
		return nil, err
	}
	o.recordRun(run)

	o.log.Info("run started",
		zap.String("run_id", run.ID),
		zap.String("slug", run.Slug),
		zap.Int("checks", len(run.Checks)))

	if err := o.processChecks(ctx, run); err != nil {
		return nil, err
	}
	return o.finish(run)
}

// RetryFailed reopens the most recent failed or unfinished run and
// drives the remaining checks with Run semantics. Checks skipped in the
// earlier pass keep their skip verdict; a fresh run re-evaluates
// everything.
func (o *Orchestrator) RetryFailed(ctx context.Context) (*Outcome, error) {
	if !o.caller.IsAvailable() {
		return nil, fmt.Errorf("%w: %q is not on PATH", agent.ErrAgentNotFound, o.cfg.AgentCommand)
	}

	run, err := o.latestRetryable()
	if err != nil {
		return nil, err
	}

	// A crash can leave checks in_progress; fail them so the reset
	// below returns them to pending.
	for _, st := range run.Checks {
		if st.Status == qarun.StatusInProgress {
			_ = qarun.FailCheck(run, st.Check.ID, "execution interrupted")
		}
	}

	reset := qarun.RetryFailed(run)
	pending := qarun.CountByStatus(run)[qarun.StatusPending]
	if reset == 0 && pending == 0 {
		return nil, fmt.Errorf("run %q has nothing to retry", run.Slug)
	}
	if err := o.saveRun(run); err != nil {
		return nil, err
	}
	o.recordRun(run)

	o.log.Info("run reopened",
		zap.String("run_id", run.ID),
		zap.String("slug", run.Slug),
		zap.Int("reset", reset),
		zap.Int("pending", pending))

	if err := o.processChecks(ctx, run); err != nil {
		return nil, err
	}
	return o.finish(run)
}

// latestRetryable returns the most recently updated run that failed or
// never finished. Completed runs are not retryable.
func (o *Orchestrator) latestRetryable() (*qarun.Run, error) {
	runs, err := o.runs.List()
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	var latest *qarun.Run
	for i := range runs {
		r := &runs[i]
		if r.Status != qarun.StatusFailed && r.Status.Terminal() {
			continue
		}
		if latest == nil || r.UpdatedAt > latest.UpdatedAt {
			latest = r
		}
	}
	if latest == nil {
		return nil, errors.New("no failed or unfinished run to retry")
	}
	return latest, nil
}

// processChecks walks the dependency order until nothing is processable,
// then skips stranded checks so the run can finish.
func (o *Orchestrator) processChecks(ctx context.Context, run *qarun.Run) error {
	mcpConfig, err := o.writeMCPConfig()
	if err != nil {
		o.log.Warn("agent runs without MCP tools", zap.Error(err))
	}

	// Each pass executes at least one check or stops, so one pass per
	// check plus a final empty pass bounds the loop.
	maxIterations := len(run.Checks) + 1
	for i := 0; i < maxIterations; i++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("run %q interrupted: %w", run.Slug, ctx.Err())
		default:
		}

		ready := qarun.ProcessableChecks(run)
		if len(ready) == 0 {
			break
		}
		for _, check := range ready {
			if ctx.Err() != nil {
				return fmt.Errorf("run %q interrupted: %w", run.Slug, ctx.Err())
			}
			if err := o.executeCheck(ctx, run, check, mcpConfig); err != nil {
				return err
			}
		}
	}

	if skipped := qarun.SweepStranded(run); len(skipped) > 0 {
		for _, id := range skipped {
			if st := stateOf(run, id); st != nil {
				o.log.Info("check skipped",
					zap.String("check", id),
					zap.String("reason", st.Detail))
			}
			o.recordResult(run, id, "", 0)
		}
		if err := o.saveRun(run); err != nil {
			return err
		}
	}
	return nil
}

// executeCheck drives one agent call and records whatever comes back.
// The returned error is reserved for persistence failures; agent and
// verdict problems land in the check state instead.
func (o *Orchestrator) executeCheck(ctx context.Context, run *qarun.Run, check qarun.Check, mcpConfig string) error {
	if err := qarun.StartCheck(run, check.ID); err != nil {
		return err
	}
	if err := o.saveRun(run); err != nil {
		return err
	}
	o.log.Info("check started",
		zap.String("check", check.ID),
		zap.String("category", string(check.Category)))

	opts := []agent.CallOption{
		agent.WithTimeout(o.cfg.AgentTimeout),
		agent.WithWorkingDir(o.cfg.ProjectRoot),
	}
	if mcpConfig != "" {
		opts = append(opts, agent.WithMCPConfig(mcpConfig))
	}

	start := time.Now()
	result, err := o.caller.CallWithRetry(ctx, buildCheckPrompt(o.plan, check, o.cfg), o.cfg.MaxRetries, opts...)
	duration := time.Since(start)

	if err != nil {
		return o.failCheck(run, check.ID, fmt.Sprintf("agent call failed: %v", err))
	}
	if !result.Success {
		detail := result.Error
		if detail == "" {
			detail = fmt.Sprintf("agent exited with code %d", result.ExitCode)
		}
		return o.failCheck(run, check.ID, "agent call failed: "+detail)
	}

	verdict, err := agent.VerdictFromResult(result)
	if err != nil {
		return o.failCheck(run, check.ID, fmt.Sprintf("unusable verdict: %v", err))
	}
	if verdict.CheckID != "" && verdict.CheckID != check.ID {
		return o.failCheck(run, check.ID, fmt.Sprintf(
			"verdict reports check %q, expected %q", verdict.CheckID, check.ID))
	}

	if qarun.Verdict(verdict.Verdict) == qarun.VerdictSkip {
		reason := verdict.Detail
		if reason == "" {
			reason = "skipped by agent"
		}
		if err := qarun.SkipCheck(run, check.ID, reason); err != nil {
			return o.failCheck(run, check.ID, fmt.Sprintf("recording skip: %v", err))
		}
	} else {
		if err := qarun.CompleteCheck(run, check.ID, qarun.CheckResult{
			CheckID: check.ID,
			Verdict: qarun.Verdict(verdict.Verdict),
			Score:   verdict.Score,
			Detail:  verdictDetail(verdict),
		}); err != nil {
			return o.failCheck(run, check.ID, fmt.Sprintf("recording verdict: %v", err))
		}
	}
	if err := o.saveRun(run); err != nil {
		return err
	}
	o.recordResult(run, check.ID, o.cfg.AgentCommand, duration)

	o.log.Info("check completed",
		zap.String("check", check.ID),
		zap.String("verdict", verdict.Verdict),
		zap.Int("score", verdict.Score),
		zap.Duration("duration", duration))
	return nil
}

// failCheck marks a check's execution failed and persists the run.
func (o *Orchestrator) failCheck(run *qarun.Run, id, detail string) error {
	if err := qarun.FailCheck(run, id, detail); err != nil {
		return err
	}
	o.log.Warn("check failed",
		zap.String("check", id),
		zap.String("detail", detail))
	return o.saveRun(run)
}

// finish closes the run: final status, score history, report, archive.
func (o *Orchestrator) finish(run *qarun.Run) (*Outcome, error) {
	if err := qarun.FinishRun(run); err != nil {
		return nil, err
	}
	if err := o.saveRun(run); err != nil {
		return nil, err
	}
	o.completeRun(run)

	summary := o.summarize(run)
	reportPath := o.writeReport(run, summary)

	if err := o.runs.Archive(run.ID); err != nil && !errors.Is(err, qarun.ErrAlreadyArchived) {
		o.log.Warn("run not archived", zap.String("slug", run.Slug), zap.Error(err))
	}
	if reportPath != "" {
		// Archiving moved the run directory and the report with it.
		if dir, err := o.runs.RunDir(run.ID); err == nil {
			reportPath = filepath.Join(dir, ReportFile)
		}
	}

	o.log.Info("run finished",
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status)),
		zap.Int("weighted_score", summary.WeightedScore),
		zap.Bool("gate_passed", summary.GatePassed))

	return &Outcome{
		RunID:      run.ID,
		Status:     run.Status,
		Summary:    summary,
		ReportPath: reportPath,
	}, nil
}

// summarize prefers the score store's aggregation and falls back to
// computing the same numbers from the run record alone.
func (o *Orchestrator) summarize(run *qarun.Run) *scoring.RunSummary {
	if o.scores != nil {
		summary, err := o.scores.Summary(run.ID)
		if err == nil {
			return summary
		}
		o.log.Warn("score summary unavailable, using run record", zap.Error(err))
	}
	return summaryFromRun(run)
}

// writeReport renders report.md next to run.json, best effort.
func (o *Orchestrator) writeReport(run *qarun.Run, summary *scoring.RunSummary) string {
	dir, err := o.runs.RunDir(run.ID)
	if err != nil {
		o.log.Warn("report not written", zap.Error(err))
		return ""
	}
	path := filepath.Join(dir, ReportFile)
	if err := os.WriteFile(path, []byte(renderReport(run, summary)), 0o644); err != nil {
		o.log.Warn("report not written", zap.Error(err))
		return ""
	}
	return path
}

// saveRun persists the run record. Save failures abort the run: the
// record on disk is the source of truth and must not drift.
func (o *Orchestrator) saveRun(run *qarun.Run) error {
	if err := o.runs.Save(run); err != nil {
		return fmt.Errorf("saving run %q: %w", run.Slug, err)
	}
	return nil
}

// recordRun mirrors the run into score history, best effort.
func (o *Orchestrator) recordRun(run *qarun.Run) {
	if o.scores == nil {
		return
	}
	err := o.scores.RecordRun(scoring.RunParams{
		ID:            run.ID,
		Project:       run.Project,
		Plan:          run.PlanName,
		Status:        string(run.Status),
		GateThreshold: run.GateThreshold,
		StartedAt:     run.CreatedAt,
	})
	if err != nil {
		o.log.Warn("run not recorded in score history", zap.Error(err))
	}
}

// recordResult mirrors one terminal check into score history, best
// effort. Execution failures carry no verdict and get no score row.
func (o *Orchestrator) recordResult(run *qarun.Run, id, toolName string, duration time.Duration) {
	if o.scores == nil {
		return
	}
	st := stateOf(run, id)
	if st == nil || st.Verdict == "" {
		return
	}
	_, err := o.scores.RecordResult(scoring.ResultParams{
		RunID:      run.ID,
		CheckID:    id,
		Category:   string(st.Check.Category),
		Verdict:    string(st.Verdict),
		Score:      st.Score,
		Weight:     st.Check.EffectiveWeight(),
		Detail:     st.Detail,
		ToolName:   toolName,
		DurationMs: duration.Milliseconds(),
	})
	if err != nil {
		o.log.Warn("check not recorded in score history",
			zap.String("check", id), zap.Error(err))
	}
}

// completeRun closes the score history row, best effort.
func (o *Orchestrator) completeRun(run *qarun.Run) {
	if o.scores == nil {
		return
	}
	if err := o.scores.CompleteRun(run.ID, string(run.Status)); err != nil {
		o.log.Warn("run not completed in score history", zap.Error(err))
	}
}

// verdictDetail folds the agent's evidence lines into the stored detail.
func verdictDetail(v *agent.Verdict) string {
	detail := v.Detail
	if len(v.Evidence) > 0 {
		if detail != "" {
			detail += "\n"
		}
		detail += "Evidence: " + strings.Join(v.Evidence, "; ")
	}
	return detail
}

// stateOf returns the state for a check ID, or nil.
func stateOf(run *qarun.Run, id string) *qarun.CheckState {
	for i := range run.Checks {
		if run.Checks[i].Check.ID == id {
			return &run.Checks[i]
		}
	}
	return nil
}
