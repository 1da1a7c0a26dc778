// Package scoring implements the persistent score history for QA runs.
//
// It uses SQLite to record per-check results and aggregate them into
// weighted run scores. Every check carries a weight (from its category
// or the plan); the run score is the weighted average over all checks
// that produced a real verdict. Skipped checks are counted but do not
// move the score.
package scoring

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ─── Types ───────────────────────────────────────────────────────────────────

// RunParams holds the input for registering a run.
type RunParams struct {
	ID            string `json:"id"`
	Project       string `json:"project,omitempty"`
	Plan          string `json:"plan"`
	Status        string `json:"status"`
	GateThreshold int    `json:"gate_threshold"`
	StartedAt     string `json:"started_at,omitempty"`
}

// RunRecord is a persisted run row.
type RunRecord struct {
	ID            string  `json:"id"`
	Project       *string `json:"project,omitempty"`
	Plan          string  `json:"plan"`
	Status        string  `json:"status"`
	GateThreshold int     `json:"gate_threshold"`
	StartedAt     string  `json:"started_at"`
	CompletedAt   *string `json:"completed_at,omitempty"`
}

// ResultParams holds the input for recording one check result.
type ResultParams struct {
	RunID      string `json:"run_id"`
	CheckID    string `json:"check_id"`
	Category   string `json:"category"`
	Verdict    string `json:"verdict"`
	Score      int    `json:"score"`
	Weight     int    `json:"weight"`
	Detail     string `json:"detail,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// Result is one recorded check outcome within a run.
type Result struct {
	ID         int64   `json:"id"`
	RunID      string  `json:"run_id"`
	CheckID    string  `json:"check_id"`
	Category   string  `json:"category"`
	Verdict    string  `json:"verdict"`
	Score      int     `json:"score"`
	Weight     int     `json:"weight"`
	Detail     *string `json:"detail,omitempty"`
	ToolName   *string `json:"tool_name,omitempty"`
	DurationMs int64   `json:"duration_ms"`
	CreatedAt  string  `json:"created_at"`
}

// CategoryScore is the weighted aggregate for one category within a run.
type CategoryScore struct {
	Category string `json:"category"`
	Score    int    `json:"score"`
	Weight   int    `json:"weight"`
	Checks   int    `json:"checks"`
}

// RunSummary is the aggregated view of one run: the weighted score,
// per-category breakdown, verdict counts, and the gate outcome.
type RunSummary struct {
	RunID         string          `json:"run_id"`
	Project       string          `json:"project,omitempty"`
	Plan          string          `json:"plan"`
	Status        string          `json:"status"`
	GateThreshold int             `json:"gate_threshold"`
	WeightedScore int             `json:"weighted_score"`
	GatePassed    bool            `json:"gate_passed"`
	Categories    []CategoryScore `json:"categories"`
	VerdictCounts map[string]int  `json:"verdict_counts"`
	TotalChecks   int             `json:"total_checks"`
	StartedAt     string          `json:"started_at"`
	CompletedAt   *string         `json:"completed_at,omitempty"`
}

// HistoryEntry embeds a RunRecord with its aggregate score.
type HistoryEntry struct {
	RunRecord
	WeightedScore int `json:"weighted_score"`
	Checks        int `json:"checks"`
}

// Stats holds aggregate score-history statistics.
type Stats struct {
	TotalRuns    int      `json:"total_runs"`
	TotalResults int      `json:"total_results"`
	Projects     []string `json:"projects"`
}

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds score store configuration.
type Config struct {
	DataDir string
}

// DefaultConfig returns the default configuration for the score store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir: filepath.Join(home, ".solqa"),
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the persistent score history backed by SQLite.
type Store struct {
	db  *sql.DB
	cfg Config
}

// New creates a new Store with the given configuration.
// It creates the data directory if needed, opens SQLite with WAL mode,
// and runs migrations.
func New(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("scoring: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "scores.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("scoring: open database: %w", err)
	}

	// SQLite performance pragmas
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("scoring: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("scoring: migration: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id             TEXT PRIMARY KEY,
			project        TEXT,
			plan           TEXT NOT NULL,
			status         TEXT NOT NULL,
			gate_threshold INTEGER NOT NULL DEFAULT 70,
			started_at     TEXT NOT NULL DEFAULT (datetime('now')),
			completed_at   TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project);
		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);

		CREATE TABLE IF NOT EXISTS results (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT    NOT NULL,
			check_id    TEXT    NOT NULL,
			category    TEXT    NOT NULL,
			verdict     TEXT    NOT NULL,
			score       INTEGER NOT NULL DEFAULT 0,
			weight      INTEGER NOT NULL DEFAULT 1,
			detail      TEXT,
			tool_name   TEXT,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at  TEXT    NOT NULL DEFAULT (datetime('now')),
			FOREIGN KEY (run_id) REFERENCES runs(id)
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_results_run_check ON results(run_id, check_id);
		CREATE INDEX IF NOT EXISTS idx_results_category ON results(category);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ─── Runs ────────────────────────────────────────────────────────────────────

// RecordRun registers a run, ignoring duplicates by ID.
func (s *Store) RecordRun(p RunParams) error {
	startedAt := p.StartedAt
	if startedAt == "" {
		var now string
		if err := s.db.QueryRow("SELECT datetime('now')").Scan(&now); err == nil {
			startedAt = now
		}
	}
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO runs (id, project, plan, status, gate_threshold, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, nullableString(p.Project), p.Plan, p.Status, p.GateThreshold, startedAt,
	)
	if err != nil {
		return fmt.Errorf("scoring: record run: %w", err)
	}
	return nil
}

// CompleteRun marks a run finished with the given status.
func (s *Store) CompleteRun(id, status string) error {
	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, completed_at = datetime('now') WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("scoring: complete run: %w", err)
	}
	return nil
}

// GetRun retrieves a run row by ID.
func (s *Store) GetRun(id string) (*RunRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, project, plan, status, gate_threshold, started_at, completed_at FROM runs WHERE id = ?`, id,
	)
	var r RunRecord
	if err := row.Scan(&r.ID, &r.Project, &r.Plan, &r.Status, &r.GateThreshold, &r.StartedAt, &r.CompletedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("scoring: run %q not found", id)
		}
		return nil, fmt.Errorf("scoring: get run: %w", err)
	}
	return &r, nil
}

// ─── Results ─────────────────────────────────────────────────────────────────

// RecordResult records one check outcome, upserting on (run_id, check_id):
// re-running a check replaces its earlier result.
func (s *Store) RecordResult(p ResultParams) (int64, error) {
	var existingID int64
	err := s.db.QueryRow(
		`SELECT id FROM results WHERE run_id = ? AND check_id = ?`,
		p.RunID, p.CheckID,
	).Scan(&existingID)
	if err == nil {
		_, err := s.db.Exec(
			`UPDATE results
			 SET category = ?,
			     verdict = ?,
			     score = ?,
			     weight = ?,
			     detail = ?,
			     tool_name = ?,
			     duration_ms = ?,
			     created_at = datetime('now')
			 WHERE id = ?`,
			p.Category, p.Verdict, p.Score, p.Weight,
			nullableString(p.Detail), nullableString(p.ToolName), p.DurationMs,
			existingID,
		)
		if err != nil {
			return 0, fmt.Errorf("scoring: update result: %w", err)
		}
		return existingID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("scoring: find result: %w", err)
	}

	res, err := s.db.Exec(
		`INSERT INTO results (run_id, check_id, category, verdict, score, weight, detail, tool_name, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.RunID, p.CheckID, p.Category, p.Verdict, p.Score, p.Weight,
		nullableString(p.Detail), nullableString(p.ToolName), p.DurationMs,
	)
	if err != nil {
		return 0, fmt.Errorf("scoring: insert result: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("scoring: result id: %w", err)
	}
	return id, nil
}

// Results returns all recorded results for a run in insertion order.
func (s *Store) Results(runID string) ([]Result, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, check_id, category, verdict, score, weight, detail, tool_name, duration_ms, created_at
		 FROM results WHERE run_id = ? ORDER BY id ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("scoring: query results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(
			&r.ID, &r.RunID, &r.CheckID, &r.Category, &r.Verdict,
			&r.Score, &r.Weight, &r.Detail, &r.ToolName, &r.DurationMs, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ─── Aggregation ─────────────────────────────────────────────────────────────

// Summary aggregates a run's results: the overall weighted score, the
// per-category breakdown, verdict counts, and whether the gate passed.
// Skipped checks are counted but excluded from the weighted averages.
func (s *Store) Summary(runID string) (*RunSummary, error) {
	run, err := s.GetRun(runID)
	if err != nil {
		return nil, err
	}

	results, err := s.Results(runID)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{
		RunID:         run.ID,
		Plan:          run.Plan,
		Status:        run.Status,
		GateThreshold: run.GateThreshold,
		VerdictCounts: make(map[string]int),
		TotalChecks:   len(results),
		StartedAt:     run.StartedAt,
		CompletedAt:   run.CompletedAt,
	}
	if run.Project != nil {
		summary.Project = *run.Project
	}

	type bucket struct {
		weightedSum int
		totalWeight int
		checks      int
	}
	buckets := make(map[string]*bucket)
	var order []string

	totalWeight := 0
	weightedSum := 0
	for _, r := range results {
		summary.VerdictCounts[r.Verdict]++

		b, ok := buckets[r.Category]
		if !ok {
			b = &bucket{}
			buckets[r.Category] = b
			order = append(order, r.Category)
		}
		b.checks++

		if r.Verdict == "skip" {
			continue
		}
		weightedSum += r.Score * r.Weight
		totalWeight += r.Weight
		b.weightedSum += r.Score * r.Weight
		b.totalWeight += r.Weight
	}

	if totalWeight > 0 {
		summary.WeightedScore = weightedSum / totalWeight
	}
	summary.GatePassed = summary.WeightedScore >= summary.GateThreshold

	for _, cat := range order {
		b := buckets[cat]
		cs := CategoryScore{Category: cat, Weight: b.totalWeight, Checks: b.checks}
		if b.totalWeight > 0 {
			cs.Score = b.weightedSum / b.totalWeight
		}
		summary.Categories = append(summary.Categories, cs)
	}

	return summary, nil
}

// History returns recent runs with their aggregate scores, newest first.
func (s *Store) History(project string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT r.id, r.project, r.plan, r.status, r.gate_threshold, r.started_at, r.completed_at,
		       COUNT(res.id) AS checks,
		       COALESCE(
		           SUM(CASE WHEN res.verdict <> 'skip' THEN res.score * res.weight END) /
		           NULLIF(SUM(CASE WHEN res.verdict <> 'skip' THEN res.weight END), 0),
		       0) AS weighted_score
		FROM runs r
		LEFT JOIN results res ON res.run_id = r.id
		WHERE 1=1
	`
	args := []any{}

	if project != "" {
		query += " AND r.project = ?"
		args = append(args, project)
	}

	query += " GROUP BY r.id ORDER BY datetime(r.started_at) DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("scoring: query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(
			&e.ID, &e.Project, &e.Plan, &e.Status, &e.GateThreshold,
			&e.StartedAt, &e.CompletedAt, &e.Checks, &e.WeightedScore,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns aggregate totals across the whole score history.
func (s *Store) Stats() (*Stats, error) {
	stats := &Stats{}

	_ = s.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&stats.TotalRuns)
	_ = s.db.QueryRow("SELECT COUNT(*) FROM results").Scan(&stats.TotalResults)

	rows, err := s.db.Query("SELECT project FROM runs WHERE project IS NOT NULL GROUP BY project ORDER BY MAX(started_at) DESC")
	if err != nil {
		return stats, nil
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err == nil {
			stats.Projects = append(stats.Projects, p)
		}
	}

	return stats, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
