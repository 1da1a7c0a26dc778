package qarun

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// RunsDir is the subdirectory under qa/ where current runs live.
	RunsDir = "runs"
	// ActiveDir holds runs that have not been archived yet.
	ActiveDir = "active"
	// ArchiveDir holds finished runs moved out of the way.
	ArchiveDir = "archive"
	// RunFile is the filename for run records.
	RunFile = "run.json"

	qaDir = "qa"
)

var (
	// ErrNoActiveRun is returned by LoadActive when no run is underway.
	ErrNoActiveRun = errors.New("no active run")
	// ErrRunExists is returned by Create while another run is underway.
	ErrRunExists = errors.New("a run is already active")
	// ErrAlreadyArchived is returned by Archive for runs already moved.
	ErrAlreadyArchived = errors.New("run is already archived")
)

// Store defines the persistence interface for run records.
// Tools and the orchestrator depend on this abstraction.
type Store interface {
	Create(run *Run) error
	Load(slugOrID string) (*Run, error)
	LoadActive() (*Run, error)
	Save(run *Run) error
	Archive(slugOrID string) error
	List() ([]Run, error)
	RunDir(slugOrID string) (string, error)
}

// FileStore implements Store on the local filesystem, rooted at a
// project directory: <root>/qa/runs/{active,archive}/<slug>/run.json.
type FileStore struct {
	root string
}

// NewFileStore creates a filesystem-backed run store under root.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// ActivePath returns the directory holding current runs.
func (s *FileStore) ActivePath() string {
	return filepath.Join(s.root, qaDir, RunsDir, ActiveDir)
}

// ArchivePath returns the directory holding archived runs.
func (s *FileStore) ArchivePath() string {
	return filepath.Join(s.root, qaDir, RunsDir, ArchiveDir)
}

// RunPath returns the directory for a current run slug.
func (s *FileStore) RunPath(slug string) string {
	return filepath.Join(s.ActivePath(), slug)
}

// Create persists a new run record, creating the directory structure.
// If the slug already exists, appends a numeric suffix (-2, -3, etc.).
// Fails with ErrRunExists while another run is still underway.
func (s *FileStore) Create(run *Run) error {
	active, err := s.LoadActive()
	if err != nil && !errors.Is(err, ErrNoActiveRun) {
		return err
	}
	if active != nil {
		return fmt.Errorf("%w: finish or archive %q first", ErrRunExists, active.Slug)
	}

	if err := os.MkdirAll(s.ActivePath(), 0o755); err != nil {
		return fmt.Errorf("creating runs directory: %w", err)
	}

	// Handle slug collisions against both current and archived runs.
	originalSlug := run.Slug
	suffix := 2
	for {
		if !dirExists(s.RunPath(run.Slug)) && !dirExists(filepath.Join(s.ArchivePath(), run.Slug)) {
			break
		}
		run.Slug = fmt.Sprintf("%s-%d", originalSlug, suffix)
		suffix++
	}

	return s.writeRun(s.RunPath(run.Slug), run)
}

// Load reads a run record by slug, falling back to matching by run ID
// across both current and archived runs.
func (s *FileStore) Load(slugOrID string) (*Run, error) {
	for _, dir := range []string{s.ActivePath(), s.ArchivePath()} {
		run, err := readRun(filepath.Join(dir, slugOrID, RunFile))
		if err == nil {
			return run, nil
		}
	}

	runs, err := s.List()
	if err != nil {
		return nil, err
	}
	for i := range runs {
		if runs[i].ID == slugOrID {
			return &runs[i], nil
		}
	}

	return nil, fmt.Errorf("run %q not found", slugOrID)
}

// LoadActive returns the run that is still underway, or ErrNoActiveRun.
// Finished runs waiting to be archived do not count.
func (s *FileStore) LoadActive() (*Run, error) {
	entries, err := os.ReadDir(s.ActivePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoActiveRun
		}
		return nil, fmt.Errorf("reading runs directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		run, err := readRun(filepath.Join(s.ActivePath(), entry.Name(), RunFile))
		if err != nil {
			continue // skip unreadable runs
		}
		if !run.Status.Terminal() {
			return run, nil
		}
	}

	return nil, ErrNoActiveRun
}

// Save updates an existing run record in place.
func (s *FileStore) Save(run *Run) error {
	run.UpdatedAt = timeNow().UTC().Format(time.RFC3339)
	dir := s.RunPath(run.Slug)
	if !dirExists(dir) && dirExists(filepath.Join(s.ArchivePath(), run.Slug)) {
		dir = filepath.Join(s.ArchivePath(), run.Slug)
	}
	return s.writeRun(dir, run)
}

// Archive moves a finished run from active/ to archive/.
func (s *FileStore) Archive(slugOrID string) error {
	run, err := s.Load(slugOrID)
	if err != nil {
		return err
	}

	srcDir := s.RunPath(run.Slug)
	if !dirExists(srcDir) {
		return fmt.Errorf("%w: %q", ErrAlreadyArchived, run.Slug)
	}
	if !run.Status.Terminal() {
		return fmt.Errorf("cannot archive run %q until it finishes (status: %s)", run.Slug, run.Status)
	}

	if err := os.MkdirAll(s.ArchivePath(), 0o755); err != nil {
		return fmt.Errorf("creating archive directory: %w", err)
	}

	dstDir := filepath.Join(s.ArchivePath(), run.Slug)
	if _, err := os.Stat(dstDir); err == nil {
		return fmt.Errorf("run %q already exists in archive", run.Slug)
	}

	run.UpdatedAt = timeNow().UTC().Format(time.RFC3339)
	if err := s.writeRun(srcDir, run); err != nil {
		return fmt.Errorf("updating run before archive: %w", err)
	}

	if err := os.Rename(srcDir, dstDir); err != nil {
		return fmt.Errorf("moving run to archive: %w", err)
	}

	return nil
}

// List returns all runs from both active/ and archive/ directories.
func (s *FileStore) List() ([]Run, error) {
	var result []Run

	for _, dir := range []string{s.ActivePath(), s.ArchivePath()} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			run, err := readRun(filepath.Join(dir, entry.Name(), RunFile))
			if err != nil {
				continue
			}
			result = append(result, *run)
		}
	}

	return result, nil
}

// RunDir returns the directory a run currently lives in, whether it
// sits under active/ or has been moved to archive/. Report files and
// other artifacts belong next to run.json, so callers resolve the
// directory through here instead of assuming the run's location.
func (s *FileStore) RunDir(slugOrID string) (string, error) {
	run, err := s.Load(slugOrID)
	if err != nil {
		return "", err
	}

	dir := s.RunPath(run.Slug)
	if dirExists(dir) {
		return dir, nil
	}
	archived := filepath.Join(s.ArchivePath(), run.Slug)
	if dirExists(archived) {
		return archived, nil
	}
	return "", fmt.Errorf("run %q has no directory on disk", run.Slug)
}

// writeRun marshals and writes a run record to dir/run.json.
func (s *FileStore) writeRun(dir string, run *Run) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run record: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}

	return os.WriteFile(filepath.Join(dir, RunFile), data, 0o644)
}

// readRun reads and parses one run.json.
func readRun(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run record %s not found", path)
		}
		return nil, fmt.Errorf("reading run record: %w", err)
	}

	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &run, nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
