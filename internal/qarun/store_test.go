package qarun

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// --- Helper: a run record the store can persist ---

func testStoredRun(id, slug string, status RunStatus) *Run {
	return &Run{
		ID:            id,
		Slug:          slug,
		PlanName:      "Stored plan",
		GateThreshold: 70,
		Status:        status,
		Checks: []CheckState{
			{Check: Check{ID: "only", Name: "Only", Category: CategoryFunctionality}, Status: StatusPending},
		},
		CreatedAt: "2026-01-01T00:00:00Z",
		UpdatedAt: "2026-01-01T00:00:00Z",
	}
}

// --- Path helpers ---

func TestActivePath(t *testing.T) {
	store := NewFileStore("/root")
	want := filepath.Join("/root", "qa", RunsDir, ActiveDir)
	if got := store.ActivePath(); got != want {
		t.Errorf("ActivePath = %s, want %s", got, want)
	}
}

func TestArchivePath(t *testing.T) {
	store := NewFileStore("/root")
	want := filepath.Join("/root", "qa", RunsDir, ArchiveDir)
	if got := store.ArchivePath(); got != want {
		t.Errorf("ArchivePath = %s, want %s", got, want)
	}
}

func TestRunPath(t *testing.T) {
	store := NewFileStore("/root")
	want := filepath.Join("/root", "qa", RunsDir, ActiveDir, "nightly-smoke")
	if got := store.RunPath("nightly-smoke"); got != want {
		t.Errorf("RunPath = %s, want %s", got, want)
	}
}

// --- Create ---

func TestCreate_WritesRunJSON(t *testing.T) {
	store := NewFileStore(t.TempDir())
	run := testStoredRun("run-1", "nightly-smoke", StatusPending)

	if err := store.Create(run); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	path := filepath.Join(store.RunPath("nightly-smoke"), RunFile)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("run.json not readable: %v", err)
	}

	var parsed Run
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("run.json is not valid JSON: %v", err)
	}
	if parsed.ID != "run-1" {
		t.Errorf("ID = %s, want run-1", parsed.ID)
	}
	if parsed.Slug != "nightly-smoke" {
		t.Errorf("Slug = %s, want nightly-smoke", parsed.Slug)
	}
}

func TestCreate_SlugCollisionAppendsSuffix(t *testing.T) {
	store := NewFileStore(t.TempDir())

	first := testStoredRun("run-1", "nightly-smoke", StatusCompleted)
	if err := store.Create(first); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	second := testStoredRun("run-2", "nightly-smoke", StatusPending)
	if err := store.Create(second); err != nil {
		t.Fatalf("second Create failed: %v", err)
	}
	if second.Slug != "nightly-smoke-2" {
		t.Errorf("Slug = %s, want nightly-smoke-2", second.Slug)
	}

	third := testStoredRun("run-3", "nightly-smoke", StatusPending)
	// Finish the second run so a third can be created.
	second.Status = StatusCompleted
	if err := store.Save(second); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Create(third); err != nil {
		t.Fatalf("third Create failed: %v", err)
	}
	if third.Slug != "nightly-smoke-3" {
		t.Errorf("Slug = %s, want nightly-smoke-3", third.Slug)
	}
}

func TestCreate_CollisionAgainstArchive(t *testing.T) {
	store := NewFileStore(t.TempDir())

	first := testStoredRun("run-1", "nightly-smoke", StatusCompleted)
	if err := store.Create(first); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Archive("nightly-smoke"); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}

	second := testStoredRun("run-2", "nightly-smoke", StatusPending)
	if err := store.Create(second); err != nil {
		t.Fatalf("second Create failed: %v", err)
	}
	if second.Slug != "nightly-smoke-2" {
		t.Errorf("Slug = %s, want nightly-smoke-2 (collision with archived run)", second.Slug)
	}
}

func TestCreate_RefusesSecondActiveRun(t *testing.T) {
	store := NewFileStore(t.TempDir())

	if err := store.Create(testStoredRun("run-1", "first", StatusInProgress)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	err := store.Create(testStoredRun("run-2", "second", StatusPending))
	if err == nil {
		t.Fatal("Create while another run is active should fail")
	}
	if !errors.Is(err, ErrRunExists) {
		t.Errorf("error = %v, want ErrRunExists", err)
	}
}

func TestCreate_AllowedAfterPreviousRunFinishes(t *testing.T) {
	store := NewFileStore(t.TempDir())

	if err := store.Create(testStoredRun("run-1", "first", StatusCompleted)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Create(testStoredRun("run-2", "second", StatusPending)); err != nil {
		t.Errorf("Create after finished run failed: %v", err)
	}
}

// --- Load ---

func TestLoad_BySlug(t *testing.T) {
	store := NewFileStore(t.TempDir())
	if err := store.Create(testStoredRun("run-1", "nightly-smoke", StatusPending)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	run, err := store.Load("nightly-smoke")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if run.ID != "run-1" {
		t.Errorf("ID = %s, want run-1", run.ID)
	}
}

func TestLoad_ByID(t *testing.T) {
	store := NewFileStore(t.TempDir())
	if err := store.Create(testStoredRun("3f2c9a10-aaaa-bbbb-cccc-000000000001", "nightly-smoke", StatusPending)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	run, err := store.Load("3f2c9a10-aaaa-bbbb-cccc-000000000001")
	if err != nil {
		t.Fatalf("Load by ID failed: %v", err)
	}
	if run.Slug != "nightly-smoke" {
		t.Errorf("Slug = %s, want nightly-smoke", run.Slug)
	}
}

func TestLoad_NotFound(t *testing.T) {
	store := NewFileStore(t.TempDir())
	_, err := store.Load("ghost")
	if err == nil {
		t.Fatal("Load of unknown run should fail")
	}
	if !containsStr(err.Error(), "not found") {
		t.Errorf("error should mention 'not found', got: %s", err.Error())
	}
}

// --- LoadActive ---

func TestLoadActive_EmptyStore(t *testing.T) {
	store := NewFileStore(t.TempDir())
	_, err := store.LoadActive()
	if !errors.Is(err, ErrNoActiveRun) {
		t.Errorf("error = %v, want ErrNoActiveRun", err)
	}
}

func TestLoadActive_ReturnsRunningRun(t *testing.T) {
	store := NewFileStore(t.TempDir())
	if err := store.Create(testStoredRun("run-1", "current", StatusInProgress)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	run, err := store.LoadActive()
	if err != nil {
		t.Fatalf("LoadActive failed: %v", err)
	}
	if run.Slug != "current" {
		t.Errorf("Slug = %s, want current", run.Slug)
	}
}

func TestLoadActive_IgnoresFinishedRuns(t *testing.T) {
	store := NewFileStore(t.TempDir())
	if err := store.Create(testStoredRun("run-1", "done", StatusCompleted)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := store.LoadActive()
	if !errors.Is(err, ErrNoActiveRun) {
		t.Errorf("error = %v, want ErrNoActiveRun for finished run", err)
	}
}

// --- Save ---

func TestSave_PersistsChanges(t *testing.T) {
	store := NewFileStore(t.TempDir())
	run := testStoredRun("run-1", "nightly-smoke", StatusPending)
	if err := store.Create(run); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	run.Checks[0].Status = StatusCompleted
	run.Checks[0].Verdict = VerdictPass
	run.Checks[0].Score = 77
	if err := store.Save(run); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load("nightly-smoke")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Checks[0].Score != 77 {
		t.Errorf("Score = %d, want 77", loaded.Checks[0].Score)
	}
	if loaded.UpdatedAt != frozenTS {
		t.Errorf("UpdatedAt = %q, want %q", loaded.UpdatedAt, frozenTS)
	}
}

// --- Archive ---

func TestArchive_MovesRun(t *testing.T) {
	store := NewFileStore(t.TempDir())
	if err := store.Create(testStoredRun("run-1", "done", StatusCompleted)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.Archive("done"); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}

	if _, err := os.Stat(store.RunPath("done")); !os.IsNotExist(err) {
		t.Error("active run directory still exists after archive")
	}
	if _, err := os.Stat(filepath.Join(store.ArchivePath(), "done", RunFile)); err != nil {
		t.Errorf("archived run.json missing: %v", err)
	}

	// Still loadable after the move.
	run, err := store.Load("done")
	if err != nil {
		t.Fatalf("Load after archive failed: %v", err)
	}
	if run.ID != "run-1" {
		t.Errorf("ID = %s, want run-1", run.ID)
	}
}

func TestArchive_RefusesUnfinishedRun(t *testing.T) {
	store := NewFileStore(t.TempDir())
	if err := store.Create(testStoredRun("run-1", "current", StatusInProgress)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	err := store.Archive("current")
	if err == nil {
		t.Fatal("Archive of unfinished run should fail")
	}
	if !containsStr(err.Error(), "until it finishes") {
		t.Errorf("error should mention finishing first, got: %s", err.Error())
	}
}

func TestArchive_AlreadyArchived(t *testing.T) {
	store := NewFileStore(t.TempDir())
	if err := store.Create(testStoredRun("run-1", "done", StatusCompleted)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Archive("done"); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}

	err := store.Archive("done")
	if err == nil {
		t.Fatal("second Archive should fail")
	}
	if !errors.Is(err, ErrAlreadyArchived) {
		t.Errorf("error should wrap ErrAlreadyArchived, got: %v", err)
	}
}

func TestArchive_UnknownRun(t *testing.T) {
	store := NewFileStore(t.TempDir())
	if err := store.Archive("ghost"); err == nil {
		t.Fatal("Archive of unknown run should fail")
	}
}

// --- List ---

func TestList_SpansActiveAndArchive(t *testing.T) {
	store := NewFileStore(t.TempDir())

	if err := store.Create(testStoredRun("run-1", "archived-run", StatusCompleted)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Archive("archived-run"); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if err := store.Create(testStoredRun("run-2", "current-run", StatusInProgress)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	runs, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}

	ids := map[string]bool{}
	for _, r := range runs {
		ids[r.ID] = true
	}
	if !ids["run-1"] || !ids["run-2"] {
		t.Errorf("List = %v, want run-1 and run-2", ids)
	}
}

func TestList_EmptyStore(t *testing.T) {
	store := NewFileStore(t.TempDir())
	runs, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("got %d runs, want 0", len(runs))
	}
}

// --- RunDir ---

func TestRunDir_ActiveRun(t *testing.T) {
	store := NewFileStore(t.TempDir())
	if err := store.Create(testStoredRun("run-1", "current", StatusInProgress)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	dir, err := store.RunDir("current")
	if err != nil {
		t.Fatalf("RunDir failed: %v", err)
	}
	if dir != store.RunPath("current") {
		t.Errorf("RunDir = %s, want %s", dir, store.RunPath("current"))
	}
}

func TestRunDir_FollowsArchive(t *testing.T) {
	store := NewFileStore(t.TempDir())
	if err := store.Create(testStoredRun("run-1", "done", StatusCompleted)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Archive("done"); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}

	dir, err := store.RunDir("run-1")
	if err != nil {
		t.Fatalf("RunDir failed: %v", err)
	}
	want := filepath.Join(store.ArchivePath(), "done")
	if dir != want {
		t.Errorf("RunDir = %s, want %s", dir, want)
	}
}

func TestRunDir_UnknownRun(t *testing.T) {
	store := NewFileStore(t.TempDir())
	if _, err := store.RunDir("ghost"); err == nil {
		t.Fatal("RunDir of unknown run should fail")
	}
}

// containsStr reports whether substr occurs within s.
func containsStr(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
