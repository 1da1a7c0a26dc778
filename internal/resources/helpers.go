package resources

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/solutionqa/solqa/internal/qarun"
)

// findRoot walks up from cwd looking for qa-plan.yaml or a qa/ directory.
// Shared utility for resource handlers.
func findRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}

	current := dir
	for {
		if _, err := os.Stat(filepath.Join(current, qarun.PlanFile)); err == nil {
			return current, nil
		}
		if info, err := os.Stat(filepath.Join(current, "qa")); err == nil && info.IsDir() {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return dir, nil
		}
		current = parent
	}
}
