package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/solutionqa/solqa/internal/orchestrator"
	"github.com/solutionqa/solqa/internal/qarun"
)

var rawReport bool

var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Show the report for a run",
	Long: `Report renders the markdown report of the given run, or of the most
recently updated run when no ID is given. A run gets its report when it
finishes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().BoolVar(&rawReport, "raw", false, "print raw markdown without terminal rendering")
}

func runReport(cmd *cobra.Command, args []string) error {
	runs := qarun.NewFileStore(cfg.ProjectRoot)

	var slugOrID string
	if len(args) > 0 {
		slugOrID = args[0]
	} else {
		latest, err := latestRun(runs)
		if err != nil {
			return err
		}
		slugOrID = latest.ID
	}

	dir, err := runs.RunDir(slugOrID)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(filepath.Join(dir, orchestrator.ReportFile))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("run %q has no report yet; reports are written when a run finishes", slugOrID)
		}
		return err
	}

	if rawReport {
		fmt.Print(string(data))
		return nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		fmt.Print(string(data))
		return nil
	}
	styled, err := renderer.Render(string(data))
	if err != nil {
		fmt.Print(string(data))
		return nil
	}
	fmt.Print(styled)
	return nil
}

// latestRun returns the most recently updated run in the store.
func latestRun(runs qarun.Store) (*qarun.Run, error) {
	all, err := runs.List()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no runs recorded yet")
	}

	latest := &all[0]
	for i := range all {
		if all[i].UpdatedAt > latest.UpdatedAt {
			latest = &all[i]
		}
	}
	return latest, nil
}
