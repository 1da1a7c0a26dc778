package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solutionqa/solqa/internal/decision"
)

var lintQuiet bool

var lintCmd = &cobra.Command{
	Use:   "lint <document.md> [more.md...]",
	Short: "Lint decision documents",
	Long: `Lint parses each decision document and verifies its structure:
options with pros and cons, a complete comparison matrix, phases that
name their tools, questions phrased as questions, and references that
resolve somewhere.

The exit status is non-zero when any document has findings.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLint,
}

func init() {
	lintCmd.Flags().BoolVarP(&lintQuiet, "quiet", "q", false, "suppress findings, exit status only")
}

func runLint(cmd *cobra.Command, args []string) error {
	total := 0
	for _, path := range args {
		doc, err := decision.ParseFile(path)
		if err != nil {
			return err
		}

		findings := decision.Lint(doc)
		total += len(findings)

		if lintQuiet {
			continue
		}
		if len(findings) == 0 {
			fmt.Printf("%s: clean\n", path)
			continue
		}
		for _, f := range findings {
			fmt.Printf("%s: %s\n", path, f)
		}
	}

	if total > 0 {
		return fmt.Errorf("%d finding(s)", total)
	}
	return nil
}
