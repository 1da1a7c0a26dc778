// Solqa CLI: plan-driven QA runs from the command line.
//
// Where solqa-mcp serves inspection tools to an interactive agent
// session, solqa drives complete runs itself: it loads qa-plan.yaml,
// spawns the agent CLI once per check, and turns the verdicts into a
// scored markdown report with a pass/fail gate.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/solutionqa/solqa/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	// Global flags
	cfgFile     string
	projectRoot string
	verbose     bool

	// Loaded in PersistentPreRunE, shared by all subcommands.
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "solqa",
	Short: "Solution QA runner",
	Long: `solqa runs a scored QA pass over a finished solution.

It loads the checks from qa-plan.yaml, spawns the agent CLI once per
check with the solqa MCP tools attached, collects the verdicts, and
writes a weighted report with a pass/fail gate.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		var err error
		cfg, err = config.LoadFrom(cfgFile, projectRoot)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if verbose {
			cfg.Verbose = true
		}

		zapCfg := zap.NewProductionConfig()
		if cfg.Verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}

		return cfg.Validate()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: solqa.yaml in the project root or $HOME)")
	rootCmd.PersistentFlags().StringVar(&projectRoot, "project", "", "project root (default: working directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(lintCmd)
	rootCmd.AddCommand(planCmd)
}

// versionCmd shows version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("solqa %s\n", Version)
	},
}
