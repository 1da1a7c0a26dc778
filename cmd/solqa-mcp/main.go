// Solqa: Solution QA MCP Server
//
// An MCP server that gives AI coding tools (Claude Code, OpenCode,
// Gemini CLI, Cursor, VS Code Copilot) the evidence-gathering tools to
// run a scored QA pass over a finished solution: database queries,
// browser probes, document lint, and a persistent run record.
//
// Usage:
//
//	solqa-mcp          # Start MCP server (stdio transport)
//	solqa-mcp update   # Update to the latest version
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	qaserver "github.com/solutionqa/solqa/internal/server"
	"github.com/solutionqa/solqa/internal/updater"
)

func main() {
	// MCP clients launch the bare command, so no argument means serve.
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "serve":
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "update":
		runUpdate()
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("solqa-mcp v%s\n", qaserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func run() error {
	s, cleanup, err := qaserver.New()
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	// Background version check — prints to stderr so it doesn't
	// interfere with MCP's stdio transport on stdout.
	go checkForUpdates()

	// The stdio server stops when the client closes stdin. A signal
	// takes the same clean exit so the browser and the score store shut
	// down instead of dying mid-write.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cleanup()
		os.Exit(0)
	}()

	fmt.Fprintf(os.Stderr, "solqa-mcp v%s serving on stdio\n", qaserver.Version)
	return server.ServeStdio(s)
}

// checkForUpdates runs a non-blocking version check and prints a notice
// to stderr if an update is available. Best-effort: network failures
// are silently ignored.
func checkForUpdates() {
	result := updater.CheckVersion(qaserver.Version)
	if result.UpdateAvailable {
		fmt.Fprintf(os.Stderr,
			"\n  📦 Update available: v%s → v%s\n"+
				"     Run: solqa-mcp update\n"+
				"     Release: %s\n\n",
			result.CurrentVersion, result.LatestVersion, result.ReleaseURL,
		)
	}
}

// runUpdate performs a self-update to the latest version.
func runUpdate() {
	fmt.Fprintf(os.Stderr, "🔍 Checking for updates...\n")

	result := updater.CheckVersion(qaserver.Version)
	if !result.UpdateAvailable {
		fmt.Fprintf(os.Stderr, "✅ Already at the latest version (v%s)\n", result.CurrentVersion)
		return
	}

	fmt.Fprintf(os.Stderr, "📦 New version available: v%s → v%s\n", result.CurrentVersion, result.LatestVersion)
	fmt.Fprintf(os.Stderr, "⬇️  Downloading...\n")

	if err := updater.SelfUpdate(qaserver.Version); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Update failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "\n   You can download manually from:\n   %s\n", result.ReleaseURL)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "✅ Updated to v%s!\n", result.LatestVersion)
	fmt.Fprintf(os.Stderr, "   Restart solqa-mcp to use the new version.\n")
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Solqa v%s — Solution QA MCP Server

Usage:
  solqa-mcp [serve]   Start the MCP server (stdio transport, the default)
  solqa-mcp update    Update to the latest version
  solqa-mcp version   Print the version

Configuration:
  Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "solqa": {
        "command": "solqa-mcp"
      }
    }
  }

Learn more: https://github.com/solutionqa/solqa
`, qaserver.Version)
}
