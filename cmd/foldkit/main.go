package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"foldkit/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "foldkit",
	Short: "Code folding engine",
	Long: `foldkit computes folding regions for curly sources, keeps their expand
state across edits and sessions, and serves them over LSP`,
	SilenceUsage:      true,
	PersistentPreRunE: setupCommand,
	PersistentPostRun: finishCommand,
}

// main registers commands and persistent flags and runs the root command.
// A failing command exits with status 1.
func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(foldsCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(lspCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)

	// Глобальные флаги
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "path to foldkit.toml (default: nearest one above the working directory)")
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.Bool("timings", false, "show timing information")
	flags.Bool("show-diagnostics", false, "print developer diagnostics of the folding passes")
	flags.Int("max-diagnostics", 100, "maximum number of diagnostics to show")
	flags.Bool("no-session", false, "do not read or write the session cache")
	flags.Bool("quick", false, "build descriptors in quick mode")
	flags.Bool("validate-signatures", false, "check that every signature restores to its element")
	flags.String("trace", "", "write trace events to a file (- for stderr)")
	flags.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	flags.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	flags.Int("trace-ring-size", 4096, "events kept by the ring tracer")
	flags.Duration("trace-heartbeat", 0, "emit heartbeat events at this interval (0 disables)")

	err := rootCmd.Execute()
	if err != nil {
		dumpTrace(os.Stderr)
	}
	env.cleanup()
	if err != nil {
		os.Exit(1)
	}
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
