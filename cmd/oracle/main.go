package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "oracle",
	Short: "Game log statistics pipeline",
	Long: `oracle follows the game's log file, parses it into events and
derives farming statistics: map completions, inventory movement,
session totals and market transactions.

Run the full pipeline with a local API and WebSocket feed:
  oracle run

Stream parsed events to stdout:
  oracle tail --log /path/to/game.log

Parse a log file offline:
  oracle parse /path/to/game.log`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Config file (YAML); defaults plus ORACLE_* env vars when omitted")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Verbose output (debug logging to stderr)")
}

// newLogger builds the process logger honoring --verbose and the
// configured level.
func newLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
