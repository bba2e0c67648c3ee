package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oraclelog/oracle-go/internal/config"
	"github.com/oraclelog/oracle-go/internal/logfinder"
	"github.com/oraclelog/oracle-go/pkg/oracle"
	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

var (
	// tail flags
	tailLogPath  string
	format       string
	eventTypes   []string
	includeRaw   bool
	fromStart    bool
	pollInterval time.Duration
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow the game log and output events",
	Long: `Follow the game log file in real-time and output parsed events.

Events are output as JSON Lines by default (one JSON object per line),
which makes it easy to process with tools like jq.

Examples:
  # Follow the configured log file
  oracle tail

  # Explicit log file
  oracle tail --log /path/to/game.log

  # Only map entry and exit events
  oracle tail --types enter_level,exit_level

  # Human-readable output
  oracle tail --format pretty

  # Replay the whole file before following
  oracle tail --from-start

  # Pipe to jq for filtering
  oracle tail | jq 'select(.type == "item_change")'`,
	Args: cobra.NoArgs,
	RunE: runTail,
}

func init() {
	tailCmd.Flags().StringVar(&tailLogPath, "log", "",
		"Game log file to follow (overrides config)")
	tailCmd.Flags().StringVarP(&format, "format", "f", "jsonl",
		"Output format: jsonl, pretty")
	tailCmd.Flags().StringSliceVarP(&eventTypes, "types", "t", nil,
		"Event types to show (comma-separated: enter_level,item_change,ping)")
	tailCmd.Flags().BoolVar(&includeRaw, "raw", false,
		"Include raw log lines in output")
	tailCmd.Flags().BoolVar(&fromStart, "from-start", false,
		"Read the file from the beginning instead of resuming")
	tailCmd.Flags().DurationVar(&pollInterval, "poll-interval", 0,
		"File poll interval (overrides config)")
	rootCmd.AddCommand(tailCmd)
}

func runTail(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if tailLogPath != "" {
		cfg.LogPath = tailLogPath
	}
	logPath, err := logfinder.FindLogFile(cfg.LogPath)
	if err != nil {
		return fmt.Errorf("%w (set log_path, ORACLE_LOG_PATH or --log)", err)
	}
	cfg.LogPath = logPath
	if pollInterval > 0 {
		cfg.PollInterval = pollInterval
	}
	if !ValidFormats[format] {
		return fmt.Errorf("unknown format: %s", format)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	typeFilter := make(map[event.Type]bool)
	for _, t := range eventTypes {
		typeFilter[event.Type(t)] = true
	}

	p, err := oracle.NewPipeline(cfg.LogPath,
		oracle.WithPollInterval(cfg.PollInterval),
		oracle.WithFromStart(fromStart || cfg.FromStart),
		oracle.WithIncludeRawLine(includeRaw),
	)
	if err != nil {
		return err
	}
	defer p.Close()

	events, errs, err := p.Run(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if len(typeFilter) > 0 && !typeFilter[ev.Type] {
				continue
			}
			if err := OutputEvent(format, ev, os.Stdout); err != nil {
				return fmt.Errorf("output error: %w", err)
			}

		case err, ok := <-errs:
			if !ok {
				return nil
			}
			if verbose {
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}

		case <-ctx.Done():
			return nil
		}
	}
}
