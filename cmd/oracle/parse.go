package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oraclelog/oracle-go/pkg/oracle"
	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

var parseCmd = &cobra.Command{
	Use:   "parse <file> [file...]",
	Short: "Parse log files offline and output events",
	Long: `Parse one or more complete log files and output the events
found in them. Files are processed in argument order; within a file
events come out in log order.

Examples:
  # Parse a single file
  oracle parse /path/to/game.log

  # Parse several rotated logs into one stream
  oracle parse game.log.1 game.log.2 game.log

  # Human-readable output, item events only
  oracle parse --format pretty --types item_change game.log`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().StringVarP(&format, "format", "f", "jsonl",
		"Output format: jsonl, pretty")
	parseCmd.Flags().StringSliceVarP(&eventTypes, "types", "t", nil,
		"Event types to show (comma-separated)")
	parseCmd.Flags().BoolVar(&includeRaw, "raw", false,
		"Include raw log lines in output")
	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	if !ValidFormats[format] {
		return fmt.Errorf("unknown format: %s", format)
	}
	typeFilter := make(map[event.Type]bool)
	for _, t := range eventTypes {
		typeFilter[event.Type(t)] = true
	}

	var opts []oracle.Option
	if includeRaw {
		opts = append(opts, oracle.WithIncludeRawLine(true))
	}

	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		err = oracle.ParseReader(f, func(ev event.Event) error {
			if len(typeFilter) > 0 && !typeFilter[ev.Type] {
				return nil
			}
			return OutputEvent(format, ev, os.Stdout)
		}, opts...)
		f.Close()
		if err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	return nil
}
