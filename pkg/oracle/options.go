package oracle

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/oraclelog/oracle-go/internal/bus"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Option configures a Pipeline using the functional options pattern.
type Option func(*pipelineConfig)

type pipelineConfig struct {
	pollInterval   time.Duration
	positionPath   string
	fromStart      bool
	includeRawLine bool
	logger         *slog.Logger
	lookup         ItemLookup
	parsers        []Parser
	bus            *bus.Bus
}

func defaultPipelineConfig() *pipelineConfig {
	return &pipelineConfig{
		pollInterval: 500 * time.Millisecond,
		logger:       discardLogger,
	}
}

func applyOptions(opts []Option) *pipelineConfig {
	cfg := defaultPipelineConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

func (c *pipelineConfig) validate() error {
	if c.pollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.pollInterval)
	}
	return nil
}

// WithPollInterval sets how often the tailer polls the log file.
// Default: 500ms.
func WithPollInterval(interval time.Duration) Option {
	return func(c *pipelineConfig) {
		c.pollInterval = interval
	}
}

// WithPositionPath persists the tail position at path so a restart
// resumes where the previous run stopped. Default: no persistence.
func WithPositionPath(path string) Option {
	return func(c *pipelineConfig) {
		c.positionPath = path
	}
}

// WithFromStart reads the log from the beginning on a cold start
// instead of seeking to the end. Default: false.
func WithFromStart(fromStart bool) Option {
	return func(c *pipelineConfig) {
		c.fromStart = fromStart
	}
}

// WithIncludeRawLine includes the originating log line in
// Event.RawLine. Default: false.
func WithIncludeRawLine(include bool) Option {
	return func(c *pipelineConfig) {
		c.includeRawLine = include
	}
}

// WithLogger sets the logger for pipeline internals. Default: discard.
func WithLogger(log *slog.Logger) Option {
	return func(c *pipelineConfig) {
		if log != nil {
			c.logger = log
		}
	}
}

// WithItemLookup enriches item events with name and category metadata.
func WithItemLookup(lookup ItemLookup) Option {
	return func(c *pipelineConfig) {
		c.lookup = lookup
	}
}

// WithParsers replaces the default parser set. The order is the
// dispatch priority.
func WithParsers(parsers []Parser) Option {
	return func(c *pipelineConfig) {
		c.parsers = parsers
	}
}

// WithBus publishes every emitted event to b in addition to the
// pipeline's event channel.
func WithBus(b *bus.Bus) Option {
	return func(c *pipelineConfig) {
		c.bus = b
	}
}
