package oracle

import (
	"context"
	"sync"
	"time"

	"github.com/oraclelog/oracle-go/internal/tailer"
	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// pipelineErrBuffer sizes the error channel; errors beyond the buffer
// are logged and dropped rather than blocking the line loop.
const pipelineErrBuffer = 16

// Pipeline ties the tailer and the router together: it follows the log
// file, dispatches each line to the parser set, and emits the parsed
// events on a channel and, when configured, onto the event bus.
//
// A stream discontinuity from the tailer resets every parser and is
// surfaced as a Discontinuity event before any line from the new
// stream.
type Pipeline struct {
	cfg    *pipelineConfig
	router *Router
	tail   *tailer.Tailer

	mu      sync.Mutex
	running bool
	closed  bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

// NewPipeline builds a pipeline over the log file at logPath.
func NewPipeline(logPath string, opts ...Option) (*Pipeline, error) {
	cfg := applyOptions(opts)
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	parsers := cfg.parsers
	if parsers == nil {
		parsers = DefaultParsers(cfg.lookup)
	}

	tl, err := tailer.New(tailer.Config{
		Path:         logPath,
		PollInterval: cfg.pollInterval,
		PositionPath: cfg.positionPath,
		FromStart:    cfg.fromStart,
		Logger:       cfg.logger,
	})
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:    cfg,
		router: NewRouter(parsers),
		tail:   tl,
	}, nil
}

// Router exposes the dispatch counters.
func (p *Pipeline) Router() *Router { return p.router }

// Run starts the pipeline. Both channels close when the pipeline
// stops. Call Close to stop it and wait for the goroutine to exit.
func (p *Pipeline) Run(ctx context.Context) (<-chan event.Event, <-chan error, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, nil, ErrPipelineClosed
	}
	if p.running {
		return nil, nil, ErrPipelineRunning
	}

	runCtx, cancel := context.WithCancel(ctx)

	lines, tailErrs, err := p.tail.Run(runCtx)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	events := make(chan event.Event)
	errCh := make(chan error, pipelineErrBuffer)
	p.running = true
	p.cancel = cancel
	p.doneCh = make(chan struct{})

	go p.run(runCtx, lines, tailErrs, events, errCh)
	return events, errCh, nil
}

func (p *Pipeline) run(ctx context.Context, lines <-chan tailer.Line, tailErrs <-chan error, events chan<- event.Event, errCh chan<- error) {
	defer close(p.doneCh)
	defer close(events)
	defer close(errCh)

	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-tailErrs:
			if !ok {
				tailErrs = nil
				continue
			}
			p.sendError(ctx, errCh, err)
		case line, ok := <-lines:
			if !ok {
				return
			}
			p.handleLine(ctx, line, events, errCh)
		}
	}
}

func (p *Pipeline) handleLine(ctx context.Context, line tailer.Line, events chan<- event.Event, errCh chan<- error) {
	if line.Discontinuity {
		p.router.Reset()
		p.cfg.logger.Warn("stream discontinuity, parsers reset", "reason", line.Reason)
		p.emit(ctx, events, event.New(time.Now(), event.DiscontinuityData{Reason: line.Reason}), "")
		return
	}

	ev, err := p.router.Dispatch(line.Text)
	if err != nil {
		p.sendError(ctx, errCh, err)
		return
	}
	if ev == nil {
		return
	}
	raw := ""
	if p.cfg.includeRawLine {
		raw = line.Text
	}
	p.emit(ctx, events, *ev, raw)
}

func (p *Pipeline) emit(ctx context.Context, events chan<- event.Event, ev event.Event, raw string) {
	ev.RawLine = raw
	if p.cfg.bus != nil {
		p.cfg.bus.Publish(ev)
	}
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

func (p *Pipeline) sendError(ctx context.Context, errCh chan<- error, err error) {
	select {
	case errCh <- err:
	case <-ctx.Done():
	default:
		p.cfg.logger.Warn("error channel full, dropping error", "error", err)
	}
}

// Close stops the pipeline and waits for its goroutine to exit. Safe
// to call multiple times.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	cancel := p.cancel
	doneCh := p.doneCh
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if doneCh != nil {
		<-doneCh
	}
	return p.tail.Close()
}
