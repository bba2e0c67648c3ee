// Package tailer follows an append-only game log file and delivers its
// lines over channels. It persists a byte offset between runs so a
// restart resumes where the previous run stopped, and it reports
// truncation or file replacement as an explicit discontinuity so
// downstream consumers can reset any in-progress line sequences.
package tailer

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/nxadm/tail"
)

// Line is a single log line, or a discontinuity marker when the file
// was truncated, replaced, or reappeared after being removed.
type Line struct {
	Text          string
	Offset        int64 // byte offset after this line was read
	Discontinuity bool
	Reason        string // set when Discontinuity is true
}

// Config controls tailing behavior.
type Config struct {
	// Path is the log file to follow.
	Path string
	// PollInterval is how often the file is stat'd for truncation,
	// replacement, and appearance checks.
	PollInterval time.Duration
	// PositionPath, when non-empty, is where the resume offset is
	// persisted. Empty disables persistence.
	PositionPath string
	// FromStart reads the whole file when no usable position exists.
	// The default is to start at the end, tail -f style.
	FromStart bool
	// Logger receives debug output. Nil discards.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults. Path must
// still be set by the caller.
func DefaultConfig() Config {
	return Config{
		PollInterval: 500 * time.Millisecond,
	}
}

// tailerErrBuffer is the buffer size for the error channel. A small
// buffer prevents error loss while the consumer is busy, without
// holding much memory.
const tailerErrBuffer = 16

// positionSaveInterval is how often the resume offset is flushed to
// disk while lines are flowing.
const positionSaveInterval = 2 * time.Second

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Tailer follows a single log file.
type Tailer struct {
	cfg Config
	log *slog.Logger

	mu      sync.Mutex
	closed  bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
	running bool
}

// New creates a Tailer. It does not start goroutines and does not
// require the file to exist yet.
func New(cfg Config) (*Tailer, error) {
	if cfg.Path == "" {
		return nil, ErrNoPath
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	log := cfg.Logger
	if log == nil {
		log = discardLogger
	}
	return &Tailer{cfg: cfg, log: log}, nil
}

// Run starts tailing and returns the line and error channels. Both
// channels close when ctx is cancelled or the tailer is closed. Run
// can only be called once per Tailer.
func (t *Tailer) Run(ctx context.Context) (<-chan Line, <-chan error, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, nil, ErrTailerClosed
	}
	if t.running {
		return nil, nil, ErrAlreadyRunning
	}
	t.running = true

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.doneCh = make(chan struct{})

	lineCh := make(chan Line)
	errCh := make(chan error, tailerErrBuffer)

	go t.run(ctx, lineCh, errCh)

	return lineCh, errCh, nil
}

// Close stops the tailer and waits for its goroutine to exit. Safe to
// call multiple times.
func (t *Tailer) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	if t.cancel != nil {
		t.cancel()
	}
	doneCh := t.doneCh
	t.mu.Unlock()

	if doneCh != nil {
		<-doneCh
	}
	return nil
}

func (t *Tailer) run(ctx context.Context, lineCh chan<- Line, errCh chan<- error) {
	defer close(t.doneCh)
	defer close(lineCh)
	defer close(errCh)

	// Wait for the file to exist. A missing file is not fatal; the
	// game may simply not be running yet.
	info, err := t.waitForFile(ctx, errCh)
	if err != nil {
		return
	}

	offset, resumed := t.resumeOffset(info)
	if !resumed && !t.cfg.FromStart {
		offset = info.Size()
	}
	t.log.Debug("starting tail", "path", t.cfg.Path, "offset", offset, "resumed", resumed)

	ft, err := t.openTail(offset)
	if err != nil {
		sendError(ctx, errCh, &TailError{Op: TailOpOpen, Path: t.cfg.Path, Err: err})
		return
	}
	defer func() { _ = ft.Stop() }()

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()
	saveTicker := time.NewTicker(positionSaveInterval)
	defer saveTicker.Stop()

	lastSize := info.Size()
	dirty := false

	defer func() {
		if dirty {
			t.savePosition(ft)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ln, ok := <-ft.Lines:
			if !ok {
				return
			}
			if ln.Err != nil {
				sendError(ctx, errCh, &TailError{Op: TailOpRead, Path: t.cfg.Path, Err: ln.Err})
				continue
			}
			off, _ := ft.Tell()
			select {
			case lineCh <- Line{Text: ln.Text, Offset: off}:
				dirty = true
			case <-ctx.Done():
				return
			}

		case <-saveTicker.C:
			if dirty {
				t.savePosition(ft)
				dirty = false
			}

		case <-ticker.C:
			st, err := os.Stat(t.cfg.Path)
			if err != nil {
				if os.IsNotExist(err) {
					// File removed. Stop the current tail, wait for it
					// to come back, and start over from the beginning.
					t.log.Debug("log file removed, waiting for it to reappear", "path", t.cfg.Path)
					_ = ft.Stop()
					info, werr := t.waitForFile(ctx, errCh)
					if werr != nil {
						return
					}
					ft, err = t.openTail(0)
					if err != nil {
						sendError(ctx, errCh, &TailError{Op: TailOpOpen, Path: t.cfg.Path, Err: err})
						return
					}
					lastSize = info.Size()
					if !t.emitDiscontinuity(ctx, lineCh, "file replaced") {
						return
					}
				} else {
					sendError(ctx, errCh, &TailError{Op: TailOpStat, Path: t.cfg.Path, Err: err})
				}
				continue
			}
			if st.Size() < lastSize {
				// Truncated in place. The offset no longer means
				// anything; restart from the beginning of the file.
				t.log.Debug("log file truncated", "path", t.cfg.Path, "size", st.Size(), "last_size", lastSize)
				_ = ft.Stop()
				ft, err = t.openTail(0)
				if err != nil {
					sendError(ctx, errCh, &TailError{Op: TailOpOpen, Path: t.cfg.Path, Err: err})
					return
				}
				if !t.emitDiscontinuity(ctx, lineCh, "file truncated") {
					return
				}
			}
			lastSize = st.Size()
		}
	}
}

func (t *Tailer) openTail(offset int64) (*tail.Tail, error) {
	return tail.TailFile(t.cfg.Path, tail.Config{
		Follow:    true,
		ReOpen:    false, // replacement is handled by the stat loop
		Poll:      true,  // inotify misses writes on some filesystems games log to
		MustExist: true,
		Location:  &tail.SeekInfo{Offset: offset, Whence: io.SeekStart},
		Logger:    tail.DiscardingLogger,
	})
}

// resumeOffset loads the persisted position and decides whether it can
// be reused for the current file generation.
func (t *Tailer) resumeOffset(info os.FileInfo) (int64, bool) {
	if t.cfg.PositionPath == "" {
		return 0, false
	}
	pos, err := LoadPosition(t.cfg.PositionPath)
	if err != nil {
		t.log.Debug("position load failed", "path", t.cfg.PositionPath, "error", err)
		return 0, false
	}
	if pos.Path != t.cfg.Path {
		return 0, false
	}
	// A smaller file means truncation or replacement since the last
	// run; the saved offset would land mid-stream or past EOF.
	if info.Size() < pos.Offset {
		t.log.Debug("saved position past end of file, starting over",
			"offset", pos.Offset, "size", info.Size())
		return 0, false
	}
	return pos.Offset, true
}

func (t *Tailer) savePosition(ft *tail.Tail) {
	if t.cfg.PositionPath == "" {
		return
	}
	off, err := ft.Tell()
	if err != nil {
		return
	}
	pos := Position{Path: t.cfg.Path, Offset: off}
	if st, err := os.Stat(t.cfg.Path); err == nil {
		pos.Size = st.Size()
		pos.ModTime = st.ModTime()
	}
	if err := pos.Save(t.cfg.PositionPath); err != nil {
		t.log.Debug("position save failed", "path", t.cfg.PositionPath, "error", err)
	}
}

func (t *Tailer) emitDiscontinuity(ctx context.Context, lineCh chan<- Line, reason string) bool {
	select {
	case lineCh <- Line{Discontinuity: true, Reason: reason}:
		return true
	case <-ctx.Done():
		return false
	}
}

// waitForFile blocks until the target file exists or ctx is cancelled.
// Transient stat errors are reported and retried.
func (t *Tailer) waitForFile(ctx context.Context, errCh chan<- error) (os.FileInfo, error) {
	if info, err := os.Stat(t.cfg.Path); err == nil {
		return info, nil
	} else if !os.IsNotExist(err) {
		sendError(ctx, errCh, &TailError{Op: TailOpStat, Path: t.cfg.Path, Err: err})
	}

	t.log.Debug("waiting for log file to appear", "path", t.cfg.Path, "poll_interval", t.cfg.PollInterval)
	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			info, err := os.Stat(t.cfg.Path)
			if err == nil {
				t.log.Debug("log file appeared", "path", t.cfg.Path)
				return info, nil
			}
			if !os.IsNotExist(err) {
				sendError(ctx, errCh, &TailError{Op: TailOpStat, Path: t.cfg.Path, Err: err})
			}
		}
	}
}

// sendError delivers an error without blocking shutdown. Errors are
// dropped only when the buffer is full.
func sendError(ctx context.Context, errCh chan<- error, err error) {
	if err == nil {
		return
	}
	select {
	case errCh <- err:
	case <-ctx.Done():
	default:
	}
}
