package cec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nerrad567/r2upnpav/internal/reactor"
	"github.com/nerrad567/r2upnpav/internal/remote"
)

const (
	// volumeStep is the AdjustVolume magnitude for CEC input.
	volumeStep = 2

	// DefaultTimeout bounds opening the adapter.
	DefaultTimeout = 10 * time.Second

	// sourceName labels CEC batches for the Recorder.
	sourceName = "cec"
)

// Logger defines the logging interface used by the CEC bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures an Adapter.
type Options struct {
	// Port is the CEC adapter port. Empty picks the first adapter.
	Port string

	// DeviceName is the OSD name announced on the bus.
	DeviceName string

	// Timeout bounds opening the adapter. Default: 10 seconds.
	Timeout time.Duration

	// Bus opens the adapter. Default: LibCEC.
	Bus Bus

	// Recorder observes applied batches. Optional.
	Recorder remote.Recorder
}

// Adapter feeds CEC key presses into the reactor. It implements Handler.
type Adapter struct {
	r        *reactor.Reactor
	out      remote.Output
	pipe     *Pipe
	bus      Bus
	cfg      BusConfig
	recorder remote.Recorder

	mu        sync.Mutex
	started   bool
	closer    io.Closer
	stopWatch func()

	logger Logger
}

var _ Handler = (*Adapter)(nil)

// New creates a CEC adapter and its pipe. Nothing is opened until Start.
//
// Returns:
//   - *Adapter: the adapter
//   - error: pipe creation failure
func New(r *reactor.Reactor, out remote.Output, opts Options) (*Adapter, error) {
	pipe, err := NewPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}

	a := &Adapter{
		r:    r,
		out:  out,
		pipe: pipe,
		bus:  opts.Bus,
		cfg: BusConfig{
			Port:       opts.Port,
			DeviceName: opts.DeviceName,
			Timeout:    opts.Timeout,
		},
		recorder: opts.Recorder,
		logger:   noopLogger{},
	}
	if a.bus == nil {
		a.bus = LibCEC{}
	}
	if a.cfg.Timeout <= 0 {
		a.cfg.Timeout = DefaultTimeout
	}
	return a, nil
}

// SetLogger sets the logger for the adapter. Call before Start.
func (a *Adapter) SetLogger(logger Logger) {
	if logger == nil {
		a.logger = noopLogger{}
		return
	}
	a.logger = logger
}

// Start opens the bus and watches the pipe from the reactor.
//
// Returns:
//   - error: ErrOpen wrapping the bus failure, ErrAlreadyStarted
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return ErrAlreadyStarted
	}

	closer, err := a.bus.Open(ctx, a.cfg, a)
	if err != nil {
		return fmt.Errorf("%w: port %q: %w", ErrOpen, a.cfg.Port, err)
	}
	a.started = true
	a.closer = closer
	a.stopWatch = a.r.Watch(a.pipe.ReadFd(), a.input)

	a.logger.Info("CEC adapter opened", "port", a.cfg.Port, "name", a.cfg.DeviceName)
	return nil
}

// Stop closes the bus and the pipe.
func (a *Adapter) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopWatch != nil {
		a.stopWatch()
		a.stopWatch = nil
	}
	if a.closer != nil {
		if err := a.closer.Close(); err != nil {
			a.logger.Warn("CEC close failed", "error", err)
		}
		a.closer = nil
	}
	if err := a.pipe.Close(); err != nil {
		a.logger.Warn("CEC pipe close failed", "error", err)
	}
}

// HandleKeyPress forwards key-down events to the reactor. Key-up events
// (non-zero duration) are ignored.
func (a *Adapter) HandleKeyPress(k KeyPress) {
	if k.Duration != 0 {
		return
	}
	if err := a.pipe.Send(k.Code); err != nil {
		if errors.Is(err, ErrWriterClosed) {
			return
		}
		a.logger.Error("CEC key press write failed, input closed", "key", k.Code.String(), "error", err)
	}
}

// HandleCommand traces bus commands.
func (a *Adapter) HandleCommand(description string) {
	a.logger.Debug("CEC command", "command", description)
}

// HandleLog traces libcec log lines.
func (a *Adapter) HandleLog(message string) {
	a.logger.Debug("CEC log", "message", message)
}

// HandleAlert logs alerts. A lost connection closes the pipe's write end,
// which ends CEC input once the reactor has drained it.
func (a *Adapter) HandleAlert(alert Alert) {
	if alert == AlertConnectionLost {
		a.logger.Error("CEC alert", "alert", alert.String())
		a.pipe.CloseWriter()
		return
	}
	a.logger.Warn("CEC alert", "alert", alert.String())
}

// input runs on the reactor whenever the pipe is readable.
func (a *Adapter) input() bool {
	var batch remote.Batch
	for {
		code, err := a.pipe.Read()
		if errors.Is(err, ErrNoData) {
			break
		}
		if errors.Is(err, io.EOF) {
			a.logger.Error("CEC connection dropped, exiting")
			a.r.Quit()
			return false
		}
		if err != nil {
			a.logger.Error("CEC pipe read failed, exiting", "error", err)
			a.r.Quit()
			return false
		}

		op, ok := code.Operation()
		if !ok {
			a.logger.Debug("CEC key unsupported", "key", code.String())
			continue
		}
		a.logger.Debug("CEC key", "key", code.String())
		batch.Add(op)
	}

	if !batch.Empty() {
		if a.recorder != nil {
			a.recorder.RecordBatch(sourceName, batch)
		}
		batch.Apply(a.out, volumeStep)
	}
	return true
}
