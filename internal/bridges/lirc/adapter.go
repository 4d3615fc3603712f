package lirc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	golirc "libdb.so/go-lirc"

	"github.com/nerrad567/r2upnpav/internal/reactor"
	"github.com/nerrad567/r2upnpav/internal/remote"
)

const (
	// DefaultSocket is where lircd listens on most distributions.
	DefaultSocket = "/var/run/lirc/lircd"

	// volumeStep is the AdjustVolume magnitude for IR input.
	volumeStep = 1

	// inboxSize bounds the button presses waiting for the reactor.
	inboxSize = 256

	// dialTimeout bounds the reachability check in Start.
	dialTimeout = 5 * time.Second

	// sourceName labels IR batches for the Recorder.
	sourceName = "lirc"
)

// Logger defines the logging interface used by the IR bridge.
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

// Source is a connected lircd event stream.
type Source interface {
	// Events delivers button presses until the connection ends.
	Events() <-chan golirc.ButtonPress

	// Run reads the connection until it fails or ctx is cancelled.
	Run(ctx context.Context) error
}

// Dialer connects to lircd.
type Dialer func(ctx context.Context, socket string) (Source, error)

// Options configures an Adapter.
type Options struct {
	// Socket is the lircd unix socket. Default: DefaultSocket.
	Socket string

	// Dialer connects to lircd. Default: go-lirc over a unix socket.
	Dialer Dialer

	// Recorder observes applied batches. Optional.
	Recorder remote.Recorder

	// SlogLogger is handed to go-lirc. Optional.
	SlogLogger *slog.Logger
}

// Adapter feeds lircd button presses into the reactor.
type Adapter struct {
	r        *reactor.Reactor
	out      remote.Output
	config   *Config
	socket   string
	dial     Dialer
	recorder remote.Recorder
	slog     *slog.Logger
	inbox    *reactor.Inbox[Code]

	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopping atomic.Bool

	logger Logger
}

// New creates an IR adapter. Nothing is read until Start.
//
// Parameters:
//   - r: the reactor that applies batches
//   - out: receives the batched actions (the renderer registry)
//   - config: lircrc decoder for this program
//   - opts: connection and observer settings
func New(r *reactor.Reactor, out remote.Output, config *Config, opts Options) *Adapter {
	a := &Adapter{
		r:        r,
		out:      out,
		config:   config,
		socket:   opts.Socket,
		dial:     opts.Dialer,
		recorder: opts.Recorder,
		slog:     opts.SlogLogger,
		logger:   noopLogger{},
	}
	if a.socket == "" {
		a.socket = DefaultSocket
	}
	if a.dial == nil {
		a.dial = a.dialUnix
	}
	if a.slog == nil {
		a.slog = slog.New(slog.DiscardHandler)
	}
	a.inbox = reactor.NewInbox[Code](r, inboxSize, a.input)
	return a
}

// SetLogger sets the logger for the adapter. Call before Start.
func (a *Adapter) SetLogger(logger Logger) {
	if logger == nil {
		a.logger = noopLogger{}
		return
	}
	a.logger = logger
}

// Start connects to lircd and begins forwarding button presses.
//
// Returns:
//   - error: ErrConnect if lircd cannot be reached, ErrAlreadyStarted
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return ErrAlreadyStarted
	}

	src, err := a.dial(ctx, a.socket)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConnect, a.socket, err)
	}
	a.started = true

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	ended := make(chan error, 1)
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		ended <- src.Run(ctx)
	}()
	go a.pump(ctx, src.Events(), ended)

	a.logger.Info("lircd connected", "socket", a.socket, "program", a.config.program)
	return nil
}

// Stop disconnects from lircd and waits for the reader goroutines.
func (a *Adapter) Stop() {
	a.stopping.Store(true)
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	a.wg.Wait()
}

// Dropped returns how many button presses were discarded because the reactor
// fell behind.
func (a *Adapter) Dropped() uint64 {
	return a.inbox.Dropped()
}

// pump is the only producer of the inbox.
func (a *Adapter) pump(ctx context.Context, events <-chan golirc.ButtonPress, ended <-chan error) {
	defer a.wg.Done()
	defer a.inbox.Close()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			code := Code{Remote: ev.RemoteControlName, Button: ev.ButtonName, Repeat: ev.RepeatCount}
			if !a.inbox.Push(code) {
				a.logger.Warn("lircd code dropped", "code", code.String())
			}
		case err := <-ended:
			if err != nil && ctx.Err() == nil {
				a.logger.Error("lircd connection failed", "error", err)
			}
			return
		}
	}
}

// input runs on the reactor each time codes are queued.
func (a *Adapter) input() {
	var batch remote.Batch
	for {
		code, err := a.inbox.Next()
		if errors.Is(err, reactor.ErrEmpty) {
			break
		}
		if err != nil {
			if !a.stopping.Load() {
				a.logger.Error("lircd connection dropped, exiting")
			}
			a.r.Quit()
			return
		}

		a.logger.Debug("lircd code", "code", code.String())
		for _, name := range a.config.Decode(code) {
			op, err := remote.ParseOperation(name)
			if err != nil {
				a.logger.Warn("lircrc config unsupported", "config", name, "error", err)
				continue
			}
			a.logger.Debug("lircrc config", "config", name)
			batch.Add(op)
		}
	}

	if batch.Empty() {
		return
	}
	if a.recorder != nil {
		a.recorder.RecordBatch(sourceName, batch)
	}
	batch.Apply(a.out, volumeStep)
}

// unixSource adapts a go-lirc connection to Source.
type unixSource struct {
	events <-chan golirc.ButtonPress
	start  func(context.Context, *slog.Logger) error
	log    *slog.Logger
}

func (s unixSource) Events() <-chan golirc.ButtonPress {
	return s.events
}

func (s unixSource) Run(ctx context.Context) error {
	return s.start(ctx, s.log)
}

func (a *Adapter) dialUnix(ctx context.Context, socket string) (Source, error) {
	// go-lirc only reports an unreachable socket once it is running, so
	// check reachability here to fail before the reactor starts.
	d := net.Dialer{Timeout: dialTimeout}
	probe, err := d.DialContext(ctx, "unix", socket)
	if err != nil {
		return nil, err
	}
	_ = probe.Close()

	conn := golirc.NewUnix(socket)
	return unixSource{events: conn.Events, start: conn.Start, log: a.slog}, nil
}
