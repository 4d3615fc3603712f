package mqttremote

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nerrad567/r2upnpav/internal/infrastructure/mqtt"
	"github.com/nerrad567/r2upnpav/internal/reactor"
	"github.com/nerrad567/r2upnpav/internal/remote"
)

const (
	// volumeStep is the AdjustVolume magnitude for MQTT input.
	volumeStep = 1

	// inboxSize bounds the commands waiting for the reactor.
	inboxSize = 64

	// maxCommandSize bounds a command payload.
	maxCommandSize = 64

	// sourceName labels MQTT batches for the Recorder.
	sourceName = "mqtt"
)

// Logger defines the logging interface used by this package.
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

// Subscriber is the subset of the MQTT client the command adapter needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

var _ Subscriber = (*mqtt.Client)(nil)

// CommandOptions configures a Commands adapter.
type CommandOptions struct {
	// Topic carries the commands. Required.
	Topic string

	// QoS of the subscription. Default: 0.
	QoS byte

	// Recorder observes applied batches. Optional.
	Recorder remote.Recorder
}

// Commands feeds operation names received over MQTT into the reactor.
type Commands struct {
	r        *reactor.Reactor
	out      remote.Output
	sub      Subscriber
	topic    string
	qos      byte
	recorder remote.Recorder
	inbox    *reactor.Inbox[remote.Operation]

	mu      sync.Mutex
	started bool

	logger Logger
}

// NewCommands creates the command adapter. Nothing is subscribed until Start.
func NewCommands(r *reactor.Reactor, out remote.Output, sub Subscriber, opts CommandOptions) *Commands {
	c := &Commands{
		r:        r,
		out:      out,
		sub:      sub,
		topic:    opts.Topic,
		qos:      opts.QoS,
		recorder: opts.Recorder,
		logger:   noopLogger{},
	}
	c.inbox = reactor.NewInbox[remote.Operation](r, inboxSize, c.input)
	return c
}

// SetLogger sets the logger for the adapter. Call before Start.
func (c *Commands) SetLogger(logger Logger) {
	if logger == nil {
		c.logger = noopLogger{}
		return
	}
	c.logger = logger
}

// Start subscribes to the command topic.
//
// Returns:
//   - error: ErrNoSubscriber, ErrAlreadyStarted, or the subscribe failure
func (c *Commands) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub == nil {
		return ErrNoSubscriber
	}
	if c.started {
		return ErrAlreadyStarted
	}
	if err := c.sub.Subscribe(c.topic, c.qos, c.handle); err != nil {
		return fmt.Errorf("subscribing to %s: %w", c.topic, err)
	}
	c.started = true

	c.logger.Info("MQTT commands subscribed", "topic", c.topic)
	return nil
}

// Stop unsubscribes. Commands already queued are still applied.
func (c *Commands) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return
	}
	c.started = false
	if err := c.sub.Unsubscribe(c.topic); err != nil {
		c.logger.Debug("MQTT commands unsubscribe failed", "topic", c.topic, "error", err)
	}
}

// Dropped returns how many commands were discarded because the reactor fell
// behind.
func (c *Commands) Dropped() uint64 {
	return c.inbox.Dropped()
}

// handle runs on paho goroutines.
func (c *Commands) handle(_ string, payload []byte) error {
	op, err := ParseCommand(payload)
	if err != nil {
		return err
	}
	if !c.inbox.Push(op) {
		c.logger.Warn("MQTT command dropped", "operation", op.String())
	}
	return nil
}

// ParseCommand decodes a command payload: one operation name, case
// insensitive, surrounding whitespace ignored.
//
// Returns:
//   - error: ErrPayloadTooLarge or remote.ErrUnknownOperation
func ParseCommand(payload []byte) (remote.Operation, error) {
	if len(payload) > maxCommandSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	name := strings.TrimSpace(string(payload))
	return remote.ParseOperation(name)
}

// input runs on the reactor each time commands are queued.
func (c *Commands) input() {
	var batch remote.Batch
	for {
		op, err := c.inbox.Next()
		if errors.Is(err, reactor.ErrEmpty) || errors.Is(err, reactor.ErrClosed) {
			break
		}
		c.logger.Debug("MQTT command", "operation", op.String())
		batch.Add(op)
	}

	if batch.Empty() {
		return
	}
	if c.recorder != nil {
		c.recorder.RecordBatch(sourceName, batch)
	}
	batch.Apply(c.out, volumeStep)
}
