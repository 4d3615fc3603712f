package status

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/r2upnpav/internal/infrastructure/mqtt"
	"github.com/nerrad567/r2upnpav/internal/remote"
	"github.com/nerrad567/r2upnpav/internal/renderer"
)

// defaultQueueSize bounds the events waiting for the worker.
const defaultQueueSize = 256

// WebSocket channels.
const (
	ChannelRendererAdded   = "renderer.added"
	ChannelRendererRemoved = "renderer.removed"
	ChannelRendererState   = "renderer.state_changed"
	ChannelRemoteBatch     = "remote.batch"
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

// StatePublisher stores retained renderer documents.
type StatePublisher interface {
	PublishRetained(topic string, payload []byte) error
	ClearRetained(topic string) error
}

// MetricsWriter records renderer state and input batches as time series.
type MetricsWriter interface {
	WriteRendererState(renderer string, muted bool, volume uint)
	WriteRemoteBatch(source string, play, skip, volume int, mute bool)
	Flush()
}

// Broadcaster pushes events to WebSocket clients.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// RendererCounter is told how many renderers are registered.
type RendererCounter interface {
	SetRendererCount(n int)
}

var (
	_ StatePublisher    = (*mqtt.Client)(nil)
	_ renderer.Observer = (*Publisher)(nil)
	_ remote.Recorder   = (*Publisher)(nil)
)

// Options configures a Publisher. Every sink is optional; leave the field
// nil to disable it.
type Options struct {
	// Topics names the retained renderer topics.
	Topics mqtt.Topics

	MQTT    StatePublisher
	Metrics MetricsWriter
	Hub     Broadcaster
	Health  RendererCounter

	// QueueSize bounds pending events. Default: 256.
	QueueSize int
}

// BatchEvent is the remote.batch payload.
type BatchEvent struct {
	Source string `json:"source"`
	Play   int    `json:"play"`
	Skip   int    `json:"skip"`
	Volume int    `json:"volume"`
	Mute   bool   `json:"mute"`
}

type eventKind int

const (
	eventAdded eventKind = iota
	eventRemoved
	eventChanged
	eventBatch
)

type event struct {
	kind     eventKind
	snapshot renderer.Snapshot
	batch    BatchEvent
}

// Publisher forwards registry and input activity to the configured sinks.
//
// Observer and Recorder methods never block. Start launches the worker and
// Stop drains it.
type Publisher struct {
	topics  mqtt.Topics
	mqtt    StatePublisher
	metrics MetricsWriter
	hub     Broadcaster
	health  RendererCounter

	// renderers is only touched from the reactor goroutine.
	renderers int

	events   chan event
	dropped  atomic.Uint64
	wg       sync.WaitGroup
	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once

	logger Logger
}

// New creates a Publisher. Call Start to begin delivering events.
func New(opts Options) *Publisher {
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Publisher{
		topics:  opts.Topics,
		mqtt:    opts.MQTT,
		metrics: opts.Metrics,
		hub:     opts.Hub,
		health:  opts.Health,
		events:  make(chan event, size),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger. Call before Start.
func (p *Publisher) SetLogger(logger Logger) {
	if logger == nil {
		p.logger = noopLogger{}
		return
	}
	p.logger = logger
}

// Start launches the delivery worker. Extra calls are ignored.
func (p *Publisher) Start() {
	p.startMu.Lock()
	defer p.startMu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.wg.Add(1)
	go p.run()
}

// Stop delivers the queued events, waits for the worker and flushes the
// metrics writer. No observer or recorder calls may be made afterwards.
func (p *Publisher) Stop() {
	p.stopOnce.Do(func() {
		close(p.events)
		p.wg.Wait()
		if p.metrics != nil {
			p.metrics.Flush()
		}
	})
}

// Dropped returns how many events were discarded because the queue was full.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

// RendererAdded implements renderer.Observer.
func (p *Publisher) RendererAdded(name string, state renderer.State) {
	p.renderers++
	p.countChanged()
	p.enqueue(event{kind: eventAdded, snapshot: snapshot(name, state)})
}

// RendererRemoved implements renderer.Observer.
func (p *Publisher) RendererRemoved(name string) {
	if p.renderers > 0 {
		p.renderers--
	}
	p.countChanged()
	p.enqueue(event{kind: eventRemoved, snapshot: renderer.Snapshot{Name: name}})
}

// RendererStateChanged implements renderer.Observer.
func (p *Publisher) RendererStateChanged(name string, state renderer.State) {
	p.enqueue(event{kind: eventChanged, snapshot: snapshot(name, state)})
}

// RecordBatch implements remote.Recorder.
func (p *Publisher) RecordBatch(source string, b remote.Batch) {
	p.enqueue(event{kind: eventBatch, batch: BatchEvent{
		Source: source,
		Play:   b.PlayBias,
		Skip:   b.SkipBias,
		Volume: b.VolumeBias,
		Mute:   b.MuteToggled,
	}})
}

func (p *Publisher) countChanged() {
	if p.health != nil {
		p.health.SetRendererCount(p.renderers)
	}
}

func (p *Publisher) enqueue(ev event) {
	select {
	case p.events <- ev:
	default:
		if p.dropped.Add(1) == 1 {
			p.logger.Warn("status queue full, dropping events")
		}
	}
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for ev := range p.events {
		p.deliver(ev)
	}
}

func (p *Publisher) deliver(ev event) {
	switch ev.kind {
	case eventAdded:
		p.publishState(ev.snapshot)
		p.writeState(ev.snapshot)
		p.broadcast(ChannelRendererAdded, ev.snapshot)
	case eventChanged:
		p.publishState(ev.snapshot)
		p.writeState(ev.snapshot)
		p.broadcast(ChannelRendererState, ev.snapshot)
	case eventRemoved:
		if p.mqtt != nil {
			if err := p.mqtt.ClearRetained(p.topics.Renderer(ev.snapshot.Name)); err != nil {
				p.logger.Debug("clearing renderer topic failed", "renderer", ev.snapshot.Name, "error", err)
			}
		}
		p.broadcast(ChannelRendererRemoved, map[string]string{"name": ev.snapshot.Name})
	case eventBatch:
		if p.metrics != nil {
			b := ev.batch
			p.metrics.WriteRemoteBatch(b.Source, b.Play, b.Skip, b.Volume, b.Mute)
		}
		p.broadcast(ChannelRemoteBatch, ev.batch)
	}
}

func (p *Publisher) publishState(s renderer.Snapshot) {
	if p.mqtt == nil {
		return
	}
	payload, err := json.Marshal(s)
	if err != nil {
		p.logger.Error("encoding renderer state", "renderer", s.Name, "error", err)
		return
	}
	if err := p.mqtt.PublishRetained(p.topics.Renderer(s.Name), payload); err != nil {
		p.logger.Debug("publishing renderer state failed", "renderer", s.Name, "error", err)
	}
}

func (p *Publisher) writeState(s renderer.Snapshot) {
	if p.metrics != nil {
		p.metrics.WriteRendererState(s.Name, s.Muted, s.Volume)
	}
}

func (p *Publisher) broadcast(channel string, payload any) {
	if p.hub != nil {
		p.hub.Broadcast(channel, payload)
	}
}

func snapshot(name string, state renderer.State) renderer.Snapshot {
	return renderer.Snapshot{Name: name, Muted: state.Muted, Volume: state.Volume}
}
