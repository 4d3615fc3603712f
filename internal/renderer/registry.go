package renderer

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
)

// DefaultPattern matches Sonos zone players, whose friendly names look like
// "192.168.1.20 - Sonos Play:1".
const DefaultPattern = `(?i).*\s-\ssonos\s.*`

// defaultActionTimeout bounds each UPnP action when RegistryOptions leaves
// ActionTimeout unset.
const defaultActionTimeout = 5 * time.Second

// Logger defines the logging interface used by the renderer package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a Logger that discards all messages.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer is told about registry membership and cached state changes.
// Calls are made on the reactor goroutine and must not block.
type Observer interface {
	RendererAdded(name string, state State)
	RendererRemoved(name string)
	RendererStateChanged(name string, state State)
}

// Snapshot is the externally visible view of one registered renderer.
type Snapshot struct {
	Name   string `json:"name"`
	Muted  bool   `json:"muted"`
	Volume uint   `json:"volume"`
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Pattern is matched against the whole friendly name. Empty means
	// DefaultPattern.
	Pattern string

	// Decoder is shared by every RenderingControl. Nil creates one.
	Decoder *LastChangeDecoder

	// ActionTimeout bounds every UPnP action. Zero means 5s.
	ActionTimeout time.Duration

	// Observer is optional.
	Observer Observer
}

// Registry holds the renderers that currently match the name pattern and
// fans control actions out to all of them.
//
// Registry implements remote.Output. All methods must be called from the
// reactor goroutine.
type Registry struct {
	match     *regexp.Regexp
	decoder   *LastChangeDecoder
	timeout   time.Duration
	observer  Observer
	transport map[string]*TransportControl
	rendering map[string]*RenderingControl
	logger    Logger
}

// NewRegistry creates an empty registry.
//
// Returns:
//   - *Registry: the registry
//   - error: ErrInvalidPattern if the pattern does not compile
func NewRegistry(opts RegistryOptions) (*Registry, error) {
	pattern := opts.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	// Anchor so the pattern must match the whole name.
	match, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}

	r := &Registry{
		match:     match,
		decoder:   opts.Decoder,
		timeout:   opts.ActionTimeout,
		observer:  opts.Observer,
		transport: make(map[string]*TransportControl),
		rendering: make(map[string]*RenderingControl),
		logger:    noopLogger{},
	}
	if r.decoder == nil {
		r.decoder = NewLastChangeDecoder()
	}
	if r.timeout <= 0 {
		r.timeout = defaultActionTimeout
	}
	return r, nil
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	if logger == nil {
		r.logger = noopLogger{}
		return
	}
	r.logger = logger
}

// SetObserver replaces the observer. Nil removes it.
func (r *Registry) SetObserver(o Observer) {
	r.observer = o
}

// Matches reports whether name matches the registry's pattern.
func (r *Registry) Matches(name string) bool {
	return r.match.MatchString(name)
}

// DeviceAppeared registers a renderer that matches the pattern and is not
// registered yet. Both proxies are built before either is inserted; if one
// cannot be built the renderer is not registered.
func (r *Registry) DeviceAppeared(name string, dev Device) {
	if !r.Matches(name) {
		r.logger.Debug("renderer available mismatch", "renderer", name)
		return
	}
	if _, ok := r.transport[name]; ok {
		return
	}

	r.logger.Info("renderer available match", "renderer", name)

	transport, err := NewTransportControl(name, dev)
	if err != nil {
		r.logger.Error("renderer not registered", "renderer", name, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*r.timeout)
	defer cancel()
	rendering, err := newRenderingControl(ctx, name, dev, r.decoder, renderingOptions{
		logger:   r.logger,
		onChange: r.stateChanged,
	})
	if err != nil {
		r.logger.Error("renderer not registered", "renderer", name, "error", err)
		return
	}

	r.transport[name] = transport
	r.rendering[name] = rendering

	if r.observer != nil {
		r.observer.RendererAdded(name, rendering.State())
	}
}

// DeviceUnavailable removes a renderer at once. Requests already sent to it
// are not cancelled.
func (r *Registry) DeviceUnavailable(name string) {
	rendering, ok := r.rendering[name]
	if !ok {
		return
	}

	r.logger.Info("renderer unavailable", "renderer", name)
	delete(r.transport, name)
	delete(r.rendering, name)
	rendering.Close()

	if r.observer != nil {
		r.observer.RendererRemoved(name)
	}
}

// Len returns the number of registered renderers.
func (r *Registry) Len() int {
	return len(r.transport)
}

// Renderers returns a snapshot of every registered renderer, sorted by name.
func (r *Registry) Renderers() []Snapshot {
	out := make([]Snapshot, 0, len(r.rendering))
	for name, rc := range r.rendering {
		s := rc.State()
		out = append(out, Snapshot{Name: name, Muted: s.Muted, Volume: s.Volume})
	}
	slices.SortFunc(out, func(a, b Snapshot) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Close releases every renderer's notification subscription and empties the
// registry.
func (r *Registry) Close() {
	for name := range r.rendering {
		r.DeviceUnavailable(name)
	}
}

// Play starts playback on every renderer.
func (r *Registry) Play() {
	r.eachTransport("Play", (*TransportControl).Play)
}

// Pause pauses playback on every renderer.
func (r *Registry) Pause() {
	r.eachTransport("Pause", (*TransportControl).Pause)
}

// Previous skips back on every renderer.
func (r *Registry) Previous() {
	r.eachTransport("Previous", (*TransportControl).Previous)
}

// Next skips forward on every renderer.
func (r *Registry) Next() {
	r.eachTransport("Next", (*TransportControl).Next)
}

// AdjustVolume changes the volume of every renderer by delta.
func (r *Registry) AdjustVolume(delta int) {
	for name, rc := range r.rendering {
		ctx, cancel := context.WithTimeout(context.Background(), 2*r.timeout)
		if err := rc.AdjustVolume(ctx, delta); err != nil {
			r.logger.Error("volume adjustment failed", "renderer", name, "delta", delta, "error", err)
		}
		cancel()
	}
}

// ToggleMute inverts the mute state of every renderer.
func (r *Registry) ToggleMute() {
	for name, rc := range r.rendering {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := rc.ToggleMute(ctx); err != nil {
			r.logger.Error("mute toggle failed", "renderer", name, "error", err)
		}
		cancel()
	}
}

func (r *Registry) eachTransport(action string, fn func(*TransportControl, context.Context) error) {
	for name, t := range r.transport {
		r.logger.Debug("transport action", "renderer", name, "action", action)
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := fn(t, ctx); err != nil {
			r.logger.Error("transport action failed", "renderer", name, "action", action, "error", err)
		}
		cancel()
	}
}

func (r *Registry) stateChanged(name string, state State) {
	// Only report renderers that are registered; construction-time seeding
	// is covered by RendererAdded.
	if _, ok := r.rendering[name]; !ok {
		return
	}
	if r.observer != nil {
		r.observer.RendererStateChanged(name, state)
	}
}
