package upnp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/huin/goupnp"

	"github.com/nerrad567/r2upnpav/internal/renderer"
)

// MediaRendererType is the device type searched for.
const MediaRendererType = "urn:schemas-upnp-org:device:MediaRenderer:1"

const (
	defaultInterval    = 30 * time.Second
	defaultSearchWait  = 5 * time.Second
	defaultMissedScans = 3
)

// Logger defines the logging interface used by the upnp package.
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

// Target receives renderer availability on the reactor.
// renderer.Registry implements it.
type Target interface {
	DeviceAppeared(name string, dev renderer.Device)
	DeviceUnavailable(name string)
}

// SearchFunc performs one SSDP search. goupnp.DiscoverDevicesCtx is the
// production implementation.
type SearchFunc func(ctx context.Context, searchTarget string) ([]goupnp.MaybeRootDevice, error)

// DiscoveryConfig configures a ControlPoint.
type DiscoveryConfig struct {
	// SearchTarget is the ST of every M-SEARCH. Default: MediaRendererType.
	SearchTarget string

	// Interval between searches. Default: 30 seconds.
	Interval time.Duration

	// SearchWait bounds each search. Default: 5 seconds.
	SearchWait time.Duration

	// MissedScans is how many consecutive searches a device may miss before
	// it is reported unavailable. Default: 3.
	MissedScans int

	// Interface restricts discovery to one network interface. Empty means all.
	Interface string
}

// known is a device the control point has reported.
type known struct {
	name   string
	missed int
}

// ControlPoint discovers media renderers and reports them to a Target.
//
// Searching runs on its own goroutine; Target methods are only ever called
// through the Poster, so they run on the reactor.
type ControlPoint struct {
	cfg    DiscoveryConfig
	poster Poster
	target Target
	events *EventServer
	search SearchFunc
	addrs  []net.IP

	// Owned by the search goroutine.
	devices map[string]*known

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	logger Logger
}

// NewControlPoint creates a control point.
//
// Parameters:
//   - cfg: discovery settings
//   - poster: the reactor
//   - target: receives DeviceAppeared and DeviceUnavailable
//   - events: passed to every discovered device for Subscribe
//
// Returns:
//   - *ControlPoint: ready to Start
//   - error: ErrInterfaceNotFound if cfg.Interface does not exist or has no
//     addresses
func NewControlPoint(cfg DiscoveryConfig, poster Poster, target Target, events *EventServer) (*ControlPoint, error) {
	if cfg.SearchTarget == "" {
		cfg.SearchTarget = MediaRendererType
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.SearchWait <= 0 {
		cfg.SearchWait = defaultSearchWait
	}
	if cfg.MissedScans <= 0 {
		cfg.MissedScans = defaultMissedScans
	}

	cp := &ControlPoint{
		cfg:     cfg,
		poster:  poster,
		target:  target,
		events:  events,
		search:  goupnp.DiscoverDevicesCtx,
		devices: make(map[string]*known),
		logger:  noopLogger{},
	}

	if cfg.Interface != "" {
		addrs, err := interfaceAddrs(cfg.Interface)
		if err != nil {
			return nil, err
		}
		cp.addrs = addrs
	}
	return cp, nil
}

// SetLogger sets the logger. Call before Start.
func (cp *ControlPoint) SetLogger(logger Logger) {
	if logger == nil {
		cp.logger = noopLogger{}
		return
	}
	cp.logger = logger
}

// SetSearchFunc replaces the SSDP search. Call before Start.
func (cp *ControlPoint) SetSearchFunc(fn SearchFunc) {
	cp.search = fn
}

// Start runs the first search and keeps searching every Interval in the
// background until ctx is cancelled or Stop is called.
func (cp *ControlPoint) Start(ctx context.Context) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if cp.running {
		return ErrDiscoveryRunning
	}
	cp.running = true

	ctx, cancel := context.WithCancel(ctx)
	cp.cancel = cancel

	cp.logger.Info("discovery started",
		"target", cp.cfg.SearchTarget,
		"interval", cp.cfg.Interval,
		"interface", cp.cfg.Interface,
	)

	cp.wg.Add(1)
	go cp.loop(ctx)
	return nil
}

// Stop ends discovery and waits for the search goroutine.
func (cp *ControlPoint) Stop() {
	cp.mu.Lock()
	cancel := cp.cancel
	cp.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	cp.wg.Wait()
}

func (cp *ControlPoint) loop(ctx context.Context) {
	defer cp.wg.Done()

	ticker := time.NewTicker(cp.cfg.Interval)
	defer ticker.Stop()

	for {
		cp.scan(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// scan runs one search and reports the differences to the target.
func (cp *ControlPoint) scan(ctx context.Context) {
	searchCtx, cancel := context.WithTimeout(ctx, cp.cfg.SearchWait)
	defer cancel()

	results, err := cp.search(searchCtx, cp.cfg.SearchTarget)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		// A failed search proves nothing about absence.
		cp.logger.Warn("ssdp search failed", "error", err)
		return
	}

	seen := make(map[string]bool, len(results))
	for i := range results {
		r := &results[i]
		if !cp.onInterface(r.LocalAddr) {
			continue
		}
		if seen[r.USN] {
			continue
		}
		if r.Err != nil {
			// Responded but the description could not be fetched: still alive.
			if _, ok := cp.devices[r.USN]; ok {
				seen[r.USN] = true
			}
			cp.logger.Debug("device description failed", "usn", r.USN, "location", locationString(r), "error", r.Err)
			continue
		}
		seen[r.USN] = true

		if d, ok := cp.devices[r.USN]; ok {
			d.missed = 0
			continue
		}

		name := r.Root.Device.FriendlyName
		cp.devices[r.USN] = &known{name: name}
		dev := NewDevice(r.USN, r.Root, r.LocalAddr, cp.events)
		cp.logger.Debug("device found", "name", name, "usn", r.USN, "location", locationString(r))
		cp.post(func() { cp.target.DeviceAppeared(name, dev) })
	}

	for usn, d := range cp.devices {
		if seen[usn] {
			continue
		}
		d.missed++
		if d.missed < cp.cfg.MissedScans {
			continue
		}
		delete(cp.devices, usn)
		name := d.name
		cp.logger.Debug("device lost", "name", name, "usn", usn)
		cp.post(func() { cp.target.DeviceUnavailable(name) })
	}
}

func (cp *ControlPoint) post(fn func()) {
	if err := cp.poster.Post(fn); err != nil {
		cp.logger.Debug("discovery event dropped", "error", err)
	}
}

func (cp *ControlPoint) onInterface(local net.IP) bool {
	if len(cp.addrs) == 0 {
		return true
	}
	for _, a := range cp.addrs {
		if a.Equal(local) {
			return true
		}
	}
	return false
}

func interfaceAddrs(name string) ([]net.IP, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInterfaceNotFound, name, err)
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInterfaceNotFound, name, err)
	}

	var ips []net.IP
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok {
			ips = append(ips, ipnet.IP)
		}
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("%w: %s has no addresses", ErrInterfaceNotFound, name)
	}
	return ips, nil
}

func locationString(r *goupnp.MaybeRootDevice) string {
	if r.Location == nil {
		return ""
	}
	return r.Location.String()
}
