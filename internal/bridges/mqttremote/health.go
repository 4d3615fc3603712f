package mqttremote

import (
	"context"
	"encoding/json"
	"maps"
	"slices"
	"sync"
	"time"
)

const (
	// defaultHealthInterval is how often a report is published when nothing
	// changes.
	defaultHealthInterval = 30 * time.Second

	// defaultCheckTimeout bounds a single dependency check.
	defaultCheckTimeout = 5 * time.Second
)

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates every enabled input is running.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates an enabled input is down or a dependency
	// check failed.
	HealthDegraded HealthStatus = "degraded"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is the retained health report.
type HealthMessage struct {
	Status        HealthStatus    `json:"status"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Renderers     int             `json:"renderers"`
	Inputs        map[string]bool `json:"inputs"`
	Checks        map[string]bool `json:"checks,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by the MQTT client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// HealthChecker probes one dependency. The MQTT and InfluxDB clients and
// the HTTP server implement it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// Topic receives the reports. Required.
	Topic string

	// Version is the bridge software version.
	Version string

	// Interval between unchanged reports. Default: 30 seconds.
	Interval time.Duration

	// Publisher is the MQTT client for publishing messages. Nil keeps the
	// reporter local: Current still works for the HTTP health endpoint.
	Publisher HealthPublisher

	// Checks are run before every scheduled report, keyed by the name
	// that appears in the report.
	Checks map[string]HealthChecker
}

// HealthReporter publishes health periodically and on change.
type HealthReporter struct {
	topic     string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher

	stateMu   sync.RWMutex
	checkers  map[string]HealthChecker
	renderers int
	inputs    map[string]bool
	// checks holds the last result per checker; nil means it passed.
	checks map[string]error

	// changed coalesces change notifications into one publish.
	changed chan struct{}

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewHealthReporter creates a health reporter. Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}

	h := &HealthReporter{
		topic:     cfg.Topic,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		checkers:  make(map[string]HealthChecker, len(cfg.Checks)),
		inputs:    make(map[string]bool),
		checks:    make(map[string]error),
		changed:   make(chan struct{}, 1),
		done:      make(chan struct{}),
		logger:    noopLogger{},
	}
	for name, c := range cfg.Checks {
		h.AddCheck(name, c)
	}
	return h
}

// AddCheck registers a dependency check that runs before every scheduled
// report. A nil checker is ignored.
func (h *HealthReporter) AddCheck(name string, c HealthChecker) {
	if c == nil {
		return
	}
	h.stateMu.Lock()
	h.checkers[name] = c
	h.stateMu.Unlock()
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

func (h *HealthReporter) getLogger() Logger {
	h.loggerMu.RLock()
	defer h.loggerMu.RUnlock()
	return h.logger
}

// Start begins periodic health reporting. Call Stop to shut down.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends reporting and publishes a final "stopping" report.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // best effort during shutdown
		h.publishStatus(HealthStopping, "")
	})
}

// SetRendererCount records the number of registered renderers. A change
// triggers a report. It never blocks, so it may be called from the reactor.
func (h *HealthReporter) SetRendererCount(n int) {
	h.stateMu.Lock()
	changed := h.renderers != n
	h.renderers = n
	h.stateMu.Unlock()

	if changed {
		h.notify()
	}
}

// SetInput records whether an enabled input is running. A change triggers a
// report.
func (h *HealthReporter) SetInput(name string, up bool) {
	h.stateMu.Lock()
	prev, known := h.inputs[name]
	h.inputs[name] = up
	h.stateMu.Unlock()

	if !known || prev != up {
		h.notify()
	}
}

func (h *HealthReporter) notify() {
	select {
	case h.changed <- struct{}{}:
	default:
	}
}

// PublishStarting publishes a "starting" report.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.runChecks(ctx)
	if err := h.PublishNow(); err != nil {
		h.getLogger().Warn("failed to publish initial health", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
		case <-h.changed:
		}
		h.runChecks(ctx)
		if err := h.PublishNow(); err != nil {
			h.getLogger().Warn("failed to publish health", "error", err)
		}
	}
}

// runChecks probes every dependency and records the results. A failure is
// logged when it first appears.
func (h *HealthReporter) runChecks(ctx context.Context) {
	h.stateMu.RLock()
	checkers := maps.Clone(h.checkers)
	h.stateMu.RUnlock()

	for _, name := range slices.Sorted(maps.Keys(checkers)) {
		checkCtx, cancel := context.WithTimeout(ctx, defaultCheckTimeout)
		err := checkers[name].HealthCheck(checkCtx)
		cancel()

		h.stateMu.Lock()
		prev, known := h.checks[name]
		h.checks[name] = err
		h.stateMu.Unlock()

		switch {
		case err != nil && (!known || prev == nil):
			h.getLogger().Warn("health check failed", "check", name, "error", err)
		case err == nil && prev != nil:
			h.getLogger().Info("health check recovered", "check", name)
		}
	}
}

// determineStatus evaluates the current bridge status from the last check
// results and the inputs.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	for _, name := range slices.Sorted(maps.Keys(h.checks)) {
		if h.checks[name] != nil {
			return HealthDegraded, name + " unhealthy"
		}
	}
	for _, name := range slices.Sorted(maps.Keys(h.inputs)) {
		if !h.inputs[name] {
			return HealthDegraded, name + " input down"
		}
	}
	return HealthHealthy, ""
}

// Snapshot builds the report for status without publishing it.
func (h *HealthReporter) Snapshot(status HealthStatus, reason string) HealthMessage {
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()

	var checks map[string]bool
	if len(h.checks) > 0 {
		checks = make(map[string]bool, len(h.checks))
		for name, err := range h.checks {
			checks[name] = err == nil
		}
	}

	return HealthMessage{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Renderers:     h.renderers,
		Inputs:        maps.Clone(h.inputs),
		Checks:        checks,
		Reason:        reason,
		Timestamp:     time.Now().UTC(),
	}
}

// Current returns the report PublishNow would send.
func (h *HealthReporter) Current() HealthMessage {
	status, reason := h.determineStatus()
	return h.Snapshot(status, reason)
}

func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	payload, err := json.Marshal(h.Snapshot(status, reason))
	if err != nil {
		return err
	}

	// QoS 1, retained
	return h.publisher.Publish(h.topic, payload, 1, true)
}
