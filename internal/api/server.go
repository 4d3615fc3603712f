package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/r2upnpav/internal/bridges/mqttremote"
	"github.com/nerrad567/r2upnpav/internal/infrastructure/config"
	"github.com/nerrad567/r2upnpav/internal/infrastructure/logging"
	"github.com/nerrad567/r2upnpav/internal/reactor"
	"github.com/nerrad567/r2upnpav/internal/renderer"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// RendererSource lists the registered renderers.
type RendererSource interface {
	Renderers(ctx context.Context) ([]renderer.Snapshot, error)
}

// HealthSource reports the bridge health.
type HealthSource interface {
	Current() mqttremote.HealthMessage
}

var _ HealthSource = (*mqttremote.HealthReporter)(nil)

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.ServerConfig
	WS        config.WebSocketConfig
	Logger    *logging.Logger
	Events    http.Handler // GENA callback handler, mounted at /upnp/event
	Renderers RendererSource
	Health    HealthSource // optional
	Hub       *Hub         // optional; Start creates and runs one when nil
	Version   string
}

// Server is the HTTP server for GENA callbacks and the status API.
type Server struct {
	cfg       config.ServerConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	events    http.Handler
	renderers RendererSource
	health    HealthSource
	version   string
	server    *http.Server
	listener  net.Listener
	hub       *Hub
	cancel    context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Events == nil {
		return nil, errors.New("event handler is required")
	}
	if deps.Renderers == nil {
		return nil, errors.New("renderer source is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		events:    deps.Events,
		renderers: deps.Renderers,
		health:    deps.Health,
		hub:       deps.Hub,
		version:   deps.Version,
	}, nil
}

// Start binds the listener and serves in a background goroutine.
//
// Parameters:
//   - ctx: Parent context for the WebSocket hub
//
// Returns:
//   - error: If the address cannot be bound
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	// An injected hub is run by its owner.
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("HTTP server listening", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	return nil
}

// Port returns the bound TCP port, or 0 before Start.
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// Hub returns the WebSocket hub. It is nil before Start unless one was
// injected.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Close gracefully shuts down the server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("HTTP server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}
	return nil
}

// HealthCheck verifies the server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return errors.New("api server not started")
	}
	return nil
}

// ReactorRenderers reads a Registry on its reactor goroutine.
type ReactorRenderers struct {
	Reactor  *reactor.Reactor
	Registry *renderer.Registry
}

var _ RendererSource = ReactorRenderers{}

// Renderers implements RendererSource.
func (rr ReactorRenderers) Renderers(ctx context.Context) ([]renderer.Snapshot, error) {
	var list []renderer.Snapshot
	if err := rr.Reactor.Call(ctx, func() {
		list = rr.Registry.Renderers()
	}); err != nil {
		return nil, err
	}
	return list, nil
}
