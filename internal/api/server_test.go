package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/r2upnpav/internal/bridges/mqttremote"
	"github.com/nerrad567/r2upnpav/internal/infrastructure/config"
	"github.com/nerrad567/r2upnpav/internal/infrastructure/logging"
	"github.com/nerrad567/r2upnpav/internal/reactor"
	"github.com/nerrad567/r2upnpav/internal/renderer"
)

type mockRenderers struct {
	list []renderer.Snapshot
	err  error
}

func (m *mockRenderers) Renderers(context.Context) ([]renderer.Snapshot, error) {
	return m.list, m.err
}

type mockHealth struct {
	msg mqttremote.HealthMessage
}

func (m *mockHealth) Current() mqttremote.HealthMessage {
	return m.msg
}

// mockEvents records GENA callbacks.
type mockEvents struct {
	mu    sync.Mutex
	paths []string
}

func (m *mockEvents) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.paths = append(m.paths, r.Method+" "+r.URL.Path)
	m.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}
}

// testServer creates a Server with mock dependencies.
func testServer(t *testing.T, renderers RendererSource, health HealthSource) (*Server, *mockEvents) {
	t.Helper()

	events := &mockEvents{}
	srv, err := New(Deps{
		Config: config.ServerConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.ServerTimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS:        testWSConfig(),
		Logger:    testLogger(),
		Events:    events,
		Renderers: renderers,
		Health:    health,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	srv.hub = NewHub(srv.wsCfg, srv.logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.hub.Run(ctx)

	return srv, events
}

func serve(srv *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)
	return w
}

func TestNew_RequiredDeps(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{Events: &mockEvents{}, Renderers: &mockRenderers{}}},
		{"no events", Deps{Logger: testLogger(), Renderers: &mockRenderers{}}},
		{"no renderers", Deps{Logger: testLogger(), Events: &mockEvents{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() succeeded, want error")
			}
		})
	}
}

func TestHealth_NoReporter(t *testing.T) {
	srv, _ := testServer(t, &mockRenderers{}, nil)

	w := serve(srv, http.MethodGet, "/api/v1/health")
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["status"] != "ok" || resp["version"] != "test" {
		t.Errorf("resp = %v", resp)
	}
}

func TestHealth_Reporter(t *testing.T) {
	health := &mockHealth{msg: mqttremote.HealthMessage{
		Status:    mqttremote.HealthDegraded,
		Reason:    "cec input down",
		Renderers: 2,
		Inputs:    map[string]bool{"lirc": true, "cec": false},
	}}
	srv, _ := testServer(t, &mockRenderers{}, health)

	w := serve(srv, http.MethodGet, "/api/v1/health")

	var resp struct {
		Status    string          `json:"status"`
		Reason    string          `json:"reason"`
		Renderers int             `json:"renderers"`
		Inputs    map[string]bool `json:"inputs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "degraded" || resp.Reason != "cec input down" || resp.Renderers != 2 {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Inputs["cec"] || !resp.Inputs["lirc"] {
		t.Errorf("inputs = %v", resp.Inputs)
	}
}

func TestRequestID(t *testing.T) {
	srv, _ := testServer(t, &mockRenderers{}, nil)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestNotFound(t *testing.T) {
	srv, _ := testServer(t, &mockRenderers{}, nil)

	w := serve(srv, http.MethodGet, "/api/v1/nonexistent")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
	var e Error
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil || e.Code != ErrCodeNotFound {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestListRenderers(t *testing.T) {
	renderers := &mockRenderers{list: []renderer.Snapshot{
		{Name: "Kitchen", Volume: 12},
		{Name: "Lounge", Muted: true, Volume: 40},
	}}
	srv, _ := testServer(t, renderers, nil)

	w := serve(srv, http.MethodGet, "/api/v1/renderers")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Renderers []renderer.Snapshot `json:"renderers"`
		Count     int                 `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 2 || resp.Renderers[1] != renderers.list[1] {
		t.Errorf("resp = %+v", resp)
	}
}

func TestListRenderers_Empty(t *testing.T) {
	srv, _ := testServer(t, &mockRenderers{}, nil)

	w := serve(srv, http.MethodGet, "/api/v1/renderers")
	if !strings.Contains(w.Body.String(), `"renderers":[]`) {
		t.Errorf("body = %s, want empty array", w.Body.String())
	}
}

func TestListRenderers_ReactorStopped(t *testing.T) {
	srv, _ := testServer(t, &mockRenderers{err: reactor.ErrStopped}, nil)

	w := serve(srv, http.MethodGet, "/api/v1/renderers")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestReactorRenderers(t *testing.T) {
	r := reactor.New()
	registry, err := renderer.NewRegistry(renderer.RegistryOptions{})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go r.Run(ctx) //nolint:errcheck // stopped by Quit below

	list, err := ReactorRenderers{Reactor: r, Registry: registry}.Renderers(ctx)
	if err != nil {
		t.Fatalf("Renderers() error = %v", err)
	}
	if len(list) != 0 {
		t.Errorf("len = %d, want 0", len(list))
	}

	r.Quit()
	if _, err := (ReactorRenderers{Reactor: r, Registry: registry}).Renderers(ctx); !errors.Is(err, reactor.ErrStopped) {
		t.Errorf("after Quit error = %v, want ErrStopped", err)
	}
}

func TestEventRoutesMounted(t *testing.T) {
	srv, events := testServer(t, &mockRenderers{}, nil)

	w := serve(srv, "NOTIFY", "/upnp/event/abc123")
	if w.Code != http.StatusOK {
		t.Errorf("NOTIFY status = %d, want 200", w.Code)
	}
	if len(events.paths) != 1 || events.paths[0] != "NOTIFY /upnp/event/abc123" {
		t.Errorf("event handler saw %v", events.paths)
	}
}

func TestStart_BindsEphemeralPort(t *testing.T) {
	srv, _ := testServer(t, &mockRenderers{}, nil)
	if srv.Port() != 0 {
		t.Errorf("Port() before Start = %d, want 0", srv.Port())
	}
	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start succeeded")
	}

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Close()

	port := srv.Port()
	if port == 0 {
		t.Fatal("Port() = 0 after Start")
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", port))
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestWebSocket_SubscribeAndReceive(t *testing.T) {
	srv, _ := testServer(t, &mockRenderers{}, nil)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Close()

	url := fmt.Sprintf("ws://127.0.0.1:%d/api/v1/ws", srv.Port())
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := WSMessage{Type: WSTypeSubscribe, ID: "1", Payload: WSSubscribePayload{Channels: []string{"renderer.state_changed"}}}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline

	var ack WSMessage
	if err := conn.ReadJSON(&ack); err != nil || ack.Type != WSTypeResponse || ack.ID != "1" {
		t.Fatalf("ack = %+v, err = %v", ack, err)
	}

	srv.Hub().Broadcast("renderer.state_changed", renderer.Snapshot{Name: "Kitchen", Volume: 9})

	var ev WSMessage
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != WSTypeEvent || ev.EventType != "renderer.state_changed" {
		t.Errorf("event = %+v", ev)
	}
}

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{"renderer.added": {}},
	}
	hub.Register(client)

	hub.Broadcast("renderer.added", renderer.Snapshot{Name: "Kitchen"})

	select {
	case msg := <-client.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.EventType != "renderer.added" {
			t.Errorf("event_type = %q, want %q", wsMsg.EventType, "renderer.added")
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{"remote.batch": {}},
	}
	hub.Register(client)

	hub.Broadcast("renderer.removed", map[string]string{"name": "Kitchen"})

	select {
	case <-client.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())

	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

// dialWS starts srv and opens a WebSocket connection to it.
func dialWS(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	url := fmt.Sprintf("ws://127.0.0.1:%d/api/v1/ws", srv.Port())
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline
	return conn
}

func TestWebSocket_UnknownChannelRejected(t *testing.T) {
	srv, _ := testServer(t, &mockRenderers{}, nil)
	conn := dialWS(t, srv)

	sub := WSMessage{Type: WSTypeSubscribe, ID: "7", Payload: WSSubscribePayload{Channels: []string{"renderer.added", "device.state"}}}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	var reply WSMessage
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if reply.Type != WSTypeError || reply.ID != "7" {
		t.Errorf("reply = %+v, want error for id 7", reply)
	}
}

func TestWebSocket_RenderersRequest(t *testing.T) {
	srv, _ := testServer(t, &mockRenderers{list: []renderer.Snapshot{{Name: "Kitchen"}, {Name: "Lounge"}}}, nil)
	conn := dialWS(t, srv)

	if err := conn.WriteJSON(WSMessage{Type: WSTypeRenderers, ID: "r1"}); err != nil {
		t.Fatalf("write request: %v", err)
	}

	var reply struct {
		Type    string `json:"type"`
		ID      string `json:"id"`
		Payload struct {
			Renderers []renderer.Snapshot `json:"renderers"`
			Count     int                 `json:"count"`
		} `json:"payload"`
	}
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if reply.Type != WSTypeResponse || reply.ID != "r1" || reply.Payload.Count != 2 {
		t.Errorf("reply = %+v", reply)
	}
}

func TestWebSocket_RenderersUnavailable(t *testing.T) {
	srv, _ := testServer(t, &mockRenderers{err: reactor.ErrStopped}, nil)
	conn := dialWS(t, srv)

	if err := conn.WriteJSON(WSMessage{Type: WSTypeRenderers, ID: "r2"}); err != nil {
		t.Fatalf("write request: %v", err)
	}

	var reply WSMessage
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if reply.Type != WSTypeError {
		t.Errorf("reply type = %q, want %q", reply.Type, WSTypeError)
	}
}

func TestHub_WildcardSubscription(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{WSChannelAll: {}},
	}
	hub.Register(client)

	hub.Broadcast("remote.batch", map[string]int{"volume": 2})
	hub.Broadcast("renderer.removed", map[string]string{"name": "Kitchen"})

	if got := len(client.send); got != 2 {
		t.Errorf("queued frames = %d, want 2", got)
	}
}
