package upnp

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/nerrad567/r2upnpav/internal/renderer"
)

// syncPoster runs posted functions immediately.
type syncPoster struct {
	mu    sync.Mutex
	count int
}

func (p *syncPoster) Post(fn func()) error {
	p.mu.Lock()
	p.count++
	p.mu.Unlock()
	fn()
	return nil
}

// MockTarget records availability events.
type MockTarget struct {
	mu      sync.Mutex
	events  []string
	devices map[string]renderer.Device
}

func (m *MockTarget) DeviceAppeared(name string, dev renderer.Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, "appeared "+name)
	if m.devices == nil {
		m.devices = make(map[string]renderer.Device)
	}
	m.devices[name] = dev
}

func (m *MockTarget) DeviceUnavailable(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, "unavailable "+name)
}

func (m *MockTarget) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

// genaRequest is one request received by fakeDevice.
type genaRequest struct {
	Method   string
	SID      string
	Callback string
	NT       string
	Timeout  string
}

// fakeDevice answers GENA requests like a renderer's event endpoint.
type fakeDevice struct {
	mu          sync.Mutex
	requests    []genaRequest
	nextSID     int
	renewStatus int
	timeout     string
	unsubscribe chan string
}

func newFakeDevice(t *testing.T) (*fakeDevice, *url.URL) {
	t.Helper()
	d := &fakeDevice{timeout: "Second-300", unsubscribe: make(chan string, 8)}
	srv := httptest.NewServer(d)
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL + "/MediaRenderer/RenderingControl/Event")
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}
	return d, u
}

func (d *fakeDevice) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	req := genaRequest{
		Method:   r.Method,
		SID:      r.Header.Get("SID"),
		Callback: r.Header.Get("CALLBACK"),
		NT:       r.Header.Get("NT"),
		Timeout:  r.Header.Get("TIMEOUT"),
	}
	d.requests = append(d.requests, req)
	renewStatus := d.renewStatus
	d.mu.Unlock()

	switch {
	case r.Method == "SUBSCRIBE" && req.SID == "":
		d.mu.Lock()
		d.nextSID++
		sid := fmt.Sprintf("uuid:sub-%d", d.nextSID)
		d.mu.Unlock()
		w.Header().Set("SID", sid)
		w.Header().Set("TIMEOUT", d.timeout)
	case r.Method == "SUBSCRIBE":
		if renewStatus != 0 {
			w.WriteHeader(renewStatus)
			return
		}
		w.Header().Set("SID", req.SID)
		w.Header().Set("TIMEOUT", d.timeout)
	case r.Method == "UNSUBSCRIBE":
		d.unsubscribe <- req.SID
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (d *fakeDevice) Requests() []genaRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]genaRequest(nil), d.requests...)
}
