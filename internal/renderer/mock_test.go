package renderer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// actionCall records one SendAction invocation.
type actionCall struct {
	Action string
	Args   map[string]string
}

// MockService is a scripted Service for testing.
type MockService struct {
	mu         sync.Mutex
	calls      []actionCall
	responses  map[string]map[string]string
	failures   map[string]error
	handlers   map[string]func(string)
	cancelled  int
	subscribeE error
}

func NewMockService() *MockService {
	return &MockService{
		responses: make(map[string]map[string]string),
		failures:  make(map[string]error),
		handlers:  make(map[string]func(string)),
	}
}

// Respond scripts the output arguments of action.
func (m *MockService) Respond(action string, out map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[action] = out
}

// Fail makes action return err. A nil err clears the failure.
func (m *MockService) Fail(action string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, action)
		return
	}
	m.failures[action] = err
}

func (m *MockService) SendAction(_ context.Context, action string, in []Arg, out ...string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	args := make(map[string]string, len(in))
	for _, a := range in {
		args[a.Name] = FormatValue(a.Value)
	}
	m.calls = append(m.calls, actionCall{Action: action, Args: args})

	if err := m.failures[action]; err != nil {
		return nil, err
	}
	result := make(map[string]string, len(out))
	for _, name := range out {
		v, ok := m.responses[action][name]
		if !ok {
			return nil, fmt.Errorf("mock: no %s in %s response", name, action)
		}
		result[name] = v
	}
	return result, nil
}

func (m *MockService) Subscribe(variable string, onChange func(string)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeE != nil {
		return nil, m.subscribeE
	}
	m.handlers[variable] = onChange
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.cancelled++
		delete(m.handlers, variable)
	}, nil
}

// Notify delivers a notification as the reactor would.
func (m *MockService) Notify(variable, value string) bool {
	m.mu.Lock()
	h := m.handlers[variable]
	m.mu.Unlock()
	if h == nil {
		return false
	}
	h(value)
	return true
}

// Actions returns the names of the actions sent so far.
func (m *MockService) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.calls))
	for i, c := range m.calls {
		names[i] = c.Action
	}
	return names
}

// LastCall returns the most recent call of action.
func (m *MockService) LastCall(action string) (actionCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.calls) - 1; i >= 0; i-- {
		if m.calls[i].Action == action {
			return m.calls[i], true
		}
	}
	return actionCall{}, false
}

// Reset forgets recorded calls.
func (m *MockService) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// MockDevice exposes a fixed set of services.
type MockDevice struct {
	services map[string]Service
}

// newRenderer returns a device offering both renderer services with
// answers for the seeding queries.
func newRenderer(muted bool, volume uint) (*MockDevice, *MockService, *MockService) {
	transport := NewMockService()
	rendering := NewMockService()
	rendering.Respond("GetMute", map[string]string{"CurrentMute": FormatValue(muted)})
	rendering.Respond("GetVolume", map[string]string{"CurrentVolume": FormatValue(volume)})
	rendering.Respond("SetRelativeVolume", map[string]string{"NewVolume": FormatValue(volume)})
	return &MockDevice{services: map[string]Service{
		ServiceTypeAVTransport:      transport,
		ServiceTypeRenderingControl: rendering,
	}}, transport, rendering
}

func (d *MockDevice) Service(serviceType string) (Service, bool) {
	s, ok := d.services[serviceType]
	return s, ok
}

// MockObserver records registry notifications.
type MockObserver struct {
	events []string
}

func (o *MockObserver) RendererAdded(name string, s State) {
	o.events = append(o.events, fmt.Sprintf("added %s %v/%d", name, s.Muted, s.Volume))
}

func (o *MockObserver) RendererRemoved(name string) {
	o.events = append(o.events, "removed "+name)
}

func (o *MockObserver) RendererStateChanged(name string, s State) {
	o.events = append(o.events, fmt.Sprintf("changed %s %v/%d", name, s.Muted, s.Volume))
}

// recordingLogger captures log messages.
type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+msg)
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.log("DEBUG", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.log("INFO", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.log("WARN", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.log("ERROR", msg) }

func (l *recordingLogger) contains(sub string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, sub) {
			return true
		}
	}
	return false
}

var errDevice = errors.New("device fault")
