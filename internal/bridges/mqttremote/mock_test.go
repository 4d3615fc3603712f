package mqttremote

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/r2upnpav/internal/infrastructure/mqtt"
	"github.com/nerrad567/r2upnpav/internal/remote"
)

// MockOutput records dispatched actions in order.
type MockOutput struct {
	mu    sync.Mutex
	calls []string
}

func (m *MockOutput) record(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, s)
}

func (m *MockOutput) Play()                  { m.record("Play") }
func (m *MockOutput) Pause()                 { m.record("Pause") }
func (m *MockOutput) Previous()              { m.record("Previous") }
func (m *MockOutput) Next()                  { m.record("Next") }
func (m *MockOutput) AdjustVolume(delta int) { m.record(fmt.Sprintf("AdjustVolume(%d)", delta)) }
func (m *MockOutput) ToggleMute()            { m.record("ToggleMute") }

func (m *MockOutput) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// MockRecorder records batch sources.
type MockRecorder struct {
	mu      sync.Mutex
	sources []string
	batches []remote.Batch
}

func (m *MockRecorder) RecordBatch(source string, b remote.Batch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources = append(m.sources, source)
	m.batches = append(m.batches, b)
}

// MockSubscriber captures the command handler.
type MockSubscriber struct {
	mu           sync.Mutex
	handlers     map[string]mqtt.MessageHandler
	qos          byte
	err          error
	unsubscribed []string
}

func NewMockSubscriber() *MockSubscriber {
	return &MockSubscriber{handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *MockSubscriber) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.handlers[topic] = handler
	m.qos = qos
	return nil
}

func (m *MockSubscriber) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	m.unsubscribed = append(m.unsubscribed, topic)
	return nil
}

// Deliver invokes the handler for topic as paho would.
func (m *MockSubscriber) Deliver(topic, payload string) error {
	m.mu.Lock()
	h := m.handlers[topic]
	m.mu.Unlock()
	if h == nil {
		return fmt.Errorf("no handler for %s", topic)
	}
	return h(topic, []byte(payload))
}

// MockPublisher implements HealthPublisher.
type MockPublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
}

type publishedMessage struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

func (m *MockPublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, publishedMessage{topic: topic, payload: payload, qos: qos, retained: retained})
	return nil
}

func (m *MockPublisher) Messages() []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]publishedMessage(nil), m.messages...)
}

// MockChecker implements HealthChecker.
type MockChecker struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (m *MockChecker) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.err
}

func (m *MockChecker) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockChecker) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
