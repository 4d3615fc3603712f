package cec

import (
	"fmt"
	"slices"
	"testing"
	"time"
)

// MockHandler records bus callbacks in order.
type MockHandler struct {
	calls []string
	keys  []KeyPress
}

func (m *MockHandler) HandleKeyPress(k KeyPress) {
	m.keys = append(m.keys, k)
	m.calls = append(m.calls, fmt.Sprintf("key %#x", byte(k.Code)))
}
func (m *MockHandler) HandleCommand(d string) { m.calls = append(m.calls, "command "+d) }
func (m *MockHandler) HandleLog(msg string)   { m.calls = append(m.calls, "log "+msg) }
func (m *MockHandler) HandleAlert(a Alert)    { m.calls = append(m.calls, "alert "+a.String()) }

func TestTrafficOpcode(t *testing.T) {
	tests := []struct {
		line   string
		wantOp byte
		wantOK bool
	}{
		{">> 01:44:41", 0x44, true},
		{">> 0f:45", 0x45, true},
		{"  >> 40:44:00  ", 0x44, true},
		{"<< 10:44:41", 0, false},
		{">> 01", 0, false},
		{">> 01:zz:41", 0, false},
		{"opening a connection to the CEC adapter", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			op, ok := trafficOpcode(tt.line)
			if op != tt.wantOp || ok != tt.wantOK {
				t.Errorf("trafficOpcode(%q) = %#x, %v; want %#x, %v", tt.line, op, ok, tt.wantOp, tt.wantOK)
			}
		})
	}
}

func TestIsConnectionLost(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{"connection lost", true},
		{"CEC adapter: Connection Lost - trying to reconnect", true},
		{">> 01:44:41", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := isConnectionLost(tt.message); got != tt.want {
			t.Errorf("isConnectionLost(%q) = %v, want %v", tt.message, got, tt.want)
		}
	}
}

func TestHoldTimer(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h := newHoldTimer()
	h.now = func() time.Time { return clock }

	if k, ok := h.observe(">> 01:45"); ok {
		t.Errorf("release without press = %+v", k)
	}

	if k := h.press(KeyVolumeUp); k.Code != KeyVolumeUp || k.Duration != 0 {
		t.Errorf("press() = %+v, want zero-duration key-down", k)
	}

	clock = clock.Add(300 * time.Millisecond)
	if _, ok := h.observe(">> 01:44:41"); ok {
		t.Error("pressed frame reported as release")
	}
	k, ok := h.observe(">> 01:45")
	if !ok || k.Code != KeyVolumeUp || k.Duration != 300*time.Millisecond {
		t.Errorf("observe(release) = %+v, %v; want VolumeUp held 300ms", k, ok)
	}

	if _, ok := h.observe(">> 01:45"); ok {
		t.Error("second release reported")
	}
}

func TestHoldTimer_InstantRelease(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h := newHoldTimer()
	h.now = func() time.Time { return clock }

	h.press(KeyMute)
	k, ok := h.observe(">> 01:45")
	if !ok || k.Duration == 0 {
		t.Errorf("observe() = %+v, %v; want non-zero duration", k, ok)
	}
}

func TestBusPump_KeyHold(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h := &MockHandler{}
	p := newBusPump(h)
	p.hold.now = func() time.Time { return clock }

	p.key(int(KeyPlay), true)
	clock = clock.Add(time.Second)
	p.message(">> 01:45", true)

	if len(h.keys) != 2 {
		t.Fatalf("keys = %+v, want press and release", h.keys)
	}
	if h.keys[0].Duration != 0 || h.keys[1].Code != KeyPlay || h.keys[1].Duration != time.Second {
		t.Errorf("keys = %+v", h.keys)
	}
}

func TestBusPump_ConnectionLost(t *testing.T) {
	tests := []struct {
		name string
		feed func(p *busPump) bool
	}{
		{"log line", func(p *busPump) bool { return p.message("connection lost", true) }},
		{"keys closed", func(p *busPump) bool { return p.key(0, false) }},
		{"commands closed", func(p *busPump) bool { return p.command("", false) }},
		{"messages closed", func(p *busPump) bool { return p.message("", false) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &MockHandler{}
			p := newBusPump(h)

			tt.feed(p)
			// Further closures do not repeat the alert.
			p.key(0, false)
			p.message("", false)

			alerts := 0
			for _, c := range h.calls {
				if c == "alert connection lost" {
					alerts++
				}
			}
			if alerts != 1 {
				t.Errorf("calls = %v, want one connection lost alert", h.calls)
			}
		})
	}
}

func TestBusPump_Forwarding(t *testing.T) {
	h := &MockHandler{}
	p := newBusPump(h)

	if !p.command("standby", true) || !p.message("waiting for input", true) || !p.key(int(KeyMute), true) {
		t.Fatal("open channel reported closed")
	}

	want := []string{"command standby", "log waiting for input", "key 0x43"}
	if !slices.Equal(h.calls, want) {
		t.Errorf("calls = %v, want %v", h.calls, want)
	}
}
