package cec

import (
	"strconv"
	"strings"
	"time"
)

// opUserControlReleased is the CEC opcode sent when a remote key goes up.
const opUserControlReleased = 0x45

// trafficOpcode returns the opcode of a received libcec traffic line such
// as ">> 01:44:41". Lines sent by this device ("<< ...") and polls without
// an opcode are rejected.
func trafficOpcode(line string) (byte, bool) {
	frame, found := strings.CutPrefix(strings.TrimSpace(line), ">> ")
	if !found {
		return 0, false
	}
	parts := strings.Split(frame, ":")
	if len(parts) < 2 {
		return 0, false
	}
	op, err := strconv.ParseUint(parts[1], 16, 8)
	if err != nil {
		return 0, false
	}
	return byte(op), true
}

// isConnectionLost reports whether a libcec log line announces that the
// adapter went away.
func isConnectionLost(message string) bool {
	return strings.Contains(strings.ToLower(message), "connection lost")
}

// holdTimer pairs key-down events with the bus's "user control released"
// frame so releases carry the hold time.
type holdTimer struct {
	now   func() time.Time
	code  KeyCode
	since time.Time
	down  bool
}

func newHoldTimer() *holdTimer {
	return &holdTimer{now: time.Now}
}

// press records a key-down and returns its zero-duration KeyPress.
func (h *holdTimer) press(code KeyCode) KeyPress {
	h.code = code
	h.since = h.now()
	h.down = true
	return KeyPress{Code: code}
}

// observe inspects a traffic line. A release frame for a held key yields
// the release KeyPress. Durations are at least one nanosecond so a release
// is never mistaken for a key-down.
func (h *holdTimer) observe(line string) (KeyPress, bool) {
	opcode, ok := trafficOpcode(line)
	if !ok || opcode != opUserControlReleased || !h.down {
		return KeyPress{}, false
	}
	h.down = false
	held := h.now().Sub(h.since)
	if held <= 0 {
		held = time.Nanosecond
	}
	return KeyPress{Code: h.code, Duration: held}, true
}

// busPump turns raw libcec channel receives into Handler calls. Key presses
// arrive as key-down events; the matching release is taken from the "user
// control released" frame in the bus traffic, which times the hold. A
// "connection lost" log line or a channel closed by libcec raises
// AlertConnectionLost once.
type busPump struct {
	handler Handler
	hold    *holdTimer
	lost    bool
}

func newBusPump(h Handler) *busPump {
	return &busPump{handler: h, hold: newHoldTimer()}
}

// key handles a receive from the key press channel. It returns false once
// the channel is closed.
func (p *busPump) key(code int, ok bool) bool {
	if !ok {
		p.connectionLost()
		return false
	}
	p.handler.HandleKeyPress(p.hold.press(KeyCode(code))) //nolint:gosec // CEC codes are one byte
	return true
}

// command handles a receive from the command channel.
func (p *busPump) command(description string, ok bool) bool {
	if !ok {
		p.connectionLost()
		return false
	}
	p.handler.HandleCommand(description)
	return true
}

// message handles a receive from the log/traffic channel.
func (p *busPump) message(msg string, ok bool) bool {
	if !ok {
		p.connectionLost()
		return false
	}
	p.handler.HandleLog(msg)
	if release, ok := p.hold.observe(msg); ok {
		p.handler.HandleKeyPress(release)
	}
	if isConnectionLost(msg) {
		p.connectionLost()
	}
	return true
}

func (p *busPump) connectionLost() {
	if p.lost {
		return
	}
	p.lost = true
	p.handler.HandleAlert(AlertConnectionLost)
}
