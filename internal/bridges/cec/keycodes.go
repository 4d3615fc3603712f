package cec

import (
	"fmt"

	"github.com/nerrad567/r2upnpav/internal/remote"
)

// KeyCode is a CEC user control code.
type KeyCode uint32

// User control codes mapped to operations.
const (
	KeyVolumeUp   KeyCode = 0x41
	KeyVolumeDown KeyCode = 0x42
	KeyMute       KeyCode = 0x43
	KeyPlay       KeyCode = 0x44
	KeyPause      KeyCode = 0x46
	KeyForward    KeyCode = 0x4B
	KeyBackward   KeyCode = 0x4C
)

var keyOperations = map[KeyCode]remote.Operation{
	KeyPlay:       remote.Play,
	KeyPause:      remote.Pause,
	KeyForward:    remote.Next,
	KeyBackward:   remote.Previous,
	KeyVolumeUp:   remote.VolumeUp,
	KeyVolumeDown: remote.VolumeDown,
	KeyMute:       remote.Mute,
}

// Operation returns the operation bound to k.
func (k KeyCode) Operation() (remote.Operation, bool) {
	op, ok := keyOperations[k]
	return op, ok
}

func (k KeyCode) String() string {
	if op, ok := keyOperations[k]; ok {
		return fmt.Sprintf("0x%02X(%s)", uint32(k), op)
	}
	return fmt.Sprintf("0x%02X", uint32(k))
}
