package remote

import (
	"fmt"
	"strings"
)

// Operation is a semantic remote-control command.
type Operation int

// Operations understood by every input.
const (
	Pause Operation = iota + 1
	Play
	Previous
	Next
	VolumeUp
	VolumeDown
	Mute
)

var operationNames = map[Operation]string{
	Pause:      "Pause",
	Play:       "Play",
	Previous:   "Previous",
	Next:       "Next",
	VolumeUp:   "VolumeUp",
	VolumeDown: "VolumeDown",
	Mute:       "Mute",
}

// String returns the canonical operation name.
func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return "Unknown"
}

// ParseOperation maps an operation name to an Operation, ignoring case.
//
// Returns:
//   - error: ErrUnknownOperation when name matches no operation
func ParseOperation(name string) (Operation, error) {
	for op, n := range operationNames {
		if strings.EqualFold(n, name) {
			return op, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
}

// Output receives the actions a batch dispatches. renderer.Registry is the
// production implementation.
type Output interface {
	Play()
	Pause()
	Previous()
	Next()
	AdjustVolume(delta int)
	ToggleMute()
}

// Recorder observes every non-empty batch before it is applied.
type Recorder interface {
	RecordBatch(source string, b Batch)
}
