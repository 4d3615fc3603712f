package mqttremote

import "errors"

var (
	// ErrNoSubscriber is returned by Start when no MQTT client was given.
	ErrNoSubscriber = errors.New("mqttremote: no subscriber")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("mqttremote: already started")

	// ErrPayloadTooLarge is returned for command payloads over maxCommandSize.
	ErrPayloadTooLarge = errors.New("mqttremote: payload too large")
)
