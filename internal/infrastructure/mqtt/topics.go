package mqtt

import "strings"

// DefaultTopicPrefix roots every r2upnpav topic when the config leaves
// mqtt.topic_prefix empty.
const DefaultTopicPrefix = "r2upnpav"

// Topics builds r2upnpav MQTT topics under a configurable prefix.
//
//	topics := mqtt.NewTopics("r2upnpav")
//	topics.Renderer("Kitchen - Sonos One")
//	// Returns: "r2upnpav/renderer/Kitchen - Sonos One"
type Topics struct {
	prefix string
}

// NewTopics returns builders rooted at prefix. Trailing slashes are dropped.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

func (t Topics) root() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// Status is the retained online/offline topic, also used for the LWT.
//
// Example: r2upnpav/status
func (t Topics) Status() string {
	return t.root() + "/status"
}

// Health is the retained health report topic.
//
// Example: r2upnpav/health
func (t Topics) Health() string {
	return t.root() + "/health"
}

// Command receives remote operations by name.
//
// Example: r2upnpav/command
func (t Topics) Command() string {
	return t.root() + "/command"
}

// Renderer is the retained state topic of one renderer. MQTT wildcard
// characters and slashes in the friendly name are replaced by '_'.
//
// Example: r2upnpav/renderer/Kitchen - Sonos One
func (t Topics) Renderer(name string) string {
	return t.root() + "/renderer/" + sanitizeLevel(name)
}

// sanitizeLevel makes name usable as a single topic level.
func sanitizeLevel(name string) string {
	if name == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#', 0:
			return '_'
		}
		return r
	}, name)
}
