package renderer

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// masterChannel is the channel whose value wins when a variable is reported
// per channel.
const masterChannel = "Master"

// LastChangeDecoder extracts state variables from LastChange event payloads.
//
// A payload looks like:
//
//	<Event xmlns="urn:schemas-upnp-org:metadata-1-0/RCS/">
//	  <InstanceID val="0">
//	    <Volume channel="Master" val="24"/>
//	    <Mute channel="Master" val="0"/>
//	  </InstanceID>
//	</Event>
//
// One decoder is created at startup and shared by every RenderingControl. It
// holds no per-call state.
type LastChangeDecoder struct{}

// NewLastChangeDecoder creates a decoder.
func NewLastChangeDecoder() *LastChangeDecoder {
	return &LastChangeDecoder{}
}

// Decode returns the values of the requested variables for one instance.
//
// Variables the payload does not mention are absent from the result; an
// instance the payload does not mention yields an empty map. When a variable
// is reported for several channels the Master channel (or an entry without a
// channel) wins, otherwise the first entry is used.
//
// Parameters:
//   - payload: the LastChange XML document
//   - instanceID: AV instance of interest, 0 for renderers with one instance
//   - names: variables to extract; none means every variable
//
// Returns:
//   - map[string]string: raw "val" attributes keyed by variable name
//   - error: ErrMalformedLastChange if the payload is not well-formed
func (d *LastChangeDecoder) Decode(payload string, instanceID uint32, names ...string) (map[string]string, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	values := make(map[string]string)
	preferred := make(map[string]bool)
	target := strconv.FormatUint(uint64(instanceID), 10)

	dec := xml.NewDecoder(strings.NewReader(payload))
	depth := 0
	instanceDepth := -1
	sawEvent := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedLastChange, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch {
			case depth == 1:
				if t.Name.Local != "Event" {
					return nil, fmt.Errorf("%w: root element %q", ErrMalformedLastChange, t.Name.Local)
				}
				sawEvent = true
			case depth == 2 && t.Name.Local == "InstanceID":
				if strings.TrimSpace(attr(t, "val")) == target {
					instanceDepth = depth
				}
			case instanceDepth > 0 && depth == instanceDepth+1:
				name := t.Name.Local
				if len(want) > 0 && !want[name] {
					continue
				}
				val, ok := attrOK(t, "val")
				if !ok {
					continue
				}
				channel := attr(t, "channel")
				isPreferred := channel == "" || channel == masterChannel
				if _, seen := values[name]; !seen || (isPreferred && !preferred[name]) {
					values[name] = val
					preferred[name] = isPreferred
				}
			}
		case xml.EndElement:
			if depth == instanceDepth {
				instanceDepth = -1
			}
			depth--
		}
	}

	if !sawEvent {
		return nil, fmt.Errorf("%w: no Event element", ErrMalformedLastChange)
	}
	return values, nil
}

func attr(e xml.StartElement, name string) string {
	v, _ := attrOK(e, name)
	return v
}

func attrOK(e xml.StartElement, name string) (string, bool) {
	for _, a := range e.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}
