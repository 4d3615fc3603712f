package renderer

import (
	"errors"
	"testing"
)

const lastChangeBoth = `<Event xmlns="urn:schemas-upnp-org:metadata-1-0/RCS/">
<InstanceID val="0">
<Volume channel="Master" val="24"/>
<Volume channel="LF" val="100"/>
<Mute channel="Master" val="1"/>
</InstanceID>
</Event>`

func TestLastChangeDecoder_Decode(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		instance uint32
		fields   []string
		want     map[string]string
	}{
		{
			name:     "master channel wins",
			payload:  lastChangeBoth,
			instance: 0,
			fields:   []string{"Mute", "Volume"},
			want:     map[string]string{"Mute": "1", "Volume": "24"},
		},
		{
			name: "master after other channel",
			payload: `<Event><InstanceID val="0">
<Volume channel="RF" val="80"/><Volume channel="Master" val="31"/>
</InstanceID></Event>`,
			fields: []string{"Volume"},
			want:   map[string]string{"Volume": "31"},
		},
		{
			name:    "volume only",
			payload: `<Event><InstanceID val="0"><Volume channel="Master" val="7"/></InstanceID></Event>`,
			fields:  []string{"Mute", "Volume"},
			want:    map[string]string{"Volume": "7"},
		},
		{
			name:     "other instance ignored",
			payload:  `<Event><InstanceID val="1"><Mute val="1"/></InstanceID></Event>`,
			instance: 0,
			fields:   []string{"Mute"},
			want:     map[string]string{},
		},
		{
			name:    "unrequested fields dropped",
			payload: `<Event><InstanceID val="0"><PresetNameList val="FactoryDefaults"/><Mute val="0"/></InstanceID></Event>`,
			fields:  []string{"Mute"},
			want:    map[string]string{"Mute": "0"},
		},
		{
			name:    "no field filter returns everything",
			payload: `<Event><InstanceID val="0"><Loudness channel="Master" val="1"/></InstanceID></Event>`,
			want:    map[string]string{"Loudness": "1"},
		},
		{
			name:    "nested elements are not variables",
			payload: `<Event><InstanceID val="0"><Extra><Mute val="1"/></Extra></InstanceID></Event>`,
			fields:  []string{"Mute"},
			want:    map[string]string{},
		},
	}

	d := NewLastChangeDecoder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Decode(tt.payload, tt.instance, tt.fields...)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Decode() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("Decode()[%s] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestLastChangeDecoder_Malformed(t *testing.T) {
	payloads := map[string]string{
		"truncated":  `<Event><InstanceID val="0"><Mute val="1"/>`,
		"wrong root": `<Status><InstanceID val="0"/></Status>`,
		"empty":      ``,
		"not xml":    `mute=1`,
	}

	d := NewLastChangeDecoder()
	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			if _, err := d.Decode(payload, 0, "Mute"); !errors.Is(err, ErrMalformedLastChange) {
				t.Errorf("Decode() error = %v, want ErrMalformedLastChange", err)
			}
		})
	}
}
