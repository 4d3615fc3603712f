package upnp

import (
	"context"
	"errors"
	"net"
	"slices"
	"testing"

	"github.com/huin/goupnp"
)

// scripted returns a SearchFunc that answers each call with the next
// scripted result set.
func scripted(results ...[]goupnp.MaybeRootDevice) SearchFunc {
	i := 0
	return func(context.Context, string) ([]goupnp.MaybeRootDevice, error) {
		if i >= len(results) {
			return nil, nil
		}
		r := results[i]
		i++
		return r, nil
	}
}

func found(usn, name, local string) goupnp.MaybeRootDevice {
	return goupnp.MaybeRootDevice{
		USN:       usn,
		Root:      &goupnp.RootDevice{Device: goupnp.Device{FriendlyName: name}},
		LocalAddr: net.ParseIP(local),
	}
}

func newTestControlPoint(t *testing.T, missed int, search SearchFunc) (*ControlPoint, *MockTarget) {
	t.Helper()
	target := &MockTarget{}
	cp, err := NewControlPoint(DiscoveryConfig{MissedScans: missed}, &syncPoster{}, target, nil)
	if err != nil {
		t.Fatalf("NewControlPoint() error = %v", err)
	}
	cp.SetSearchFunc(search)
	return cp, target
}

func TestControlPoint_AppearOnce(t *testing.T) {
	den := found("uuid:den", "Den - Sonos One", "10.0.0.2")
	cp, target := newTestControlPoint(t, 2, scripted(
		[]goupnp.MaybeRootDevice{den, den},
		[]goupnp.MaybeRootDevice{den},
	))

	cp.scan(context.Background())
	cp.scan(context.Background())

	if got := target.Events(); !slices.Equal(got, []string{"appeared Den - Sonos One"}) {
		t.Errorf("events = %v", got)
	}
	if dev, ok := target.devices["Den - Sonos One"].(*Device); !ok || dev.USN() != "uuid:den" {
		t.Errorf("device = %#v, want *Device for uuid:den", target.devices["Den - Sonos One"])
	}
}

func TestControlPoint_MissedScansEvict(t *testing.T) {
	den := found("uuid:den", "Den", "10.0.0.2")
	cp, target := newTestControlPoint(t, 2, scripted(
		[]goupnp.MaybeRootDevice{den},
		nil,
		[]goupnp.MaybeRootDevice{den},
		nil,
		nil,
		[]goupnp.MaybeRootDevice{den},
	))

	for range 6 {
		cp.scan(context.Background())
	}

	want := []string{"appeared Den", "unavailable Den", "appeared Den"}
	if got := target.Events(); !slices.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestControlPoint_SearchErrorKeepsDevices(t *testing.T) {
	den := found("uuid:den", "Den", "10.0.0.2")
	calls := 0
	cp, target := newTestControlPoint(t, 1, func(context.Context, string) ([]goupnp.MaybeRootDevice, error) {
		calls++
		if calls == 1 {
			return []goupnp.MaybeRootDevice{den}, nil
		}
		return nil, errors.New("network is unreachable")
	})

	cp.scan(context.Background())
	cp.scan(context.Background())
	cp.scan(context.Background())

	if got := target.Events(); !slices.Equal(got, []string{"appeared Den"}) {
		t.Errorf("events = %v, want no eviction", got)
	}
}

func TestControlPoint_DescriptionErrorCountsAsAlive(t *testing.T) {
	den := found("uuid:den", "Den", "10.0.0.2")
	broken := goupnp.MaybeRootDevice{USN: "uuid:den", LocalAddr: net.ParseIP("10.0.0.2"), Err: errors.New("timeout")}
	stranger := goupnp.MaybeRootDevice{USN: "uuid:new", Err: errors.New("404")}
	cp, target := newTestControlPoint(t, 1, scripted(
		[]goupnp.MaybeRootDevice{den},
		[]goupnp.MaybeRootDevice{broken, stranger},
	))

	cp.scan(context.Background())
	cp.scan(context.Background())

	if got := target.Events(); !slices.Equal(got, []string{"appeared Den"}) {
		t.Errorf("events = %v", got)
	}
}

func TestControlPoint_InterfaceFilter(t *testing.T) {
	cp, target := newTestControlPoint(t, 1, scripted([]goupnp.MaybeRootDevice{
		found("uuid:a", "On LAN", "192.168.1.10"),
		found("uuid:b", "On VPN", "10.8.0.3"),
	}))
	cp.addrs = []net.IP{net.ParseIP("192.168.1.10")}

	cp.scan(context.Background())

	if got := target.Events(); !slices.Equal(got, []string{"appeared On LAN"}) {
		t.Errorf("events = %v", got)
	}
}

func TestNewControlPoint_UnknownInterface(t *testing.T) {
	_, err := NewControlPoint(DiscoveryConfig{Interface: "does-not-exist0"}, &syncPoster{}, &MockTarget{}, nil)
	if !errors.Is(err, ErrInterfaceNotFound) {
		t.Errorf("error = %v, want ErrInterfaceNotFound", err)
	}
}

func TestControlPoint_StartStop(t *testing.T) {
	searched := make(chan struct{}, 1)
	cp, _ := newTestControlPoint(t, 1, func(context.Context, string) ([]goupnp.MaybeRootDevice, error) {
		select {
		case searched <- struct{}{}:
		default:
		}
		return nil, nil
	})

	if err := cp.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := cp.Start(context.Background()); !errors.Is(err, ErrDiscoveryRunning) {
		t.Errorf("second Start() error = %v, want ErrDiscoveryRunning", err)
	}
	<-searched
	cp.Stop()
}
