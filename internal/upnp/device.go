package upnp

import (
	"net"

	"github.com/huin/goupnp"

	"github.com/nerrad567/r2upnpav/internal/renderer"
)

// Device is a discovered root device. It implements renderer.Device.
type Device struct {
	usn       string
	root      *goupnp.RootDevice
	localAddr net.IP
	events    *EventServer
}

var _ renderer.Device = (*Device)(nil)

// NewDevice wraps a discovered root device.
func NewDevice(usn string, root *goupnp.RootDevice, localAddr net.IP, events *EventServer) *Device {
	return &Device{usn: usn, root: root, localAddr: localAddr, events: events}
}

// USN returns the unique service name the device answered with.
func (d *Device) USN() string {
	return d.usn
}

// FriendlyName returns the device's friendly name.
func (d *Device) FriendlyName() string {
	return d.root.Device.FriendlyName
}

// Service returns the first service of serviceType in the device tree.
func (d *Device) Service(serviceType string) (renderer.Service, bool) {
	found := d.root.Device.FindService(serviceType)
	if len(found) == 0 {
		return nil, false
	}
	return NewService(found[0], d.localAddr, d.events), true
}
