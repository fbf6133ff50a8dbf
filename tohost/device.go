package tohost

import (
	"bytes"
	"fmt"
	"net"
)

// Device is a snapshot of an operating system network device as seen by a DeviceRegistry.
type Device struct {
	Name         string
	Alias        string
	Index        int
	HardwareAddr net.HardwareAddr
	MTU          int
	Up           bool
}

func (d *Device) String() string {
	if d == nil {
		return "<nil>"
	}

	return fmt.Sprintf("%s(%d)", d.Name, d.Index)
}

// parseHardwareAddr returns the hardware address s denotes, if s is in hardware address form
// rather than a device name.
func parseHardwareAddr(s string) (net.HardwareAddr, bool) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return nil, false
	}

	return hw, true
}

// matchesNameOrAddr reports whether d is identified by nameOrAddr: its name, alias, or
// hardware address.
func (d *Device) matchesNameOrAddr(nameOrAddr string) bool {
	if d == nil || nameOrAddr == "" {
		return false
	}

	if d.Name == nameOrAddr || (d.Alias != "" && d.Alias == nameOrAddr) {
		return true
	}

	hw, ok := parseHardwareAddr(nameOrAddr)
	if !ok {
		return false
	}

	return len(d.HardwareAddr) != 0 && bytes.Equal(d.HardwareAddr, hw)
}

// sameDevice reports whether a and b refer to the same device, preferring the interface index when
// both carry one since names can be reused.
func sameDevice(a, b *Device) bool {
	if a == nil || b == nil {
		return false
	}

	if a.Index != 0 && b.Index != 0 {
		return a.Index == b.Index
	}

	return a.Name == b.Name
}
