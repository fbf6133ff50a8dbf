//go:build !linux

package tohost

import (
	"context"
	"fmt"
	"log/slog"
)

// NewNetlinkRegistry returns a registry that cannot start, netlink is linux only.
func NewNetlinkRegistry(logger *slog.Logger) *NetlinkRegistry {
	return &NetlinkRegistry{devices: NewMemoryRegistry(logger)}
}

// NetlinkRegistry is unsupported on this platform; it only ever knows devices added to it in
// memory, which is to say none.
type NetlinkRegistry struct {
	devices *MemoryRegistry
}

// Start always fails with ErrUnsupported.
func (r *NetlinkRegistry) Start(_ context.Context, _ chan<- error) error {
	return fmt.Errorf("%w: device registry requires netlink", ErrUnsupported)
}

// Lookup implements DeviceRegistry.
func (r *NetlinkRegistry) Lookup(nameOrAddr string) (*Device, error) {
	return r.devices.Lookup(nameOrAddr)
}

// Subscribe implements DeviceRegistry.
func (r *NetlinkRegistry) Subscribe(l DeviceListener) func() {
	return r.devices.Subscribe(l)
}
