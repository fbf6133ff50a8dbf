package tohost

import (
	"bytes"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
)

// BindingState is the state of a stage's association with its device.
type BindingState uint32

const (
	// Unbound means no device is bound, packets are dropped.
	Unbound BindingState = iota
	// Bound means the device is bound and packets are delivered.
	Bound
	// Unbinding means the device is going away; the device reference is already cleared.
	Unbinding
)

func (s BindingState) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Bound:
		return "bound"
	case Unbinding:
		return "unbinding"
	default:
		return "unknown"
	}
}

// Binding is the read only view of a stage's device binding. It is all a sibling delivery
// component gets to see of a stage.
type Binding interface {
	// Device returns the bound device, or nil when not bound.
	Device() *Device
	// State returns the current binding state.
	State() BindingState
}

var _ Binding = (*deviceBinding)(nil)

func newDeviceBinding(name string, notifier *linkStateNotifier) *deviceBinding {
	b := &deviceBinding{
		name:     name,
		notifier: notifier,
	}

	b.hwAddr, _ = parseHardwareAddr(name)

	return b
}

// deviceBinding holds the late resolved device for a stage. The device pointer is swapped
// atomically so packet pushes never take a lock; transitions are serialized by mu, and the up/down
// calls run under mu so they are observed in the same order as the transitions.
type deviceBinding struct {
	name   string
	hwAddr net.HardwareAddr

	mu     sync.Mutex
	closed bool
	state  atomic.Uint32
	device atomic.Pointer[Device]

	notifier *linkStateNotifier
}

func (b *deviceBinding) Device() *Device {
	return b.device.Load()
}

func (b *deviceBinding) State() BindingState {
	return BindingState(b.state.Load())
}

func (b *deviceBinding) matches(d *Device) bool {
	if d == nil {
		return false
	}

	if b.hwAddr != nil {
		return bytes.Equal(d.HardwareAddr, b.hwAddr)
	}

	return d.Name == b.name || (d.Alias != "" && d.Alias == b.name)
}

// resolve looks up the configured device in registry and binds it when found. The lookup error is
// returned as is so the caller can decide whether absence is fatal.
func (b *deviceBinding) resolve(registry DeviceRegistry) error {
	d, err := registry.Lookup(b.name)
	if err != nil {
		return err
	}

	if !b.matches(d) {
		return fmt.Errorf("%w: lookup of %q returned unrelated device %s", ErrBind, b.name, d)
	}

	return b.bind(d)
}

// bind transitions Unbound->Bound if d is the configured device. Binding while already bound only
// refreshes the device snapshot. The bound device arriving under a name that no longer matches
// (a rename) unbinds it. A closed binding never binds again.
func (b *deviceBinding) bind(d *Device) error {
	if d == nil {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	bound := b.State() == Bound

	if !b.matches(d) {
		if bound && sameDevice(b.device.Load(), d) {
			return b.releaseLocked()
		}

		return nil
	}

	if bound {
		if sameDevice(b.device.Load(), d) {
			b.device.Store(d)
		}

		return nil
	}

	b.device.Store(d)
	b.state.Store(uint32(Bound))

	return b.notifier.linkUp(d)
}

// unbind transitions Bound->Unbinding->Unbound if d is the bound device. A nil d releases whatever
// is bound and closes the binding for good.
func (b *deviceBinding) unbind(d *Device) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if d == nil {
		b.closed = true
	}

	if b.State() != Bound {
		return nil
	}

	if d != nil && !sameDevice(b.device.Load(), d) {
		return nil
	}

	return b.releaseLocked()
}

// releaseLocked unbinds the current device; b.mu must be held and the binding Bound.
func (b *deviceBinding) releaseLocked() error {
	current := b.device.Load()

	b.state.Store(uint32(Unbinding))
	b.device.Store(nil)
	b.state.Store(uint32(Unbound))

	return b.notifier.linkDown(current)
}
