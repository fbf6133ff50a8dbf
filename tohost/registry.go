package tohost

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// DeviceListener is notified by a DeviceRegistry when devices appear or disappear. Errors returned
// by a listener are returned to (or logged by) whatever triggered the notification.
type DeviceListener interface {
	DeviceArrived(d *Device) error
	DeviceDeparted(d *Device) error
}

// DeviceRegistry looks up operating system network devices and notifies interested listeners when
// devices register or unregister.
type DeviceRegistry interface {
	// Lookup returns the device identified by nameOrAddr, a name or alias or hardware address.
	Lookup(nameOrAddr string) (*Device, error)
	// Subscribe registers l for arrival/departure notifications until the returned func is called.
	Subscribe(l DeviceListener) (unsubscribe func())
}

// NewMemoryRegistry returns an empty MemoryRegistry.
func NewMemoryRegistry(logger *slog.Logger) *MemoryRegistry {
	if logger == nil {
		logger = slog.Default()
	}

	return &MemoryRegistry{
		logger:    logger.With("component", "registry"),
		devices:   map[string]*Device{},
		listeners: map[uint64]DeviceListener{},
	}
}

// MemoryRegistry is a DeviceRegistry that holds devices in memory and fans out add/remove events to
// its listeners. The netlink registry feeds one of these with kernel link updates.
type MemoryRegistry struct {
	logger *slog.Logger

	mu        sync.RWMutex
	devices   map[string]*Device
	listeners map[uint64]DeviceListener
	nextID    uint64
}

// Lookup implements DeviceRegistry.
func (r *MemoryRegistry) Lookup(nameOrAddr string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if d, ok := r.devices[nameOrAddr]; ok {
		return d, nil
	}

	for _, d := range r.devices {
		if d.matchesNameOrAddr(nameOrAddr) {
			return d, nil
		}
	}

	return nil, fmt.Errorf("%w: device %q not found", ErrBind, nameOrAddr)
}

// Subscribe implements DeviceRegistry.
func (r *MemoryRegistry) Subscribe(l DeviceListener) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++

	r.listeners[id] = l

	var once sync.Once

	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()

			delete(r.listeners, id)
		})
	}
}

// Devices returns the currently registered devices sorted by name.
func (r *MemoryRegistry) Devices() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Device, 0, len(r.devices))

	for _, d := range r.devices {
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// Add registers (or updates) d and notifies every listener that it arrived. A device with the same
// index registered under another name was renamed: the old entry is dropped and listeners are told
// it departed before d arrives. Listener errors are joined and returned, every listener is notified
// regardless.
func (r *MemoryRegistry) Add(d *Device) error {
	r.mu.Lock()

	var renamed *Device

	if d.Index != 0 {
		for name, existing := range r.devices {
			if existing.Index == d.Index && name != d.Name {
				renamed = existing

				delete(r.devices, name)

				break
			}
		}
	}

	r.devices[d.Name] = d
	listeners := r.snapshotListeners()
	r.mu.Unlock()

	var errs []error

	if renamed != nil {
		r.logger.Debug("device renamed", "from", renamed.Name, "to", d.Name, "index", d.Index)

		errs = append(errs, notifyDeparted(listeners, renamed)...)
	}

	r.logger.Debug("device arrived", "device", d.Name, "index", d.Index, "listeners", len(listeners))

	for _, l := range listeners {
		err := l.DeviceArrived(d)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Remove unregisters the device named name and notifies every listener that it departed. Removing
// an unknown device is a no-op.
func (r *MemoryRegistry) Remove(name string) error {
	r.mu.Lock()

	d, ok := r.devices[name]
	if !ok {
		r.mu.Unlock()

		return nil
	}

	delete(r.devices, name)
	listeners := r.snapshotListeners()
	r.mu.Unlock()

	r.logger.Debug("device departed", "device", d.Name, "index", d.Index, "listeners", len(listeners))

	return errors.Join(notifyDeparted(listeners, d)...)
}

func notifyDeparted(listeners []DeviceListener, d *Device) []error {
	var errs []error

	for _, l := range listeners {
		err := l.DeviceDeparted(d)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}

// snapshotListeners returns listeners in subscription order; r.mu must be held.
func (r *MemoryRegistry) snapshotListeners() []DeviceListener {
	ids := make([]uint64, 0, len(r.listeners))

	for id := range r.listeners {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]DeviceListener, len(ids))

	for idx, id := range ids {
		out[idx] = r.listeners[id]
	}

	return out
}
