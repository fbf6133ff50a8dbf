package tohost

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/songgao/water"
)

// NewTapSink returns a host stack sink that writes frames to tap devices.
func NewTapSink(logger *slog.Logger) *TapSink {
	if logger == nil {
		logger = slog.Default()
	}

	return &TapSink{
		logger:     logger.With("component", "tap-sink"),
		interfaces: map[string]*water.Interface{},
	}
}

// TapSink hands frames to the kernel network stack by writing them to the tap device named by each
// packet's device annotation; the kernel receives them as if they arrived on that device. Tap
// handles are opened on first use and dropped after a failed write, so a device that disappears
// and comes back is reopened.
type TapSink struct {
	logger *slog.Logger

	mu         sync.Mutex
	interfaces map[string]*water.Interface
	closed     bool

	written atomic.Uint64
	failed  atomic.Uint64
}

// Deliver implements Sink.
func (s *TapSink) Deliver(p *Packet) {
	if p.Device == nil {
		s.failed.Add(1)

		return
	}

	iface, err := s.tap(p.Device.Name)
	if err != nil {
		if s.failed.Add(1) == 1 {
			s.logger.Warn("encountered error opening tap device", "device", p.Device.Name, "err", err)
		}

		return
	}

	_, err = iface.Write(p.Data)
	if err != nil {
		if s.failed.Add(1) == 1 {
			s.logger.Warn(
				"encountered error writing frame to tap device", "device", p.Device.Name, "err", err,
			)
		}

		s.drop(p.Device.Name, iface)

		return
	}

	s.written.Add(1)
}

func (s *TapSink) tap(name string) (*water.Interface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("%w: tap sink closed", ErrSink)
	}

	if iface, ok := s.interfaces[name]; ok {
		return iface, nil
	}

	iface, err := water.New(water.Config{
		DeviceType: water.TAP,
		PlatformSpecificParams: water.PlatformSpecificParams{
			Name:    name,
			Persist: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed attaching to tap device %q: %w", ErrSink, name, err)
	}

	s.logger.Debug("attached to tap device", "device", iface.Name())

	s.interfaces[name] = iface

	return iface, nil
}

func (s *TapSink) drop(name string, iface *water.Interface) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.interfaces[name] != iface {
		return
	}

	delete(s.interfaces, name)

	err := iface.Close()
	if err != nil {
		s.logger.Debug("ignoring error closing tap device", "device", name, "err", err)
	}
}

// Written returns the number of frames written to tap devices.
func (s *TapSink) Written() uint64 {
	return s.written.Load()
}

// Failed returns the number of frames that could not be written.
func (s *TapSink) Failed() uint64 {
	return s.failed.Load()
}

// Close closes every open tap handle.
func (s *TapSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	var errs []error

	for name, iface := range s.interfaces {
		errs = append(errs, iface.Close())

		delete(s.interfaces, name)
	}

	return errors.Join(errs...)
}
