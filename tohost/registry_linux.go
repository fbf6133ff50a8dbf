package tohost

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// NewNetlinkRegistry returns a registry tracking kernel network devices over netlink. It reports
// nothing until Start is called.
func NewNetlinkRegistry(logger *slog.Logger) *NetlinkRegistry {
	if logger == nil {
		logger = slog.Default()
	}

	return &NetlinkRegistry{
		logger:  logger.With("component", "netlink-registry"),
		devices: NewMemoryRegistry(logger),
	}
}

// NetlinkRegistry is a DeviceRegistry fed by kernel link updates. Devices are announced when a link
// appears (or changes) and withdrawn when it is deleted.
type NetlinkRegistry struct {
	logger  *slog.Logger
	devices *MemoryRegistry
}

var _ DeviceRegistry = (*NetlinkRegistry)(nil)

// Start subscribes to link updates, listing existing links first, and processes updates until ctx
// is canceled. Subscription errors are sent to errChan.
func (r *NetlinkRegistry) Start(ctx context.Context, errChan chan<- error) error {
	updates := make(chan netlink.LinkUpdate)
	done := make(chan struct{})

	err := netlink.LinkSubscribeWithOptions(updates, done, netlink.LinkSubscribeOptions{
		ListExisting: true,
		ErrorCallback: func(err error) {
			r.logger.Warn("encountered error on link subscription", "err", err)

			select {
			case errChan <- err:
			default:
			}
		},
	})
	if err != nil {
		close(done)

		return fmt.Errorf("%w: failed subscribing to link updates: %w", ErrBind, err)
	}

	go func() {
		defer func() {
			close(done)

			// the subscription goroutine closes updates once it sees done, drain until then so it
			// is never stuck on a send
			for range updates { //nolint: revive
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}

				r.handleUpdate(update)
			}
		}
	}()

	return nil
}

func (r *NetlinkRegistry) handleUpdate(update netlink.LinkUpdate) {
	d := deviceFromLink(update.Link)

	var err error

	switch update.Header.Type {
	case unix.RTM_NEWLINK:
		err = r.devices.Add(d)
	case unix.RTM_DELLINK:
		err = r.devices.Remove(d.Name)
	default:
		return
	}

	if err != nil {
		r.logger.Warn(
			"encountered error notifying device listeners", "device", d.Name, "err", err,
		)
	}
}

// Lookup implements DeviceRegistry. Devices already seen on the subscription are returned from
// memory, otherwise the kernel is asked by name, then by alias, then by hardware address.
func (r *NetlinkRegistry) Lookup(nameOrAddr string) (*Device, error) {
	d, err := r.devices.Lookup(nameOrAddr)
	if err == nil {
		return d, nil
	}

	link, err := linkByNameOrAlias(nameOrAddr)
	if err != nil {
		return nil, err
	}

	return deviceFromLink(link), nil
}

// Subscribe implements DeviceRegistry.
func (r *NetlinkRegistry) Subscribe(l DeviceListener) func() {
	return r.devices.Subscribe(l)
}

func linkByNameOrAlias(nameOrAddr string) (netlink.Link, error) {
	link, err := netlink.LinkByName(nameOrAddr)
	if err == nil {
		// we found the link by name, no need to faff about w/ checking aliases
		return link, nil
	}

	link, err = netlink.LinkByAlias(nameOrAddr)
	if err == nil {
		return link, nil
	}

	hw, ok := parseHardwareAddr(nameOrAddr)
	if ok {
		var links []netlink.Link

		links, err = netlink.LinkList()
		if err != nil {
			return nil, fmt.Errorf("%w: failed listing links: %w", ErrBind, err)
		}

		for _, l := range links {
			if bytes.Equal(l.Attrs().HardwareAddr, hw) {
				return l, nil
			}
		}
	}

	return nil, fmt.Errorf(
		"%w: could not find device %q as name, alias, or hardware address",
		ErrBind,
		nameOrAddr,
	)
}

func deviceFromLink(link netlink.Link) *Device {
	attrs := link.Attrs()

	return &Device{
		Name:         attrs.Name,
		Alias:        attrs.Alias,
		Index:        attrs.Index,
		HardwareAddr: append(net.HardwareAddr{}, attrs.HardwareAddr...),
		MTU:          attrs.MTU,
		Up:           attrs.Flags&net.FlagUp != 0,
	}
}
