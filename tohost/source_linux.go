package tohost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sys/unix"
)

// newPacketSource returns a source reading every frame seen on the device named name and pushing it
// into stage. The device is resolved through registry now, which is what annotates the packets.
func newPacketSource(
	name string,
	registry DeviceRegistry,
	stage *Stage,
	logger *slog.Logger,
) (*packetSource, error) {
	d, err := registry.Lookup(name)
	if err != nil {
		return nil, err
	}

	return &packetSource{
		name:   name,
		device: d,
		stage:  stage,
		logger: logger.With("component", "source", "source", name, "stage", stage.Name()),
	}, nil
}

// packetSource reads frames from a packet socket bound to a single device.
type packetSource struct {
	name   string
	device *Device
	stage  *Stage
	logger *slog.Logger

	fd int
}

// Bind opens the packet socket for the source.
func (s *packetSource) Bind() error {
	s.logger.Info("begin packet source bind", "index", s.device.Index)

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, EthPAll)
	if err != nil {
		return fmt.Errorf("%w: failed opening packet socket for %q: %w", ErrBind, s.name, err)
	}

	err = unix.Bind(fd, &unix.SockaddrLinklayer{Protocol: EthPAll, Ifindex: s.device.Index})
	if err != nil {
		closeErr := unix.Close(fd)
		if closeErr != nil {
			s.logger.Warn(
				"encountered error closing file descriptor after failed bind", "err", closeErr,
			)
		}

		return fmt.Errorf("%w: failed binding packet socket to %q: %w", ErrBind, s.name, err)
	}

	// a receive timeout lets the read loop notice cancellation
	tv := unix.NsecToTimeval(sourceReadTimeout.Nanoseconds())

	err = unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv)
	if err != nil {
		_ = unix.Close(fd)

		return fmt.Errorf("%w: failed setting receive timeout for %q: %w", ErrBind, s.name, err)
	}

	s.fd = fd

	return nil
}

// Run reads frames until ctx is canceled or the socket fails; a failure is returned.
func (s *packetSource) Run(ctx context.Context) error {
	defer func() {
		err := unix.Close(s.fd)
		if err != nil {
			s.logger.Debug("ignoring error closing packet socket", "err", err)
		}

		s.fd = 0
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		data := make([]byte, ReadSize)

		readN, from, err := unix.Recvfrom(s.fd, data, 0)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}

			s.logger.Warn("encountered error receiving from interface", "err", err)

			return fmt.Errorf("reading from source %q: %w", s.name, err)
		}

		packetType, ok := packetTypeFromSockaddr(from)
		if !ok {
			// our own (or the host's) outgoing frames, not something to hand back to the host
			continue
		}

		s.stage.Push(&Packet{
			Data:      data[:readN],
			Device:    s.device,
			Type:      packetType,
			Timestamp: time.Now(),
		})
	}
}

// packetTypeFromSockaddr maps the kernel's sll_pkttype into a packet type, outgoing frames are not
// mapped.
func packetTypeFromSockaddr(from unix.Sockaddr) (PacketType, bool) {
	sll, ok := from.(*unix.SockaddrLinklayer)
	if !ok {
		return PacketTypeHost, true
	}

	switch sll.Pkttype {
	case unix.PACKET_HOST:
		return PacketTypeHost, true
	case unix.PACKET_BROADCAST:
		return PacketTypeBroadcast, true
	case unix.PACKET_MULTICAST:
		return PacketTypeMulticast, true
	case unix.PACKET_OTHERHOST:
		return PacketTypeOtherHost, true
	default:
		return PacketTypeHost, false
	}
}
