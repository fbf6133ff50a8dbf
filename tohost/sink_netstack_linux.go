package tohost

import (
	"fmt"
	"log/slog"
	"net/netip"
	"sync/atomic"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"gvisor.dev/gvisor/pkg/buffer"
	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/header"
	"gvisor.dev/gvisor/pkg/tcpip/link/channel"
	"gvisor.dev/gvisor/pkg/tcpip/network/arp"
	"gvisor.dev/gvisor/pkg/tcpip/network/ipv4"
	"gvisor.dev/gvisor/pkg/tcpip/network/ipv6"
	"gvisor.dev/gvisor/pkg/tcpip/stack"
)

const netstackNICID tcpip.NICID = 1

// NewNetstackSink returns a host stack sink backed by an in process userspace network stack with a
// single NIC addressed addr. A zero addr leaves the NIC unaddressed; packets are still received
// (and counted) by the NIC but nothing is local to it.
func NewNetstackSink(addr netip.Addr, mtu uint32, logger *slog.Logger) (*NetstackSink, error) {
	if mtu == 0 {
		mtu = MTU
	}

	if logger == nil {
		logger = slog.Default()
	}

	s := &NetstackSink{
		logger: logger.With("component", "netstack-sink"),
		ep:     channel.New(netstackQueueSize, mtu, ""),
	}

	s.stack = stack.New(stack.Options{
		NetworkProtocols: []stack.NetworkProtocolFactory{
			ipv4.NewProtocol, ipv6.NewProtocol, arp.NewProtocol,
		},
		HandleLocal: false,
	})

	if tcpipErr := s.stack.CreateNIC(netstackNICID, s.ep); tcpipErr != nil {
		s.stack.Destroy()

		return nil, fmt.Errorf("%w: failed creating netstack nic: %s", ErrSink, tcpipErr)
	}

	if addr.IsValid() {
		proto := header.IPv4ProtocolNumber
		if addr.Is6() {
			proto = header.IPv6ProtocolNumber
		}

		tcpipErr := s.stack.AddProtocolAddress(netstackNICID, tcpip.ProtocolAddress{
			Protocol:          proto,
			AddressWithPrefix: tcpip.AddrFromSlice(addr.AsSlice()).WithPrefix(),
		}, stack.AddressProperties{})
		if tcpipErr != nil {
			s.stack.Destroy()

			return nil, fmt.Errorf(
				"%w: failed adding address %s to netstack nic: %s", ErrSink, addr, tcpipErr,
			)
		}
	}

	return s, nil
}

// NetstackSink is a host stack sink that injects frames into a gvisor network stack. It is the
// host stack for when tohost runs without privileges or without a kernel to hand packets to.
type NetstackSink struct {
	logger *slog.Logger

	stack *stack.Stack
	ep    *channel.Endpoint

	unknown atomic.Uint64
}

// Deliver implements Sink. The ethernet header is stripped and the payload injected inbound with
// the packet type annotation carried over.
func (s *NetstackSink) Deliver(p *Packet) {
	eth := &layers.Ethernet{}

	err := eth.DecodeFromBytes(p.Data, gopacket.NilDecodeFeedback)
	if err != nil {
		s.countUnknown("undecodable frame", err)

		return
	}

	var proto tcpip.NetworkProtocolNumber

	switch eth.EthernetType {
	case layers.EthernetTypeIPv4:
		proto = header.IPv4ProtocolNumber
	case layers.EthernetTypeIPv6:
		proto = header.IPv6ProtocolNumber
	case layers.EthernetTypeARP:
		proto = header.ARPProtocolNumber
	default:
		s.countUnknown("unsupported ethernet type", fmt.Errorf("%s", eth.EthernetType))

		return
	}

	pkb := stack.NewPacketBuffer(stack.PacketBufferOptions{
		Payload: buffer.MakeWithData(eth.Payload),
	})
	defer pkb.DecRef()

	pkb.PktType = netstackPacketType(p.Type)

	s.ep.InjectInbound(proto, pkb)
}

func (s *NetstackSink) countUnknown(msg string, err error) {
	if s.unknown.Add(1) == 1 {
		s.logger.Warn("netstack sink dropped frame", "reason", msg, "err", err)
	}
}

// Received returns the number of packets the netstack NIC received.
func (s *NetstackSink) Received() uint64 {
	info, ok := s.stack.NICInfo()[netstackNICID]
	if !ok {
		return 0
	}

	return info.Stats.Rx.Packets.Value()
}

// Unknown returns the number of frames the sink could not hand to the netstack.
func (s *NetstackSink) Unknown() uint64 {
	return s.unknown.Load()
}

// Close tears down the netstack.
func (s *NetstackSink) Close() error {
	s.ep.Close()
	s.stack.Destroy()

	return nil
}

func netstackPacketType(t PacketType) tcpip.PacketType {
	switch t {
	case PacketTypeBroadcast:
		return tcpip.PacketBroadcast
	case PacketTypeMulticast:
		return tcpip.PacketMulticast
	case PacketTypeOtherHost:
		return tcpip.PacketOtherHost
	default:
		return tcpip.PacketHost
	}
}
