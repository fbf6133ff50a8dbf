package tohost

import (
	"bytes"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// PacketType is the addressing intent of a packet, the host stack decides what to do with a packet
// based on it.
type PacketType uint8

const (
	// PacketTypeHost is a packet destined for the local host.
	PacketTypeHost PacketType = iota
	// PacketTypeBroadcast is a link layer broadcast packet.
	PacketTypeBroadcast
	// PacketTypeMulticast is a link layer multicast packet.
	PacketTypeMulticast
	// PacketTypeOtherHost is a packet that was destined for some other host.
	PacketTypeOtherHost
)

func (t PacketType) String() string {
	switch t {
	case PacketTypeHost:
		return "host"
	case PacketTypeBroadcast:
		return "broadcast"
	case PacketTypeMulticast:
		return "multicast"
	case PacketTypeOtherHost:
		return "otherhost"
	default:
		return "unknown"
	}
}

// Packet is a single ethernet frame moving through the pipeline along with its annotations. Stages
// read the annotations but never modify Data.
type Packet struct {
	Data Bytes
	// Device is the device origin annotation, nil when the packet has no device context; packets
	// without one are never handed to the host stack.
	Device *Device
	// Type is the packet type annotation.
	Type PacketType
	// Timestamp is when the packet was captured or created.
	Timestamp time.Time
}

// NewPacket returns a packet carrying data, annotated with dev and with a type derived from the
// ethernet destination address of data relative to dev.
func NewPacket(data Bytes, dev *Device) *Packet {
	var local net.HardwareAddr

	if dev != nil {
		local = dev.HardwareAddr
	}

	return &Packet{
		Data:      data,
		Device:    dev,
		Type:      PacketTypeFromFrame(data, local),
		Timestamp: time.Now(),
	}
}

// PacketTypeFromFrame classifies an ethernet frame by its destination address. Frames addressed to
// local (or any unicast frame when local is empty) are host packets. Frames that cannot be
// decoded are treated as host packets, the host stack will sort them out.
func PacketTypeFromFrame(frame []byte, local net.HardwareAddr) PacketType {
	eth := &layers.Ethernet{}

	err := eth.DecodeFromBytes(frame, gopacket.NilDecodeFeedback)
	if err != nil {
		return PacketTypeHost
	}

	switch {
	case bytes.Equal(eth.DstMAC, layers.EthernetBroadcast):
		return PacketTypeBroadcast
	case len(eth.DstMAC) > 0 && eth.DstMAC[0]&0x01 == 0x01:
		return PacketTypeMulticast
	case len(local) == 0 || bytes.Equal(eth.DstMAC, local):
		return PacketTypeHost
	default:
		return PacketTypeOtherHost
	}
}

// withDevice returns a shallow copy of p annotated with dev; the payload is shared.
func (p *Packet) withDevice(dev *Device) *Packet {
	c := *p
	c.Device = dev

	return &c
}
