package tohost

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
	"gvisor.dev/gvisor/pkg/tcpip"
)

func TestNetstackSink(t *testing.T) {
	s, err := NewNetstackSink(netip.MustParseAddr("192.0.2.2"), 0, testLogger())
	require.NoError(t, err)

	defer func() {
		require.NoError(t, s.Close())
	}()

	dev := testDevice("eth0", 2, testDstMAC)

	s.Deliver(NewPacket(ipv4Frame(t, testDstMAC), dev))
	s.Deliver(NewPacket(ipv4Frame(t, testSrcMAC), dev))

	require.Equal(t, uint64(2), s.Received())
	require.Equal(t, uint64(0), s.Unknown())

	unknownType := append(append([]byte{}, testDstMAC...), testSrcMAC...)
	unknownType = append(unknownType, 0x88, 0xb5, 0x00, 0x00)

	s.Deliver(&Packet{Data: unknownType, Device: dev})
	s.Deliver(&Packet{Data: []byte{0x01}, Device: dev})

	require.Equal(t, uint64(2), s.Received())
	require.Equal(t, uint64(2), s.Unknown())
}

func TestNetstackPacketType(t *testing.T) {
	require.Equal(t, tcpip.PacketHost, netstackPacketType(PacketTypeHost))
	require.Equal(t, tcpip.PacketBroadcast, netstackPacketType(PacketTypeBroadcast))
	require.Equal(t, tcpip.PacketMulticast, netstackPacketType(PacketTypeMulticast))
	require.Equal(t, tcpip.PacketOtherHost, netstackPacketType(PacketTypeOtherHost))
}

func TestNewHostSink(t *testing.T) {
	sink, err := newHostSink(SinkKindNetstack, NetstackConfig{Address: "2001:db8::1"}, testLogger())
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	_, err = newHostSink(SinkKindNetstack, NetstackConfig{Address: "not-an-ip"}, testLogger())
	require.ErrorIs(t, err, ErrConfig)

	_, err = newHostSink("carrier-pigeon", NetstackConfig{}, testLogger())
	require.ErrorIs(t, err, ErrConfig)
}
