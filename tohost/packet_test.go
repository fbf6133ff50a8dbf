package tohost

import (
	"net"
	"testing"

	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"
)

func TestPacketTypeFromFrame(t *testing.T) {
	multicast := net.HardwareAddr{0x01, 0x00, 0x5e, 0x00, 0x00, 0x01}

	cases := []struct {
		name     string
		frame    func(t *testing.T) []byte
		local    net.HardwareAddr
		expected PacketType
	}{
		{
			name:     "broadcast",
			frame:    func(t *testing.T) []byte { return ethernetFrame(t, layers.EthernetBroadcast, nil) },
			local:    testDstMAC,
			expected: PacketTypeBroadcast,
		},
		{
			name:     "multicast",
			frame:    func(t *testing.T) []byte { return ethernetFrame(t, multicast, nil) },
			local:    testDstMAC,
			expected: PacketTypeMulticast,
		},
		{
			name:     "host",
			frame:    func(t *testing.T) []byte { return ethernetFrame(t, testDstMAC, nil) },
			local:    testDstMAC,
			expected: PacketTypeHost,
		},
		{
			name:     "host-no-local-address",
			frame:    func(t *testing.T) []byte { return ethernetFrame(t, testDstMAC, nil) },
			expected: PacketTypeHost,
		},
		{
			name:     "other-host",
			frame:    func(t *testing.T) []byte { return ethernetFrame(t, testDstMAC, nil) },
			local:    testSrcMAC,
			expected: PacketTypeOtherHost,
		},
		{
			name:     "undecodable",
			frame:    func(_ *testing.T) []byte { return []byte{0x01, 0x02} },
			local:    testDstMAC,
			expected: PacketTypeHost,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, PacketTypeFromFrame(tc.frame(t), tc.local))
		})
	}
}

func TestNewPacket(t *testing.T) {
	dev := testDevice("eth0", 2, testSrcMAC)
	frame := ethernetFrame(t, testDstMAC, []byte("payload"))

	p := NewPacket(frame, dev)

	require.Same(t, dev, p.Device)
	require.Equal(t, PacketTypeOtherHost, p.Type)
	require.False(t, p.Timestamp.IsZero())

	p = NewPacket(frame, nil)

	require.Nil(t, p.Device)
	require.Equal(t, PacketTypeHost, p.Type)
}

func TestPacketWithDevice(t *testing.T) {
	orig := NewPacket(ethernetFrame(t, testDstMAC, nil), testDevice("eth0", 2, nil))
	other := testDevice("eth1", 3, nil)

	c := orig.withDevice(other)

	require.Same(t, other, c.Device)
	require.Equal(t, "eth0", orig.Device.Name)
	require.Same(t, &orig.Data[0], &c.Data[0])
	require.Equal(t, orig.Type, c.Type)
}
