package tohost

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	dev := testDevice("eth0", 2, nil)

	cases := []struct {
		name          string
		packet        *Packet
		bound         *Device
		requireDevice bool
		expected      RejectReason
	}{
		{
			name:     "nil-packet",
			expected: ReasonNullAnnotation,
		},
		{
			name:          "null-annotation-bound",
			packet:        &Packet{},
			bound:         dev,
			requireDevice: true,
			expected:      ReasonNullAnnotation,
		},
		{
			name:          "unbound",
			packet:        &Packet{Device: dev},
			requireDevice: true,
			expected:      ReasonNoDevice,
		},
		{
			name:          "bound",
			packet:        &Packet{Device: dev, Type: PacketTypeBroadcast},
			bound:         dev,
			requireDevice: true,
			expected:      ReasonNone,
		},
		{
			name:     "no-configured-device",
			packet:   &Packet{Device: dev},
			expected: ReasonNone,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verdict := validate(tc.packet, tc.bound, tc.requireDevice)

			require.Equal(t, tc.expected, verdict.Reason)
			require.Equal(t, tc.expected == ReasonNone, verdict.Accepted())

			if tc.packet != nil && verdict.Accepted() {
				require.Equal(t, tc.packet.Type, verdict.Type)
			}
		})
	}
}
