package tohost

import (
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"
)

var (
	testSrcMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	testDstMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDevice(name string, index int, hw net.HardwareAddr) *Device {
	return &Device{Name: name, Index: index, HardwareAddr: hw, MTU: MTU, Up: true}
}

func ethernetFrame(t *testing.T, dst net.HardwareAddr, payload []byte) []byte {
	t.Helper()

	buf := gopacket.NewSerializeBuffer()

	err := gopacket.SerializeLayers(
		buf,
		gopacket.SerializeOptions{},
		&layers.Ethernet{SrcMAC: testSrcMAC, DstMAC: dst, EthernetType: layers.EthernetTypeIPv4},
		gopacket.Payload(payload),
	)
	require.NoError(t, err)

	return buf.Bytes()
}

func ipv4Frame(t *testing.T, dst net.HardwareAddr) []byte {
	t.Helper()

	buf := gopacket.NewSerializeBuffer()

	err := gopacket.SerializeLayers(
		buf,
		gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true},
		&layers.Ethernet{SrcMAC: testSrcMAC, DstMAC: dst, EthernetType: layers.EthernetTypeIPv4},
		&layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IPv4(192, 0, 2, 1),
			DstIP:    net.IPv4(192, 0, 2, 2),
		},
		gopacket.Payload([]byte("hello")),
	)
	require.NoError(t, err)

	return buf.Bytes()
}

// recordingSink remembers every packet delivered to it.
type recordingSink struct {
	mu      sync.Mutex
	packets []*Packet
}

func (s *recordingSink) Deliver(p *Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.packets = append(s.packets, p)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.packets)
}

func (s *recordingSink) last() *Packet {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.packets) == 0 {
		return nil
	}

	return s.packets[len(s.packets)-1]
}

// callRecorder records up/down callback invocations in the order they happen.
type callRecorder struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *callRecorder) record(kind string) LinkCallback {
	return func(d *Device) error {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.calls = append(r.calls, kind+":"+d.Name)

		return r.err
	}
}

func (r *callRecorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string{}, r.calls...)
}
