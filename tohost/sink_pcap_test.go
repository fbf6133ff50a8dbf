package tohost

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/require"
)

func TestPcapSink(t *testing.T) {
	var buf bytes.Buffer

	s, err := NewPcapSink(&buf, 32, testLogger())
	require.NoError(t, err)

	frame := ethernetFrame(t, testDstMAC, bytes.Repeat([]byte{0xaa}, 100))
	ts := time.Unix(1_700_000_000, 0)

	s.Deliver(&Packet{Data: frame, Device: testDevice("eth0", 2, nil), Timestamp: ts})
	s.Deliver(&Packet{Data: frame, Timestamp: ts})

	require.Equal(t, uint64(2), s.Written())
	require.Equal(t, uint64(0), s.Failed())
	require.NoError(t, s.Close())

	r, err := pcapgo.NewReader(&buf)
	require.NoError(t, err)
	require.Equal(t, layers.LinkTypeEthernet, r.LinkType())
	require.Equal(t, uint32(32), r.Snaplen())

	data, ci, err := r.ReadPacketData()
	require.NoError(t, err)
	require.Equal(t, frame[:32], data)
	require.Equal(t, len(frame), ci.Length)
	require.Equal(t, 32, ci.CaptureLength)
	require.True(t, ts.Equal(ci.Timestamp))

	_, _, err = r.ReadPacketData()
	require.NoError(t, err)

	_, _, err = r.ReadPacketData()
	require.ErrorIs(t, err, io.EOF)
}

func TestPcapSinkClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.pcap")

	s, err := OpenPcapSink(path, 0, testLogger())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	s.Deliver(&Packet{Data: ethernetFrame(t, testDstMAC, nil)})

	require.Equal(t, uint64(0), s.Written())
	require.Equal(t, uint64(1), s.Failed())

	info, err := os.Stat(path)
	require.NoError(t, err)
	// file header only
	require.Equal(t, int64(24), info.Size())
}

func TestOpenPcapSinkBadPath(t *testing.T) {
	_, err := OpenPcapSink(filepath.Join(t.TempDir(), "nope", "capture.pcap"), 0, testLogger())
	require.ErrorIs(t, err, ErrSink)
}
