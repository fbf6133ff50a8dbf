package tohost

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// NewPcapSink returns a capture sink writing an ethernet pcap stream to w. If w is an io.Closer it
// is closed with the sink.
func NewPcapSink(w io.Writer, snaplen uint32, logger *slog.Logger) (*PcapSink, error) {
	if snaplen == 0 {
		snaplen = Snaplen
	}

	if logger == nil {
		logger = slog.Default()
	}

	pw := pcapgo.NewWriter(w)

	err := pw.WriteFileHeader(snaplen, layers.LinkTypeEthernet)
	if err != nil {
		return nil, fmt.Errorf("%w: failed writing pcap header: %w", ErrSink, err)
	}

	s := &PcapSink{
		logger:  logger.With("component", "pcap-sink"),
		w:       pw,
		snaplen: snaplen,
	}

	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}

	return s, nil
}

// OpenPcapSink creates (truncating) the pcap file at path and returns a capture sink writing to it.
func OpenPcapSink(path string, snaplen uint32, logger *slog.Logger) (*PcapSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed creating capture file %q: %w", ErrSink, path, err)
	}

	s, err := NewPcapSink(f, snaplen, logger)
	if err != nil {
		_ = f.Close()

		return nil, err
	}

	return s, nil
}

// PcapSink is a capture (sniffer) sink, every delivered packet is appended to a pcap stream.
type PcapSink struct {
	logger *slog.Logger

	mu      sync.Mutex
	w       *pcapgo.Writer
	closer  io.Closer
	closed  bool
	snaplen uint32

	written atomic.Uint64
	failed  atomic.Uint64
}

// Deliver implements Sink.
func (s *PcapSink) Deliver(p *Packet) {
	data := p.Data
	if uint32(len(data)) > s.snaplen {
		data = data[:s.snaplen]
	}

	ci := gopacket.CaptureInfo{
		Timestamp:     p.Timestamp,
		CaptureLength: len(data),
		Length:        len(p.Data),
	}

	if p.Device != nil {
		ci.InterfaceIndex = p.Device.Index
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.failed.Add(1)

		return
	}

	err := s.w.WritePacket(ci, data)
	if err != nil {
		if s.failed.Add(1) == 1 {
			s.logger.Warn("encountered error writing packet to capture", "err", err)
		}

		return
	}

	s.written.Add(1)
}

// Written returns the number of packets written to the capture.
func (s *PcapSink) Written() uint64 {
	return s.written.Load()
}

// Failed returns the number of packets that could not be written.
func (s *PcapSink) Failed() uint64 {
	return s.failed.Load()
}

// Close closes the underlying writer if it is closable.
func (s *PcapSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	if s.closer == nil {
		return nil
	}

	return s.closer.Close()
}
