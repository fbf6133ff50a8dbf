package tohost

import "sync/atomic"

// statsHandler holds the cumulative counters of a stage. Counters only ever go up.
type statsHandler struct {
	drops     atomic.Uint64
	reasons   [reasonCount]atomic.Uint64
	delivered atomic.Uint64
}

// onReject counts a dropped packet and returns the new drop count.
func (s *statsHandler) onReject(reason RejectReason) uint64 {
	if reason < reasonCount {
		s.reasons[reason].Add(1)
	}

	return s.drops.Add(1)
}

func (s *statsHandler) onDeliver() {
	s.delivered.Add(1)
}

func (s *statsHandler) readDropCount() uint64 {
	return s.drops.Load()
}

func (s *statsHandler) readDropCountFor(reason RejectReason) uint64 {
	if reason >= reasonCount {
		return 0
	}

	return s.reasons[reason].Load()
}

func (s *statsHandler) readDeliveredCount() uint64 {
	return s.delivered.Load()
}
