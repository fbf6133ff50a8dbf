package tohost

import "fmt"

// DeliveryMode selects where accepted packets go.
type DeliveryMode uint8

const (
	// FullStack hands packets to the host network stack, sniffers on the host see them too since
	// the host stack fans packets out to them itself.
	FullStack DeliveryMode = iota
	// CaptureOnly hands packets only to the capture sink, the host stack never sees them.
	CaptureOnly
)

func (m DeliveryMode) String() string {
	if m == CaptureOnly {
		return "capture-only"
	}

	return "full-stack"
}

func deliveryModeFor(sniffers bool) DeliveryMode {
	if sniffers {
		return CaptureOnly
	}

	return FullStack
}

// newDeliveryRouter returns a router for mode. The sink for the mode is picked once here, the
// other sink may be nil.
func newDeliveryRouter(mode DeliveryMode, host, capture Sink) (*deliveryRouter, error) {
	r := &deliveryRouter{mode: mode}

	switch mode {
	case FullStack:
		r.sink = host
	case CaptureOnly:
		r.sink = capture
	default:
		return nil, fmt.Errorf("%w: unknown delivery mode %d", ErrConfig, mode)
	}

	if r.sink == nil {
		return nil, fmt.Errorf("%w: no sink available for %s delivery", ErrConfig, mode)
	}

	return r, nil
}

// deliveryRouter hands accepted packets to the sink selected for its mode. Packet types are not
// filtered here, that is up to the receiving stack.
type deliveryRouter struct {
	mode DeliveryMode
	sink Sink
}

func (r *deliveryRouter) deliver(p *Packet) {
	r.sink.Deliver(p)
}
