package tohost

// RejectReason is why a packet was not delivered.
type RejectReason uint8

const (
	// ReasonNone means the packet was accepted.
	ReasonNone RejectReason = iota
	// ReasonNullAnnotation means the packet had no device origin annotation.
	ReasonNullAnnotation
	// ReasonNoDevice means the stage has a configured device that is not currently bound.
	ReasonNoDevice

	reasonCount
)

func (r RejectReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNullAnnotation:
		return "null device annotation"
	case ReasonNoDevice:
		return "no device"
	default:
		return "unknown"
	}
}

// Verdict is the outcome of validating a packet.
type Verdict struct {
	Reason RejectReason
	// Type is the packet type annotation carried forward to delivery.
	Type PacketType
}

// Accepted reports whether the packet may be delivered.
func (v Verdict) Accepted() bool {
	return v.Reason == ReasonNone
}

// validate decides whether p may be delivered. bound is the currently bound device and
// requireDevice is whether the stage has a configured device at all. Only the annotations of p
// are inspected.
func validate(p *Packet, bound *Device, requireDevice bool) Verdict {
	if p == nil || p.Device == nil {
		return Verdict{Reason: ReasonNullAnnotation}
	}

	if requireDevice && bound == nil {
		return Verdict{Reason: ReasonNoDevice, Type: p.Type}
	}

	return Verdict{Type: p.Type}
}
