package tohost

import "io"

// Sink receives accepted packets. Delivery is best effort: a sink deals with its own failures
// (counting and logging them) and must not block the pusher for long.
type Sink interface {
	Deliver(p *Packet)
}

// SinkFunc adapts a func to a Sink.
type SinkFunc func(p *Packet)

// Deliver implements Sink.
func (f SinkFunc) Deliver(p *Packet) {
	f(p)
}

type closableSink interface {
	Sink
	io.Closer
}
