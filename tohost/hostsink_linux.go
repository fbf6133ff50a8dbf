package tohost

import (
	"fmt"
	"log/slog"
	"net/netip"
)

// newHostSink returns the host stack sink of the given kind.
func newHostSink(kind SinkKind, config NetstackConfig, logger *slog.Logger) (closableSink, error) {
	switch kind {
	case SinkKindTap:
		return NewTapSink(logger), nil
	case SinkKindNetstack:
		var addr netip.Addr

		if config.Address != "" {
			var err error

			addr, err = netip.ParseAddr(config.Address)
			if err != nil {
				return nil, fmt.Errorf("%w: bad netstack address %q: %w", ErrConfig, config.Address, err)
			}
		}

		s, err := NewNetstackSink(addr, config.MTU, logger)
		if err != nil {
			return nil, err
		}

		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown sink kind %q", ErrConfig, kind)
	}
}
