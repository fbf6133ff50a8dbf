//go:build !linux

package tohost

import (
	"fmt"
	"log/slog"
)

func newHostSink(kind SinkKind, _ NetstackConfig, _ *slog.Logger) (closableSink, error) {
	return nil, fmt.Errorf("%w: %q host sink requires linux", ErrUnsupported, kind)
}
