//go:build !linux

package tohost

import (
	"context"
	"fmt"
	"log/slog"
)

func newPacketSource(name string, _ DeviceRegistry, _ *Stage, _ *slog.Logger) (*packetSource, error) {
	return nil, fmt.Errorf("%w: packet source %q requires linux packet sockets", ErrUnsupported, name)
}

type packetSource struct{}

func (s *packetSource) Bind() error { return ErrUnsupported }

func (s *packetSource) Run(_ context.Context) error { return ErrUnsupported }
