package tohost

import (
	"fmt"
	"log/slog"
)

// LinkCallback is invoked with the affected device when a stage's device comes up or goes down.
type LinkCallback func(d *Device) error

// linkStateNotifier runs the up/down callbacks of a stage and emits the informational up/down
// messages unless quiet.
type linkStateNotifier struct {
	up    LinkCallback
	down  LinkCallback
	quiet bool

	logger *slog.Logger
}

func (n *linkStateNotifier) linkUp(d *Device) error {
	if !n.quiet {
		n.logger.Info("device up", "device", d.Name, "index", d.Index)
	}

	if n.up == nil {
		return nil
	}

	err := n.up(d)
	if err != nil {
		return fmt.Errorf("up call for device %q failed: %w", d.Name, err)
	}

	return nil
}

func (n *linkStateNotifier) linkDown(d *Device) error {
	if !n.quiet {
		n.logger.Info("device down", "device", d.Name, "index", d.Index)
	}

	if n.down == nil {
		return nil
	}

	err := n.down(d)
	if err != nil {
		return fmt.Errorf("down call for device %q failed: %w", d.Name, err)
	}

	return nil
}
