package tohost

import (
	"context"
	"fmt"
	"log/slog"
)

// Option defines an option for the tohost Manager.
type Option func(m *manager) error

// WithConfigFile provides a config filepath to the manager.
func WithConfigFile(s string) Option {
	return func(m *manager) error {
		m.configPath = s

		return nil
	}
}

// WithLiveReload instructs the manager to watch the config file for changes and "live reload" the
// stages.
func WithLiveReload(b bool) Option {
	return func(m *manager) error {
		m.liveReload = b

		return nil
	}
}

// WithContext sets the context the manager runs until canceled, usually a signal handled one.
func WithContext(ctx context.Context) Option {
	return func(m *manager) error {
		if ctx == nil {
			return fmt.Errorf("%w: nil context", ErrConfig)
		}

		m.ctx = ctx

		return nil
	}
}

// WithLogger sets the logger for the manager and everything it creates.
func WithLogger(logger *slog.Logger) Option {
	return func(m *manager) error {
		m.logger = logger

		return nil
	}
}

// WithRegistry replaces the platform device registry, the manager will not start or stop it.
func WithRegistry(r DeviceRegistry) Option {
	return func(m *manager) error {
		m.registry = r

		return nil
	}
}

// StageOption defines an option for a Stage.
type StageOption func(s *Stage) error

// WithStageLogger sets the logger a stage logs to.
func WithStageLogger(logger *slog.Logger) StageOption {
	return func(s *Stage) error {
		if logger != nil {
			s.logger = logger
		}

		return nil
	}
}

// WithHostSink sets the sink that receives packets in full stack mode.
func WithHostSink(sink Sink) StageOption {
	return func(s *Stage) error {
		s.hostSink = sink

		return nil
	}
}

// WithCaptureSink sets the sink that receives packets in sniffers (capture only) mode.
func WithCaptureSink(sink Sink) StageOption {
	return func(s *Stage) error {
		s.captureSink = sink

		return nil
	}
}

// WithUpCall sets the callback invoked when the stage's device comes up. It takes precedence over
// the configured up call handler reference.
func WithUpCall(f LinkCallback) StageOption {
	return func(s *Stage) error {
		s.upCall = f

		return nil
	}
}

// WithDownCall sets the callback invoked when the stage's device goes down. It takes precedence
// over the configured down call handler reference.
func WithDownCall(f LinkCallback) StageOption {
	return func(s *Stage) error {
		s.downCall = f

		return nil
	}
}

// WithHandlerTable registers the stage's read handlers in t and resolves its up/down call handler
// references against it.
func WithHandlerTable(t *HandlerTable) StageOption {
	return func(s *Stage) error {
		s.handlers = t

		return nil
	}
}
