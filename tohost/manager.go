package tohost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
)

// Manager is an interface representing the manager's methods.
type Manager interface {
	Run() error
}

type manager struct {
	ctx    context.Context
	logger *slog.Logger

	configPath string
	config     *Config
	liveReload bool

	errChan chan error

	registry DeviceRegistry
	handlers *HandlerTable
	control  *ControlServer

	mu             sync.Mutex
	pipelineCancel context.CancelFunc
	pipelineWg     sync.WaitGroup
	stages         []*Stage
	sinks          []io.Closer
}

// NewManager returns a Manager configured from the config file named by the options; the config is
// loaded and validated here.
func NewManager(opts ...Option) (Manager, error) {
	return newManager(opts...)
}

func newManager(opts ...Option) (*manager, error) {
	m := &manager{
		ctx:        context.Background(),
		logger:     slog.Default(),
		configPath: "tohost.yaml",
		errChan:    make(chan error),
	}

	for _, opt := range opts {
		err := opt(m)
		if err != nil {
			m.logger.Error("failed applying manager config option", "err", err)

			return nil, err
		}
	}

	qualifiedConfigPath, err := filepath.Abs(m.configPath)
	if err != nil {
		m.logger.Error("failed determining absolute path to config", "err", err)

		return nil, err
	}

	m.configPath = qualifiedConfigPath

	m.config, err = LoadConfig(m.configPath)
	if err != nil {
		m.logger.Error("failed loading config file", "path", m.configPath, "err", err)

		return nil, err
	}

	m.handlers = NewHandlerTable(m.logger)

	return m, nil
}

// Run starts the registry, the control socket, and every stage in the configuration and runs until
// the manager context is canceled.
func (m *manager) Run() error {
	m.logger.Info("manager run started, setting up registry and stages...")

	err := m.start()
	if err != nil {
		return err
	}

	defer m.stopPipeline()

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("manager context done, shutting down stages...")

			return nil
		case err = <-m.errChan:
			m.logger.Warn("got error while running things", "err", err)
		}
	}
}

func (m *manager) start() error {
	err := m.startRegistry()
	if err != nil {
		m.logger.Error("error starting device registry", "err", err)

		return err
	}

	err = m.startControl()
	if err != nil {
		m.logger.Error("error starting control socket", "err", err)

		return err
	}

	err = m.startPipeline()
	if err != nil {
		m.logger.Error("error creating stages", "err", err)

		return err
	}

	err = m.watchConfig()
	if err != nil {
		m.logger.Error("error setting up config watch", "err", err)

		return err
	}

	return nil
}

func (m *manager) startRegistry() error {
	if m.registry != nil {
		return nil
	}

	r := NewNetlinkRegistry(m.logger)

	err := r.Start(m.ctx, m.errChan)
	if err != nil {
		return err
	}

	m.registry = r

	return nil
}

func (m *manager) startControl() error {
	if m.config.Control.Disabled {
		return nil
	}

	m.control = NewControlServer(
		m.config.Control.Address, m.config.Control.Port, m.handlers, m.logger, m.errChan,
	)

	err := m.control.Bind()
	if err != nil {
		return err
	}

	m.logger.Info("control socket listening", "address", m.control.Addr().String())

	go m.control.Run(m.ctx)

	return nil
}

// startPipeline creates sinks and stages for the current config, initializes the stages in config
// order, then starts their packet sources.
func (m *manager) startPipeline() (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithCancel(m.ctx)
	m.pipelineCancel = cancel

	defer func() {
		if err != nil {
			m.teardownLocked()
		}
	}()

	m.handlers.RemovePrefix("hook.")
	addHookHandlers(m.handlers, m.config.Hooks, m.logger.With("component", "hooks"))

	var captureSink Sink

	if m.config.Capture.Path != "" {
		pcapSink, pcapErr := OpenPcapSink(m.config.Capture.Path, m.config.Capture.Snaplen, m.logger)
		if pcapErr != nil {
			return pcapErr
		}

		m.sinks = append(m.sinks, pcapSink)
		captureSink = pcapSink
	}

	hostSinks := map[SinkKind]Sink{}

	for _, stageConfig := range m.config.Stages {
		opts := []StageOption{
			WithStageLogger(m.logger),
			WithHandlerTable(m.handlers),
			WithCaptureSink(captureSink),
		}

		if !stageConfig.Sniffers {
			hostSink, ok := hostSinks[stageConfig.Sink]
			if !ok {
				var closable closableSink

				closable, err = newHostSink(stageConfig.Sink, m.config.Netstack, m.logger)
				if err != nil {
					return err
				}

				m.sinks = append(m.sinks, closable)
				hostSinks[stageConfig.Sink] = closable
				hostSink = closable
			}

			opts = append(opts, WithHostSink(hostSink))
		}

		var stage *Stage

		stage, err = NewStage(stageConfig, opts...)
		if err != nil {
			return err
		}

		m.stages = append(m.stages, stage)

		err = stage.Initialize(m.registry)
		if err != nil {
			return err
		}
	}

	for idx, stageConfig := range m.config.Stages {
		for _, sourceName := range stageConfig.Sources {
			err = m.runSource(ctx, sourceName, m.stages[idx])
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func (m *manager) runSource(ctx context.Context, name string, stage *Stage) error {
	source, err := newPacketSource(name, m.registry, stage, m.logger)
	if err != nil {
		return err
	}

	err = source.Bind()
	if err != nil {
		return err
	}

	m.pipelineWg.Add(1)

	go func() {
		defer m.pipelineWg.Done()

		runErr := source.Run(ctx)
		if runErr != nil {
			m.reportErr(runErr)
		}
	}()

	return nil
}

// reportErr hands err to the Run loop, giving up once the manager is done.
func (m *manager) reportErr(err error) {
	select {
	case m.errChan <- err:
	case <-m.ctx.Done():
	}
}

// stopPipeline stops sources, tears down stages, and closes sinks.
func (m *manager) stopPipeline() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.teardownLocked()
}

func (m *manager) teardownLocked() {
	if m.pipelineCancel != nil {
		m.pipelineCancel()
		m.pipelineCancel = nil
	}

	// sources may be blocked sending an error to the manager, drain while waiting on them
	done := make(chan struct{})

	go func() {
		m.pipelineWg.Wait()
		close(done)
	}()

	for waiting := true; waiting; {
		select {
		case <-done:
			waiting = false
		case err := <-m.errChan:
			m.logger.Debug("ignoring error received during shutdown", "err", err)
		}
	}

	var errs []error

	for _, stage := range m.stages {
		err := stage.Cleanup()
		if err != nil {
			errs = append(errs, fmt.Errorf("stage %q cleanup: %w", stage.Name(), err))
		}
	}

	m.stages = nil

	for _, sink := range m.sinks {
		errs = append(errs, sink.Close())
	}

	m.sinks = nil

	err := errors.Join(errs...)
	if err != nil {
		m.logger.Warn("encountered errors tearing down stages", "err", err)
	}
}
