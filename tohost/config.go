package tohost

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// LoadConfig reads, parses, and validates the config file at path.
func LoadConfig(path string) (*Config, error) {
	configBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return ParseConfig(configBytes)
}

// ParseConfig parses and validates yaml config bytes, filling in defaults.
func ParseConfig(b []byte) (*Config, error) {
	config := &Config{}

	err := yaml.Unmarshal(b, config)
	if err != nil {
		return nil, fmt.Errorf("%w: failed unmarshaling config: %w", ErrConfig, err)
	}

	config.setDefaults()

	err = config.Validate()
	if err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) setDefaults() {
	if c.Control.Address == "" {
		c.Control.Address = Address
	}

	if c.Control.Port == 0 {
		c.Control.Port = Port
	}

	if c.Capture.Snaplen == 0 {
		c.Capture.Snaplen = Snaplen
	}

	for idx := range c.Stages {
		if c.Stages[idx].Sink == "" {
			c.Stages[idx].Sink = defaultSinkKind
		}
	}
}

// Validate checks the config for things that make no sense. It does not look for devices, that
// happens when stages initialize.
func (c *Config) Validate() error {
	hooks := map[string]bool{}

	for _, hook := range c.Hooks {
		if hook.Name == "" {
			return fmt.Errorf("%w: hook with no name", ErrConfig)
		}

		if len(hook.Command) == 0 {
			return fmt.Errorf("%w: hook %q has no command", ErrConfig, hook.Name)
		}

		if hooks[hook.Name] {
			return fmt.Errorf("%w: duplicate hook %q", ErrConfig, hook.Name)
		}

		hooks[hook.Name] = true
	}

	stages := map[string]bool{}

	for _, stage := range c.Stages {
		if stage.Name == "" {
			return fmt.Errorf("%w: stage with no name", ErrConfig)
		}

		if stages[stage.Name] {
			return fmt.Errorf("%w: duplicate stage %q", ErrConfig, stage.Name)
		}

		stages[stage.Name] = true

		switch stage.Sink {
		case SinkKindTap, SinkKindNetstack:
		default:
			return fmt.Errorf("%w: stage %q has unknown sink %q", ErrConfig, stage.Name, stage.Sink)
		}

		if stage.Sniffers && c.Capture.Path == "" {
			return fmt.Errorf(
				"%w: stage %q is in sniffers mode but no capture path is configured",
				ErrConfig, stage.Name,
			)
		}

		if stage.AllowNonexistent && stage.Device == "" {
			return fmt.Errorf(
				"%w: stage %q allows nonexistent devices but names no device",
				ErrConfig, stage.Name,
			)
		}
	}

	return nil
}

func (m *manager) watchConfig() error {
	if !m.liveReload {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	go func() {
		defer func() {
			_ = watcher.Close()
		}()

		for {
			select {
			case <-m.ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				m.logger.Debug("got config watch event", "event", event.String())

				if event.Name == m.configPath && event.Has(fsnotify.Write) {
					m.reloadConfig()
				}
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}

				m.reportErr(watchErr)
			}
		}
	}()

	err = watcher.Add(filepath.Dir(m.configPath))
	if err != nil {
		return err
	}

	return nil
}

func (m *manager) reloadConfig() {
	m.logger.Info("processing config update...")

	newConfig, err := LoadConfig(m.configPath)
	if err != nil {
		// a half written or broken config should not take down running stages
		m.logger.Warn("encountered error loading updated config, ignoring update", "err", err)

		return
	}

	if configsEqual(m.config, newConfig) {
		m.logger.Info("previous and current parsed config are equal, nothing to do...")

		return
	}

	m.logger.Info("config has changes, restarting stages...")

	// in the near(?) future we can update just the changed stages instead of everything
	m.stopPipeline()

	m.config = newConfig

	err = m.startPipeline()
	if err != nil {
		m.logger.Error("encountered error restarting stages after config update", "err", err)

		m.reportErr(err)
	}
}

func configsEqual(existingConfig, newConfig *Config) bool {
	return reflect.DeepEqual(existingConfig, newConfig)
}
