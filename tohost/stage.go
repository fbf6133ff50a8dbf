package tohost

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
)

// NewStage configures a new delivery stage. Handler references in config are resolved against the
// stage's handler table here, so unknown up/down calls fail configuration. The stage does nothing
// until Initialize is called.
func NewStage(config StageConfig, opts ...StageOption) (*Stage, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("%w: stage name is required", ErrConfig)
	}

	s := &Stage{
		config: config,
		logger: slog.Default(),
		stats:  &statsHandler{},
	}

	for _, opt := range opts {
		err := opt(s)
		if err != nil {
			return nil, err
		}
	}

	s.logger = s.logger.With("component", "stage", "stage", config.Name)

	if s.handlers != nil {
		err := s.resolveCalls()
		if err != nil {
			return nil, err
		}
	} else if (config.UpCall != "" && s.upCall == nil) || (config.DownCall != "" && s.downCall == nil) {
		return nil, fmt.Errorf(
			"%w: stage %q has up/down call references but no handler table", ErrConfig, config.Name,
		)
	}

	router, err := newDeliveryRouter(deliveryModeFor(config.Sniffers), s.hostSink, s.captureSink)
	if err != nil {
		return nil, fmt.Errorf("stage %q: %w", config.Name, err)
	}

	s.router = router

	if config.Device != "" {
		s.binding = newDeviceBinding(config.Device, &linkStateNotifier{
			up:     s.upCall,
			down:   s.downCall,
			quiet:  config.Quiet,
			logger: s.logger,
		})
	}

	if s.handlers != nil {
		s.addHandlers()
	}

	return s, nil
}

// Stage is a terminal pipeline stage that hands packets to the host network stack (or only to
// capture observers). It optionally binds to a named device, which may come and go while the
// stage runs.
type Stage struct {
	config StageConfig
	logger *slog.Logger

	handlers    *HandlerTable
	hostSink    Sink
	captureSink Sink
	upCall      LinkCallback
	downCall    LinkCallback

	binding *deviceBinding
	router  *deliveryRouter
	stats   *statsHandler

	mu          sync.Mutex
	unsubscribe func()
}

var _ DeviceListener = (*Stage)(nil)

func (s *Stage) resolveCalls() error {
	if s.upCall == nil {
		up, err := s.handlers.ResolveCall(s.config.UpCall)
		if err != nil {
			return fmt.Errorf("stage %q up call: %w", s.config.Name, err)
		}

		s.upCall = up
	}

	if s.downCall == nil {
		down, err := s.handlers.ResolveCall(s.config.DownCall)
		if err != nil {
			return fmt.Errorf("stage %q down call: %w", s.config.Name, err)
		}

		s.downCall = down
	}

	return nil
}

func (s *Stage) addHandlers() {
	prefix := s.config.Name + "."

	s.handlers.AddRead(prefix+"drops", func() (string, error) {
		return strconv.FormatUint(s.Drops(), 10), nil
	})
	s.handlers.AddRead(prefix+"delivered", func() (string, error) {
		return strconv.FormatUint(s.Delivered(), 10), nil
	})
	s.handlers.AddRead(prefix+"state", func() (string, error) {
		return s.State().String(), nil
	})
	s.handlers.AddRead(prefix+"device", func() (string, error) {
		d := s.Binding().Device()
		if d == nil {
			return "", nil
		}

		return d.Name, nil
	})
	s.handlers.AddRead(prefix+"link", func() (string, error) {
		d := s.Binding().Device()

		switch {
		case d == nil:
			return "", nil
		case d.Up:
			return "up", nil
		default:
			return "down", nil
		}
	})
	s.handlers.AddRead(prefix+"config", func() (string, error) {
		return fmt.Sprintf(
			"device=%q sniffers=%t quiet=%t allow_nonexistent=%t",
			s.config.Device, s.config.Sniffers, s.config.Quiet, s.config.AllowNonexistent,
		), nil
	})
}

// Name returns the stage name.
func (s *Stage) Name() string {
	return s.config.Name
}

// Mode returns the delivery mode chosen at configuration.
func (s *Stage) Mode() DeliveryMode {
	return s.router.mode
}

// Initialize binds the stage to its configured device through registry and subscribes to device
// arrival/departure. A missing device is fatal unless nonexistent devices are allowed, in which
// case the stage starts unbound and binds once the registry reports the device.
func (s *Stage) Initialize(registry DeviceRegistry) error {
	if s.binding == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// subscribe before resolving so an arrival between the two is not missed, binding twice is a
	// no-op
	unsubscribe := registry.Subscribe(s)

	err := s.binding.resolve(registry)
	if err == nil {
		s.unsubscribe = unsubscribe

		return nil
	}

	if s.binding.State() == Bound {
		// the device resolved fine, it was the up call that failed
		s.unsubscribe = unsubscribe

		return err
	}

	if !s.config.AllowNonexistent {
		unsubscribe()

		return fmt.Errorf(
			"%w: stage %q cannot find device %q: %w", ErrBind, s.config.Name, s.config.Device, err,
		)
	}

	if !s.config.Quiet {
		s.logger.Warn(
			"device not found, will bind when it appears",
			"device", s.config.Device,
			"err", err,
		)
	}

	s.unsubscribe = unsubscribe

	return nil
}

// Push validates p and delivers it, or drops and counts it. Push returns whether p was delivered.
// It is safe to call from many goroutines at once and concurrently with device changes.
func (s *Stage) Push(p *Packet) bool {
	var bound *Device

	if s.binding != nil {
		bound = s.binding.Device()
	}

	verdict := validate(p, bound, s.binding != nil)
	if !verdict.Accepted() {
		if s.stats.onReject(verdict.Reason) == 1 {
			s.logger.Warn("dropped first packet, further drops are only counted",
				"reason", verdict.Reason.String())
		}

		return false
	}

	if bound != nil && p.Device != bound {
		p = p.withDevice(bound)
	}

	s.router.deliver(p)
	s.stats.onDeliver()

	return true
}

// DeviceArrived implements DeviceListener.
func (s *Stage) DeviceArrived(d *Device) error {
	if s.binding == nil {
		return nil
	}

	return s.binding.bind(d)
}

// DeviceDeparted implements DeviceListener.
func (s *Stage) DeviceDeparted(d *Device) error {
	if s.binding == nil {
		return nil
	}

	return s.binding.unbind(d)
}

// Cleanup tears the stage down: the binding is released first so concurrent pushes start dropping,
// then the stage stops listening for devices and the down call (if bound) fires. Counters are
// discarded with the stage.
func (s *Stage) Cleanup() error {
	if s.handlers != nil {
		s.handlers.RemovePrefix(s.config.Name + ".")
	}

	if s.binding == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.binding.unbind(nil)

	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}

	return err
}

// Drops returns the number of packets the stage has dropped.
func (s *Stage) Drops() uint64 {
	return s.stats.readDropCount()
}

// DropsFor returns the number of packets the stage dropped for reason.
func (s *Stage) DropsFor(reason RejectReason) uint64 {
	return s.stats.readDropCountFor(reason)
}

// Delivered returns the number of packets the stage has delivered.
func (s *Stage) Delivered() uint64 {
	return s.stats.readDeliveredCount()
}

// State returns the binding state of the stage. A stage with no configured device reports Unbound.
func (s *Stage) State() BindingState {
	return s.Binding().State()
}

// Binding returns the read only view of the stage's device binding.
func (s *Stage) Binding() Binding {
	if s.binding == nil {
		return unboundBinding{}
	}

	return s.binding
}

type unboundBinding struct{}

func (unboundBinding) Device() *Device     { return nil }
func (unboundBinding) State() BindingState { return Unbound }
