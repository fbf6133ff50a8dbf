package tohost

// SinkKind names a host stack sink implementation.
type SinkKind string

const (
	// SinkKindTap delivers frames to the kernel by writing them to a tap device named after the
	// bound device.
	SinkKindTap SinkKind = "tap"
	// SinkKindNetstack delivers frames to an in process userspace network stack.
	SinkKindNetstack SinkKind = "netstack"
)

// Config holds the yaml configuration used for tohost.
type Config struct {
	// Control is the listen information for the control socket that exposes stage handlers.
	Control ControlConfig `yaml:"control"`
	// Capture configures the capture (sniffer) sink used by stages in sniffers mode.
	Capture CaptureConfig `yaml:"capture"`
	// Netstack configures the userspace network stack sink.
	Netstack NetstackConfig `yaml:"netstack"`
	// Hooks is a list of commands exposed as write handlers named "hook.<name>", these are what up
	// and down calls usually point at.
	Hooks []HookConfig `yaml:"hooks"`
	// Stages is a list of delivery stages. Stages are initialized in the order they are listed.
	Stages []StageConfig `yaml:"stages"`
}

// ControlConfig holds the control socket listen address and port.
type ControlConfig struct {
	// Disabled turns the control socket off entirely.
	Disabled bool   `yaml:"disabled"`
	Address  string `yaml:"address"`
	Port     uint16 `yaml:"port"`
}

// CaptureConfig holds the capture sink settings.
type CaptureConfig struct {
	// Path is the pcap file captured packets are written to. If empty, stages in sniffers mode
	// cannot be created.
	Path    string `yaml:"path"`
	Snaplen uint32 `yaml:"snaplen"`
}

// NetstackConfig holds the userspace network stack sink settings.
type NetstackConfig struct {
	// Address is the ip address assigned to the netstack NIC, packets destined elsewhere are
	// counted and dropped by the netstack itself.
	Address string `yaml:"address"`
	MTU     uint32 `yaml:"mtu"`
}

// HookConfig is a command that can be invoked as a write handler.
type HookConfig struct {
	Name    string   `yaml:"name"`
	Command []string `yaml:"command"`
}

// StageConfig holds the configuration for a single delivery stage.
type StageConfig struct {
	// Name is the stage name, it prefixes the stage handlers, e.g. "<name>.drops".
	Name string `yaml:"name"`
	// Device is the name, alias, or hardware address of the device the stage binds to. If empty
	// the stage does not bind and packets are delivered with their own device annotation.
	Device string `yaml:"device"`
	// Sniffers sends accepted packets only to the capture sink, never to the host stack.
	Sniffers bool `yaml:"sniffers"`
	// Quiet suppresses device up/down and missing device messages.
	Quiet bool `yaml:"quiet"`
	// AllowNonexistent makes a missing device at initialization a warning rather than an error,
	// the stage then binds whenever the device shows up.
	AllowNonexistent bool `yaml:"allow_nonexistent"`
	// UpCall is a write handler reference, "<handler> [value]", invoked when the device comes up.
	UpCall string `yaml:"up_call"`
	// DownCall is a write handler reference invoked when the device goes down, including at
	// teardown.
	DownCall string `yaml:"down_call"`
	// Sink is the host stack sink kind, defaults to tap.
	Sink SinkKind `yaml:"sink"`
	// Sources is a list of interfaces read from and pushed into this stage.
	Sources []string `yaml:"sources"`
}

// Bytes is a slice of bytes.
type Bytes []byte
