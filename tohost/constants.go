package tohost

import "time"

const (
	// Version is the version of tohost, set w/ build flags in ci; only useful/relevant for cli.
	Version = "0.0.0"
)

const (
	// EthPAll is the already bit-shifted value of syscall.ETH_P_ALL.
	EthPAll = 768

	// TCP is a const for... TCP!
	TCP = "tcp"

	// Address is the default control socket listen address.
	Address = "127.0.0.1"

	// Port is the default control socket port.
	Port = 4799

	// ReadSize is the size of chunks we read from the interface a packet source consumes from.
	ReadSize = 65_500

	// Snaplen is the default maximum number of bytes of each packet written to a capture.
	Snaplen = 65_535

	// MTU is the mtu of the userspace netstack NIC when none is configured.
	MTU = 1_500

	// HookTimeout is the max amount of time a hook command may run for. Hooks used as up/down
	// calls run while the stage's binding is locked and on the registry's notification goroutine,
	// so a slow hook delays device events for every stage until it returns or times out.
	HookTimeout = 30 * time.Second
)

const (
	defaultSinkKind   = SinkKindTap
	sourceReadTimeout = 250 * time.Millisecond
	netstackQueueSize = 256
)
