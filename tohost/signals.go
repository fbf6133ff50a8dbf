package tohost

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

var onlyOneSignalHandler = make(chan struct{}) //nolint: gochecknoglobals

// SignalHandledContext returns a context that will be canceled if a SIGINT or SIGTERM is
// received. A second signal exits the program.
func SignalHandledContext(
	logf func(msg string, args ...any),
) (context.Context, context.CancelFunc) {
	// panics when called twice, this way there can only be one signal handled context
	close(onlyOneSignalHandler)

	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 2) //nolint:gomnd

	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigs
		logf("received signal, canceling context", "signal", sig.String())

		cancel()

		sig = <-sigs
		logf("received second signal, exiting program", "signal", sig.String())

		os.Exit(130) //nolint:gomnd
	}()

	return ctx, cancel
}
