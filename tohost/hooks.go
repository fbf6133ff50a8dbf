package tohost

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
)

// hookWriteHandler returns a write handler that runs the hook command with the written value
// appended as its last argument. The triggering device, if any, is passed in the environment.
func hookWriteHandler(hook HookConfig, logger *slog.Logger) WriteHandler {
	return func(value string, dev *Device) error {
		ctx, cancel := context.WithTimeout(context.Background(), HookTimeout)
		defer cancel()

		args := append([]string{}, hook.Command[1:]...)
		if value != "" {
			args = append(args, value)
		}

		cmd := exec.CommandContext(ctx, hook.Command[0], args...) //nolint: gosec

		cmd.Env = append(os.Environ(), "TOHOST_HOOK="+hook.Name)

		if dev != nil {
			cmd.Env = append(
				cmd.Env,
				"TOHOST_DEVICE="+dev.Name,
				"TOHOST_DEVICE_INDEX="+strconv.Itoa(dev.Index),
			)
		}

		b, err := cmd.CombinedOutput()
		if err != nil {
			logger.Warn(
				"encountered error running hook",
				"hook", hook.Name,
				"output", string(b),
				"err", err,
			)

			return fmt.Errorf("%w: hook %q failed: %w", ErrHandler, hook.Name, err)
		}

		logger.Debug("ran hook", "hook", hook.Name, "value", value)

		return nil
	}
}

// addHookHandlers registers a "hook.<name>" write handler in t for each hook.
func addHookHandlers(t *HandlerTable, hooks []HookConfig, logger *slog.Logger) {
	for _, hook := range hooks {
		t.AddWrite("hook."+hook.Name, hookWriteHandler(hook, logger))
	}
}
