package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/carlmontanari/tohost/tohost"
	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

const (
	configFlag     = "config"
	liveReloadFlag = "live-reload"
	logLevelFlag   = "log-level"
	addressFlag    = "address"

	readTimeout = 5 * time.Second
)

// ShowVersion shows the tohost version information.
func ShowVersion(_ *cli.Context) {
	fmt.Printf("\tversion: %s\n", tohost.Version)                            //nolint:forbidigo
	fmt.Printf("\tsource : %s\n", "https://github.com/carlmontanari/tohost") //nolint:forbidigo
}

func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level

	err := l.UnmarshalText([]byte(level))
	if err != nil {
		return nil, fmt.Errorf("%w: bad log level %q", tohost.ErrConfig, level)
	}

	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      l,
		TimeFormat: time.TimeOnly,
		NoColor:    !term.IsTerminal(int(os.Stderr.Fd())),
	})), nil
}

// Entrypoint loads the tohost config, creates the manager and starts it.
func Entrypoint() *cli.App {
	cli.VersionPrinter = ShowVersion

	return &cli.App{
		Name:    "tohost",
		Version: tohost.Version,
		Usage:   "deliver packets to the host!",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  logLevelFlag,
				Usage: "log level, one of debug, info, warn, error",
				Value: "info",
			},
		},
		DefaultCommand: "run",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the stages in a config file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     configFlag,
						Usage:    "tohost configuration file to load",
						Required: false,
						Value:    "tohost.yaml",
					},
					&cli.BoolFlag{
						Name:  liveReloadFlag,
						Usage: "restart stages when the configuration file changes",
					},
				},
				Action: run,
			},
			{
				Name:      "read",
				Usage:     "read a handler from a running tohost control socket",
				ArgsUsage: "<handler>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  addressFlag,
						Usage: "control socket address",
						Value: fmt.Sprintf("%s:%d", tohost.Address, tohost.Port),
					},
				},
				Action: read,
			},
		},
	}
}

func run(c *cli.Context) error {
	logger, err := newLogger(c.String(logLevelFlag))
	if err != nil {
		return err
	}

	ctx, cancel := tohost.SignalHandledContext(logger.Warn)
	defer cancel()

	m, err := tohost.NewManager(
		tohost.WithContext(ctx),
		tohost.WithLogger(logger),
		tohost.WithConfigFile(c.String(configFlag)),
		tohost.WithLiveReload(c.Bool(liveReloadFlag)),
	)
	if err != nil {
		return err
	}

	return m.Run()
}

func read(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("%w: read takes exactly one handler name", tohost.ErrConfig)
	}

	ctx, cancel := context.WithTimeout(c.Context, readTimeout)
	defer cancel()

	value, err := tohost.ReadControlHandler(ctx, c.String(addressFlag), c.Args().First())
	if err != nil {
		return err
	}

	fmt.Println(value) //nolint:forbidigo

	return nil
}
