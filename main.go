package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/atotto/clipboard"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/app"
	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/config"
	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/devices"
	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/domain"
	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/encoder"
	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/event"
	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/stream"
	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/xdg"
)

var (
	// version is the version of the application.
	version string
	// commit is the commit hash of the application.
	commit string
	// date is the date of the build.
	date string
)

// errStreamStopped is returned by the stream command if the encoder exits
// without being asked to.
var errStreamStopped = errors.New("stream stopped unexpectedly")

func main() {
	if err := run(context.Background(), os.Stdout, os.Stderr, os.Args); err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	cmd := &cli.Command{
		Name:      domain.AppName,
		Usage:     "Stream a microphone to an Icecast server",
		Version:   cmp.Or(version, "0.0.0-devel"),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to the settings file, defaults to " + config.FileName + " beside the executable",
			},
			&cli.StringFlag{
				Name:  "encoder",
				Usage: "path to the encoder binary, defaults to " + encoder.BinaryName() + " beside the executable",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "path to the log file for the terminal user interface",
			},
			&cli.StringFlag{
				Name:  "debug-dir",
				Usage: "directory to write encoder diagnostics to",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Action: runTUI,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Start the terminal user interface (default)",
				Action: runTUI,
			},
			{
				Name:   "devices",
				Usage:  "List the audio capture devices",
				Action: listDevices,
			},
			{
				Name:  "stream",
				Usage: "Stream with the saved settings until interrupted",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "device",
						Usage: "audio device, overrides the saved setting",
					},
					&cli.StringFlag{
						Name:  "bitrate",
						Usage: "encoding bitrate, overrides the saved setting",
					},
				},
				Action: streamHeadless,
			},
			{
				Name:  "config",
				Usage: "Manage the settings file",
				Commands: []*cli.Command{
					{
						Name:  "path",
						Usage: "Print the path of the settings file",
						Action: func(ctx context.Context, c *cli.Command) error {
							configService, err := newConfigService(c, newLogger(c, c.Root().ErrWriter))
							if err != nil {
								return err
							}

							_, err = fmt.Fprintln(c.Root().Writer, configService.Path())
							return err
						},
					},
				},
			},
		},
	}

	return cmd.Run(ctx, args)
}

func runTUI(ctx context.Context, c *cli.Command) error {
	logFile, err := openLogFile(c.String("log-file"))
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	logger := newLogger(c, logFile)

	configService, err := newConfigService(c, logger.With("component", "config"))
	if err != nil {
		return err
	}

	enc, err := newEncoder(c, logger)
	if err != nil {
		return err
	}

	return app.Run(ctx, app.RunParams{
		ConfigService:      configService,
		Encoder:            enc,
		DebugDir:           c.String("debug-dir"),
		ClipboardAvailable: !clipboard.Unsupported,
		BuildInfo:          buildInfo(),
		Logger:             logger,
	})
}

func listDevices(ctx context.Context, c *cli.Command) error {
	logger := newLogger(c, c.Root().ErrWriter)

	enc, err := newEncoder(c, logger)
	if err != nil {
		return err
	}

	result := devices.NewEnumerator(devices.NewEnumeratorParams{
		Runner:   enc,
		DebugDir: c.String("debug-dir"),
		Logger:   logger.With("component", "devices"),
	}).List(ctx)
	if result.Err != nil {
		return fmt.Errorf("list devices: %w", result.Err)
	}

	for _, device := range result.Devices {
		if _, err := fmt.Fprintln(c.Root().Writer, device); err != nil {
			return err
		}
	}

	return nil
}

func streamHeadless(ctx context.Context, c *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(c, c.Root().ErrWriter)

	configService, err := newConfigService(c, logger.With("component", "config"))
	if err != nil {
		return err
	}

	cfg := configService.Current()
	cfg.Device = cmp.Or(c.String("device"), cfg.Device)
	cfg.Bitrate = cmp.Or(c.String("bitrate"), cfg.Bitrate)

	enc, err := newEncoder(c, logger)
	if err != nil {
		return err
	}

	bus := event.NewBus(logger.With("component", "event_bus"))
	eventsC := bus.Register(event.EventNameStreamStateChanged)
	defer bus.Deregister(eventsC)

	// The actor outlives the signal context, so that the stream is stopped
	// rather than abandoned.
	actor := stream.StartActor(context.WithoutCancel(ctx), stream.StartActorParams{
		Launcher: enc,
		EventBus: bus,
		Logger:   logger.With("component", "stream"),
	})
	defer actor.Close()

	if err := actor.Start(cfg); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case evt, ok := <-eventsC:
				if !ok {
					return nil
				}

				state := evt.(event.StreamStateChangedEvent).State
				logger.Info("Stream state changed", "status", state.Status, "url", state.URL)

				if state.Status == domain.StreamStatusStoppedUnexpectedly {
					return fmt.Errorf("%w: %s", errStreamStopped, state.ExitReason)
				}
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		actor.Stop()
		return nil
	})

	return g.Wait()
}

func newLogger(c *cli.Command, w io.Writer) *slog.Logger {
	var handlerOpts slog.HandlerOptions
	if c.Bool("debug") {
		handlerOpts.Level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(w, &handlerOpts))
}

// openLogFile opens the log file at path, or in the app state directory if
// path is empty.
func openLogFile(path string) (*os.File, error) {
	if path == "" {
		dir, err := xdg.CreateAppStateDir()
		if err != nil {
			return nil, fmt.Errorf("create app state dir: %w", err)
		}
		path = filepath.Join(dir, domain.AppName+".log")
	}

	return os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
}

func newConfigService(c *cli.Command, logger *slog.Logger) (*config.Service, error) {
	var (
		configService *config.Service
		err           error
	)
	if path := c.String("config"); path != "" {
		configService, err = config.NewService(config.StaticPath(path), 0, logger)
	} else {
		configService, err = config.NewDefaultService(logger)
	}
	if err != nil {
		return nil, fmt.Errorf("build config service: %w", err)
	}

	return configService, nil
}

func newEncoder(c *cli.Command, logger *slog.Logger) (*encoder.Encoder, error) {
	path := c.String("encoder")
	if path == "" {
		var err error
		if path, err = encoder.DefaultPath(); err != nil {
			return nil, fmt.Errorf("encoder path: %w", err)
		}
	}

	return encoder.New(path, logger.With("component", "encoder")), nil
}

func buildInfo() domain.BuildInfo {
	info := domain.BuildInfo{Version: version, Commit: commit, Date: date}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.GoVersion = bi.GoVersion
	}

	return info
}
