package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/config"
	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/devices"
	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/domain"
	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/encoder"
	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/event"
	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/stream"
	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/terminal"
)

// Encoder runs the encoder, both to list devices and to stream.
type Encoder interface {
	devices.DiagnosticsRunner
	encoder.Launcher
}

// RunParams holds the parameters for running the application.
type RunParams struct {
	ConfigService      *config.Service
	Encoder            Encoder
	DebugDir           string           // optional
	Screen             *terminal.Screen // Screen may be nil.
	ClipboardAvailable bool
	BuildInfo          domain.BuildInfo
	Logger             *slog.Logger
}

// Run starts the application, and blocks until it exits.
func Run(ctx context.Context, params RunParams) error {
	ctx, cancel := context.WithCancel(ctx)

	// Enumerations still in progress are cancelled and awaited on return.
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	// cfg is the current configuration of the application, as reflected in the
	// config file.
	cfg := params.ConfigService.Current()

	// state is the current state of the application, as reflected in the UI.
	state := &domain.AppState{Device: cfg.Device, BuildInfo: params.BuildInfo}

	logger := params.Logger
	ui, err := terminal.StartUI(ctx, terminal.StartParams{
		Screen:             params.Screen,
		ClipboardAvailable: params.ClipboardAvailable,
		Config:             cfg,
		ConfigFilePath:     params.ConfigService.Path(),
		BuildInfo:          params.BuildInfo,
		Logger:             logger.With("component", "ui"),
	})
	if err != nil {
		return fmt.Errorf("start terminal user interface: %w", err)
	}
	defer ui.Close()

	updateUI := func() { ui.SetState(*state) }
	updateUI()

	bus := event.NewBus(logger.With("component", "event_bus"))
	eventsC := bus.Register(event.EventNameStreamStateChanged, event.EventNameDevicesListed)
	defer bus.Deregister(eventsC)

	actor := stream.StartActor(ctx, stream.StartActorParams{
		Launcher: params.Encoder,
		EventBus: bus,
		Logger:   logger.With("component", "stream"),
	})
	defer actor.Close()

	enumerator := devices.NewEnumerator(devices.NewEnumeratorParams{
		Runner:   params.Encoder,
		DebugDir: params.DebugDir,
		Logger:   logger.With("component", "devices"),
	})

	var listing bool
	listDevices := func() {
		if listing {
			logger.Debug("Device enumeration already in progress")
			return
		}
		listing = true

		wg.Add(1)
		go func() {
			defer wg.Done()

			result := enumerator.List(ctx)
			bus.Send(event.DevicesListedEvent{Devices: result.Devices, Err: result.Err})
		}()
	}
	listDevices()

	const uiUpdateInterval = time.Second
	uiUpdateT := time.NewTicker(uiUpdateInterval)
	defer uiUpdateT.Stop()

	for {
		select {
		case cfg = <-params.ConfigService.C():
			logger.Debug("Config updated")
		case cmd, ok := <-ui.C():
			if !ok {
				logger.Info("UI closed")
				return nil
			}

			logger.Debug("Command received", "cmd", cmd.Name())
			switch c := cmd.(type) {
			case terminal.CommandStartStream:
				if err := actor.Start(c.Config); err != nil {
					msg, info := startErrorMessage(err, params.Encoder.Path())
					if info {
						ui.ShowInfoModal(msg)
					} else {
						ui.ShowErrorModal(msg)
					}
				}
			case terminal.CommandStopStream:
				wasActive := actor.State().Active()
				actor.Stop()
				if wasActive {
					ui.ShowInfoModal("The stream has been stopped.")
				}
			case terminal.CommandAcknowledgeStreamStopped:
				actor.Acknowledge()
			case terminal.CommandSaveConfig:
				if err := params.ConfigService.SetConfig(c.Config); err != nil {
					logger.Error("Config update failed", "err", err)
					ui.ShowErrorModal("Saving settings failed:\n\n" + err.Error())
					continue
				}
				ui.ShowInfoModal("Settings saved.")
			case terminal.CommandRefreshDevices:
				listDevices()
			case terminal.CommandQuit:
				return nil
			}
		case <-uiUpdateT.C:
			updateUI()
		case evt := <-eventsC:
			switch evt := evt.(type) {
			case event.StreamStateChangedEvent:
				logger.Debug("Stream state received", "status", evt.State.Status)
				if stoppedUnexpectedly(state.Stream, evt.State) {
					ui.ShowStreamStoppedModal(evt.State.ExitReason)
				}
				state.Stream = evt.State
			case event.DevicesListedEvent:
				listing = false
				applyDevices(evt, cfg.Device, state)
				if msg := devicesMessage(evt, params.Encoder.Path()); msg != "" {
					ui.ShowErrorModal(msg)
				}
			}

			updateUI()
		}
	}
}

// applyDevices applies the result of a device enumeration to the app state.
func applyDevices(evt event.DevicesListedEvent, saved string, appState *domain.AppState) {
	appState.Devices = evt.Devices
	// Keep the current choice if it is still available, falling back to the
	// saved device.
	if current := appState.Device; current != "" && slices.Contains(evt.Devices, current) {
		return
	}
	appState.Device = devices.SelectDevice(saved, evt.Devices)
}

// stoppedUnexpectedly returns true if the transition from prev to next is the
// stream stopping without being asked to.
func stoppedUnexpectedly(prev, next domain.Stream) bool {
	if next.Status != domain.StreamStatusStoppedUnexpectedly {
		return false
	}

	return prev.Status != domain.StreamStatusStoppedUnexpectedly || prev.SessionID != next.SessionID
}

// devicesMessage returns the message to show the user after a device
// enumeration, if any.
func devicesMessage(evt event.DevicesListedEvent, encoderPath string) string {
	switch {
	case errors.Is(evt.Err, encoder.ErrNotFound):
		return encoderNotFoundMessage(encoderPath)
	case evt.Err != nil:
		return "Listing audio devices failed:\n\n" + evt.Err.Error()
	case len(evt.Devices) == 0:
		return "No audio input devices were found."
	default:
		return ""
	}
}

// startErrorMessage returns the message to show the user when starting the
// stream failed. info is true if the message is informational rather than an
// error.
func startErrorMessage(err error, encoderPath string) (msg string, info bool) {
	var validationErrs domain.ValidationErrors

	switch {
	case errors.Is(err, stream.ErrAlreadyStreaming):
		return "The stream is already active.", true
	case errors.As(err, &validationErrs):
		return "Please check the settings:\n\n" + validationErrs.Error(), false
	case errors.Is(err, encoder.ErrNotFound):
		return encoderNotFoundMessage(encoderPath), false
	case errors.Is(err, stream.ErrSpawn):
		return "Starting the encoder failed:\n\n" + err.Error(), false
	default:
		return "Starting the stream failed:\n\n" + err.Error(), false
	}
}

func encoderNotFoundMessage(encoderPath string) string {
	return fmt.Sprintf("%s was not found.\n\nDownload it and copy it to:\n\n%s", encoder.BinaryName(), encoderPath)
}
