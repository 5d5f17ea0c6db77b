// Package stream supervises the encoder process for the outgoing stream.
package stream

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/config"
	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/domain"
	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/encoder"
	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/event"
)

var (
	// ErrAlreadyStreaming is returned by [Actor.Start] if the stream is
	// already active. It is informational: the active stream is unaffected.
	ErrAlreadyStreaming = errors.New("stream already active")
	// ErrSpawn is returned by [Actor.Start] if the encoder could not be
	// started.
	ErrSpawn = errors.New("encoder failed to start")
	// ErrClosed is returned if the actor has been closed.
	ErrClosed = errors.New("stream supervisor closed")
)

const defaultMaxLogLines = 50

// action is an action to be performed by the actor.
type action func()

// session is a single encoder process.
type session struct {
	id   uuid.UUID
	proc encoder.Process
	logs *logBuffer
}

// Actor is responsible for managing the encoder process.
//
// All mutable state is owned by the actor goroutine. The goroutine which
// waits for the encoder to exit reports back by sending an action to it.
type Actor struct {
	wg          sync.WaitGroup
	cancel      context.CancelFunc
	actorC      chan action
	doneC       chan struct{}
	launcher    encoder.Launcher
	bus         *event.Bus
	maxLogLines int
	logger      *slog.Logger

	// mutable state

	state   domain.Stream
	session *session
}

// StartActorParams contains the parameters for starting a new stream actor.
type StartActorParams struct {
	Launcher    encoder.Launcher
	EventBus    *event.Bus
	MaxLogLines int // defaults to 50
	Logger      *slog.Logger
}

// StartActor starts a new stream actor.
//
// State changes are published to the event bus as
// [event.StreamStateChangedEvent].
func StartActor(ctx context.Context, params StartActorParams) *Actor {
	ctx, cancel := context.WithCancel(ctx)

	actor := &Actor{
		cancel:      cancel,
		actorC:      make(chan action),
		doneC:       make(chan struct{}),
		launcher:    params.Launcher,
		bus:         params.EventBus,
		maxLogLines: cmp.Or(params.MaxLogLines, defaultMaxLogLines),
		logger:      params.Logger,
	}

	go actor.actorLoop(ctx)

	return actor
}

// Start starts streaming with the provided configuration.
//
// If the stream is already active, [ErrAlreadyStreaming] is returned. If the
// configuration is not valid, a [domain.ValidationErrors] is returned. If the
// encoder could not be started, the error wraps [ErrSpawn]. In each of these
// cases the state is unchanged.
func (a *Actor) Start(cfg config.Config) error {
	errC := make(chan error, 1)
	if !a.do(func() { errC <- a.start(cfg) }) {
		return ErrClosed
	}

	return <-errC
}

// Stop requests the encoder to terminate, and moves the stream to the idle
// state. It does not wait for the encoder to exit, and is a no-op if the
// stream is not active.
func (a *Actor) Stop() {
	doneC := make(chan struct{})
	if a.do(func() { a.stop(); close(doneC) }) {
		<-doneC
	}
}

// Acknowledge moves a stream which stopped unexpectedly to the idle state.
func (a *Actor) Acknowledge() {
	doneC := make(chan struct{})
	if a.do(func() { a.acknowledge(); close(doneC) }) {
		<-doneC
	}
}

// State returns the current state of the stream.
func (a *Actor) State() domain.Stream {
	stateC := make(chan domain.Stream, 1)
	if !a.do(func() { stateC <- a.state }) {
		return domain.Stream{}
	}

	return <-stateC
}

// Close terminates the encoder, if it is running, and stops the actor.
func (a *Actor) Close() {
	a.cancel()
	<-a.doneC
	a.wg.Wait()
}

// do sends an action to the actor goroutine. It returns false if the actor
// has been closed, in which case the action will never run.
func (a *Actor) do(act action) bool {
	select {
	case a.actorC <- act:
		return true
	case <-a.doneC:
		return false
	}
}

// actorLoop is the main actor loop.
func (a *Actor) actorLoop(ctx context.Context) {
	defer close(a.doneC)

	for {
		select {
		case <-ctx.Done():
			if a.session != nil {
				a.logger.Info("Terminating encoder", "session", a.session.id)
				a.terminate(a.session)
				a.session = nil
			}
			return
		case act := <-a.actorC:
			act()
		}
	}
}

func (a *Actor) start(cfg config.Config) error {
	if a.session != nil {
		a.logger.Info("Stream already active", "session", a.session.id)
		return ErrAlreadyStreaming
	}

	if errs := Validate(cfg); len(errs) > 0 {
		a.logger.Info("Stream configuration invalid", "fields", errs.Fields())
		return errs
	}

	dest := encoder.Destination{
		Host:  strings.TrimSpace(cfg.Host),
		Port:  strings.TrimSpace(cfg.Port),
		Mount: strings.TrimSpace(cfg.Mount),
		User:  cfg.User,
		Pass:  cfg.Pass,
	}
	args := encoder.StreamArgs(encoder.StreamParams{
		Device:      cfg.Device,
		Bitrate:     cmp.Or(cfg.Bitrate, config.DefaultBitrate),
		Destination: dest,
	})

	id := uuid.New()
	logger := a.logger.With("session", id)
	logs := newLogBuffer(a.maxLogLines, logger)

	logger.Info("Starting stream", "device", cfg.Device, "url", dest.RedactedURL())
	proc, err := a.launcher.Launch(args, logs)
	if err != nil {
		logger.Error("Failed to start encoder", "err", err)
		return fmt.Errorf("%w: %w", ErrSpawn, err)
	}

	sess := &session{id: id, proc: proc, logs: logs}
	a.session = sess
	a.setState(domain.Stream{
		Status:    domain.StreamStatusStreaming,
		SessionID: id,
		StartedAt: time.Now(),
		URL:       dest.RedactedURL(),
	})

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		err := proc.Wait()
		if !a.do(func() { a.handleExit(sess, err) }) {
			logger.Debug("Encoder exited after close", "err", err)
		}
	}()

	return nil
}

func (a *Actor) stop() {
	if a.session != nil {
		a.logger.Info("Stopping stream", "session", a.session.id)
		a.terminate(a.session)
		a.session = nil
	}

	a.setState(domain.Stream{Status: domain.StreamStatusIdle})
}

func (a *Actor) acknowledge() {
	if a.state.Status != domain.StreamStatusStoppedUnexpectedly {
		return
	}

	a.setState(domain.Stream{Status: domain.StreamStatusIdle})
}

// handleExit is called on the actor goroutine when an encoder process exits.
func (a *Actor) handleExit(sess *session, waitErr error) {
	// The session has already been stopped, or replaced by a newer one.
	if a.session != sess {
		a.logger.Debug("Encoder exited", "session", sess.id, "err", waitErr)
		return
	}

	exitErr := errFromLogs(sess.logs.Lines(), waitErr)
	a.logger.Warn("Stream stopped unexpectedly", "session", sess.id, "err", waitErr, "reason", exitErr)

	a.session = nil
	a.setState(domain.Stream{
		Status:     domain.StreamStatusStoppedUnexpectedly,
		SessionID:  sess.id,
		StartedAt:  a.state.StartedAt,
		URL:        a.state.URL,
		ExitReason: exitErr.Error(),
	})
}

func (a *Actor) terminate(sess *session) {
	if err := sess.proc.Terminate(); err != nil {
		a.logger.Error("Failed to terminate encoder", "session", sess.id, "err", err)
	}
}

func (a *Actor) setState(state domain.Stream) {
	if state == a.state {
		return
	}

	a.state = state
	a.bus.Send(event.StreamStateChangedEvent{State: state})
}

// Validate checks that cfg contains everything needed to start a stream.
func Validate(cfg config.Config) domain.ValidationErrors {
	errs := make(domain.ValidationErrors)

	if strings.TrimSpace(cfg.Device) == "" {
		errs.Append("audio_device", "An audio device must be selected")
	}

	for _, field := range []struct {
		key, label, value string
	}{
		{"icecast_host", "Host", cfg.Host},
		{"icecast_port", "Port", cfg.Port},
		{"icecast_mount", "Mount", strings.TrimPrefix(strings.TrimSpace(cfg.Mount), "/")},
		{"icecast_user", "Username", cfg.User},
		{"icecast_pass", "Password", cfg.Pass},
	} {
		if strings.TrimSpace(field.value) == "" {
			errs.Append(field.key, field.label+" cannot be empty")
		}
	}

	return errs
}
