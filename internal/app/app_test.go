package app

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/domain"
	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/encoder"
	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/event"
	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/stream"
)

func TestApplyDevices(t *testing.T) {
	testCases := []struct {
		name    string
		evt     event.DevicesListedEvent
		saved   string
		current string
		want    string
	}{
		{
			name:  "saved device present",
			evt:   event.DevicesListedEvent{Devices: []string{"Mic A", "Mic B"}},
			saved: "Mic B",
			want:  "Mic B",
		},
		{
			name:  "saved device missing",
			evt:   event.DevicesListedEvent{Devices: []string{"Mic A", "Mic B"}},
			saved: "Mic C",
			want:  "Mic A",
		},
		{
			name:    "current device kept",
			evt:     event.DevicesListedEvent{Devices: []string{"Mic A", "Mic B"}},
			saved:   "Mic A",
			current: "Mic B",
			want:    "Mic B",
		},
		{
			name:    "current device removed",
			evt:     event.DevicesListedEvent{Devices: []string{"Mic A"}},
			saved:   "Mic A",
			current: "Mic B",
			want:    "Mic A",
		},
		{
			name:  "no devices",
			evt:   event.DevicesListedEvent{Err: errors.New("boom")},
			saved: "Mic A",
			want:  "Mic A",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			state := domain.AppState{Device: tc.current, Devices: []string{"stale"}}
			applyDevices(tc.evt, tc.saved, &state)

			assert.Equal(t, tc.evt.Devices, state.Devices)
			assert.Equal(t, tc.want, state.Device)
		})
	}
}

func TestStoppedUnexpectedly(t *testing.T) {
	id1, id2 := uuid.New(), uuid.New()

	testCases := []struct {
		name string
		prev domain.Stream
		next domain.Stream
		want bool
	}{
		{
			name: "streaming to stopped",
			prev: domain.Stream{Status: domain.StreamStatusStreaming, SessionID: id1},
			next: domain.Stream{Status: domain.StreamStatusStoppedUnexpectedly, SessionID: id1},
			want: true,
		},
		{
			name: "missed streaming state",
			prev: domain.Stream{Status: domain.StreamStatusIdle},
			next: domain.Stream{Status: domain.StreamStatusStoppedUnexpectedly, SessionID: id1},
			want: true,
		},
		{
			name: "stopped again in a new session",
			prev: domain.Stream{Status: domain.StreamStatusStoppedUnexpectedly, SessionID: id1},
			next: domain.Stream{Status: domain.StreamStatusStoppedUnexpectedly, SessionID: id2},
			want: true,
		},
		{
			name: "same stopped session",
			prev: domain.Stream{Status: domain.StreamStatusStoppedUnexpectedly, SessionID: id1},
			next: domain.Stream{Status: domain.StreamStatusStoppedUnexpectedly, SessionID: id1},
			want: false,
		},
		{
			name: "stopped by user",
			prev: domain.Stream{Status: domain.StreamStatusStreaming, SessionID: id1},
			next: domain.Stream{Status: domain.StreamStatusIdle},
			want: false,
		},
		{
			name: "started",
			prev: domain.Stream{Status: domain.StreamStatusIdle},
			next: domain.Stream{Status: domain.StreamStatusStreaming, SessionID: id1},
			want: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, stoppedUnexpectedly(tc.prev, tc.next))
		})
	}
}

func TestDevicesMessage(t *testing.T) {
	testCases := []struct {
		name string
		evt  event.DevicesListedEvent
		want string
	}{
		{
			name: "devices found",
			evt:  event.DevicesListedEvent{Devices: []string{"Mic A"}},
			want: "",
		},
		{
			name: "no devices",
			evt:  event.DevicesListedEvent{},
			want: "No audio input devices were found.",
		},
		{
			name: "encoder not found",
			evt:  event.DevicesListedEvent{Err: fmt.Errorf("%w: /opt/ffmpeg", encoder.ErrNotFound)},
			want: encoder.BinaryName() + " was not found.\n\nDownload it and copy it to:\n\n/opt/ffmpeg",
		},
		{
			name: "other error",
			evt:  event.DevicesListedEvent{Err: errors.New("run encoder: boom")},
			want: "Listing audio devices failed:\n\nrun encoder: boom",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, devicesMessage(tc.evt, "/opt/ffmpeg"))
		})
	}
}

func TestStartErrorMessage(t *testing.T) {
	validationErrs := make(domain.ValidationErrors)
	validationErrs.Append("icecast_host", "Host cannot be empty")

	testCases := []struct {
		name     string
		err      error
		wantMsg  string
		wantInfo bool
	}{
		{
			name:     "already streaming",
			err:      stream.ErrAlreadyStreaming,
			wantMsg:  "The stream is already active.",
			wantInfo: true,
		},
		{
			name:    "validation",
			err:     validationErrs,
			wantMsg: "Please check the settings:\n\nHost cannot be empty",
		},
		{
			name:    "encoder not found",
			err:     fmt.Errorf("%w: %w", stream.ErrSpawn, fmt.Errorf("%w: /opt/ffmpeg", encoder.ErrNotFound)),
			wantMsg: encoder.BinaryName() + " was not found.\n\nDownload it and copy it to:\n\n/opt/ffmpeg",
		},
		{
			name:    "spawn",
			err:     fmt.Errorf("%w: %w", stream.ErrSpawn, errors.New("start: permission denied")),
			wantMsg: "Starting the encoder failed:\n\nencoder failed to start: start: permission denied",
		},
		{
			name:    "other",
			err:     stream.ErrClosed,
			wantMsg: "Starting the stream failed:\n\nstream supervisor closed",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg, info := startErrorMessage(tc.err, "/opt/ffmpeg")
			assert.Equal(t, tc.wantMsg, msg)
			assert.Equal(t, tc.wantInfo, info)
		})
	}
}
