package event

import "github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/domain"

type Name string

const (
	EventNameStreamStateChanged Name = "stream_state_changed"
	EventNameDevicesListed      Name = "devices_listed"
)

// Event represents something which happened in the application.
type Event interface {
	name() Name
}

// StreamStateChangedEvent is emitted when the state of the stream changes.
type StreamStateChangedEvent struct {
	State domain.Stream
}

func (e StreamStateChangedEvent) name() Name {
	return EventNameStreamStateChanged
}

// DevicesListedEvent is emitted when a device enumeration completes.
type DevicesListedEvent struct {
	Devices []string
	Err     error
}

func (e DevicesListedEvent) name() Name {
	return EventNameDevicesListed
}
