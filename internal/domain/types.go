package domain

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AppName is the name of the app.
const AppName = "icecast-streamer"

// AppState holds application state.
type AppState struct {
	Stream    Stream
	Devices   []string
	Device    string
	BuildInfo BuildInfo
}

// Clone performs a deep copy of AppState.
func (s *AppState) Clone() AppState {
	return AppState{
		Stream:    s.Stream,
		Devices:   slices.Clone(s.Devices),
		Device:    s.Device,
		BuildInfo: s.BuildInfo,
	}
}

// BuildInfo holds information about the build.
type BuildInfo struct {
	GoVersion string
	Version   string
	Commit    string
	Date      string
}

// StreamStatus reflects the high-level status of the stream.
type StreamStatus int

const (
	StreamStatusIdle StreamStatus = iota
	StreamStatusStreaming
	StreamStatusStoppedUnexpectedly
)

// String implements the fmt.Stringer interface.
func (s StreamStatus) String() string {
	switch s {
	case StreamStatusIdle:
		return "idle"
	case StreamStatusStreaming:
		return "streaming"
	case StreamStatusStoppedUnexpectedly:
		return "stopped-unexpectedly"
	default:
		return "unknown"
	}
}

// Stream is the state of the single outgoing stream.
type Stream struct {
	Status     StreamStatus
	SessionID  uuid.UUID // zero value unless a session exists or just ended
	StartedAt  time.Time
	URL        string // destination URL, with the password redacted
	ExitReason string // set when Status is StreamStatusStoppedUnexpectedly
}

// Active returns true if an encoder process is running.
func (s Stream) Active() bool {
	return s.Status == StreamStatusStreaming
}

// ValidationErrors maps a field name to the problems found with it.
type ValidationErrors map[string][]string

// Append adds a message for the given field.
func (v ValidationErrors) Append(field, msg string) {
	v[field] = append(v[field], msg)
}

// Fields returns the names of the invalid fields, sorted.
func (v ValidationErrors) Fields() []string {
	return slices.Sorted(maps.Keys(v))
}

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	var msgs []string
	for _, field := range v.Fields() {
		msgs = append(msgs, v[field]...)
	}

	return strings.Join(msgs, "\n")
}
