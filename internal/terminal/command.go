package terminal

import "github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/config"

// CommandStartStream starts the stream.
type CommandStartStream struct {
	Config config.Config
}

// Name implements the Command interface.
func (c CommandStartStream) Name() string {
	return "start_stream"
}

// CommandStopStream stops the stream.
type CommandStopStream struct{}

// Name implements the Command interface.
func (c CommandStopStream) Name() string {
	return "stop_stream"
}

// CommandAcknowledgeStreamStopped acknowledges that the stream stopped
// unexpectedly.
type CommandAcknowledgeStreamStopped struct{}

// Name implements the Command interface.
func (c CommandAcknowledgeStreamStopped) Name() string {
	return "acknowledge_stream_stopped"
}

// CommandSaveConfig saves the configuration.
type CommandSaveConfig struct {
	Config config.Config
}

// Name implements the Command interface.
func (c CommandSaveConfig) Name() string {
	return "save_config"
}

// CommandRefreshDevices lists the audio devices again.
type CommandRefreshDevices struct{}

// Name implements the Command interface.
func (c CommandRefreshDevices) Name() string {
	return "refresh_devices"
}

// CommandQuit quits the app.
type CommandQuit struct{}

// Name implements the Command interface.
func (c CommandQuit) Name() string {
	return "quit"
}

// Command is an interface for commands that can be triggered by the terminal
// user interface.
type Command interface {
	Name() string
}
