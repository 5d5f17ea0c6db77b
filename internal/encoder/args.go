package encoder

import (
	"fmt"
	"strings"
)

// Encoding parameters for the outgoing stream.
const (
	InputFormat = "dshow"
	Channels    = "1"
	SampleRate  = "44100"
	AudioCodec  = "libmp3lame"
	Container   = "mp3"
	ContentType = "audio/mpeg"
)

// ListDevicesArgs returns the arguments which make the encoder print the
// available capture devices to its diagnostic output.
func ListDevicesArgs() []string {
	return []string{"-list_devices", "true", "-f", InputFormat, "-i", "dummy"}
}

// Destination is an Icecast server mount point.
type Destination struct {
	Host  string
	Port  string
	Mount string
	User  string
	Pass  string
}

// URL returns the destination URL, including the credentials.
func (d Destination) URL() string {
	return d.url(d.Pass)
}

// RedactedURL returns the destination URL with the password masked, and is
// safe to log or display.
func (d Destination) RedactedURL() string {
	return d.url("xxxxx")
}

func (d Destination) url(pass string) string {
	return fmt.Sprintf(
		"icecast://%s:%s@%s:%s/%s",
		d.User,
		pass,
		d.Host,
		d.Port,
		strings.TrimPrefix(d.Mount, "/"),
	)
}

// ListenURL returns the URL listeners use to play the stream.
func (d Destination) ListenURL() string {
	return fmt.Sprintf("http://%s:%s/%s", d.Host, d.Port, strings.TrimPrefix(d.Mount, "/"))
}

// StreamParams holds the parameters for an outgoing stream.
type StreamParams struct {
	Device      string
	Bitrate     string
	Destination Destination
}

// StreamArgs returns the encoder arguments for an outgoing stream.
func StreamArgs(params StreamParams) []string {
	return []string{
		"-f", InputFormat,
		"-i", "audio=" + params.Device,
		"-ac", Channels,
		"-ar", SampleRate,
		"-c:a", AudioCodec,
		"-b:a", params.Bitrate,
		"-f", Container,
		"-content_type", ContentType,
		params.Destination.URL(),
	}
}
