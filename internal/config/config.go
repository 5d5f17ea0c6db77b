package config

// Default values for each configuration key.
const (
	DefaultHost    = "172.236.22.5"
	DefaultPort    = "8000"
	DefaultMount   = "stream"
	DefaultUser    = "source"
	DefaultPass    = "sourcepass123"
	DefaultDevice  = ""
	DefaultBitrate = "128k"
)

// Bitrates holds the encoding bitrates offered to the user.
var Bitrates = []string{"64k", "96k", "128k", "192k", "256k", "320k"}

// Config holds the configuration for the application.
//
// Every field is always populated after loading: keys missing from the file
// take their default value.
type Config struct {
	Host    string `yaml:"icecast_host"`
	Port    string `yaml:"icecast_port"`
	Mount   string `yaml:"icecast_mount"`
	User    string `yaml:"icecast_user"`
	Pass    string `yaml:"icecast_pass"`
	Device  string `yaml:"audio_device"`
	Bitrate string `yaml:"bitrate"`
}

// Default returns a configuration with every key set to its default value.
func Default() Config {
	return Config{
		Host:    DefaultHost,
		Port:    DefaultPort,
		Mount:   DefaultMount,
		User:    DefaultUser,
		Pass:    DefaultPass,
		Device:  DefaultDevice,
		Bitrate: DefaultBitrate,
	}
}
