package config

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the settings file.
const FileName = "config.yaml"

const defaultChanSize = 64

// PathFunc is a function that returns the path of the settings file.
type PathFunc func() (string, error)

// ExecutablePath returns the path of the settings file, which lives beside
// the executable.
func ExecutablePath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("executable: %w", err)
	}

	return filepath.Join(filepath.Dir(exe), FileName), nil
}

// StaticPath returns a PathFunc that always returns the provided path.
func StaticPath(path string) PathFunc {
	return func() (string, error) { return path, nil }
}

// Load reads the configuration from the file at path.
//
// Load never fails: if the file does not exist the defaults are returned, and
// if it cannot be read or parsed a warning is logged and the defaults are
// returned. Keys missing from an otherwise valid file take their default
// value.
func Load(path string, logger *slog.Logger) Config {
	contents, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default()
	} else if err != nil {
		logger.Warn("Config file could not be read, using defaults", "path", path, "err", err)
		return Default()
	}

	cfg := Default()
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		logger.Warn("Config file is malformed, using defaults", "path", path, "err", err)
		return Default()
	}

	return cfg
}

// Save writes the full configuration to the file at path, overwriting it.
func Save(path string, cfg Config) error {
	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	if err = os.WriteFile(path, yamlBytes, 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}

// Service provides configuration services.
//
// Service is not thread-safe and should always be used from a single
// goroutine, apart from the channel exposed by [C].
type Service struct {
	path    string
	current Config
	configC chan Config
	logger  *slog.Logger
}

// NewDefaultService creates a new service with the settings file beside the
// executable.
func NewDefaultService(logger *slog.Logger) (*Service, error) {
	return NewService(ExecutablePath, defaultChanSize, logger)
}

// NewService creates a new service with the provided PathFunc, and loads the
// current configuration.
func NewService(pathFunc PathFunc, chanSize int, logger *slog.Logger) (*Service, error) {
	path, err := pathFunc()
	if err != nil {
		return nil, fmt.Errorf("config path: %w", err)
	}

	return &Service{
		path:    path,
		current: Load(path, logger),
		configC: make(chan Config, cmp.Or(chanSize, defaultChanSize)),
		logger:  logger,
	}, nil
}

// Path returns the path of the settings file.
func (s *Service) Path() string {
	return s.path
}

// Current returns the current configuration.
func (s *Service) Current() Config {
	return s.current
}

// C returns a channel that receives the configuration each time it is
// successfully updated by [SetConfig].
func (s *Service) C() <-chan Config {
	return s.configC
}

// SetConfig saves the configuration to disk and, if successful, makes it the
// current configuration.
func (s *Service) SetConfig(cfg Config) error {
	if err := Save(s.path, cfg); err != nil {
		return err
	}

	s.current = cfg

	select {
	case s.configC <- cfg:
	default:
		s.logger.Warn("Config update dropped")
	}

	return nil
}
