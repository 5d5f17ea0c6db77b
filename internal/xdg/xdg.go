package xdg

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/domain"
)

// HomeDirFunc returns the user home directory.
type HomeDirFunc func() (string, error)

// CreateAppStateDir creates the application state directory, which is at:
//
//   - Linux: ~/.local/state/icecast-streamer
//   - macOS: ~/Library/Caches/icecast-streamer
//   - Windows: %LOCALAPPDATA%\icecast-streamer
func CreateAppStateDir() (string, error) {
	return createAppStateDir(runtime.GOOS, os.UserHomeDir, os.Getenv)
}

func createAppStateDir(goos string, homeDirFunc HomeDirFunc, getenv func(string) string) (string, error) {
	dir, err := appStateDir(goos, homeDirFunc, getenv)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0744); err != nil {
		return "", fmt.Errorf("mkdir all: %w", err)
	}

	return dir, nil
}

func appStateDir(goos string, homeDirFunc HomeDirFunc, getenv func(string) string) (string, error) {
	switch goos {
	case "windows":
		localAppData := getenv("LOCALAPPDATA")
		if localAppData == "" {
			return "", errors.New("LOCALAPPDATA not set")
		}
		return filepath.Join(localAppData, domain.AppName), nil
	case "darwin":
		userHomeDir, err := homeDirFunc()
		if err != nil {
			return "", err
		}
		return filepath.Join(userHomeDir, "Library", "Caches", domain.AppName), nil
	default: // Unix-like
		if stateHome := getenv("XDG_STATE_HOME"); stateHome != "" {
			return filepath.Join(stateHome, domain.AppName), nil
		}
		userHomeDir, err := homeDirFunc()
		if err != nil {
			return "", err
		}
		return filepath.Join(userHomeDir, ".local", "state", domain.AppName), nil
	}
}
