package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ErrNotFound is returned when the encoder binary does not exist.
var ErrNotFound = errors.New("encoder not found")

// BinaryName returns the file name of the encoder binary for the current
// platform.
func BinaryName() string {
	if runtime.GOOS == "windows" {
		return "ffmpeg.exe"
	}
	return "ffmpeg"
}

// DefaultPath returns the default encoder path. The encoder is expected to
// live beside the executable. If it does not, but an encoder is available on
// the PATH, that is used instead. Otherwise the path beside the executable is
// returned, so that errors refer to the expected location.
func DefaultPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("executable: %w", err)
	}

	path := filepath.Join(filepath.Dir(exe), BinaryName())
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if lookedUp, err := exec.LookPath(BinaryName()); err == nil {
		return lookedUp, nil
	}

	return path, nil
}

// Process is a running encoder process.
type Process interface {
	// Wait blocks until the process exits.
	Wait() error
	// Terminate requests the process to exit. It does not wait.
	Terminate() error
}

// Launcher launches encoder processes.
type Launcher interface {
	Launch(args []string, output io.Writer) (Process, error)
}

// Encoder runs the external encoder binary.
type Encoder struct {
	path   string
	logger *slog.Logger
}

// New creates a new Encoder for the binary at path.
func New(path string, logger *slog.Logger) *Encoder {
	return &Encoder{path: path, logger: logger}
}

// Path returns the path to the encoder binary.
func (e *Encoder) Path() string {
	return e.path
}

// Check returns an error wrapping [ErrNotFound] if the encoder binary does not
// exist.
func (e *Encoder) Check() error {
	info, err := os.Stat(e.path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, e.path)
	} else if err != nil {
		return fmt.Errorf("stat: %w", err)
	}

	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrNotFound, e.path)
	}

	return nil
}

// Diagnostics runs the encoder to completion and returns its diagnostic
// (stderr) output. A non-zero exit status is returned as an *exec.ExitError
// along with the output.
func (e *Encoder) Diagnostics(ctx context.Context, args []string) ([]byte, error) {
	if err := e.Check(); err != nil {
		return nil, err
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.path, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr
	hideWindow(cmd)

	e.logger.Debug("Running encoder", "args", args)
	err := cmd.Run()

	return stderr.Bytes(), err
}

// Launch starts the encoder in the background, with no visible window. Its
// diagnostic output is written to output, and its standard output is
// discarded.
func (e *Encoder) Launch(args []string, output io.Writer) (Process, error) {
	if err := e.Check(); err != nil {
		return nil, err
	}

	cmd := exec.Command(e.path, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = output
	hideWindow(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	e.logger.Info("Started encoder", "pid", cmd.Process.Pid)

	return &process{cmd: cmd}, nil
}

type process struct {
	cmd *exec.Cmd
}

func (p *process) Wait() error {
	return p.cmd.Wait()
}

func (p *process) Terminate() error {
	if err := terminate(p.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}

	return nil
}
