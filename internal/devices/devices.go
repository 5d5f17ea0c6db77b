// Package devices discovers the audio capture devices reported by the
// encoder.
package devices

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/encoder"
)

// Names of the files written to the debug directory, if one is configured.
const (
	DiagnosticsDumpFileName = "devices_debug.txt"
	ErrorDumpFileName       = "error_debug.txt"
)

const maxLineLen = 1024 * 1024

// Result is the result of an enumeration. If Err is set, Devices is empty.
type Result struct {
	Devices []string
	Err     error
}

// DiagnosticsRunner runs the encoder and returns its diagnostic output.
type DiagnosticsRunner interface {
	Path() string
	Check() error
	Diagnostics(ctx context.Context, args []string) ([]byte, error)
}

// Enumerator lists the audio capture devices known to the encoder.
type Enumerator struct {
	runner   DiagnosticsRunner
	debugDir string
	logger   *slog.Logger
}

// NewEnumeratorParams contains the parameters for building an Enumerator.
type NewEnumeratorParams struct {
	Runner   DiagnosticsRunner
	DebugDir string // optional, raw encoder output is dumped here if set
	Logger   *slog.Logger
}

// NewEnumerator creates a new Enumerator.
func NewEnumerator(params NewEnumeratorParams) *Enumerator {
	return &Enumerator{
		runner:   params.Runner,
		debugDir: params.DebugDir,
		logger:   params.Logger,
	}
}

// List invokes the encoder and returns the audio capture devices it reports,
// in the order they were reported.
//
// List never returns an error directly. Failures are reported in
// [Result.Err]. If the encoder binary is missing, Result.Err wraps
// [encoder.ErrNotFound] and the encoder is not invoked.
func (e *Enumerator) List(ctx context.Context) Result {
	if err := e.runner.Check(); err != nil {
		e.logger.Warn("Encoder unavailable", "err", err)
		e.dumpError(err)
		return Result{Err: err}
	}

	output, err := e.runner.Diagnostics(ctx, encoder.ListDevicesArgs())
	// The encoder always exits with an error, because the dummy input cannot
	// be opened.
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		err = fmt.Errorf("run encoder: %w", err)
		e.logger.Error("Device enumeration failed", "err", err)
		e.dumpError(err)
		return Result{Err: err}
	}

	e.dump(DiagnosticsDumpFileName, output)

	devices, err := Parse(bytes.NewReader(output))
	if err != nil {
		err = fmt.Errorf("parse: %w", err)
		e.logger.Error("Device enumeration failed", "err", err)
		e.dumpError(err)
		return Result{Err: err}
	}

	e.logger.Info("Listed audio devices", "count", len(devices))

	return Result{Devices: devices}
}

func (e *Enumerator) dumpError(err error) {
	_, statErr := os.Stat(e.runner.Path())
	e.dump(
		ErrorDumpFileName,
		fmt.Appendf(nil, "Error: %s\nEncoder path: %s\nExists: %t\n", err, e.runner.Path(), statErr == nil),
	)
}

func (e *Enumerator) dump(name string, contents []byte) {
	if e.debugDir == "" {
		return
	}

	path := filepath.Join(e.debugDir, name)
	if err := os.WriteFile(path, contents, 0644); err != nil {
		e.logger.Debug("Failed to write debug file", "path", path, "err", err)
	}
}

// Parse scans the encoder's diagnostic output and returns the display names
// found in the audio devices section.
//
// The section begins at a line containing an "audio devices" marker, and ends
// at the first "video devices" marker after it. Nothing after the end of the
// section is read. Within the section, the first double-quoted string on each
// line is a candidate name. Alternative names (beginning with '@'), and names
// shorter than two characters, are skipped. Duplicates are preserved.
func Parse(r io.Reader) ([]string, error) {
	var (
		devices        []string
		inAudioSection bool
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLen)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		// The video marker is checked first. Some encoder versions print
		// "DirectShow video devices (some may be both video and audio
		// devices)", which must end the audio section rather than open it.
		if isVideoMarker(line) {
			if inAudioSection {
				break
			}
			continue
		}

		if isAudioMarker(line) {
			inAudioSection = true
			continue
		}

		if !inAudioSection {
			continue
		}

		if name, ok := quoted(line); ok && isDisplayName(name) {
			devices = append(devices, name)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return devices, nil
}

// SelectDevice returns the device which should be selected after an
// enumeration: the saved device if it is still present, otherwise the first
// device. If there are no devices the saved device is returned unchanged, so
// that it can still be entered manually.
func SelectDevice(saved string, devices []string) string {
	if slices.Contains(devices, saved) || len(devices) == 0 {
		return saved
	}

	return devices[0]
}

func isAudioMarker(line string) bool {
	return strings.Contains(strings.ToLower(line), "audio devices") || strings.Contains(line, "DirectShow audio")
}

func isVideoMarker(line string) bool {
	return strings.Contains(strings.ToLower(line), "video devices") || strings.Contains(line, "DirectShow video")
}

// quoted returns the text between the first and second double quote in line.
func quoted(line string) (string, bool) {
	_, rest, ok := strings.Cut(line, `"`)
	if !ok {
		return "", false
	}

	name, _, ok := strings.Cut(rest, `"`)
	return name, ok
}

func isDisplayName(name string) bool {
	return utf8.RuneCountInString(name) > 1 && !strings.HasPrefix(name, "@")
}
