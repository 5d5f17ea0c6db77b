package stream

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

const maxPartialLineLen = 4096

// logBuffer is an io.Writer which receives the diagnostic output of the
// encoder, and retains the most recent lines.
//
// The encoder separates progress updates with carriage returns, so both '\r'
// and '\n' end a line.
type logBuffer struct {
	mu       sync.Mutex
	maxLines int
	lines    []string
	partial  []byte
	logger   *slog.Logger
}

func newLogBuffer(maxLines int, logger *slog.Logger) *logBuffer {
	return &logBuffer{maxLines: maxLines, logger: logger}
}

// Write implements io.Writer.
func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexAny(p, "\r\n")
		if i < 0 {
			b.partial = append(b.partial, p...)
			if len(b.partial) >= maxPartialLineLen {
				b.flush()
			}
			break
		}

		b.partial = append(b.partial, p[:i]...)
		b.flush()
		p = p[i+1:]
	}

	return n, nil
}

// Lines returns the retained lines, oldest first, including any incomplete
// final line.
func (b *logBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	lines := make([]string, 0, len(b.lines)+1)
	lines = append(lines, b.lines...)
	if line := strings.TrimSpace(string(b.partial)); line != "" {
		lines = append(lines, line)
	}

	return lines
}

// flush must be called with the mutex held.
func (b *logBuffer) flush() {
	line := strings.TrimSpace(string(b.partial))
	b.partial = b.partial[:0]
	if line == "" {
		return
	}

	b.logger.Debug("Encoder output", "line", line)

	b.lines = append(b.lines, line)
	if len(b.lines) > b.maxLines {
		b.lines = b.lines[len(b.lines)-b.maxLines:]
	}
}

// Reasons for an encoder exiting unexpectedly.
var (
	ErrUnknownHost        = errors.New("unknown host")
	ErrConnectionFailed   = errors.New("connection failed")
	ErrTimeout            = errors.New("connection timed out")
	ErrForbidden          = errors.New("authentication failed")
	ErrDeviceUnavailable  = errors.New("audio device unavailable")
	ErrExitedUnexpectedly = errors.New("encoder exited unexpectedly")
)

// errFromLogs infers the reason the encoder exited from its diagnostic output.
//
// If no known failure is found, the last line of output is used, falling back
// to the error returned from waiting for the process.
func errFromLogs(lines []string, waitErr error) error {
	matchers := []struct {
		err      error
		patterns []string
	}{
		{ErrUnknownHost, []string{"failed to resolve hostname", "name does not resolve", "name or service not known", "no such host"}},
		{ErrTimeout, []string{"timed out"}},
		{ErrForbidden, []string{"authentication failed", "authorization failed", "unauthorized", "forbidden", "access denied"}},
		{ErrConnectionFailed, []string{"connection refused", "broken pipe", "connection reset", "cannot open connection"}},
		{ErrDeviceUnavailable, []string{"could not find audio only device", "could not enumerate audio only devices", "could not run graph"}},
	}

	for _, m := range matchers {
		for _, line := range lines {
			lower := strings.ToLower(line)
			for _, pattern := range m.patterns {
				if strings.Contains(lower, pattern) {
					return m.err
				}
			}
		}
	}

	if len(lines) > 0 {
		return fmt.Errorf("%w: %s", ErrExitedUnexpectedly, lines[len(lines)-1])
	}

	if waitErr != nil {
		return fmt.Errorf("%w: %w", ErrExitedUnexpectedly, waitErr)
	}

	return ErrExitedUnexpectedly
}
