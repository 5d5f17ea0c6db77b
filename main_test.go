package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/config"
	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/domain"
	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/encoder"
	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/testhelpers"
)

const listDevicesScript = `
echo '[dshow @ 0x1] DirectShow audio devices' >&2
echo '[dshow @ 0x1]  "Line In"' >&2
echo '[dshow @ 0x1]     Alternative name "@device_cm_{33D9A762}"' >&2
echo '[dshow @ 0x1]  "Microphone (USB Audio Device)"' >&2
echo '[dshow @ 0x1] DirectShow video devices' >&2
echo '[dshow @ 0x1]  "Integrated Camera"' >&2
exit 1
`

func TestDevices(t *testing.T) {
	encoderPath := testhelpers.WriteFakeEncoder(t, listDevicesScript)

	stdout, _, err := runCommand(t.Context(), t, domain.AppName, "--encoder", encoderPath, "devices")
	require.NoError(t, err)
	assert.Equal(t, "Line In\nMicrophone (USB Audio Device)", chomp(stdout))
}

func TestDevicesDebugDir(t *testing.T) {
	encoderPath := testhelpers.WriteFakeEncoder(t, listDevicesScript)
	debugDir := t.TempDir()

	_, _, err := runCommand(t.Context(), t, domain.AppName, "--encoder", encoderPath, "--debug-dir", debugDir, "devices")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(debugDir, "devices_debug.txt"))
}

func TestDevicesEncoderNotFound(t *testing.T) {
	encoderPath := filepath.Join(t.TempDir(), encoder.BinaryName())

	_, _, err := runCommand(t.Context(), t, domain.AppName, "--encoder", encoderPath, "devices")
	require.ErrorIs(t, err, encoder.ErrNotFound)
}

func TestConfigPath(t *testing.T) {
	configPath := testhelpers.NewTestConfigFile(t)

	stdout, _, err := runCommand(t.Context(), t, domain.AppName, "--config", configPath, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, configPath, chomp(stdout))
}

func TestStreamInvalidConfig(t *testing.T) {
	configPath := testhelpers.NewTestConfigFile(t, config.Default())
	encoderPath := testhelpers.WriteFakeEncoder(t, "exec sleep 30")

	_, _, err := runCommand(t.Context(), t, domain.AppName, "--config", configPath, "--encoder", encoderPath, "stream")
	var validationErrs domain.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
	assert.Equal(t, []string{"audio_device"}, validationErrs.Fields())
}

func TestStreamStoppedUnexpectedly(t *testing.T) {
	configPath := testhelpers.NewTestConfigFile(t, testhelpers.ValidConfig())
	encoderPath := testhelpers.WriteFakeEncoder(t, `
echo "[tcp @ 0x1] Connection to tcp://172.236.22.5:8000 failed: Connection refused" >&2
exit 1
`)

	_, _, err := runCommand(t.Context(), t, domain.AppName, "--config", configPath, "--encoder", encoderPath, "stream")
	require.ErrorIs(t, err, errStreamStopped)
	assert.ErrorContains(t, err, "connection failed")
}

func TestStreamInterrupted(t *testing.T) {
	configPath := testhelpers.NewTestConfigFile(t, testhelpers.ValidConfig())
	encoderPath := testhelpers.WriteFakeEncoder(t, "exec sleep 30")

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	var stderr concurrentBuffer
	done := make(chan error)
	go func() {
		done <- run(ctx, &concurrentBuffer{}, &stderr, []string{domain.AppName, "--config", configPath, "--encoder", encoderPath, "stream", "--bitrate", "64k"})
	}()

	require.EventuallyWithT(
		t,
		func(c *assert.CollectT) {
			assert.Contains(c, stderr.String(), `msg="Stream state changed" status=streaming`)
		},
		5*time.Second,
		100*time.Millisecond,
	)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timed out waiting for stream command to exit")
	}

	assert.Contains(t, stderr.String(), `msg="Stopping stream"`)
}

func runCommand(ctx context.Context, _ *testing.T, args ...string) (string, string, error) {
	var stdout, stderr concurrentBuffer

	err := run(ctx, &stdout, &stderr, args)
	if err != nil {
		return "", stderr.String(), err
	}

	return stdout.String(), stderr.String(), nil
}

func chomp(s string) string {
	return strings.TrimSuffix(s, "\n")
}

type concurrentBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (cb *concurrentBuffer) Write(p []byte) (n int, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.buf.Write(p)
}

func (cb *concurrentBuffer) String() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.buf.String()
}
