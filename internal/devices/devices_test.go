package devices_test

import (
	"context"
	_ "embed"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/devices"
	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/encoder"
	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//go:embed testdata/dshow-video-first.txt
var outputVideoFirst string

func TestParse(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
		{
			name: "audio section then video section",
			input: `[dshow @ 0x1] DirectShow audio devices
[dshow @ 0x1]  "Mic A"
[dshow @ 0x1]  "Mic B"
[dshow @ 0x1] DirectShow video devices
[dshow @ 0x1]  "Camera"
[dshow @ 0x1] DirectShow audio devices
[dshow @ 0x1]  "Mic C"`,
			want: []string{"Mic A", "Mic B"},
		},
		{
			name:  "video section first",
			input: outputVideoFirst,
			want:  []string{"Microphone Array (Realtek(R) Audio)", "Microphone (USB Audio Device)"},
		},
		{
			name: "locale tolerant marker",
			input: `[dshow @ 0x1] Audio Devices:
[dshow @ 0x1]  "Mic A"
[dshow @ 0x1] Video Devices:
[dshow @ 0x1]  "Camera"`,
			want: []string{"Mic A"},
		},
		{
			name: "alternative names and short names skipped",
			input: `[dshow @ 0x1] DirectShow audio devices
[dshow @ 0x1]  "@device_1"
[dshow @ 0x1]  "X"
[dshow @ 0x1]  ""
[dshow @ 0x1]  "Mic A"`,
			want: []string{"Mic A"},
		},
		{
			name: "multi-byte names",
			input: `[dshow @ 0x1] DirectShow audio devices
[dshow @ 0x1]  "מ"
[dshow @ 0x1]  "מיקרופון"`,
			want: []string{"מיקרופון"},
		},
		{
			name: "first quoted string only",
			input: `[dshow @ 0x1] DirectShow audio devices
[dshow @ 0x1]  "Mic A" (audio) "ignored"`,
			want: []string{"Mic A"},
		},
		{
			name: "unterminated quote",
			input: `[dshow @ 0x1] DirectShow audio devices
[dshow @ 0x1]  "Mic A`,
			want: nil,
		},
		{
			name: "duplicates preserved",
			input: `[dshow @ 0x1] DirectShow audio devices
[dshow @ 0x1]  "Mic A"
[dshow @ 0x1]  "Mic A"`,
			want: []string{"Mic A", "Mic A"},
		},
		{
			name: "header with both markers ends the audio section",
			input: `[dshow @ 0x1] DirectShow audio devices
[dshow @ 0x1]  "Mic A"
[dshow @ 0x1] DirectShow video devices (some may be both video and audio devices)
[dshow @ 0x1]  "Camera"`,
			want: []string{"Mic A"},
		},
		{
			name: "header with both markers does not open the audio section",
			input: `[dshow @ 0x1] DirectShow video devices (some may be both video and audio devices)
[dshow @ 0x1]  "Camera"`,
			want: nil,
		},
		{
			name: "no audio section",
			input: `[dshow @ 0x1] DirectShow video devices
[dshow @ 0x1]  "Camera"`,
			want: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := devices.Parse(strings.NewReader(tc.input))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseLineTooLong(t *testing.T) {
	_, err := devices.Parse(strings.NewReader(strings.Repeat("x", 2*1024*1024)))
	require.Error(t, err)
}

func TestSelectDevice(t *testing.T) {
	testCases := []struct {
		name    string
		saved   string
		devices []string
		want    string
	}{
		{
			name:    "saved device present",
			saved:   "Mic B",
			devices: []string{"Mic A", "Mic B"},
			want:    "Mic B",
		},
		{
			name:    "saved device missing",
			saved:   "Mic C",
			devices: []string{"Mic A", "Mic B"},
			want:    "Mic A",
		},
		{
			name:    "no saved device",
			devices: []string{"Mic A"},
			want:    "Mic A",
		},
		{
			name:  "no devices",
			saved: "Mic C",
			want:  "Mic C",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, devices.SelectDevice(tc.saved, tc.devices))
		})
	}
}

type fakeRunner struct {
	path     string
	checkErr error
	output   []byte
	err      error
	calls    int
}

func (r *fakeRunner) Path() string { return r.path }

func (r *fakeRunner) Check() error { return r.checkErr }

func (r *fakeRunner) Diagnostics(_ context.Context, args []string) ([]byte, error) {
	r.calls++
	if !assertArgs(args) {
		return nil, errors.New("unexpected args")
	}
	return r.output, r.err
}

func assertArgs(args []string) bool {
	return strings.Join(args, " ") == "-list_devices true -f dshow -i dummy"
}

func TestEnumeratorEncoderNotFound(t *testing.T) {
	debugDir := t.TempDir()
	runner := &fakeRunner{path: "/nope/ffmpeg.exe", checkErr: encoder.ErrNotFound}
	enumerator := devices.NewEnumerator(devices.NewEnumeratorParams{
		Runner:   runner,
		DebugDir: debugDir,
		Logger:   testhelpers.NewTestLogger(),
	})

	result := enumerator.List(t.Context())
	require.ErrorIs(t, result.Err, encoder.ErrNotFound)
	assert.Empty(t, result.Devices)
	assert.Zero(t, runner.calls, "encoder must not be invoked")

	dump, err := os.ReadFile(filepath.Join(debugDir, devices.ErrorDumpFileName))
	require.NoError(t, err)
	assert.Equal(t, "Error: encoder not found\nEncoder path: /nope/ffmpeg.exe\nExists: false\n", string(dump))
}

func TestEnumeratorInvocationFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("permission denied")}
	enumerator := devices.NewEnumerator(devices.NewEnumeratorParams{
		Runner: runner,
		Logger: testhelpers.NewTestLogger(),
	})

	result := enumerator.List(t.Context())
	require.EqualError(t, result.Err, "run encoder: permission denied")
	assert.Empty(t, result.Devices)
	assert.Equal(t, 1, runner.calls)
}

func TestEnumeratorSuccess(t *testing.T) {
	debugDir := t.TempDir()
	runner := &fakeRunner{output: []byte(outputVideoFirst)}
	enumerator := devices.NewEnumerator(devices.NewEnumeratorParams{
		Runner:   runner,
		DebugDir: debugDir,
		Logger:   testhelpers.NewTestLogger(),
	})

	result := enumerator.List(t.Context())
	require.NoError(t, result.Err)
	assert.Equal(t, []string{"Microphone Array (Realtek(R) Audio)", "Microphone (USB Audio Device)"}, result.Devices)

	dump, err := os.ReadFile(filepath.Join(debugDir, devices.DiagnosticsDumpFileName))
	require.NoError(t, err)
	assert.Equal(t, outputVideoFirst, string(dump))
}

func TestEnumeratorWithEncoder(t *testing.T) {
	path := testhelpers.WriteFakeEncoder(t, `cat >&2 <<'OUT'
[dshow @ 0x1] DirectShow audio devices
[dshow @ 0x1]  "Mic A"
[dshow @ 0x1]     Alternative name "@device_cm_1"
[dshow @ 0x1]  "Mic B"
[dshow @ 0x1] DirectShow video devices
[dshow @ 0x1]  "Camera"
dummy: Immediate exit requested
OUT
exit 1`)

	enumerator := devices.NewEnumerator(devices.NewEnumeratorParams{
		Runner: encoder.New(path, testhelpers.NewTestLogger()),
		Logger: testhelpers.NewTestLogger(),
	})

	result := enumerator.List(t.Context())
	require.NoError(t, result.Err)
	assert.Equal(t, []string{"Mic A", "Mic B"}, result.Devices)
}
