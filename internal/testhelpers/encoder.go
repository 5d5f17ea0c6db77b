package testhelpers

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteFakeEncoder writes an executable shell script standing in for the
// encoder binary, and returns its path. The script body receives the encoder
// arguments as "$@".
//
// The test is skipped on Windows.
func WriteFakeEncoder(t *testing.T, body string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake encoder requires a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))

	return path
}
