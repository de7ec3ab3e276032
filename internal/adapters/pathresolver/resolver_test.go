package pathresolver

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_FindsExecutableOnPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bit semantics differ on windows")
	}
	dir := t.TempDir()
	tool := filepath.Join(dir, "fake-ffmpeg")
	require.NoError(t, os.WriteFile(tool, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	t.Setenv("PATH", dir)

	path, err := New().Resolve(context.Background(), "fake-ffmpeg")
	require.NoError(t, err)
	assert.Equal(t, tool, path)
}

func TestResolver_NotFound(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	path, err := New().Resolve(context.Background(), "definitely-not-installed")
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestResolver_InvalidName(t *testing.T) {
	called := false
	r := NewWithLookup(func(string) (string, error) {
		called = true
		return "/bin/sh", nil
	})

	path, err := r.Resolve(context.Background(), "ffmpeg;sh")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.False(t, called)
}

func TestResolver_LookupErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"not found", &exec.Error{Name: "ffmpeg", Err: exec.ErrNotFound}, false},
		{"relative path", &exec.Error{Name: "ffmpeg", Err: exec.ErrDot}, false},
		{"other failure", errors.New("PATH unreadable"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewWithLookup(func(string) (string, error) { return "", tt.err })

			path, err := r.Resolve(context.Background(), "ffmpeg")
			assert.Empty(t, path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolver_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewWithLookup(func(string) (string, error) { return "/usr/bin/ffmpeg", nil }).Resolve(ctx, "ffmpeg")
	assert.ErrorIs(t, err, context.Canceled)
}
