// Package testutil provides test helpers for provisioner tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteTempFile writes content to a file in the specified directory.
func WriteTempFile(t testing.TB, dir, filename, content string) string {
	t.Helper()

	path := filepath.Join(dir, filename)
	err := os.WriteFile(path, []byte(content), 0o644)
	require.NoError(t, err, "failed to write temp file: %s", filename)

	return path
}

// WriteManifest writes a manifest into a fresh temporary directory and
// returns its path. The file name selects the manifest format.
func WriteManifest(t testing.TB, filename, content string) string {
	t.Helper()
	return WriteTempFile(t, t.TempDir(), filename, content)
}

// ChangeDir changes to a directory for the duration of the test.
func ChangeDir(t testing.TB, dir string) {
	t.Helper()

	original, err := os.Getwd()
	require.NoError(t, err)

	err = os.Chdir(dir)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = os.Chdir(original)
	})
}
