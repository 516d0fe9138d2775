package testutils

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

// WriteScript writes src to a script file in a temporary directory and returns its path.
// It fails the test immediately on error.
func WriteScript(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.js")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644), "Failed to write script")
	return path
}

// Output captures the two script channels.
type Output struct {
	Stdout bytes.Buffer
	Stderr bytes.Buffer
}

// NewRedis starts an in-process Redis server that is stopped when the test ends.
func NewRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	return miniredis.RunT(t)
}
