package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "safefs.log")

	w, err := NewFileWriter(FileOptions{Path: path, MaxSizeMB: 1, MaxBackups: 2})
	require.NoError(t, err)

	l := NewLogger("TEST")
	l.SetOutput(w, false)
	l.WithPrefix("file").Info("written to %s", "disk")
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[INFO] file: written to disk")
}
