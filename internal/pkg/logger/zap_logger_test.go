package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsolatedLoggerWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.log")
	l := NewIsolatedLogger(path)

	l.Debug("Hub", "not written", nil)
	l.Info("Hub", "client registered", map[string]interface{}{"context_id": "c1"})
	l.Error("Hub", "send failed", map[string]interface{}{"error": errors.New("closed")})
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"message":"client registered"`)
	assert.Contains(t, lines[0], `"module":"Hub"`)
	assert.Contains(t, lines[1], `"error":"closed"`)
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Warn("x", "y", nil)
	assert.NotNil(t, l.Zap())
}
