package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logrus.Level
		ok   bool
	}{
		{"", logrus.InfoLevel, true},
		{"debug", logrus.DebugLevel, true},
		{" WARN ", logrus.WarnLevel, true},
		{"loud", logrus.InfoLevel, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestNew_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "debug")
	logger.WithField("component", "generation").Debug("progress poll failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "progress poll failed", entry["msg"])
	assert.Equal(t, "generation", entry["component"])
}

func TestOpenFile_CreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sdpanel.log")
	logger, closer, err := OpenFile(path, "info")
	require.NoError(t, err)
	logger.Info("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}
