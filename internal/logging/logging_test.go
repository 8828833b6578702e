package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "json", false)
	logger.Info("hidden")
	logger.Warn("shown", "task", "QA-1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "QA-1", line["task"])
	assert.Equal(t, "veloxcase", line["app"])
}

func TestDebugOverridesLevel(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "error", "text", true).Debug("detail")
	assert.Contains(t, buf.String(), "msg=detail")
}
