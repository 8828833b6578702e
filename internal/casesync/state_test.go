package casesync

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateManagerLogsCorruptFile(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "selection.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"last_project_id": 4, "folders": [`), 0644))

	sm, err := NewStateManager(path)
	require.NoError(t, err)
	assert.Zero(t, sm.LastProject())
	_, ok := sm.FolderFor(4)
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "ignoring unreadable selection file")

	sm.Remember(4, 9)
	require.NoError(t, sm.Save())
	reloaded, err := NewStateManager(path)
	require.NoError(t, err)
	assert.Equal(t, 4, reloaded.LastProject())
}
