package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloxcase/cli/internal/schema"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "sub", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	var version int
	require.NoError(t, db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 2, version)
	assert.Equal(t, path, db.Path())
}

func TestRecordSyncAndHistory(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	target := schema.SyncTarget{ProjectID: 3, FolderID: 9}

	day := time.Date(2025, 3, 4, 10, 30, 0, 0, time.Local)
	db.now = func() time.Time { return day }

	require.NoError(t, db.RecordSync(ctx, target, schema.SyncResultEntry{
		Task: "QA-1", Status: schema.StatusSuccess, Action: schema.ActionCreated, CaseName: "Login", ImageCount: 2,
	}))
	require.NoError(t, db.RecordSync(ctx, target, schema.SyncResultEntry{
		Task: "QA-2", Status: schema.StatusSuccess, Action: schema.ActionUpdated, CaseName: "Logout",
	}))
	// Non-success entries are not history
	require.NoError(t, db.RecordSync(ctx, target, schema.SyncResultEntry{Task: "QA-3", Status: schema.StatusDuplicate}))
	require.NoError(t, db.RecordSync(ctx, target, schema.SyncResultEntry{Task: "QA-4", Status: schema.StatusError}))

	entries, err := db.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "QA-2", entries[0].Task)
	assert.Equal(t, StatusUpdated, entries[0].Status)
	assert.Equal(t, "QA-1", entries[1].Task)
	assert.Equal(t, StatusSuccess, entries[1].Status)
	assert.Equal(t, "2025-03-04 10:30", entries[1].Date)
	assert.Equal(t, 2, entries[1].ImageCount)
	assert.Equal(t, 3, entries[1].ProjectID)
	assert.Equal(t, 9, entries[1].FolderID)
	assert.NotEmpty(t, entries[1].ID)

	limited, err := db.History(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	target := schema.SyncTarget{ProjectID: 1, FolderID: 1}

	empty, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, empty)

	yesterday := time.Date(2025, 3, 3, 23, 0, 0, 0, time.Local)
	today := time.Date(2025, 3, 4, 9, 0, 0, 0, time.Local)

	db.now = func() time.Time { return yesterday }
	require.NoError(t, db.RecordSync(ctx, target, schema.SyncResultEntry{Task: "A", Status: schema.StatusSuccess, ImageCount: 1}))

	db.now = func() time.Time { return today }
	require.NoError(t, db.RecordSync(ctx, target, schema.SyncResultEntry{Task: "B", Status: schema.StatusSuccess, ImageCount: 4}))
	require.NoError(t, db.RecordSync(ctx, target, schema.SyncResultEntry{Task: "C", Status: schema.StatusSuccess}))

	s, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{TotalCases: 3, TotalImages: 5, TodaySyncs: 2, TotalSyncs: 3}, s)

	require.NoError(t, db.Clear(ctx))
	s, err = db.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, s.TotalSyncs)
}
