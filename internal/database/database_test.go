package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *BoltDB {
	t.Helper()
	db, err := NewBolt(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMagnetLifecycle(t *testing.T) {
	db := openTestDB(t)

	old := &Magnet{ID: "1", DebridID: 1, Hash: "aaa", Name: "Old", AddedAt: time.Now().Add(-5 * time.Hour)}
	recent := &Magnet{ID: "2", DebridID: 2, Hash: "bbb", Name: "Recent"}
	require.NoError(t, db.StoreMagnet(old))
	require.NoError(t, db.StoreMagnet(recent))

	all, err := db.GetMagnets()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2", all[0].ID)

	stale, err := db.GetOldMagnets(4 * time.Hour)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "Old", stale[0].Name)

	require.NoError(t, db.DeleteMagnet("1"))
	require.NoError(t, db.DeleteMagnet("missing"))
	all, err = db.GetMagnets()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCatalogTitles(t *testing.T) {
	db := openTestDB(t)

	missing, err := db.GetCachedTitle("tt0000001")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, db.StoreTitle(&CatalogTitle{IMDBID: "tt15398776", Type: "movie", Title: "Oppenheimer", Year: 2023}))
	got, err := db.GetCachedTitle("tt15398776")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Oppenheimer", got.Title)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSessionRecords(t *testing.T) {
	db := openTestDB(t)

	rec := &SessionRecord{ID: "abc", SourceURL: "https://x/y.mkv", Filename: "y.mkv", Dir: "/tmp/abc", Status: "remuxing"}
	require.NoError(t, db.StoreSession(rec))
	rec.Status = "completed"
	require.NoError(t, db.StoreSession(rec))

	records, err := db.GetSessions()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "completed", records[0].Status)

	require.NoError(t, db.DeleteSession("abc"))
	records, err = db.GetSessions()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSessionRecordKeepsProvidedTimes(t *testing.T) {
	db := openTestDB(t)

	created := time.Date(2026, 10, 15, 18, 0, 0, 0, time.UTC)
	updated := created.Add(30 * time.Minute)
	require.NoError(t, db.StoreSession(&SessionRecord{
		ID: "abc", Dir: "/tmp/abc", Status: "completed", Mode: "remux", CreatedAt: created, UpdatedAt: updated,
	}))

	records, err := db.GetSessions()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].CreatedAt.Equal(created))
	assert.True(t, records[0].UpdatedAt.Equal(updated))
	assert.Equal(t, "remux", records[0].Mode)

	fresh := &SessionRecord{ID: "def", Status: "remuxing"}
	require.NoError(t, db.StoreSession(fresh))
	assert.False(t, fresh.UpdatedAt.IsZero())
	assert.Equal(t, fresh.UpdatedAt, fresh.CreatedAt)
}
