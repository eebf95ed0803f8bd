package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// TestOpenMigrates verifies opening a fresh database applies the schema
// and reopening it is a no-op.
func TestOpenMigrates(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	assert.NoError(t, s2.Close())
}

// TestCatalogCache verifies put, get and upsert of catalog blobs.
func TestCatalogCache(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	_, ok, err := s.GetCatalog("absent")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.PutCatalog("h1", []byte("blob-1")))
	blob, ok, err := s.GetCatalog("h1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("blob-1"), blob)

	require.NoError(t, s.PutCatalog("h1", []byte("blob-2")))
	blob, ok, err = s.GetCatalog("h1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("blob-2"), blob)
}

// TestEventLog verifies append, ordered listing and session filtering.
func TestEventLog(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	base := time.Now().UnixNano()
	evs := []SessionEvent{
		{SessionID: "s1", EventType: "recognitionStarted", TSUnixNanos: base},
		{SessionID: "s1", EventType: "imageDetected", Marker: "poster", TSUnixNanos: base + 1},
		{SessionID: "s2", EventType: "imageDetected", Marker: "badge", TSUnixNanos: base + 2},
		{SessionID: "s1", EventType: "detectedImageTapped", Marker: "poster", TSUnixNanos: base + 3},
	}
	for _, ev := range evs {
		require.NoError(t, s.InsertEvent(ev))
	}

	all, err := s.ListEvents("")
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "recognitionStarted", all[0].EventType)

	s1, err := s.ListEvents("s1")
	require.NoError(t, err)
	require.Len(t, s1, 3)
	assert.Equal(t, "detectedImageTapped", s1[2].EventType)
}

// TestCountEventsByMarker verifies the per-marker aggregation used by
// the report tool.
func TestCountEventsByMarker(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	base := time.Now().UnixNano()
	for i, marker := range []string{"a", "b", "b", "b", "a", ""} {
		require.NoError(t, s.InsertEvent(SessionEvent{
			SessionID:   "s1",
			EventType:   "imageDetected",
			Marker:      marker,
			TSUnixNanos: base + int64(i),
		}))
	}
	require.NoError(t, s.InsertEvent(SessionEvent{
		SessionID: "s1", EventType: "detectedImageTapped", Marker: "a", TSUnixNanos: base + 10,
	}))

	counts, err := s.CountEventsByMarker("imageDetected")
	require.NoError(t, err)
	require.Len(t, counts, 2, "empty markers and other types excluded")
	assert.Equal(t, EventCount{Marker: "b", Count: 3}, counts[0])
	assert.Equal(t, EventCount{Marker: "a", Count: 2}, counts[1])
}
