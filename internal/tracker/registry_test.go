package tracker

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshbridge/pkg/models"
)

func TestUpsertDeduplicates(t *testing.T) {
	r := New(100)

	r.Upsert(models.TrackerStatus{MeshID: "!cafebabe", Name: "Truck 1", LastSeen: 100})
	r.Upsert(models.TrackerStatus{MeshID: "!cafebabe", Name: "Truck 1", LastSeen: 200})

	require.Equal(t, 1, r.Len())
	assert.Equal(t, int64(200), r.Snapshot()[0].LastSeen)
}

func TestUpsertEvictsOldest(t *testing.T) {
	r := New(100)

	for i := 0; i < 101; i++ {
		r.Upsert(models.TrackerStatus{
			MeshID:   fmt.Sprintf("!%08x", i),
			LastSeen: int64(1000 + i),
		})
	}

	require.Equal(t, 100, r.Len())
	for _, entry := range r.Snapshot() {
		assert.NotEqual(t, "!00000000", entry.MeshID, "entry with smallest last_seen must be gone")
	}
}

func TestSnapshotOrderedAndIsolated(t *testing.T) {
	r := New(100)
	r.Upsert(models.TrackerStatus{MeshID: "!aaaaaaaa", LastSeen: 100})
	r.Upsert(models.TrackerStatus{MeshID: "!bbbbbbbb", LastSeen: 300})
	r.Upsert(models.TrackerStatus{MeshID: "!cccccccc", LastSeen: 200})

	snap := r.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "!bbbbbbbb", snap[0].MeshID)
	assert.Equal(t, "!cccccccc", snap[1].MeshID)
	assert.Equal(t, "!aaaaaaaa", snap[2].MeshID)

	// Mutating the snapshot must not touch the registry.
	snap[0].MeshID = "mutated"
	assert.Equal(t, "!bbbbbbbb", r.Snapshot()[0].MeshID)
}

func TestFormatEntry(t *testing.T) {
	r := New(100)
	r.Upsert(models.TrackerStatus{
		MeshID:       "!cafebabe",
		SharedWithUs: true,
		LastSeen:     time.Now().Unix() - 5,
	})

	assert.Equal(t, "babe* 5", r.FormatEntry(0))
	assert.Equal(t, "", r.FormatEntry(1))
	assert.Equal(t, "", r.FormatEntry(-1))
}

func TestFormatEntryStaleShowsXX(t *testing.T) {
	r := New(100)
	r.Upsert(models.TrackerStatus{
		MeshID:       "!cafebabe",
		SharedWithUs: true,
		LastSeen:     time.Now().Unix() - 100,
	})

	assert.Equal(t, "babe* xx", r.FormatEntry(0))
}

func TestFormatEntryLocalDevice(t *testing.T) {
	r := New(100)
	r.Upsert(models.TrackerStatus{
		MeshID:   "!deadbeef",
		LastSeen: time.Now().Unix() - 12,
	})

	assert.Equal(t, "beef 12", r.FormatEntry(0))
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trackers.json")

	r := New(100)
	r.Upsert(models.TrackerStatus{MeshID: "!cafebabe", Name: "Truck 1", LastSeen: 100, SharedWithUs: true})
	r.Upsert(models.TrackerStatus{MeshID: "!deadbeef", Name: "Ops Cart", LastSeen: 200})
	require.NoError(t, r.Save(path))

	restored := New(100)
	require.NoError(t, restored.Load(path))

	snap := restored.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "!deadbeef", snap[0].MeshID)
	assert.Equal(t, "!cafebabe", snap[1].MeshID)
	assert.True(t, snap[1].SharedWithUs)
}

func TestLoadMissingFileIsNoop(t *testing.T) {
	r := New(100)
	require.NoError(t, r.Load(filepath.Join(t.TempDir(), "nope.json")))
	assert.Equal(t, 0, r.Len())
}

func TestLoadMalformedFileLeavesRegistryEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trackers.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	r := New(100)
	require.NoError(t, r.Load(path))
	assert.Equal(t, 0, r.Len())
}

func TestLoadAppliesCapacity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trackers.json")

	big := New(200)
	for i := 0; i < 150; i++ {
		big.Upsert(models.TrackerStatus{MeshID: fmt.Sprintf("!%08x", i), LastSeen: int64(i)})
	}
	require.NoError(t, big.Save(path))

	small := New(100)
	require.NoError(t, small.Load(path))
	assert.Equal(t, 100, small.Len())
}
