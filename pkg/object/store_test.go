package object

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvlviz/cvld/pkg/log"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel})
	os.Exit(m.Run())
}

func TestGetOrCreateAssignsIDsOnce(t *testing.T) {
	s := NewStore("")

	foo := s.GetOrCreate("foo")
	bar := s.GetOrCreate("bar")
	assert.Equal(t, int64(1), foo.ID)
	assert.Equal(t, int64(2), bar.ID)

	// A second lookup returns the same object with the same id.
	again := s.GetOrCreate("foo")
	assert.Same(t, foo, again)
	assert.Equal(t, int64(1), again.ID)
}

func TestRefreshMetadataDerivedFields(t *testing.T) {
	obj := &Object{Key: "k", ID: 1}

	// No metadata: refresh must not invent any.
	obj.RefreshMetadata()
	assert.Nil(t, obj.Metadata)

	obj.Metadata = Metadata{"a": 1.0}
	obj.RefreshMetadata()
	assert.Equal(t, "", obj.Metadata["path"])
	assert.Equal(t, false, obj.Metadata["has_data"])
	assert.Equal(t, 0.0, obj.Metadata["last_data"])
	first := obj.Metadata["updated"].(float64)
	assert.Greater(t, first, 0.0)

	obj.SetData([]byte{0xde, 0xad})
	obj.RefreshMetadata()
	assert.Equal(t, true, obj.Metadata["has_data"])
	assert.Equal(t, obj.LastData, obj.Metadata["last_data"])
	assert.GreaterOrEqual(t, obj.Metadata["updated"].(float64), first)

	// A caller-supplied path survives the refresh.
	obj.Metadata["path"] = "scenes/1"
	obj.RefreshMetadata()
	assert.Equal(t, "scenes/1", obj.Metadata["path"])
}

// One writer rewriting the object races many readers snapshotting it; the
// per-object lock must keep the map reads off the mutating map.
func TestConcurrentRefreshAndSnapshot(t *testing.T) {
	s := NewStore("")
	obj := s.GetOrCreate("hot")
	obj.SetMetadata(Metadata{"n": 0.0})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			obj.SetMetadata(Metadata{"n": float64(i)})
			obj.SetData([]byte{byte(i)})
			obj.RefreshMetadata()
		}
	}()
	for r := 0; r < 3; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				if meta := obj.MetadataSnapshot(); meta != nil {
					if _, err := json.Marshal(meta); err != nil {
						t.Error(err)
						return
					}
				}
				obj.DataSnapshot()
				obj.HasMetadata()
				s.Keys()
			}
		}()
	}
	wg.Wait()
}

// MetadataSnapshot's copy must stay stable while the object keeps changing.
func TestMetadataSnapshotIsDetached(t *testing.T) {
	obj := &Object{Key: "k", ID: 1}
	obj.SetMetadata(Metadata{"n": 1.0})
	obj.RefreshMetadata()

	snap := obj.MetadataSnapshot()
	obj.SetData([]byte{1})
	obj.RefreshMetadata()

	assert.Equal(t, 1.0, snap["n"])
	assert.Equal(t, false, snap["has_data"])
	assert.Equal(t, true, obj.MetadataSnapshot()["has_data"])
}

func TestPersistAndReload(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	obj := s.GetOrCreate("bar")
	obj.Metadata = Metadata{"kind": "raster"}
	obj.SetData([]byte{0xde, 0xad, 0xbe, 0xef})
	obj.RefreshMetadata()
	require.NoError(t, obj.Persist(dir))

	assert.FileExists(t, filepath.Join(dir, "1.meta"))
	assert.FileExists(t, filepath.Join(dir, "1.data"))

	// A clean restart sees the same object under the same id.
	reloaded := NewStore(dir)
	got, ok := reloaded.Get("bar")
	require.True(t, ok)
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, "raster", got.Metadata["kind"])
	assert.Equal(t, obj.LastData, got.LastData)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, got.Data)

	// New objects get ids past the largest loaded one.
	next := reloaded.GetOrCreate("baz")
	assert.Greater(t, next.ID, got.ID)
}

func TestPersistWithoutData(t *testing.T) {
	dir := t.TempDir()
	obj := &Object{Key: "meta-only", ID: 7, Metadata: Metadata{"a": true}}
	obj.RefreshMetadata()
	require.NoError(t, obj.Persist(dir))

	assert.FileExists(t, filepath.Join(dir, "7.meta"))
	assert.NoFileExists(t, filepath.Join(dir, "7.data"))

	s := NewStore(dir)
	got, ok := s.Get("meta-only")
	require.True(t, ok)
	assert.Nil(t, got.Data)
}

func TestPurgeRemovesFiles(t *testing.T) {
	dir := t.TempDir()
	obj := &Object{Key: "k", ID: 3, Metadata: Metadata{}}
	obj.SetData([]byte{1})
	require.NoError(t, obj.Persist(dir))

	obj.Purge(dir)
	assert.NoFileExists(t, filepath.Join(dir, "3.meta"))
	assert.NoFileExists(t, filepath.Join(dir, "3.data"))

	// Purging again is harmless.
	obj.Purge(dir)
}

func TestLoadSkipsUnparseableFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notanumber.meta"), []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "9.meta"), []byte("{broken"), 0644))

	good := &Object{Key: "ok", ID: 4, Metadata: Metadata{"v": 1.0}}
	require.NoError(t, good.Persist(dir))

	s := NewStore(dir)
	assert.Equal(t, 1, s.Len())
	_, ok := s.Get("ok")
	assert.True(t, ok)
}

func TestKeysFiltersMetadatalessObjects(t *testing.T) {
	s := NewStore("")
	s.GetOrCreate("with-meta").Metadata = Metadata{"a": 1.0}
	s.GetOrCreate("data-only")

	assert.Equal(t, []string{"with-meta"}, s.Keys())
}

func TestNextSubscriberID(t *testing.T) {
	s := NewStore("")
	assert.Equal(t, int64(1), s.NextSubscriberID())
	assert.Equal(t, int64(2), s.NextSubscriberID())
}

func TestPersistedRecordFormat(t *testing.T) {
	dir := t.TempDir()
	obj := &Object{Key: "wire", ID: 11, Metadata: Metadata{"a": 1.0}, LastData: 5.5}
	require.NoError(t, obj.Persist(dir))

	raw, err := os.ReadFile(filepath.Join(dir, "11.meta"))
	require.NoError(t, err)
	var record map[string]any
	require.NoError(t, json.Unmarshal(raw, &record))
	assert.Equal(t, "wire", record["key"])
	assert.Equal(t, 11.0, record["id"])
	assert.Equal(t, 5.5, record["last_data"])
	assert.Contains(t, record, "metadata")
}
