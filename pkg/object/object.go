package object

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Metadata is an arbitrary JSON document attached to an object.
type Metadata map[string]any

// Object is a server-side record identified by a string key, holding optional
// structured metadata and optional opaque bytes. The ID is assigned at
// creation and never changes.
//
// The coordinator is the sole mutator but HTTP handlers read concurrently, so
// Metadata and Data are guarded by mu once the object is published to a
// store: mutate through SetMetadata/SetData/RefreshMetadata and read through
// MetadataSnapshot/DataSnapshot/HasMetadata.
type Object struct {
	Key      string
	ID       int64
	Metadata Metadata
	Data     []byte

	// LastData is the wall-clock time (seconds) of the most recent data
	// assignment, 0 if data was never assigned.
	LastData float64

	mu        sync.Mutex
	dataDirty bool
}

// persistedObject is the on-disk format of the <id>.meta file.
type persistedObject struct {
	Metadata Metadata `json:"metadata"`
	LastData float64  `json:"last_data"`
	Key      string   `json:"key"`
	ID       int64    `json:"id"`
}

// nowSeconds returns the wall clock as float seconds, the unit used by both
// the metadata timestamps and the timeseries tables.
func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// SetMetadata replaces the object's metadata document.
func (o *Object) SetMetadata(metadata Metadata) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Metadata = metadata
}

// SetData replaces the object's bytes, stamps LastData and marks the data
// dirty so the next persist rewrites the .data file.
func (o *Object) SetData(data []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Data = data
	o.LastData = nowSeconds()
	o.dataDirty = true
}

// RefreshMetadata recomputes the derived metadata fields: updated, path,
// has_data and last_data. No-op while metadata is nil.
func (o *Object) RefreshMetadata() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Metadata == nil {
		return
	}
	o.Metadata["updated"] = nowSeconds()
	if _, ok := o.Metadata["path"]; !ok {
		o.Metadata["path"] = ""
	}
	o.Metadata["has_data"] = o.Data != nil
	o.Metadata["last_data"] = o.LastData
}

// HasMetadata reports whether the object currently carries metadata.
func (o *Object) HasMetadata() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Metadata != nil
}

// MetadataSnapshot returns a copy of the metadata safe to read and marshal
// while the coordinator keeps mutating the object. Top-level entries are
// copied; nested values are only ever replaced wholesale, never edited in
// place, so sharing them is safe.
func (o *Object) MetadataSnapshot() Metadata {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Metadata == nil {
		return nil
	}
	return maps.Clone(o.Metadata)
}

// DataSnapshot returns the current data bytes. SetData replaces the slice
// wholesale, so the returned slice is never written to again.
func (o *Object) DataSnapshot() []byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Data
}

// Persist writes the object to dir as <id>.meta plus, when the data changed
// since the last persist, <id>.data. Writes overwrite in place.
func (o *Object) Persist(dir string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	record := persistedObject{
		Metadata: o.Metadata,
		LastData: o.LastData,
		Key:      o.Key,
		ID:       o.ID,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode object %q: %w", o.Key, err)
	}
	if err := os.WriteFile(o.metaPath(dir), data, 0644); err != nil {
		return fmt.Errorf("failed to write meta file for %q: %w", o.Key, err)
	}
	if o.Data != nil && o.dataDirty {
		if err := os.WriteFile(o.dataPath(dir), o.Data, 0644); err != nil {
			return fmt.Errorf("failed to write data file for %q: %w", o.Key, err)
		}
		o.dataDirty = false
	}
	return nil
}

// Purge removes the object's persisted files. Failures are ignored.
func (o *Object) Purge(dir string) {
	os.Remove(o.metaPath(dir))
	os.Remove(o.dataPath(dir))
}

func (o *Object) metaPath(dir string) string {
	return filepath.Join(dir, fmt.Sprintf("%d.meta", o.ID))
}

func (o *Object) dataPath(dir string) string {
	return filepath.Join(dir, fmt.Sprintf("%d.data", o.ID))
}
