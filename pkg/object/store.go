package object

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cvlviz/cvld/pkg/log"
)

// Store is the in-memory object table plus the id counters. The coordinator
// is the sole mutator; HTTP handlers read concurrently, so the map is guarded
// by this mutex and object contents by each object's own lock.
type Store struct {
	mu      sync.RWMutex
	objects map[string]*Object

	nextObjectID     int64
	nextSubscriberID int64

	persistDir string
	logger     zerolog.Logger
}

// NewStore creates a store. If persistDir is non-empty the directory is
// created and any persisted objects are loaded; if the directory cannot be
// created the store falls back to transient mode.
func NewStore(persistDir string) *Store {
	s := &Store{
		objects:          make(map[string]*Object),
		nextObjectID:     1,
		nextSubscriberID: 1,
		persistDir:       persistDir,
		logger:           log.WithComponent("store"),
	}
	if persistDir == "" {
		s.logger.Info().Msg("Server is running in transient mode - any objects created will be lost on server exit")
		return s
	}
	if err := os.MkdirAll(persistDir, 0755); err != nil {
		s.logger.Error().Err(err).Str("dir", persistDir).Msg("Failed to make root directory for persisting objects")
		s.persistDir = ""
		return s
	}
	s.load()
	return s
}

// PersistDir returns the persistence directory, or "" in transient mode.
func (s *Store) PersistDir() string {
	return s.persistDir
}

// Get returns the object for key if present.
func (s *Store) Get(key string) (*Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj, ok
}

// GetOrCreate returns the object for key, creating it with a fresh id when
// the key is unknown.
func (s *Store) GetOrCreate(key string) *Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	if obj, ok := s.objects[key]; ok {
		return obj
	}
	obj := &Object{Key: key, ID: s.nextObjectID}
	s.nextObjectID++
	s.objects[key] = obj
	return obj
}

// Remove deletes the object for key from the table and returns it, or nil if
// the key was unknown. Persisted files are the caller's concern.
func (s *Store) Remove(key string) *Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj := s.objects[key]
	delete(s.objects, key)
	return obj
}

// Keys returns the keys of all objects whose metadata is non-nil, sorted for
// stable listings.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for key, obj := range s.objects {
		if obj.HasMetadata() {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of objects in the table.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// NextSubscriberID returns the subscriber sequence counter and increments it.
func (s *Store) NextSubscriberID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSubscriberID
	s.nextSubscriberID++
	return id
}

// load scans the persistence directory for <id>.meta/<id>.data pairs.
// Files that do not parse are logged and skipped.
func (s *Store) load() {
	entries, err := os.ReadDir(s.persistDir)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to scan persistence directory")
		return
	}
	s.logger.Info().Msg("Loading existing objects..")
	loaded := make(map[int64]bool)
	maxID := s.nextObjectID
	for _, entry := range entries {
		name := entry.Name()
		base, _, found := strings.Cut(name, ".")
		if !found {
			continue
		}
		id, err := strconv.ParseInt(base, 10, 64)
		if err != nil {
			s.logger.Warn().Str("file", name).Msg("Failed to load this item")
			continue
		}
		if loaded[id] {
			continue
		}
		if id > maxID {
			maxID = id
		}
		obj, err := s.loadObject(id)
		if err != nil {
			s.logger.Warn().Err(err).Str("file", name).Msg("Failed to load this item")
			continue
		}
		s.objects[obj.Key] = obj
		loaded[id] = true
	}
	s.nextObjectID = maxID + 1
	s.logger.Info().Int("objects", len(s.objects)).Msg("Loaded objects")
}

func (s *Store) loadObject(id int64) (*Object, error) {
	metaRaw, err := os.ReadFile(filepath.Join(s.persistDir, fmt.Sprintf("%d.meta", id)))
	if err != nil {
		return nil, err
	}
	var record persistedObject
	if err := json.Unmarshal(metaRaw, &record); err != nil {
		return nil, err
	}
	obj := &Object{
		Key:      record.Key,
		ID:       id,
		Metadata: record.Metadata,
		LastData: record.LastData,
	}
	// A missing .data file means the object has no data.
	if data, err := os.ReadFile(filepath.Join(s.persistDir, fmt.Sprintf("%d.data", id))); err == nil {
		obj.Data = data
	}
	return obj, nil
}
