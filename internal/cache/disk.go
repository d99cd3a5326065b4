package cache

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const indexFile = "clips.index"

// DiskCache is the L2 level. Clips are written as one file each, zstd
// compressed when that saves space, and tracked in a gob index that is
// rewritten after every change.
type DiskCache struct {
	mu sync.Mutex

	dir      string
	capacity int64
	size     int64 // bytes on disk

	encoder *zstd.Encoder // nil when compression is off
	decoder *zstd.Decoder

	index map[string]*diskEntry
	stats Stats
}

type diskEntry struct {
	Key        string
	File       string // base name inside dir
	Stored     int64
	Size       int64
	Compressed bool
	Created    time.Time
	LastAccess time.Time
	Hits       int64
}

// NewDiskCache opens or creates a disk cache in dir. A compression level
// of zero stores clips as they are.
func NewDiskCache(dir string, capacity int64, compressionLevel int) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	dc := &DiskCache{
		dir:      dir,
		capacity: capacity,
		index:    make(map[string]*diskEntry),
		stats:    Stats{Capacity: capacity},
	}

	var err error
	if compressionLevel > 0 {
		dc.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
	}
	// Always able to read back clips written with compression on.
	dc.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	if err := dc.loadIndex(); err != nil {
		// A broken index only costs a re-download.
		dc.index = make(map[string]*diskEntry)
	}
	for _, e := range dc.index {
		dc.size += e.Stored
	}

	return dc, nil
}

// Get reads a clip. Entries whose file is missing or unreadable are
// dropped and reported as a miss.
func (dc *DiskCache) Get(key string) ([]byte, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	e, ok := dc.index[key]
	if !ok {
		dc.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(filepath.Join(dc.dir, e.File))
	if err == nil && e.Compressed {
		data, err = dc.decoder.DecodeAll(data, nil)
	}
	if err != nil {
		dc.drop(key, e)
		_ = dc.saveIndex()
		dc.stats.Misses++
		return nil, false
	}

	e.LastAccess = time.Now()
	e.Hits++
	dc.stats.Hits++
	dc.stats.LastAccess = e.LastAccess
	return data, true
}

// Put writes a clip, evicting the least recently used ones to make room.
func (dc *DiskCache) Put(key string, value []byte) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	data, compressed := value, false
	if dc.encoder != nil && len(value) > 1024 {
		if c := dc.encoder.EncodeAll(value, nil); len(c) < len(value) {
			data, compressed = c, true
		}
	}

	stored := int64(len(data))
	if stored > dc.capacity {
		return ErrItemTooLarge
	}

	if old, ok := dc.index[key]; ok {
		dc.drop(key, old)
	}
	for dc.size+stored > dc.capacity && len(dc.index) > 0 {
		dc.evictOldest()
	}

	name := key + ".clip"
	if err := writeAtomic(filepath.Join(dc.dir, name), data); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}

	now := time.Now()
	dc.index[key] = &diskEntry{
		Key:        key,
		File:       name,
		Stored:     stored,
		Size:       int64(len(value)),
		Compressed: compressed,
		Created:    now,
		LastAccess: now,
	}
	dc.size += stored

	return dc.saveIndex()
}

// Delete removes a clip.
func (dc *DiskCache) Delete(key string) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	e, ok := dc.index[key]
	if !ok {
		return nil
	}
	dc.drop(key, e)
	return dc.saveIndex()
}

// Contains reports whether a clip is indexed.
func (dc *DiskCache) Contains(key string) bool {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	_, ok := dc.index[key]
	return ok
}

// Clear removes every clip file and empties the index.
func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	for key, e := range dc.index {
		dc.drop(key, e)
	}
	return dc.saveIndex()
}

// Size returns the bytes used on disk.
func (dc *DiskCache) Size() int64 {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return dc.size
}

// Stats returns the level counters.
func (dc *DiskCache) Stats() Stats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	s := dc.stats
	s.Size = dc.size
	s.Items = int64(len(dc.index))
	return s
}

// Entries lists cached clips from least to most recently used.
func (dc *DiskCache) Entries() []Entry {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	out := make([]Entry, 0, len(dc.index))
	for _, e := range dc.index {
		out = append(out, Entry{
			Key:        e.Key,
			Size:       e.Size,
			Stored:     e.Stored,
			Created:    e.Created,
			LastAccess: e.LastAccess,
			Hits:       e.Hits,
			Level:      LevelDisk,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastAccess.Before(out[j].LastAccess)
	})
	return out
}

// Prune drops clips stored before now minus maxAge.
func (dc *DiskCache) Prune(maxAge time.Duration) int {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	pruned := 0
	for key, e := range dc.index {
		if e.Created.Before(cutoff) {
			dc.drop(key, e)
			pruned++
		}
	}
	if pruned > 0 {
		_ = dc.saveIndex()
	}
	return pruned
}

// Close persists the index.
func (dc *DiskCache) Close() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.encoder != nil {
		_ = dc.encoder.Close()
	}
	dc.decoder.Close()
	return dc.saveIndex()
}

func (dc *DiskCache) drop(key string, e *diskEntry) {
	_ = os.Remove(filepath.Join(dc.dir, e.File))
	delete(dc.index, key)
	dc.size -= e.Stored
}

func (dc *DiskCache) evictOldest() {
	var oldest *diskEntry
	for _, e := range dc.index {
		if oldest == nil || e.LastAccess.Before(oldest.LastAccess) {
			oldest = e
		}
	}
	if oldest != nil {
		dc.drop(oldest.Key, oldest)
		dc.stats.Evictions++
		dc.stats.LastEvict = time.Now()
	}
}

func (dc *DiskCache) loadIndex() error {
	f, err := os.Open(filepath.Join(dc.dir, indexFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	return gob.NewDecoder(f).Decode(&dc.index)
}

func (dc *DiskCache) saveIndex() error {
	path := filepath.Join(dc.dir, indexFile)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(dc.index); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// writeAtomic writes to a temp file and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
