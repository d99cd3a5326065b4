package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var (
	// ErrItemTooLarge is returned when a clip exceeds the capacity of a level.
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheMiss is returned when a clip is not cached.
	ErrCacheMiss = errors.New("cache miss")
)

// Level identifies a cache tier.
type Level int

const (
	// LevelMemory is the in-process LRU.
	LevelMemory Level = iota
	// LevelDisk is the persistent compressed store.
	LevelDisk
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelMemory:
		return "memory"
	case LevelDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// Stats holds the counters of one cache level.
type Stats struct {
	Capacity  int64 // bytes
	Size      int64 // bytes currently stored
	Items     int64
	Hits      int64
	Misses    int64
	Evictions int64

	LastAccess time.Time
	LastEvict  time.Time
}

// HitRate returns hits / (hits + misses).
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// Entry describes a cached clip.
type Entry struct {
	Key        string
	Size       int64 // bytes as returned by Get
	Stored     int64 // bytes on the level, after compression
	Created    time.Time
	LastAccess time.Time
	Hits       int64
	Level      Level
}

// Config configures a Manager.
type Config struct {
	MemoryCapacity int64  // bytes
	DiskCapacity   int64  // bytes
	Dir            string // disk level directory

	// CompressionLevel is the zstd level (1-22). Zero stores clips
	// uncompressed.
	CompressionLevel int

	// TTL drops clips older than this on cleanup. Zero keeps them.
	TTL time.Duration

	// CleanupInterval runs Prune in the background. Zero disables it.
	CleanupInterval time.Duration
}

// DefaultConfig returns the configuration used when nothing is set.
// MP3 data barely compresses, so the default level is the fastest one.
func DefaultConfig() Config {
	return Config{
		MemoryCapacity:   64 << 20,
		DiskCapacity:     512 << 20,
		CompressionLevel: 1,
		TTL:              30 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// Cache is implemented by each level.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
	Delete(key string) error
	Contains(key string) bool
	Clear() error
	Size() int64
	Stats() Stats
}

// ClipKey returns the cache key of a clip URL.
func ClipKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
