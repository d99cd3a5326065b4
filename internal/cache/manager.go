package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Manager looks clips up in memory, then on disk, promoting disk hits to
// memory. Writes go to both levels.
type Manager struct {
	memory *MemoryCache
	disk   *DiskCache
	config Config
	logger *log.Logger

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once

	mu    sync.Mutex
	stats ManagerStats
}

// ManagerStats aggregates both levels.
type ManagerStats struct {
	Memory Stats
	Disk   Stats

	MemoryHits  int64
	DiskHits    int64
	Misses      int64
	Promotions  int64
	CleanupRuns int64
	LastCleanup time.Time
}

// HitRate returns the overall hit rate.
func (s ManagerStats) HitRate() float64 {
	total := s.MemoryHits + s.DiskHits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.MemoryHits+s.DiskHits) / float64(total)
}

// NewManager opens both levels. cfg.Dir is required.
func NewManager(cfg Config, logger *log.Logger) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, errors.New("cache directory not set")
	}
	if logger == nil {
		logger = log.Default()
	}

	disk, err := NewDiskCache(cfg.Dir, cfg.DiskCapacity, cfg.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("open disk cache: %w", err)
	}

	m := &Manager{
		memory: NewMemoryCache(cfg.MemoryCapacity),
		disk:   disk,
		config: cfg,
		logger: logger,
		stop:   make(chan struct{}),
	}

	if cfg.CleanupInterval > 0 && cfg.TTL > 0 {
		m.wg.Add(1)
		go m.cleanupLoop()
	}

	logger.Debug("clip cache opened", "dir", cfg.Dir, "items", disk.Stats().Items)
	return m, nil
}

// Get returns a cached clip.
func (m *Manager) Get(key string) ([]byte, bool) {
	if data, ok := m.memory.Get(key); ok {
		m.mu.Lock()
		m.stats.MemoryHits++
		m.mu.Unlock()
		return data, true
	}

	if data, ok := m.disk.Get(key); ok {
		promoted := m.memory.Put(key, data) == nil
		m.mu.Lock()
		m.stats.DiskHits++
		if promoted {
			m.stats.Promotions++
		}
		m.mu.Unlock()
		return data, true
	}

	m.mu.Lock()
	m.stats.Misses++
	m.mu.Unlock()
	return nil, false
}

// Put stores a clip on both levels. A clip too large for memory is still
// written to disk.
func (m *Manager) Put(key string, value []byte) error {
	if err := m.memory.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return fmt.Errorf("memory cache: %w", err)
	}
	if err := m.disk.Put(key, value); err != nil {
		if errors.Is(err, ErrItemTooLarge) {
			m.logger.Debug("clip too large for disk cache", "key", key, "size", len(value))
			return nil
		}
		return fmt.Errorf("disk cache: %w", err)
	}
	return nil
}

// Delete removes a clip from both levels.
func (m *Manager) Delete(key string) error {
	return errors.Join(m.memory.Delete(key), m.disk.Delete(key))
}

// Clear empties both levels.
func (m *Manager) Clear() error {
	return errors.Join(m.memory.Clear(), m.disk.Clear())
}

// Prune drops clips older than maxAge from both levels.
func (m *Manager) Prune(maxAge time.Duration) int {
	n := m.memory.Prune(maxAge) + m.disk.Prune(maxAge)

	m.mu.Lock()
	m.stats.CleanupRuns++
	m.stats.LastCleanup = time.Now()
	m.mu.Unlock()

	if n > 0 {
		m.logger.Debug("pruned cached clips", "count", n, "max_age", maxAge)
	}
	return n
}

// Entries lists the clips stored on disk.
func (m *Manager) Entries() []Entry {
	return m.disk.Entries()
}

// Dir returns the disk level directory.
func (m *Manager) Dir() string {
	return m.config.Dir
}

// Stats returns the aggregated counters.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	s := m.stats
	m.mu.Unlock()

	s.Memory = m.memory.Stats()
	s.Disk = m.disk.Stats()
	return s
}

// Close stops the cleanup loop and persists the disk index.
func (m *Manager) Close() error {
	var err error
	m.once.Do(func() {
		close(m.stop)
		m.wg.Wait()
		err = m.disk.Close()
	})
	return err
}

func (m *Manager) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Prune(m.config.TTL)
		case <-m.stop:
			return
		}
	}
}
