// Package cache is a content-addressed store of conversion outputs.
// A hit returns a previously produced output without re-invoking the
// external encoder; behavior is otherwise indistinguishable from a
// fresh conversion.
package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/JadissEL/Theconverter/pkg/models"
)

const indexFile = "cache_index.json"

// Entry maps a fingerprint to its stored output file. The cache owns the
// file exclusively; no other component may delete it.
type Entry struct {
	Key         string                `json:"key"`
	ContentHash string                `json:"contentHash"`
	Format      string                `json:"format"`
	Quality     models.Quality        `json:"quality"`
	Path        string                `json:"path"`
	Size        int64                 `json:"size"`
	CreatedAt   time.Time             `json:"createdAt"`
	Metadata    *models.MediaMetadata `json:"metadata,omitempty"`
}

// Cache is a disk-backed conversion cache with size- and age-based
// eviction. All mutation goes through one mutex, so eviction never races
// a store, and entries pinned by in-flight readers are never removed.
type Cache struct {
	mu      sync.Mutex
	dir     string
	maxSize int64
	maxAge  time.Duration
	index   map[string]*Entry
	pins    map[string]int

	// OnEvict, when set, observes every eviction batch.
	OnEvict func(entries int, bytes int64)
}

// New opens (or creates) a cache rooted at dir. An existing index is
// reloaded; a corrupt index starts empty rather than failing startup.
func New(dir string, maxSizeBytes int64, maxAge time.Duration) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &Cache{
		dir:     dir,
		maxSize: maxSizeBytes,
		maxAge:  maxAge,
		index:   make(map[string]*Entry),
		pins:    make(map[string]int),
	}
	c.loadIndex()
	return c, nil
}

func (c *Cache) loadIndex() {
	data, err := os.ReadFile(filepath.Join(c.dir, indexFile))
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, &c.index); err != nil {
		slog.Warn("Cache index unreadable, starting empty", "error", err)
		c.index = make(map[string]*Entry)
	}
}

// saveIndex persists the index. Callers hold c.mu.
func (c *Cache) saveIndex() {
	data, err := json.MarshalIndent(c.index, "", "  ")
	if err != nil {
		slog.Warn("Failed to encode cache index", "error", err)
		return
	}
	if err := os.WriteFile(filepath.Join(c.dir, indexFile), data, 0644); err != nil {
		slog.Warn("Failed to save cache index", "error", err)
	}
}

// Lookup returns the entry for key together with a release function that
// unpins it, or models.ErrCacheCorrupted when the stored file is missing
// or unreadable (the entry is dropped and the caller should treat it as
// a miss). A plain miss returns (nil, nil, nil).
func (c *Cache) Lookup(key string) (*Entry, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.index[key]
	if !ok {
		return nil, nil, nil
	}

	if _, err := os.Stat(entry.Path); err != nil {
		delete(c.index, key)
		c.saveIndex()
		slog.Warn("Cache entry file missing, evicting", "key", key, "path", entry.Path)
		return nil, nil, models.ErrCacheCorrupted
	}

	if c.maxAge > 0 && time.Since(entry.CreatedAt) > c.maxAge {
		// A pinned entry stays on disk for its in-flight readers; the
		// next unpinned sweep removes it.
		if c.pins[key] == 0 {
			c.removeLocked(entry)
			c.saveIndex()
		}
		return nil, nil, nil
	}

	c.pins[key]++
	var once sync.Once
	release := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.pins[key] > 1 {
				c.pins[key]--
			} else {
				delete(c.pins, key)
			}
		})
	}

	return entry, release, nil
}

// Store moves outputPath into the cache under key and records the entry.
// Storage happens only after a fully completed conversion; partial
// outputs from aborted jobs must never reach this point.
func (c *Cache) Store(key, outputPath string, e Entry) (*Entry, error) {
	fi, err := os.Stat(outputPath)
	if err != nil {
		return nil, fmt.Errorf("cannot stat conversion output: %w", err)
	}

	cachedPath := filepath.Join(c.dir, key+"."+e.Format)
	if err := moveFile(outputPath, cachedPath); err != nil {
		return nil, fmt.Errorf("failed to move output into cache: %w", err)
	}

	entry := &Entry{
		Key:         key,
		ContentHash: e.ContentHash,
		Format:      e.Format,
		Quality:     e.Quality,
		Path:        cachedPath,
		Size:        fi.Size(),
		CreatedAt:   time.Now(),
		Metadata:    e.Metadata,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.index[key] = entry
	c.evictLocked()
	c.saveIndex()

	return entry, nil
}

// Evict applies the age bound and the size ceiling.
func (c *Cache) Evict() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked()
	c.saveIndex()
}

// evictLocked removes entries older than maxAge, then the oldest entries
// until total size fits the ceiling. Pinned entries are skipped. Callers
// hold c.mu.
func (c *Cache) evictLocked() {
	var evicted int
	var freed int64

	entries := make([]*Entry, 0, len(c.index))
	var total int64
	for _, e := range c.index {
		entries = append(entries, e)
		total += e.Size
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})

	for _, e := range entries {
		if c.pins[e.Key] > 0 {
			continue
		}

		tooOld := c.maxAge > 0 && time.Since(e.CreatedAt) > c.maxAge
		overSize := c.maxSize > 0 && total > c.maxSize

		if !tooOld && !overSize {
			continue
		}

		c.removeLocked(e)
		total -= e.Size
		evicted++
		freed += e.Size
	}

	if evicted > 0 {
		slog.Info("Evicted cache entries", "entries", evicted, "freedBytes", freed)
		if c.OnEvict != nil {
			c.OnEvict(evicted, freed)
		}
	}
}

// moveFile renames src to dst, falling back to copy+remove when the
// rename fails (the processing temp dir and the cache dir may live on
// different filesystems).
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}

// removeLocked deletes the entry and its file. Callers hold c.mu.
func (c *Cache) removeLocked(e *Entry) {
	if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove cached file", "path", e.Path, "error", err)
	}
	delete(c.index, e.Key)
}

// Stats returns a snapshot of the cache.
func (c *Cache) Stats() models.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := models.CacheStats{EntryCount: len(c.index)}

	var oldest, newest time.Time
	for _, e := range c.index {
		stats.TotalSize += e.Size
		if oldest.IsZero() || e.CreatedAt.Before(oldest) {
			oldest = e.CreatedAt
		}
		if newest.IsZero() || e.CreatedAt.After(newest) {
			newest = e.CreatedAt
		}
	}
	if !oldest.IsZero() {
		stats.OldestEntryAge = time.Since(oldest)
		stats.NewestEntryAge = time.Since(newest)
	}

	return stats
}

// Clear removes every unpinned entry and reports what was freed.
func (c *Cache) Clear() models.ClearResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	var result models.ClearResult
	for _, e := range c.index {
		if c.pins[e.Key] > 0 {
			continue
		}
		result.FreedBytes += e.Size
		result.ClearedEntries++
		c.removeLocked(e)
	}
	c.saveIndex()

	slog.Info("Cache cleared", "entries", result.ClearedEntries, "freedBytes", result.FreedBytes)
	return result
}
