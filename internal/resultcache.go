package internal

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultResultCacheBytes is the total retained PDF byte budget (512 MiB).
	DefaultResultCacheBytes int64 = 512 * 1024 * 1024
	// ResultCacheTTL is how long an entry survives since its last access.
	ResultCacheTTL = 7 * 24 * time.Hour
	// ResultCacheSweepInterval drives the periodic expired-entry sweep.
	ResultCacheSweepInterval = 1 * time.Hour
)

// resultCacheEntry is one memoized compilation, per spec.md §3.
type resultCacheEntry struct {
	pdf           []byte
	pdfHash       string
	createdAt     time.Time
	lastAccessed  time.Time
	compileTimeMs int64
}

// ResultCache is the content-addressed PDF memoization map described in
// spec.md §4.1. It is generalized from the teacher's per-project
// CompilationCache (internal/cache.go in the teacher) to a per-fingerprint
// cache with a byte-size budget instead of an entry-count cap.
type ResultCache struct {
	mu         sync.RWMutex
	entries    map[InputFingerprint]*resultCacheEntry
	totalBytes int64
	maxBytes   int64
	enabled    bool
}

var (
	globalResultCache     *ResultCache
	globalResultCacheOnce sync.Once
)

// GetResultCache returns the process-wide Result Cache singleton, reading
// PDF_CACHE_ENABLED exactly once at first use.
func GetResultCache() *ResultCache {
	globalResultCacheOnce.Do(func() {
		globalResultCache = NewResultCache(DefaultResultCacheBytes, resultCacheEnabledFromEnv())
		go globalResultCache.sweepLoop()
	})
	return globalResultCache
}

func resultCacheEnabledFromEnv() bool {
	v := os.Getenv("PDF_CACHE_ENABLED")
	return v == "" || v == "true"
}

// NewResultCache constructs a cache with an explicit byte budget, useful for tests.
func NewResultCache(maxBytes int64, enabled bool) *ResultCache {
	return &ResultCache{
		entries:  make(map[InputFingerprint]*resultCacheEntry),
		maxBytes: maxBytes,
		enabled:  enabled,
	}
}

// Lookup returns a clone of the cached PDF bytes and the original compile
// time if present, refreshing last_accessed. It never performs I/O.
// lookupWithHash additionally returns the PDF's content digest.
func (c *ResultCache) Lookup(fp InputFingerprint) (pdf []byte, compileTimeMs int64, ok bool) {
	pdf, _, compileTimeMs, ok = c.lookupWithHash(fp)
	return pdf, compileTimeMs, ok
}

func (c *ResultCache) lookupWithHash(fp InputFingerprint) (pdf []byte, pdfHash string, compileTimeMs int64, ok bool) {
	if !c.enabled {
		return nil, "", 0, false
	}

	c.mu.RLock()
	entry, exists := c.entries[fp]
	c.mu.RUnlock()
	if !exists {
		return nil, "", 0, false
	}

	now := time.Now()
	c.mu.Lock()
	entry.lastAccessed = now
	c.mu.Unlock()

	clone := make([]byte, len(entry.pdf))
	copy(clone, entry.pdf)
	return clone, entry.pdfHash, entry.compileTimeMs, true
}

// Insert admits a new entry, evicting by ascending last_accessed until
// there is room (or the cache is empty), then stores the entry.
func (c *ResultCache) Insert(fp InputFingerprint, pdf []byte, compileTimeMs int64) {
	c.InsertWithHash(fp, pdf, "", compileTimeMs)
}

// InsertWithHash is Insert plus the PDF's content digest, so cache hits
// can still report X-Compile-Sha256.
func (c *ResultCache) InsertWithHash(fp InputFingerprint, pdf []byte, pdfHash string, compileTimeMs int64) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	size := int64(len(pdf))
	for c.totalBytes+size > c.maxBytes && len(c.entries) > 0 {
		c.evictOldestLocked()
	}

	now := time.Now()
	clone := make([]byte, len(pdf))
	copy(clone, pdf)

	if old, exists := c.entries[fp]; exists {
		c.totalBytes -= int64(len(old.pdf))
	}

	c.entries[fp] = &resultCacheEntry{
		pdf:           clone,
		pdfHash:       pdfHash,
		createdAt:     now,
		lastAccessed:  now,
		compileTimeMs: compileTimeMs,
	}
	c.totalBytes += size
}

// evictOldestLocked removes the entry with the smallest last_accessed.
// Must be called with c.mu held for writing.
func (c *ResultCache) evictOldestLocked() {
	var oldestFP InputFingerprint
	var oldestTime time.Time
	first := true

	for fp, entry := range c.entries {
		if first || entry.lastAccessed.Before(oldestTime) {
			oldestFP = fp
			oldestTime = entry.lastAccessed
			first = false
		}
	}

	if !first {
		c.totalBytes -= int64(len(c.entries[oldestFP].pdf))
		delete(c.entries, oldestFP)
	}
}

// SweepExpired removes every entry whose last access is older than the TTL.
func (c *ResultCache) SweepExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	evicted := 0
	for fp, entry := range c.entries {
		if now.Sub(entry.lastAccessed) >= ResultCacheTTL {
			c.totalBytes -= int64(len(entry.pdf))
			delete(c.entries, fp)
			evicted++
		}
	}
	return evicted
}

func (c *ResultCache) sweepLoop() {
	ticker := time.NewTicker(ResultCacheSweepInterval)
	defer ticker.Stop()

	for range ticker.C {
		if n := c.SweepExpired(); n > 0 {
			log.Info().Int("evicted", n).Msg("result cache sweep evicted expired entries")
		}
	}
}

// Stats reports the current size, for observability and tests.
func (c *ResultCache) Stats() (entries int, totalBytes int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), c.totalBytes
}
