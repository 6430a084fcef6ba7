package internal

import "sync"

// FormatCache tracks, per-process, which TeX preambles have been compiled
// before — spec.md §4.3 — so the engine's own format-file cache can be
// advertised as warm ("HIT") or cold ("MISS") to clients. It never stores
// text, only hashes. Authored fresh in the teacher's singleton idiom
// (GetCache with sync.Once, see internal/cache.go's GetCache), since the
// teacher has no preamble-tracking analogue of its own.
type FormatCache struct {
	mu   sync.Mutex
	seen map[PreambleHash]struct{}
}

var (
	globalFormatCache     *FormatCache
	globalFormatCacheOnce sync.Once
)

// GetFormatCache returns the process-wide Format Cache singleton.
func GetFormatCache() *FormatCache {
	globalFormatCacheOnce.Do(func() {
		globalFormatCache = NewFormatCache()
	})
	return globalFormatCache
}

// NewFormatCache constructs an empty format cache, useful for tests.
func NewFormatCache() *FormatCache {
	return &FormatCache{seen: make(map[PreambleHash]struct{})}
}

// CheckAndMark atomically reports whether hash was already present and
// inserts it if not.
func (f *FormatCache) CheckAndMark(hash PreambleHash) (wasPresent bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.seen[hash]; ok {
		return true
	}
	f.seen[hash] = struct{}{}
	return false
}

// ClassifyPreamble computes the HMR signal for a main file's content: NONE
// if no \begin{document} marker is present, ERROR is the caller's job when
// the file isn't valid text, otherwise HIT/MISS from CheckAndMark.
func (f *FormatCache) ClassifyPreamble(mainContent string) (status HMRStatus, hash PreambleHash, has bool) {
	preamble, found := ExtractPreamble(mainContent)
	if !found {
		return HMRNone, 0, false
	}

	hash = ComputePreambleHash(preamble)
	if f.CheckAndMark(hash) {
		return HMRHit, hash, true
	}
	return HMRMiss, hash, true
}
