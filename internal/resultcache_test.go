package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResultCacheInsertAndLookup(t *testing.T) {
	c := NewResultCache(1024, true)

	var fp InputFingerprint = 42
	c.Insert(fp, []byte("pdf-bytes"), 123)

	pdf, compileMs, ok := c.Lookup(fp)
	require.True(t, ok)
	require.Equal(t, "pdf-bytes", string(pdf))
	require.EqualValues(t, 123, compileMs)
}

func TestResultCacheMissReturnsFalse(t *testing.T) {
	c := NewResultCache(1024, true)
	_, _, ok := c.Lookup(999)
	require.False(t, ok)
}

func TestResultCacheDisabledNeverCaches(t *testing.T) {
	c := NewResultCache(1024, false)
	c.Insert(1, []byte("x"), 1)
	_, _, ok := c.Lookup(1)
	require.False(t, ok)
}

func TestResultCacheEvictsByOldestAccess(t *testing.T) {
	c := NewResultCache(10, true)

	c.Insert(1, []byte("12345"), 1) // 5 bytes
	c.Insert(2, []byte("12345"), 1) // 5 bytes, totalBytes = 10

	// Touch entry 1 so it becomes the most recently accessed.
	time.Sleep(time.Millisecond)
	_, _, ok := c.Lookup(1)
	require.True(t, ok)

	time.Sleep(time.Millisecond)
	c.Insert(3, []byte("12345"), 1) // forces eviction of entry 2 only (oldest access)

	_, _, ok1 := c.Lookup(1)
	_, _, ok2 := c.Lookup(2)
	_, _, ok3 := c.Lookup(3)
	require.True(t, ok1)
	require.False(t, ok2)
	require.True(t, ok3)
}

func TestResultCacheSweepExpired(t *testing.T) {
	c := NewResultCache(1024, true)
	c.Insert(1, []byte("x"), 1)

	c.mu.Lock()
	c.entries[1].lastAccessed = time.Now().Add(-ResultCacheTTL - time.Hour)
	c.mu.Unlock()

	evicted := c.SweepExpired()
	require.Equal(t, 1, evicted)

	_, _, ok := c.Lookup(1)
	require.False(t, ok)
}

func TestResultCacheLookupReturnsClone(t *testing.T) {
	c := NewResultCache(1024, true)
	original := []byte("pdf-bytes")
	c.Insert(1, original, 1)

	pdf, _, ok := c.Lookup(1)
	require.True(t, ok)
	pdf[0] = 'X'

	again, _, ok := c.Lookup(1)
	require.True(t, ok)
	require.NotEqual(t, "X", string(again[0]))
}
