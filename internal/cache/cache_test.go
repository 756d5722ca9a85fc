// ABOUTME: Tests for the TTL cache used for short-lived upstream results.
// ABOUTME: Validates TTL expiration, size limits, eviction, invalidation, and concurrency safety.

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_Get_Missing(t *testing.T) {
	cache := New[string](5*time.Minute, 100)
	defer cache.Close()

	_, ok := cache.Get("never-set-key")
	assert.False(t, ok)
}

func TestCache_SetAndGet(t *testing.T) {
	cache := New[string](5*time.Minute, 100)
	defer cache.Close()

	cache.Set("my-key", "my-value")

	value, ok := cache.Get("my-key")
	assert.True(t, ok)
	assert.Equal(t, "my-value", value)
}

func TestCache_Get_Expired(t *testing.T) {
	// Use a very short TTL for testing
	cache := New[string](10*time.Millisecond, 100)
	defer cache.Close()

	cache.Set("expiring-key", "value")

	_, ok := cache.Get("expiring-key")
	assert.True(t, ok)

	// Wait for TTL to expire
	time.Sleep(20 * time.Millisecond)

	_, ok = cache.Get("expiring-key")
	assert.False(t, ok)
}

func TestCache_Set_RefreshesExisting(t *testing.T) {
	cache := New[int](5*time.Minute, 100)
	defer cache.Close()

	cache.Set("key", 1)
	cache.Set("key", 2)

	value, ok := cache.Get("key")
	assert.True(t, ok)
	assert.Equal(t, 2, value)
	assert.Equal(t, 1, cache.Len())
}

func TestCache_EvictsOldestAtCapacity(t *testing.T) {
	cache := New[int](5*time.Minute, 3)
	defer cache.Close()

	cache.Set("key-1", 1)
	cache.Set("key-2", 2)
	cache.Set("key-3", 3)
	cache.Set("key-4", 4)

	_, ok := cache.Get("key-1")
	assert.False(t, ok, "oldest entry should have been evicted")

	for _, key := range []string{"key-2", "key-3", "key-4"} {
		_, ok := cache.Get(key)
		assert.True(t, ok, "key %s should still be present", key)
	}
}

func TestCache_Invalidate(t *testing.T) {
	cache := New[string](5*time.Minute, 100)
	defer cache.Close()

	cache.Set("key", "value")
	cache.Invalidate("key")

	_, ok := cache.Get("key")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())

	// Invalidating a missing key is a no-op
	cache.Invalidate("missing")
}

func TestCache_ConcurrentAccess(t *testing.T) {
	cache := New[int](5*time.Minute, 1000)
	defer cache.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key-%d-%d", n, j)
				cache.Set(key, j)
				cache.Get(key)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1000, cache.Len())
}

func TestCache_CloseTwice(t *testing.T) {
	cache := New[string](5*time.Minute, 100)
	cache.Close()
	cache.Close()
}
