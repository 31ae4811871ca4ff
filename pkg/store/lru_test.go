/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRUCacheEvictsOldest(t *testing.T) {
	cache := NewLRUCache(2)

	cache.Put("a", 1)
	cache.Put("b", 2)
	cache.Put("c", 3)

	assert.Equal(t, 2, cache.Count())

	_, found := cache.Get("a")
	assert.False(t, found)

	v, found := cache.Get("b")
	assert.True(t, found)
	assert.Equal(t, 2, v)

	_, found = cache.Get("c")
	assert.True(t, found)
}

func TestLRUCacheGetPromotes(t *testing.T) {
	cache := NewLRUCache(2)

	cache.Put("a", 1)
	cache.Put("b", 2)

	// Touching a makes b the eviction candidate.
	_, found := cache.Get("a")
	assert.True(t, found)

	cache.Put("c", 3)

	_, found = cache.Get("a")
	assert.True(t, found)

	_, found = cache.Get("b")
	assert.False(t, found)
}

func TestLRUCachePutReplaces(t *testing.T) {
	cache := NewLRUCache(2)

	cache.Put("a", 1)
	cache.Put("a", 10)

	assert.Equal(t, 1, cache.Count())

	v, found := cache.Get("a")
	assert.True(t, found)
	assert.Equal(t, 10, v)
}

func TestLRUCacheUnbounded(t *testing.T) {
	cache := NewLRUCache(0)

	for i := 0; i < 1000; i++ {
		cache.Put(fmt.Sprintf("key-%d", i), i)
	}

	assert.Equal(t, 1000, cache.Count())
}

func TestLRUCacheKeysMostRecentFirst(t *testing.T) {
	cache := NewLRUCache(3)

	cache.Put("a", 1)
	cache.Put("b", 2)
	cache.Put("c", 3)
	cache.Get("a")

	assert.Equal(t, []string{"a", "c", "b"}, cache.Keys())
}

func TestLRUCacheRemoveAndClear(t *testing.T) {
	cache := NewLRUCache(3)

	cache.Put("a", 1)
	cache.Put("b", 2)

	cache.Remove("a")
	assert.Equal(t, 1, cache.Count())

	// Removing an absent key is a no-op.
	cache.Remove("missing")
	assert.Equal(t, 1, cache.Count())

	cache.Clear()
	assert.Equal(t, 0, cache.Count())
	assert.Empty(t, cache.Keys())
}

func TestLRUCacheSetMaxCountAppliesOnNextPut(t *testing.T) {
	cache := NewLRUCache(10)

	cache.Put("a", 1)
	cache.Put("b", 2)
	cache.Put("c", 3)

	cache.SetMaxCount(2)
	assert.Equal(t, 3, cache.Count())

	cache.Put("d", 4)
	assert.Equal(t, 2, cache.Count())
	assert.Equal(t, 2, cache.MaxCount())
}
