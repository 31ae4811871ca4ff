/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package store

import (
	"container/list"
	"sync"
)

// LRUCache is a fixed-capacity least-recently-used cache. A max count of 0
// disables eviction entirely. Safe for concurrent use.
type LRUCache struct {
	mu       sync.Mutex
	maxCount int
	entries  map[string]*list.Element
	order    *list.List
}

type lruEntry struct {
	key   string
	value interface{}
}

func NewLRUCache(maxCount int) *LRUCache {
	return &LRUCache{
		maxCount: maxCount,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached value and promotes the key to most recently used.
func (c *LRUCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, exists := c.entries[key]
	if !exists {
		return nil, false
	}

	c.order.MoveToFront(element)

	return element.Value.(*lruEntry).value, true
}

// Put inserts or replaces the value for key, evicting the least recently
// used entry when over capacity.
func (c *LRUCache) Put(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, exists := c.entries[key]; exists {
		element.Value.(*lruEntry).value = value
		c.order.MoveToFront(element)
		return
	}

	c.entries[key] = c.order.PushFront(&lruEntry{key: key, value: value})

	for c.maxCount > 0 && len(c.entries) > c.maxCount {
		c.evictOldest()
	}
}

func (c *LRUCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, exists := c.entries[key]; exists {
		c.order.Remove(element)
		delete(c.entries, key)
	}
}

func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Keys returns every cached key, most recently used first.
func (c *LRUCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.entries))
	for element := c.order.Front(); element != nil; element = element.Next() {
		keys = append(keys, element.Value.(*lruEntry).key)
	}

	return keys
}

func (c *LRUCache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func (c *LRUCache) MaxCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.maxCount
}

// SetMaxCount changes capacity. Shrinking takes effect on the next
// eviction-triggering Put, not immediately.
func (c *LRUCache) SetMaxCount(maxCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.maxCount = maxCount
}

func (c *LRUCache) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}

	c.order.Remove(oldest)
	delete(c.entries, oldest.Value.(*lruEntry).key)
}
