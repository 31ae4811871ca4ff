/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package store

import (
	"context"
	"time"
)

// CachingObjectStore layers a bounded in-memory cache over another object
// store. The cache may be shared across several caching stores; keys are
// expected to be globally unique (item IDs are).
type CachingObjectStore struct {
	inner ObjectStore
	cache *LRUCache
}

func NewCachingObjectStore(inner ObjectStore, cache *LRUCache) *CachingObjectStore {
	return &CachingObjectStore{inner: inner, cache: cache}
}

// Inner returns the decorated store.
func (c *CachingObjectStore) Inner() ObjectStore {
	return c.inner
}

func (c *CachingObjectStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if cached, ok := c.cache.Get(key); ok {
		return cached.([]byte), true, nil
	}

	data, found, err := c.inner.Get(ctx, key)
	if err != nil || !found {
		return nil, found, err
	}

	c.cache.Put(key, data)

	return data, true, nil
}

// RefreshAndGet bypasses the cache and reloads the entry from the backing
// store, so the cache reflects what was just persisted.
func (c *CachingObjectStore) RefreshAndGet(ctx context.Context, key string) ([]byte, bool, error) {
	data, found, err := c.inner.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}

	if !found {
		c.cache.Remove(key)
		return nil, false, nil
	}

	c.cache.Put(key, data)

	return data, true, nil
}

func (c *CachingObjectStore) Put(ctx context.Context, key string, value []byte) error {
	if err := c.inner.Put(ctx, key, value); err != nil {
		return err
	}

	c.cache.Put(key, value)

	return nil
}

func (c *CachingObjectStore) Delete(ctx context.Context, key string) error {
	c.cache.Remove(key)

	return c.inner.Delete(ctx, key)
}

func (c *CachingObjectStore) DeleteAll(ctx context.Context) error {
	c.cache.Clear()

	return c.inner.DeleteAll(ctx)
}

func (c *CachingObjectStore) Keys(ctx context.Context) ([]string, error) {
	return c.inner.Keys(ctx)
}

func (c *CachingObjectStore) UpdateDate(ctx context.Context, key string) (time.Time, error) {
	return c.inner.UpdateDate(ctx, key)
}

// ChildStore opens a child of the backing store. Children are not cached;
// callers decorate them explicitly when they want caching.
func (c *CachingObjectStore) ChildStore(ctx context.Context, name string) (ObjectStore, error) {
	return c.inner.ChildStore(ctx, name)
}

func (c *CachingObjectStore) DeleteChildStore(ctx context.Context, name string) error {
	return c.inner.DeleteChildStore(ctx, name)
}
