/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package store

import (
	"context"
	"encoding/json"
	"sync"
)

// LocalStore is a typed convenience layer over an ObjectStore: values are
// JSON documents, access is serialized by a store-wide lock. The record
// store uses one for view/query metadata and one for blobs.
type LocalStore struct {
	mu   sync.Mutex
	objs ObjectStore
}

func NewLocalStore(objs ObjectStore) *LocalStore {
	return &LocalStore{objs: objs}
}

// Store exposes the underlying object store.
func (s *LocalStore) Store() ObjectStore {
	return s.objs
}

// Get decodes the value under key into out. Returns false when absent.
func (s *LocalStore) Get(ctx context.Context, key string, out interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, found, err := s.objs.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, ErrGenericErrorWrap("decoding stored value", err)
	}

	return true, nil
}

func (s *LocalStore) Put(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return ErrGenericErrorWrap("encoding value", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.objs.Put(ctx, key, data)
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.objs.Delete(ctx, key)
}

func (s *LocalStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.objs.Keys(ctx)
}

// GetBytes reads a raw value, for blob payloads that are not JSON.
func (s *LocalStore) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.objs.Get(ctx, key)
}

func (s *LocalStore) PutBytes(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.objs.Put(ctx, key, value)
}
