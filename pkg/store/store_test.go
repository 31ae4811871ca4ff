/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/microsoft/healthvault-client-go/pkg/types"
)

const testTypeID = "3d34d87e-7fc1-4153-800f-f56592cb0d17"

// fakeRecord is an in-memory remote record. Tests seed it, point stores at
// it, and count how often the store reaches out.
type fakeRecord struct {
	mu    sync.Mutex
	id    string
	items map[string]*types.RecordItem
	order []string

	getAllCalls  int
	keysCalls    int
	err          error
	lastQueryIDs []string
}

func newFakeRecord() *fakeRecord {
	return &fakeRecord{
		id:    uuid.NewString(),
		items: make(map[string]*types.RecordItem),
	}
}

func (r *fakeRecord) ID() string {
	return r.id
}

func (r *fakeRecord) add(item *types.RecordItem) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[item.Key.ID]; !exists {
		r.order = append(r.order, item.Key.ID)
	}
	r.items[item.Key.ID] = item
}

func (r *fakeRecord) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *fakeRecord) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.err = err
}

func (r *fakeRecord) getAllCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.getAllCalls
}

func (r *fakeRecord) GetAllItems(_ context.Context, query *types.ItemQuery) ([]*types.RecordItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.getAllCalls++
	if r.err != nil {
		return nil, r.err
	}

	r.lastQueryIDs = nil

	var items []*types.RecordItem
	for _, key := range query.ItemKeys {
		r.lastQueryIDs = append(r.lastQueryIDs, key.ID)
		if item, ok := r.items[key.ID]; ok {
			items = append(items, item)
		}
	}

	return items, nil
}

func (r *fakeRecord) GetKeysAndDate(_ context.Context, _ []types.ItemFilter, maxResults int) ([]*types.PendingItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.keysCalls++
	if r.err != nil {
		return nil, r.err
	}

	var pending []*types.PendingItem
	for _, id := range r.order {
		if maxResults > 0 && len(pending) == maxResults {
			break
		}

		item := r.items[id]
		pending = append(pending, &types.PendingItem{
			Key:           item.Key,
			TypeID:        item.Type.ID,
			EffectiveDate: item.EffectiveDate,
		})
	}

	return pending, nil
}

func makeItem(daysAgo int, payload string) *types.RecordItem {
	date := time.Now().UTC().Add(-time.Duration(daysAgo) * 24 * time.Hour)
	item := &types.RecordItem{
		Key:           types.ItemKey{ID: uuid.NewString(), Version: uuid.NewString()},
		Type:          types.ItemType{ID: testTypeID, Name: "Weight Measurement"},
		EffectiveDate: &date,
		Data:          &types.ItemData{Payload: []byte(payload)},
	}
	item.Bind()

	return item
}

func seedRecord(n int) (*fakeRecord, []*types.RecordItem) {
	record := newFakeRecord()

	items := make([]*types.RecordItem, n)
	for i := 0; i < n; i++ {
		items[i] = makeItem(i, fmt.Sprintf(`{"kg": %d}`, 70+i))
		record.add(items[i])
	}

	return record, items
}

func newTestItemStore(t *testing.T, cache *LRUCache) *LocalItemStore {
	t.Helper()

	objs, err := NewFolderObjectStore(t.TempDir())
	require.NoError(t, err)

	return NewLocalItemStore(objs, cache)
}

func newTestSyncStore(t *testing.T, record Record) *SynchronizedStore {
	t.Helper()

	s, err := NewSynchronizedStore(record, newTestItemStore(t, nil))
	require.NoError(t, err)

	return s
}

func keysOf(items []*types.RecordItem) []types.ItemKey {
	keys := make([]types.ItemKey, len(items))
	for i, item := range items {
		keys[i] = item.Key
	}

	return keys
}
