/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/microsoft/healthvault-client-go/pkg/types"
)

// PendingGetResult is the outcome of one batch fetch from the remote
// record: the keys asked for, the keys that came back, and the failure if
// the fetch did not complete.
type PendingGetResult struct {
	KeysRequested []types.ItemKey
	KeysFound     []types.ItemKey
	Err           error
}

func (r *PendingGetResult) HasKeysFound() bool {
	return len(r.KeysFound) > 0
}

// KeysNotFound derives the requested keys the fetch did not return.
func (r *PendingGetResult) KeysNotFound() []types.ItemKey {
	if r.Err != nil || len(r.KeysRequested) == 0 {
		return nil
	}

	found := make(map[types.ItemKey]struct{}, len(r.KeysFound))
	for _, key := range r.KeysFound {
		found[key] = struct{}{}
	}

	var missing []types.ItemKey
	for _, key := range r.KeysRequested {
		if _, ok := found[key]; !ok {
			missing = append(missing, key)
		}
	}

	return missing
}

// EnsureSuccess re-raises the failure captured during the fetch, if any.
func (r *PendingGetResult) EnsureSuccess() error {
	return r.Err
}

// PendingGetHandler is notified exactly once when a background fetch
// finishes. Panics raised by the handler are swallowed at the notification
// boundary and never reach the store's own control flow.
type PendingGetHandler func(result *PendingGetResult)

// SynchronizedStore reconciles a LocalItemStore with a remote record,
// serving reads local-first and filling misses from the remote either
// inline (no handler) or in the background (handler supplied).
//
// Synchronization is currently read-only: puts pass through to the local
// store without touching the remote.
type SynchronizedStore struct {
	mu       sync.RWMutex
	record   Record
	local    *LocalItemStore
	sections types.ItemSection
	log      zerolog.Logger
}

type SyncStoreOption func(s *SynchronizedStore)

func SyncStoreLogger(log *zerolog.Logger) SyncStoreOption {
	return func(s *SynchronizedStore) { s.log = *log }
}

func NewSynchronizedStore(record Record, local *LocalItemStore, opts ...SyncStoreOption) (*SynchronizedStore, error) {
	if record == nil {
		return nil, types.ErrRequired("record")
	}
	if local == nil {
		return nil, types.ErrRequired("itemStore")
	}

	s := &SynchronizedStore{
		record:   record,
		local:    local,
		sections: types.SectionStandard,
		log:      zerolog.Nop(),
	}

	for _, o := range opts {
		o(s)
	}

	return s, nil
}

// Record returns the remote record currently backing this store.
func (s *SynchronizedStore) Record() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.record
}

// SetRecord swaps the remote record reference. The session layer reissues
// records with fresh auth context; local state is unaffected.
func (s *SynchronizedStore) SetRecord(record Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record = record
}

// Local is the local item store backing this synchronized store.
func (s *SynchronizedStore) Local() *LocalItemStore {
	return s.local
}

func (s *SynchronizedStore) SectionsToFetch() types.ItemSection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sections
}

func (s *SynchronizedStore) SetSectionsToFetch(sections types.ItemSection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sections = sections
}

// Get returns typed payloads positionally aligned with keys: the local item
// where available and version/type matching, nil where pending. With no
// handler the call waits until pending items are downloaded and filled in;
// with a handler it returns the local snapshot immediately and the handler
// fires once when the background fetch completes.
func (s *SynchronizedStore) Get(ctx context.Context, keys []types.ItemKey, typeVersions []string, callback PendingGetHandler) ([]*types.ItemData, error) {
	items, err := s.GetItems(ctx, keys, typeVersions, callback)
	if err != nil {
		return nil, err
	}

	data := make([]*types.ItemData, len(items))
	for i, item := range items {
		if item != nil {
			data[i] = item.TypedData()
		}
	}

	return data, nil
}

// GetItems is Get returning full record items.
func (s *SynchronizedStore) GetItems(ctx context.Context, keys []types.ItemKey, typeVersions []string, callback PendingGetHandler) ([]*types.RecordItem, error) {
	if len(keys) == 0 {
		return nil, types.ErrRequired("keys")
	}

	foundItems, err := s.local.GetItems(ctx, keys, true)
	if err != nil {
		return nil, err
	}

	pendingKeys := s.collectKeysNeedingDownload(keys, typeVersions, foundItems)
	if len(pendingKeys) == 0 {
		return foundItems, nil
	}

	pendingResult, err := s.download(ctx, pendingKeys, typeVersions, callback)
	if err != nil {
		return nil, err
	}
	if pendingResult == nil {
		// Fetch is running in the background.
		return foundItems, nil
	}

	if pendingResult.HasKeysFound() {
		if err := s.loadNewItems(ctx, foundItems, keys, pendingResult.KeysFound); err != nil {
			return nil, err
		}
	}

	return foundItems, nil
}

// GetByViewKeys is Get addressed by view index entries.
func (s *SynchronizedStore) GetByViewKeys(ctx context.Context, viewKeys []*ViewKey, typeVersions []string) ([]*types.ItemData, error) {
	keys := make([]types.ItemKey, len(viewKeys))
	for i, vk := range viewKeys {
		keys[i] = vk.Key
	}

	return s.Get(ctx, keys, typeVersions, nil)
}

// Put writes typed payloads to the local store. No remote interaction.
func (s *SynchronizedStore) Put(ctx context.Context, data []*types.ItemData) error {
	items := make([]*types.RecordItem, len(data))
	for i, d := range data {
		if d == nil || d.Item() == nil {
			return types.ErrRequired("data.Item")
		}

		items[i] = d.Item()
	}

	return s.local.PutItems(ctx, items)
}

// PutItems writes items to the local store. No remote interaction.
func (s *SynchronizedStore) PutItems(ctx context.Context, items []*types.RecordItem) error {
	return s.local.PutItems(ctx, items)
}

// Refresh downloads whichever of keys are locally absent or fail the
// type-version check. Without a handler, a nil result with nil error means
// nothing needed refreshing. With a handler, the handler fires exactly once
// in every non-error case, with an empty result when nothing was pending.
func (s *SynchronizedStore) Refresh(ctx context.Context, keys []types.ItemKey, typeVersions []string, callback PendingGetHandler) (*PendingGetResult, error) {
	pendingKeys, err := s.collectKeysNotInLocalStore(ctx, keys, typeVersions)
	if err != nil {
		return nil, err
	}
	if len(pendingKeys) == 0 {
		s.notifyPendingGetComplete(callback, &PendingGetResult{})
		return nil, nil
	}

	return s.download(ctx, pendingKeys, typeVersions, callback)
}

// Download unconditionally (re)fetches keys from the remote, regardless of
// local freshness, and writes the results locally.
func (s *SynchronizedStore) Download(ctx context.Context, keys []types.ItemKey, typeVersions []string, callback PendingGetHandler) (*PendingGetResult, error) {
	if len(keys) == 0 {
		return nil, types.ErrRequired("keys")
	}

	return s.download(ctx, keys, typeVersions, callback)
}

// download runs the batch fetch. With a handler it launches the fetch in
// the background and returns nil immediately; failures are then visible
// only to the handler. Without one it waits and re-raises any captured
// failure.
func (s *SynchronizedStore) download(ctx context.Context, keys []types.ItemKey, typeVersions []string, callback PendingGetHandler) (*PendingGetResult, error) {
	if callback != nil {
		// Detached from the caller's context: the UI call returns now, the
		// fetch keeps going.
		go s.downloadItems(context.Background(), keys, typeVersions, callback)
		return nil, nil
	}

	result := s.downloadItems(ctx, keys, typeVersions, nil)
	if err := result.EnsureSuccess(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *SynchronizedStore) downloadItems(ctx context.Context, keys []types.ItemKey, typeVersions []string, callback PendingGetHandler) *PendingGetResult {
	result := &PendingGetResult{KeysRequested: keys}

	query := types.QueryForKeys(keys)
	query.View.Sections = s.SectionsToFetch()
	if len(typeVersions) > 0 {
		query.View.TypeVersions = append(query.View.TypeVersions, typeVersions...)
	}

	items, err := s.Record().GetAllItems(ctx, query)
	if err == nil {
		err = s.local.PutItems(ctx, items)
	}

	if err != nil {
		result.Err = err
		s.log.Debug().Err(err).Int("keys", len(keys)).Msg("batch download failed")
	} else {
		result.KeysFound = make([]types.ItemKey, len(items))
		for i, item := range items {
			result.KeysFound[i] = item.Key
		}
	}

	s.notifyPendingGetComplete(callback, result)

	return result
}

func (s *SynchronizedStore) collectKeysNotInLocalStore(ctx context.Context, keys []types.ItemKey, typeVersions []string) ([]types.ItemKey, error) {
	foundItems, err := s.local.GetItems(ctx, keys, true)
	if err != nil {
		return nil, err
	}

	return s.collectKeysNeedingDownload(keys, typeVersions, foundItems), nil
}

// collectKeysNeedingDownload selects the requested keys whose local item at
// the same ordinal is absent, or present with a type outside the requested
// type versions.
func (s *SynchronizedStore) collectKeysNeedingDownload(requestedKeys []types.ItemKey, typeVersions []string, localItems []*types.RecordItem) []types.ItemKey {
	var versions map[string]struct{}
	if len(typeVersions) > 0 {
		versions = make(map[string]struct{}, len(typeVersions))
		for _, v := range typeVersions {
			versions[v] = struct{}{}
		}
	}

	var pending []types.ItemKey
	for i, key := range requestedKeys {
		item := localItems[i]
		needsDownload := item == nil
		if !needsDownload && versions != nil {
			_, ok := versions[item.Type.ID]
			needsDownload = !ok
		}

		if needsDownload {
			pending = append(pending, key)
		}
	}

	return pending
}

// loadNewItems reloads every requested key the download found, through the
// local store so any cache layer observes the just-written item. Keys not
// found stay nil.
func (s *SynchronizedStore) loadNewItems(ctx context.Context, items []*types.RecordItem, keysRequested, keysFound []types.ItemKey) error {
	if len(items) != len(keysRequested) {
		return fmt.Errorf("%w : %d items for %d requested keys", ErrInconsistent, len(items), len(keysRequested))
	}

	found := make(map[types.ItemKey]struct{}, len(keysFound))
	for _, key := range keysFound {
		found[key] = struct{}{}
	}

	for i, key := range keysRequested {
		if _, ok := found[key]; !ok {
			continue
		}

		item, err := s.local.GetItem(ctx, key)
		if err != nil {
			return err
		}

		items[i] = item
	}

	return nil
}

func (s *SynchronizedStore) notifyPendingGetComplete(callback PendingGetHandler, result *PendingGetResult) {
	if callback == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Debug().Interface("panic", r).Msg("pending get callback panicked")
		}
	}()

	callback(result)
}
