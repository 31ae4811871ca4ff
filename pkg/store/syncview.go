/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/microsoft/healthvault-client-go/pkg/types"
)

// DefaultReadAheadChunkSize is how many neighboring items a view fetches
// per background batch when an index access misses locally.
const DefaultReadAheadChunkSize = 25

// ViewNotifier receives view lifecycle callbacks: items that became locally
// available, items the remote no longer has, and fetch failures. Callbacks
// arrive on background goroutines. Panics raised inside a notifier are
// swallowed at the dispatch boundary.
type ViewNotifier interface {
	ItemsAvailable(view *SynchronizedView, keys []types.ItemKey)
	ItemsNotFound(view *SynchronizedView, keys []types.ItemKey)
	Error(view *SynchronizedView, err error)
}

// SynchronizedView is an ordered, lazily materialized window over a record:
// a sorted key index refreshed from the remote plus item access that serves
// locally and read-aheads the rest in batches.
type SynchronizedView struct {
	mu    sync.RWMutex
	store *SynchronizedStore
	data  *ViewData

	readAheadChunkSize int
	notifier           ViewNotifier
	log                zerolog.Logger
}

type ViewOption func(v *SynchronizedView)

func ViewNotifierOption(notifier ViewNotifier) ViewOption {
	return func(v *SynchronizedView) { v.notifier = notifier }
}

func ViewReadAheadChunkSize(size int) ViewOption {
	return func(v *SynchronizedView) {
		if size > 0 {
			v.readAheadChunkSize = size
		}
	}
}

func ViewLogger(log *zerolog.Logger) ViewOption {
	return func(v *SynchronizedView) { v.log = *log }
}

func NewSynchronizedView(store *SynchronizedStore, data *ViewData, opts ...ViewOption) (*SynchronizedView, error) {
	if store == nil {
		return nil, types.ErrRequired("store")
	}
	if data == nil || !data.HasQuery() {
		return nil, types.ErrRequired("data.Query")
	}

	if data.Keys == nil {
		data.Keys = NewViewKeyCollection()
	}

	v := &SynchronizedView{
		store:              store,
		data:               data,
		readAheadChunkSize: DefaultReadAheadChunkSize,
		log:                zerolog.Nop(),
	}

	for _, o := range opts {
		o(v)
	}

	return v, nil
}

func (v *SynchronizedView) Name() string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.data.Name
}

func (v *SynchronizedView) Store() *SynchronizedStore {
	return v.store
}

// Data exposes the view's persistable state for the record store to save.
func (v *SynchronizedView) Data() *ViewData {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.data
}

func (v *SynchronizedView) Query() *types.ItemQuery {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.data.Query
}

func (v *SynchronizedView) Keys() *ViewKeyCollection {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.data.Keys
}

func (v *SynchronizedView) KeyCount() int {
	return v.Keys().Count()
}

func (v *SynchronizedView) LastUpdated() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.data.LastUpdated
}

func (v *SynchronizedView) SetNotifier(notifier ViewNotifier) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.notifier = notifier
}

func (v *SynchronizedView) ReadAheadChunkSize() int {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.readAheadChunkSize
}

// SetReadAheadChunkSize adjusts the batch size; values below one fail.
func (v *SynchronizedView) SetReadAheadChunkSize(size int) error {
	if size <= 0 {
		return ErrGenericError("read ahead chunk size must be positive")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.readAheadChunkSize = size

	return nil
}

// IsStale reports whether the view needs a Synchronize: it has never been
// synchronized, or its key index is older than maxAge.
func (v *SynchronizedView) IsStale(maxAge time.Duration) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.data.KeyCount() == 0 && v.data.LastUpdated.IsZero() {
		return true
	}

	return v.data.IsStale(maxAge)
}

// Synchronize rebuilds the key index from the remote record. The previous
// index, including any load-pending flags, is replaced wholesale; item data
// already stored locally stays untouched.
func (v *SynchronizedView) Synchronize(ctx context.Context) error {
	query := v.Query()
	if err := query.Validate(); err != nil {
		return err
	}

	pendingItems, err := v.store.Record().GetKeysAndDate(ctx, query.Filters, query.MaxResults)
	if err != nil {
		return err
	}

	keys := NewViewKeyCollection()
	if err := keys.AddFromPendingItems(pendingItems); err != nil {
		return err
	}

	v.mu.Lock()
	v.data.Keys = keys
	v.data.LastUpdated = time.Now().UTC()
	v.mu.Unlock()

	v.log.Debug().Str("view", v.Name()).Int("keys", keys.Count()).Msg("view synchronized")

	return nil
}

// GetItem returns the item at index when it is locally available, or nil
// after kicking off a background read-ahead batch starting at index. The
// notifier reports when the batch lands.
func (v *SynchronizedView) GetItem(ctx context.Context, index int) (*types.RecordItem, error) {
	item, err := v.getLocalItem(ctx, index)
	if err != nil {
		return nil, err
	}

	if item == nil {
		v.beginReadAhead(ctx, index)
	}

	return item, nil
}

// GetData is GetItem returning the typed payload.
func (v *SynchronizedView) GetData(ctx context.Context, index int) (*types.ItemData, error) {
	item, err := v.GetItem(ctx, index)
	if err != nil || item == nil || !item.HasTypedData() {
		return nil, err
	}

	return item.TypedData(), nil
}

// GetItems returns the items in [startAt, startAt+count), count clamped to
// the key range, positionally aligned with nil for items not yet local. One
// read-ahead batch is started at the first missing index.
func (v *SynchronizedView) GetItems(ctx context.Context, startAt, count int) ([]*types.RecordItem, error) {
	keys := v.Keys()
	if err := keys.ValidateIndex(startAt); err != nil {
		return nil, err
	}
	if err := validateCount(count); err != nil {
		return nil, err
	}

	count = keys.CorrectedCount(startAt, count)
	items := make([]*types.RecordItem, count)

	firstMissing := -1
	for i := 0; i < count; i++ {
		item, err := v.getLocalItem(ctx, startAt+i)
		if err != nil {
			return nil, err
		}

		items[i] = item
		if item == nil && firstMissing < 0 {
			firstMissing = startAt + i
		}
	}

	if firstMissing >= 0 {
		v.beginReadAhead(ctx, firstMissing)
	}

	return items, nil
}

// EnsureItemAvailableAndGet returns the item at index, downloading it first
// if needed. When another fetch already has the key in flight the call does
// not join it and returns nil; the notifier reports that fetch's completion.
func (v *SynchronizedView) EnsureItemAvailableAndGet(ctx context.Context, index int) (*types.RecordItem, error) {
	item, err := v.getLocalItem(ctx, index)
	if err != nil || item != nil {
		return item, err
	}

	viewKey, err := v.Keys().Get(index)
	if err != nil {
		return nil, err
	}
	if viewKey.IsLoadPending() {
		return nil, nil
	}

	if err := v.downloadAwaited(ctx, []*ViewKey{viewKey}); err != nil {
		return nil, err
	}

	return v.getLocalItem(ctx, index)
}

// EnsureItemsAvailableAndGet returns the items in [startAt, startAt+count),
// downloading the locally missing ones first. Slots whose keys were already
// in flight elsewhere stay nil.
func (v *SynchronizedView) EnsureItemsAvailableAndGet(ctx context.Context, startAt, count int) ([]*types.RecordItem, error) {
	keys := v.Keys()
	if err := keys.ValidateIndex(startAt); err != nil {
		return nil, err
	}
	if err := validateCount(count); err != nil {
		return nil, err
	}

	count = keys.CorrectedCount(startAt, count)

	var toFetch []*ViewKey
	for i := startAt; i < startAt+count; i++ {
		item, err := v.getLocalItem(ctx, i)
		if err != nil {
			return nil, err
		}

		if item == nil {
			viewKey, err := keys.Get(i)
			if err != nil {
				return nil, err
			}

			if !viewKey.IsLoadPending() {
				toFetch = append(toFetch, viewKey)
			}
		}
	}

	if len(toFetch) > 0 {
		if err := v.downloadAwaited(ctx, toFetch); err != nil {
			return nil, err
		}
	}

	items := make([]*types.RecordItem, count)
	for i := 0; i < count; i++ {
		item, err := v.getLocalItem(ctx, startAt+i)
		if err != nil {
			return nil, err
		}

		items[i] = item
	}

	return items, nil
}

// getLocalItem serves index from the local store only. An item stored under
// a type outside the query's type versions counts as missing, so it gets
// refetched in the requested version.
func (v *SynchronizedView) getLocalItem(ctx context.Context, index int) (*types.RecordItem, error) {
	keys := v.Keys()

	viewKey, err := keys.Get(index)
	if err != nil {
		return nil, err
	}

	item, err := v.store.Local().GetItem(ctx, viewKey.Key)
	if err != nil || item == nil {
		return nil, err
	}

	if !v.typeVersionMatches(item) {
		return nil, nil
	}

	return item, nil
}

// typeVersionMatches applies the query's type-version constraint; an empty
// constraint accepts every stored version.
func (v *SynchronizedView) typeVersionMatches(item *types.RecordItem) bool {
	versions := v.typeVersions()
	if len(versions) == 0 {
		return true
	}

	for _, version := range versions {
		if item.Type.ID == version {
			return true
		}
	}

	return false
}

func (v *SynchronizedView) typeVersions() []string {
	query := v.Query()
	if query == nil {
		return nil
	}

	return query.View.TypeVersions
}

// beginReadAhead claims up to a chunk of keys starting at index, marking
// them load pending, and hands them to the store for a background refresh.
// Claiming is atomic per chunk, so overlapping accesses coalesce into one
// batch instead of issuing duplicate fetches. The refresh callback clears
// every flag this call set, whether the fetch succeeded, failed, or turned
// out to be unnecessary.
func (v *SynchronizedView) beginReadAhead(ctx context.Context, index int) {
	viewKeys := v.Keys().BeginLoad(index, v.ReadAheadChunkSize())
	if len(viewKeys) == 0 {
		return
	}

	itemKeys := itemKeysOf(viewKeys)

	_, err := v.store.Refresh(ctx, itemKeys, v.typeVersions(), func(result *PendingGetResult) {
		clearLoadPending(viewKeys)
		v.reportResult(result)
	})
	if err != nil {
		clearLoadPending(viewKeys)
		v.notifyError(err)
	}
}

// downloadAwaited fetches the given keys synchronously, holding their load
// pending flags for the duration.
func (v *SynchronizedView) downloadAwaited(ctx context.Context, viewKeys []*ViewKey) error {
	itemKeys := markLoadPending(viewKeys)
	defer clearLoadPending(viewKeys)

	result, err := v.store.Download(ctx, itemKeys, v.typeVersions(), nil)
	if err != nil {
		v.notifyError(err)
		return err
	}

	v.reportResult(result)

	return nil
}

// reportResult routes a completed fetch to the notifier.
func (v *SynchronizedView) reportResult(result *PendingGetResult) {
	if err := result.EnsureSuccess(); err != nil {
		v.notifyError(err)
		return
	}

	if result.HasKeysFound() {
		v.notifyItemsAvailable(result.KeysFound)
	}
	if missing := result.KeysNotFound(); len(missing) > 0 {
		v.notifyItemsNotFound(missing)
	}
}

func (v *SynchronizedView) currentNotifier() ViewNotifier {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.notifier
}

func (v *SynchronizedView) notifyItemsAvailable(keys []types.ItemKey) {
	notifier := v.currentNotifier()
	if notifier == nil {
		return
	}

	defer v.recoverNotify("itemsAvailable")
	notifier.ItemsAvailable(v, keys)
}

func (v *SynchronizedView) notifyItemsNotFound(keys []types.ItemKey) {
	notifier := v.currentNotifier()
	if notifier == nil {
		return
	}

	defer v.recoverNotify("itemsNotFound")
	notifier.ItemsNotFound(v, keys)
}

func (v *SynchronizedView) notifyError(err error) {
	notifier := v.currentNotifier()
	if notifier == nil {
		return
	}

	defer v.recoverNotify("error")
	notifier.Error(v, err)
}

func (v *SynchronizedView) recoverNotify(event string) {
	if r := recover(); r != nil {
		v.log.Debug().Str("event", event).Interface("panic", r).Msg("view notifier panicked")
	}
}

func markLoadPending(viewKeys []*ViewKey) []types.ItemKey {
	for _, vk := range viewKeys {
		vk.SetLoadPending(true)
	}

	return itemKeysOf(viewKeys)
}

func clearLoadPending(viewKeys []*ViewKey) {
	for _, vk := range viewKeys {
		vk.SetLoadPending(false)
	}
}

func itemKeysOf(viewKeys []*ViewKey) []types.ItemKey {
	itemKeys := make([]types.ItemKey, len(viewKeys))
	for i, vk := range viewKeys {
		itemKeys[i] = vk.Key
	}

	return itemKeys
}
