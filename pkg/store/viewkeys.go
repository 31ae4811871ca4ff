/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/microsoft/healthvault-client-go/pkg/types"
)

// ViewKey is one index entry of a view: the item key plus the effective
// date used for ordering. The load-pending flag is run-time state only; it
// marks an in-flight background fetch and is never persisted, since no
// fetch survives a process restart. The flag is read and written from the
// view's caller goroutines and from fetch completion goroutines, hence
// atomic.
type ViewKey struct {
	Key           types.ItemKey `json:"key"`
	EffectiveDate *time.Time    `json:"effectiveDate,omitempty"`

	loadPending atomic.Bool
}

func ViewKeyFromPendingItem(item *types.PendingItem) *ViewKey {
	return &ViewKey{Key: item.Key, EffectiveDate: item.EffectiveDate}
}

func ViewKeyFromItem(item *types.RecordItem) *ViewKey {
	return &ViewKey{Key: item.Key, EffectiveDate: item.EffectiveDate}
}

// ID is the view key's identity: the underlying item ID.
func (k *ViewKey) ID() string {
	return k.Key.ID
}

// IsLoadPending reports whether a background fetch for this key is in
// flight.
func (k *ViewKey) IsLoadPending() bool {
	return k.loadPending.Load()
}

func (k *ViewKey) SetLoadPending(pending bool) {
	k.loadPending.Store(pending)
}

func (k *ViewKey) Validate() error {
	if k == nil {
		return types.ErrRequired("viewKey")
	}

	return k.Key.Validate()
}

// ViewKeyCollection is the ordered key set of a view. It tracks insertion
// order internally and sorts lazily: any read that depends on order first
// ensures a full sort by (EffectiveDate descending, then key). A parallel
// index by item ID gives O(1) identity lookups and duplicate detection.
//
// Safe for concurrent use; reads during concurrent mutation see a live,
// not snapshot, state.
type ViewKeyCollection struct {
	mu     sync.Mutex
	keys   []*ViewKey
	byID   map[string]*ViewKey
	sorted bool
}

func NewViewKeyCollection() *ViewKeyCollection {
	return &ViewKeyCollection{byID: make(map[string]*ViewKey)}
}

func (c *ViewKeyCollection) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.keys)
}

// Add appends a key. Fails when a key with the same ID is already present;
// the collection is unchanged in that case.
func (c *ViewKeyCollection) Add(key *ViewKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.addLocked(key)
}

func (c *ViewKeyCollection) AddRange(keys []*ViewKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		if err := c.addLocked(key); err != nil {
			return err
		}
	}

	return nil
}

func (c *ViewKeyCollection) AddFromPendingItems(items []*types.PendingItem) error {
	keys := make([]*ViewKey, len(items))
	for i, item := range items {
		keys[i] = ViewKeyFromPendingItem(item)
	}

	return c.AddRange(keys)
}

func (c *ViewKeyCollection) AddFromItems(items []*types.RecordItem) error {
	keys := make([]*ViewKey, len(items))
	for i, item := range items {
		keys[i] = ViewKeyFromItem(item)
	}

	return c.AddRange(keys)
}

func (c *ViewKeyCollection) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.keys = nil
	c.byID = make(map[string]*ViewKey)
	c.sorted = false
}

// Get returns the key at index in sorted order.
func (c *ViewKeyCollection) Get(index int) (*ViewKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.validateIndexLocked(index); err != nil {
		return nil, err
	}

	c.ensureOrderedLocked()

	return c.keys[index], nil
}

func (c *ViewKeyCollection) GetByID(id string) *ViewKey {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.byID[id]
}

func (c *ViewKeyCollection) GetByItemKey(key types.ItemKey) *ViewKey {
	return c.GetByID(key.ID)
}

func (c *ViewKeyCollection) ContainsID(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, exists := c.byID[id]

	return exists
}

// IndexOf binary-searches for key in sorted order; -1 when absent.
func (c *ViewKeyCollection) IndexOf(key *ViewKey) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.indexOfLocked(key)
}

// IndexOfID resolves id through the identity index, then locates its sorted
// position; -1 when absent.
func (c *ViewKeyCollection) IndexOfID(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, exists := c.byID[id]
	if !exists {
		return -1
	}

	return c.indexOfLocked(key)
}

func (c *ViewKeyCollection) IndexOfItemKey(key types.ItemKey) int {
	return c.IndexOfID(key.ID)
}

func (c *ViewKeyCollection) RemoveAt(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.validateIndexLocked(index); err != nil {
		return err
	}

	c.ensureOrderedLocked()

	removed := c.keys[index]
	c.keys = append(c.keys[:index], c.keys[index+1:]...)
	delete(c.byID, removed.ID())

	return nil
}

// RemoveByID removes the key with the given ID and returns its former
// sorted index, or -1 when absent. Index 0 is removable like any other.
func (c *ViewKeyCollection) RemoveByID(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, exists := c.byID[id]
	if !exists {
		return -1
	}

	index := c.indexOfLocked(key)
	if index >= 0 {
		c.keys = append(c.keys[:index], c.keys[index+1:]...)
		delete(c.byID, id)
	}

	return index
}

func (c *ViewKeyCollection) RemoveByItemKey(key types.ItemKey) int {
	return c.RemoveByID(key.ID)
}

// InsertInOrder places key at its sorted position and returns that index.
// Unlike Add, an existing key with the same ID is replaced.
func (c *ViewKeyCollection) InsertInOrder(key *ViewKey) (int, error) {
	if err := key.Validate(); err != nil {
		return -1, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.byID[key.ID()]; ok {
		if index := c.indexOfLocked(existing); index >= 0 {
			c.keys = append(c.keys[:index], c.keys[index+1:]...)
		}
		delete(c.byID, key.ID())
	}

	c.ensureOrderedLocked()

	index := sort.Search(len(c.keys), func(i int) bool {
		return compareViewKeys(c.keys[i], key) >= 0
	})

	c.keys = append(c.keys, nil)
	copy(c.keys[index+1:], c.keys[index:])
	c.keys[index] = key
	c.byID[key.ID()] = key

	return index, nil
}

// SelectKeys returns the sorted keys in [startAt, startAt+count), count
// clamped to the collection size. Negative counts fail.
func (c *ViewKeyCollection) SelectKeys(startAt, count int) ([]*ViewKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.validateIndexLocked(startAt); err != nil {
		return nil, err
	}
	if err := validateCount(count); err != nil {
		return nil, err
	}

	count = c.correctCountLocked(startAt, count)

	keys := make([]*ViewKey, count)
	copy(keys, c.keys[startAt:startAt+count])

	return keys, nil
}

func (c *ViewKeyCollection) SelectItemKeys(startAt, count int) ([]types.ItemKey, error) {
	viewKeys, err := c.SelectKeys(startAt, count)
	if err != nil {
		return nil, err
	}

	keys := make([]types.ItemKey, len(viewKeys))
	for i, vk := range viewKeys {
		keys[i] = vk.Key
	}

	return keys, nil
}

// SelectKeysNotAlreadyLoading returns the keys in the range whose load is
// not already pending, without claiming them. Use BeginLoad to claim.
func (c *ViewKeyCollection) SelectKeysNotAlreadyLoading(startAt, count int) []*ViewKey {
	c.mu.Lock()
	defer c.mu.Unlock()

	if startAt < 0 || startAt >= len(c.keys) {
		return nil
	}

	c.ensureOrderedLocked()
	count = c.correctCountLocked(startAt, count)

	var keys []*ViewKey
	for i := startAt; i < startAt+count; i++ {
		if !c.keys[i].IsLoadPending() {
			keys = append(keys, c.keys[i])
		}
	}

	return keys
}

// BeginLoad selects the keys in [startAt, startAt+count) not already load
// pending and marks them pending, as one step under the collection lock.
// Concurrent read-ahead planners over overlapping ranges therefore build
// disjoint batches; at most one of them claims any given key.
func (c *ViewKeyCollection) BeginLoad(startAt, count int) []*ViewKey {
	c.mu.Lock()
	defer c.mu.Unlock()

	if startAt < 0 || startAt >= len(c.keys) {
		return nil
	}

	c.ensureOrderedLocked()
	count = c.correctCountLocked(startAt, count)

	var keys []*ViewKey
	for i := startAt; i < startAt+count; i++ {
		if c.keys[i].loadPending.CompareAndSwap(false, true) {
			keys = append(keys, c.keys[i])
		}
	}

	return keys
}

// MinDate is the oldest effective date in the collection; zero when empty.
func (c *ViewKeyCollection) MinDate() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.keys) == 0 {
		return time.Time{}
	}

	c.ensureOrderedLocked()

	// Descending order: the last element carries the minimum.
	return dateOf(c.keys[len(c.keys)-1])
}

func (c *ViewKeyCollection) MaxDate() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.keys) == 0 {
		return time.Time{}
	}

	c.ensureOrderedLocked()

	return dateOf(c.keys[0])
}

// CorrectedCount clamps count so startAt+count stays within the key range.
func (c *ViewKeyCollection) CorrectedCount(startAt, count int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.correctCountLocked(startAt, count)
}

func (c *ViewKeyCollection) ValidateIndex(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.validateIndexLocked(index)
}

// MarshalJSON emits the keys in sorted order.
func (c *ViewKeyCollection) MarshalJSON() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ensureOrderedLocked()

	return json.Marshal(c.keys)
}

// UnmarshalJSON rebuilds the collection; load-pending flags start false.
func (c *ViewKeyCollection) UnmarshalJSON(data []byte) error {
	var keys []*ViewKey
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.keys = nil
	c.byID = make(map[string]*ViewKey)
	c.sorted = false

	for _, key := range keys {
		if err := c.addLocked(key); err != nil {
			return err
		}
	}

	return nil
}

func (c *ViewKeyCollection) addLocked(key *ViewKey) error {
	if err := key.Validate(); err != nil {
		return err
	}

	// Index insert runs first so a duplicate fails before the ordered list
	// is touched.
	if _, exists := c.byID[key.ID()]; exists {
		return fmt.Errorf("%w : duplicate view key %s", ErrStore, key.ID())
	}

	c.byID[key.ID()] = key
	c.keys = append(c.keys, key)
	c.sorted = false

	return nil
}

func (c *ViewKeyCollection) indexOfLocked(key *ViewKey) int {
	c.ensureOrderedLocked()

	index := sort.Search(len(c.keys), func(i int) bool {
		return compareViewKeys(c.keys[i], key) >= 0
	})

	if index < len(c.keys) && compareViewKeys(c.keys[index], key) == 0 {
		return index
	}

	return -1
}

func (c *ViewKeyCollection) ensureOrderedLocked() {
	if c.sorted {
		return
	}

	sort.SliceStable(c.keys, func(i, j int) bool {
		return compareViewKeys(c.keys[i], c.keys[j]) < 0
	})
	c.sorted = true
}

func (c *ViewKeyCollection) validateIndexLocked(index int) error {
	if index < 0 || index >= len(c.keys) {
		return fmt.Errorf("%w : index %d out of range [0,%d)", ErrStore, index, len(c.keys))
	}

	return nil
}

// correctCountLocked clamps count into [0, len-startAt].
func (c *ViewKeyCollection) correctCountLocked(startAt, count int) int {
	c.ensureOrderedLocked()

	if count < 0 {
		return 0
	}
	if startAt+count > len(c.keys) {
		return len(c.keys) - startAt
	}

	return count
}

func validateCount(count int) error {
	if count < 0 {
		return fmt.Errorf("%w : count %d is negative", ErrStore, count)
	}

	return nil
}

// compareViewKeys orders by EffectiveDate descending, item ID ascending as
// the tie-break, version as the final discriminator. Deterministic for any
// input order.
func compareViewKeys(a, b *ViewKey) int {
	da, db := dateOf(a), dateOf(b)

	switch {
	case da.After(db):
		return -1
	case db.After(da):
		return 1
	}

	switch {
	case a.Key.ID < b.Key.ID:
		return -1
	case a.Key.ID > b.Key.ID:
		return 1
	}

	switch {
	case a.Key.Version < b.Key.Version:
		return -1
	case a.Key.Version > b.Key.Version:
		return 1
	}

	return 0
}

func dateOf(k *ViewKey) time.Time {
	if k.EffectiveDate == nil {
		return time.Time{}
	}

	return *k.EffectiveDate
}
