/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsoft/healthvault-client-go/pkg/types"
)

// chanNotifier funnels view callbacks into channels so tests can await them.
type chanNotifier struct {
	available chan []types.ItemKey
	notFound  chan []types.ItemKey
	errs      chan error
}

func newChanNotifier() *chanNotifier {
	return &chanNotifier{
		available: make(chan []types.ItemKey, 4),
		notFound:  make(chan []types.ItemKey, 4),
		errs:      make(chan error, 4),
	}
}

func (n *chanNotifier) ItemsAvailable(_ *SynchronizedView, keys []types.ItemKey) {
	n.available <- keys
}

func (n *chanNotifier) ItemsNotFound(_ *SynchronizedView, keys []types.ItemKey) {
	n.notFound <- keys
}

func (n *chanNotifier) Error(_ *SynchronizedView, err error) {
	n.errs <- err
}

func awaitKeys(t *testing.T, ch chan []types.ItemKey) []types.ItemKey {
	t.Helper()

	select {
	case keys := <-ch:
		return keys
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for view notification")
		return nil
	}
}

func newTestView(t *testing.T, record Record, opts ...ViewOption) *SynchronizedView {
	t.Helper()

	store := newTestSyncStore(t, record)

	view, err := NewSynchronizedView(store, NewViewData(types.QueryForType("weights", testTypeID), "weights"), opts...)
	require.NoError(t, err)

	return view
}

func TestViewSynchronize(t *testing.T) {
	ctx := context.Background()
	record, items := seedRecord(5)
	view := newTestView(t, record)

	assert.True(t, view.IsStale(time.Hour))
	assert.Equal(t, 0, view.KeyCount())

	require.NoError(t, view.Synchronize(ctx))

	assert.Equal(t, 5, view.KeyCount())
	assert.False(t, view.IsStale(time.Hour))
	assert.False(t, view.LastUpdated().IsZero())

	// Keys come back ordered newest first.
	first, err := view.Keys().Get(0)
	require.NoError(t, err)
	assert.Equal(t, items[0].Key.ID, first.ID())
}

func TestViewSynchronizeReplacesIndex(t *testing.T) {
	ctx := context.Background()
	record, items := seedRecord(3)
	view := newTestView(t, record)

	require.NoError(t, view.Synchronize(ctx))
	require.Equal(t, 3, view.KeyCount())

	record.remove(items[1].Key.ID)

	require.NoError(t, view.Synchronize(ctx))
	assert.Equal(t, 2, view.KeyCount())
	assert.False(t, view.Keys().ContainsID(items[1].Key.ID))
}

func TestViewSynchronizeEmptyRemote(t *testing.T) {
	ctx := context.Background()
	record, _ := seedRecord(0)
	view := newTestView(t, record)

	require.NoError(t, view.Synchronize(ctx))

	// A freshly synchronized empty index is current, not stale.
	assert.Equal(t, 0, view.KeyCount())
	assert.False(t, view.IsStale(time.Hour))

	_, err := view.GetItem(ctx, 0)
	assert.ErrorIs(t, err, ErrStore)
	assert.Equal(t, 0, record.getAllCount())
}

func TestViewGetItemMissKicksOffReadAhead(t *testing.T) {
	ctx := context.Background()
	record, items := seedRecord(3)
	notifier := newChanNotifier()
	view := newTestView(t, record, ViewNotifierOption(notifier))

	require.NoError(t, view.Synchronize(ctx))

	item, err := view.GetItem(ctx, 0)
	require.NoError(t, err)
	assert.Nil(t, item)

	found := awaitKeys(t, notifier.available)
	assert.Len(t, found, 3)

	// Once the batch lands, the index serves locally.
	item, err = view.GetItem(ctx, 0)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, items[0].Key.ID, item.Key.ID)
	assert.Equal(t, 1, record.getAllCount())
}

func TestViewReadAheadChunked(t *testing.T) {
	ctx := context.Background()
	record, _ := seedRecord(10)
	notifier := newChanNotifier()
	view := newTestView(t, record,
		ViewNotifierOption(notifier),
		ViewReadAheadChunkSize(4))

	require.NoError(t, view.Synchronize(ctx))

	_, err := view.GetItem(ctx, 0)
	require.NoError(t, err)

	found := awaitKeys(t, notifier.available)
	assert.Len(t, found, 4)
}

func TestViewReadAheadClearsPendingFlags(t *testing.T) {
	ctx := context.Background()
	record, _ := seedRecord(3)
	notifier := newChanNotifier()
	view := newTestView(t, record, ViewNotifierOption(notifier))

	require.NoError(t, view.Synchronize(ctx))

	_, err := view.GetItem(ctx, 0)
	require.NoError(t, err)
	awaitKeys(t, notifier.available)

	// Pending flags are transient; after completion a new batch can start.
	for i := 0; i < view.KeyCount(); i++ {
		key, err := view.Keys().Get(i)
		require.NoError(t, err)

		assert.Eventually(t, func() bool { return !key.IsLoadPending() },
			5*time.Second, 10*time.Millisecond)
	}
}

func TestViewConcurrentMissesCoalesce(t *testing.T) {
	ctx := context.Background()
	record, _ := seedRecord(4)
	notifier := newChanNotifier()
	view := newTestView(t, record, ViewNotifierOption(notifier))

	require.NoError(t, view.Synchronize(ctx))

	// Two goroutines miss inside the same unflagged chunk; exactly one of
	// them claims the batch.
	start := make(chan struct{})
	var wg sync.WaitGroup
	for g := 0; g < 2; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			_, err := view.GetItem(ctx, 0)
			assert.NoError(t, err)
		}()
	}

	close(start)
	wg.Wait()

	found := awaitKeys(t, notifier.available)
	assert.Len(t, found, 4)
	assert.Equal(t, 1, record.getAllCount())
}

func TestViewGetItemsAlignedWithNils(t *testing.T) {
	ctx := context.Background()
	record, items := seedRecord(4)
	view := newTestView(t, record)

	require.NoError(t, view.Synchronize(ctx))

	// Make only the two newest local.
	require.NoError(t, view.Store().PutItems(ctx, items[:2]))

	got, err := view.GetItems(ctx, 0, 4)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.NotNil(t, got[0])
	assert.NotNil(t, got[1])
	assert.Nil(t, got[2])
	assert.Nil(t, got[3])

	// Count clamps to the key range.
	got, err = view.GetItems(ctx, 2, 100)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestViewRejectsNegativeCount(t *testing.T) {
	ctx := context.Background()
	record, _ := seedRecord(2)
	view := newTestView(t, record)

	require.NoError(t, view.Synchronize(ctx))

	_, err := view.GetItems(ctx, 0, -1)
	assert.ErrorIs(t, err, ErrStore)

	_, err = view.EnsureItemsAvailableAndGet(ctx, 0, -3)
	assert.ErrorIs(t, err, ErrStore)
	assert.Equal(t, 0, record.getAllCount())
}

func TestViewEnsureItemAvailableAndGet(t *testing.T) {
	ctx := context.Background()
	record, items := seedRecord(3)
	view := newTestView(t, record)

	require.NoError(t, view.Synchronize(ctx))

	item, err := view.EnsureItemAvailableAndGet(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, items[1].Key.ID, item.Key.ID)

	// Second access is local.
	_, err = view.EnsureItemAvailableAndGet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, record.getAllCount())
}

func TestViewEnsureItemSkipsInFlightKey(t *testing.T) {
	ctx := context.Background()
	record, _ := seedRecord(2)
	view := newTestView(t, record)

	require.NoError(t, view.Synchronize(ctx))

	key, err := view.Keys().Get(0)
	require.NoError(t, err)
	key.SetLoadPending(true)

	// Another fetch owns the key; this call does not join it.
	item, err := view.EnsureItemAvailableAndGet(ctx, 0)
	require.NoError(t, err)
	assert.Nil(t, item)
	assert.Equal(t, 0, record.getAllCount())
}

func TestViewEnsureItemsAvailableAndGet(t *testing.T) {
	ctx := context.Background()
	record, _ := seedRecord(6)
	view := newTestView(t, record)

	require.NoError(t, view.Synchronize(ctx))

	items, err := view.EnsureItemsAvailableAndGet(ctx, 0, view.KeyCount())
	require.NoError(t, err)
	require.Len(t, items, 6)
	for _, item := range items {
		assert.NotNil(t, item)
	}

	// One batched download for the whole range.
	assert.Equal(t, 1, record.getAllCount())
}

func TestViewItemsNotFoundNotification(t *testing.T) {
	ctx := context.Background()
	record, items := seedRecord(2)
	notifier := newChanNotifier()
	view := newTestView(t, record, ViewNotifierOption(notifier))

	require.NoError(t, view.Synchronize(ctx))

	// The item disappears remotely after the index was built.
	record.remove(items[1].Key.ID)

	_, err := view.EnsureItemsAvailableAndGet(ctx, 0, 2)
	require.NoError(t, err)

	missing := awaitKeys(t, notifier.notFound)
	require.Len(t, missing, 1)
	assert.Equal(t, items[1].Key.ID, missing[0].ID)
}

func TestViewErrorNotification(t *testing.T) {
	ctx := context.Background()
	record, _ := seedRecord(2)
	notifier := newChanNotifier()
	view := newTestView(t, record, ViewNotifierOption(notifier))

	require.NoError(t, view.Synchronize(ctx))

	wantErr := errors.New("platform unreachable")
	record.fail(wantErr)

	_, err := view.EnsureItemAvailableAndGet(ctx, 0)
	assert.ErrorIs(t, err, wantErr)

	select {
	case notified := <-notifier.errs:
		assert.ErrorIs(t, notified, wantErr)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for error notification")
	}
}

func TestViewNotifierPanicSwallowed(t *testing.T) {
	ctx := context.Background()
	record, _ := seedRecord(1)
	view := newTestView(t, record, ViewNotifierOption(panickyNotifier{}))

	require.NoError(t, view.Synchronize(ctx))

	item, err := view.EnsureItemAvailableAndGet(ctx, 0)
	require.NoError(t, err)
	assert.NotNil(t, item)
}

type panickyNotifier struct{}

func (panickyNotifier) ItemsAvailable(*SynchronizedView, []types.ItemKey) { panic("bug") }
func (panickyNotifier) ItemsNotFound(*SynchronizedView, []types.ItemKey)  { panic("bug") }
func (panickyNotifier) Error(*SynchronizedView, error)                    { panic("bug") }

func TestViewReadAheadChunkSizeValidation(t *testing.T) {
	record, _ := seedRecord(0)
	view := newTestView(t, record)

	assert.Equal(t, DefaultReadAheadChunkSize, view.ReadAheadChunkSize())

	require.NoError(t, view.SetReadAheadChunkSize(10))
	assert.Equal(t, 10, view.ReadAheadChunkSize())

	assert.Error(t, view.SetReadAheadChunkSize(0))
	assert.Error(t, view.SetReadAheadChunkSize(-5))
	assert.Equal(t, 10, view.ReadAheadChunkSize())
}

func TestViewRequiresQuery(t *testing.T) {
	record, _ := seedRecord(0)
	store := newTestSyncStore(t, record)

	_, err := NewSynchronizedView(store, &ViewData{Name: "empty"})
	assert.Error(t, err)
}
