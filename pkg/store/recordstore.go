/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package store

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/microsoft/healthvault-client-go/pkg/types"
)

const (
	dataFolderName     = "Data"
	metadataFolderName = "Metadata"
	blobFolderName     = "Blobs"

	viewKeySuffix        = "_View"
	storedQueryKeySuffix = "_StoredQuery"
)

// LocalRecordStore is the local storage container of one record: its
// synchronized item data, its named views and stored queries, and its blob
// payloads. The folder layout under the record root is Data, Metadata and
// Blobs.
type LocalRecordStore struct {
	record   Record
	data     *SynchronizedStore
	metadata *LocalStore
	blobs    *LocalStore
	root     ObjectStore
	log      zerolog.Logger
}

type RecordStoreOption func(s *LocalRecordStore)

func RecordStoreLogger(log *zerolog.Logger) RecordStoreOption {
	return func(s *LocalRecordStore) { s.log = *log }
}

// NewLocalRecordStore opens, creating if needed, the record's container
// under parent. A non-nil cache is shared into the item data path.
func NewLocalRecordStore(ctx context.Context, record Record, parent ObjectStore, cache *LRUCache, opts ...RecordStoreOption) (*LocalRecordStore, error) {
	if record == nil {
		return nil, types.ErrRequired("record")
	}
	if parent == nil {
		return nil, types.ErrRequired("parent")
	}

	root, err := parent.ChildStore(ctx, record.ID())
	if err != nil {
		return nil, err
	}

	dataStore, err := root.ChildStore(ctx, dataFolderName)
	if err != nil {
		return nil, err
	}

	metadataStore, err := root.ChildStore(ctx, metadataFolderName)
	if err != nil {
		return nil, err
	}

	blobStore, err := root.ChildStore(ctx, blobFolderName)
	if err != nil {
		return nil, err
	}

	s := &LocalRecordStore{
		record:   record,
		root:     root,
		metadata: NewLocalStore(metadataStore),
		blobs:    NewLocalStore(blobStore),
		log:      zerolog.Nop(),
	}

	for _, o := range opts {
		o(s)
	}

	data, err := NewSynchronizedStore(record, NewLocalItemStore(dataStore, cache), SyncStoreLogger(&s.log))
	if err != nil {
		return nil, err
	}
	s.data = data

	return s, nil
}

func (s *LocalRecordStore) RecordID() string {
	return s.record.ID()
}

func (s *LocalRecordStore) Record() Record {
	return s.data.Record()
}

// SetRecord swaps the remote record reference for this store and its data
// path. Used when the session layer reissues record handles.
func (s *LocalRecordStore) SetRecord(record Record) {
	s.record = record
	s.data.SetRecord(record)
}

// Data is the record's synchronized item store.
func (s *LocalRecordStore) Data() *SynchronizedStore {
	return s.data
}

// Metadata holds view and stored query definitions.
func (s *LocalRecordStore) Metadata() *LocalStore {
	return s.metadata
}

// Blobs holds raw blob payloads keyed by blob name.
func (s *LocalRecordStore) Blobs() *LocalStore {
	return s.blobs
}

// CreateView builds a new, unsynchronized view over this record's data. It
// is not persisted until PutView.
func (s *LocalRecordStore) CreateView(name string, query *types.ItemQuery, opts ...ViewOption) (*SynchronizedView, error) {
	if name == "" {
		return nil, types.ErrRequired("name")
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}

	opts = append([]ViewOption{ViewLogger(&s.log)}, opts...)

	return NewSynchronizedView(s.data, NewViewData(query, name), opts...)
}

// GetView loads the named view from metadata. Returns nil when no view is
// stored under the name, or when the stored data carries a different name
// and is therefore stale.
func (s *LocalRecordStore) GetView(ctx context.Context, name string, opts ...ViewOption) (*SynchronizedView, error) {
	if name == "" {
		return nil, types.ErrRequired("name")
	}

	var data ViewData
	found, err := s.metadata.Get(ctx, makeViewKey(name), &data)
	if err != nil || !found {
		return nil, err
	}

	if data.Name != name {
		return nil, nil
	}

	opts = append([]ViewOption{ViewLogger(&s.log)}, opts...)

	return NewSynchronizedView(s.data, &data, opts...)
}

// PutView persists the view's current state under its name.
func (s *LocalRecordStore) PutView(ctx context.Context, view *SynchronizedView) error {
	if view == nil {
		return types.ErrRequired("view")
	}

	data := view.Data()
	if data.Name == "" {
		return types.ErrRequired("view.Name")
	}

	return s.metadata.Put(ctx, makeViewKey(data.Name), data)
}

func (s *LocalRecordStore) DeleteView(ctx context.Context, name string) error {
	if name == "" {
		return types.ErrRequired("name")
	}

	return s.metadata.Delete(ctx, makeViewKey(name))
}

// GetStoredQuery loads a named query definition; nil when absent or stale.
func (s *LocalRecordStore) GetStoredQuery(ctx context.Context, name string) (*StoredQuery, error) {
	if name == "" {
		return nil, types.ErrRequired("name")
	}

	var stored StoredQuery
	found, err := s.metadata.Get(ctx, makeStoredQueryKey(name), &stored)
	if err != nil || !found {
		return nil, err
	}

	if stored.Name != name {
		return nil, nil
	}

	return &stored, nil
}

func (s *LocalRecordStore) PutStoredQuery(ctx context.Context, name string, query *types.ItemQuery) error {
	if name == "" {
		return types.ErrRequired("name")
	}
	if err := query.Validate(); err != nil {
		return err
	}

	return s.metadata.Put(ctx, makeStoredQueryKey(name), &StoredQuery{Name: name, Query: query})
}

func (s *LocalRecordStore) DeleteStoredQuery(ctx context.Context, name string) error {
	if name == "" {
		return types.ErrRequired("name")
	}

	return s.metadata.Delete(ctx, makeStoredQueryKey(name))
}

func makeViewKey(name string) string {
	return name + viewKeySuffix
}

func makeStoredQueryKey(name string) string {
	return name + storedQueryKeySuffix
}
