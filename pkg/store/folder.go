/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package store

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const objectFileSuffix = ".dat"

// FolderObjectStore persists each value as one file in a folder; child
// stores are subfolders. Keys are escaped so any string is a legal key.
type FolderObjectStore struct {
	root string
}

// NewFolderObjectStore opens a store rooted at path, creating the folder if
// it does not exist.
func NewFolderObjectStore(path string) (*FolderObjectStore, error) {
	if path == "" {
		return nil, ErrGenericError("folder path is empty")
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, ErrGenericErrorWrap("creating store folder", err)
	}

	return &FolderObjectStore{root: path}, nil
}

func (f *FolderObjectStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(f.fileFor(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, ErrGenericErrorWrap("reading object", err)
	}

	return data, true, nil
}

// RefreshAndGet is identical to Get here; the folder is the source of truth.
func (f *FolderObjectStore) RefreshAndGet(ctx context.Context, key string) ([]byte, bool, error) {
	return f.Get(ctx, key)
}

func (f *FolderObjectStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := f.fileFor(key)

	// Write-then-rename so readers never observe a torn value.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return ErrGenericErrorWrap("writing object", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return ErrGenericErrorWrap("committing object", err)
	}

	return nil
}

func (f *FolderObjectStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := os.Remove(f.fileFor(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return ErrGenericErrorWrap("deleting object", err)
	}

	return nil
}

func (f *FolderObjectStore) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.RemoveAll(f.root); err != nil {
		return ErrGenericErrorWrap("clearing store", err)
	}

	return os.MkdirAll(f.root, 0o755)
}

func (f *FolderObjectStore) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, ErrGenericErrorWrap("listing store", err)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), objectFileSuffix) {
			continue
		}

		key, err := url.PathUnescape(strings.TrimSuffix(entry.Name(), objectFileSuffix))
		if err != nil {
			continue
		}

		keys = append(keys, key)
	}

	return keys, nil
}

func (f *FolderObjectStore) UpdateDate(ctx context.Context, key string) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}

	info, err := os.Stat(f.fileFor(key))
	if err != nil {
		return time.Time{}, ErrGenericErrorWrap("getting update date", err)
	}

	return info.ModTime(), nil
}

func (f *FolderObjectStore) ChildStore(ctx context.Context, name string) (ObjectStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, ErrGenericError("child store name is empty")
	}

	return NewFolderObjectStore(filepath.Join(f.root, url.PathEscape(name)))
}

func (f *FolderObjectStore) DeleteChildStore(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if name == "" {
		return ErrGenericError("child store name is empty")
	}

	if err := os.RemoveAll(filepath.Join(f.root, url.PathEscape(name))); err != nil {
		return ErrGenericErrorWrap("deleting child store", err)
	}

	return nil
}

func (f *FolderObjectStore) fileFor(key string) string {
	return filepath.Join(f.root, url.PathEscape(key)+objectFileSuffix)
}
