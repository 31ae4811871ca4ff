/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrStore = errors.New("store error")

func ErrGenericError(text string) error {
	return fmt.Errorf("%w : %s", ErrStore, text)
}

func ErrGenericErrorWrap(text string, err error) error {
	return fmt.Errorf("%w : %s", err, text)
}

// ErrInconsistent marks internal consistency failures. These are not
// recoverable by retrying the call.
var ErrInconsistent = errors.New("internal consistency error")

// ObjectStore is an abstract key-value store with child namespaces. Values
// are opaque bytes; callers own serialization. A Get that finds nothing is
// not an error: it returns found == false.
//
// All implementations must be safe for concurrent use.
type ObjectStore interface {
	// Get reads the value stored under key.
	Get(ctx context.Context, key string) (data []byte, found bool, err error)

	// RefreshAndGet reads the value bypassing any cache layer, repopulating
	// the cache with what the backing store holds.
	RefreshAndGet(ctx context.Context, key string) (data []byte, found bool, err error)

	// Put writes value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteAll removes every key and child store in this namespace.
	DeleteAll(ctx context.Context) error

	// Keys lists every key in this namespace, child stores excluded.
	Keys(ctx context.Context) ([]string, error)

	// UpdateDate reports the last write time for key.
	UpdateDate(ctx context.Context, key string) (time.Time, error)

	// ChildStore opens (creating if needed) the named child namespace.
	ChildStore(ctx context.Context, name string) (ObjectStore, error)

	// DeleteChildStore removes the named child namespace and its contents.
	DeleteChildStore(ctx context.Context, name string) error
}
