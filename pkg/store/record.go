/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package store

import (
	"context"

	"github.com/microsoft/healthvault-client-go/pkg/types"
)

// Record is the remote query capability the synchronization layer needs
// from a health record. The wire client provides the real implementation;
// tests substitute fakes.
type Record interface {
	// ID is the record's persistent identity.
	ID() string

	// GetAllItems fetches the full items matching the query.
	GetAllItems(ctx context.Context, query *types.ItemQuery) ([]*types.RecordItem, error)

	// GetKeysAndDate fetches the key-and-date listing for the filters,
	// capped at maxResults when maxResults > 0.
	GetKeysAndDate(ctx context.Context, filters []types.ItemFilter, maxResults int) ([]*types.PendingItem, error)
}
