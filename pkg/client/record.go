/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package client

import (
	"context"

	"github.com/microsoft/healthvault-client-go/pkg/types"
)

// RemoteRecord is one record reached through the wire client. It satisfies
// the store layer's Record interface.
type RemoteRecord struct {
	client   *Client
	recordID string
	personID string
}

func NewRemoteRecord(c *Client, record types.RecordInfo) (*RemoteRecord, error) {
	if c == nil {
		return nil, ErrGenericError("client is required")
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}

	return &RemoteRecord{
		client:   c,
		recordID: record.ID,
		personID: record.PersonID,
	}, nil
}

func (r *RemoteRecord) ID() string {
	return r.recordID
}

func (r *RemoteRecord) PersonID() string {
	return r.personID
}

func (r *RemoteRecord) Client() *Client {
	return r.client
}

func (r *RemoteRecord) GetAllItems(ctx context.Context, query *types.ItemQuery) ([]*types.RecordItem, error) {
	return r.client.GetThings(ctx, r.recordID, r.personID, query)
}

func (r *RemoteRecord) GetKeysAndDate(ctx context.Context, filters []types.ItemFilter, maxResults int) ([]*types.PendingItem, error) {
	return r.client.GetThingKeys(ctx, r.recordID, r.personID, filters, maxResults)
}

// PutItems uploads items and returns the platform assigned keys.
func (r *RemoteRecord) PutItems(ctx context.Context, items []*types.RecordItem) ([]types.ItemKey, error) {
	return r.client.PutThings(ctx, r.recordID, r.personID, items)
}
