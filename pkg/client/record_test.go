/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package client

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsoft/healthvault-client-go/pkg/store"
	"github.com/microsoft/healthvault-client-go/pkg/types"
)

var _ store.Record = (*RemoteRecord)(nil)

func TestNewRemoteRecordValidation(t *testing.T) {
	c := newTestClient(t, newScriptedTransport())

	_, err := NewRemoteRecord(nil, types.RecordInfo{ID: "record-1"})
	assert.Error(t, err)

	_, err = NewRemoteRecord(c, types.RecordInfo{})
	assert.Error(t, err)

	record, err := NewRemoteRecord(c, types.RecordInfo{ID: "record-1", PersonID: "person-1"})
	require.NoError(t, err)
	assert.Equal(t, "record-1", record.ID())
	assert.Equal(t, "person-1", record.PersonID())
	assert.Same(t, c, record.Client())
}

func TestRemoteRecordAddressesItsRecord(t *testing.T) {
	ctx := context.Background()
	transport := newScriptedTransport()
	transport.on(methodGetThings, func(env *requestEnvelope) string {
		// Record and person ids ride in the header.
		if env.Header.RecordID != "record-1" || env.Header.PersonID != "person-1" {
			return failXML(statusAccessDenied, "wrong record")
		}

		return okXML("<group></group>")
	})

	c := newTestClient(t, transport)
	provisioned(c)

	record, err := NewRemoteRecord(c, types.RecordInfo{ID: "record-1", PersonID: "person-1"})
	require.NoError(t, err)

	items, err := record.GetAllItems(ctx, types.QueryForKeys([]types.ItemKey{{ID: "a"}}))
	require.NoError(t, err)
	assert.Empty(t, items)

	pending, err := record.GetKeysAndDate(ctx, []types.ItemFilter{types.FilterForType("type-1")}, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRemoteRecordKeyListingSendsMax(t *testing.T) {
	ctx := context.Background()
	transport := newScriptedTransport()
	transport.on(methodGetThings, func(env *requestEnvelope) string {
		if !strings.Contains(env.Info.Body, `max="5"`) {
			return failXML(statusFailed, "missing max")
		}

		return okXML("<group></group>")
	})

	c := newTestClient(t, transport)
	provisioned(c)

	record, err := NewRemoteRecord(c, types.RecordInfo{ID: "record-1"})
	require.NoError(t, err)

	_, err = record.GetKeysAndDate(ctx, []types.ItemFilter{types.FilterForType("type-1")}, 5)
	require.NoError(t, err)
}
