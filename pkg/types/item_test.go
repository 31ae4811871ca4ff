/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemKeyIsVersion(t *testing.T) {
	key := NewItemKey("item-1", "v1")

	assert.True(t, key.IsVersion("v1"))
	assert.False(t, key.IsVersion("v2"))

	// An empty stamp on either side matches anything.
	assert.True(t, key.IsVersion(""))
	assert.True(t, NewItemKey("item-1", "").IsVersion("v2"))
}

func TestItemKeyEquality(t *testing.T) {
	key := NewItemKey("item-1", "v1")

	assert.True(t, key.EqualsKey(NewItemKey("item-1", "v1")))
	assert.False(t, key.EqualsKey(NewItemKey("item-1", "v2")))
	assert.False(t, key.EqualsKey(NewItemKey("item-2", "v1")))

	assert.False(t, key.IsEmpty())
	assert.True(t, ItemKey{}.IsEmpty())

	assert.NoError(t, key.Validate())
	assert.Error(t, ItemKey{}.Validate())
}

func TestItemDataField(t *testing.T) {
	data := &ItemData{Payload: json.RawMessage(`{"kg": 71.5, "device": {"name": "scale"}, "note": "morning"}`)}

	assert.Equal(t, "71.5", data.Field("kg"))
	assert.Equal(t, "scale", data.Field("device", "name"))
	assert.Equal(t, "morning", data.Field("note"))
	assert.Equal(t, "", data.Field("missing"))

	broken := &ItemData{Payload: json.RawMessage(`{not json`)}
	assert.Equal(t, "", broken.Field("kg"))
}

func TestItemDataDecode(t *testing.T) {
	data := &ItemData{Payload: json.RawMessage(`{"kg": 71.5}`)}

	var out struct {
		Kg float64 `json:"kg"`
	}
	require.NoError(t, data.Decode(&out))
	assert.Equal(t, 71.5, out.Kg)
}

func TestRecordItemBind(t *testing.T) {
	item := &RecordItem{
		Key:  NewItemKey("item-1", "v1"),
		Data: &ItemData{Payload: json.RawMessage(`{}`)},
	}

	assert.Nil(t, item.Data.Item())

	item.Bind()
	assert.Same(t, item, item.Data.Item())
}

func TestRecordItemUnmarshalRebinds(t *testing.T) {
	date := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	original := &RecordItem{
		Key:           NewItemKey("item-1", "v1"),
		Type:          ItemType{ID: "type-1", Name: "Weight Measurement"},
		EffectiveDate: &date,
		Data:          &ItemData{Payload: json.RawMessage(`{"kg": 71}`)},
	}
	original.Bind()

	encoded, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded RecordItem
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	assert.Equal(t, original.Key, decoded.Key)
	assert.Equal(t, original.Type, decoded.Type)
	require.NotNil(t, decoded.EffectiveDate)
	assert.True(t, decoded.EffectiveDate.Equal(date))

	require.True(t, decoded.HasTypedData())
	assert.Same(t, &decoded, decoded.Data.Item())
}

func TestRecordItemTypedData(t *testing.T) {
	item := &RecordItem{Key: NewItemKey("item-1", "v1")}

	assert.False(t, item.HasTypedData())
	assert.Nil(t, item.TypedData())

	item.Data = &ItemData{}
	assert.False(t, item.HasTypedData())

	item.Data.Payload = json.RawMessage(`{}`)
	assert.True(t, item.HasTypedData())
	assert.NotNil(t, item.TypedData())
}
