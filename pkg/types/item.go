/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valyala/fastjson"
)

var ErrItem = errors.New("item error")

func ErrRequired(name string) error {
	return fmt.Errorf("%w : missing required %s", ErrItem, name)
}

// ItemKey identifies one health record item: an opaque ID plus the version
// stamp the service assigned to the item's current revision.
type ItemKey struct {
	ID      string `json:"id"`
	Version string `json:"version,omitempty"`
}

func NewItemKey(id, version string) ItemKey {
	return ItemKey{ID: id, Version: version}
}

func (k ItemKey) IsEmpty() bool {
	return k.ID == ""
}

// EqualsKey is full key equality: same ID and same version stamp.
func (k ItemKey) EqualsKey(other ItemKey) bool {
	return k.ID == other.ID && k.Version == other.Version
}

// IsVersion reports whether this key is an acceptable match for the given
// version stamp. An empty stamp on either side matches anything.
func (k ItemKey) IsVersion(version string) bool {
	if version == "" || k.Version == "" {
		return true
	}

	return k.Version == version
}

func (k ItemKey) Validate() error {
	if k.ID == "" {
		return ErrRequired("key.ID")
	}

	return nil
}

// ItemType describes the schema type of an item's payload.
type ItemType struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// ItemData is the typed payload of a record item. The payload is kept as the
// raw serialized fragment; callers decode it into their own concrete type or
// peek at individual fields with Field.
type ItemData struct {
	Payload json.RawMessage `json:"payload"`

	item *RecordItem
}

// Item returns the record item this payload belongs to. Set when the payload
// is attached during deserialization or Bind.
func (d *ItemData) Item() *RecordItem {
	return d.item
}

// Decode unmarshals the payload into out.
func (d *ItemData) Decode(out interface{}) error {
	return json.Unmarshal(d.Payload, out)
}

// Field extracts a nested string field from the payload without decoding the
// whole document. Returns "" when the path does not resolve to a scalar.
func (d *ItemData) Field(path ...string) string {
	v, err := fastjson.ParseBytes(d.Payload)
	if err != nil {
		return ""
	}

	f := v.Get(path...)
	if f == nil {
		return ""
	}

	switch f.Type() {
	case fastjson.TypeString:
		b, _ := f.StringBytes()
		return string(b)
	default:
		return f.String()
	}
}

// RecordItem is the full persisted representation of a health record item.
type RecordItem struct {
	Key           ItemKey    `json:"key"`
	Type          ItemType   `json:"type"`
	EffectiveDate *time.Time `json:"effectiveDate,omitempty"`
	Data          *ItemData  `json:"data,omitempty"`
}

// HasTypedData is true iff a typed payload was attached to this item.
func (ri *RecordItem) HasTypedData() bool {
	return ri.Data != nil && len(ri.Data.Payload) > 0
}

// TypedData returns the typed payload, or nil when none was attached.
func (ri *RecordItem) TypedData() *ItemData {
	if !ri.HasTypedData() {
		return nil
	}

	return ri.Data
}

// Bind attaches the payload back-reference. Called after deserialization so
// a payload can always reach its owning item.
func (ri *RecordItem) Bind() {
	if ri.Data != nil {
		ri.Data.item = ri
	}
}

func (ri *RecordItem) Validate() error {
	if ri == nil {
		return ErrRequired("item")
	}

	return ri.Key.Validate()
}

// UnmarshalJSON decodes the item and rebinds the payload back-reference.
func (ri *RecordItem) UnmarshalJSON(data []byte) error {
	type alias RecordItem

	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	*ri = RecordItem(a)
	ri.Bind()

	return nil
}
