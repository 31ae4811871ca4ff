/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package store

import (
	"time"

	"github.com/microsoft/healthvault-client-go/pkg/types"
)

// ViewData is the persisted state of a view: its name, the query that
// defines it, the ordered key set, and when it was last synchronized.
type ViewData struct {
	Name        string             `json:"name,omitempty"`
	Query       *types.ItemQuery   `json:"query"`
	Keys        *ViewKeyCollection `json:"keys,omitempty"`
	LastUpdated time.Time          `json:"lastUpdated"`
}

func NewViewData(query *types.ItemQuery, name string) *ViewData {
	return &ViewData{Name: name, Query: query}
}

func (d *ViewData) HasQuery() bool {
	return d.Query != nil
}

func (d *ViewData) HasKeys() bool {
	return d.Keys != nil
}

func (d *ViewData) KeyCount() int {
	if !d.HasKeys() {
		return 0
	}

	return d.Keys.Count()
}

// IsStale reports whether the last synchronization is older than maxAge.
func (d *ViewData) IsStale(maxAge time.Duration) bool {
	return time.Since(d.LastUpdated) > maxAge
}

func (d *ViewData) ValidateIndex(index int) error {
	if !d.HasKeys() {
		return ErrGenericError("view has no keys")
	}

	return d.Keys.ValidateIndex(index)
}

// StoredQuery is a named query persisted in record metadata, independent of
// any view built from it.
type StoredQuery struct {
	Name  string           `json:"name"`
	Query *types.ItemQuery `json:"query"`
}
