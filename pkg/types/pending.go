/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package types

import "time"

// PendingItem is a key-and-date entry from the remote record's key listing.
// It carries enough to index an item without fetching its payload.
type PendingItem struct {
	Key           ItemKey    `json:"key"`
	TypeID        string     `json:"typeId,omitempty"`
	EffectiveDate *time.Time `json:"effectiveDate,omitempty"`
}
