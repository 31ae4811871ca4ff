/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package types

import "time"

// ItemSection selects which parts of an item a query fetches.
type ItemSection int

const (
	SectionNone ItemSection = 0
	SectionCore ItemSection = 1 << iota
	SectionBlobs
	SectionTags
	SectionPermissions
	SectionSignatures

	// SectionStandard is what queries fetch unless told otherwise.
	SectionStandard = SectionCore
)

func (s ItemSection) Has(section ItemSection) bool {
	return s&section != 0
}

// ItemFilter narrows a query by type and effective date range.
type ItemFilter struct {
	TypeIDs          []string   `json:"typeIds,omitempty"`
	EffectiveDateMin *time.Time `json:"effectiveDateMin,omitempty"`
	EffectiveDateMax *time.Time `json:"effectiveDateMax,omitempty"`
}

func FilterForType(typeID string) ItemFilter {
	return ItemFilter{TypeIDs: []string{typeID}}
}

// ItemView describes the shape of the items a query returns.
type ItemView struct {
	Sections     ItemSection `json:"sections"`
	TypeVersions []string    `json:"typeVersions,omitempty"`
}

// ItemQuery asks the remote record for items, by explicit keys or by filter.
type ItemQuery struct {
	Name       string       `json:"name,omitempty"`
	ItemKeys   []ItemKey    `json:"itemKeys,omitempty"`
	Filters    []ItemFilter `json:"filters,omitempty"`
	View       ItemView     `json:"view"`
	MaxResults int          `json:"maxResults,omitempty"`
}

// QueryForKeys builds a query fetching exactly the given keys.
func QueryForKeys(keys []ItemKey) *ItemQuery {
	return &ItemQuery{
		ItemKeys: keys,
		View:     ItemView{Sections: SectionStandard},
	}
}

// QueryForType builds a named query for every item of one type.
func QueryForType(name, typeID string) *ItemQuery {
	return &ItemQuery{
		Name:    name,
		Filters: []ItemFilter{FilterForType(typeID)},
		View:    ItemView{Sections: SectionStandard},
	}
}

func (q *ItemQuery) Validate() error {
	if q == nil {
		return ErrRequired("query")
	}
	if len(q.ItemKeys) == 0 && len(q.Filters) == 0 {
		return ErrRequired("query.ItemKeys or query.Filters")
	}

	return nil
}
