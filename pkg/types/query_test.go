/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryForKeys(t *testing.T) {
	keys := []ItemKey{NewItemKey("a", "v1"), NewItemKey("b", "")}

	query := QueryForKeys(keys)
	assert.Equal(t, keys, query.ItemKeys)
	assert.Equal(t, SectionStandard, query.View.Sections)
	assert.NoError(t, query.Validate())
}

func TestQueryForType(t *testing.T) {
	query := QueryForType("weights", "type-1")

	assert.Equal(t, "weights", query.Name)
	assert.Len(t, query.Filters, 1)
	assert.Equal(t, []string{"type-1"}, query.Filters[0].TypeIDs)
	assert.NoError(t, query.Validate())
}

func TestQueryValidate(t *testing.T) {
	var nilQuery *ItemQuery
	assert.Error(t, nilQuery.Validate())

	// A query needs keys or filters.
	assert.Error(t, (&ItemQuery{}).Validate())
}

func TestItemSectionHas(t *testing.T) {
	sections := SectionCore | SectionBlobs

	assert.True(t, sections.Has(SectionCore))
	assert.True(t, sections.Has(SectionBlobs))
	assert.False(t, sections.Has(SectionTags))
	assert.False(t, SectionNone.Has(SectionCore))
}

func TestPersonSelectedRecord(t *testing.T) {
	person := &PersonInfo{PersonID: "person-1"}
	assert.Nil(t, person.SelectedRecord())
	assert.False(t, person.HasRecords())

	person.Records = []RecordInfo{{ID: "record-1"}, {ID: "record-2"}}

	// No selection stored falls back to the first record.
	assert.Equal(t, "record-1", person.SelectedRecord().ID)

	person.SelectedRecordID = "record-2"
	assert.Equal(t, "record-2", person.SelectedRecord().ID)

	// A dangling selection falls back too.
	person.SelectedRecordID = "record-gone"
	assert.Equal(t, "record-1", person.SelectedRecord().ID)
}

func TestPersonValidate(t *testing.T) {
	assert.Error(t, (&PersonInfo{}).Validate())
	assert.NoError(t, (&PersonInfo{PersonID: "p"}).Validate())

	assert.Error(t, (&RecordInfo{}).Validate())
	assert.NoError(t, (&RecordInfo{ID: "r"}).Validate())
}
