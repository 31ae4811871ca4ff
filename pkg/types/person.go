/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package types

// RecordInfo identifies one health record a person has access to.
type RecordInfo struct {
	ID           string `json:"id"`
	PersonID     string `json:"personId,omitempty"`
	Name         string `json:"name,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
	Relationship string `json:"relationship,omitempty"`
}

func (r *RecordInfo) Validate() error {
	if r == nil {
		return ErrRequired("record")
	}
	if r.ID == "" {
		return ErrRequired("record.ID")
	}

	return nil
}

// PersonInfo is one authorized person and the records they can reach.
type PersonInfo struct {
	PersonID         string       `json:"personId"`
	Name             string       `json:"name,omitempty"`
	Records          []RecordInfo `json:"records,omitempty"`
	SelectedRecordID string       `json:"selectedRecordId,omitempty"`
}

func (p *PersonInfo) Validate() error {
	if p == nil {
		return ErrRequired("person")
	}
	if p.PersonID == "" {
		return ErrRequired("person.PersonID")
	}

	return nil
}

func (p *PersonInfo) HasRecords() bool {
	return len(p.Records) > 0
}

// SelectedRecord resolves the person's selected record, falling back to the
// first record when no selection is stored.
func (p *PersonInfo) SelectedRecord() *RecordInfo {
	if !p.HasRecords() {
		return nil
	}

	if p.SelectedRecordID != "" {
		for i := range p.Records {
			if p.Records[i].ID == p.SelectedRecordID {
				return &p.Records[i]
			}
		}
	}

	return &p.Records[0]
}
