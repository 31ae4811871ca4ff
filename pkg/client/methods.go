/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package client

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"time"

	"github.com/microsoft/healthvault-client-go/pkg/types"
)

// Method names and versions as the platform registers them.
const (
	methodNewApplicationInfo  = "NewApplicationCreationInfo"
	methodCreateSessionToken  = "CreateAuthenticatedSessionToken"
	methodGetAuthorizedPeople = "GetAuthorizedPeople"
	methodGetThings           = "GetThings"
	methodPutThings           = "PutThings"
)

type provisioningInfoXML struct {
	AppInstanceID    string `xml:"app-id"`
	SharedSecret     string `xml:"shared-secret"`
	AppCreationToken string `xml:"app-token"`
}

func (c *Client) getProvisioningInfo(ctx context.Context) (*ProvisioningInfo, error) {
	response, err := c.execute(ctx, &call{
		method:        methodNewApplicationInfo,
		methodVersion: 1,
		anonymous:     true,
	})
	if err != nil {
		return nil, err
	}

	var info provisioningInfoXML
	if err := xml.Unmarshal([]byte(response.Info.Body), &info); err != nil {
		return nil, ErrGenericErrorWrap("parsing provisioning info", err)
	}

	return &ProvisioningInfo{
		AppInstanceID:    info.AppInstanceID,
		AppCreationToken: info.AppCreationToken,
		SharedSecret:     info.SharedSecret,
	}, nil
}

type authInfoXML struct {
	XMLName    xml.Name `xml:"auth-info"`
	AppID      string   `xml:"app-id"`
	Credential hashData `xml:"credential>appserver2>hmac-sig"`
}

type sessionTokenXML struct {
	Token        string `xml:"token"`
	SharedSecret string `xml:"shared-secret"`
}

// getSessionToken trades the instance's provisioning secret for a session.
// The credential is an HMAC over the instance id, proving secret possession
// without sending it.
func (c *Client) getSessionToken(ctx context.Context) (*SessionCredential, error) {
	info := c.state.ProvisioningInfo()
	if !info.IsValid() {
		return nil, ErrNotProvisioned
	}

	body, err := xml.Marshal(&authInfoXML{
		AppID:      info.AppInstanceID,
		Credential: hmacData([]byte(info.SharedSecret), []byte(info.AppInstanceID)),
	})
	if err != nil {
		return nil, ErrGenericErrorWrap("serializing auth info", err)
	}

	response, err := c.execute(ctx, &call{
		method:        methodCreateSessionToken,
		methodVersion: 2,
		body:          string(body),
		anonymous:     true,
	})
	if err != nil {
		return nil, err
	}

	var token sessionTokenXML
	if err := xml.Unmarshal([]byte(response.Info.Body), &token); err != nil {
		return nil, ErrGenericErrorWrap("parsing session token", err)
	}

	return &SessionCredential{Token: token.Token, SharedSecret: token.SharedSecret}, nil
}

type personRecordXML struct {
	ID           string `xml:"id,attr"`
	DisplayName  string `xml:"display-name,attr,omitempty"`
	Relationship string `xml:"rel-type-name,attr,omitempty"`
	Name         string `xml:",chardata"`
}

type personInfoXML struct {
	PersonID         string            `xml:"person-id"`
	Name             string            `xml:"name"`
	Records          []personRecordXML `xml:"record"`
	SelectedRecordID string            `xml:"selected-record-id"`
}

type authorizedPeopleXML struct {
	Persons []personInfoXML `xml:"response-results>person-info"`
}

// GetAuthorizedPersons lists the persons who authorized this app, with the
// records each can reach.
func (c *Client) GetAuthorizedPersons(ctx context.Context) ([]*types.PersonInfo, error) {
	response, err := c.execute(ctx, &call{
		method:        methodGetAuthorizedPeople,
		methodVersion: 1,
	})
	if err != nil {
		return nil, err
	}

	var parsed authorizedPeopleXML
	if err := xml.Unmarshal([]byte(response.Info.Body), &parsed); err != nil {
		return nil, ErrGenericErrorWrap("parsing authorized people", err)
	}

	persons := make([]*types.PersonInfo, len(parsed.Persons))
	for i, p := range parsed.Persons {
		person := &types.PersonInfo{
			PersonID:         p.PersonID,
			Name:             p.Name,
			SelectedRecordID: p.SelectedRecordID,
		}

		for _, r := range p.Records {
			person.Records = append(person.Records, types.RecordInfo{
				ID:           r.ID,
				PersonID:     p.PersonID,
				Name:         r.Name,
				DisplayName:  r.DisplayName,
				Relationship: r.Relationship,
			})
		}

		persons[i] = person
	}

	return persons, nil
}

type thingIDXML struct {
	Value        string `xml:",chardata"`
	VersionStamp string `xml:"version-stamp,attr,omitempty"`
}

type thingTypeXML struct {
	Value string `xml:",chardata"`
	Name  string `xml:"name,attr,omitempty"`
}

type thingXML struct {
	XMLName       xml.Name     `xml:"thing"`
	ID            thingIDXML   `xml:"thing-id"`
	Type          thingTypeXML `xml:"type-id"`
	EffectiveDate string       `xml:"eff-date,omitempty"`
	Data          string       `xml:"data-xml,omitempty"`
}

type thingFilterXML struct {
	TypeIDs          []string `xml:"type-id"`
	EffectiveDateMin string   `xml:"eff-date-min,omitempty"`
	EffectiveDateMax string   `xml:"eff-date-max,omitempty"`
}

type thingFormatXML struct {
	Sections     []string `xml:"section"`
	TypeVersions []string `xml:"type-version-format"`
}

type thingGroupXML struct {
	XMLName xml.Name         `xml:"group"`
	Name    string           `xml:"name,attr,omitempty"`
	Max     int              `xml:"max,attr,omitempty"`
	IDs     []thingIDXML     `xml:"id"`
	Filters []thingFilterXML `xml:"filter"`
	Format  thingFormatXML   `xml:"format"`
	Things  []thingXML       `xml:"thing"`
}

// GetThings fetches the items a query selects from one record.
func (c *Client) GetThings(ctx context.Context, recordID, personID string, query *types.ItemQuery) ([]*types.RecordItem, error) {
	group, err := c.queryThings(ctx, recordID, personID, query, sectionNames(query.View.Sections))
	if err != nil {
		return nil, err
	}

	items := make([]*types.RecordItem, 0, len(group.Things))
	for i := range group.Things {
		item, err := thingToItem(&group.Things[i])
		if err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	return items, nil
}

// GetThingKeys fetches only keys and effective dates, the cheap listing the
// view index is built from.
func (c *Client) GetThingKeys(ctx context.Context, recordID, personID string, filters []types.ItemFilter, maxResults int) ([]*types.PendingItem, error) {
	query := &types.ItemQuery{Filters: filters, MaxResults: maxResults}

	group, err := c.queryThings(ctx, recordID, personID, query, nil)
	if err != nil {
		return nil, err
	}

	pending := make([]*types.PendingItem, 0, len(group.Things))
	for i := range group.Things {
		thing := &group.Things[i]

		item := &types.PendingItem{
			Key:    types.ItemKey{ID: thing.ID.Value, Version: thing.ID.VersionStamp},
			TypeID: thing.Type.Value,
		}
		if date, err := parseWireDate(thing.EffectiveDate); err == nil && date != nil {
			item.EffectiveDate = date
		}

		pending = append(pending, item)
	}

	return pending, nil
}

func (c *Client) queryThings(ctx context.Context, recordID, personID string, query *types.ItemQuery, sections []string) (*thingGroupXML, error) {
	if recordID == "" {
		return nil, ErrGenericError("record id is required")
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}

	group := thingGroupXML{
		Name: query.Name,
		Max:  query.MaxResults,
		Format: thingFormatXML{
			Sections:     sections,
			TypeVersions: query.View.TypeVersions,
		},
	}

	for _, key := range query.ItemKeys {
		group.IDs = append(group.IDs, thingIDXML{Value: key.ID, VersionStamp: key.Version})
	}

	for _, filter := range query.Filters {
		group.Filters = append(group.Filters, thingFilterXML{
			TypeIDs:          filter.TypeIDs,
			EffectiveDateMin: formatWireDate(filter.EffectiveDateMin),
			EffectiveDateMax: formatWireDate(filter.EffectiveDateMax),
		})
	}

	body, err := xml.Marshal(&group)
	if err != nil {
		return nil, ErrGenericErrorWrap("serializing query", err)
	}

	response, err := c.execute(ctx, &call{
		method:        methodGetThings,
		methodVersion: 3,
		recordID:      recordID,
		personID:      personID,
		body:          string(body),
	})
	if err != nil {
		return nil, err
	}

	var result thingGroupXML
	if err := xml.Unmarshal([]byte(response.Info.Body), &result); err != nil {
		return nil, ErrGenericErrorWrap("parsing things", err)
	}

	return &result, nil
}

// PutThings uploads items to one record and returns the keys the platform
// assigned, positionally aligned with items.
func (c *Client) PutThings(ctx context.Context, recordID, personID string, items []*types.RecordItem) ([]types.ItemKey, error) {
	if recordID == "" {
		return nil, ErrGenericError("record id is required")
	}
	if len(items) == 0 {
		return nil, ErrGenericError("items are required")
	}

	things := make([]string, 0, len(items))
	for _, item := range items {
		thing, err := itemToThing(item)
		if err != nil {
			return nil, err
		}

		data, err := xml.Marshal(thing)
		if err != nil {
			return nil, ErrGenericErrorWrap("serializing thing", err)
		}

		things = append(things, string(data))
	}

	var body string
	for _, t := range things {
		body += t
	}

	response, err := c.execute(ctx, &call{
		method:        methodPutThings,
		methodVersion: 2,
		recordID:      recordID,
		personID:      personID,
		body:          body,
	})
	if err != nil {
		return nil, err
	}

	var result struct {
		IDs []thingIDXML `xml:"thing-id"`
	}
	if err := xml.Unmarshal([]byte("<r>"+response.Info.Body+"</r>"), &result); err != nil {
		return nil, ErrGenericErrorWrap("parsing assigned keys", err)
	}

	keys := make([]types.ItemKey, len(result.IDs))
	for i, id := range result.IDs {
		keys[i] = types.ItemKey{ID: id.Value, Version: id.VersionStamp}
	}

	return keys, nil
}

func thingToItem(thing *thingXML) (*types.RecordItem, error) {
	item := &types.RecordItem{
		Key:  types.ItemKey{ID: thing.ID.Value, Version: thing.ID.VersionStamp},
		Type: types.ItemType{ID: thing.Type.Value, Name: thing.Type.Name},
	}

	date, err := parseWireDate(thing.EffectiveDate)
	if err != nil {
		return nil, err
	}
	item.EffectiveDate = date

	if thing.Data != "" {
		item.Data = &types.ItemData{Payload: json.RawMessage(thing.Data)}
	}

	item.Bind()

	return item, nil
}

func itemToThing(item *types.RecordItem) (*thingXML, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}

	thing := &thingXML{
		ID:            thingIDXML{Value: item.Key.ID, VersionStamp: item.Key.Version},
		Type:          thingTypeXML{Value: item.Type.ID, Name: item.Type.Name},
		EffectiveDate: formatWireDate(item.EffectiveDate),
	}

	if item.HasTypedData() {
		thing.Data = string(item.Data.Payload)
	}

	return thing, nil
}

// sectionNames renders the section mask as wire section names; an empty
// mask asks for the key-only listing.
func sectionNames(sections types.ItemSection) []string {
	var names []string

	if sections.Has(types.SectionCore) {
		names = append(names, "core")
	}
	if sections.Has(types.SectionBlobs) {
		names = append(names, "blobpayload")
	}
	if sections.Has(types.SectionTags) {
		names = append(names, "tags")
	}
	if sections.Has(types.SectionPermissions) {
		names = append(names, "permissions")
	}
	if sections.Has(types.SectionSignatures) {
		names = append(names, "digitalsignatures")
	}

	return names
}

func formatWireDate(t *time.Time) string {
	if t == nil {
		return ""
	}

	return t.UTC().Format(time.RFC3339)
}

func parseWireDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, ErrGenericErrorWrap("parsing wire date", err)
	}

	t = t.UTC()

	return &t, nil
}
