/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package client

import (
	"context"
	"encoding/base64"
	"sync"

	"github.com/microsoft/healthvault-client-go/pkg/store"
)

const stateKeyName = "Auth"

// ProvisioningInfo identifies this app instance with the platform.
type ProvisioningInfo struct {
	AppInstanceID    string `json:"appInstanceId"`
	AppCreationToken string `json:"appCreationToken,omitempty"`
	SharedSecret     string `json:"sharedSecret"`
}

func (p *ProvisioningInfo) IsValid() bool {
	return p != nil && p.AppInstanceID != "" && p.SharedSecret != ""
}

// SessionCredential is a live platform session: the token goes into the
// auth-session header, the shared secret signs request headers.
type SessionCredential struct {
	Token        string `json:"token"`
	SharedSecret string `json:"sharedSecret"`
}

func (c *SessionCredential) IsValid() bool {
	return c != nil && c.Token != "" && c.SharedSecret != ""
}

// SharedSecretBytes decodes the signing key. Secrets arrive base64 encoded
// from the platform.
func (c *SessionCredential) SharedSecretBytes() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.SharedSecret)
	if err != nil {
		return nil, ErrGenericErrorWrap("decoding shared secret", err)
	}

	return key, nil
}

// ClientState is the provisioning and session state of one app instance,
// persisted in the secret store between runs.
type ClientState struct {
	mu sync.Mutex

	provisioningInfo *ProvisioningInfo
	credentials      *SessionCredential
}

type clientStateDocument struct {
	ProvisioningInfo *ProvisioningInfo  `json:"provisioningInfo,omitempty"`
	Credentials      *SessionCredential `json:"credentials,omitempty"`
}

func NewClientState() *ClientState {
	return &ClientState{}
}

func (s *ClientState) ProvisioningInfo() *ProvisioningInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.provisioningInfo
}

func (s *ClientState) SetProvisioningInfo(info *ProvisioningInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.provisioningInfo = info
}

func (s *ClientState) Credentials() *SessionCredential {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.credentials
}

func (s *ClientState) SetCredentials(credentials *SessionCredential) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.credentials = credentials
}

func (s *ClientState) HasProvisioningInfo() bool {
	return s.ProvisioningInfo().IsValid()
}

func (s *ClientState) HasCredentials() bool {
	return s.Credentials().IsValid()
}

// IsAppProvisioned means the instance is known to the platform and holds a
// usable session.
func (s *ClientState) IsAppProvisioned() bool {
	return s.HasProvisioningInfo() && s.HasCredentials()
}

// Load replaces the state with what the secret store holds. Missing or
// unreadable stored state degrades to a fresh, unprovisioned state rather
// than failing.
func (s *ClientState) Load(ctx context.Context, secrets *store.LocalStore) {
	var doc clientStateDocument
	found, err := secrets.Get(ctx, stateKeyName, &doc)
	if err != nil || !found {
		doc = clientStateDocument{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.provisioningInfo = doc.ProvisioningInfo
	s.credentials = doc.Credentials
}

func (s *ClientState) Save(ctx context.Context, secrets *store.LocalStore) error {
	s.mu.Lock()
	doc := clientStateDocument{
		ProvisioningInfo: s.provisioningInfo,
		Credentials:      s.credentials,
	}
	s.mu.Unlock()

	return secrets.Put(ctx, stateKeyName, &doc)
}

// Reset clears the in-memory state and removes the persisted copy.
func (s *ClientState) Reset(ctx context.Context, secrets *store.LocalStore) error {
	s.mu.Lock()
	s.provisioningInfo = nil
	s.credentials = nil
	s.mu.Unlock()

	return secrets.Delete(ctx, stateKeyName)
}
