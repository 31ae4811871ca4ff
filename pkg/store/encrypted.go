/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package store

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"
)

// EncryptedObjectStore encrypts values at rest with AES-256-GCM. The data
// key is derived from the application's shared secret with HKDF, so wiping
// provisioning state makes existing ciphertext unreadable.
type EncryptedObjectStore struct {
	inner ObjectStore
	aead  cipher.AEAD
}

const encryptedStoreInfo = "healthvault-local-store-v1"

func NewEncryptedObjectStore(inner ObjectStore, secret []byte) (*EncryptedObjectStore, error) {
	if len(secret) == 0 {
		return nil, ErrGenericError("encryption secret is empty")
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, secret, nil, []byte(encryptedStoreInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, ErrGenericErrorWrap("deriving store key", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrGenericErrorWrap("creating cipher", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrGenericErrorWrap("creating aead", err)
	}

	return &EncryptedObjectStore{inner: inner, aead: aead}, nil
}

func (e *EncryptedObjectStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	sealed, found, err := e.inner.Get(ctx, key)
	if err != nil || !found {
		return nil, found, err
	}

	return e.open(key, sealed)
}

func (e *EncryptedObjectStore) RefreshAndGet(ctx context.Context, key string) ([]byte, bool, error) {
	sealed, found, err := e.inner.RefreshAndGet(ctx, key)
	if err != nil || !found {
		return nil, found, err
	}

	return e.open(key, sealed)
}

func (e *EncryptedObjectStore) Put(ctx context.Context, key string, value []byte) error {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return ErrGenericErrorWrap("generating nonce", err)
	}

	// The key is bound as associated data, so a value copied under another
	// key fails to decrypt.
	sealed := e.aead.Seal(nonce, nonce, value, []byte(key))

	return e.inner.Put(ctx, key, sealed)
}

func (e *EncryptedObjectStore) Delete(ctx context.Context, key string) error {
	return e.inner.Delete(ctx, key)
}

func (e *EncryptedObjectStore) DeleteAll(ctx context.Context) error {
	return e.inner.DeleteAll(ctx)
}

func (e *EncryptedObjectStore) Keys(ctx context.Context) ([]string, error) {
	return e.inner.Keys(ctx)
}

func (e *EncryptedObjectStore) UpdateDate(ctx context.Context, key string) (time.Time, error) {
	return e.inner.UpdateDate(ctx, key)
}

// ChildStore wraps the child in the same encryption, sharing the data key.
func (e *EncryptedObjectStore) ChildStore(ctx context.Context, name string) (ObjectStore, error) {
	child, err := e.inner.ChildStore(ctx, name)
	if err != nil {
		return nil, err
	}

	return &EncryptedObjectStore{inner: child, aead: e.aead}, nil
}

func (e *EncryptedObjectStore) DeleteChildStore(ctx context.Context, name string) error {
	return e.inner.DeleteChildStore(ctx, name)
}

func (e *EncryptedObjectStore) open(key string, sealed []byte) ([]byte, bool, error) {
	if len(sealed) < e.aead.NonceSize() {
		return nil, false, ErrGenericError("ciphertext too short")
	}

	nonce, ciphertext := sealed[:e.aead.NonceSize()], sealed[e.aead.NonceSize():]

	plain, err := e.aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return nil, false, ErrGenericErrorWrap("decrypting object", err)
	}

	return plain, true, nil
}
