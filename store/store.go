// Copyright 2022 Piprate Limited
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store defines the Store contract (spec §6): the binding between
// a DID document and the private key material needed to publish changes
// to it. Documents without an attached store cannot publish.
package store

import (
	"github.com/piprate/diddock/model"
)

// KeyStore is the binding a DIDDocument needs to sign publish requests.
// Implementations are free to choose their own at-rest format; the
// file-system implementation in store/fs encrypts each key with
// AES-256-GCM under a passphrase-derived key.
type KeyStore interface {
	// LoadPrivateKey returns the raw (unencrypted) private key bytes for
	// signKeyID, decrypting with passphrase.
	LoadPrivateKey(signKeyID model.DIDURL, passphrase string) ([]byte, error)
	// StorePrivateKey persists raw private key bytes under signKeyID,
	// encrypting with passphrase.
	StorePrivateKey(signKeyID model.DIDURL, passphrase string, raw []byte) error

	// LoadDID returns the last known document for subject, or
	// errs.NotFound if the store has never seen it.
	LoadDID(subject model.DID) (*model.DIDDocument, error)
	// StoreDID persists doc as the latest known state of its subject.
	StoreDID(doc *model.DIDDocument) error

	// GetMetadata returns a store-local metadata value previously set
	// with SetMetadata (e.g. an alias, or the last-seen cache TTL).
	GetMetadata(subject model.DID, key string) (string, bool)
	// SetMetadata records a store-local metadata value for subject.
	SetMetadata(subject model.DID, key, value string) error
}

// EncodePrivateKey serializes priv into the raw byte form that KeyStore
// implementations store (and DecodePrivateKey parses back). It is just the
// 32-byte scalar; the curve is fixed (model.Curve()) so no algorithm tag is
// needed on the wire.
func EncodePrivateKey(priv *model.PrivateKey) []byte {
	return priv.D.D.FillBytes(make([]byte, 32))
}

// DecodePrivateKey parses raw key-store bytes back into a PrivateKey.
func DecodePrivateKey(raw []byte) (*model.PrivateKey, error) {
	return model.PrivateKeyFromBytes(raw)
}
