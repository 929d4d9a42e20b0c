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

// Package fs implements store.KeyStore on top of a single embedded bbolt
// database file, the way the teacher backs its index and bolt-based
// connectors (utils/bolt.go, index/bolt). Private keys are encrypted at
// rest with AES-256-GCM under a key derived from the caller-supplied
// passphrase.
package fs

import (
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/piprate/diddock/errs"
	"github.com/piprate/diddock/model"
	"github.com/piprate/diddock/store"
	"github.com/piprate/diddock/utils"
)

var (
	bucketKeys     = []byte("keys")
	bucketDocs     = []byte("docs")
	bucketMetadata = []byte("metadata")
)

// Store is a bbolt-backed store.KeyStore.
type Store struct {
	db *bbolt.DB
}

var _ store.KeyStore = (*Store)(nil)

// Open opens (creating if necessary) a key store at path, expanding
// environment variables and "$HOME" the way the teacher's config loader does
// for every other file path it accepts.
func Open(path string) (*Store, error) {
	absPath := utils.AbsPathify(path)

	db, err := bbolt.Open(absPath, 0o600, nil)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "failed to open key store", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketKeys, bucketDocs, bucketMetadata} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.IOError, "failed to install key store schema", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// LoadPrivateKey decrypts and returns the raw private key bytes stored
// under signKeyID.
func (s *Store) LoadPrivateKey(signKeyID model.DIDURL, passphrase string) ([]byte, error) {
	key := []byte(signKeyID.String())

	var sealed []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketKeys).Get(key)
		if v == nil {
			return errs.New(errs.NotFound, "no private key stored for "+signKeyID.String())
		}
		sealed = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(sealed) < saltSize {
		return nil, errs.New(errs.IOError, "corrupt key store entry")
	}
	salt, ciphertext := sealed[:saltSize], sealed[saltSize:]

	aesKey := model.DeriveEncryptionKeyFromPassphrase(passphrase, salt)
	defer aesKey.Zero()

	raw, err := model.DecryptAESGCM(ciphertext, aesKey)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "failed to decrypt private key (wrong passphrase?)", err)
	}
	return raw, nil
}

const saltSize = 16

// StorePrivateKey encrypts raw with a passphrase-derived key and persists
// it under signKeyID, overwriting any existing entry.
func (s *Store) StorePrivateKey(signKeyID model.DIDURL, passphrase string, raw []byte) error {
	salt, err := utils.RandomBytes(saltSize)
	if err != nil {
		return errs.Wrap(errs.IOError, "failed to generate salt", err)
	}

	aesKey := model.DeriveEncryptionKeyFromPassphrase(passphrase, salt)
	defer aesKey.Zero()

	ciphertext, err := model.EncryptAESGCM(raw, aesKey)
	if err != nil {
		return errs.Wrap(errs.IOError, "failed to encrypt private key", err)
	}

	sealed := append(append([]byte(nil), salt...), ciphertext...)

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketKeys).Put([]byte(signKeyID.String()), sealed)
	})
}

// LoadDID returns the last known document for subject.
func (s *Store) LoadDID(subject model.DID) (*model.DIDDocument, error) {
	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketDocs).Get([]byte(subject.String()))
		if v == nil {
			return errs.New(errs.NotFound, "no document stored for "+subject.String())
		}
		raw = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var doc model.DIDDocument
	if err := model.Unmarshal(raw, &doc); err != nil {
		return nil, errs.Wrap(errs.IOError, "corrupt document entry", err)
	}
	return &doc, nil
}

// StoreDID persists doc as the latest known state of its subject.
func (s *Store) StoreDID(doc *model.DIDDocument) error {
	raw, err := model.Compact(doc)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).Put([]byte(doc.Subject.String()), raw)
	})
}

func metadataKey(subject model.DID, key string) []byte {
	return []byte(fmt.Sprintf("%s/%s", subject.String(), key))
}

// GetMetadata returns a store-local metadata value, e.g. an alias.
func (s *Store) GetMetadata(subject model.DID, key string) (string, bool) {
	var v string
	var found bool
	_ = s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketMetadata).Get(metadataKey(subject, key))
		if raw != nil {
			v = string(raw)
			found = true
		}
		return nil
	})
	return v, found
}

// SetMetadata records a store-local metadata value for subject.
func (s *Store) SetMetadata(subject model.DID, key, value string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMetadata).Put(metadataKey(subject, key), []byte(value))
	})
}
