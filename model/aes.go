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

package model

/*
  Adapted from https://github.com/gtank/cryptopasta
*/

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"github.com/piprate/diddock/utils/zero"
)

const KeySize = 32

// AESKey is a 256-bit symmetric key used to encrypt private keys at rest
// in a KeyStore (spec §4.10).
type AESKey [32]byte

func (k AESKey) Bytes() []byte {
	return k[:]
}

func (k *AESKey) Zero() {
	zero.Bytes(k[:])
}

func (k *AESKey) Base64() string {
	return base64.StdEncoding.EncodeToString(k[:])
}

func NewAESKeyFromBytes(val []byte) *AESKey {
	key := AESKey{}
	copy(key[:], val)
	return &key
}

// NewEncryptionKey generates a random 256-bit key for EncryptAESGCM() and
// DecryptAESGCM(). It panics if the source of randomness fails.
func NewEncryptionKey() *AESKey {
	key := AESKey{}
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		panic(err)
	}
	return &key
}

// DeriveEncryptionKeyFromPassphrase stretches a user-supplied store
// passphrase into an AES key. It is not a substitute for a proper KDF like
// scrypt/argon2 under heavy threat models, but matches the level of the
// passphrase-derived keys used elsewhere in this codebase.
func DeriveEncryptionKeyFromPassphrase(passphrase string, salt []byte) *AESKey {
	h := sha256.New()
	_, _ = h.Write(salt)
	_, _ = h.Write([]byte(passphrase))
	key := AESKey{}
	copy(key[:], h.Sum(nil))
	return &key
}

// EncryptAESGCM encrypts data using 256-bit AES-GCM. Output takes the form
// nonce|ciphertext|tag where '|' indicates concatenation.
func EncryptAESGCM(plaintext []byte, key *AESKey) (ciphertext []byte, err error) {
	if key == nil {
		return nil, errors.New("empty AES key")
	}
	block, err := aes.NewCipher(key.Bytes())
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// DecryptAESGCM decrypts data produced by EncryptAESGCM.
func DecryptAESGCM(ciphertext []byte, key *AESKey) (plaintext []byte, err error) {
	if key == nil {
		return nil, errors.New("empty AES key")
	}
	block, err := aes.NewCipher(key.Bytes())
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("malformed ciphertext")
	}

	return gcm.Open(nil,
		ciphertext[:gcm.NonceSize()],
		ciphertext[gcm.NonceSize():],
		nil,
	)
}
