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

// Package mnemonic generates and recovers deterministic identity keypairs
// from a BIP-39 recovery phrase, mirroring the teacher's
// model/account/recovery.go GenerateKeysFromRecoveryPhrase, but deriving
// along a fixed SLIP-10 path rather than feeding the seed straight into key
// generation, so distinct keys for distinct roles can be pulled from one
// phrase.
package mnemonic

import (
	"github.com/tyler-smith/go-bip39"

	"github.com/piprate/diddock/errs"
	"github.com/piprate/diddock/model"
	"github.com/piprate/diddock/model/slip10"
	"github.com/piprate/diddock/utils/zero"
)

// DefaultPath is the derivation path used for the primary identity key when
// no caller-specific path is given.
const DefaultPath = "m/0'"

// Generate returns a new random 12-word BIP-39 mnemonic.
func Generate() (string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", errs.Wrap(errs.IOError, "failed to generate mnemonic entropy", err)
	}
	phrase, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", errs.Wrap(errs.IOError, "failed to build mnemonic from entropy", err)
	}
	return phrase, nil
}

// Validate reports whether phrase is a well-formed BIP-39 mnemonic.
func Validate(phrase string) bool {
	return bip39.IsMnemonicValid(phrase)
}

// DeriveKeyPair recovers the deterministic keypair for phrase along path,
// the way a recovered account reconstructs its signing key. path must be
// hardened-only SLIP-10 notation (e.g. "m/0'/1'"); DefaultPath is used by
// callers that only ever need one identity key per phrase.
func DeriveKeyPair(phrase, path string) (*model.PrivateKey, error) {
	if !bip39.IsMnemonicValid(phrase) {
		return nil, errs.New(errs.InvalidArgs, "invalid mnemonic phrase")
	}

	seed := bip39.NewSeed(phrase, "")
	defer zero.Bytes(seed)

	node, err := slip10.DeriveForPath(path, seed)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgs, "invalid derivation path", err)
	}
	defer node.Zero()

	priv, err := model.DeriveKeyPair(node.KeyMaterial())
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "failed to derive keypair from seed material", err)
	}

	return priv, nil
}
