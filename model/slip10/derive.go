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

// Package slip10 implements SLIP-0010 (https://github.com/satoshilabs/slips/blob/master/slip-0010.md)
// hardened-only hierarchical key derivation. Unlike the reference
// implementation this package is curve-agnostic: it derives 32-byte key
// material plus chain code, and leaves turning that material into a
// concrete keypair (secp256r1 here) to the caller.
package slip10

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/piprate/diddock/utils/zero"
)

const (
	// FirstHardenedIndex is the index of the first hardened key (2^31).
	FirstHardenedIndex = uint32(0x80000000)

	seedModifier = "ed25519 seed" // retained as the SLIP-10 domain separator; unrelated to the derived curve

	// RecommendedSeedLen is the recommended length in bytes for a seed to a master node.
	RecommendedSeedLen = 32 // 256 bits

	// MinSeedBytes is the minimum number of bytes allowed for a seed to a master node.
	MinSeedBytes = 16 // 128 bits

	// MaxSeedBytes is the maximum number of bytes allowed for a seed to a master node.
	MaxSeedBytes = 64 // 512 bits
)

var (
	ErrInvalidPath        = fmt.Errorf("invalid derivation path")
	ErrNoPublicDerivation = fmt.Errorf("no public derivation in SLIP-10 hardened mode")
	ErrInvalidSeedLen     = fmt.Errorf("seed length must be between %d and %d bits", MinSeedBytes*8, MaxSeedBytes*8)

	pathRegex = regexp.MustCompile(`^m(/\d+')*$`)
)

// GenerateSeed returns a cryptographically secure random seed suitable for NewMasterNode.
func GenerateSeed(length uint8) ([]byte, error) {
	if length < MinSeedBytes || length > MaxSeedBytes {
		return nil, ErrInvalidSeedLen
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}

	return buf, nil
}

// Node is a single node of the hierarchical derivation tree.
type Node interface {
	Derive(i uint32) (Node, error)

	// KeyMaterial returns the 32-byte key material for this node. Callers
	// turn this into a concrete asymmetric keypair.
	KeyMaterial() []byte
	ChainCode() []byte
	Serialize() string
	Bytes() []byte
	Zero()
}

type node []byte

// DeriveForPath derives a node for a path in BIP-44-like format (hardened segments only).
func DeriveForPath(path string, seed []byte) (Node, error) {
	if !IsValidPath(path) {
		return nil, ErrInvalidPath
	}

	key, err := NewMasterNode(seed)
	if err != nil {
		return nil, err
	}

	segments := strings.Split(path, "/")
	for _, segment := range segments[1:] {
		i64, err := strconv.ParseUint(strings.TrimRight(segment, "'"), 10, 32)
		if err != nil {
			return nil, err
		}

		i := uint32(i64) + FirstHardenedIndex
		key, err = key.Derive(i)
		if err != nil {
			return nil, err
		}
	}

	return key, nil
}

// NewMasterNode generates a new master node from seed.
func NewMasterNode(seed []byte) (Node, error) {
	hash := hmac.New(sha512.New, []byte(seedModifier))
	if _, err := hash.Write(seed); err != nil {
		return nil, err
	}
	return node(hash.Sum(nil)), nil
}

func NewNodeFromString(val string) (Node, error) {
	b, err := base64.StdEncoding.DecodeString(val)
	if err != nil {
		return nil, err
	}
	return node(b), nil
}

func (k node) KeyMaterial() []byte {
	return k[:32]
}

func (k node) ChainCode() []byte {
	return k[32:]
}

func (k node) Derive(i uint32) (Node, error) {
	if i < FirstHardenedIndex {
		return nil, ErrNoPublicDerivation
	}

	iBytes := [4]byte{}
	binary.BigEndian.PutUint32(iBytes[:], i)
	key := append([]byte{0x0}, k.KeyMaterial()...)
	data := append(key, iBytes[:]...)

	hash := hmac.New(sha512.New, k.ChainCode())
	if _, err := hash.Write(data); err != nil {
		return nil, err
	}
	return node(hash.Sum(nil)), nil
}

func (k node) Serialize() string {
	return base64.StdEncoding.EncodeToString(k)
}

func (k node) Bytes() []byte {
	return k
}

func (k node) Zero() {
	zero.Bytes(k)
}

// IsValidPath checks whether the path has valid, parseable segments.
func IsValidPath(path string) bool {
	if !pathRegex.MatchString(path) {
		return false
	}

	segments := strings.Split(path, "/")
	for _, segment := range segments[1:] {
		if _, err := strconv.ParseUint(strings.TrimRight(segment, "'"), 10, 32); err != nil {
			return false
		}
	}

	return true
}
