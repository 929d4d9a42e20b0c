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

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"math/big"

	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // required for bit-exact DID fingerprint derivation
)

// KeyType is the only verification method type this method supports.
const KeyType = "ECDSAsecp256r1"

// Curve is the curve backing every key in this DID method.
func Curve() elliptic.Curve {
	return elliptic.P256()
}

// PrivateKey wraps an ECDSA secp256r1 private key.
type PrivateKey struct {
	D *ecdsa.PrivateKey
}

// PubKeyBytes returns the uncompressed X9.62 public key encoding.
func (k *PrivateKey) PubKeyBytes() []byte {
	return elliptic.Marshal(Curve(), k.D.PublicKey.X, k.D.PublicKey.Y)
}

// GenerateKeyPair generates a new secp256r1 keypair.
func GenerateKeyPair() (*PrivateKey, error) {
	priv, err := ecdsa.GenerateKey(Curve(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{D: priv}, nil
}

// DeriveKeyPair deterministically derives a secp256r1 keypair from 32 bytes
// of key material (e.g. produced by model/slip10). The scalar is reduced
// modulo the curve order; if that gives zero, the material is re-hashed
// once with SHA-256 and reduced again.
func DeriveKeyPair(material []byte) (*PrivateKey, error) {
	curve := Curve()
	n := curve.Params().N

	d := new(big.Int).SetBytes(material)
	d.Mod(d, n)
	if d.Sign() == 0 {
		// vanishingly unlikely; re-hash to escape the zero scalar
		h := sha256.Sum256(material)
		d.SetBytes(h[:])
		d.Mod(d, n)
	}

	x, y := curve.ScalarBaseMult(d.Bytes())
	priv := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve, X: x, Y: y},
		D:         d,
	}
	return &PrivateKey{D: priv}, nil
}

// PrivateKeyFromBytes reconstructs a PrivateKey from the raw 32-byte scalar
// produced by store.EncodePrivateKey, recomputing the public point.
func PrivateKeyFromBytes(raw []byte) (*PrivateKey, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty private key material")
	}
	curve := Curve()
	d := new(big.Int).SetBytes(raw)
	x, y := curve.ScalarBaseMult(d.Bytes())
	priv := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve, X: x, Y: y},
		D:         d,
	}
	return &PrivateKey{D: priv}, nil
}

// privKeyFromBase58 decodes a base58-encoded raw scalar into a PrivateKey.
func privKeyFromBase58(s string) (*PrivateKey, error) {
	raw := base58.Decode(s)
	if len(raw) == 0 {
		return nil, errors.New("invalid base58 private key")
	}
	curve := Curve()
	d := new(big.Int).SetBytes(raw)
	x, y := curve.ScalarBaseMult(d.Bytes())
	priv := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve, X: x, Y: y},
		D:         d,
	}
	return &PrivateKey{D: priv}, nil
}

// encodeSignature produces the fixed-size (r||s), 32-byte-each encoding used on
// the wire, as opposed to the ASN.1 DER encoding ecdsa.Sign natively
// produces.
func encodeSignature(r, s *big.Int) []byte {
	out := make([]byte, 64)
	rb := r.Bytes()
	sb := s.Bytes()
	copy(out[32-len(rb):32], rb)
	copy(out[64-len(sb):64], sb)
	return out
}

func decodeSignature(sig []byte) (r, s *big.Int, err error) {
	if len(sig) != 64 {
		return nil, nil, errors.New("invalid signature length")
	}
	r = new(big.Int).SetBytes(sig[:32])
	s = new(big.Int).SetBytes(sig[32:])
	return r, s, nil
}

// Sign signs msg (the caller is responsible for passing the canonical
// signing input, not a pre-hash) with an ECDSA secp256r1 private key over
// SHA-256(msg), producing a fixed 64-byte (r||s) signature.
func Sign(priv *PrivateKey, msg []byte) ([]byte, error) {
	h := sha256.Sum256(msg)
	r, s, err := ecdsa.Sign(rand.Reader, priv.D, h[:])
	if err != nil {
		return nil, err
	}
	return encodeSignature(r, s), nil
}

// Verify verifies a 64-byte (r||s) signature produced by Sign against the
// given raw (uncompressed X9.62) public key bytes.
func Verify(pubKeyBytes, msg, sig []byte) bool {
	x, y := elliptic.Unmarshal(Curve(), pubKeyBytes)
	if x == nil {
		return false
	}
	r, s, err := decodeSignature(sig)
	if err != nil {
		return false
	}
	h := sha256.Sum256(msg)
	pub := &ecdsa.PublicKey{Curve: Curve(), X: x, Y: y}
	return ecdsa.Verify(pub, h[:], r, s)
}

// Hash160 computes Base58(RIPEMD160(SHA256(pubKeyBytes))), the DID
// id-string fingerprint described in spec §4.2. Implementers of other
// languages must match this bit-exactly to stay interoperable.
func Hash160(pubKeyBytes []byte) string {
	sh := sha256.Sum256(pubKeyBytes)
	rh := ripemd160.New()
	_, _ = rh.Write(sh[:])
	return base58.Encode(rh.Sum(nil))
}

// EncodeBase58 / DecodeBase58 wrap the Bitcoin-alphabet codec with no checksum.
func EncodeBase58(b []byte) string { return base58.Encode(b) }
func DecodeBase58(s string) []byte { return base58.Decode(s) }

// EncodeBase64URL / DecodeBase64URL wrap unpadded base64url, used for
// request payloads and tickets.
func EncodeBase64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func DecodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
