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

// PublicKey is a single verification key owned by a DIDDocument.
type PublicKey struct {
	ID              DIDURL `json:"id"`
	Controller      DID    `json:"controller"`
	Type            string `json:"type"`
	PublicKeyBase58 string `json:"publicKeyBase58"`
}

// Bytes returns the raw (uncompressed X9.62) public key bytes.
func (k *PublicKey) Bytes() []byte {
	return DecodeBase58(k.PublicKeyBase58)
}

// Proof is an attached signature over the canonical form of a signed
// payload (document, ticket or credential).
type Proof struct {
	Type           string `json:"type"`
	Created        int64  `json:"created"`
	Creator        DIDURL `json:"creator"`
	SignatureValue string `json:"signatureValue"`
}

// Signature returns the decoded raw signature bytes.
func (p *Proof) Signature() ([]byte, error) {
	return DecodeBase64URL(p.SignatureValue)
}
