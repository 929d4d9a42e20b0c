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
	"time"

	"github.com/piprate/diddock/errs"
)

// DIDDocumentMetadata carries everything about a document that is NOT part
// of the signed payload: where it came from on-chain, and how this process
// keeps track of it locally.
type DIDDocumentMetadata struct {
	Txid          string     `json:"txid,omitempty"`
	PrevSignature string     `json:"prevSignature,omitempty"`
	Signature     string     `json:"signature,omitempty"`
	Alias         string     `json:"alias,omitempty"`
	StoreHandle   string     `json:"storeHandle,omitempty"`
	Deactivated   bool       `json:"deactivated,omitempty"`
	Published     *time.Time `json:"published,omitempty"`
}

// DIDDocument is the full signed document describing a DID subject's keys,
// controllers, services and embedded credentials.
type DIDDocument struct {
	Subject        DID                  `json:"id"`
	Controllers    []DID                `json:"controller,omitempty"`
	MultisigM      int                  `json:"multisig,omitempty"`
	PublicKeys     []*PublicKey         `json:"publicKey,omitempty"`
	Authentication []DIDURL             `json:"authentication,omitempty"`
	Authorization  []DIDURL             `json:"authorization,omitempty"`
	Credentials    []*Credential        `json:"verifiableCredential,omitempty"`
	Services       []*Service           `json:"service,omitempty"`
	Expires        *time.Time           `json:"expires,omitempty"`
	Proofs         []*Proof             `json:"proof,omitempty"`
	Metadata       *DIDDocumentMetadata `json:"-"`
}

// Service describes an external endpoint associated with the subject.
type Service struct {
	ID              DIDURL `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// signableDocument is the subset of DIDDocument fields that are part of the
// canonical signing payload: everything except Proofs and Metadata.
type signableDocument struct {
	Subject        DID           `json:"id"`
	Controllers    []DID         `json:"controller,omitempty"`
	MultisigM      int           `json:"multisig,omitempty"`
	PublicKeys     []*PublicKey  `json:"publicKey,omitempty"`
	Authentication []DIDURL      `json:"authentication,omitempty"`
	Authorization  []DIDURL      `json:"authorization,omitempty"`
	Credentials    []*Credential `json:"verifiableCredential,omitempty"`
	Services       []*Service    `json:"service,omitempty"`
	Expires        *time.Time    `json:"expires,omitempty"`
}

func (d *DIDDocument) signable() *signableDocument {
	return &signableDocument{
		Subject:        d.Subject,
		Controllers:    d.Controllers,
		MultisigM:      d.MultisigM,
		PublicKeys:     d.PublicKeys,
		Authentication: d.Authentication,
		Authorization:  d.Authorization,
		Credentials:    d.Credentials,
		Services:       d.Services,
		Expires:        d.Expires,
	}
}

// CanonicalPayload returns the canonical (signing) serialization of the
// document, excluding Proofs and Metadata, per spec §3.
func (d *DIDDocument) CanonicalPayload() ([]byte, error) {
	return Canonicalize(d.signable())
}

// IsCustomized reports whether this is a customized (controller-delegated)
// DID, as opposed to a primitive, self-authoritative one.
func (d *DIDDocument) IsCustomized() bool {
	return len(d.Controllers) > 0
}

// IsPrimitive reports whether the DID is its own authority.
func (d *DIDDocument) IsPrimitive() bool {
	return !d.IsCustomized()
}

// DefaultPublicKey returns the key whose base58-encoded bytes fingerprint
// to the subject's method-specific id, per spec §3. Only meaningful for
// primitive DIDs.
func (d *DIDDocument) DefaultPublicKey() *PublicKey {
	id := d.Subject.MethodSpecificID()
	for _, pk := range d.PublicKeys {
		if Hash160(pk.Bytes()) == id {
			return pk
		}
	}
	return nil
}

// PublicKeyByID finds a key by its full DIDURL id.
func (d *DIDDocument) PublicKeyByID(id DIDURL) *PublicKey {
	for _, pk := range d.PublicKeys {
		if pk.ID == id {
			return pk
		}
	}
	return nil
}

// HasAuthenticationKey reports whether id is listed under authentication.
func (d *DIDDocument) HasAuthenticationKey(id DIDURL) bool {
	for _, a := range d.Authentication {
		if a == id {
			return true
		}
	}
	return false
}

// HasAuthorizationKey reports whether id is listed under authorization.
func (d *DIDDocument) HasAuthorizationKey(id DIDURL) bool {
	for _, a := range d.Authorization {
		if a == id {
			return true
		}
	}
	return false
}

// Validate enforces the structural invariants from spec §3: every
// authentication/authorization key must be in the key set; a customized
// DID must declare at least one controller and a multisig threshold
// consistent with its controller count.
func (d *DIDDocument) Validate() error {
	if d.Subject.IsEmpty() {
		return errs.New(errs.MalformedRequest, "document has no subject DID")
	}
	if len(d.PublicKeys) == 0 {
		return errs.New(errs.MalformedRequest, "document has no public keys")
	}

	keySet := make(map[DIDURL]bool, len(d.PublicKeys))
	for _, pk := range d.PublicKeys {
		keySet[pk.ID] = true
	}
	for _, a := range d.Authentication {
		if !keySet[a] {
			return errs.New(errs.MalformedRequest, "authentication key not in key set: "+a.String())
		}
	}
	for _, a := range d.Authorization {
		if !keySet[a] {
			return errs.New(errs.MalformedRequest, "authorization key not in key set: "+a.String())
		}
	}

	if d.IsCustomized() {
		if d.MultisigM <= 0 || d.MultisigM > len(d.Controllers) {
			return errs.New(errs.MalformedRequest, "invalid multisig threshold for customized DID")
		}
	} else if d.DefaultPublicKey() == nil {
		return errs.New(errs.MalformedRequest, "primitive DID has no matching default public key")
	}

	return nil
}

// Sign appends a proof produced by signing the document's canonical
// payload with priv, attributed to the verification method creator.
func (d *DIDDocument) Sign(creator DIDURL, priv *PrivateKey, createdAt time.Time) error {
	payload, err := d.CanonicalPayload()
	if err != nil {
		return err
	}
	sig, err := Sign(priv, payload)
	if err != nil {
		return err
	}
	d.Proofs = append(d.Proofs, &Proof{
		Type:           KeyType,
		Created:        createdAt.Unix(),
		Creator:        creator,
		SignatureValue: EncodeBase64URL(sig),
	})
	return nil
}

// VerifyProofs verifies every attached proof against the given
// candidate public keys (one per proof, matched by Proof.Creator).
// It returns the number of proofs that verified successfully.
func (d *DIDDocument) VerifyProofs(resolveKey func(creator DIDURL) *PublicKey) (int, error) {
	payload, err := d.CanonicalPayload()
	if err != nil {
		return 0, err
	}
	verified := 0
	for _, p := range d.Proofs {
		pk := resolveKey(p.Creator)
		if pk == nil {
			continue
		}
		sig, err := p.Signature()
		if err != nil {
			continue
		}
		if Verify(pk.Bytes(), payload, sig) {
			verified++
		}
	}
	return verified, nil
}
