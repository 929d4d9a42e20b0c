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

// CredentialSubject is the subject of a verifiable credential plus its
// issuer-defined claims. Claims are not schema-validated by this module
// beyond being well-formed JSON (spec §1 Non-goals).
type CredentialSubject struct {
	ID     DIDURL         `json:"id"`
	Claims map[string]any `json:"claims,omitempty"`
}

// Credential is a verifiable credential, signed by its issuer.
type Credential struct {
	ID                 DIDURL             `json:"id"`
	Context            []string           `json:"@context,omitempty"`
	Type               []string           `json:"type"`
	Issuer             DID                `json:"issuer"`
	IssuanceDate       time.Time          `json:"issuanceDate"`
	ExpirationDate     *time.Time         `json:"expirationDate,omitempty"`
	Subject            CredentialSubject `json:"credentialSubject"`
	AdditionalMetadata map[string]any     `json:"additionalMetadata,omitempty"`
	Proof              *Proof             `json:"proof,omitempty"`
}

type signableCredential struct {
	ID                 DIDURL            `json:"id"`
	Context            []string          `json:"@context,omitempty"`
	Type               []string          `json:"type"`
	Issuer             DID               `json:"issuer"`
	IssuanceDate       time.Time         `json:"issuanceDate"`
	ExpirationDate     *time.Time        `json:"expirationDate,omitempty"`
	Subject            CredentialSubject `json:"credentialSubject"`
	AdditionalMetadata map[string]any    `json:"additionalMetadata,omitempty"`
}

func (c *Credential) signable() *signableCredential {
	return &signableCredential{
		ID:                 c.ID,
		Context:            c.Context,
		Type:               c.Type,
		Issuer:             c.Issuer,
		IssuanceDate:       c.IssuanceDate,
		ExpirationDate:     c.ExpirationDate,
		Subject:            c.Subject,
		AdditionalMetadata: c.AdditionalMetadata,
	}
}

// CanonicalPayload returns the canonical signing payload, excluding Proof.
func (c *Credential) CanonicalPayload() ([]byte, error) {
	return Canonicalize(c.signable())
}

// Validate checks structural well-formedness: id, type, issuer and subject
// id are present, and a credential carrying @context passes a JSON-LD
// expansion pass. The issuer DID and subject id are checked for presence
// only; they are not parsed.
func (c *Credential) Validate() error {
	if c.ID == "" {
		return errs.New(errs.MalformedRequest, "credential has no id")
	}
	if len(c.Type) == 0 {
		return errs.New(errs.MalformedRequest, "credential has no type")
	}
	if c.Issuer.IsEmpty() {
		return errs.New(errs.MalformedRequest, "credential has no issuer")
	}
	if c.Subject.ID == "" {
		return errs.New(errs.MalformedRequest, "credential has no subject id")
	}
	if len(c.Context) > 0 {
		if err := ValidateJSONLDStructure(c); err != nil {
			return errs.Wrap(errs.MalformedRequest, "credential is not well-formed JSON-LD", err)
		}
	}
	return nil
}

// Sign signs the credential's canonical payload with the issuer's key.
func (c *Credential) Sign(creator DIDURL, priv *PrivateKey, createdAt time.Time) error {
	payload, err := c.CanonicalPayload()
	if err != nil {
		return err
	}
	sig, err := Sign(priv, payload)
	if err != nil {
		return err
	}
	c.Proof = &Proof{
		Type:           KeyType,
		Created:        createdAt.Unix(),
		Creator:        creator,
		SignatureValue: EncodeBase64URL(sig),
	}
	return nil
}

// Verify verifies the credential's proof against the given public key.
func (c *Credential) Verify(pk *PublicKey) (bool, error) {
	if c.Proof == nil {
		return false, errs.New(errs.MalformedRequest, "credential has no proof")
	}
	payload, err := c.CanonicalPayload()
	if err != nil {
		return false, err
	}
	sig, err := c.Proof.Signature()
	if err != nil {
		return false, err
	}
	return Verify(pk.Bytes(), payload, sig), nil
}
