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

import "github.com/piprate/diddock/errs"

// TransferTicket authorizes a change of effective controller set on a
// customized DID. See spec §4.4 for the admissibility rule.
type TransferTicket struct {
	ID     DID      `json:"id"`
	To     DID      `json:"to"`
	Txid   string   `json:"txid"`
	Proofs []*Proof `json:"proofs"`
}

type signableTicket struct {
	ID   DID    `json:"id"`
	To   DID    `json:"to"`
	Txid string `json:"txid"`
}

func (t *TransferTicket) signable() *signableTicket {
	return &signableTicket{ID: t.ID, To: t.To, Txid: t.Txid}
}

// CanonicalPayload returns the canonical signing payload, excluding Proofs.
func (t *TransferTicket) CanonicalPayload() ([]byte, error) {
	return Canonicalize(t.signable())
}

// Sign appends one more authorizing proof from a prior controller.
func (t *TransferTicket) Sign(creator DIDURL, priv *PrivateKey, createdAt int64) error {
	payload, err := t.CanonicalPayload()
	if err != nil {
		return err
	}
	sig, err := Sign(priv, payload)
	if err != nil {
		return err
	}
	t.Proofs = append(t.Proofs, &Proof{
		Type:           KeyType,
		Created:        createdAt,
		Creator:        creator,
		SignatureValue: EncodeBase64URL(sig),
	})
	return nil
}

// Validate checks the ticket is addressed to the expected DID and was
// issued against the expected last txid — the admissibility rule from
// spec §4.4, minus the signature-threshold check, which requires the
// prior document's controller set and multisig threshold and is therefore
// performed by the validator (backend.ValidateAdmission), not here.
func (t *TransferTicket) Validate(expectedID DID, expectedTxid string) error {
	if t.ID != expectedID {
		return errs.New(errs.TransactionError, "ticket invalid: id mismatch")
	}
	if t.Txid != expectedTxid {
		return errs.New(errs.TransactionError, "ticket invalid: txid mismatch")
	}
	if t.To.IsEmpty() {
		return errs.New(errs.TransactionError, "ticket invalid: missing new controller subject")
	}
	if len(t.Proofs) == 0 {
		return errs.New(errs.TransactionError, "ticket missing proofs")
	}
	return nil
}

// CountValidProofs verifies every proof on the ticket against the key
// resolveControllerKey returns for its creator (proofs whose creator does
// not resolve are skipped; the caller limits resolution to the prior
// controllers' keys) and returns how many distinct controllers (the DID
// part of each creator) produced a valid signature.
func (t *TransferTicket) CountValidProofs(resolveControllerKey func(creator DIDURL) *PublicKey) (int, error) {
	payload, err := t.CanonicalPayload()
	if err != nil {
		return 0, err
	}
	seen := map[DID]bool{}
	count := 0
	for _, p := range t.Proofs {
		if seen[p.Creator.DID()] {
			continue
		}
		pk := resolveControllerKey(p.Creator)
		if pk == nil {
			continue
		}
		sig, err := p.Signature()
		if err != nil {
			continue
		}
		if Verify(pk.Bytes(), payload, sig) {
			seen[p.Creator.DID()] = true
			count++
		}
	}
	return count, nil
}
