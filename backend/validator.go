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

package backend

import (
	"github.com/piprate/diddock/errs"
	"github.com/piprate/diddock/model"
)

// LastTransaction is the minimal view of the chain's current head a
// validator needs: the most recent transaction for a subject DID, or nil
// if the DID has never been seen.
type LastTransaction struct {
	Txid     string
	Document *model.DIDDocument // embedded document at the time of last, nil for deactivate
	Op       model.OperationType
}

// ValidateAdmission applies the admission-rule matrix of spec §4.5 to req
// against the chain's current head for its target DID. It is run by the
// ledger adapter before appending a transaction. The resolver does not run
// it: when reconstructing a biography it only checks transaction
// signatures (IsValidDIDRequest).
func ValidateAdmission(req *model.DIDRequest, last *LastTransaction, resolveKey func(model.DIDURL) *model.PublicKey) error {
	op := req.Operation()
	if !op.IsDIDOperation() {
		return errs.New(errs.Unsupported, "not a DID operation: "+req.Header.Operation)
	}

	switch op {
	case model.OpCreate:
		if last != nil {
			return errs.New(errs.TransactionError, "DID exists")
		}
		if req.Document == nil {
			return errs.New(errs.MalformedRequest, "create request has no document")
		}
		if err := req.Document.Validate(); err != nil {
			return err
		}
		return verifyEnvelopeSignature(req, req.Document, resolveKey)

	case model.OpUpdate:
		if last == nil {
			return errs.New(errs.TransactionError, "DID not exists")
		}
		if last.Op == model.OpDeactivate {
			return errs.New(errs.TransactionError, "already deactivated")
		}
		if req.Header.PreviousTxid != last.Txid {
			return errs.New(errs.TransactionError, "prev-txid mismatch")
		}
		if req.Document == nil {
			return errs.New(errs.MalformedRequest, "update request has no document")
		}
		if err := req.Document.Validate(); err != nil {
			return err
		}
		if req.Document.IsCustomized() && last.Document != nil {
			if !sameControllerSet(req.Document.Controllers, last.Document.Controllers) {
				return errs.New(errs.TransactionError, "controllers diverged")
			}
		}
		return verifyEnvelopeSignature(req, req.Document, resolveKey)

	case model.OpTransfer:
		if last == nil {
			return errs.New(errs.TransactionError, "DID not exists")
		}
		if last.Op == model.OpDeactivate {
			return errs.New(errs.TransactionError, "already deactivated")
		}
		if req.Header.PreviousTxid != last.Txid {
			return errs.New(errs.TransactionError, "prev-txid mismatch")
		}
		if req.ParsedTicket == nil {
			return errs.New(errs.TransactionError, "ticket missing")
		}
		if err := req.ParsedTicket.Validate(req.Document.Subject, last.Txid); err != nil {
			return err
		}
		if last.Document == nil {
			return errs.New(errs.TransactionError, "no prior document to authorize ticket against")
		}
		threshold := last.Document.MultisigM
		if threshold == 0 {
			threshold = 1
		}
		priorControllers := last.Document.Controllers
		if len(priorControllers) == 0 {
			priorControllers = []model.DID{last.Document.Subject}
		}
		validProofs, err := req.ParsedTicket.CountValidProofs(func(creator model.DIDURL) *model.PublicKey {
			if !controllersMatchTicketTarget(priorControllers, creator.DID()) {
				return nil
			}
			if resolveKey != nil {
				return resolveKey(creator)
			}
			return last.Document.PublicKeyByID(creator)
		})
		if err != nil {
			return err
		}
		if validProofs < threshold {
			return errs.New(errs.TransactionError, "ticket invalid: insufficient valid proofs")
		}
		if req.Document == nil {
			return errs.New(errs.MalformedRequest, "transfer request has no document")
		}
		if err := req.Document.Validate(); err != nil {
			return err
		}
		if !controllersMatchTicketTarget(req.Document.Controllers, req.ParsedTicket.To) {
			return errs.New(errs.TransactionError, "controllers diverged")
		}
		return verifyEnvelopeSignature(req, req.Document, resolveKey)

	case model.OpDeactivate:
		if last == nil {
			return errs.New(errs.TransactionError, "DID not exists")
		}
		if last.Op == model.OpDeactivate {
			return errs.New(errs.TransactionError, "already deactivated")
		}
		if last.Document == nil {
			return errs.New(errs.TransactionError, "no document to deactivate against")
		}

		valid, err := IsValidDIDRequest(req, last.Document, resolveKey)
		if err != nil {
			return err
		}
		if valid {
			return nil
		}

		return errs.New(errs.TransactionError, "ticket invalid")

	default:
		return errs.New(errs.Unsupported, "unsupported operation: "+req.Header.Operation)
	}
}

// verifyEnvelopeSignature checks req's own proof against contextDoc, the
// admission rule every non-deactivate operation shares: the envelope must
// be signed by one of contextDoc's own authentication keys (and, for a
// customized DID, satisfy its internal multisig threshold).
func verifyEnvelopeSignature(req *model.DIDRequest, contextDoc *model.DIDDocument, resolveKey func(model.DIDURL) *model.PublicKey) error {
	valid, err := IsValidDIDRequest(req, contextDoc, resolveKey)
	if err != nil {
		return err
	}
	if !valid {
		return errs.New(errs.TransactionError, "envelope signature invalid")
	}
	return nil
}

func sameControllerSet(a, b []model.DID) bool {
	if len(a) != len(b) {
		return false
	}
	setA := make(map[model.DID]bool, len(a))
	for _, d := range a {
		setA[d] = true
	}
	for _, d := range b {
		if !setA[d] {
			return false
		}
	}
	return true
}

func controllersMatchTicketTarget(controllers []model.DID, to model.DID) bool {
	for _, c := range controllers {
		if c == to {
			return true
		}
	}
	return false
}
