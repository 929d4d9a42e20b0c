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

// Package backend implements the DID request codec, admission validator,
// resolve-result parser and resolver orchestrator — the trust-layer core
// described in spec §4.3-§4.7.
package backend

import (
	"time"

	"github.com/piprate/diddock/errs"
	"github.com/piprate/diddock/model"
	"github.com/piprate/diddock/store"
)

// SignDocumentRequest builds, signs and serializes a DID request envelope
// for create/update/transfer, per spec §4.3.
func SignDocumentRequest(
	op model.OperationType,
	doc *model.DIDDocument,
	signKeyID model.DIDURL,
	st store.KeyStore,
	storePass string,
	ticket *model.TransferTicket,
) (string, error) {
	if !op.IsDIDOperation() || op == model.OpDeactivate {
		return "", errs.New(errs.InvalidArgs, "SignDocumentRequest requires create/update/transfer")
	}
	if doc == nil {
		return "", errs.New(errs.InvalidArgs, "nil document")
	}

	header := model.RequestHeader{
		Specification: model.Specification,
		Operation:     op.String(),
	}

	if op == model.OpUpdate || op == model.OpTransfer {
		if doc.Metadata == nil || doc.Metadata.Txid == "" {
			return "", errs.New(errs.InvalidArgs, "document has no previous txid in metadata")
		}
		header.PreviousTxid = doc.Metadata.Txid
	}

	if op == model.OpTransfer {
		if ticket == nil {
			return "", errs.New(errs.TransactionError, "ticket missing")
		}
		ticketPayload, err := model.Canonicalize(ticket)
		if err != nil {
			return "", err
		}
		header.Ticket = model.EncodeBase64URL(ticketPayload)
	}

	docPayload, err := model.Canonicalize(doc)
	if err != nil {
		return "", err
	}
	payload := model.EncodeBase64URL(docPayload)

	priv, err := loadSigningKey(st, signKeyID, storePass)
	if err != nil {
		return "", err
	}

	signingInput := header.SigningInput(payload)
	sig, err := model.Sign(priv, signingInput)
	if err != nil {
		return "", err
	}

	req := &model.DIDRequest{
		Header:  header,
		Payload: payload,
		Proof: model.RequestProof{
			Type:               model.KeyType,
			VerificationMethod: signKeyID,
			Signature:          model.EncodeBase64URL(sig),
		},
	}

	out, err := model.Compact(req)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// SignDeactivateRequest builds a deactivate envelope, whose payload is the
// plain target DID string rather than an embedded document.
func SignDeactivateRequest(target model.DID, signKeyID model.DIDURL, st store.KeyStore, storePass string) (string, error) {
	header := model.RequestHeader{
		Specification: model.Specification,
		Operation:     model.OpDeactivate.String(),
	}
	payload := target.String()

	priv, err := loadSigningKey(st, signKeyID, storePass)
	if err != nil {
		return "", err
	}

	signingInput := header.SigningInput(payload)
	sig, err := model.Sign(priv, signingInput)
	if err != nil {
		return "", err
	}

	req := &model.DIDRequest{
		Header:  header,
		Payload: payload,
		Proof: model.RequestProof{
			Type:               model.KeyType,
			VerificationMethod: signKeyID,
			Signature:          model.EncodeBase64URL(sig),
		},
	}

	out, err := model.Compact(req)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func loadSigningKey(st store.KeyStore, signKeyID model.DIDURL, storePass string) (*model.PrivateKey, error) {
	if st == nil {
		return nil, errs.New(errs.NoAttachedStore, "document has no attached store")
	}
	raw, err := st.LoadPrivateKey(signKeyID, storePass)
	if err != nil {
		return nil, errs.Wrap(errs.NoAttachedStore, "failed to load signing key", err)
	}
	return store.DecodePrivateKey(raw)
}

// ParseDIDRequest parses the wire envelope string into a DIDRequest,
// decoding the embedded document (or target DID, for deactivate) and any
// attached transfer ticket.
func ParseDIDRequest(envelopeJSON string) (*model.DIDRequest, error) {
	var req model.DIDRequest
	if err := model.Unmarshal([]byte(envelopeJSON), &req); err != nil {
		return nil, errs.Wrap(errs.MalformedRequest, "failed to parse request envelope", err)
	}

	if req.Header.Specification == "" || req.Header.Operation == "" {
		return nil, errs.New(errs.MalformedRequest, "missing required header fields")
	}

	op := req.Operation()
	if op == model.OpUnknown {
		return nil, errs.New(errs.Unsupported, "unknown operation: "+req.Header.Operation)
	}

	if op == model.OpDeactivate {
		did, err := model.ParseDID(req.Payload)
		if err != nil {
			return nil, errs.Wrap(errs.MalformedRequest, "bad deactivate target", err)
		}
		req.TargetDID = did
	} else {
		raw, err := model.DecodeBase64URL(req.Payload)
		if err != nil {
			return nil, errs.Wrap(errs.MalformedRequest, "bad base64url payload", err)
		}
		var doc model.DIDDocument
		if err := model.Unmarshal(raw, &doc); err != nil {
			return nil, errs.Wrap(errs.MalformedRequest, "bad embedded document", err)
		}
		req.Document = &doc
	}

	if req.Header.Ticket != "" {
		raw, err := model.DecodeBase64URL(req.Header.Ticket)
		if err != nil {
			return nil, errs.Wrap(errs.MalformedRequest, "bad base64url ticket", err)
		}
		var ticket model.TransferTicket
		if err := model.Unmarshal(raw, &ticket); err != nil {
			return nil, errs.Wrap(errs.MalformedRequest, "bad ticket", err)
		}
		req.ParsedTicket = &ticket
	}

	return &req, nil
}

// EmitDIDRequest serializes req back to its compact wire form — the
// counterpart of ParseDIDRequest, used to verify round-trip fidelity
// (spec §8: parseEnvelope(emitEnvelope(r)) ≡ r).
func EmitDIDRequest(req *model.DIDRequest) (string, error) {
	out, err := model.Compact(req)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// IsValidDIDRequest implements spec §4.3's isValid verification: it
// reconstructs the signed byte string and checks the proof's
// verificationMethod names an acceptable key.
//
// contextDoc is the subject's own (pre-deactivation) document. resolveKey
// resolves a verificationMethod to the key that actually backs it; pass
// nil when only contextDoc's own key set needs checking. It is consulted
// for deactivate requests per spec §4.5 case (b): the signer may be a key
// belonging to a different DID's document, reachable only because
// contextDoc's Authorization list names it.
func IsValidDIDRequest(req *model.DIDRequest, contextDoc *model.DIDDocument, resolveKey func(model.DIDURL) *model.PublicKey) (bool, error) {
	signingInput := req.Header.SigningInput(req.Payload)
	sig, err := req.Proof.Signature()
	if err != nil {
		return false, nil //nolint:nilerr // malformed signature just fails verification
	}

	if req.Operation() == model.OpDeactivate {
		vm := req.Proof.VerificationMethod
		if !contextDoc.HasAuthenticationKey(vm) && !contextDoc.HasAuthorizationKey(vm) {
			return false, nil
		}
		pk := contextDoc.PublicKeyByID(vm)
		if pk == nil && resolveKey != nil {
			pk = resolveKey(vm)
		}
		if pk == nil {
			return false, nil
		}
		return model.Verify(pk.Bytes(), signingInput, sig), nil
	}

	doc := req.Document
	if doc == nil {
		return false, errs.New(errs.MalformedRequest, "request has no embedded document to verify against")
	}

	if !doc.HasAuthenticationKey(req.Proof.VerificationMethod) {
		return false, nil
	}

	pk := doc.PublicKeyByID(req.Proof.VerificationMethod)
	if pk == nil {
		return false, nil
	}

	if doc.IsCustomized() {
		if !controllerOwnsDefaultKey(doc, pk) {
			return false, nil
		}
	}

	if !model.Verify(pk.Bytes(), signingInput, sig) {
		return false, nil
	}

	if doc.IsCustomized() {
		verified, err := doc.VerifyProofs(func(creator model.DIDURL) *model.PublicKey {
			return doc.PublicKeyByID(creator)
		})
		if err != nil {
			return false, err
		}
		if verified < doc.MultisigM {
			return false, nil
		}
	}

	return true, nil
}

func controllerOwnsDefaultKey(doc *model.DIDDocument, pk *model.PublicKey) bool {
	for _, c := range doc.Controllers {
		if pk.Controller == c {
			return true
		}
	}
	return false
}

// now is overridable in tests that need deterministic timestamps.
var now = time.Now
