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
	"encoding/json"

	"github.com/piprate/diddock/errs"
	"github.com/piprate/diddock/model"
)

// ResultStatus mirrors the integer status code carried by a did_resolveDID
// / did_resolveCredential RPC result (spec §4.6): 0=Valid, 1=Expired (still
// Valid, with Expired set), 2=Deactivated, 3=NotFound.
type ResultStatus int

const (
	StatusValid       ResultStatus = 0
	StatusExpired     ResultStatus = 1
	StatusDeactivated ResultStatus = 2
	StatusNotFound    ResultStatus = 3
)

// ResultTransaction is the wire shape of one entry in a resolve result's
// transaction array, shared by the resolver (parsing) and the ledger
// adapters (building).
type ResultTransaction struct {
	Txid      string          `json:"txid"`
	Timestamp int64           `json:"timestamp"`
	Operation json.RawMessage `json:"operation"`
}

// DIDResultBody is the wire shape of a did_resolveDID result body (all=false or all=true).
type DIDResultBody struct {
	DID          model.DID           `json:"did"`
	Status       ResultStatus        `json:"status"`
	Transactions []ResultTransaction `json:"transaction"`
}

// BuildDIDResultJSON serializes a DIDResultBody the way a real RPC
// endpoint (or the dummy ledger adapter) would, for use as the "result"
// member of an RPCResponse.
func BuildDIDResultJSON(body *DIDResultBody) ([]byte, error) {
	return model.Compact(body)
}

// ParseDIDResolveResult validates and converts the raw did_resolveDID
// result body into a DIDBiography, applying spec §4.6's cross-checks:
// subject agreement, transaction-count-vs-status consistency, and
// newest-transaction-operation-vs-status consistency.
//
// full selects which count rule applies: false (a plain did_resolveDID,
// all=false) enforces the exact 0/1/2 transaction counts spec §4.6
// specifies for NotFound/Valid/Deactivated; true (did_resolveDID with
// all=true) only requires at least the minimum for the status, since the
// result carries the complete ordered history rather than just enough to
// classify the current state.
func ParseDIDResolveResult(raw []byte, requestedDID model.DID, full bool) (*model.DIDBiography, error) {
	var body DIDResultBody
	if err := model.Unmarshal(raw, &body); err != nil {
		return nil, errs.Wrap(errs.MalformedResolveResponse, "failed to parse resolve result", err)
	}

	if body.DID != requestedDID {
		return nil, errs.New(errs.MalformedResolveResponse, "resolve result subject mismatch")
	}

	bio := &model.DIDBiography{
		Subject: body.DID,
		Expired: body.Status == StatusExpired,
	}

	switch body.Status {
	case StatusValid, StatusExpired:
		bio.Status = model.DIDStatusValid
		if n := len(body.Transactions); n == 0 || (!full && n != 1) {
			return nil, errs.New(errs.MalformedResolveResponse, "valid result must carry exactly one transaction")
		}
	case StatusDeactivated:
		bio.Status = model.DIDStatusDeactivated
		if n := len(body.Transactions); n < 2 || (!full && n != 2) {
			return nil, errs.New(errs.MalformedResolveResponse, "deactivated result must carry exactly two transactions")
		}
	case StatusNotFound:
		bio.Status = model.DIDStatusNotFound
		if len(body.Transactions) != 0 {
			return nil, errs.New(errs.MalformedResolveResponse, "not-found result must carry no transactions")
		}
		return bio, nil
	default:
		return nil, errs.New(errs.MalformedResolveResponse, "unrecognized status code")
	}

	txs := make([]*model.DIDTransaction, 0, len(body.Transactions))
	for _, rt := range body.Transactions {
		var req model.DIDRequest
		if err := model.Unmarshal(rt.Operation, &req); err != nil {
			return nil, errs.Wrap(errs.MalformedResolveResponse, "failed to parse transaction operation", err)
		}
		if err := decodeRequestPayload(&req); err != nil {
			return nil, err
		}
		txs = append(txs, &model.DIDTransaction{
			Txid:      rt.Txid,
			Timestamp: rt.Timestamp,
			Request:   &req,
		})
	}
	bio.Transactions = txs

	newest := bio.Transactions[0].Request.Operation()
	switch bio.Status {
	case model.DIDStatusValid:
		if newest == model.OpDeactivate {
			return nil, errs.New(errs.MalformedResolveResponse, "valid status with a deactivate as newest transaction")
		}
	case model.DIDStatusDeactivated:
		if newest != model.OpDeactivate {
			return nil, errs.New(errs.MalformedResolveResponse, "deactivated status without a deactivate as newest transaction")
		}
	}

	return bio, nil
}

// decodeRequestPayload fills in req.Document/TargetDID/ParsedTicket from
// its Payload/Header, the same decoding ParseDIDRequest performs, since
// transactions arrive already unmarshalled into the envelope shape rather
// than as a raw JSON string.
func decodeRequestPayload(req *model.DIDRequest) error {
	op := req.Operation()
	if op == model.OpUnknown {
		return errs.New(errs.Unsupported, "unknown operation: "+req.Header.Operation)
	}

	if op == model.OpDeactivate {
		did, err := model.ParseDID(req.Payload)
		if err != nil {
			return errs.Wrap(errs.MalformedResolveResponse, "bad deactivate target", err)
		}
		req.TargetDID = did
	} else {
		raw, err := model.DecodeBase64URL(req.Payload)
		if err != nil {
			return errs.Wrap(errs.MalformedResolveResponse, "bad base64url payload", err)
		}
		var doc model.DIDDocument
		if err := model.Unmarshal(raw, &doc); err != nil {
			return errs.Wrap(errs.MalformedResolveResponse, "bad embedded document", err)
		}
		req.Document = &doc
	}

	if req.Header.Ticket != "" {
		raw, err := model.DecodeBase64URL(req.Header.Ticket)
		if err != nil {
			return errs.Wrap(errs.MalformedResolveResponse, "bad base64url ticket", err)
		}
		var ticket model.TransferTicket
		if err := model.Unmarshal(raw, &ticket); err != nil {
			return errs.Wrap(errs.MalformedResolveResponse, "bad ticket", err)
		}
		req.ParsedTicket = &ticket
	}

	return nil
}

// CredentialResultBody is the wire shape of a did_resolveCredential result body.
type CredentialResultBody struct {
	ID           model.DIDURL        `json:"id"`
	Status       ResultStatus        `json:"status"`
	Transactions []ResultTransaction `json:"transaction"`
}

// BuildCredentialResultJSON serializes a CredentialResultBody, the
// did_resolveCredential counterpart of BuildDIDResultJSON.
func BuildCredentialResultJSON(body *CredentialResultBody) ([]byte, error) {
	return model.Compact(body)
}

// ParseCredentialResolveResult parses a did_resolveCredential result body
// into a CredentialBiography: Valid requires exactly one declare; Revoked
// requires a revoke (optionally preceded by a declare).
func ParseCredentialResolveResult(raw []byte, requestedID model.DIDURL) (*model.CredentialBiography, error) {
	var body CredentialResultBody
	if err := model.Unmarshal(raw, &body); err != nil {
		return nil, errs.Wrap(errs.MalformedResolveResponse, "failed to parse resolve result", err)
	}

	if body.ID != requestedID {
		return nil, errs.New(errs.MalformedResolveResponse, "resolve result subject mismatch")
	}

	bio := &model.CredentialBiography{Subject: body.ID}

	switch body.Status {
	case StatusValid:
		bio.Status = model.CredentialStatusValid
		if len(body.Transactions) != 1 {
			return nil, errs.New(errs.MalformedResolveResponse, "valid credential result must carry exactly one transaction")
		}
	case StatusDeactivated: // revoked reuses the deactivated wire code
		bio.Status = model.CredentialStatusRevoked
		if len(body.Transactions) == 0 || len(body.Transactions) > 2 {
			return nil, errs.New(errs.MalformedResolveResponse, "revoked credential result must carry one or two transactions")
		}
	case StatusNotFound:
		bio.Status = model.CredentialStatusNotFound
		if len(body.Transactions) != 0 {
			return nil, errs.New(errs.MalformedResolveResponse, "not-found credential result must carry no transactions")
		}
		return bio, nil
	default:
		return nil, errs.New(errs.MalformedResolveResponse, "unrecognized status code")
	}

	txs := make([]*model.CredentialTransaction, 0, len(body.Transactions))
	for _, rt := range body.Transactions {
		var req model.CredentialRequest
		if err := model.Unmarshal(rt.Operation, &req); err != nil {
			return nil, errs.Wrap(errs.MalformedResolveResponse, "failed to parse transaction operation", err)
		}
		if err := decodeCredentialRequestPayload(&req); err != nil {
			return nil, err
		}
		txs = append(txs, &model.CredentialTransaction{
			Txid:      rt.Txid,
			Timestamp: rt.Timestamp,
			Request:   &req,
		})
	}
	bio.Transactions = txs

	newest := bio.Transactions[0].Request.Operation()
	switch bio.Status {
	case model.CredentialStatusValid:
		if newest != model.OpDeclare {
			return nil, errs.New(errs.MalformedResolveResponse, "valid credential status without a declare as newest transaction")
		}
	case model.CredentialStatusRevoked:
		if newest != model.OpRevoke {
			return nil, errs.New(errs.MalformedResolveResponse, "revoked credential status without a revoke as newest transaction")
		}
	}

	return bio, nil
}

func decodeCredentialRequestPayload(req *model.CredentialRequest) error {
	op := req.Operation()
	if op == model.OpUnknown {
		return errs.New(errs.Unsupported, "unknown operation: "+req.Header.Operation)
	}

	if op == model.OpRevoke {
		id, err := model.ParseDIDURL(req.Payload)
		if err != nil {
			return errs.Wrap(errs.MalformedResolveResponse, "bad revoke target", err)
		}
		req.TargetID = id
		return nil
	}

	raw, err := model.DecodeBase64URL(req.Payload)
	if err != nil {
		return errs.Wrap(errs.MalformedResolveResponse, "bad base64url payload", err)
	}
	var cred model.Credential
	if err := model.Unmarshal(raw, &cred); err != nil {
		return errs.Wrap(errs.MalformedResolveResponse, "bad embedded credential", err)
	}
	req.Credential = &cred
	return nil
}
