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

// Specification is the fixed header tag carried by every request envelope.
const Specification = "diddock/did/1.0"

// OperationType enumerates the DID and credential operations. It replaces
// the string-keyed dispatch ("create"/"update"/...) the reference
// implementation uses with an exhaustive-match-friendly enum.
type OperationType int

const (
	OpUnknown OperationType = iota
	OpCreate
	OpUpdate
	OpTransfer
	OpDeactivate
	OpDeclare
	OpRevoke
)

func (o OperationType) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpTransfer:
		return "transfer"
	case OpDeactivate:
		return "deactivate"
	case OpDeclare:
		return "declare"
	case OpRevoke:
		return "revoke"
	default:
		return "unknown"
	}
}

// ParseOperationType maps the wire string back to an OperationType.
func ParseOperationType(s string) OperationType {
	switch s {
	case "create":
		return OpCreate
	case "update":
		return OpUpdate
	case "transfer":
		return OpTransfer
	case "deactivate":
		return OpDeactivate
	case "declare":
		return OpDeclare
	case "revoke":
		return OpRevoke
	default:
		return OpUnknown
	}
}

// IsDIDOperation reports whether this is one of the four DID operations.
func (o OperationType) IsDIDOperation() bool {
	switch o {
	case OpCreate, OpUpdate, OpTransfer, OpDeactivate:
		return true
	default:
		return false
	}
}

// IsCredentialOperation reports whether this is one of the two VC operations.
func (o OperationType) IsCredentialOperation() bool {
	switch o {
	case OpDeclare, OpRevoke:
		return true
	default:
		return false
	}
}

// RequestHeader is the header block shared by DID and credential requests.
type RequestHeader struct {
	Specification string `json:"specification"`
	Operation     string `json:"operation"`
	PreviousTxid  string `json:"previousTxid,omitempty"`
	Ticket        string `json:"ticket,omitempty"` // base64url(canonical(TransferTicket))
}

// RequestProof is the proof block of a request envelope.
type RequestProof struct {
	Type               string `json:"type"`
	VerificationMethod DIDURL `json:"verificationMethod"`
	Signature          string `json:"signature"` // base64url-encoded
}

// DIDRequest is the signed envelope wrapping a create/update/transfer/deactivate operation.
type DIDRequest struct {
	Header  RequestHeader `json:"header"`
	Payload string        `json:"payload"` // base64url(canonical(document)) or plain DID string for deactivate
	Proof   RequestProof  `json:"proof"`

	// Document is populated by backend.ParseDIDRequest when Payload carries
	// an embedded document (every operation except deactivate).
	Document *DIDDocument `json:"-"`
	// TargetDID is populated by backend.ParseDIDRequest for deactivate,
	// where Payload is a plain DID string rather than an embedded document.
	TargetDID DID `json:"-"`
	// ParsedTicket is populated by backend.ParseDIDRequest when
	// Header.Ticket is present.
	ParsedTicket *TransferTicket `json:"-"`
}

// CredentialRequest is the signed envelope wrapping a declare/revoke operation.
type CredentialRequest struct {
	Header  RequestHeader `json:"header"`
	Payload string        `json:"payload"` // base64url(canonical(credential)) or plain DIDURL string for revoke
	Proof   RequestProof  `json:"proof"`

	Credential *Credential `json:"-"`
	TargetID   DIDURL      `json:"-"`
}

// Operation returns the parsed OperationType of the request header.
func (r *DIDRequest) Operation() OperationType { return ParseOperationType(r.Header.Operation) }

func (r *CredentialRequest) Operation() OperationType { return ParseOperationType(r.Header.Operation) }

// SigningInput is the exact byte concatenation signed/verified for a
// request, per spec §4.3 step 3:
// header.spec || header.operation || header.previousTxid || header.ticket || payload
func (h RequestHeader) SigningInput(payload string) []byte {
	buf := make([]byte, 0, len(h.Specification)+len(h.Operation)+len(h.PreviousTxid)+len(h.Ticket)+len(payload))
	buf = append(buf, h.Specification...)
	buf = append(buf, h.Operation...)
	buf = append(buf, h.PreviousTxid...)
	buf = append(buf, h.Ticket...)
	buf = append(buf, payload...)
	return buf
}
