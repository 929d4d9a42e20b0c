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

// Package dummy implements an in-memory ledger replica (one independent
// ledger per NewLedger call)
// (spec §4.9): a bounded array of committed transactions enforcing the
// same admission rules (backend.ValidateAdmission) a real on-chain
// contract would, so tests and dry runs can exercise the full backend
// façade without a network dependency.
package dummy

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	"sync"

	"github.com/piprate/diddock/adapter"
	"github.com/piprate/diddock/backend"
	"github.com/piprate/diddock/model"
)

// AdapterType is the name this adapter registers under.
const AdapterType = "dummy"

func init() {
	adapter.Register(AdapterType, func(_ *adapter.Config) (adapter.Transport, error) {
		return NewLedger(), nil
	})
}

const capacity = 256

const txidAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
const txidLength = 32

type entry struct {
	txid      string
	timestamp int64
	envelope  string // compact wire JSON, as submitted to CreateTransaction
	subject   model.DID
	req       *model.DIDRequest
}

type credEntry struct {
	txid      string
	timestamp int64
	envelope  string
	target    model.DIDURL
	req       *model.CredentialRequest
}

// Ledger is a bounded, in-memory replica of the on-chain registry.
// Capacity is fixed at 256 transactions; once full, the oldest is evicted
// to make room for the newest, matching the process-wide bounded-array
// behavior of spec §4.9.
type Ledger struct {
	mu          sync.Mutex
	entries     []*entry
	credEntries []*credEntry
	clock       int64
}

var _ adapter.Transport = (*Ledger)(nil)

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make([]*entry, 0, capacity)}
}

// Reset clears all committed state.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = l.entries[:0]
	l.credEntries = l.credEntries[:0]
	l.clock = 0
}

func randomTxid() string {
	out := make([]byte, txidLength)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(txidAlphabet))))
		if err != nil {
			panic(err) // crypto/rand failure is unrecoverable
		}
		out[i] = txidAlphabet[n.Int64()]
	}
	return string(out)
}

// lastFor returns the most recent committed transaction for subject, or
// nil if the ledger has never seen it.
func (l *Ledger) lastFor(subject model.DID) *entry {
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].subject == subject {
			return l.entries[i]
		}
	}
	return nil
}

// docAt reconstructs the document state asserted by e, suitable for use
// as the "current document" context in admission checks.
func docAt(e *entry) *model.DIDDocument {
	if e == nil || e.req == nil {
		return nil
	}
	return e.req.Document
}

// resolveExternalKey resolves a verification method against the latest
// document known for its own subject DID — the cross-document lookup
// spec §4.5 case (b) deactivation needs when the signer belongs to a
// different DID than the one being deactivated.
func (l *Ledger) resolveExternalKey(vm model.DIDURL) *model.PublicKey {
	last := l.lastFor(vm.DID())
	doc := docAt(last)
	if doc == nil {
		return nil
	}
	return doc.PublicKeyByID(vm)
}

type envelopeHeader struct {
	Header model.RequestHeader `json:"header"`
}

// CreateTransaction parses and admits a signed request envelope, per the
// admission-rule matrix (backend.ValidateAdmission), or the credential
// declare/revoke admission rules for a VC envelope. On success it appends
// a new committed transaction with a fresh random txid and returns true.
func (l *Ledger) CreateTransaction(payloadJSON, _ string) bool {
	var peek envelopeHeader
	if err := model.Unmarshal([]byte(payloadJSON), &peek); err != nil {
		return false
	}
	op := model.ParseOperationType(peek.Header.Operation)

	switch {
	case op.IsDIDOperation():
		return l.createDIDTransaction(payloadJSON)
	case op.IsCredentialOperation():
		return l.createCredentialTransaction(payloadJSON)
	default:
		return false
	}
}

func (l *Ledger) createDIDTransaction(payloadJSON string) bool {
	req, err := backend.ParseDIDRequest(payloadJSON)
	if err != nil {
		return false
	}

	subject := targetSubject(req)

	l.mu.Lock()
	defer l.mu.Unlock()

	lastEntry := l.lastFor(subject)
	var last *backend.LastTransaction
	if lastEntry != nil {
		last = &backend.LastTransaction{
			Txid:     lastEntry.txid,
			Document: docAt(lastEntry),
			Op:       lastEntry.req.Operation(),
		}
	}

	if err := backend.ValidateAdmission(req, last, l.resolveExternalKey); err != nil {
		return false
	}

	l.clock++
	e := &entry{
		txid:      randomTxid(),
		timestamp: l.clock,
		envelope:  payloadJSON,
		subject:   subject,
		req:       req,
	}

	if len(l.entries) >= capacity {
		l.entries = append(l.entries[1:], e)
	} else {
		l.entries = append(l.entries, e)
	}

	return true
}

// lastCredFor returns the most recent committed transaction for a
// credential id, or nil if none exists yet.
func (l *Ledger) lastCredFor(id model.DIDURL) *credEntry {
	for i := len(l.credEntries) - 1; i >= 0; i-- {
		if l.credEntries[i].target == id {
			return l.credEntries[i]
		}
	}
	return nil
}

func credentialTargetID(req *model.CredentialRequest) model.DIDURL {
	if req.Operation() == model.OpRevoke {
		return req.TargetID
	}
	if req.Credential != nil {
		return req.Credential.ID
	}
	return ""
}

// createCredentialTransaction admits a declare/revoke envelope: a declare
// is admissible iff the credential has no prior history and the
// envelope's proof verifies against the key its verificationMethod names
// (resolved from this same ledger's DID entries); a revoke is admissible
// iff a declare preceded it, it hasn't already been revoked, and its
// envelope proof verifies the same way. The credential's own embedded
// proof is not checked, nor is the verificationMethod matched to the issuer.
func (l *Ledger) createCredentialTransaction(payloadJSON string) bool {
	req, err := backend.ParseCredentialRequest(payloadJSON)
	if err != nil {
		return false
	}

	id := credentialTargetID(req)
	if id == "" {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	last := l.lastCredFor(id)

	switch req.Operation() {
	case model.OpDeclare:
		if last != nil {
			return false
		}
		if req.Credential == nil {
			return false
		}
		issuerKey := l.resolveExternalKey(req.Proof.VerificationMethod)
		valid, err := backend.IsValidCredentialRequest(req, issuerKey)
		if err != nil || !valid {
			return false
		}
	case model.OpRevoke:
		if last == nil || last.req.Operation() == model.OpRevoke {
			return false
		}
		issuerKey := l.resolveExternalKey(req.Proof.VerificationMethod)
		valid, err := backend.IsValidCredentialRequest(req, issuerKey)
		if err != nil || !valid {
			return false
		}
	default:
		return false
	}

	l.clock++
	e := &credEntry{
		txid:      randomTxid(),
		timestamp: l.clock,
		envelope:  payloadJSON,
		target:    id,
		req:       req,
	}
	l.credEntries = append(l.credEntries, e)

	return true
}

func targetSubject(req *model.DIDRequest) model.DID {
	if req.Operation() == model.OpDeactivate {
		return req.TargetDID
	}
	if req.Document != nil {
		return req.Document.Subject
	}
	return ""
}

// Resolve dispatches a JSON-RPC request built by the backend resolver,
// constructing the same result shape a real endpoint would.
func (l *Ledger) Resolve(requestJSON string) (string, bool) {
	var req backend.RPCRequest
	if err := model.Unmarshal([]byte(requestJSON), &req); err != nil {
		return "", false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var result []byte
	var rpcErr *backend.RPCError
	var err error

	switch req.Method {
	case backend.MethodResolveDID:
		result, err = l.resolveDID(&req)
	case backend.MethodListCredentials:
		result, err = l.listCredentials(&req)
	case backend.MethodResolveCredential:
		result, err = l.resolveCredential(&req)
	default:
		rpcErr = &backend.RPCError{Code: -32601, Message: "method not found"}
	}

	if err != nil {
		rpcErr = &backend.RPCError{Code: -32000, Message: err.Error()}
		result = nil
	}

	resp := backend.RPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
	}
	if result != nil {
		resp.Result = result
	}
	resp.Error = rpcErr

	out, err := model.Compact(resp)
	if err != nil {
		return "", false
	}
	return string(out), true
}

type resolveDIDParams struct {
	DID model.DID `json:"did"`
	All bool      `json:"all"`
}

func (l *Ledger) resolveDID(req *backend.RPCRequest) ([]byte, error) {
	var params resolveDIDParams
	if err := backend.ParseRPCRequestParams(req, &params); err != nil {
		return nil, err
	}

	var history []*entry
	for _, e := range l.entries {
		if e.subject == params.DID {
			history = append(history, e)
		}
	}

	if len(history) == 0 {
		return backend.BuildDIDResultJSON(&backend.DIDResultBody{
			DID:    params.DID,
			Status: backend.StatusNotFound,
		})
	}

	newest := history[len(history)-1]

	var window []*entry
	if params.All {
		window = history
	} else if newest.req.Operation() == model.OpDeactivate && len(history) >= 2 {
		window = history[len(history)-2:]
	} else {
		window = history[len(history)-1:]
	}

	status := backend.StatusValid
	if newest.req.Operation() == model.OpDeactivate {
		status = backend.StatusDeactivated
	}

	txs := make([]backend.ResultTransaction, len(window))
	for i := len(window) - 1; i >= 0; i-- {
		e := window[i]
		txs[len(window)-1-i] = backend.ResultTransaction{
			Txid:      e.txid,
			Timestamp: e.timestamp,
			Operation: json.RawMessage(e.envelope),
		}
	}

	return backend.BuildDIDResultJSON(&backend.DIDResultBody{
		DID:          params.DID,
		Status:       status,
		Transactions: txs,
	})
}

type resolveCredentialParams struct {
	ID     model.DIDURL `json:"id"`
	Issuer model.DID    `json:"issuer"`
}

func (l *Ledger) resolveCredential(req *backend.RPCRequest) ([]byte, error) {
	var params resolveCredentialParams
	if err := backend.ParseRPCRequestParams(req, &params); err != nil {
		return nil, err
	}

	var history []*credEntry
	for _, e := range l.credEntries {
		if e.target == params.ID {
			history = append(history, e)
		}
	}

	if len(history) == 0 {
		return backend.BuildCredentialResultJSON(&backend.CredentialResultBody{
			ID:     params.ID,
			Status: backend.StatusNotFound,
		})
	}

	newest := history[len(history)-1]
	status := backend.StatusValid
	if newest.req.Operation() == model.OpRevoke {
		status = backend.StatusDeactivated
	}

	txs := make([]backend.ResultTransaction, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		e := history[i]
		txs[len(history)-1-i] = backend.ResultTransaction{
			Txid:      e.txid,
			Timestamp: e.timestamp,
			Operation: json.RawMessage(e.envelope),
		}
	}

	return backend.BuildCredentialResultJSON(&backend.CredentialResultBody{
		ID:           params.ID,
		Status:       status,
		Transactions: txs,
	})
}

type listCredentialsParams struct {
	DID   model.DID `json:"did"`
	Skip  int       `json:"skip"`
	Limit int       `json:"limit"`
}

// listCredentials returns the DIDURLs of credentials currently declared
// (and not revoked) whose issuer or subject is params.DID, newest-declared
// first, honoring skip/limit pagination.
func (l *Ledger) listCredentials(req *backend.RPCRequest) ([]byte, error) {
	var params listCredentialsParams
	if err := backend.ParseRPCRequestParams(req, &params); err != nil {
		return nil, err
	}

	latest := make(map[model.DIDURL]*credEntry)
	var order []model.DIDURL
	for _, e := range l.credEntries {
		if _, seen := latest[e.target]; !seen {
			order = append(order, e.target)
		}
		latest[e.target] = e
	}

	var ids []model.DIDURL
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		e := latest[id]
		if e.req.Operation() == model.OpRevoke {
			continue
		}
		if e.req.Credential == nil {
			continue
		}
		if e.req.Credential.Issuer != params.DID && e.req.Credential.Subject.ID.DID() != params.DID {
			continue
		}
		ids = append(ids, id)
	}

	if params.Skip > 0 {
		if params.Skip >= len(ids) {
			ids = nil
		} else {
			ids = ids[params.Skip:]
		}
	}
	if params.Limit > 0 && params.Limit < len(ids) {
		ids = ids[:params.Limit]
	}
	if ids == nil {
		ids = []model.DIDURL{}
	}

	return json.Marshal(ids)
}
