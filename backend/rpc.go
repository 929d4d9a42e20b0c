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

	"github.com/google/uuid"

	"github.com/piprate/diddock/errs"
	"github.com/piprate/diddock/model"
)

// Method names exposed over the JSON-RPC transport (spec §6).
const (
	MethodResolveDID        = "did_resolveDID"
	MethodResolveCredential = "did_resolveCredential"
	MethodListCredentials   = "did_listCredentials"
)

// RPCRequest is the envelope every transport call sends, with a single
// positional parameter object, matching the shapes in spec §6.
type RPCRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	ID     string            `json:"id"`
}

// RPCError is the error member of an RPCResponse.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCResponse is the envelope every transport call returns.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
	ID      string          `json:"id"`
}

type resolveDIDParams struct {
	DID model.DID `json:"did"`
	All bool      `json:"all"`
}

type resolveCredentialParams struct {
	ID     model.DIDURL `json:"id"`
	Issuer model.DID    `json:"issuer,omitempty"`
}

type listCredentialsParams struct {
	DID   model.DID `json:"did"`
	Skip  int       `json:"skip"`
	Limit int       `json:"limit"`
}

func newNonce() string {
	return uuid.NewString()
}

// BuildResolveDIDRequest builds a did_resolveDID request; all=true
// requests the full ordered transaction history (used by resolveBiography).
func BuildResolveDIDRequest(did model.DID, all bool) (string, error) {
	return marshalRPCRequest(MethodResolveDID, resolveDIDParams{DID: did, All: all})
}

// BuildResolveCredentialRequest builds a did_resolveCredential request.
// issuer may be empty.
func BuildResolveCredentialRequest(id model.DIDURL, issuer model.DID) (string, error) {
	return marshalRPCRequest(MethodResolveCredential, resolveCredentialParams{ID: id, Issuer: issuer})
}

// BuildListCredentialsRequest builds a did_listCredentials request.
func BuildListCredentialsRequest(did model.DID, skip, limit int) (string, error) {
	return marshalRPCRequest(MethodListCredentials, listCredentialsParams{DID: did, Skip: skip, Limit: limit})
}

func marshalRPCRequest(method string, params any) (string, error) {
	paramBytes, err := model.Compact(params)
	if err != nil {
		return "", err
	}
	req := RPCRequest{
		Method: method,
		Params: []json.RawMessage{paramBytes},
		ID:     newNonce(),
	}
	out, err := model.Compact(req)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ParseRPCResponse parses the transport's raw response and extracts its
// result, translating a JSON-RPC error member into a typed ResolveError.
func ParseRPCResponse(raw string) (json.RawMessage, error) {
	var resp RPCResponse
	if err := model.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, errs.Wrap(errs.MalformedResolveResponse, "failed to parse RPC response envelope", err)
	}
	if resp.Error != nil {
		return nil, errs.New(errs.ResolveError, resp.Error.Message)
	}
	if resp.Result == nil || string(resp.Result) == "null" {
		return nil, nil
	}
	return resp.Result, nil
}

// ParseRPCRequestParams parses req's single positional parameter object
// into dest, the way the dummy adapter does when dispatching on method.
func ParseRPCRequestParams(req *RPCRequest, dest any) error {
	if len(req.Params) == 0 {
		return errs.New(errs.MalformedRequest, "RPC request has no parameters")
	}
	return model.Unmarshal(req.Params[0], dest)
}
