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

package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/piprate/diddock/model"
)

func TestOperationType_StringRoundTrip(t *testing.T) {
	ops := []model.OperationType{
		model.OpCreate, model.OpUpdate, model.OpTransfer, model.OpDeactivate,
		model.OpDeclare, model.OpRevoke,
	}
	for _, op := range ops {
		assert.Equal(t, op, model.ParseOperationType(op.String()))
	}
}

func TestParseOperationType_UnknownString(t *testing.T) {
	assert.Equal(t, model.OpUnknown, model.ParseOperationType("bogus"))
	assert.Equal(t, "unknown", model.OpUnknown.String())
}

func TestOperationType_IsDIDOperation(t *testing.T) {
	assert.True(t, model.OpCreate.IsDIDOperation())
	assert.True(t, model.OpUpdate.IsDIDOperation())
	assert.True(t, model.OpTransfer.IsDIDOperation())
	assert.True(t, model.OpDeactivate.IsDIDOperation())
	assert.False(t, model.OpDeclare.IsDIDOperation())
	assert.False(t, model.OpRevoke.IsDIDOperation())
	assert.False(t, model.OpUnknown.IsDIDOperation())
}

func TestOperationType_IsCredentialOperation(t *testing.T) {
	assert.True(t, model.OpDeclare.IsCredentialOperation())
	assert.True(t, model.OpRevoke.IsCredentialOperation())
	assert.False(t, model.OpCreate.IsCredentialOperation())
	assert.False(t, model.OpUnknown.IsCredentialOperation())
}

func TestRequestHeader_SigningInput_Concatenation(t *testing.T) {
	h := model.RequestHeader{
		Specification: model.Specification,
		Operation:     "create",
		PreviousTxid:  "tx1",
		Ticket:        "tkt",
	}
	got := h.SigningInput("payload1")
	want := model.Specification + "create" + "tx1" + "tkt" + "payload1"
	assert.Equal(t, want, string(got))
}

func TestRequestHeader_SigningInput_DiffersOnAnyFieldChange(t *testing.T) {
	base := model.RequestHeader{Specification: model.Specification, Operation: "create"}
	variant := model.RequestHeader{Specification: model.Specification, Operation: "update"}

	assert.NotEqual(t, base.SigningInput("p"), variant.SigningInput("p"))
	assert.NotEqual(t, base.SigningInput("p1"), base.SigningInput("p2"))
}

func TestDIDRequest_Operation(t *testing.T) {
	req := &model.DIDRequest{Header: model.RequestHeader{Operation: "update"}}
	assert.Equal(t, model.OpUpdate, req.Operation())
}

func TestCredentialRequest_Operation(t *testing.T) {
	req := &model.CredentialRequest{Header: model.RequestHeader{Operation: "revoke"}}
	assert.Equal(t, model.OpRevoke, req.Operation())
}
