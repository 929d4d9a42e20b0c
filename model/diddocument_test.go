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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piprate/diddock/errs"
	"github.com/piprate/diddock/model"
)

func newPrimitiveDocument(t *testing.T) (*model.DIDDocument, model.DIDURL, *model.PrivateKey) {
	t.Helper()

	priv, err := model.GenerateKeyPair()
	require.NoError(t, err)

	subject := model.BuildDID(model.DefaultMethod, model.Hash160(priv.PubKeyBytes()))
	keyID := model.BuildDIDURL(subject, "primary")

	doc := &model.DIDDocument{
		Subject: subject,
		PublicKeys: []*model.PublicKey{
			{ID: keyID, Controller: subject, Type: model.KeyType, PublicKeyBase58: model.EncodeBase58(priv.PubKeyBytes())},
		},
		Authentication: []model.DIDURL{keyID},
	}
	return doc, keyID, priv
}

func TestDIDDocument_Validate_PrimitiveOK(t *testing.T) {
	doc, _, _ := newPrimitiveDocument(t)
	assert.NoError(t, doc.Validate())
	assert.True(t, doc.IsPrimitive())
	assert.False(t, doc.IsCustomized())
}

func TestDIDDocument_Validate_RejectsMissingSubject(t *testing.T) {
	doc, _, _ := newPrimitiveDocument(t)
	doc.Subject = ""
	assert.Error(t, doc.Validate())
}

func TestDIDDocument_Validate_RejectsUnknownAuthenticationKey(t *testing.T) {
	doc, _, _ := newPrimitiveDocument(t)
	doc.Authentication = append(doc.Authentication, model.BuildDIDURL(doc.Subject, "ghost"))
	err := doc.Validate()
	require.Error(t, err)
	assert.True(t, errs.KindIs(err, errs.MalformedRequest))
}

func TestDIDDocument_Validate_CustomizedRequiresValidMultisig(t *testing.T) {
	doc, _, _ := newPrimitiveDocument(t)
	doc.Controllers = []model.DID{model.BuildDID(model.DefaultMethod, "controller1")}
	doc.MultisigM = 0
	assert.Error(t, doc.Validate())

	doc.MultisigM = 2 // exceeds controller count
	assert.Error(t, doc.Validate())

	doc.MultisigM = 1
	assert.NoError(t, doc.Validate())
}

func TestDIDDocument_SignAndVerifyProofs(t *testing.T) {
	doc, keyID, priv := newPrimitiveDocument(t)
	require.NoError(t, doc.Sign(keyID, priv, time.Unix(1700000000, 0)))
	require.Len(t, doc.Proofs, 1)

	verified, err := doc.VerifyProofs(func(creator model.DIDURL) *model.PublicKey {
		return doc.PublicKeyByID(creator)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, verified)
}

func TestDIDDocument_VerifyProofs_FailsOnTamperedPayload(t *testing.T) {
	doc, keyID, priv := newPrimitiveDocument(t)
	require.NoError(t, doc.Sign(keyID, priv, time.Unix(1700000000, 0)))

	doc.Services = append(doc.Services, &model.Service{ID: model.BuildDIDURL(doc.Subject, "svc"), Type: "test", ServiceEndpoint: "https://example.com"})

	verified, err := doc.VerifyProofs(func(creator model.DIDURL) *model.PublicKey {
		return doc.PublicKeyByID(creator)
	})
	require.NoError(t, err)
	assert.Equal(t, 0, verified)
}

func TestDIDDocument_CanonicalPayload_ExcludesProofsAndMetadata(t *testing.T) {
	doc, keyID, priv := newPrimitiveDocument(t)
	before, err := doc.CanonicalPayload()
	require.NoError(t, err)

	require.NoError(t, doc.Sign(keyID, priv, time.Unix(1700000000, 0)))
	doc.Metadata = &model.DIDDocumentMetadata{Txid: "abc"}

	after, err := doc.CanonicalPayload()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
