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

package didsdk_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piprate/diddock/adapter/dummy"
	"github.com/piprate/diddock/didsdk"
	"github.com/piprate/diddock/errs"
	"github.com/piprate/diddock/mnemonic"
	"github.com/piprate/diddock/model"
)

// memStore is an in-memory store.KeyStore, standing in for store/fs in
// tests that don't need on-disk persistence.
type memStore struct {
	keys map[model.DIDURL][]byte
	docs map[model.DID]*model.DIDDocument
	meta map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		keys: map[model.DIDURL][]byte{},
		docs: map[model.DID]*model.DIDDocument{},
		meta: map[string]string{},
	}
}

func (s *memStore) LoadPrivateKey(id model.DIDURL, _ string) ([]byte, error) {
	raw, ok := s.keys[id]
	if !ok {
		return nil, errs.New(errs.NotFound, "no key for "+id.String())
	}
	return raw, nil
}

func (s *memStore) StorePrivateKey(id model.DIDURL, _ string, raw []byte) error {
	s.keys[id] = raw
	return nil
}

func (s *memStore) LoadDID(did model.DID) (*model.DIDDocument, error) {
	doc, ok := s.docs[did]
	if !ok {
		return nil, errs.New(errs.NotFound, "no document for "+did.String())
	}
	return doc, nil
}

func (s *memStore) StoreDID(doc *model.DIDDocument) error {
	s.docs[doc.Subject] = doc
	return nil
}

func (s *memStore) GetMetadata(did model.DID, key string) (string, bool) {
	v, ok := s.meta[did.String()+"/"+key]
	return v, ok
}

func (s *memStore) SetMetadata(did model.DID, key, value string) error {
	s.meta[did.String()+"/"+key] = value
	return nil
}

func (s *memStore) putKey(id model.DIDURL, priv *model.PrivateKey) {
	s.keys[id] = priv.D.D.Bytes()
}

func newTestBackend(t *testing.T, l *dummy.Ledger) (*didsdk.Backend, *memStore) {
	t.Helper()
	st := newMemStore()
	b, err := didsdk.NewBackend(l, st, "", t.TempDir(), time.Minute)
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b, st
}

func primitiveDoc(subject model.DID, keyID model.DIDURL, pub []byte) *model.DIDDocument {
	return &model.DIDDocument{
		Subject: subject,
		PublicKeys: []*model.PublicKey{
			{ID: keyID, Controller: subject, Type: model.KeyType, PublicKeyBase58: model.EncodeBase58(pub)},
		},
		Authentication: []model.DIDURL{keyID},
	}
}

// Scenario 1: Create → Resolve.
func TestBackend_CreateThenResolve(t *testing.T) {
	priv, err := mnemonic.DeriveKeyPair(
		"advance duty suspect finish space matter squeeze elephant twenty over stick shine",
		mnemonic.DefaultPath,
	)
	require.NoError(t, err)

	subject := model.BuildDID(model.DefaultMethod, model.Hash160(priv.PubKeyBytes()))
	keyID := model.BuildDIDURL(subject, "primary")

	doc := primitiveDoc(subject, keyID, priv.PubKeyBytes())
	require.NoError(t, doc.Sign(keyID, priv, time.Unix(1700000000, 0)))
	signatureBefore := doc.Proofs[0].SignatureValue

	l := dummy.NewLedger()
	b, st := newTestBackend(t, l)
	st.putKey(keyID, priv)

	published, err := b.CreateDID(doc, keyID)
	require.NoError(t, err)
	require.NotEmpty(t, published.Metadata.Txid)

	resolved, status, err := b.Resolve(subject, true)
	require.NoError(t, err)
	assert.Equal(t, model.DIDStatusValid, status)
	require.NotNil(t, resolved)
	require.Len(t, resolved.Proofs, 1)
	assert.Equal(t, signatureBefore, resolved.Proofs[0].SignatureValue)
}

// Scenario 2: Create → Update → Update → Biography.
func TestBackend_CreateUpdateUpdate_Biography(t *testing.T) {
	priv, err := model.GenerateKeyPair()
	require.NoError(t, err)
	subject := model.BuildDID(model.DefaultMethod, model.Hash160(priv.PubKeyBytes()))
	keyID := model.BuildDIDURL(subject, "primary")

	doc := primitiveDoc(subject, keyID, priv.PubKeyBytes())
	require.NoError(t, doc.Sign(keyID, priv, time.Unix(1700000000, 0)))
	sig1 := doc.Proofs[0].SignatureValue

	l := dummy.NewLedger()
	b, st := newTestBackend(t, l)
	st.putKey(keyID, priv)

	published, err := b.CreateDID(doc, keyID)
	require.NoError(t, err)

	key1ID := model.BuildDIDURL(subject, "key1")
	key1Priv, err := model.GenerateKeyPair()
	require.NoError(t, err)
	st.putKey(key1ID, key1Priv)

	update1 := *published
	update1.PublicKeys = append(append([]*model.PublicKey{}, published.PublicKeys...), &model.PublicKey{
		ID: key1ID, Controller: subject, Type: model.KeyType, PublicKeyBase58: model.EncodeBase58(key1Priv.PubKeyBytes()),
	})
	update1.Proofs = nil
	require.NoError(t, update1.Sign(keyID, priv, time.Unix(1700000100, 0)))
	sig2 := update1.Proofs[0].SignatureValue

	published2, err := b.UpdateDID(&update1, keyID)
	require.NoError(t, err)

	key2ID := model.BuildDIDURL(subject, "key2")
	key2Priv, err := model.GenerateKeyPair()
	require.NoError(t, err)
	st.putKey(key2ID, key2Priv)

	update2 := *published2
	update2.PublicKeys = append(append([]*model.PublicKey{}, published2.PublicKeys...), &model.PublicKey{
		ID: key2ID, Controller: subject, Type: model.KeyType, PublicKeyBase58: model.EncodeBase58(key2Priv.PubKeyBytes()),
	})
	update2.Proofs = nil
	require.NoError(t, update2.Sign(keyID, priv, time.Unix(1700000200, 0)))
	sig3 := update2.Proofs[0].SignatureValue

	_, err = b.UpdateDID(&update2, keyID)
	require.NoError(t, err)

	bio, err := b.ResolveBiography(subject)
	require.NoError(t, err)
	require.Len(t, bio.Transactions, 3)

	signs := []string{sig1, sig2, sig3}
	for i := 0; i < 3; i++ {
		tx := bio.GetTransactionByIndex(i)
		require.NotNil(t, tx)
		require.NotNil(t, tx.Request.Document)
		require.NotEmpty(t, tx.Request.Document.Proofs)
		assert.Equal(t, signs[2-i], tx.Request.Document.Proofs[0].SignatureValue)
	}
}

// Scenario 3: wrong previousTxid is rejected.
func TestBackend_Update_WrongPreviousTxid_Rejected(t *testing.T) {
	priv, err := model.GenerateKeyPair()
	require.NoError(t, err)
	subject := model.BuildDID(model.DefaultMethod, model.Hash160(priv.PubKeyBytes()))
	keyID := model.BuildDIDURL(subject, "primary")

	doc := primitiveDoc(subject, keyID, priv.PubKeyBytes())
	require.NoError(t, doc.Sign(keyID, priv, time.Unix(1700000000, 0)))

	l := dummy.NewLedger()
	b, st := newTestBackend(t, l)
	st.putKey(keyID, priv)

	published, err := b.CreateDID(doc, keyID)
	require.NoError(t, err)

	stale := *published
	stale.Metadata = &model.DIDDocumentMetadata{Txid: "not-the-real-txid"}
	stale.Proofs = nil
	require.NoError(t, stale.Sign(keyID, priv, time.Unix(1700000100, 0)))

	_, err = b.UpdateDID(&stale, keyID)
	require.Error(t, err)
	assert.True(t, errs.KindIs(err, errs.TransactionError))
}

// Scenario 4: deactivate after update.
func TestBackend_DeactivateAfterUpdate(t *testing.T) {
	priv, err := model.GenerateKeyPair()
	require.NoError(t, err)
	subject := model.BuildDID(model.DefaultMethod, model.Hash160(priv.PubKeyBytes()))
	keyID := model.BuildDIDURL(subject, "primary")

	doc := primitiveDoc(subject, keyID, priv.PubKeyBytes())
	require.NoError(t, doc.Sign(keyID, priv, time.Unix(1700000000, 0)))

	l := dummy.NewLedger()
	b, st := newTestBackend(t, l)
	st.putKey(keyID, priv)

	published, err := b.CreateDID(doc, keyID)
	require.NoError(t, err)

	update := *published
	update.Proofs = nil
	require.NoError(t, update.Sign(keyID, priv, time.Unix(1700000100, 0)))
	_, err = b.UpdateDID(&update, keyID)
	require.NoError(t, err)

	require.NoError(t, b.DeactivateDID(subject, keyID))

	_, status, err := b.Resolve(subject, true)
	require.NoError(t, err)
	assert.Equal(t, model.DIDStatusDeactivated, status)
}

// Scenario 5: authorization-based deactivation.
func TestBackend_AuthorizationBasedDeactivation(t *testing.T) {
	privA, err := model.GenerateKeyPair()
	require.NoError(t, err)
	subjectA := model.BuildDID(model.DefaultMethod, model.Hash160(privA.PubKeyBytes()))
	keyA := model.BuildDIDURL(subjectA, "primary")

	privB, err := model.GenerateKeyPair()
	require.NoError(t, err)
	subjectB := model.BuildDID(model.DefaultMethod, model.Hash160(privB.PubKeyBytes()))
	keyB := model.BuildDIDURL(subjectB, "primary")

	l := dummy.NewLedger()
	b, st := newTestBackend(t, l)
	st.putKey(keyA, privA)
	st.putKey(keyB, privB)

	docB := primitiveDoc(subjectB, keyB, privB.PubKeyBytes())
	require.NoError(t, docB.Sign(keyB, privB, time.Unix(1700000000, 0)))
	_, err = b.CreateDID(docB, keyB)
	require.NoError(t, err)

	docA := primitiveDoc(subjectA, keyA, privA.PubKeyBytes())
	docA.Authorization = []model.DIDURL{keyB}
	require.NoError(t, docA.Sign(keyA, privA, time.Unix(1700000000, 0)))
	_, err = b.CreateDID(docA, keyA)
	require.NoError(t, err)

	require.NoError(t, b.DeactivateDID(subjectA, keyB))

	_, status, err := b.Resolve(subjectA, true)
	require.NoError(t, err)
	assert.Equal(t, model.DIDStatusDeactivated, status)
}

// Scenario 6: customized DID transfer.
func TestBackend_CustomizedDIDTransfer(t *testing.T) {
	privX, err := model.GenerateKeyPair()
	require.NoError(t, err)
	controllerX := model.BuildDID(model.DefaultMethod, model.Hash160(privX.PubKeyBytes()))
	keyX := model.BuildDIDURL(controllerX, "primary")

	privY, err := model.GenerateKeyPair()
	require.NoError(t, err)
	controllerY := model.BuildDID(model.DefaultMethod, model.Hash160(privY.PubKeyBytes()))

	l := dummy.NewLedger()
	b, st := newTestBackend(t, l)
	st.putKey(keyX, privX)

	docX := primitiveDoc(controllerX, keyX, privX.PubKeyBytes())
	require.NoError(t, docX.Sign(keyX, privX, time.Unix(1700000000, 0)))
	_, err = b.CreateDID(docX, keyX)
	require.NoError(t, err)

	subjectC := model.BuildDID(model.DefaultMethod, "customized-c")
	keyC := model.BuildDIDURL(subjectC, "primary")
	privC, err := model.GenerateKeyPair()
	require.NoError(t, err)
	st.putKey(keyC, privC)

	docC := &model.DIDDocument{
		Subject:     subjectC,
		Controllers: []model.DID{controllerX},
		MultisigM:   1,
		PublicKeys: []*model.PublicKey{
			{ID: keyC, Controller: controllerX, Type: model.KeyType, PublicKeyBase58: model.EncodeBase58(privC.PubKeyBytes())},
		},
		Authentication: []model.DIDURL{keyC},
	}
	require.NoError(t, docC.Sign(keyC, privC, time.Unix(1700000000, 0)))
	require.NoError(t, docC.Sign(keyX, privX, time.Unix(1700000000, 0)))

	publishedC, err := b.CreateDID(docC, keyC)
	require.NoError(t, err)

	ticket := &model.TransferTicket{ID: subjectC, To: controllerY, Txid: publishedC.Metadata.Txid}
	require.NoError(t, ticket.Sign(keyX, privX, 1700000100))

	newDoc := *publishedC
	newDoc.Controllers = []model.DID{controllerY}
	newDoc.PublicKeys = []*model.PublicKey{
		{ID: keyC, Controller: controllerY, Type: model.KeyType, PublicKeyBase58: model.EncodeBase58(privC.PubKeyBytes())},
	}
	newDoc.Proofs = nil
	require.NoError(t, newDoc.Sign(keyC, privC, time.Unix(1700000100, 0)))

	_, err = b.TransferDID(&newDoc, ticket, keyC)
	require.NoError(t, err)

	resolved, status, err := b.Resolve(subjectC, true)
	require.NoError(t, err)
	assert.Equal(t, model.DIDStatusValid, status)
	require.NotNil(t, resolved)
	assert.Equal(t, []model.DID{controllerY}, resolved.Controllers)
}

func TestBackend_CustomizedDIDTransfer_NonControllerTicketRejected(t *testing.T) {
	privX, err := model.GenerateKeyPair()
	require.NoError(t, err)
	controllerX := model.BuildDID(model.DefaultMethod, model.Hash160(privX.PubKeyBytes()))
	keyX := model.BuildDIDURL(controllerX, "primary")

	privOutsider, err := model.GenerateKeyPair()
	require.NoError(t, err)

	l := dummy.NewLedger()
	b, st := newTestBackend(t, l)
	st.putKey(keyX, privX)

	docX := primitiveDoc(controllerX, keyX, privX.PubKeyBytes())
	require.NoError(t, docX.Sign(keyX, privX, time.Unix(1700000000, 0)))
	_, err = b.CreateDID(docX, keyX)
	require.NoError(t, err)

	subjectC := model.BuildDID(model.DefaultMethod, "customized-d")
	keyC := model.BuildDIDURL(subjectC, "primary")
	privC, err := model.GenerateKeyPair()
	require.NoError(t, err)
	st.putKey(keyC, privC)

	docC := &model.DIDDocument{
		Subject:     subjectC,
		Controllers: []model.DID{controllerX},
		MultisigM:   1,
		PublicKeys: []*model.PublicKey{
			{ID: keyC, Controller: controllerX, Type: model.KeyType, PublicKeyBase58: model.EncodeBase58(privC.PubKeyBytes())},
		},
		Authentication: []model.DIDURL{keyC},
	}
	require.NoError(t, docC.Sign(keyC, privC, time.Unix(1700000000, 0)))
	require.NoError(t, docC.Sign(keyX, privX, time.Unix(1700000000, 0)))

	publishedC, err := b.CreateDID(docC, keyC)
	require.NoError(t, err)

	controllerY := model.BuildDID(model.DefaultMethod, "newcontroller")
	ticket := &model.TransferTicket{ID: subjectC, To: controllerY, Txid: publishedC.Metadata.Txid}
	require.NoError(t, ticket.Sign(model.BuildDIDURL(model.BuildDID(model.DefaultMethod, model.Hash160(privOutsider.PubKeyBytes())), "primary"), privOutsider, 1700000100))

	newDoc := *publishedC
	newDoc.Controllers = []model.DID{controllerY}
	newDoc.PublicKeys = []*model.PublicKey{
		{ID: keyC, Controller: controllerY, Type: model.KeyType, PublicKeyBase58: model.EncodeBase58(privC.PubKeyBytes())},
	}
	newDoc.Proofs = nil
	require.NoError(t, newDoc.Sign(keyC, privC, time.Unix(1700000100, 0)))

	_, err = b.TransferDID(&newDoc, ticket, keyC)
	require.Error(t, err)
	assert.True(t, errs.KindIs(err, errs.TransactionError))
}

// publish() always re-resolves the full biography to learn the
// chain-assigned txid after a create/update. A plain Resolve(force=false)
// immediately afterwards must still succeed from the cache the update left
// behind, rather than tripping over a biography-shaped cache entry.
func TestBackend_CreateUpdateThenCachedResolve(t *testing.T) {
	priv, err := model.GenerateKeyPair()
	require.NoError(t, err)
	subject := model.BuildDID(model.DefaultMethod, model.Hash160(priv.PubKeyBytes()))
	keyID := model.BuildDIDURL(subject, "primary")

	doc := primitiveDoc(subject, keyID, priv.PubKeyBytes())
	require.NoError(t, doc.Sign(keyID, priv, time.Unix(1700000000, 0)))

	l := dummy.NewLedger()
	b, st := newTestBackend(t, l)
	st.putKey(keyID, priv)

	published, err := b.CreateDID(doc, keyID)
	require.NoError(t, err)

	key1ID := model.BuildDIDURL(subject, "key1")
	key1Priv, err := model.GenerateKeyPair()
	require.NoError(t, err)
	st.putKey(key1ID, key1Priv)

	update := *published
	update.PublicKeys = append(append([]*model.PublicKey{}, published.PublicKeys...), &model.PublicKey{
		ID: key1ID, Controller: subject, Type: model.KeyType, PublicKeyBase58: model.EncodeBase58(key1Priv.PubKeyBytes()),
	})
	update.Proofs = nil
	require.NoError(t, update.Sign(keyID, priv, time.Unix(1700000100, 0)))

	_, err = b.UpdateDID(&update, keyID)
	require.NoError(t, err)

	resolved, status, err := b.Resolve(subject, false)
	require.NoError(t, err)
	assert.Equal(t, model.DIDStatusValid, status)
	require.NotNil(t, resolved)
	require.Len(t, resolved.Proofs, 1)
	assert.Equal(t, update.Proofs[0].SignatureValue, resolved.Proofs[0].SignatureValue)
}
