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

package fs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piprate/diddock/errs"
	"github.com/piprate/diddock/model"
	"github.com/piprate/diddock/store"
	storefs "github.com/piprate/diddock/store/fs"
)

func newTestStore(t *testing.T) (*storefs.Store, string) {
	t.Helper()

	dir, err := os.MkdirTemp("", "keystore_")
	require.NoError(t, err)

	s, err := storefs.Open(filepath.Join(dir, "keys.bolt"))
	require.NoError(t, err)

	return s, dir
}

func TestStore_PrivateKeyRoundTrip(t *testing.T) {
	s, dir := newTestStore(t)
	defer os.RemoveAll(dir)
	defer s.Close()

	keyID := model.BuildDIDURL(model.BuildDID("example", "abc"), "primary")

	priv, err := model.GenerateKeyPair()
	require.NoError(t, err)
	raw := store.EncodePrivateKey(priv)

	err = s.StorePrivateKey(keyID, "correct horse battery staple", raw)
	require.NoError(t, err)

	loaded, err := s.LoadPrivateKey(keyID, "correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, raw, loaded)

	restored, err := store.DecodePrivateKey(loaded)
	require.NoError(t, err)
	assert.Equal(t, priv.PubKeyBytes(), restored.PubKeyBytes())
}

func TestStore_PrivateKeyWrongPassphrase(t *testing.T) {
	s, dir := newTestStore(t)
	defer os.RemoveAll(dir)
	defer s.Close()

	keyID := model.BuildDIDURL(model.BuildDID("example", "abc"), "primary")

	priv, err := model.GenerateKeyPair()
	require.NoError(t, err)

	require.NoError(t, s.StorePrivateKey(keyID, "right-pass", store.EncodePrivateKey(priv)))

	_, err = s.LoadPrivateKey(keyID, "wrong-pass")
	require.Error(t, err)
	assert.True(t, errs.KindIs(err, errs.IOError))
}

func TestStore_PrivateKeyNotFound(t *testing.T) {
	s, dir := newTestStore(t)
	defer os.RemoveAll(dir)
	defer s.Close()

	_, err := s.LoadPrivateKey(model.BuildDIDURL(model.BuildDID("example", "missing"), "primary"), "pass")
	require.Error(t, err)
	assert.True(t, errs.KindIs(err, errs.NotFound))
}

func TestStore_DIDDocumentRoundTrip(t *testing.T) {
	s, dir := newTestStore(t)
	defer os.RemoveAll(dir)
	defer s.Close()

	subject := model.BuildDID("example", "doc1")
	doc := &model.DIDDocument{
		Subject: subject,
		PublicKeys: []*model.PublicKey{
			{
				ID:              model.BuildDIDURL(subject, "primary"),
				Controller:      subject,
				Type:            model.KeyType,
				PublicKeyBase58: "abc",
			},
		},
		Authentication: []model.DIDURL{model.BuildDIDURL(subject, "primary")},
	}

	require.NoError(t, s.StoreDID(doc))

	loaded, err := s.LoadDID(subject)
	require.NoError(t, err)
	assert.Equal(t, subject, loaded.Subject)
	assert.Len(t, loaded.PublicKeys, 1)
}

func TestStore_Metadata(t *testing.T) {
	s, dir := newTestStore(t)
	defer os.RemoveAll(dir)
	defer s.Close()

	subject := model.BuildDID("example", "meta1")

	_, found := s.GetMetadata(subject, "alias")
	assert.False(t, found)

	require.NoError(t, s.SetMetadata(subject, "alias", "my-identity"))

	v, found := s.GetMetadata(subject, "alias")
	require.True(t, found)
	assert.Equal(t, "my-identity", v)
}
