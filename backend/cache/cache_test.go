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

package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piprate/diddock/backend/cache"
	"github.com/piprate/diddock/model"
)

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestCache_StoreThenLoad(t *testing.T) {
	c := newTestCache(t)

	key := cache.DIDKey(model.DID("did:elastos:abc"))
	require.NoError(t, c.Store(key, []byte(`{"status":0}`), time.Minute))

	value, found, err := c.Load(key, time.Minute)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"status":0}`, string(value))
}

func TestCache_MissOnUnknownKey(t *testing.T) {
	c := newTestCache(t)

	_, found, err := c.Load("nosuchkey", time.Minute)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_ExpiredEntryIsAMiss(t *testing.T) {
	c := newTestCache(t)

	key := cache.DIDKey(model.DID("did:elastos:abc"))
	require.NoError(t, c.Store(key, []byte(`{"status":0}`), time.Minute))

	time.Sleep(2 * time.Millisecond)
	_, found, err := c.Load(key, time.Millisecond)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_SurvivesReopenViaDiskTier(t *testing.T) {
	dir := t.TempDir()

	c1, err := cache.Open(dir)
	require.NoError(t, err)
	key := cache.DIDKey(model.DID("did:elastos:abc"))
	require.NoError(t, c1.Store(key, []byte(`{"status":0}`), time.Minute))
	c1.Close()

	c2, err := cache.Open(dir)
	require.NoError(t, err)
	defer c2.Close()

	value, found, err := c2.Load(key, time.Minute)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"status":0}`, string(value))
}

func TestCredentialKey_IncludesIssuerWhenSet(t *testing.T) {
	id := model.DIDURL("did:elastos:abc#primary")

	withoutIssuer := cache.CredentialKey(id, "")
	withIssuer := cache.CredentialKey(id, model.DID("did:elastos:issuer"))

	assert.NotEqual(t, withoutIssuer, withIssuer)
}
