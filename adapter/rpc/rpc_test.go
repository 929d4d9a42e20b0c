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

package rpc_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piprate/diddock/adapter"
	_ "github.com/piprate/diddock/adapter/rpc"
)

func newEndpoint(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestTransport_CreateTransaction_Accepted(t *testing.T) {
	endpoint := newEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "envelope-body", string(body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accepted":true}`))
	})

	transport, err := adapter.Create(&adapter.Config{Type: "rpc", Params: map[string]any{"endpoint": endpoint}})
	require.NoError(t, err)

	assert.True(t, transport.CreateTransaction("envelope-body", "memo"))
}

func TestTransport_CreateTransaction_Rejected(t *testing.T) {
	endpoint := newEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"accepted":false}`))
	})

	transport, err := adapter.Create(&adapter.Config{Type: "rpc", Params: map[string]any{"endpoint": endpoint}})
	require.NoError(t, err)

	assert.False(t, transport.CreateTransaction("envelope-body", ""))
}

func TestTransport_CreateTransaction_NonOKStatusFails(t *testing.T) {
	endpoint := newEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})

	transport, err := adapter.Create(&adapter.Config{Type: "rpc", Params: map[string]any{"endpoint": endpoint}})
	require.NoError(t, err)

	assert.False(t, transport.CreateTransaction("envelope-body", ""))
}

func TestTransport_Resolve_ReturnsRawBody(t *testing.T) {
	endpoint := newEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","result":{"status":0},"id":"1"}`))
	})

	transport, err := adapter.Create(&adapter.Config{Type: "rpc", Params: map[string]any{"endpoint": endpoint}})
	require.NoError(t, err)

	body, ok := transport.Resolve(`{"method":"did_resolveDID"}`)
	require.True(t, ok)
	assert.JSONEq(t, `{"jsonrpc":"2.0","result":{"status":0},"id":"1"}`, body)
}

func TestTransport_Resolve_TransportFailureReturnsFalse(t *testing.T) {
	transport, err := adapter.Create(&adapter.Config{Type: "rpc", Params: map[string]any{"endpoint": "http://127.0.0.1:0"}})
	require.NoError(t, err)

	_, ok := transport.Resolve(`{"method":"did_resolveDID"}`)
	assert.False(t, ok)
}

func TestNewTransport_RequiresEndpoint(t *testing.T) {
	_, err := adapter.Create(&adapter.Config{Type: "rpc", Params: map[string]any{}})
	assert.Error(t, err)
}
