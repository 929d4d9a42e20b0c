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

// Package rpc is the real ledger adapter.Transport: it submits envelopes and
// resolve queries to an external registry's JSON-RPC endpoint over HTTP,
// the way sdk/httpsecure.Client talks to a MetaLocker node, stripped down to
// the single unauthenticated POST this method's ledger calls need.
package rpc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/piprate/diddock/adapter"
	"github.com/piprate/diddock/utils/jsonw"
)

const defaultTimeout = 30 * time.Second

func init() {
	adapter.Register("rpc", newTransport)
}

// Transport submits JSON-RPC requests to a fixed endpoint URL over HTTP.
type Transport struct {
	endpoint   string
	httpClient *http.Client
}

func newTransport(cfg *adapter.Config) (adapter.Transport, error) {
	endpoint, _ := cfg.Params["endpoint"].(string)
	if endpoint == "" {
		return nil, fmt.Errorf("rpc adapter requires a non-empty 'endpoint' parameter")
	}

	timeout := defaultTimeout
	if ms, ok := cfg.Params["timeoutMs"].(int); ok && ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}

	return &Transport{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// CreateTransaction posts the envelope to the registry endpoint and reports
// whether it was admitted. memo is attached as a header for operator-side
// correlation; the registry itself may ignore it.
func (t *Transport) CreateTransaction(payloadJSON, memo string) bool {
	resp, err := t.post(context.Background(), payloadJSON, memo)
	if err != nil {
		log.Error().Err(err).Msg("failed to submit transaction to ledger")
		return false
	}
	return resp
}

// Resolve posts a did_resolveDID / did_resolveCredential / did_listCredentials
// request and returns the raw JSON-RPC response body.
func (t *Transport) Resolve(requestJSON string) (string, bool) {
	body, err := t.send(context.Background(), requestJSON, "")
	if err != nil {
		log.Error().Err(err).Msg("failed to resolve against ledger")
		return "", false
	}
	return body, true
}

type submitResult struct {
	Accepted bool `json:"accepted"`
}

func (t *Transport) post(ctx context.Context, requestJSON, memo string) (bool, error) {
	body, err := t.send(ctx, requestJSON, memo)
	if err != nil {
		return false, err
	}

	var res submitResult
	if err := jsonw.Unmarshal([]byte(body), &res); err != nil {
		return false, fmt.Errorf("malformed submit response: %w", err)
	}
	return res.Accepted, nil
}

func (t *Transport) send(ctx context.Context, requestJSON, memo string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewBufferString(requestJSON))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if memo != "" {
		req.Header.Set("X-Memo", memo)
	}

	log.Debug().Str("endpoint", t.endpoint).Msg("Sending ledger RPC request")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ledger RPC call failed with status %d: %s", resp.StatusCode, string(raw))
	}

	return string(raw), nil
}
