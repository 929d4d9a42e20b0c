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

// Package adapter defines the Transport contract (spec §6) binding the
// backend façade to a ledger — the dummy in-memory replica used for tests
// and dry runs, or a real JSON-RPC endpoint — plus a constructor registry
// so either can be selected by name at configuration time, the way the
// teacher wires its ledger connectors (ledger/registry.go).
package adapter

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Transport is the synchronous callback contract spec §6 describes:
// submit a signed envelope, or resolve a JSON-RPC request. Both calls are
// blocking; ∅/false signals failure.
type Transport interface {
	// CreateTransaction submits a signed request envelope (payloadJSON) to
	// the ledger, returning false if it was rejected by the admission
	// rules. memo is a free-form annotation the dummy adapter ignores and
	// a real RPC transport might log or forward.
	CreateTransaction(payloadJSON, memo string) bool
	// Resolve submits a did_resolveDID / did_resolveCredential /
	// did_listCredentials JSON-RPC request and returns the raw response
	// body, or ("", false) on transport failure.
	Resolve(requestJSON string) (string, bool)
}

// Config carries the adapter-type-specific parameters read from the
// backend/CLI configuration (spec SPEC_FULL §9's koanf-backed config).
type Config struct {
	Type   string
	Params map[string]any
}

type constructor func(cfg *Config) (Transport, error)

var constructors = make(map[string]constructor)

// Register installs a named adapter constructor. Adapter packages call
// this from their init(), mirroring ledger.Register.
func Register(adapterType string, ctor constructor) {
	if _, ok := constructors[adapterType]; ok {
		panic("adapter constructor already registered for type: " + adapterType)
	}
	constructors[adapterType] = ctor
}

// Create builds a Transport from cfg, dispatching on cfg.Type.
func Create(cfg *Config) (Transport, error) {
	log.Info().Str("type", cfg.Type).Msg("Creating ledger transport")

	ctor, ok := constructors[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("adapter %q not known or loaded", cfg.Type)
	}
	return ctor(cfg)
}
