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

package model

import (
	"github.com/piprate/diddock/utils/jsonw"
)

// Canonicalize produces the normalized byte stream used as signing input:
// struct fields in their declared order (what sonic/encoding/json already
// do — this is not a generic key-sort canonicalizer), no insignificant
// whitespace, and values encoded through the same fixed numeric formatting
// sonic uses everywhere else in this module. Any []any/map[string]any
// member not backed by a declared struct field (credential claims,
// service endpoints) falls back to alphabetic key order, which
// utils/jsonw's Marshal produces by running sonic with map-key sorting on.
//
// Canonicalize is a fixed point: Canonicalize(x) where x was itself
// produced by unmarshalling a Canonicalize output of the same type yields
// byte-identical output.
func Canonicalize(v any) ([]byte, error) {
	return jsonw.Marshal(v)
}

// Compact produces the transport serialization used for the wire form of
// envelopes and RPC payloads. For this module the transport and signing
// encodings coincide (both are sonic's compact, deterministic output);
// Compact and Canonicalize are kept as distinct entry points because the
// spec treats them as two modes of one writer, and a future wire format
// change (e.g. pretty-printing for CLI display) should only touch Compact.
func Compact(v any) ([]byte, error) {
	return jsonw.Marshal(v)
}

// Unmarshal parses JSON into v using the same JSON engine (sonic) used for
// Canonicalize/Compact, so parse-then-normalize round trips stay exact.
func Unmarshal(data []byte, v any) error {
	return jsonw.Unmarshal(data, v)
}
