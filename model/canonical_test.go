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
	"github.com/stretchr/testify/require"

	"github.com/piprate/diddock/model"
)

type canonSample struct {
	B string         `json:"b"`
	A string         `json:"a"`
	M map[string]any `json:"m"`
}

func TestCanonicalize_IsDeterministic(t *testing.T) {
	v := canonSample{B: "two", A: "one", M: map[string]any{"z": 1, "a": 2}}

	out1, err := model.Canonicalize(v)
	require.NoError(t, err)
	out2, err := model.Canonicalize(v)
	require.NoError(t, err)

	assert.Equal(t, out1, out2)
}

func TestCanonicalize_IsFixedPoint(t *testing.T) {
	v := canonSample{B: "two", A: "one", M: map[string]any{"z": 1, "a": 2}}

	first, err := model.Canonicalize(v)
	require.NoError(t, err)

	var roundTripped canonSample
	require.NoError(t, model.Unmarshal(first, &roundTripped))

	second, err := model.Canonicalize(roundTripped)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCompact_MatchesCanonicalize(t *testing.T) {
	v := canonSample{B: "two", A: "one"}

	canon, err := model.Canonicalize(v)
	require.NoError(t, err)
	compact, err := model.Compact(v)
	require.NoError(t, err)

	assert.Equal(t, canon, compact)
}

func TestUnmarshal_RoundTrip(t *testing.T) {
	v := canonSample{B: "two", A: "one", M: map[string]any{"k": "v"}}

	data, err := model.Compact(v)
	require.NoError(t, err)

	var out canonSample
	require.NoError(t, model.Unmarshal(data, &out))
	assert.Equal(t, v.A, out.A)
	assert.Equal(t, v.B, out.B)
}
