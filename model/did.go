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
	"strings"

	"github.com/piprate/diddock/errs"
)

// DefaultMethod is the DID method prefix BuildDID uses when given an empty
// method.
const DefaultMethod = "example"

// DID is a method-qualified decentralised identifier: did:<method>:<id>.
// It is immutable and comparable by string equality on its canonical form.
type DID string

// ParseDID parses and validates s as a well-formed DID string.
func ParseDID(s string) (DID, error) {
	if s == "" {
		return "", errs.New(errs.InvalidArgs, "empty DID string")
	}
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[0] != "did" || parts[1] == "" || parts[2] == "" {
		return "", errs.New(errs.MalformedRequest, "malformed DID string: "+s)
	}
	return DID(s), nil
}

// Method returns the method segment of the DID ("example" in did:example:abc).
func (d DID) Method() string {
	parts := strings.SplitN(string(d), ":", 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// MethodSpecificID returns the id segment of the DID.
func (d DID) MethodSpecificID() string {
	parts := strings.SplitN(string(d), ":", 3)
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}

func (d DID) String() string {
	return string(d)
}

// IsEmpty reports whether d is the zero value.
func (d DID) IsEmpty() bool {
	return d == ""
}

// BuildDID constructs a DID from a method and method-specific id.
func BuildDID(method, id string) DID {
	if method == "" {
		method = DefaultMethod
	}
	return DID("did:" + method + ":" + id)
}

// DIDURL is a DID plus an optional path, query and fragment, used as an
// opaque key/service identifier. It is always rendered back out exactly as
// parsed, so it round-trips byte for byte.
type DIDURL string

// ParseDIDURL parses s into a DIDURL, validating that it at least carries a
// well-formed DID prefix.
func ParseDIDURL(s string) (DIDURL, error) {
	if s == "" {
		return "", errs.New(errs.InvalidArgs, "empty DIDURL string")
	}
	did, frag, _ := strings.Cut(s, "#")
	did, query, _ := strings.Cut(did, "?")
	did, _, _ = strings.Cut(did, "/")
	if _, err := ParseDID(did); err != nil {
		return "", errs.Wrap(errs.MalformedRequest, "malformed DIDURL: "+s, err)
	}
	_ = query
	_ = frag
	return DIDURL(s), nil
}

func (u DIDURL) String() string {
	return string(u)
}

// DID returns the DID component of the URL (everything before the first
// '/', '?' or '#').
func (u DIDURL) DID() DID {
	s := string(u)
	s, _, _ = strings.Cut(s, "#")
	s, _, _ = strings.Cut(s, "?")
	s, _, _ = strings.Cut(s, "/")
	return DID(s)
}

// Fragment returns the fragment component of the URL, without the '#', or
// "" if none is present.
func (u DIDURL) Fragment() string {
	_, frag, found := strings.Cut(string(u), "#")
	if !found {
		return ""
	}
	return frag
}

// BuildDIDURL appends a fragment to a DID to form a DIDURL, e.g. for key ids.
func BuildDIDURL(did DID, fragment string) DIDURL {
	if fragment == "" {
		return DIDURL(did)
	}
	return DIDURL(did.String() + "#" + fragment)
}
