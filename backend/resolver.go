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

package backend

import (
	"time"

	"github.com/piprate/diddock/adapter"
	"github.com/piprate/diddock/backend/cache"
	"github.com/piprate/diddock/errs"
	"github.com/piprate/diddock/model"
)

// LocalDIDHandler lets a caller shortcut resolution for DIDs it can answer
// without consulting the transport — e.g. documents the caller itself
// just published and already holds. Returning found=false falls through
// to the normal cache/transport path.
type LocalDIDHandler func(did model.DID) (doc *model.DIDDocument, status model.DIDStatus, found bool)

// Resolver is the orchestrator described in spec §4.7: it sits in front of
// a ledger Transport and a two-tier Cache, applying the local-override,
// cache-then-transport, and post-resolve signature verification steps
// uniformly for DIDs and credentials.
type Resolver struct {
	transport adapter.Transport
	cache     *cache.Cache
	ttl       time.Duration
	local     LocalDIDHandler
}

// NewResolver builds a Resolver against transport, caching successful
// results in c for up to ttl.
func NewResolver(transport adapter.Transport, c *cache.Cache, ttl time.Duration) *Resolver {
	return &Resolver{transport: transport, cache: c, ttl: ttl}
}

// SetLocalDIDHandler installs or clears (pass nil) the local override
// handler consulted before cache and transport.
func (r *Resolver) SetLocalDIDHandler(h LocalDIDHandler) {
	r.local = h
}

// ResolveDID implements spec §4.7 resolveDID(did, force).
func (r *Resolver) ResolveDID(did model.DID, force bool) (*model.DIDDocument, model.DIDStatus, error) {
	if r.local != nil {
		if doc, status, found := r.local(did); found {
			return doc, status, nil
		}
	}

	key := cache.DIDKey(did)

	if !force {
		if raw, hit, err := r.cache.Load(key, r.ttl); err != nil {
			return nil, model.DIDStatusNotFound, err
		} else if hit {
			bio, err := ParseDIDResolveResult(raw, did, false)
			if err != nil {
				return nil, model.DIDStatusNotFound, err
			}
			return r.documentFromBiography(bio)
		}
	}

	bio, raw, err := r.fetchDID(did, false)
	if err != nil {
		return nil, model.DIDStatusNotFound, err
	}

	if bio.Status != model.DIDStatusNotFound {
		if err := r.cache.Store(key, raw, r.ttl); err != nil {
			return nil, model.DIDStatusNotFound, err
		}
	}

	return r.documentFromBiography(bio)
}

// ResolveBiography implements spec §4.7 resolveBiography(did): it always
// forces all=true and bypasses the cache for the query itself. The result
// is written back under its own cache key (cache.BiographyKey), never
// cache.DIDKey, so it can never be read back by ResolveDID's single-
// transaction parse path — the two RPC shapes are not interchangeable.
func (r *Resolver) ResolveBiography(did model.DID) (*model.DIDBiography, error) {
	bio, raw, err := r.fetchDID(did, true)
	if err != nil {
		return nil, err
	}

	if bio.Status != model.DIDStatusNotFound {
		if err := r.cache.Store(cache.BiographyKey(did), raw, r.ttl); err != nil {
			return nil, err
		}
	}

	return bio, nil
}

// fetchDID issues a did_resolveDID RPC call and parses the result, without
// touching the cache.
func (r *Resolver) fetchDID(did model.DID, all bool) (*model.DIDBiography, []byte, error) {
	if r.transport == nil {
		return nil, nil, errs.New(errs.NotInitialized, "no ledger transport configured")
	}

	reqJSON, err := BuildResolveDIDRequest(did, all)
	if err != nil {
		return nil, nil, err
	}

	respJSON, ok := r.transport.Resolve(reqJSON)
	if !ok {
		return nil, nil, errs.New(errs.ResolveError, "transport failed to resolve DID")
	}

	raw, err := ParseRPCResponse(respJSON)
	if err != nil {
		return nil, nil, err
	}

	bio, err := ParseDIDResolveResult(raw, did, all)
	if err != nil {
		return nil, nil, err
	}

	return bio, raw, nil
}

// documentFromBiography implements the per-status verification spec §4.7
// step 4 requires before handing a document back to the caller.
func (r *Resolver) documentFromBiography(bio *model.DIDBiography) (*model.DIDDocument, model.DIDStatus, error) {
	switch bio.Status {
	case model.DIDStatusNotFound:
		return nil, model.DIDStatusNotFound, nil

	case model.DIDStatusValid:
		tx := bio.Last()
		if tx == nil || tx.Request.Document == nil {
			return nil, model.DIDStatusNotFound, errs.New(errs.MalformedResolveResponse, "valid result has no embedded document")
		}
		valid, err := r.verifyTransaction(tx, tx.Request.Document)
		if err != nil {
			return nil, model.DIDStatusNotFound, err
		}
		if !valid {
			return nil, model.DIDStatusNotFound, errs.New(errs.ResolveError, "resolved document failed signature verification")
		}
		return tx.Request.Document, model.DIDStatusValid, nil

	case model.DIDStatusDeactivated:
		if len(bio.Transactions) < 2 {
			return nil, model.DIDStatusNotFound, errs.New(errs.MalformedResolveResponse, "deactivated result missing predecessor transaction")
		}
		deactivation := bio.Transactions[0]
		predecessor := bio.Transactions[1]
		if predecessor.Request.Document == nil {
			return nil, model.DIDStatusNotFound, errs.New(errs.MalformedResolveResponse, "deactivated result missing predecessor document")
		}
		valid, err := IsValidDIDRequest(deactivation.Request, predecessor.Request.Document, nil)
		if err != nil {
			return nil, model.DIDStatusNotFound, err
		}
		if !valid {
			return nil, model.DIDStatusNotFound, errs.New(errs.ResolveError, "deactivation transaction failed signature verification")
		}
		return predecessor.Request.Document, model.DIDStatusDeactivated, nil

	default:
		return nil, model.DIDStatusNotFound, errs.New(errs.MalformedResolveResponse, "unrecognized DID status")
	}
}

// verifyTransaction verifies tx's proof against contextDoc, the document
// asserted to be current as of that transaction.
func (r *Resolver) verifyTransaction(tx *model.DIDTransaction, contextDoc *model.DIDDocument) (bool, error) {
	return IsValidDIDRequest(tx.Request, contextDoc, nil)
}

// ResolveCredential implements spec §4.7 resolveCredential(id, force).
func (r *Resolver) ResolveCredential(id model.DIDURL, issuer model.DID, force bool) (*model.Credential, model.CredentialStatus, error) {
	key := cache.CredentialKey(id, issuer)

	if !force {
		if raw, hit, err := r.cache.Load(key, r.ttl); err != nil {
			return nil, model.CredentialStatusNotFound, err
		} else if hit {
			bio, err := ParseCredentialResolveResult(raw, id)
			if err != nil {
				return nil, model.CredentialStatusNotFound, err
			}
			return r.credentialFromBiography(bio)
		}
	}

	bio, raw, err := r.fetchCredential(id, issuer)
	if err != nil {
		return nil, model.CredentialStatusNotFound, err
	}

	if bio.Status != model.CredentialStatusNotFound {
		if err := r.cache.Store(key, raw, r.ttl); err != nil {
			return nil, model.CredentialStatusNotFound, err
		}
	}

	return r.credentialFromBiography(bio)
}

func (r *Resolver) fetchCredential(id model.DIDURL, issuer model.DID) (*model.CredentialBiography, []byte, error) {
	if r.transport == nil {
		return nil, nil, errs.New(errs.NotInitialized, "no ledger transport configured")
	}

	reqJSON, err := BuildResolveCredentialRequest(id, issuer)
	if err != nil {
		return nil, nil, err
	}

	respJSON, ok := r.transport.Resolve(reqJSON)
	if !ok {
		return nil, nil, errs.New(errs.ResolveError, "transport failed to resolve credential")
	}

	raw, err := ParseRPCResponse(respJSON)
	if err != nil {
		return nil, nil, err
	}

	bio, err := ParseCredentialResolveResult(raw, id)
	if err != nil {
		return nil, nil, err
	}

	return bio, raw, nil
}

// credentialFromBiography resolves the issuer's current key and verifies
// the newest transaction's signature against it, per spec §4.7.
func (r *Resolver) credentialFromBiography(bio *model.CredentialBiography) (*model.Credential, model.CredentialStatus, error) {
	switch bio.Status {
	case model.CredentialStatusNotFound:
		return nil, model.CredentialStatusNotFound, nil

	case model.CredentialStatusValid, model.CredentialStatusRevoked:
		tx := bio.Last()
		if tx == nil {
			return nil, model.CredentialStatusNotFound, errs.New(errs.MalformedResolveResponse, "resolved credential has no transaction")
		}

		var cred *model.Credential
		for _, t := range bio.Transactions {
			if t.Request.Credential != nil {
				cred = t.Request.Credential
				break
			}
		}
		if cred == nil {
			return nil, model.CredentialStatusNotFound, errs.New(errs.MalformedResolveResponse, "resolved credential history has no declare")
		}

		issuerKey, err := r.resolveIssuerKey(cred.Issuer, tx.Request.Proof.VerificationMethod)
		if err != nil {
			return nil, model.CredentialStatusNotFound, err
		}

		valid, err := IsValidCredentialRequest(tx.Request, issuerKey)
		if err != nil {
			return nil, model.CredentialStatusNotFound, err
		}
		if !valid {
			return nil, model.CredentialStatusNotFound, errs.New(errs.ResolveError, "credential transaction failed signature verification")
		}

		return cred, bio.Status, nil

	default:
		return nil, model.CredentialStatusNotFound, errs.New(errs.MalformedResolveResponse, "unrecognized credential status")
	}
}

func (r *Resolver) resolveIssuerKey(issuer model.DID, vm model.DIDURL) (*model.PublicKey, error) {
	doc, status, err := r.ResolveDID(issuer, false)
	if err != nil {
		return nil, err
	}
	if status == model.DIDStatusNotFound || doc == nil {
		return nil, errs.New(errs.ResolveError, "credential issuer DID not found")
	}
	return doc.PublicKeyByID(vm), nil
}

// ListCredentials implements spec §4.7 listCredentials(did, skip, limit).
func (r *Resolver) ListCredentials(did model.DID, skip, limit int) ([]model.DIDURL, error) {
	if r.transport == nil {
		return nil, errs.New(errs.NotInitialized, "no ledger transport configured")
	}

	reqJSON, err := BuildListCredentialsRequest(did, skip, limit)
	if err != nil {
		return nil, err
	}

	respJSON, ok := r.transport.Resolve(reqJSON)
	if !ok {
		return nil, errs.New(errs.ResolveError, "transport failed to list credentials")
	}

	raw, err := ParseRPCResponse(respJSON)
	if err != nil {
		return nil, err
	}

	var ids []model.DIDURL
	if err := model.Unmarshal(raw, &ids); err != nil {
		return nil, errs.Wrap(errs.MalformedResolveResponse, "failed to parse credential list", err)
	}
	return ids, nil
}

// ResolveRevocation implements spec §4.7 resolveRevocation(id, issuer): it
// forces a cache bypass and reports only whether the credential is
// currently revoked.
func (r *Resolver) ResolveRevocation(id model.DIDURL, issuer model.DID) (bool, error) {
	_, status, err := r.ResolveCredential(id, issuer, true)
	if err != nil {
		return false, err
	}
	return status == model.CredentialStatusRevoked, nil
}
