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

// Package didsdk is the public façade: it wires together the request codec,
// ledger transport, resolver and key store behind the publish/resolve verbs
// an application actually calls, the way the teacher's top-level
// wallet.MetaLockerClient sits in front of its own backend/sdk packages.
package didsdk

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/piprate/diddock/adapter"
	"github.com/piprate/diddock/backend"
	"github.com/piprate/diddock/backend/cache"
	"github.com/piprate/diddock/errs"
	"github.com/piprate/diddock/model"
	"github.com/piprate/diddock/store"
)

// Backend is the client-side runtime for this DID method: signing and
// submitting requests through transport, and resolving state back through
// the cache-fronted Resolver.
type Backend struct {
	transport adapter.Transport
	store     store.KeyStore
	storePass string
	cache     *cache.Cache
	resolver  *backend.Resolver
}

// NewBackend builds a Backend around transport, loading signing keys from
// and persisting known documents in st, and caching resolve results under cacheDir for up
// to ttl. storePass unlocks st's private keys.
func NewBackend(transport adapter.Transport, st store.KeyStore, storePass, cacheDir string, ttl time.Duration) (*Backend, error) {
	if transport == nil {
		return nil, errs.New(errs.NotInitialized, "no ledger transport given")
	}

	c, err := cache.Open(cacheDir)
	if err != nil {
		return nil, err
	}

	return &Backend{
		transport: transport,
		store:     st,
		storePass: storePass,
		cache:     c,
		resolver:  backend.NewResolver(transport, c, ttl),
	}, nil
}

// Close releases the Backend's cache resources.
func (b *Backend) Close() {
	b.cache.Close()
}

// SetLocalDIDHandler installs a resolver override, e.g. to answer queries
// for documents this process itself just published without waiting on
// transport round trip latency.
func (b *Backend) SetLocalDIDHandler(h backend.LocalDIDHandler) {
	b.resolver.SetLocalDIDHandler(h)
}

// CreateDID signs and publishes doc as a new primitive or customized DID.
// On success the returned document carries the chain-assigned txid in its
// metadata and has been persisted to the key store, if one is attached.
func (b *Backend) CreateDID(doc *model.DIDDocument, signKeyID model.DIDURL) (*model.DIDDocument, error) {
	envelope, err := backend.SignDocumentRequest(model.OpCreate, doc, signKeyID, b.store, b.storePass, nil)
	if err != nil {
		return nil, err
	}
	return b.publish(envelope, doc)
}

// UpdateDID signs and publishes doc as an update to an existing DID. doc
// must carry the current txid in doc.Metadata.Txid (as returned by a prior
// Create/Update/Resolve call).
func (b *Backend) UpdateDID(doc *model.DIDDocument, signKeyID model.DIDURL) (*model.DIDDocument, error) {
	envelope, err := backend.SignDocumentRequest(model.OpUpdate, doc, signKeyID, b.store, b.storePass, nil)
	if err != nil {
		return nil, err
	}
	return b.publish(envelope, doc)
}

// TransferDID signs and publishes doc (carrying the new controller set) as
// a transfer authorized by ticket.
func (b *Backend) TransferDID(doc *model.DIDDocument, ticket *model.TransferTicket, signKeyID model.DIDURL) (*model.DIDDocument, error) {
	envelope, err := backend.SignDocumentRequest(model.OpTransfer, doc, signKeyID, b.store, b.storePass, ticket)
	if err != nil {
		return nil, err
	}
	return b.publish(envelope, doc)
}

// DeactivateDID signs and publishes a deactivation for target, signed with
// signKeyID — either one of target's own keys, or a key authorized via
// target's authorization list.
func (b *Backend) DeactivateDID(target model.DID, signKeyID model.DIDURL) error {
	envelope, err := backend.SignDeactivateRequest(target, signKeyID, b.store, b.storePass)
	if err != nil {
		return err
	}
	if !b.transport.CreateTransaction(envelope, "") {
		return errs.New(errs.TransactionError, "ledger rejected deactivation for "+target.String())
	}
	log.Info().Str("did", target.String()).Msg("DID deactivated")
	return nil
}

// publish submits envelope, then re-resolves doc.Subject to learn the
// chain-assigned txid and persists the resulting document to the key
// store (when one is attached), returning that document to the caller.
func (b *Backend) publish(envelope string, doc *model.DIDDocument) (*model.DIDDocument, error) {
	if !b.transport.CreateTransaction(envelope, "") {
		return nil, errs.New(errs.TransactionError, "ledger rejected transaction for "+doc.Subject.String())
	}

	bio, err := b.resolver.ResolveBiography(doc.Subject)
	if err != nil {
		return nil, err
	}
	tx := bio.Last()
	if tx == nil {
		return nil, errs.New(errs.ResolveError, "published document not found on resolve")
	}

	published := *doc
	meta := &model.DIDDocumentMetadata{}
	if doc.Metadata != nil {
		*meta = *doc.Metadata
	}
	meta.Txid = tx.Txid
	published.Metadata = meta

	if b.store != nil {
		if err := b.store.StoreDID(&published); err != nil {
			return nil, err
		}
	}

	log.Info().Str("did", doc.Subject.String()).Str("txid", tx.Txid).Msg("DID published")

	return &published, nil
}

// Resolve returns the current document and status for did, per spec §4.7.
func (b *Backend) Resolve(did model.DID, force bool) (*model.DIDDocument, model.DIDStatus, error) {
	return b.resolver.ResolveDID(did, force)
}

// ResolveBiography returns the full ordered transaction history for did.
func (b *Backend) ResolveBiography(did model.DID) (*model.DIDBiography, error) {
	return b.resolver.ResolveBiography(did)
}

// DeclareCredential signs and publishes cred as a new credential issued by
// its declared issuer.
func (b *Backend) DeclareCredential(cred *model.Credential, signKeyID model.DIDURL) error {
	envelope, err := backend.SignCredentialRequest(cred, signKeyID, b.store, b.storePass)
	if err != nil {
		return err
	}
	if !b.transport.CreateTransaction(envelope, "") {
		return errs.New(errs.TransactionError, "ledger rejected credential declaration for "+cred.ID.String())
	}
	log.Info().Str("credential", cred.ID.String()).Msg("credential declared")
	return nil
}

// RevokeCredential signs and publishes a revocation for target.
func (b *Backend) RevokeCredential(target model.DIDURL, signKeyID model.DIDURL) error {
	envelope, err := backend.SignRevokeCredentialRequest(target, signKeyID, b.store, b.storePass)
	if err != nil {
		return err
	}
	if !b.transport.CreateTransaction(envelope, "") {
		return errs.New(errs.TransactionError, "ledger rejected credential revocation for "+target.String())
	}
	log.Info().Str("credential", target.String()).Msg("credential revoked")
	return nil
}

// ResolveCredential returns the current state of a declared credential.
func (b *Backend) ResolveCredential(id model.DIDURL, issuer model.DID, force bool) (*model.Credential, model.CredentialStatus, error) {
	return b.resolver.ResolveCredential(id, issuer, force)
}

// ListCredentials lists the credential ids associated with did (as issuer
// or subject), newest first.
func (b *Backend) ListCredentials(did model.DID, skip, limit int) ([]model.DIDURL, error) {
	return b.resolver.ListCredentials(did, skip, limit)
}

// ResolveRevocation reports whether the credential id (issued by issuer) is
// currently revoked, always bypassing the cache.
func (b *Backend) ResolveRevocation(id model.DIDURL, issuer model.DID) (bool, error) {
	return b.resolver.ResolveRevocation(id, issuer)
}
