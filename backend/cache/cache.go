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

// Package cache implements the resolver cache (spec §4.8): a two-tier
// store in front of the upstream transport. The hot tier is an in-process,
// TTL-bounded github.com/muesli/cache2go table, mirroring the account
// cache the teacher keeps in remote/factory.go. The cold tier is a
// content-addressed directory of plain files, keyed by
// Base58(SHA256(key)), with atomic write-temp-then-rename persistence —
// the same durability idiom the teacher applies to its bolt-backed stores,
// adapted to loose files since the cache is not a KV database.
package cache

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"time"

	"github.com/muesli/cache2go"

	"github.com/piprate/diddock/errs"
	"github.com/piprate/diddock/model"
	"github.com/piprate/diddock/utils"
)

// entry is the on-disk/in-memory envelope wrapping a cached value with the
// write timestamp load() uses to enforce the caller's TTL.
type entry struct {
	Written int64  `json:"written"` // unix millis
	Value   []byte `json:"value"`
}

// Cache is a two-tier resolve-result cache rooted at a configured
// directory. The zero value is not usable; construct with Open.
type Cache struct {
	dir string
	hot *cache2go.CacheTable
}

const hotTableName = "resolveCache"

// Open returns a Cache rooted at dir, creating it if necessary.
func Open(dir string) (*Cache, error) {
	abs := utils.AbsPathify(dir)
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, errs.Wrap(errs.IOError, "failed to create cache directory", err)
	}
	return &Cache{dir: abs, hot: cache2go.Cache(hotTableName)}, nil
}

// DIDKey builds the content-address for a plain (non-full) DID resolve
// result (spec §4.8).
func DIDKey(did model.DID) string {
	return hashKey(string(did))
}

// BiographyKey builds the content-address for a full-history (all=true)
// resolve result. It is deliberately distinct from DIDKey: the two RPC
// shapes carry a different number of transactions for the same DID (one
// current transaction vs. the complete history), so they cannot share a
// cache slot without one resolver poisoning the other's read.
func BiographyKey(did model.DID) string {
	return hashKey(string(did)) + ".biography"
}

// CredentialKey builds the content-address for a VC resolve result,
// optionally scoped to the issuer when one was supplied in the request.
func CredentialKey(id model.DIDURL, issuer model.DID) string {
	key := hashKey(id.String())
	if issuer != "" {
		key += "." + model.EncodeBase58([]byte(issuer))
	}
	return key
}

func hashKey(s string) string {
	h := sha256.Sum256([]byte(s))
	return model.EncodeBase58(h[:])
}

// Load returns the cached value for key iff it was written within ttl of
// now; otherwise it reports a miss (found=false) without error. A miss
// also clears any stale hot-tier entry so a later Store is immediately
// visible.
func (c *Cache) Load(key string, ttl time.Duration) (value []byte, found bool, err error) {
	now := time.Now()

	if c.hot != nil {
		if item, herr := c.hot.Value(key); herr == nil {
			e := item.Data().(*entry)
			if fresh(e.Written, ttl, now) {
				return e.Value, true, nil
			}
			_, _ = c.hot.Delete(key)
		}
	}

	e, err := c.readDisk(key)
	if err != nil {
		if errs.KindIs(err, errs.NotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if !fresh(e.Written, ttl, now) {
		return nil, false, nil
	}

	if c.hot != nil {
		c.hot.Add(key, ttl, e)
	}

	return e.Value, true, nil
}

func fresh(writtenMillis int64, ttl time.Duration, now time.Time) bool {
	written := time.UnixMilli(writtenMillis)
	return now.Sub(written) <= ttl
}

// Store writes value under key in both tiers. Disk writes are
// last-writer-wins via write-temp-then-rename, so concurrent writers race
// on the final result without corrupting either's output.
func (c *Cache) Store(key string, value []byte, ttl time.Duration) error {
	e := &entry{Written: time.Now().UnixMilli(), Value: value}

	if err := c.writeDisk(key, e); err != nil {
		return err
	}

	if c.hot != nil {
		c.hot.Add(key, ttl, e)
	}

	return nil
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key)
}

func (c *Cache) readDisk(key string) (*entry, error) {
	raw, err := os.ReadFile(c.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.New(errs.NotFound, "cache entry not found")
		}
		return nil, errs.Wrap(errs.IOError, "failed to read cache entry", err)
	}

	var e entry
	if err := model.Unmarshal(raw, &e); err != nil {
		return nil, errs.Wrap(errs.IOError, "failed to parse cache entry", err)
	}
	return &e, nil
}

func (c *Cache) writeDisk(key string, e *entry) error {
	raw, err := model.Compact(e)
	if err != nil {
		return errs.Wrap(errs.IOError, "failed to serialize cache entry", err)
	}

	final := c.path(key)
	f, err := os.CreateTemp(c.dir, key+".*.tmp")
	if err != nil {
		return errs.Wrap(errs.IOError, "failed to write cache entry", err)
	}
	tmp := f.Name()
	_, err = f.Write(raw)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return errs.Wrap(errs.IOError, "failed to write cache entry", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return errs.Wrap(errs.IOError, "failed to commit cache entry", err)
	}
	return nil
}

// Close releases the hot tier's table, dropping all in-process entries.
// The on-disk tier is untouched.
func (c *Cache) Close() {
	if c.hot != nil {
		c.hot.Flush()
	}
}
