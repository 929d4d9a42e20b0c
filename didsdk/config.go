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

package didsdk

import (
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"

	"github.com/piprate/diddock/adapter"
	"github.com/piprate/diddock/errs"
)

// envPrefix is the variable prefix koanf strips when loading from the
// environment, e.g. DID_CACHE_DIR → cache.dir.
const envPrefix = "DID_"

// Config carries everything NewBackend needs, read (in precedence order,
// lowest first) from an optional TOML file, environment variables prefixed
// DID_, and finally values set directly by the caller (e.g. CLI flags),
// mirroring the teacher's koanf-based lockerd configuration loader.
type Config struct {
	CacheDir      string        `koanf:"cache.dir"`
	CacheTTL      time.Duration `koanf:"-"`
	CacheTTLMs    int           `koanf:"cache.ttl_ms"`
	KeyStorePath  string        `koanf:"keystore.path"`
	KeyStorePass  string        `koanf:"keystore.passphrase"`
	TransportType string        `koanf:"transport.type"`
	RPCEndpoint   string        `koanf:"transport.endpoint"`
}

// LoadConfig reads configuration from path (a TOML file, skipped if empty
// or missing) and from DID_-prefixed environment variables, the latter
// taking precedence.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, errs.Wrap(errs.IOError, "failed to load config file", err)
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "failed to load config from environment", err)
	}

	cfg := &Config{
		CacheDir:      k.String("cache.dir"),
		CacheTTLMs:    k.Int("cache.ttl_ms"),
		KeyStorePath:  k.String("keystore.path"),
		KeyStorePass:  k.String("keystore.passphrase"),
		TransportType: k.String("transport.type"),
		RPCEndpoint:   k.String("transport.endpoint"),
	}

	if cfg.CacheDir == "" {
		cfg.CacheDir = "$HOME/.diddock/cache"
	}
	if cfg.CacheTTLMs <= 0 {
		cfg.CacheTTLMs = 5 * 60 * 1000
	}
	cfg.CacheTTL = time.Duration(cfg.CacheTTLMs) * time.Millisecond

	if cfg.TransportType == "" {
		cfg.TransportType = "dummy"
	}

	return cfg, nil
}

// BuildTransport constructs the adapter.Transport named by cfg.TransportType.
func (cfg *Config) BuildTransport() (adapter.Transport, error) {
	return adapter.Create(&adapter.Config{
		Type: cfg.TransportType,
		Params: map[string]any{
			"endpoint": cfg.RPCEndpoint,
		},
	})
}
