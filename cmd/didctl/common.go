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

package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/piprate/diddock/didsdk"
	"github.com/piprate/diddock/store"
	"github.com/piprate/diddock/store/fs"
)

const (
	InvalidParameter = 1
	OperationFailed  = 2
)

// cliConfig loads configuration from the --config file and DID_ env vars,
// then overlays the per-invocation --keystore/--keystore-pass/--endpoint
// flags, which take precedence over both.
func cliConfig(c *cli.Context) (*didsdk.Config, error) {
	cfg, err := didsdk.LoadConfig(c.String("config"))
	if err != nil {
		return nil, cli.Exit(err, OperationFailed)
	}

	if path := c.String("keystore"); path != "" {
		cfg.KeyStorePath = path
	}
	if pass := c.String("keystore-pass"); pass != "" {
		cfg.KeyStorePass = pass
	}
	if endpoint := c.String("endpoint"); endpoint != "" {
		cfg.RPCEndpoint = endpoint
		cfg.TransportType = "rpc"
	}
	return cfg, nil
}

func openKeyStore(path string) (store.KeyStore, error) {
	if path == "" {
		return nil, cli.Exit("no key store configured (use --keystore)", InvalidParameter)
	}
	st, err := fs.Open(path)
	if err != nil {
		return nil, cli.Exit(err, OperationFailed)
	}
	return st, nil
}

// buildBackend wires a didsdk.Backend from global flags: config file,
// key store path/passphrase and transport selection.
func buildBackend(c *cli.Context) (*didsdk.Backend, error) {
	cfg, err := cliConfig(c)
	if err != nil {
		return nil, err
	}

	transport, err := cfg.BuildTransport()
	if err != nil {
		return nil, cli.Exit(err, OperationFailed)
	}

	var st store.KeyStore
	if cfg.KeyStorePath != "" {
		st, err = fs.Open(cfg.KeyStorePath)
		if err != nil {
			return nil, cli.Exit(err, OperationFailed)
		}
	}

	b, err := didsdk.NewBackend(transport, st, cfg.KeyStorePass, cfg.CacheDir, cfg.CacheTTL)
	if err != nil {
		return nil, cli.Exit(err, OperationFailed)
	}
	return b, nil
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Value: "",
			Usage: "path to a TOML config file (optional, overridden by DID_ env vars)",
		},
		&cli.StringFlag{
			Name:  "keystore",
			Value: os.ExpandEnv("$HOME/.diddock/keystore.db"),
			Usage: "path to the local bbolt key store",
		},
		&cli.StringFlag{
			Name:    "keystore-pass",
			Value:   "",
			Usage:   "passphrase protecting the key store",
			EnvVars: []string{"DID_KEYSTORE_PASS"},
		},
		&cli.StringFlag{
			Name:  "endpoint",
			Value: "",
			Usage: "ledger RPC endpoint (selects the rpc transport when set)",
		},
	}
}
