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

// Command didctl is a thin command-line wrapper around the didsdk.Backend
// runtime: it builds, signs and submits DID and credential requests, and
// resolves documents, biographies and credentials back from the ledger.
package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	_ "github.com/piprate/diddock/adapter/dummy"
	_ "github.com/piprate/diddock/adapter/rpc"
)

const version = "0.1.0"

func main() {
	app := cli.NewApp()
	app.Name = "didctl"
	app.Usage = "client-side runtime for the example DID method"
	app.Version = version

	app.Flags = append([]cli.Flag{
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "if true, enable debug logging",
		},
	}, globalFlags()...)

	app.Before = func(c *cli.Context) error {
		level := zerolog.InfoLevel
		if c.Bool("debug") {
			level = zerolog.DebugLevel
		}
		zerolog.SetGlobalLevel(level)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Stamp})
		return nil
	}

	app.Commands = []*cli.Command{
		{
			Name:   "create",
			Usage:  "create a new DID",
			Action: CreateDID,
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "file", Usage: "path to the DID document JSON"},
				&cli.StringFlag{Name: "sign-key", Usage: "key id (DID URL) to sign the envelope with"},
			},
		},
		{
			Name:   "update",
			Usage:  "update an existing DID",
			Action: UpdateDID,
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "file", Usage: "path to the updated DID document JSON"},
				&cli.StringFlag{Name: "sign-key", Usage: "key id (DID URL) to sign the envelope with"},
			},
		},
		{
			Name:   "transfer",
			Usage:  "transfer a customized DID's controllers using a transfer ticket",
			Action: TransferDID,
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "file", Usage: "path to the updated DID document JSON"},
				&cli.StringFlag{Name: "ticket", Usage: "path to the transfer ticket JSON"},
				&cli.StringFlag{Name: "sign-key", Usage: "key id (DID URL) to sign the envelope with"},
			},
		},
		{
			Name:      "deactivate",
			Usage:     "deactivate a DID",
			ArgsUsage: "<did>",
			Action:    DeactivateDID,
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "sign-key", Usage: "key id (DID URL) to sign the envelope with"},
			},
		},
		{
			Name:      "resolve",
			Usage:     "resolve a DID to its current document and status",
			ArgsUsage: "<did>",
			Action:    ResolveDID,
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "force", Usage: "bypass the resolve cache"},
			},
		},
		{
			Name:      "biography",
			Usage:     "resolve a DID's full transaction history",
			ArgsUsage: "<did>",
			Action:    ResolveBiography,
		},
		{
			Name:  "credential",
			Usage: "commands for credential declare/revoke/resolve",
			Subcommands: []*cli.Command{
				{
					Name:   "declare",
					Usage:  "declare a new credential",
					Action: DeclareCredential,
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "file", Usage: "path to the credential JSON"},
						&cli.StringFlag{Name: "sign-key", Usage: "key id (DID URL) to sign the envelope with"},
					},
				},
				{
					Name:      "revoke",
					Usage:     "revoke a declared credential",
					ArgsUsage: "<credential-id>",
					Action:    RevokeCredential,
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "sign-key", Usage: "key id (DID URL) to sign the envelope with"},
					},
				},
				{
					Name:      "resolve",
					Usage:     "resolve a credential's current state",
					ArgsUsage: "<credential-id>",
					Action:    ResolveCredential,
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "issuer", Usage: "issuer DID"},
						&cli.BoolFlag{Name: "force", Usage: "bypass the resolve cache"},
					},
				},
				{
					Name:      "list",
					Usage:     "list credential ids associated with a DID",
					ArgsUsage: "<did>",
					Action:    ListCredentials,
					Flags: []cli.Flag{
						&cli.IntFlag{Name: "skip", Value: 0},
						&cli.IntFlag{Name: "limit", Value: 20},
					},
				},
			},
		},
		{
			Name:  "key",
			Usage: "commands for local key material",
			Subcommands: []*cli.Command{
				{
					Name:   "new-mnemonic",
					Usage:  "generate a new BIP-39 recovery phrase",
					Action: GenerateMnemonic,
				},
				{
					Name:   "import",
					Usage:  "derive (or generate) a key pair and store it locally",
					Action: ImportKey,
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "key-id", Usage: "key id (DID URL) to store the key under"},
						&cli.StringFlag{Name: "phrase", Usage: "recovery phrase to derive from (random key if omitted)"},
						&cli.StringFlag{Name: "path", Usage: "SLIP-10 derivation path (default m/0')"},
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		println(err.Error())
		os.Exit(1)
	}
}
