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
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/piprate/diddock/mnemonic"
	"github.com/piprate/diddock/model"
	"github.com/piprate/diddock/store"
	"github.com/piprate/diddock/utils/jsonw"
)

// loadDocument reads a DIDDocument from the file named by the "file" flag.
func loadDocument(c *cli.Context) (*model.DIDDocument, error) {
	path := c.String("file")
	if path == "" {
		return nil, cli.Exit("please specify --file with the document JSON", InvalidParameter)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, cli.Exit(err, InvalidParameter)
	}
	defer f.Close()

	var doc model.DIDDocument
	if err := jsonw.Decode(f, &doc); err != nil {
		return nil, cli.Exit(err, InvalidParameter)
	}
	return &doc, nil
}

func printDocument(doc *model.DIDDocument) error {
	b, err := jsonw.MarshalIndent(doc, "", "  ")
	if err != nil {
		return cli.Exit(err, OperationFailed)
	}
	fmt.Println(string(b))
	return nil
}

func signKeyIDFlag(c *cli.Context) (model.DIDURL, error) {
	raw := c.String("sign-key")
	if raw == "" {
		return "", cli.Exit("please specify --sign-key", InvalidParameter)
	}
	return model.ParseDIDURL(raw)
}

func CreateDID(c *cli.Context) error {
	doc, err := loadDocument(c)
	if err != nil {
		return err
	}
	signKeyID, err := signKeyIDFlag(c)
	if err != nil {
		return err
	}

	b, err := buildBackend(c)
	if err != nil {
		return err
	}
	defer b.Close()

	published, err := b.CreateDID(doc, signKeyID)
	if err != nil {
		return cli.Exit(err, OperationFailed)
	}
	return printDocument(published)
}

func UpdateDID(c *cli.Context) error {
	doc, err := loadDocument(c)
	if err != nil {
		return err
	}
	signKeyID, err := signKeyIDFlag(c)
	if err != nil {
		return err
	}

	b, err := buildBackend(c)
	if err != nil {
		return err
	}
	defer b.Close()

	published, err := b.UpdateDID(doc, signKeyID)
	if err != nil {
		return cli.Exit(err, OperationFailed)
	}
	return printDocument(published)
}

func TransferDID(c *cli.Context) error {
	doc, err := loadDocument(c)
	if err != nil {
		return err
	}
	signKeyID, err := signKeyIDFlag(c)
	if err != nil {
		return err
	}

	ticketPath := c.String("ticket")
	if ticketPath == "" {
		return cli.Exit("please specify --ticket with the transfer ticket JSON", InvalidParameter)
	}
	tf, err := os.Open(ticketPath)
	if err != nil {
		return cli.Exit(err, InvalidParameter)
	}
	defer tf.Close()

	var ticket model.TransferTicket
	if err := jsonw.Decode(tf, &ticket); err != nil {
		return cli.Exit(err, InvalidParameter)
	}

	b, err := buildBackend(c)
	if err != nil {
		return err
	}
	defer b.Close()

	published, err := b.TransferDID(doc, &ticket, signKeyID)
	if err != nil {
		return cli.Exit(err, OperationFailed)
	}
	return printDocument(published)
}

func DeactivateDID(c *cli.Context) error {
	if c.Args().Len() != 1 {
		fmt.Print("Please specify the DID to deactivate.\n\n")
		return cli.Exit("missing DID argument", InvalidParameter)
	}
	target, err := model.ParseDID(c.Args().Get(0))
	if err != nil {
		return cli.Exit(err, InvalidParameter)
	}
	signKeyID, err := signKeyIDFlag(c)
	if err != nil {
		return err
	}

	b, err := buildBackend(c)
	if err != nil {
		return err
	}
	defer b.Close()

	if err := b.DeactivateDID(target, signKeyID); err != nil {
		return cli.Exit(err, OperationFailed)
	}
	fmt.Println("deactivated", target.String())
	return nil
}

func ResolveDID(c *cli.Context) error {
	if c.Args().Len() != 1 {
		fmt.Print("Please specify the DID to resolve.\n\n")
		return cli.Exit("missing DID argument", InvalidParameter)
	}
	target, err := model.ParseDID(c.Args().Get(0))
	if err != nil {
		return cli.Exit(err, InvalidParameter)
	}

	b, err := buildBackend(c)
	if err != nil {
		return err
	}
	defer b.Close()

	doc, status, err := b.Resolve(target, c.Bool("force"))
	if err != nil {
		return cli.Exit(err, OperationFailed)
	}
	fmt.Println("status:", status.String())
	if doc == nil {
		return nil
	}
	return printDocument(doc)
}

func ResolveBiography(c *cli.Context) error {
	if c.Args().Len() != 1 {
		fmt.Print("Please specify the DID whose biography to resolve.\n\n")
		return cli.Exit("missing DID argument", InvalidParameter)
	}
	target, err := model.ParseDID(c.Args().Get(0))
	if err != nil {
		return cli.Exit(err, InvalidParameter)
	}

	b, err := buildBackend(c)
	if err != nil {
		return err
	}
	defer b.Close()

	bio, err := b.ResolveBiography(target)
	if err != nil {
		return cli.Exit(err, OperationFailed)
	}
	out, err := jsonw.MarshalIndent(bio, "", "  ")
	if err != nil {
		return cli.Exit(err, OperationFailed)
	}
	fmt.Println(string(out))
	return nil
}

func DeclareCredential(c *cli.Context) error {
	path := c.String("file")
	if path == "" {
		return cli.Exit("please specify --file with the credential JSON", InvalidParameter)
	}
	f, err := os.Open(path)
	if err != nil {
		return cli.Exit(err, InvalidParameter)
	}
	defer f.Close()

	var cred model.Credential
	if err := jsonw.Decode(f, &cred); err != nil {
		return cli.Exit(err, InvalidParameter)
	}

	signKeyID, err := signKeyIDFlag(c)
	if err != nil {
		return err
	}

	b, err := buildBackend(c)
	if err != nil {
		return err
	}
	defer b.Close()

	if err := b.DeclareCredential(&cred, signKeyID); err != nil {
		return cli.Exit(err, OperationFailed)
	}
	fmt.Println("declared", cred.ID.String())
	return nil
}

func RevokeCredential(c *cli.Context) error {
	if c.Args().Len() != 1 {
		fmt.Print("Please specify the credential id to revoke.\n\n")
		return cli.Exit("missing credential id argument", InvalidParameter)
	}
	target, err := model.ParseDIDURL(c.Args().Get(0))
	if err != nil {
		return cli.Exit(err, InvalidParameter)
	}
	signKeyID, err := signKeyIDFlag(c)
	if err != nil {
		return err
	}

	b, err := buildBackend(c)
	if err != nil {
		return err
	}
	defer b.Close()

	if err := b.RevokeCredential(target, signKeyID); err != nil {
		return cli.Exit(err, OperationFailed)
	}
	fmt.Println("revoked", target.String())
	return nil
}

func ResolveCredential(c *cli.Context) error {
	if c.Args().Len() != 1 {
		fmt.Print("Please specify the credential id to resolve.\n\n")
		return cli.Exit("missing credential id argument", InvalidParameter)
	}
	target, err := model.ParseDIDURL(c.Args().Get(0))
	if err != nil {
		return cli.Exit(err, InvalidParameter)
	}
	issuer, err := model.ParseDID(c.String("issuer"))
	if err != nil {
		return cli.Exit(err, InvalidParameter)
	}

	b, err := buildBackend(c)
	if err != nil {
		return err
	}
	defer b.Close()

	cred, status, err := b.ResolveCredential(target, issuer, c.Bool("force"))
	if err != nil {
		return cli.Exit(err, OperationFailed)
	}
	fmt.Println("status:", status.String())
	if cred == nil {
		return nil
	}
	out, err := jsonw.MarshalIndent(cred, "", "  ")
	if err != nil {
		return cli.Exit(err, OperationFailed)
	}
	fmt.Println(string(out))
	return nil
}

func ListCredentials(c *cli.Context) error {
	if c.Args().Len() != 1 {
		fmt.Print("Please specify the DID whose credentials to list.\n\n")
		return cli.Exit("missing DID argument", InvalidParameter)
	}
	target, err := model.ParseDID(c.Args().Get(0))
	if err != nil {
		return cli.Exit(err, InvalidParameter)
	}

	b, err := buildBackend(c)
	if err != nil {
		return err
	}
	defer b.Close()

	ids, err := b.ListCredentials(target, c.Int("skip"), c.Int("limit"))
	if err != nil {
		return cli.Exit(err, OperationFailed)
	}
	for _, id := range ids {
		fmt.Println(id.String())
	}
	return nil
}

// GenerateMnemonic prints a fresh BIP-39 recovery phrase.
func GenerateMnemonic(c *cli.Context) error {
	phrase, err := mnemonic.Generate()
	if err != nil {
		return cli.Exit(err, OperationFailed)
	}
	fmt.Println(phrase)
	return nil
}

// ImportKey derives a key pair from a recovery phrase (or generates a fresh
// random one when --phrase is absent) and stores it in the local key store
// under the given key id, printing the resulting public key.
func ImportKey(c *cli.Context) error {
	raw := c.String("key-id")
	if raw == "" {
		return cli.Exit("please specify --key-id", InvalidParameter)
	}
	keyID, err := model.ParseDIDURL(raw)
	if err != nil {
		return cli.Exit(err, InvalidParameter)
	}

	var priv *model.PrivateKey
	if phrase := c.String("phrase"); phrase != "" {
		path := c.String("path")
		if path == "" {
			path = mnemonic.DefaultPath
		}
		priv, err = mnemonic.DeriveKeyPair(phrase, path)
	} else {
		priv, err = model.GenerateKeyPair()
	}
	if err != nil {
		return cli.Exit(err, OperationFailed)
	}

	cfg, err := cliConfig(c)
	if err != nil {
		return err
	}

	st, err := openKeyStore(cfg.KeyStorePath)
	if err != nil {
		return err
	}

	pass := cfg.KeyStorePass
	if p := c.String("keystore-pass"); p != "" {
		pass = p
	}

	if err := st.StorePrivateKey(keyID, pass, store.EncodePrivateKey(priv)); err != nil {
		return cli.Exit(err, OperationFailed)
	}

	fmt.Println("public key (base58):", model.EncodeBase58(priv.PubKeyBytes()))
	fmt.Println("derived DID:", model.BuildDID(model.DefaultMethod, model.Hash160(priv.PubKeyBytes())).String())
	return nil
}
