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
	"sync"

	"github.com/piprate/diddock/utils/jsonw"
	"github.com/piprate/json-gold/ld"
)

const credentialProcessingBase = "https://diddock.example/"

var (
	documentLoaderLock    sync.Mutex
	defaultDocumentLoader = ld.DocumentLoader(ld.NewCachingDocumentLoader(ld.NewDefaultDocumentLoader(nil)))
)

// DefaultDocumentLoader returns the JSON-LD document loader used to expand
// credentials that declare a "@context". Callers can preload local
// mappings with PutContextIntoDefaultDocumentLoader to avoid network
// fetches for well-known contexts during tests.
func DefaultDocumentLoader() ld.DocumentLoader {
	return defaultDocumentLoader
}

// PutContextIntoDefaultDocumentLoader preloads a local file as the contents
// of a context URL, so structural validation doesn't need network access.
func PutContextIntoDefaultDocumentLoader(url, filePath string) error {
	documentLoaderLock.Lock()
	defer documentLoaderLock.Unlock()

	cdl, ok := defaultDocumentLoader.(*ld.CachingDocumentLoader)
	if !ok {
		return nil
	}
	return cdl.PreloadWithMapping(map[string]string{url: filePath})
}

// ValidateJSONLDStructure runs a JSON-LD expansion pass over a credential
// that declares "@context". This is a structural well-formedness check
// only — it confirms the document is syntactically valid linked data, not
// that its claims satisfy any particular schema (spec §1 Non-goals).
func ValidateJSONLDStructure(c *Credential) error {
	raw, err := jsonw.Marshal(c.signable())
	if err != nil {
		return err
	}

	var val any
	if err := jsonw.Unmarshal(raw, &val); err != nil {
		return err
	}

	proc := ld.NewJsonLdProcessor()
	opts := ld.NewJsonLdOptions(credentialProcessingBase)
	opts.ProcessingMode = ld.JsonLd_1_1
	opts.DocumentLoader = DefaultDocumentLoader()

	_, err = proc.Expand(val, opts)
	return err
}
