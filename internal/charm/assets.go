// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm

import (
	"embed"
	"encoding/base64"
	"io/fs"
	"path"
	"strings"
)

// The charm ships default identity schemas and per-provider claim
// mappers. They are the lowest-priority sources: operator configuration
// and the cluster ConfigMaps override them.
//
//go:embed identity_schemas claim_mappers
var assetsFS embed.FS

// identitySchemasDir is handed to schema.FSSource as the packaged
// fallback.
const identitySchemasDir = "identity_schemas"

const mapperSuffix = "_schema"

// claimMappers returns the packaged claim mappers as base64:// URLs,
// keyed by file stem ("google_schema", "default_schema", ...).
func claimMappers() map[string]string {
	mappers := map[string]string{}
	entries, err := fs.Glob(assetsFS, "claim_mappers/*.jsonnet")
	if err != nil {
		return mappers
	}
	for _, name := range entries {
		content, err := fs.ReadFile(assetsFS, name)
		if err != nil {
			logger.Warningf("cannot read claim mapper %q: %v", name, err)
			continue
		}
		stem := strings.TrimSuffix(path.Base(name), ".jsonnet")
		mappers[stem] = "base64://" + base64.StdEncoding.EncodeToString(content)
	}
	return mappers
}

// mapperURLFor picks the mapper for a provider: the provider's own
// mapper when published over the relation, the packaged per-provider
// mapper otherwise, the packaged default as last resort.
func mapperURLFor(provider, published string, mappers map[string]string) string {
	if published != "" {
		return published
	}
	if url, ok := mappers[provider+mapperSuffix]; ok {
		return url
	}
	return mappers["default"+mapperSuffix]
}
