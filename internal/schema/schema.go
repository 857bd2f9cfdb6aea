// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package schema resolves the identity schemas served to the workload.
// Schemas can come from three places, tried in order: the charm
// configuration, the identity-schemas ConfigMap, and the default
// schemas shipped with the charm. The first source that yields a usable
// set wins.
package schema

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io/fs"
	"path"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("kratos-operator.schema")

// DefaultSchemaIDFileName is the reserved name holding the default
// schema id rather than a schema document.
const DefaultSchemaIDFileName = "default.schema"

// Schemas is a resolved identity schema set ready for rendering: every
// schema document is already encoded as a base64:// URL.
type Schemas struct {
	DefaultID string
	Encoded   map[string]string
}

// Source yields identity schemas from one origin. The boolean reports
// whether the source produced a usable set; a false return moves
// resolution on to the next source.
type Source interface {
	Schemas(ctx context.Context) (defaultID string, encoded map[string]string, ok bool)
}

// Resolver tries its sources in order.
type Resolver struct {
	sources []Source
}

// NewResolver returns a resolver over the given sources, highest
// priority first.
func NewResolver(sources ...Source) *Resolver {
	return &Resolver{sources: sources}
}

// Resolve returns the first usable schema set. Running out of sources
// is fatal: the workload cannot start without an identity schema.
func (r *Resolver) Resolve(ctx context.Context) (*Schemas, error) {
	for _, source := range r.sources {
		if defaultID, encoded, ok := source.Schemas(ctx); ok {
			return &Schemas{DefaultID: defaultID, Encoded: encoded}, nil
		}
	}
	return nil, errors.New("no valid identity schema found")
}

func encode(schema string) string {
	return "base64://" + base64.StdEncoding.EncodeToString([]byte(schema))
}

// ConfigSource serves the schemas set in the charm configuration. Both
// options must be set: the raw schemas document is a JSON object
// mapping schema ids to schema documents, and the default id names one
// of them.
type ConfigSource struct {
	DefaultID  string
	RawSchemas string
}

// Schemas implements Source.
func (s ConfigSource) Schemas(_ context.Context) (string, map[string]string, bool) {
	if s.DefaultID == "" || s.RawSchemas == "" {
		return "", nil, false
	}
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s.RawSchemas), &parsed); err != nil {
		logger.Errorf("identity_schemas in charm config is not valid json: %v", err)
		return "", nil, false
	}
	encoded := make(map[string]string, len(parsed))
	for id, doc := range parsed {
		encoded[id] = encode(string(doc))
	}
	return s.DefaultID, encoded, true
}

// ConfigMapGetter reads the data of a named ConfigMap, returning a
// NotFound error when it does not exist.
type ConfigMapGetter interface {
	Get(ctx context.Context, name string) (map[string]string, error)
}

// ConfigMapSource serves the schemas stored in the identity-schemas
// ConfigMap. The reserved default.schema key carries the default
// schema id.
type ConfigMapSource struct {
	ConfigMaps ConfigMapGetter
	Name       string
}

// Schemas implements Source.
func (s ConfigMapSource) Schemas(ctx context.Context) (string, map[string]string, bool) {
	data, err := s.ConfigMaps.Get(ctx, s.Name)
	if err != nil {
		logger.Debugf("cannot read identity schemas from ConfigMap %q: %v", s.Name, err)
		return "", nil, false
	}
	if len(data) == 0 {
		return "", nil, false
	}
	defaultID := strings.TrimSpace(data[DefaultSchemaIDFileName])
	if defaultID == "" {
		logger.Errorf("identity schemas ConfigMap %q does not contain %q", s.Name, DefaultSchemaIDFileName)
		return "", nil, false
	}
	encoded := make(map[string]string, len(data)-1)
	for id, doc := range data {
		if id == DefaultSchemaIDFileName {
			continue
		}
		encoded[id] = encode(doc)
	}
	return defaultID, encoded, true
}

// FSSource serves the default schemas shipped with the charm: every
// *.json file in the directory is a schema keyed by its base name, and
// default.schema holds the default schema id.
type FSSource struct {
	FS  fs.FS
	Dir string
}

// Schemas implements Source.
func (s FSSource) Schemas(_ context.Context) (string, map[string]string, bool) {
	rawID, err := fs.ReadFile(s.FS, path.Join(s.Dir, DefaultSchemaIDFileName))
	if err != nil {
		logger.Errorf("cannot read default schema id: %v", err)
		return "", nil, false
	}
	defaultID := strings.TrimSpace(string(rawID))

	entries, err := fs.Glob(s.FS, path.Join(s.Dir, "*.json"))
	if err != nil {
		return "", nil, false
	}
	encoded := make(map[string]string, len(entries))
	for _, name := range entries {
		doc, err := fs.ReadFile(s.FS, name)
		if err != nil {
			continue
		}
		id := strings.TrimSuffix(path.Base(name), ".json")
		encoded[id] = encode(string(doc))
	}
	if _, ok := encoded[defaultID]; !ok {
		logger.Errorf("default schema %q cannot be found", defaultID)
		return "", nil, false
	}
	return defaultID, encoded, true
}
