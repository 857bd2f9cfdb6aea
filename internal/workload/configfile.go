// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package workload

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"text/template"

	"github.com/juju/errors"
)

//go:embed templates/kratos.yaml.tmpl
var configTemplateText string

var configTemplate = template.Must(template.New("kratos.yaml").Parse(configTemplateText))

// ConfigSource contributes values to the workload configuration file.
// A nil contribution is valid.
type ConfigSource interface {
	ServiceConfigs() map[string]interface{}
}

// OIDCProvider is one provider entry as rendered into the oidc method
// configuration. The mapper URL is already resolved.
type OIDCProvider struct {
	ID              string
	Provider        string
	Label           string
	ClientID        string
	ClientSecret    string
	IssuerURL       string
	MicrosoftTenant string

	AppleTeamID       string
	ApplePrivateKeyID string
	ApplePrivateKey   string

	MapperURL string
	Scope     []string
}

// ConfigFile is an immutable rendering of the workload configuration.
type ConfigFile struct {
	content string
}

// NewConfigFile wraps raw configuration content.
func NewConfigFile(content string) *ConfigFile {
	return &ConfigFile{content: content}
}

// RenderConfigFile merges the sources into one value set and renders
// the configuration template with it. Later sources override earlier
// ones on key collisions.
func RenderConfigFile(sources ...ConfigSource) (*ConfigFile, error) {
	values := make(map[string]interface{})
	for _, source := range sources {
		for k, v := range source.ServiceConfigs() {
			values[k] = v
		}
	}
	var buf bytes.Buffer
	if err := configTemplate.Execute(&buf, values); err != nil {
		return nil, errors.Annotate(err, "cannot render configuration")
	}
	return &ConfigFile{content: buf.String()}, nil
}

// ConfigFileFromContainer reads the configuration currently in the
// container. A missing file yields the empty configuration.
func ConfigFileFromContainer(container Container) *ConfigFile {
	content, err := container.Pull(ConfigFilePath)
	if err != nil {
		if !errors.IsNotFound(err) {
			logger.Warningf("cannot read current configuration: %v", err)
		}
		return &ConfigFile{}
	}
	return &ConfigFile{content: string(content)}
}

// Content returns the rendered configuration.
func (f *ConfigFile) Content() string {
	return f.content
}

// Digest returns a content hash suitable for change detection.
func (f *ConfigFile) Digest() string {
	sum := sha256.Sum256([]byte(f.content))
	return hex.EncodeToString(sum[:])
}

// Equal reports whether two configurations have identical content.
func (f *ConfigFile) Equal(other *ConfigFile) bool {
	return f.Digest() == other.Digest()
}
