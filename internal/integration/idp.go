// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package integration

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/canonical/kratos-operator/core/relation"
)

// socialProviders are the providers that need nothing beyond a client
// id and secret.
var socialProviders = set.NewStrings(
	"google", "facebook", "gitlab", "slack", "spotify",
	"discord", "twitch", "netid", "yander", "vk", "dingtalk",
)

// Provider is one external OIDC provider published over the
// kratos-external-idp integration. Field requirements depend on the
// provider family, see validate.
type Provider struct {
	Provider     string `json:"provider"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`

	// IssuerURL is required for the generic and auth0 families.
	IssuerURL string `json:"issuer_url,omitempty"`

	// MicrosoftTenant is required for microsoft.
	MicrosoftTenant string `json:"microsoft_tenant,omitempty"`

	// Apple providers authenticate with a signed JWT instead of a
	// client secret.
	AppleTeamID       string `json:"apple_team_id,omitempty"`
	ApplePrivateKeyID string `json:"apple_private_key_id,omitempty"`
	ApplePrivateKey   string `json:"apple_private_key,omitempty"`

	Scope     string `json:"scope,omitempty"`
	ID        string `json:"id,omitempty"`
	Label     string `json:"label,omitempty"`
	MapperURL string `json:"mapper_url,omitempty"`

	RelationID int `json:"-"`
}

// rawProvider carries the databag aliases the integrator library
// accepts for some fields.
type rawProvider struct {
	Provider
	ProviderID        string `json:"provider_id"`
	MicrosoftTenantID string `json:"microsoft_tenant_id"`
	JsonnetMapper     string `json:"jsonnet_mapper"`
}

// LoadProviders reads every kratos-external-idp relation and collects
// the providers they publish. Entries that fail validation are dropped
// with a warning rather than failing the whole snapshot.
func LoadProviders(g relation.Getter) []Provider {
	rels, err := g.Relations(ExternalIDPIntegrationName)
	if err != nil {
		logger.Warningf("cannot read external idp relations: %v", err)
		return nil
	}

	var providers []Provider
	for _, rel := range rels {
		raw := rel.App["providers"]
		if raw == "" {
			continue
		}
		for _, p := range ParseProviderList([]byte(raw)) {
			p.RelationID = rel.ID
			providers = append(providers, p)
		}
	}
	return providers
}

// ParseProviderList parses a JSON array of provider entries. Invalid
// entries are dropped with a warning; malformed JSON yields nil.
func ParseProviderList(raw []byte) []Provider {
	var entries []rawProvider
	if err := json.Unmarshal(raw, &entries); err != nil {
		logger.Warningf("malformed providers data: %v", err)
		return nil
	}
	var providers []Provider
	for _, entry := range entries {
		p := entry.normalise()
		if err := p.validate(); err != nil {
			logger.Warningf("dropping provider: %v", err)
			continue
		}
		providers = append(providers, p)
	}
	return providers
}

func (r rawProvider) normalise() Provider {
	p := r.Provider
	if p.ID == "" {
		p.ID = r.ProviderID
	}
	if p.MicrosoftTenant == "" {
		p.MicrosoftTenant = r.MicrosoftTenantID
	}
	if p.MapperURL == "" && r.JsonnetMapper != "" {
		p.MapperURL = "base64://" + base64.StdEncoding.EncodeToString([]byte(r.JsonnetMapper))
	}
	if p.Scope == "" {
		if p.Provider == "github" {
			p.Scope = "user:email"
		} else {
			p.Scope = "profile email address phone"
		}
	}
	if p.Label == "" {
		p.Label = p.Provider
	}
	if p.ID == "" {
		p.ID = p.deriveID()
	}
	return p
}

// deriveID builds a stable identifier from the fields that uniquely
// determine the upstream provider, so reordering or relabelling in the
// databag never renames a provider in the rendered configuration.
func (p Provider) deriveID() string {
	material := p.ClientID
	switch p.Provider {
	case "generic", "auth0":
		material = fmt.Sprintf("%s_%s", p.ClientID, p.IssuerURL)
	case "microsoft":
		material = fmt.Sprintf("%s_%s", p.ClientID, p.MicrosoftTenant)
	}
	return fmt.Sprintf("%s_%x", p.Provider, sha1.Sum([]byte(material)))
}

func (p Provider) validate() error {
	if p.ClientID == "" {
		return errors.NotValidf("provider %q without client_id", p.Provider)
	}
	switch {
	case p.Provider == "generic" || p.Provider == "auth0":
		if p.IssuerURL == "" {
			return errors.NotValidf("provider %q without issuer_url", p.Provider)
		}
		if p.ClientSecret == "" {
			return errors.NotValidf("provider %q without client_secret", p.Provider)
		}
	case p.Provider == "microsoft":
		if p.MicrosoftTenant == "" {
			return errors.NotValidf("microsoft provider without tenant")
		}
		if p.ClientSecret == "" {
			return errors.NotValidf("provider %q without client_secret", p.Provider)
		}
	case p.Provider == "apple":
		if p.AppleTeamID == "" || p.ApplePrivateKeyID == "" || p.ApplePrivateKey == "" {
			return errors.NotValidf("apple provider without team id or private key")
		}
	case p.Provider == "github" || socialProviders.Contains(p.Provider):
		if p.ClientSecret == "" {
			return errors.NotValidf("provider %q without client_secret", p.Provider)
		}
	default:
		return errors.NotValidf("provider %q", p.Provider)
	}
	return nil
}

// IssuerFor returns the issuer URL rendered into the workload
// configuration; microsoft derives it from the tenant.
func (p Provider) IssuerFor() string {
	if p.Provider == "microsoft" {
		return fmt.Sprintf("https://login.microsoftonline.com/%s/v2.0", p.MicrosoftTenant)
	}
	return p.IssuerURL
}

// ScopeList splits the space-separated scope string.
func (p Provider) ScopeList() []string {
	return strings.Fields(p.Scope)
}
