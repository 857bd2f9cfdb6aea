// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"

	"github.com/canonical/kratos-operator/internal/integration"
	"github.com/canonical/kratos-operator/internal/workload"
)

// publishRedirectURIs writes the OAuth redirect URI of every provider
// back to the relation that registered it, so the integrator can
// configure the upstream provider. Re-run on every pass; the databag
// write is idempotent.
func (c *Charm) publishRedirectURIs(providers []integration.Provider, publicURL string) error {
	if publicURL == "" || len(providers) == 0 {
		return nil
	}
	base := strings.TrimRight(publicURL, "/")

	type registered struct {
		ProviderID  string `json:"provider_id"`
		RedirectURI string `json:"redirect_uri"`
	}
	byRelation := map[int][]registered{}
	for _, p := range providers {
		byRelation[p.RelationID] = append(byRelation[p.RelationID], registered{
			ProviderID:  p.ID,
			RedirectURI: fmt.Sprintf("%s/self-service/methods/oidc/callback/%s", base, p.ID),
		})
	}

	for relationID, entries := range byRelation {
		encoded, err := json.Marshal(entries)
		if err != nil {
			return errors.Trace(err)
		}
		err = c.env.SetRelationData(relationID, map[string]string{"providers": string(encoded)})
		if err != nil {
			return errors.Annotatef(err, "cannot publish redirect URIs on relation %d", relationID)
		}
	}
	return nil
}

// publishInfo sends the service endpoints and ConfigMap coordinates to
// every kratos-info relation, one atomic databag update each.
func (c *Charm) publishInfo(cfg *Config, public *integration.PublicIngressData) error {
	rels, err := c.env.Relations(integration.KratosInfoIntegrationName)
	if err != nil {
		return errors.Trace(err)
	}
	if len(rels) == 0 {
		return nil
	}

	internal := integration.LoadInternalIngressData(c.env)
	internalURL := internal.URL(c.env.ModelName(), c.env.AppName())
	adminEndpoint := c.adminEndpoint(internalURL)
	publicEndpoint := c.publicEndpoint(internalURL)

	externalURL := public.URL
	if externalURL == "" {
		externalURL = publicEndpoint
	}
	if !strings.HasSuffix(externalURL, "/") {
		externalURL += "/"
	}

	databag := map[string]string{
		"admin_endpoint":                   adminEndpoint,
		"public_endpoint":                  publicEndpoint,
		"login_browser_endpoint":           externalURL + "self-service/login/browser",
		"sessions_endpoint":                publicEndpoint + "/sessions/whoami",
		"providers_configmap_name":         ProvidersConfigMapName,
		"schemas_configmap_name":           SchemasConfigMapName,
		"configmaps_namespace":             c.env.ModelName(),
		"mfa_enabled":                      boolString(cfg.EnforceMFA),
		"oidc_webauthn_sequencing_enabled": boolString(cfg.EnableOIDCWebauthnSequencing),
	}
	for _, rel := range rels {
		if err := c.env.SetRelationData(rel.ID, databag); err != nil {
			return errors.Annotatef(err, "cannot publish kratos info on relation %d", rel.ID)
		}
	}
	return nil
}

// submitRouteConfig hands the Traefik router configuration to the
// internal ingress provider.
func (c *Charm) submitRouteConfig() error {
	internal := integration.LoadInternalIngressData(c.env)
	if !internal.Exists() {
		return nil
	}
	route := internal.RouteConfig(c.env.ModelName(), c.env.AppName(), workload.AdminPort, workload.PublicPort)
	encoded, err := yaml.Marshal(route)
	if err != nil {
		return errors.Trace(err)
	}
	err = c.env.SetRelationData(internal.RelationID, map[string]string{"config": string(encoded)})
	return errors.Annotate(err, "cannot submit the ingress route configuration")
}
