// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package integration_test

import (
	"encoding/json"

	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/kratos-operator/core/relation"
	"github.com/canonical/kratos-operator/internal/integration"
)

type idpSuite struct{}

var _ = gc.Suite(&idpSuite{})

func idpGetter(c *gc.C, entries ...map[string]interface{}) *stubGetter {
	raw, err := json.Marshal(entries)
	c.Assert(err, jc.ErrorIsNil)
	return &stubGetter{rels: map[string][]*relation.Relation{
		integration.ExternalIDPIntegrationName: {{
			ID:       3,
			Endpoint: integration.ExternalIDPIntegrationName,
			App:      relation.Data{"providers": string(raw)},
		}},
	}}
}

func (s *idpSuite) TestGenericProviderStableID(c *gc.C) {
	g := idpGetter(c, map[string]interface{}{
		"provider":      "generic",
		"client_id":     "client_id",
		"client_secret": "cs",
		"issuer_url":    "https://example.com/issuer",
	})
	providers := integration.LoadProviders(g)
	c.Assert(providers, gc.HasLen, 1)
	c.Assert(providers[0].ID, gc.Equals, "generic_e3250433015ef2d4c77c61ea18b4a6df53606666")
	c.Assert(providers[0].RelationID, gc.Equals, 3)
	c.Assert(providers[0].Label, gc.Equals, "generic")
	c.Assert(providers[0].ScopeList(), jc.DeepEquals, []string{"profile", "email", "address", "phone"})
}

func (s *idpSuite) TestMicrosoftTenantInID(c *gc.C) {
	g := idpGetter(c, map[string]interface{}{
		"provider":            "microsoft",
		"client_id":           "ms-client",
		"client_secret":       "cs",
		"microsoft_tenant_id": "4242424242",
	})
	providers := integration.LoadProviders(g)
	c.Assert(providers, gc.HasLen, 1)
	c.Assert(providers[0].ID, gc.Equals, "microsoft_a4dc309e1b107439659462be009f7e55378a8259")
	c.Assert(providers[0].MicrosoftTenant, gc.Equals, "4242424242")
	c.Assert(providers[0].IssuerFor(), gc.Equals, "https://login.microsoftonline.com/4242424242/v2.0")
}

func (s *idpSuite) TestSocialProviderDefaultID(c *gc.C) {
	g := idpGetter(c, map[string]interface{}{
		"provider":      "google",
		"client_id":     "g-client",
		"client_secret": "cs",
	})
	providers := integration.LoadProviders(g)
	c.Assert(providers, gc.HasLen, 1)
	c.Assert(providers[0].ID, gc.Equals, "google_f19b6df38ba435bcf4b056ca8692a9f9b369e773")
}

func (s *idpSuite) TestExplicitIDWins(c *gc.C) {
	g := idpGetter(c, map[string]interface{}{
		"provider":      "google",
		"client_id":     "g-client",
		"client_secret": "cs",
		"provider_id":   "my-provider",
	})
	providers := integration.LoadProviders(g)
	c.Assert(providers, gc.HasLen, 1)
	c.Assert(providers[0].ID, gc.Equals, "my-provider")
}

func (s *idpSuite) TestGithubScopeDefault(c *gc.C) {
	g := idpGetter(c, map[string]interface{}{
		"provider":      "github",
		"client_id":     "gh-client",
		"client_secret": "cs",
	})
	providers := integration.LoadProviders(g)
	c.Assert(providers, gc.HasLen, 1)
	c.Assert(providers[0].ScopeList(), jc.DeepEquals, []string{"user:email"})
}

func (s *idpSuite) TestJsonnetMapperEncoded(c *gc.C) {
	g := idpGetter(c, map[string]interface{}{
		"provider":       "google",
		"client_id":      "g-client",
		"client_secret":  "cs",
		"jsonnet_mapper": "function(claims) claims",
	})
	providers := integration.LoadProviders(g)
	c.Assert(providers, gc.HasLen, 1)
	c.Assert(providers[0].MapperURL, gc.Equals, "base64://ZnVuY3Rpb24oY2xhaW1zKSBjbGFpbXM=")
}

func (s *idpSuite) TestInvalidEntriesDropped(c *gc.C) {
	g := idpGetter(c,
		map[string]interface{}{
			"provider":      "generic",
			"client_id":     "no-issuer",
			"client_secret": "cs",
		},
		map[string]interface{}{
			"provider":  "unknownprovider",
			"client_id": "x",
		},
		map[string]interface{}{
			"provider":      "google",
			"client_id":     "g-client",
			"client_secret": "cs",
		},
	)
	providers := integration.LoadProviders(g)
	c.Assert(providers, gc.HasLen, 1)
	c.Assert(providers[0].Provider, gc.Equals, "google")
}

func (s *idpSuite) TestAppleRequiresKeyMaterial(c *gc.C) {
	g := idpGetter(c, map[string]interface{}{
		"provider":      "apple",
		"client_id":     "a-client",
		"apple_team_id": "team",
	})
	c.Assert(integration.LoadProviders(g), gc.HasLen, 0)
}

func (s *idpSuite) TestMalformedDatabag(c *gc.C) {
	g := &stubGetter{rels: map[string][]*relation.Relation{
		integration.ExternalIDPIntegrationName: {{
			ID:  3,
			App: relation.Data{"providers": "not json"},
		}},
	}}
	c.Assert(integration.LoadProviders(g), gc.HasLen, 0)
}
