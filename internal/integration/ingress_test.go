// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package integration_test

import (
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/kratos-operator/core/relation"
	"github.com/canonical/kratos-operator/internal/integration"
)

type ingressSuite struct{}

var _ = gc.Suite(&ingressSuite{})

func publicIngressGetter(raw string) *stubGetter {
	return &stubGetter{rels: map[string][]*relation.Relation{
		integration.PublicIngressIntegrationName: {{ID: 5, App: relation.Data{"ingress": raw}}},
	}}
}

func (s *ingressSuite) TestReady(c *gc.C) {
	d := integration.LoadPublicIngressData(publicIngressGetter(`{"url": "https://public.local/model-kratos/"}`))
	c.Assert(d.IsReady(), jc.IsTrue)
	c.Assert(d.URL, gc.Equals, "https://public.local/model-kratos")
	c.Assert(d.Secured(), jc.IsTrue)
	c.Assert(d.EnvVars(), jc.DeepEquals, map[string]string{
		"SERVE_PUBLIC_BASE_URL": "https://public.local/model-kratos",
	})
}

func (s *ingressSuite) TestAllowedReturnURLIsOrigin(c *gc.C) {
	d := integration.LoadPublicIngressData(publicIngressGetter(`{"url": "https://public.local/model-kratos"}`))
	c.Assert(d.ServiceConfigs(), jc.DeepEquals, map[string]interface{}{
		"public_url":          "https://public.local/model-kratos",
		"allowed_return_urls": []string{"https://public.local/"},
	})
}

func (s *ingressSuite) TestNotReady(c *gc.C) {
	c.Assert(integration.LoadPublicIngressData(&stubGetter{}).IsReady(), jc.IsFalse)
	c.Assert(integration.LoadPublicIngressData(publicIngressGetter("")).IsReady(), jc.IsFalse)
	c.Assert(integration.LoadPublicIngressData(publicIngressGetter("{")).IsReady(), jc.IsFalse)
}

func (s *ingressSuite) TestInsecureURL(c *gc.C) {
	d := integration.LoadPublicIngressData(publicIngressGetter(`{"url": "http://public.local/model-kratos"}`))
	c.Assert(d.Secured(), jc.IsFalse)
}

func (s *ingressSuite) TestInternalIngressURL(c *gc.C) {
	g := &stubGetter{rels: map[string][]*relation.Relation{
		integration.InternalIngressIntegrationName: {{ID: 9, App: relation.Data{
			"external_host": "traefik.local",
			"scheme":        "https",
		}}},
	}}
	d := integration.LoadInternalIngressData(g)
	c.Assert(d.Exists(), jc.IsTrue)
	c.Assert(d.IsReady(), jc.IsTrue)
	c.Assert(d.URL("testing", "kratos"), gc.Equals, "https://traefik.local/testing-kratos")
}

func (s *ingressSuite) TestInternalIngressUnresolved(c *gc.C) {
	g := &stubGetter{rels: map[string][]*relation.Relation{
		integration.InternalIngressIntegrationName: {{ID: 9, App: relation.Data{}}},
	}}
	d := integration.LoadInternalIngressData(g)
	c.Assert(d.Exists(), jc.IsTrue)
	c.Assert(d.IsReady(), jc.IsFalse)
	c.Assert(d.URL("testing", "kratos"), gc.Equals, "")
}

func (s *ingressSuite) TestRouteConfig(c *gc.C) {
	g := &stubGetter{rels: map[string][]*relation.Relation{
		integration.InternalIngressIntegrationName: {{ID: 9, App: relation.Data{
			"external_host": "traefik.local",
		}}},
	}}
	d := integration.LoadInternalIngressData(g)
	cfg := d.RouteConfig("testing", "kratos", 4434, 4433)

	http, ok := cfg["http"].(map[string]interface{})
	c.Assert(ok, jc.IsTrue)
	routers, ok := http["routers"].(map[string]interface{})
	c.Assert(ok, jc.IsTrue)
	c.Assert(routers, gc.HasLen, 4)

	admin, ok := routers["juju-testing-kratos-admin-api-router"].(map[string]interface{})
	c.Assert(ok, jc.IsTrue)
	c.Assert(admin["rule"], gc.Equals, "PathPrefix(`/testing-kratos/admin`)")

	services, ok := http["services"].(map[string]interface{})
	c.Assert(ok, jc.IsTrue)
	adminSvc, ok := services["juju-testing-kratos-admin-api-service"].(map[string]interface{})
	c.Assert(ok, jc.IsTrue)
	lb, ok := adminSvc["loadBalancer"].(map[string]interface{})
	c.Assert(ok, jc.IsTrue)
	servers, ok := lb["servers"].([]map[string]interface{})
	c.Assert(ok, jc.IsTrue)
	c.Assert(servers[0]["url"], gc.Equals, "http://kratos.testing.svc.cluster.local:4434")
}
