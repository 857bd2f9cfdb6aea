// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package integration

import (
	"fmt"

	"github.com/canonical/kratos-operator/core/relation"
)

// InternalIngressData is the snapshot of the internal-ingress
// (traefik-route) integration. The requirer submits a raw router
// configuration and the provider answers with the external host it
// serves.
type InternalIngressData struct {
	RelationID   int
	ExternalHost string
	Scheme       string

	exists bool
}

// LoadInternalIngressData reads the traefik-route provider data.
func LoadInternalIngressData(g relation.Getter) *InternalIngressData {
	rel, err := relation.First(g, InternalIngressIntegrationName)
	if err != nil {
		logger.Debugf("no internal-ingress integration data: %v", err)
		return &InternalIngressData{}
	}
	scheme := rel.App["scheme"]
	if scheme == "" {
		scheme = "http"
	}
	return &InternalIngressData{
		RelationID:   rel.ID,
		ExternalHost: rel.App["external_host"],
		Scheme:       scheme,
		exists:       true,
	}
}

// Exists reports whether the internal-ingress relation is established.
func (d *InternalIngressData) Exists() bool {
	return d.exists
}

// IsReady reports whether the provider has resolved an external host.
func (d *InternalIngressData) IsReady() bool {
	return d.exists && d.ExternalHost != ""
}

// URL returns the externally reachable base URL for this application
// behind the internal ingress, or "" when unresolved.
func (d *InternalIngressData) URL(model, app string) string {
	if !d.IsReady() {
		return ""
	}
	return fmt.Sprintf("%s://%s/%s-%s", d.Scheme, d.ExternalHost, model, app)
}

// RouteConfig builds the raw Traefik configuration submitted to the
// route provider: one router each for the admin and public APIs, on
// both the web and websecure entry points, with a strip-prefix
// middleware matching the ingress-per-app path layout.
func (d *InternalIngressData) RouteConfig(model, app string, adminPort, publicPort int) map[string]interface{} {
	externalPath := fmt.Sprintf("%s-%s", model, app)
	middlewareName := fmt.Sprintf("juju-sidecar-noprefix-%s-%s", model, app)
	adminService := fmt.Sprintf("juju-%s-%s-admin-api-service", model, app)
	publicService := fmt.Sprintf("juju-%s-%s-public-api-service", model, app)

	middlewares := map[string]interface{}{
		middlewareName: map[string]interface{}{
			"stripPrefix": map[string]interface{}{
				"forceSlash": false,
				"prefixes":   []string{"/" + externalPath},
			},
		},
	}

	tls := map[string]interface{}{
		"domains": []map[string]interface{}{{
			"main": d.ExternalHost,
			"sans": []string{"*." + d.ExternalHost},
		}},
	}

	router := func(entryPoints []string, rule, service string, withTLS bool) map[string]interface{} {
		r := map[string]interface{}{
			"entryPoints": entryPoints,
			"rule":        rule,
			"middlewares": []string{middlewareName},
			"service":     service,
		}
		if withTLS {
			r["tls"] = tls
		}
		return r
	}

	adminRule := fmt.Sprintf("PathPrefix(`/%s/admin`)", externalPath)
	publicRule := fmt.Sprintf("PathPrefix(`/%s`)", externalPath)
	routers := map[string]interface{}{
		fmt.Sprintf("juju-%s-admin-api-router", externalPath):      router([]string{"web"}, adminRule, adminService, false),
		fmt.Sprintf("juju-%s-admin-api-router-tls", externalPath):  router([]string{"websecure"}, adminRule, adminService, true),
		fmt.Sprintf("juju-%s-public-api-router", externalPath):     router([]string{"web"}, publicRule, publicService, false),
		fmt.Sprintf("juju-%s-public-api-router-tls", externalPath): router([]string{"websecure"}, publicRule, publicService, true),
	}

	services := map[string]interface{}{
		adminService: map[string]interface{}{
			"loadBalancer": map[string]interface{}{
				"servers": []map[string]interface{}{{
					"url": fmt.Sprintf("http://%s.%s.svc.cluster.local:%d", app, model, adminPort),
				}},
			},
		},
		publicService: map[string]interface{}{
			"loadBalancer": map[string]interface{}{
				"servers": []map[string]interface{}{{
					"url": fmt.Sprintf("http://%s.%s.svc.cluster.local:%d", app, model, publicPort),
				}},
			},
		},
	}

	return map[string]interface{}{
		"http": map[string]interface{}{
			"routers":     routers,
			"services":    services,
			"middlewares": middlewares,
		},
	}
}
