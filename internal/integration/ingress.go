// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package integration

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/canonical/kratos-operator/core/relation"
)

// PublicIngressData is the snapshot of the public-ingress integration
// (ingress per app). The zero value means "no external URL yet".
type PublicIngressData struct {
	// URL is the normalised external URL of the public API, "" when
	// the ingress has not resolved one yet.
	URL string
}

// LoadPublicIngressData reads the ingress provider's published URL.
func LoadPublicIngressData(g relation.Getter) *PublicIngressData {
	return &PublicIngressData{URL: loadIngressURL(g, PublicIngressIntegrationName)}
}

func loadIngressURL(g relation.Getter, endpoint string) string {
	rel, err := relation.First(g, endpoint)
	if err != nil {
		logger.Debugf("no %s integration data: %v", endpoint, err)
		return ""
	}
	raw := rel.App["ingress"]
	if raw == "" {
		return ""
	}
	var payload struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		logger.Warningf("malformed ingress data on %s: %v", endpoint, err)
		return ""
	}
	return normaliseURL(payload.URL)
}

// IsReady reports whether an external URL has been resolved.
func (d *PublicIngressData) IsReady() bool {
	return d.URL != ""
}

// Secured reports whether the external URL is served over TLS.
func (d *PublicIngressData) Secured() bool {
	u, err := url.Parse(d.URL)
	return err == nil && u.Scheme == "https"
}

// EnvVars projects the snapshot into workload environment variables.
func (d *PublicIngressData) EnvVars() map[string]string {
	if !d.IsReady() {
		return nil
	}
	return map[string]string{"SERVE_PUBLIC_BASE_URL": d.URL}
}

// ServiceConfigs projects the snapshot into configuration template
// inputs. The allowed return URL is the origin of the public URL, with
// a trailing slash, as the workload expects.
func (d *PublicIngressData) ServiceConfigs() map[string]interface{} {
	if !d.IsReady() {
		return nil
	}
	configs := map[string]interface{}{"public_url": d.URL}
	if u, err := url.Parse(d.URL); err == nil {
		configs["allowed_return_urls"] = []string{fmt.Sprintf("%s://%s/", u.Scheme, u.Host)}
	}
	return configs
}
