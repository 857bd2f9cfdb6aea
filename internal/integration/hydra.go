// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package integration

import (
	"github.com/canonical/kratos-operator/core/relation"
)

// HydraEndpoints is the snapshot of the hydra-endpoint-info
// integration, pointing at the upstream OAuth2 provider.
type HydraEndpoints struct {
	AdminEndpoint  string
	PublicEndpoint string
}

// LoadHydraEndpoints reads the hydra provider's endpoint data.
func LoadHydraEndpoints(g relation.Getter) *HydraEndpoints {
	rel, err := relation.First(g, HydraIntegrationName)
	if err != nil {
		logger.Debugf("no hydra integration data: %v", err)
		return &HydraEndpoints{}
	}
	return &HydraEndpoints{
		AdminEndpoint:  rel.App["admin_endpoint"],
		PublicEndpoint: rel.App["public_endpoint"],
	}
}

// IsReady reports whether the OAuth2 provider's admin endpoint is
// known.
func (e *HydraEndpoints) IsReady() bool {
	return e.AdminEndpoint != ""
}

// ServiceConfigs projects the snapshot into configuration template
// inputs.
func (e *HydraEndpoints) ServiceConfigs() map[string]interface{} {
	if !e.IsReady() {
		return nil
	}
	return map[string]interface{}{"oauth2_provider_url": e.AdminEndpoint}
}
