// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package integration

import (
	"encoding/json"
	"strings"

	"github.com/canonical/kratos-operator/core/relation"
)

// RegistrationWebhookConfig is the snapshot of the
// kratos-registration-webhook integration. The provider publishes a
// webhook target that is invoked after self-service registration.
type RegistrationWebhookConfig struct {
	URL                string
	Body               string
	Method             string
	EmitAnalyticsEvent bool
	ResponseIgnore     bool
	ResponseParse      bool

	AuthType    string
	AuthName    string
	AuthIn      string
	AuthValue   string
	AuthEnabled bool
}

// LoadRegistrationWebhookConfig reads the registration webhook
// provider's data. The response and auth fields are nested JSON
// documents in the databag.
func LoadRegistrationWebhookConfig(g relation.Getter) *RegistrationWebhookConfig {
	rel, err := relation.First(g, RegistrationWebhookIntegrationName)
	if err != nil {
		logger.Debugf("no registration webhook integration data: %v", err)
		return &RegistrationWebhookConfig{}
	}
	if rel.App["url"] == "" || rel.App["body"] == "" {
		return &RegistrationWebhookConfig{}
	}

	cfg := &RegistrationWebhookConfig{
		URL:                rel.App["url"],
		Body:               rel.App["body"],
		Method:             rel.App["method"],
		EmitAnalyticsEvent: strings.EqualFold(rel.App["emit_analytics_event"], "true"),
	}

	if raw := rel.App["response"]; raw != "" {
		var response struct {
			Ignore bool `json:"ignore"`
			Parse  bool `json:"parse"`
		}
		if err := json.Unmarshal([]byte(raw), &response); err != nil {
			logger.Warningf("malformed registration webhook response config: %v", err)
			return &RegistrationWebhookConfig{}
		}
		cfg.ResponseIgnore = response.Ignore
		cfg.ResponseParse = response.Parse
	}

	if raw := rel.App["auth"]; raw != "" {
		var auth struct {
			Type   string `json:"type"`
			Config struct {
				Name  string `json:"name"`
				Value string `json:"value"`
				In    string `json:"in"`
			} `json:"config"`
		}
		if err := json.Unmarshal([]byte(raw), &auth); err != nil {
			logger.Warningf("malformed registration webhook auth config: %v", err)
			return &RegistrationWebhookConfig{}
		}
		cfg.AuthEnabled = true
		cfg.AuthType = auth.Type
		cfg.AuthName = auth.Config.Name
		cfg.AuthIn = auth.Config.In
		cfg.AuthValue = auth.Config.Value
	}
	return cfg
}

// IsReady reports whether a webhook target was published.
func (c *RegistrationWebhookConfig) IsReady() bool {
	return c.URL != ""
}

// ServiceConfigs projects the snapshot into configuration template
// inputs.
func (c *RegistrationWebhookConfig) ServiceConfigs() map[string]interface{} {
	if !c.IsReady() {
		return nil
	}
	cfg := map[string]interface{}{
		"registration_webhook_url":                  c.URL,
		"registration_webhook_body":                 c.Body,
		"registration_webhook_method":               c.Method,
		"registration_webhook_emit_analytics_event": c.EmitAnalyticsEvent,
		"registration_webhook_response_ignore":      c.ResponseIgnore,
		"registration_webhook_response_parse":       c.ResponseParse,
	}
	if c.AuthEnabled {
		cfg["registration_webhook_auth_enabled"] = true
		cfg["registration_webhook_auth_type"] = c.AuthType
		cfg["registration_webhook_auth_config_name"] = c.AuthName
		cfg["registration_webhook_auth_config_value"] = c.AuthValue
		cfg["registration_webhook_auth_config_in"] = c.AuthIn
	}
	return cfg
}
