// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package integration

import (
	"github.com/canonical/kratos-operator/core/relation"
)

// loginUIRequiredKeys is the fixed key set the login UI provider must
// publish before its endpoints are usable.
var loginUIRequiredKeys = []string{
	"login_url",
	"error_url",
	"settings_url",
	"recovery_url",
	"webauthn_settings_url",
}

// LoginUIEndpoints is the snapshot of the ui-endpoint-info integration.
//
// Two distinct non-ready conditions exist: the provider has not
// published all required keys yet (missing data), and the provider has
// published them but with an empty login_url (temporarily
// unavailable). Callers that care about the difference use Missing and
// Unavailable; IsReady covers both.
type LoginUIEndpoints struct {
	LoginURL            string
	ErrorURL            string
	SettingsURL         string
	RecoveryURL         string
	WebauthnSettingsURL string

	complete bool
}

// LoadLoginUIEndpoints reads the login UI provider's endpoint set.
func LoadLoginUIEndpoints(g relation.Getter) *LoginUIEndpoints {
	rel, err := relation.First(g, LoginUIIntegrationName)
	if err != nil {
		logger.Debugf("no login UI integration data: %v", err)
		return &LoginUIEndpoints{}
	}
	for _, key := range loginUIRequiredKeys {
		// A present-but-empty login_url is the distinct "published but
		// down" condition; any other empty value is missing data.
		value, ok := rel.App[key]
		if !ok || (value == "" && key != "login_url") {
			logger.Debugf("login UI data missing key %q", key)
			return &LoginUIEndpoints{}
		}
	}
	return &LoginUIEndpoints{
		LoginURL:            rel.App["login_url"],
		ErrorURL:            rel.App["error_url"],
		SettingsURL:         rel.App["settings_url"],
		RecoveryURL:         rel.App["recovery_url"],
		WebauthnSettingsURL: rel.App["webauthn_settings_url"],
		complete:            true,
	}
}

// Missing reports whether the provider has not yet published the full
// required key set.
func (e *LoginUIEndpoints) Missing() bool {
	return !e.complete
}

// Unavailable reports whether the provider published all keys but with
// an empty default URL, i.e. the login UI is temporarily down.
func (e *LoginUIEndpoints) Unavailable() bool {
	return e.complete && e.LoginURL == ""
}

// IsReady reports whether the endpoints can be rendered into workload
// configuration.
func (e *LoginUIEndpoints) IsReady() bool {
	return e.complete && e.LoginURL != ""
}

// ServiceConfigs projects the snapshot into configuration template
// inputs.
func (e *LoginUIEndpoints) ServiceConfigs() map[string]interface{} {
	if !e.IsReady() {
		return nil
	}
	return map[string]interface{}{
		"default_browser_return_url": e.LoginURL,
		"login_ui_url":               e.LoginURL,
		"error_ui_url":               e.ErrorURL,
		"settings_ui_url":            e.SettingsURL,
		"recovery_ui_url":            e.RecoveryURL,
		"webauthn_settings_url":      e.WebauthnSettingsURL,
	}
}
