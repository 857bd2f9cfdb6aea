// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm

import (
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/schema"

	"github.com/canonical/kratos-operator/internal/workload"
)

// logLevels are the values the workload accepts for log_level.
var logLevels = set.NewStrings("panic", "fatal", "error", "warn", "info", "debug", "trace")

var configChecker = schema.FieldMap(schema.Fields{
	"dev":                              schema.Bool(),
	"log_level":                        schema.String(),
	"http_proxy":                       schema.String(),
	"https_proxy":                      schema.String(),
	"no_proxy":                         schema.String(),
	"enable_local_idp":                 schema.Bool(),
	"enforce_mfa":                      schema.Bool(),
	"enable_passwordless_login_method": schema.Bool(),
	"enable_oidc_webauthn_sequencing":  schema.Bool(),
	"identity_schemas":                 schema.String(),
	"default_identity_schema_id":       schema.String(),
	"recovery_email_template":          schema.String(),
}, schema.Defaults{
	"dev":                              false,
	"log_level":                        "info",
	"http_proxy":                       "",
	"https_proxy":                      "",
	"no_proxy":                         "",
	"enable_local_idp":                 true,
	"enforce_mfa":                      false,
	"enable_passwordless_login_method": false,
	"enable_oidc_webauthn_sequencing":  false,
	"identity_schemas":                 "",
	"default_identity_schema_id":       "",
	"recovery_email_template":          "",
})

// Config is the coerced charm configuration.
type Config struct {
	Dev        bool
	LogLevel   string
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string

	EnableLocalIDP                bool
	EnforceMFA                    bool
	EnablePasswordlessLoginMethod bool
	EnableOIDCWebauthnSequencing  bool

	IdentitySchemas         string
	DefaultIdentitySchemaID string
	RecoveryEmailTemplate   string
}

// ParseConfig coerces the raw config-get output into a Config.
func ParseConfig(raw map[string]interface{}) (*Config, error) {
	coerced, err := configChecker.Coerce(raw, nil)
	if err != nil {
		return nil, errors.Annotate(err, "invalid charm configuration")
	}
	values := coerced.(map[string]interface{})
	return &Config{
		Dev:                           values["dev"].(bool),
		LogLevel:                      values["log_level"].(string),
		HTTPProxy:                     values["http_proxy"].(string),
		HTTPSProxy:                    values["https_proxy"].(string),
		NoProxy:                       values["no_proxy"].(string),
		EnableLocalIDP:                values["enable_local_idp"].(bool),
		EnforceMFA:                    values["enforce_mfa"].(bool),
		EnablePasswordlessLoginMethod: values["enable_passwordless_login_method"].(bool),
		EnableOIDCWebauthnSequencing:  values["enable_oidc_webauthn_sequencing"].(bool),
		IdentitySchemas:               values["identity_schemas"].(string),
		DefaultIdentitySchemaID:       values["default_identity_schema_id"].(string),
		RecoveryEmailTemplate:         values["recovery_email_template"].(string),
	}, nil
}

// LogLevelValid reports whether log_level is one the workload accepts.
func (c *Config) LogLevelValid() bool {
	return logLevels.Contains(c.LogLevel)
}

// MutuallyExclusive reports whether two features that cannot be enabled
// together both are. Enforced MFA requires the aal flow that webauthn
// sequencing replaces.
func (c *Config) MutuallyExclusive() bool {
	return c.EnforceMFA && c.EnableOIDCWebauthnSequencing
}

// EnvVars projects the configuration into workload environment
// variables.
func (c *Config) EnvVars() map[string]string {
	env := map[string]string{
		"DEV":         boolString(c.Dev),
		"LOG_LEVEL":   c.LogLevel,
		"HTTP_PROXY":  c.HTTPProxy,
		"HTTPS_PROXY": c.HTTPSProxy,
		"NO_PROXY":    c.NoProxy,
	}
	if c.RecoveryEmailTemplate != "" {
		env["COURIER_TEMPLATES_RECOVERY_CODE_VALID_EMAIL_BODY_HTML"] = "file://" + workload.EmailTemplateFilePath
	}
	if c.EnableOIDCWebauthnSequencing || (c.EnableLocalIDP && c.EnforceMFA) {
		env["SESSION_WHOAMI_REQUIRED_AAL"] = "highest_available"
	}
	return env
}

// ServiceConfigs projects the configuration into template inputs.
func (c *Config) ServiceConfigs() map[string]interface{} {
	return map[string]interface{}{
		"enable_local_idp":                 c.EnableLocalIDP,
		"enforce_mfa":                      c.EnforceMFA,
		"enable_passwordless_login_method": c.EnablePasswordlessLoginMethod,
		"enable_oidc_webauthn_sequencing":  c.EnableOIDCWebauthnSequencing,
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
