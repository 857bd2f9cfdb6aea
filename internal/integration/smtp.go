// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package integration

import (
	"fmt"
	"strings"

	"github.com/canonical/kratos-operator/core/relation"
	"github.com/canonical/kratos-operator/core/secrets"
)

// TransportSecurity is the SMTP channel security mode published by the
// smtp integrator.
type TransportSecurity string

const (
	TransportSecurityNone     TransportSecurity = "none"
	TransportSecurityTLS      TransportSecurity = "tls"
	TransportSecurityStartTLS TransportSecurity = "starttls"
)

// SMTPConfig is the snapshot of the smtp integration. It is always
// structurally ready: without a relation it falls back to the local
// development mail sink.
type SMTPConfig struct {
	Host              string
	Port              string
	Username          string
	Password          string
	TransportSecurity TransportSecurity
	SkipSSLVerify     bool
}

func defaultSMTPConfig() *SMTPConfig {
	return &SMTPConfig{
		Host:              "mailslurper",
		Port:              "1025",
		Username:          "test",
		Password:          "test",
		TransportSecurity: TransportSecurityTLS,
		SkipSSLVerify:     true,
	}
}

// LoadSMTPConfig reads the smtp integrator's data. The password may be
// carried inline or referenced as a juju secret id; secret resolution
// failures degrade to the development defaults.
func LoadSMTPConfig(g relation.Getter, store secrets.Store) *SMTPConfig {
	rel, err := relation.First(g, SMTPIntegrationName)
	if err != nil {
		logger.Debugf("no smtp integration data, using development defaults")
		return defaultSMTPConfig()
	}
	if rel.App["host"] == "" {
		return defaultSMTPConfig()
	}

	password := rel.App["password"]
	if password == "" {
		if passwordID := rel.App["password_id"]; passwordID != "" {
			content, err := store.GetByURI(passwordID)
			if err != nil {
				logger.Warningf("cannot resolve smtp password secret: %v", err)
				return defaultSMTPConfig()
			}
			password = content["password"]
		}
	}

	transport := TransportSecurity(strings.ToLower(rel.App["transport_security"]))
	switch transport {
	case TransportSecurityNone, TransportSecurityTLS, TransportSecurityStartTLS:
	default:
		transport = TransportSecurityNone
	}

	return &SMTPConfig{
		Host:              rel.App["host"],
		Port:              rel.App["port"],
		Username:          rel.App["user"],
		Password:          password,
		TransportSecurity: transport,
		SkipSSLVerify:     strings.EqualFold(rel.App["skip_ssl_verify"], "true"),
	}
}

// ConnectionURI derives the courier connection URI. The scheme follows
// the transport security mode: "none" maps to plain smtp with STARTTLS
// disabled (and in that branch skip_ssl_verify is ignored), "tls" maps
// to smtps, "starttls" to smtp.
func (c *SMTPConfig) ConnectionURI() string {
	var userinfo string
	if c.Username != "" {
		userinfo = fmt.Sprintf("%s:%s@", c.Username, c.Password)
	}
	authority := fmt.Sprintf("%s%s:%s", userinfo, c.Host, c.Port)

	switch c.TransportSecurity {
	case TransportSecurityNone:
		return fmt.Sprintf("smtp://%s/?disable_starttls=true", authority)
	case TransportSecurityTLS:
		if c.SkipSSLVerify {
			return fmt.Sprintf("smtps://%s/?skip_ssl_verify=true", authority)
		}
		return fmt.Sprintf("smtps://%s/", authority)
	default:
		if c.SkipSSLVerify {
			return fmt.Sprintf("smtp://%s/?skip_ssl_verify=true", authority)
		}
		return fmt.Sprintf("smtp://%s/", authority)
	}
}

// EnvVars projects the snapshot into workload environment variables.
func (c *SMTPConfig) EnvVars() map[string]string {
	return map[string]string{"COURIER_SMTP_CONNECTION_URI": c.ConnectionURI()}
}
