// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package integration holds one immutable snapshot type per external
// integration of the charm. Snapshots are built exclusively by Load
// functions that read the currently visible relation data and never
// fail: malformed or missing remote data degrades to the zero-valued
// snapshot, which each consumer can distinguish from a ready one
// through the snapshot's own readiness accessors.
package integration

import (
	"net/url"
	"strings"

	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("kratos-operator.integration")

// Endpoint names, as declared in the charm metadata.
const (
	PeerIntegrationName                = "kratos-peers"
	DatabaseIntegrationName            = "pg-database"
	PublicIngressIntegrationName       = "public-ingress"
	AdminIngressIntegrationName        = "admin-ingress"
	InternalIngressIntegrationName     = "internal-ingress"
	HydraIntegrationName               = "hydra-endpoint-info"
	LoginUIIntegrationName             = "ui-endpoint-info"
	TracingIntegrationName             = "tracing"
	SMTPIntegrationName                = "smtp"
	ExternalIDPIntegrationName         = "kratos-external-idp"
	KratosInfoIntegrationName          = "kratos-info"
	RegistrationWebhookIntegrationName = "kratos-registration-webhook"
	CertTransferIntegrationName        = "receive-ca-cert"
)

// normaliseURL trims trailing slashes and drops any query, params or
// fragment, returning "" for anything that does not parse as a URL.
func normaliseURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String()
}
