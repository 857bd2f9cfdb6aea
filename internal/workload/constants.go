// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package workload manages the kratos service running in the sidecar
// container: its pebble layer, configuration file, environment and
// command line.
package workload

import "github.com/juju/loggo/v2"

var logger = loggo.GetLogger("kratos-operator.workload")

const (
	// ContainerName is the workload container declared in the charm
	// metadata, and ServiceName the pebble service inside it.
	ContainerName = "kratos"
	ServiceName   = "kratos"

	// PublicPort serves the self-service API, AdminPort the
	// administrative API.
	PublicPort = 4433
	AdminPort  = 4434

	ConfigDirPath  = "/etc/config/kratos"
	ConfigFilePath = ConfigDirPath + "/kratos.yaml"

	// EmailTemplateFilePath holds the operator-provided recovery email
	// body template.
	EmailTemplateFilePath = "/etc/config/templates/recovery-body.html.gotmpl"
)

// SocketPath is the pebble socket of the workload container as mounted
// into the charm container.
func SocketPath() string {
	return "/charm/containers/" + ContainerName + "/pebble.socket"
}
