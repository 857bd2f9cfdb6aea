// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package workload

import (
	"fmt"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

// Layer is the pebble layer controlling the workload service.
type Layer struct {
	Summary     string             `yaml:"summary"`
	Description string             `yaml:"description"`
	Services    map[string]Service `yaml:"services"`
	Checks      map[string]Check   `yaml:"checks,omitempty"`
}

// Service is one pebble service entry.
type Service struct {
	Override    string            `yaml:"override"`
	Summary     string            `yaml:"summary,omitempty"`
	Command     string            `yaml:"command"`
	Startup     string            `yaml:"startup"`
	Environment map[string]string `yaml:"environment,omitempty"`
}

// Check is one pebble health check entry.
type Check struct {
	Override string    `yaml:"override"`
	Level    string    `yaml:"level"`
	HTTP     HTTPCheck `yaml:"http"`
}

// HTTPCheck is the http probe of a check.
type HTTPCheck struct {
	URL string `yaml:"url"`
}

// Data marshals the layer for submission to pebble.
func (l *Layer) Data() ([]byte, error) {
	data, err := yaml.Marshal(l)
	return data, errors.Annotate(err, "cannot marshal pebble layer")
}

// NewLayer builds the workload service layer with the given
// environment. The service starts disabled: the convergence pass
// starts it explicitly once the configuration is in place.
func NewLayer(env map[string]string) *Layer {
	return &Layer{
		Summary:     "pebble layer",
		Description: "pebble layer for kratos",
		Services: map[string]Service{
			ServiceName: {
				Override:    "replace",
				Summary:     "entrypoint of the kratos image",
				Command:     fmt.Sprintf("kratos serve all --config %s", ConfigFilePath),
				Startup:     "disabled",
				Environment: env,
			},
		},
		Checks: map[string]Check{
			"ready": {
				Override: "replace",
				Level:    "ready",
				HTTP:     HTTPCheck{URL: fmt.Sprintf("http://localhost:%d/admin/health/ready", AdminPort)},
			},
			"alive": {
				Override: "replace",
				Level:    "alive",
				HTTP:     HTTPCheck{URL: fmt.Sprintf("http://localhost:%d/admin/health/alive", AdminPort)},
			},
		},
	}
}
