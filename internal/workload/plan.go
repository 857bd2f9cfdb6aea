// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package workload

import (
	"github.com/juju/errors"
)

// Plan applies the layer and configuration to the container. A changed
// configuration file is pushed and the service restarted to pick it
// up; an unchanged one only triggers a replan, which is a no-op unless
// the service environment changed. Reports whether a restart happened.
func Plan(container Container, layer *Layer, config *ConfigFile) (bool, error) {
	if err := container.AddLayer(ServiceName, layer); err != nil {
		return false, errors.Trace(err)
	}

	current := ConfigFileFromContainer(container)
	if !config.Equal(current) {
		if err := container.Push(ConfigFilePath, []byte(config.Content())); err != nil {
			return false, errors.Trace(err)
		}
		if err := container.Restart(ServiceName); err != nil {
			return false, errors.Annotate(err, "pebble failed to restart the workload")
		}
		return true, nil
	}
	if err := container.Replan(); err != nil {
		return false, errors.Annotate(err, "pebble failed to replan services")
	}
	return false, nil
}
