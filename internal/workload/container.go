// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package workload

import (
	"bytes"
	"strings"
	"time"

	"github.com/canonical/pebble/client"
	"github.com/juju/errors"
)

// Container is the charm's view of the workload container, backed by
// the pebble API.
type Container interface {
	// CanConnect reports whether the pebble daemon in the container is
	// up and answering.
	CanConnect() bool

	// Push writes a file into the container, creating parent
	// directories as needed.
	Push(path string, content []byte) error

	// Pull reads a file from the container, returning a NotFound error
	// when the path does not exist.
	Pull(path string) ([]byte, error)

	// Exec runs a command to completion and returns its stdout.
	Exec(command []string, env map[string]string, timeout time.Duration) (string, error)

	// AddLayer combines the given layer into the pebble plan under the
	// given label.
	AddLayer(label string, layer *Layer) error

	// Restart stops and starts the named service.
	Restart(service string) error

	// Stop stops the named service.
	Stop(service string) error

	// Replan applies the current plan, starting or restarting only
	// services whose configuration changed.
	Replan() error

	// ServiceRunning reports whether the named service is active.
	ServiceRunning(service string) bool
}

type pebbleContainer struct {
	pebble *client.Client
}

// Connect dials the pebble socket of the workload container.
func Connect(socketPath string) (Container, error) {
	pebble, err := client.New(&client.Config{Socket: socketPath})
	if err != nil {
		return nil, errors.Annotate(err, "cannot create pebble client")
	}
	return &pebbleContainer{pebble: pebble}, nil
}

func (c *pebbleContainer) CanConnect() bool {
	if _, err := c.pebble.SysInfo(); err != nil {
		logger.Debugf("cannot connect to pebble: %v", err)
		return false
	}
	return true
}

func (c *pebbleContainer) Push(path string, content []byte) error {
	err := c.pebble.Push(&client.PushOptions{
		Source:   bytes.NewReader(content),
		Path:     path,
		MakeDirs: true,
	})
	return errors.Annotatef(err, "cannot push %q", path)
}

func (c *pebbleContainer) Pull(path string) ([]byte, error) {
	var buf bytes.Buffer
	err := c.pebble.Pull(&client.PullOptions{Path: path, Target: &buf})
	if err != nil {
		if isPebbleNotFound(err) {
			return nil, errors.NewNotFound(err, path)
		}
		return nil, errors.Annotatef(err, "cannot pull %q", path)
	}
	return buf.Bytes(), nil
}

func (c *pebbleContainer) Exec(command []string, env map[string]string, timeout time.Duration) (string, error) {
	var stdout, stderr bytes.Buffer
	process, err := c.pebble.Exec(&client.ExecOptions{
		Command:     command,
		Environment: env,
		Timeout:     timeout,
		Stdout:      &stdout,
		Stderr:      &stderr,
	})
	if err != nil {
		return "", errors.Annotatef(err, "cannot exec %q", command[0])
	}
	if err := process.Wait(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", errors.Annotatef(err, "%q failed: %s", command[0], msg)
		}
		return "", errors.Annotatef(err, "%q failed", command[0])
	}
	return stdout.String(), nil
}

func (c *pebbleContainer) AddLayer(label string, layer *Layer) error {
	data, err := layer.Data()
	if err != nil {
		return errors.Trace(err)
	}
	err = c.pebble.AddLayer(&client.AddLayerOptions{
		Combine:   true,
		Label:     label,
		LayerData: data,
	})
	return errors.Annotate(err, "cannot add pebble layer")
}

func (c *pebbleContainer) Restart(service string) error {
	changeID, err := c.pebble.Restart(&client.ServiceOptions{Names: []string{service}})
	if err != nil {
		return errors.Annotatef(err, "cannot restart %q", service)
	}
	return errors.Trace(c.waitChange(changeID))
}

func (c *pebbleContainer) Stop(service string) error {
	changeID, err := c.pebble.Stop(&client.ServiceOptions{Names: []string{service}})
	if err != nil {
		return errors.Annotatef(err, "cannot stop %q", service)
	}
	return errors.Trace(c.waitChange(changeID))
}

func (c *pebbleContainer) Replan() error {
	changeID, err := c.pebble.Replan(&client.ServiceOptions{})
	if err != nil {
		return errors.Annotate(err, "cannot replan services")
	}
	return errors.Trace(c.waitChange(changeID))
}

func (c *pebbleContainer) waitChange(changeID string) error {
	change, err := c.pebble.WaitChange(changeID, &client.WaitChangeOptions{})
	if err != nil {
		return errors.Annotatef(err, "error waiting for change %q", changeID)
	}
	if change.Err != "" {
		return errors.Errorf("change %q failed: %s", changeID, change.Err)
	}
	return nil
}

func (c *pebbleContainer) ServiceRunning(service string) bool {
	infos, err := c.pebble.Services(&client.ServicesOptions{Names: []string{service}})
	if err != nil {
		logger.Debugf("cannot get service info: %v", err)
		return false
	}
	for _, info := range infos {
		if info.Name == service && info.Current == client.StatusActive {
			return true
		}
	}
	return false
}

func isPebbleNotFound(err error) bool {
	clientErr, ok := errors.Cause(err).(*client.Error)
	return ok && clientErr.Kind == "not-found"
}
