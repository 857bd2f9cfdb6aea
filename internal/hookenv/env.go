// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package hookenv implements the charm's model interfaces on top of the
// hook tools Juju places on the PATH of every hook execution.
package hookenv

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/names/v5"

	"github.com/canonical/kratos-operator/core/status"
)

var logger = loggo.GetLogger("kratos-operator.hookenv")

// Runner executes one hook tool invocation and returns its stdout.
type Runner interface {
	RunTool(tool string, args ...string) ([]byte, error)
}

type execRunner struct{}

// RunTool is part of the Runner interface.
func (execRunner) RunTool(tool string, args ...string) ([]byte, error) {
	cmd := exec.Command(tool, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, errors.Annotatef(err, "running %s: %s", tool, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// Env reads and writes model state through the hook tools. One Env is
// valid for the duration of a single hook execution.
type Env struct {
	runner Runner
}

// New returns an Env backed by the hook tools on the PATH.
func New() *Env {
	return &Env{runner: execRunner{}}
}

// NewWithRunner returns an Env backed by the given Runner. Used by
// tests to substitute a stub runner.
func NewWithRunner(r Runner) *Env {
	return &Env{runner: r}
}

func (e *Env) runJSON(result interface{}, tool string, args ...string) error {
	out, err := e.runner.RunTool(tool, append(args, "--format=json")...)
	if err != nil {
		return errors.Trace(err)
	}
	if len(bytes.TrimSpace(out)) == 0 {
		return nil
	}
	if err := json.Unmarshal(out, result); err != nil {
		return errors.Annotatef(err, "parsing %s output", tool)
	}
	return nil
}

// UnitName returns the name of the local unit, e.g. "kratos/0".
func (e *Env) UnitName() string {
	return os.Getenv("JUJU_UNIT_NAME")
}

// AppName returns the name of the local application.
func (e *Env) AppName() string {
	app, err := names.UnitApplication(e.UnitName())
	if err != nil {
		return ""
	}
	return app
}

// ModelName returns the name of the model the unit runs in, which is
// also the Kubernetes namespace of the workload pod.
func (e *Env) ModelName() string {
	return os.Getenv("JUJU_MODEL_NAME")
}

// IsLeader reports whether the local unit holds application leadership.
func (e *Env) IsLeader() (bool, error) {
	var leader bool
	if err := e.runJSON(&leader, "is-leader"); err != nil {
		return false, errors.Trace(err)
	}
	return leader, nil
}

// ConfigValues returns the charm configuration as reported by
// config-get.
func (e *Env) ConfigValues() (map[string]interface{}, error) {
	var config map[string]interface{}
	if err := e.runJSON(&config, "config-get"); err != nil {
		return nil, errors.Trace(err)
	}
	return config, nil
}

// SetUnitStatus is part of the status.Setter interface.
func (e *Env) SetUnitStatus(info status.StatusInfo) error {
	args := []string{info.Status.String()}
	if info.Message != "" {
		args = append(args, info.Message)
	}
	_, err := e.runner.RunTool("status-set", args...)
	return errors.Trace(err)
}

// SetApplicationVersion records the workload version shown in juju
// status output.
func (e *Env) SetApplicationVersion(version string) error {
	_, err := e.runner.RunTool("application-version-set", version)
	return errors.Trace(err)
}

// OpenPort marks a workload port as open.
func (e *Env) OpenPort(protocol string, port int) error {
	_, err := e.runner.RunTool("open-port", fmt.Sprintf("%d/%s", port, protocol))
	return errors.Trace(err)
}

// JujuLog forwards a message into the model log at the given level.
func (e *Env) JujuLog(level loggo.Level, message string) {
	if _, err := e.runner.RunTool("juju-log", "--log-level", level.String(), message); err != nil {
		logger.Debugf("juju-log unavailable: %v", err)
	}
}

// LogWriter is a loggo writer that mirrors warning and error records
// into the model log, where they show up in juju debug-log next to the
// uniter's own messages.
type LogWriter struct {
	env *Env
}

// NewLogWriter returns a writer forwarding through the given Env.
func NewLogWriter(env *Env) *LogWriter {
	return &LogWriter{env: env}
}

// Write is part of the loggo.Writer interface.
func (w *LogWriter) Write(entry loggo.Entry) {
	if entry.Level < loggo.WARNING {
		return
	}
	w.env.JujuLog(entry.Level, fmt.Sprintf("%s: %s", entry.Module, entry.Message))
}
