// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package workload_test

import (
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/kratos-operator/internal/workload"
)

type envSuite struct{}

var _ = gc.Suite(&envSuite{})

type envMap map[string]string

func (m envMap) EnvVars() map[string]string { return m }

func (s *envSuite) TestDefaults(c *gc.C) {
	env := workload.BuildEnvironment()
	c.Assert(env, jc.DeepEquals, map[string]string{
		"LOG_FORMAT":                "json",
		"SERVE_PUBLIC_CORS_ENABLED": "true",
	})
}

func (s *envSuite) TestLaterSourcesOverride(c *gc.C) {
	env := workload.BuildEnvironment(
		envMap{"DSN": "postgres://old", "LOG_LEVEL": "info"},
		envMap{"DSN": "postgres://new"},
		envMap(nil),
	)
	c.Assert(env["DSN"], gc.Equals, "postgres://new")
	c.Assert(env["LOG_LEVEL"], gc.Equals, "info")
	c.Assert(env["LOG_FORMAT"], gc.Equals, "json")
}

func (s *envSuite) TestSourcesOverrideDefaults(c *gc.C) {
	env := workload.BuildEnvironment(envMap{"LOG_FORMAT": "text"})
	c.Assert(env["LOG_FORMAT"], gc.Equals, "text")
}
