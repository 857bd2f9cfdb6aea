// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package workload_test

import (
	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/kratos-operator/internal/workload"
)

var errFailed = errors.New("exec failed")

type cliSuite struct{}

var _ = gc.Suite(&cliSuite{})

func (s *cliSuite) TestVersion(c *gc.C) {
	container := newStubContainer()
	container.execOutput = "Version:    v1.1.0\nBuild Commit:  abcdef\nBuild Timestamp: 2024\n"

	version, err := workload.NewCommandLine(container).Version()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(version, gc.Equals, "v1.1.0")
	c.Assert(container.execCalls, jc.DeepEquals, [][]string{{"kratos", "version"}})
}

func (s *cliSuite) TestVersionUnparseable(c *gc.C) {
	container := newStubContainer()
	container.execOutput = "garbage"
	_, err := workload.NewCommandLine(container).Version()
	c.Assert(err, jc.Satisfies, errors.IsNotFound)
}

func (s *cliSuite) TestVersionExecError(c *gc.C) {
	container := newStubContainer()
	container.execErr = errFailed
	_, err := workload.NewCommandLine(container).Version()
	c.Assert(err, gc.ErrorMatches, "cannot fetch kratos version: exec failed")
}

func (s *cliSuite) TestMigrate(c *gc.C) {
	container := newStubContainer()
	err := workload.NewCommandLine(container).Migrate("postgres://u:p@pg.local:5432/db", 0)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(container.execCalls, jc.DeepEquals, [][]string{{"kratos", "migrate", "sql", "-e", "--yes"}})
	c.Assert(container.execEnvs[0], jc.DeepEquals, map[string]string{"DSN": "postgres://u:p@pg.local:5432/db"})
}

func (s *cliSuite) TestMigrateError(c *gc.C) {
	container := newStubContainer()
	container.execErr = errFailed
	err := workload.NewCommandLine(container).Migrate("postgres://u:p@pg.local:5432/db", 0)
	c.Assert(err, gc.ErrorMatches, "cannot migrate database: exec failed")
}
