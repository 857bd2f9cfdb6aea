// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package workload

import (
	"regexp"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/juju/version/v2"
)

var versionRegexp = regexp.MustCompile(`Version:\s+(v\d+\.\d+\.\d+)`)

const (
	commandTimeout = 20 * time.Second

	// DefaultMigrationTimeout bounds schema migrations, which can take
	// a while on a populated database.
	DefaultMigrationTimeout = 2 * time.Minute
)

// CommandLine runs the kratos binary inside the workload container.
type CommandLine struct {
	container Container
}

// NewCommandLine returns a CommandLine bound to the given container.
func NewCommandLine(container Container) *CommandLine {
	return &CommandLine{container: container}
}

// Version reports the version of the kratos binary, "v"-prefixed.
func (c *CommandLine) Version() (string, error) {
	stdout, err := c.container.Exec([]string{"kratos", "version"}, nil, commandTimeout)
	if err != nil {
		return "", errors.Annotate(err, "cannot fetch kratos version")
	}
	match := versionRegexp.FindStringSubmatch(stdout)
	if match == nil {
		return "", errors.NotFoundf("version in %q", stdout)
	}
	if _, err := version.Parse(strings.TrimPrefix(match[1], "v")); err != nil {
		return "", errors.Annotatef(err, "unparseable version %q", match[1])
	}
	return match[1], nil
}

// Migrate applies the database schema migrations against the given
// DSN. A non-positive timeout selects the default.
func (c *CommandLine) Migrate(dsn string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultMigrationTimeout
	}
	_, err := c.container.Exec(
		[]string{"kratos", "migrate", "sql", "-e", "--yes"},
		map[string]string{"DSN": dsn},
		timeout,
	)
	return errors.Annotate(err, "cannot migrate database")
}
