// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package integration

import (
	"fmt"

	"github.com/canonical/kratos-operator/core/relation"
)

// MigrationVersionKeyPrefix prefixes the peer-data key under which the
// applied schema migration version is recorded, one key per database
// relation.
const MigrationVersionKeyPrefix = "db_migrate_version"

// DatabaseConfig is the snapshot of the pg-database integration.
type DatabaseConfig struct {
	RelationID int
	Endpoints  string
	Username   string
	Password   string
	Database   string

	exists bool
}

// LoadDatabaseConfig reads the first database relation. The database
// name is owned by this charm and passed in by the caller; credentials
// and endpoints come from the provider's application databag.
func LoadDatabaseConfig(g relation.Getter, database string) *DatabaseConfig {
	rel, err := relation.First(g, DatabaseIntegrationName)
	if err != nil {
		logger.Debugf("no database integration data: %v", err)
		return &DatabaseConfig{Database: database}
	}
	return &DatabaseConfig{
		RelationID: rel.ID,
		Endpoints:  rel.App["endpoints"],
		Username:   rel.App["username"],
		Password:   rel.App["password"],
		Database:   database,
		exists:     true,
	}
}

// Exists reports whether a database relation is established at all.
func (c *DatabaseConfig) Exists() bool {
	return c.exists
}

// ResourceCreated reports whether the provider has finished creating
// the database and shared credentials.
func (c *DatabaseConfig) ResourceCreated() bool {
	return c.exists && c.Username != "" && c.Password != "" && c.Endpoints != ""
}

// DSN returns the postgres connection string, or "" before the
// database resource exists.
func (c *DatabaseConfig) DSN() string {
	if !c.ResourceCreated() {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s/%s", c.Username, c.Password, c.Endpoints, c.Database)
}

// MigrationVersionKey returns the peer-data key recording the schema
// version applied against this specific database relation.
func (c *DatabaseConfig) MigrationVersionKey() string {
	return fmt.Sprintf("%s_%d", MigrationVersionKeyPrefix, c.RelationID)
}

// EnvVars projects the snapshot into workload environment variables.
func (c *DatabaseConfig) EnvVars() map[string]string {
	if dsn := c.DSN(); dsn != "" {
		return map[string]string{"DSN": dsn}
	}
	return nil
}
