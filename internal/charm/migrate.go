// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm

import (
	"context"

	"github.com/juju/errors"

	"github.com/canonical/kratos-operator/core/status"
	"github.com/canonical/kratos-operator/internal/integration"
	"github.com/canonical/kratos-operator/internal/workload"
)

// HandleInstall creates the cluster resources the workload depends on
// before the first reconcile: the ConfigMaps exist from the start so
// downstream applications can mount them without races.
func (c *Charm) HandleInstall(ctx context.Context) error {
	if !c.isLeader() {
		return nil
	}
	for _, name := range []string{ConfigConfigMapName, SchemasConfigMapName, ProvidersConfigMapName} {
		if err := c.configMap.Ensure(ctx, name, nil); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// HandleLeaderElected repairs leader-owned state: the durable secrets
// are created when missing, then the unit reconciles as usual.
func (c *Charm) HandleLeaderElected(ctx context.Context) (bool, error) {
	if c.isLeader() {
		if err := EnsureCookieSecret(c.env); err != nil {
			return false, errors.Trace(err)
		}
	}
	return c.Reconcile(ctx)
}

// HandleDatabaseChanged runs when the database relation is created or
// its endpoints change. The leader migrates the schema and records the
// applied version in peer data; non-leaders wait for that marker.
func (c *Charm) HandleDatabaseChanged(ctx context.Context) (bool, error) {
	if !c.container.CanConnect() {
		c.setStatus(status.Waiting, "Waiting to connect to Kratos container")
		return true, nil
	}
	if !c.peers().Exists() {
		c.setStatus(status.Waiting, "Waiting for peer relation")
		return true, nil
	}

	db := integration.LoadDatabaseConfig(c.env, c.databaseName())
	if !db.ResourceCreated() {
		c.setStatus(status.Waiting, "Waiting for database creation")
		return false, nil
	}

	version, err := c.cli.Version()
	if err != nil {
		return false, errors.Trace(err)
	}
	if c.peers().Get(db.MigrationVersionKey()) == version {
		return c.Reconcile(ctx)
	}

	if !c.isLeader() {
		c.setStatus(status.Waiting, "Unit waiting for leadership to run the migration")
		return true, nil
	}

	c.setStatus(status.Maintenance, "Migrating the database")
	if err := c.cli.Migrate(db.DSN(), workload.DefaultMigrationTimeout); err != nil {
		logger.Errorf("database migration failed: %v", err)
		c.setStatus(status.Blocked, "Database migration job failed")
		return false, nil
	}
	if err := c.peers().Set(db.MigrationVersionKey(), version); err != nil {
		return false, errors.Trace(err)
	}
	logger.Infof("database migrated to %s", version)

	return c.Reconcile(ctx)
}

// HandleDatabaseDeparted stops the workload, which cannot run without
// its database, and blocks until the relation is restored.
func (c *Charm) HandleDatabaseDeparted(ctx context.Context) error {
	if c.container.CanConnect() && c.container.ServiceRunning(workload.ServiceName) {
		if err := c.container.Stop(workload.ServiceName); err != nil {
			logger.Errorf("cannot stop the workload: %v", err)
		}
	}
	c.setStatus(status.Blocked, "Missing required relation with postgresql")
	return nil
}

// HandleRemove deletes the cluster resources this application owns.
func (c *Charm) HandleRemove(ctx context.Context) error {
	if !c.isLeader() {
		return nil
	}
	for _, name := range []string{ConfigConfigMapName, SchemasConfigMapName, ProvidersConfigMapName} {
		if err := c.configMap.Delete(ctx, name); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(c.policies.Delete(ctx))
}
