// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm_test

import (
	"context"
	"fmt"

	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/kratos-operator/core/relation"
	"github.com/canonical/kratos-operator/core/status"
	"github.com/canonical/kratos-operator/internal/charm"
)

type handlersSuite struct {
	env       *stubEnv
	container *stubContainer
	maps      *stubConfigMaps
	policies  *stubPolicies
	admin     *stubAdmin
	charm     *charm.Charm
}

var _ = gc.Suite(&handlersSuite{})

func (s *handlersSuite) SetUpTest(c *gc.C) {
	s.env = newStubEnv()
	s.container = newStubContainer()
	s.maps = newStubConfigMaps()
	s.policies = &stubPolicies{}
	s.admin = newStubAdmin()
	s.charm = charm.New(s.env, s.container, s.maps, s.policies, s.admin)
}

func (s *handlersSuite) addPeer() *relation.Relation {
	return s.env.addRelation(&relation.Relation{ID: 0, Endpoint: "kratos-peers"})
}

func (s *handlersSuite) addDatabase(created bool) *relation.Relation {
	rel := &relation.Relation{ID: 1, Endpoint: "pg-database", RemoteApp: "postgresql-k8s"}
	if created {
		rel.App = relation.Data{
			"endpoints": "postgresql-k8s-primary.identity.svc.cluster.local:5432",
			"username":  "relation-1",
			"password":  "s3cr3t",
		}
	}
	return s.env.addRelation(rel)
}

func (s *handlersSuite) TestInstallCreatesConfigMaps(c *gc.C) {
	s.env.leader = true

	err := s.charm.HandleInstall(context.Background())
	c.Assert(err, jc.ErrorIsNil)

	for _, name := range []string{"kratos-config", "identity-schemas", "oidc-providers"} {
		_, ok := s.maps.data[name]
		c.Check(ok, jc.IsTrue, gc.Commentf("ConfigMap %q", name))
	}
}

func (s *handlersSuite) TestInstallOnNonLeaderIsNoop(c *gc.C) {
	err := s.charm.HandleInstall(context.Background())
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.maps.data, gc.HasLen, 0)
}

func (s *handlersSuite) TestLeaderElectedCreatesSecret(c *gc.C) {
	s.env.leader = true

	_, err := s.charm.HandleLeaderElected(context.Background())
	c.Assert(err, jc.ErrorIsNil)

	content, ok := s.env.secretsByName[charm.CookieSecretLabel]
	c.Assert(ok, jc.IsTrue)
	c.Check(content[charm.CookieSecretKey], gc.Not(gc.Equals), "")
}

func (s *handlersSuite) TestLeaderElectedOnNonLeaderOnlyReconciles(c *gc.C) {
	deferred, err := s.charm.HandleLeaderElected(context.Background())
	c.Assert(err, jc.ErrorIsNil)

	c.Check(deferred, jc.IsTrue)
	_, ok := s.env.secretsByName[charm.CookieSecretLabel]
	c.Check(ok, jc.IsFalse)
}

func (s *handlersSuite) TestDatabaseChangedWaitsForContainer(c *gc.C) {
	s.container.connected = false

	deferred, err := s.charm.HandleDatabaseChanged(context.Background())
	c.Assert(err, jc.ErrorIsNil)

	c.Check(deferred, jc.IsTrue)
	c.Check(s.env.lastStatus(), gc.Equals, status.StatusInfo{
		Status:  status.Waiting,
		Message: "Waiting to connect to Kratos container",
	})
}

func (s *handlersSuite) TestDatabaseChangedWaitsForPeerRelation(c *gc.C) {
	s.addDatabase(true)

	deferred, err := s.charm.HandleDatabaseChanged(context.Background())
	c.Assert(err, jc.ErrorIsNil)

	c.Check(deferred, jc.IsTrue)
	c.Check(s.env.lastStatus(), gc.Equals, status.StatusInfo{
		Status:  status.Waiting,
		Message: "Waiting for peer relation",
	})
}

func (s *handlersSuite) TestDatabaseChangedWaitsForDatabaseCreation(c *gc.C) {
	s.addPeer()
	s.addDatabase(false)

	deferred, err := s.charm.HandleDatabaseChanged(context.Background())
	c.Assert(err, jc.ErrorIsNil)

	c.Check(deferred, jc.IsFalse)
	c.Check(s.env.lastStatus(), gc.Equals, status.StatusInfo{
		Status:  status.Waiting,
		Message: "Waiting for database creation",
	})
}

func (s *handlersSuite) TestDatabaseChangedNonLeaderWaitsForMigration(c *gc.C) {
	s.addPeer()
	s.addDatabase(true)

	deferred, err := s.charm.HandleDatabaseChanged(context.Background())
	c.Assert(err, jc.ErrorIsNil)

	c.Check(deferred, jc.IsTrue)
	c.Check(s.env.lastStatus(), gc.Equals, status.StatusInfo{
		Status:  status.Waiting,
		Message: "Unit waiting for leadership to run the migration",
	})
	c.Check(s.container.execCalled("kratos migrate"), jc.IsFalse)
}

func (s *handlersSuite) TestDatabaseChangedLeaderMigrates(c *gc.C) {
	peer := s.addPeer()
	db := s.addDatabase(true)
	s.env.leader = true

	deferred, err := s.charm.HandleDatabaseChanged(context.Background())
	c.Assert(err, jc.ErrorIsNil)

	c.Check(deferred, jc.IsFalse)
	c.Check(s.container.execCalled("kratos migrate sql -e --yes"), jc.IsTrue)
	c.Check(peer.LocalApp[fmt.Sprintf("db_migrate_version_%d", db.ID)], gc.Equals, `"v1.1.0"`)
	c.Check(s.env.lastStatus(), gc.Equals, status.StatusInfo{Status: status.Active})
}

func (s *handlersSuite) TestDatabaseChangedSkipsMigrationWhenUpToDate(c *gc.C) {
	peer := s.addPeer()
	db := s.addDatabase(true)
	peer.LocalApp[fmt.Sprintf("db_migrate_version_%d", db.ID)] = `"v1.1.0"`
	s.env.leader = true

	_, err := s.charm.HandleDatabaseChanged(context.Background())
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.container.execCalled("kratos migrate"), jc.IsFalse)
	c.Check(s.env.lastStatus(), gc.Equals, status.StatusInfo{Status: status.Active})
}

func (s *handlersSuite) TestDatabaseChangedMigrationFailureBlocks(c *gc.C) {
	s.addPeer()
	s.addDatabase(true)
	s.env.leader = true
	s.container.execErrs["kratos migrate"] = fmt.Errorf("connection refused")

	deferred, err := s.charm.HandleDatabaseChanged(context.Background())
	c.Assert(err, jc.ErrorIsNil)

	c.Check(deferred, jc.IsFalse)
	c.Check(s.env.lastStatus(), gc.Equals, status.StatusInfo{
		Status:  status.Blocked,
		Message: "Database migration job failed",
	})
}

func (s *handlersSuite) TestDatabaseDepartedStopsWorkload(c *gc.C) {
	s.container.running = true

	err := s.charm.HandleDatabaseDeparted(context.Background())
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.container.stopped, gc.Equals, 1)
	c.Check(s.env.lastStatus(), gc.Equals, status.StatusInfo{
		Status:  status.Blocked,
		Message: "Missing required relation with postgresql",
	})
}

func (s *handlersSuite) TestDatabaseDepartedWithStoppedWorkload(c *gc.C) {
	err := s.charm.HandleDatabaseDeparted(context.Background())
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.container.stopped, gc.Equals, 0)
	c.Check(s.env.lastStatus().Status, gc.Equals, status.Blocked)
}

func (s *handlersSuite) TestRemoveDeletesClusterResources(c *gc.C) {
	s.env.leader = true
	s.maps.data["kratos-config"] = map[string]string{}
	s.maps.data["identity-schemas"] = map[string]string{}
	s.maps.data["oidc-providers"] = map[string]string{}

	err := s.charm.HandleRemove(context.Background())
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.maps.data, gc.HasLen, 0)
	c.Check(s.policies.deleted, gc.Equals, 1)
}

func (s *handlersSuite) TestRemoveOnNonLeaderIsNoop(c *gc.C) {
	s.maps.data["kratos-config"] = map[string]string{}

	err := s.charm.HandleRemove(context.Background())
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.maps.data, gc.HasLen, 1)
	c.Check(s.policies.deleted, gc.Equals, 0)
}
