// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hookenv_test

import (
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/kratos-operator/core/relation"
	"github.com/canonical/kratos-operator/core/secrets"
	"github.com/canonical/kratos-operator/core/status"
	"github.com/canonical/kratos-operator/internal/hookenv"
)

type envSuite struct {
	testing.IsolationSuite

	runner *stubRunner
	env    *hookenv.Env
}

var _ = gc.Suite(&envSuite{})

func (s *envSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.PatchEnvironment("JUJU_UNIT_NAME", "kratos/0")
	s.PatchEnvironment("JUJU_MODEL_NAME", "identity")
	s.runner = newStubRunner()
	s.env = hookenv.NewWithRunner(s.runner)
}

func (s *envSuite) TestNames(c *gc.C) {
	c.Check(s.env.UnitName(), gc.Equals, "kratos/0")
	c.Check(s.env.AppName(), gc.Equals, "kratos")
	c.Check(s.env.ModelName(), gc.Equals, "identity")
}

func (s *envSuite) TestIsLeader(c *gc.C) {
	s.runner.outputs["is-leader --format=json"] = "true"

	leader, err := s.env.IsLeader()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(leader, jc.IsTrue)
}

func (s *envSuite) TestConfigValues(c *gc.C) {
	s.runner.outputs["config-get --format=json"] = `{"log_level": "debug", "dev": true}`

	config, err := s.env.ConfigValues()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(config, jc.DeepEquals, map[string]interface{}{
		"log_level": "debug",
		"dev":       true,
	})
}

func (s *envSuite) TestSetUnitStatus(c *gc.C) {
	err := s.env.SetUnitStatus(status.StatusInfo{
		Status:  status.Blocked,
		Message: "Missing required relation with postgresql",
	})
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.runner.calls, jc.DeepEquals, [][]string{
		{"status-set", "blocked", "Missing required relation with postgresql"},
	})
}

func (s *envSuite) TestSetUnitStatusWithoutMessage(c *gc.C) {
	err := s.env.SetUnitStatus(status.StatusInfo{Status: status.Active})
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.runner.calls, jc.DeepEquals, [][]string{
		{"status-set", "active"},
	})
}

func (s *envSuite) TestSetApplicationVersion(c *gc.C) {
	err := s.env.SetApplicationVersion("v1.1.0")
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.runner.calls, jc.DeepEquals, [][]string{
		{"application-version-set", "v1.1.0"},
	})
}

func (s *envSuite) TestOpenPort(c *gc.C) {
	err := s.env.OpenPort("tcp", 4433)
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.runner.calls, jc.DeepEquals, [][]string{
		{"open-port", "4433/tcp"},
	})
}

func (s *envSuite) TestRelationsAssemblesSnapshot(c *gc.C) {
	s.runner.outputs["relation-ids pg-database --format=json"] = `["pg-database:3"]`
	s.runner.outputs["relation-list -r 3 --app --format=json"] = `"postgresql-k8s"`
	s.runner.outputs["relation-get -r 3 --app - postgresql-k8s --format=json"] = `{"username": "relation-3", "password": "s3cr3t"}`
	s.runner.outputs["relation-get -r 3 --app - kratos --format=json"] = `{"requested-secrets": "[\"password\"]"}`
	s.runner.outputs["relation-list -r 3 --format=json"] = `["postgresql-k8s/0"]`
	s.runner.outputs["relation-get -r 3 - postgresql-k8s/0 --format=json"] = `{"private-address": "10.1.2.3"}`

	rels, err := s.env.Relations("pg-database")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(rels, gc.HasLen, 1)

	c.Check(rels[0], jc.DeepEquals, &relation.Relation{
		ID:        3,
		Endpoint:  "pg-database",
		RemoteApp: "postgresql-k8s",
		App:       relation.Data{"username": "relation-3", "password": "s3cr3t"},
		LocalApp:  relation.Data{"requested-secrets": `["password"]`},
		Units: map[string]relation.Data{
			"postgresql-k8s/0": {"private-address": "10.1.2.3"},
		},
	})
}

func (s *envSuite) TestRelationsWithoutRemoteApp(c *gc.C) {
	s.runner.outputs["relation-ids kratos-info --format=json"] = `["kratos-info:5"]`
	s.runner.errs["relation-list -r 5 --app --format=json"] = errors.New("remote application gone")
	s.runner.outputs["relation-list -r 5 --format=json"] = `[]`

	rels, err := s.env.Relations("kratos-info")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(rels, gc.HasLen, 1)

	c.Check(rels[0].RemoteApp, gc.Equals, "")
	c.Check(rels[0].App, gc.HasLen, 0)
	c.Check(s.runner.called("relation-get -r 5 --app - postgresql"), jc.IsFalse)
}

func (s *envSuite) TestRelationsNone(c *gc.C) {
	s.runner.outputs["relation-ids pg-database --format=json"] = `[]`

	rels, err := s.env.Relations("pg-database")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(rels, gc.HasLen, 0)
}

func (s *envSuite) TestSetRelationData(c *gc.C) {
	err := s.env.SetRelationData(7, map[string]string{
		"endpoint": "http://kratos.identity.svc.cluster.local:4433",
		"database": "kratos",
	})
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.runner.calls, jc.DeepEquals, [][]string{
		{"relation-set", "-r", "7", "--app",
			"database=kratos",
			"endpoint=http://kratos.identity.svc.cluster.local:4433"},
	})
}

func (s *envSuite) TestSetRelationDataEmpty(c *gc.C) {
	err := s.env.SetRelationData(7, nil)
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.runner.calls, gc.HasLen, 0)
}

func (s *envSuite) TestSecretGet(c *gc.C) {
	s.runner.outputs["secret-get --label cookie_secret --refresh --format=json"] = `{"cookiesecret": "abc123"}`

	content, err := s.env.Get("cookie_secret")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(content, jc.DeepEquals, secrets.Content{"cookiesecret": "abc123"})
}

func (s *envSuite) TestSecretGetNotFound(c *gc.C) {
	s.runner.errs["secret-get --label cookie_secret --refresh --format=json"] = errors.New(`secret "cookie_secret" not found`)

	_, err := s.env.Get("cookie_secret")
	c.Check(err, jc.Satisfies, errors.IsNotFound)
}

func (s *envSuite) TestSecretGetByURI(c *gc.C) {
	s.runner.outputs["secret-get secret:abc --format=json"] = `{"password": "n3w-pass"}`

	content, err := s.env.GetByURI("secret:abc")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(content, jc.DeepEquals, secrets.Content{"password": "n3w-pass"})
}

func (s *envSuite) TestSecretAdd(c *gc.C) {
	err := s.env.Add("cookie_secret", secrets.Content{"cookiesecret": "abc123"})
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.runner.calls, jc.DeepEquals, [][]string{
		{"secret-add", "cookiesecret=abc123", "--label", "cookie_secret"},
	})
}

func (s *envSuite) TestSecretSet(c *gc.C) {
	s.runner.outputs["secret-info-get --label cookie_secret --format=json"] = `{"secret:xyz": {"label": "cookie_secret"}}`

	err := s.env.Set("cookie_secret", secrets.Content{"cookiesecret": "def456"})
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.runner.called("secret-set secret:xyz cookiesecret=def456"), jc.IsTrue)
}

func (s *envSuite) TestSecretSetNotFound(c *gc.C) {
	s.runner.errs["secret-info-get --label cookie_secret --format=json"] = errors.New(`secret "cookie_secret" not found`)

	err := s.env.Set("cookie_secret", secrets.Content{"cookiesecret": "def456"})
	c.Check(err, jc.Satisfies, errors.IsNotFound)
}

func (s *envSuite) TestActionParams(c *gc.C) {
	s.runner.outputs["action-get --format=json"] = `{"identity-id": "b9b62d77-8924-4a33-a567-7e3e2df7a2cd"}`

	params, err := s.env.ActionParams()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(params, jc.DeepEquals, map[string]interface{}{
		"identity-id": "b9b62d77-8924-4a33-a567-7e3e2df7a2cd",
	})
}

func (s *envSuite) TestActionSetResultsFlattensNestedMaps(c *gc.C) {
	err := s.env.ActionSetResults(map[string]interface{}{
		"id": "new-id",
		"identity": map[string]interface{}{
			"schema_id": "admin_v0",
		},
	})
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.runner.calls, jc.DeepEquals, [][]string{
		{"action-set", "id=new-id", "identity.schema_id=admin_v0"},
	})
}

func (s *envSuite) TestActionFail(c *gc.C) {
	err := s.env.ActionFail("Couldn't retrieve identity_id from the identity provider.")
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.runner.calls, jc.DeepEquals, [][]string{
		{"action-fail", "Couldn't retrieve identity_id from the identity provider."},
	})
}

func (s *envSuite) TestLogWriterForwardsWarnings(c *gc.C) {
	w := hookenv.NewLogWriter(s.env)
	w.Write(loggo.Entry{
		Level:   loggo.WARNING,
		Module:  "kratos-operator.charm",
		Message: "malformed ingress data",
	})

	c.Check(s.runner.calls, jc.DeepEquals, [][]string{
		{"juju-log", "--log-level", "WARNING", "kratos-operator.charm: malformed ingress data"},
	})
}

func (s *envSuite) TestLogWriterDropsInfoRecords(c *gc.C) {
	w := hookenv.NewLogWriter(s.env)
	w.Write(loggo.Entry{Level: loggo.INFO, Module: "kratos-operator", Message: "noise"})
	w.Write(loggo.Entry{Level: loggo.DEBUG, Module: "kratos-operator", Message: "noise"})

	c.Check(s.runner.calls, gc.HasLen, 0)
}

func (s *envSuite) TestActionLog(c *gc.C) {
	err := s.env.ActionLog("Fetching identity.")
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.runner.calls, jc.DeepEquals, [][]string{
		{"action-log", "Fetching identity."},
	})
}
