// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package integration_test

import (
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/kratos-operator/core/relation"
	"github.com/canonical/kratos-operator/internal/integration"
)

type webhookSuite struct{}

var _ = gc.Suite(&webhookSuite{})

func webhookGetter(app relation.Data) *stubGetter {
	return &stubGetter{rels: map[string][]*relation.Relation{
		integration.RegistrationWebhookIntegrationName: {{ID: 8, App: app}},
	}}
}

func (s *webhookSuite) TestReady(c *gc.C) {
	cfg := integration.LoadRegistrationWebhookConfig(webhookGetter(relation.Data{
		"url":                  "https://hooks.local/registration",
		"body":                 "base64://e30=",
		"method":               "POST",
		"emit_analytics_event": "false",
		"response":             `{"ignore": false, "parse": true}`,
		"auth":                 `{"type": "api_key", "config": {"name": "Authorization", "in": "header", "value": "token"}}`,
	}))
	c.Assert(cfg.IsReady(), jc.IsTrue)
	c.Assert(cfg.Method, gc.Equals, "POST")
	c.Assert(cfg.ResponseParse, jc.IsTrue)
	c.Assert(cfg.ResponseIgnore, jc.IsFalse)
	c.Assert(cfg.AuthEnabled, jc.IsTrue)
	c.Assert(cfg.AuthType, gc.Equals, "api_key")
	c.Assert(cfg.AuthIn, gc.Equals, "header")
	c.Assert(cfg.AuthValue, gc.Equals, "token")
}

func (s *webhookSuite) TestWithoutAuth(c *gc.C) {
	cfg := integration.LoadRegistrationWebhookConfig(webhookGetter(relation.Data{
		"url":    "https://hooks.local/registration",
		"body":   "base64://e30=",
		"method": "POST",
	}))
	c.Assert(cfg.IsReady(), jc.IsTrue)
	c.Assert(cfg.AuthEnabled, jc.IsFalse)
	_, ok := cfg.ServiceConfigs()["registration_webhook_auth_enabled"]
	c.Assert(ok, jc.IsFalse)
}

func (s *webhookSuite) TestIncompleteData(c *gc.C) {
	cfg := integration.LoadRegistrationWebhookConfig(webhookGetter(relation.Data{
		"url": "https://hooks.local/registration",
	}))
	c.Assert(cfg.IsReady(), jc.IsFalse)
	c.Assert(cfg.ServiceConfigs(), gc.IsNil)
}

func (s *webhookSuite) TestMalformedNestedConfig(c *gc.C) {
	cfg := integration.LoadRegistrationWebhookConfig(webhookGetter(relation.Data{
		"url":      "https://hooks.local/registration",
		"body":     "base64://e30=",
		"response": "{",
	}))
	c.Assert(cfg.IsReady(), jc.IsFalse)
}

func (s *webhookSuite) TestNoRelation(c *gc.C) {
	cfg := integration.LoadRegistrationWebhookConfig(&stubGetter{})
	c.Assert(cfg.IsReady(), jc.IsFalse)
}
