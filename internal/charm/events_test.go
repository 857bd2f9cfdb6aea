// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm_test

import (
	gc "gopkg.in/check.v1"

	"github.com/canonical/kratos-operator/internal/charm"
)

type eventsSuite struct{}

var _ = gc.Suite(&eventsSuite{})

func (s *eventsSuite) TestEventForHook(c *gc.C) {
	for hook, kind := range map[string]charm.Kind{
		"install":                        charm.KindInstall,
		"upgrade-charm":                  charm.KindInstall,
		"leader-elected":                 charm.KindLeaderElected,
		"remove":                         charm.KindRemove,
		"stop":                           charm.KindRemove,
		"config-changed":                 charm.KindReconcile,
		"update-status":                  charm.KindReconcile,
		"kratos-pebble-ready":            charm.KindReconcile,
		"kratos-peers-relation-changed":  charm.KindReconcile,
		"public-ingress-relation-joined": charm.KindReconcile,
		"some-future-hook":               charm.KindReconcile,

		"pg-database-relation-created":  charm.KindDatabaseChanged,
		"pg-database-relation-joined":   charm.KindDatabaseChanged,
		"pg-database-relation-changed":  charm.KindDatabaseChanged,
		"pg-database-relation-departed": charm.KindDatabaseDeparted,
		"pg-database-relation-broken":   charm.KindDatabaseDeparted,
	} {
		event := charm.EventForHook(hook)
		c.Check(event.Kind, gc.Equals, kind, gc.Commentf("hook %q", hook))
		c.Check(event.Hook, gc.Equals, hook)
	}
}
