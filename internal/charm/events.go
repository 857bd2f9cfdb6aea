// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm

import (
	"context"
	"strings"

	"github.com/juju/errors"

	"github.com/canonical/kratos-operator/internal/integration"
)

// Kind classifies an inbound hook into the event path that handles it.
type Kind string

const (
	// KindInstall covers install and upgrade-charm: cluster resources
	// are created before the first reconcile.
	KindInstall Kind = "install"

	// KindReconcile covers every hook that only changes inputs of the
	// convergence procedure: config-changed, update-status,
	// pebble-ready and most relation hooks.
	KindReconcile Kind = "reconcile"

	// KindDatabaseChanged covers database relation creation and
	// endpoint changes: the leader migrates the schema before
	// reconciling.
	KindDatabaseChanged Kind = "database-changed"

	// KindDatabaseDeparted covers the database relation going away.
	KindDatabaseDeparted Kind = "database-departed"

	// KindLeaderElected covers leadership acquisition: missing durable
	// secrets are created.
	KindLeaderElected Kind = "leader-elected"

	// KindRemove covers unit removal: owned cluster resources are
	// deleted.
	KindRemove Kind = "remove"
)

// Event is one inbound hook, classified.
type Event struct {
	Kind Kind
	Hook string
}

// EventForHook maps a juju hook name to its event path. Unrecognised
// hooks reconcile: the procedure is idempotent and re-running it is
// always safe.
func EventForHook(hook string) Event {
	event := Event{Hook: hook}
	switch hook {
	case "install", "upgrade-charm":
		event.Kind = KindInstall
		return event
	case "leader-elected":
		event.Kind = KindLeaderElected
		return event
	case "remove", "stop":
		event.Kind = KindRemove
		return event
	}
	if strings.HasPrefix(hook, integration.DatabaseIntegrationName+"-relation-") {
		switch {
		case strings.HasSuffix(hook, "-departed"), strings.HasSuffix(hook, "-broken"):
			event.Kind = KindDatabaseDeparted
		default:
			event.Kind = KindDatabaseChanged
		}
		return event
	}
	event.Kind = KindReconcile
	return event
}

// Run dispatches the event to its handler. The returned flag requests
// redelivery of the event.
func (c *Charm) Run(ctx context.Context, event Event) (deferred bool, err error) {
	logger.Infof("handling %s (%s)", event.Hook, event.Kind)
	switch event.Kind {
	case KindInstall:
		return false, errors.Trace(c.HandleInstall(ctx))
	case KindLeaderElected:
		return c.HandleLeaderElected(ctx)
	case KindDatabaseChanged:
		return c.HandleDatabaseChanged(ctx)
	case KindDatabaseDeparted:
		return false, errors.Trace(c.HandleDatabaseDeparted(ctx))
	case KindRemove:
		return false, errors.Trace(c.HandleRemove(ctx))
	default:
		return c.Reconcile(ctx)
	}
}
