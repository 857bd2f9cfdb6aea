// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package relation models the view of Juju integrations visible from a
// hook execution: point-in-time snapshots of relation databags.
package relation

import (
	"sort"

	"github.com/juju/errors"
)

// Data is a single databag: a flat string-to-string mapping.
type Data map[string]string

// Relation is a point-in-time view of one established integration
// instance. It is read-only once constructed.
type Relation struct {
	// ID is the relation id, unique within the model.
	ID int

	// Endpoint is the local endpoint (relation name) this instance
	// was established on.
	Endpoint string

	// RemoteApp is the name of the application on the other side.
	RemoteApp string

	// App is the remote application databag.
	App Data

	// LocalApp is the local application databag. For peer relations
	// this is the shared application data written by the leader.
	LocalApp Data

	// Units maps remote unit names to their unit databags.
	Units map[string]Data
}

// UnitNames returns the remote unit names in a stable order.
func (r *Relation) UnitNames() []string {
	names := make([]string, 0, len(r.Units))
	for name := range r.Units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Getter reads the current relation state from the hook environment.
type Getter interface {
	// Relations returns all established relations on the given
	// endpoint, in ascending relation id order. A missing endpoint
	// yields an empty slice, not an error.
	Relations(endpoint string) ([]*Relation, error)
}

// Setter writes this application's databag on a relation. Writes are
// only permitted on the leader unit; the hook environment rejects them
// otherwise.
type Setter interface {
	// SetRelationData merges the given values into the local
	// application databag of the relation. An empty string value
	// deletes the key.
	SetRelationData(relationID int, values map[string]string) error
}

// First returns the relation with the lowest id on an endpoint, or a
// NotFound error when none is established.
func First(g Getter, endpoint string) (*Relation, error) {
	rels, err := g.Relations(endpoint)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(rels) == 0 {
		return nil, errors.NotFoundf("relation on %q", endpoint)
	}
	return rels[0], nil
}

// Exists reports whether at least one relation is established on the
// endpoint. Errors reading the hook environment degrade to false.
func Exists(g Getter, endpoint string) bool {
	rels, err := g.Relations(endpoint)
	if err != nil {
		return false
	}
	return len(rels) > 0
}
