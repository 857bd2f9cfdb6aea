// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hookenv

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/juju/errors"

	"github.com/canonical/kratos-operator/core/relation"
)

// Relations is part of the relation.Getter interface. It assembles a
// full point-in-time snapshot of every relation on the endpoint: the
// remote application databag, the local application databag and every
// remote unit databag.
func (e *Env) Relations(endpoint string) ([]*relation.Relation, error) {
	var idStrings []string
	if err := e.runJSON(&idStrings, "relation-ids", endpoint); err != nil {
		return nil, errors.Trace(err)
	}

	rels := make([]*relation.Relation, 0, len(idStrings))
	for _, idStr := range idStrings {
		id, err := parseRelationID(idStr)
		if err != nil {
			return nil, errors.Trace(err)
		}
		rel, err := e.loadRelation(endpoint, id)
		if err != nil {
			return nil, errors.Trace(err)
		}
		rels = append(rels, rel)
	}
	sort.Slice(rels, func(i, j int) bool { return rels[i].ID < rels[j].ID })
	return rels, nil
}

func (e *Env) loadRelation(endpoint string, id int) (*relation.Relation, error) {
	rel := &relation.Relation{
		ID:       id,
		Endpoint: endpoint,
		App:      relation.Data{},
		LocalApp: relation.Data{},
		Units:    map[string]relation.Data{},
	}
	rid := strconv.Itoa(id)

	if err := e.runJSON(&rel.RemoteApp, "relation-list", "-r", rid, "--app"); err != nil {
		// A relation may momentarily have no remote application, e.g.
		// while it is being torn down. Treat it as empty.
		logger.Debugf("no remote application on relation %d: %v", id, err)
	}

	if rel.RemoteApp != "" {
		if err := e.runJSON(&rel.App, "relation-get", "-r", rid, "--app", "-", rel.RemoteApp); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if err := e.runJSON(&rel.LocalApp, "relation-get", "-r", rid, "--app", "-", e.AppName()); err != nil {
		// Non-leader units may not read their own application databag
		// on non-peer relations.
		logger.Debugf("cannot read local application data on relation %d: %v", id, err)
	}

	var unitNames []string
	if err := e.runJSON(&unitNames, "relation-list", "-r", rid); err != nil {
		return nil, errors.Trace(err)
	}
	for _, unit := range unitNames {
		data := relation.Data{}
		if err := e.runJSON(&data, "relation-get", "-r", rid, "-", unit); err != nil {
			return nil, errors.Trace(err)
		}
		rel.Units[unit] = data
	}
	return rel, nil
}

// SetRelationData is part of the relation.Setter interface.
func (e *Env) SetRelationData(relationID int, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	args := []string{"-r", strconv.Itoa(relationID), "--app"}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, fmt.Sprintf("%s=%s", k, values[k]))
	}
	_, err := e.runner.RunTool("relation-set", args...)
	return errors.Trace(err)
}

// parseRelationID extracts the numeric id from the "endpoint:id" form
// printed by relation-ids.
func parseRelationID(s string) (int, error) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return 0, errors.Errorf("malformed relation id %q", s)
	}
	id, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return 0, errors.Annotatef(err, "malformed relation id %q", s)
	}
	return id, nil
}
