// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm

import (
	"encoding/json"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/canonical/kratos-operator/core/relation"
	"github.com/canonical/kratos-operator/internal/integration"
)

// peerData reads and writes the peer relation application databag.
// Values are stored JSON encoded. Before the peer relation forms, reads
// see nothing and writes are dropped; callers gate on the peer relation
// where that matters.
type peerData struct {
	env HookEnv
}

func (c *Charm) peers() peerData {
	return peerData{env: c.env}
}

func (p peerData) relation() *relation.Relation {
	rel, err := relation.First(p.env, integration.PeerIntegrationName)
	if err != nil {
		return nil
	}
	return rel
}

// Exists reports whether the peer relation has formed.
func (p peerData) Exists() bool {
	return p.relation() != nil
}

// Get returns the decoded value under key, or "" when absent.
func (p peerData) Get(key string) string {
	rel := p.relation()
	if rel == nil {
		return ""
	}
	raw := rel.LocalApp[key]
	if raw == "" {
		return ""
	}
	var value string
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		logger.Warningf("malformed peer data under %q: %v", key, err)
		return ""
	}
	return value
}

// Set stores value under key. Only the leader writes; non-leader and
// pre-peer writes are dropped.
func (p peerData) Set(key, value string) error {
	rel := p.relation()
	if rel == nil {
		logger.Debugf("no peer relation, dropping write of %q", key)
		return nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(p.env.SetRelationData(rel.ID, map[string]string{key: string(encoded)}))
}

// Pop deletes the value under key.
func (p peerData) Pop(key string) error {
	rel := p.relation()
	if rel == nil {
		return nil
	}
	return errors.Trace(p.env.SetRelationData(rel.ID, map[string]string{key: ""}))
}

// CleanupMigrationVersions removes migration version markers left
// behind by departed database relations.
func (p peerData) CleanupMigrationVersions(live set.Strings) error {
	rel := p.relation()
	if rel == nil {
		return nil
	}
	for key := range rel.LocalApp {
		if !strings.HasPrefix(key, integration.MigrationVersionKeyPrefix+"_") {
			continue
		}
		if live.Contains(key) {
			continue
		}
		logger.Infof("removing stale peer data key %q", key)
		if err := p.Pop(key); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}
