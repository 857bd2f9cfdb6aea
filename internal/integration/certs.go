// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package integration

import (
	"strings"

	"github.com/juju/collections/set"

	"github.com/canonical/kratos-operator/core/relation"
)

// CACertBundle is the snapshot of the receive-ca-cert integration: the
// deduplicated CA certificates trusted by related applications.
type CACertBundle struct {
	certs set.Strings
}

// LoadCACertBundle collects the "ca" entries from every unit databag
// on the receive-ca-cert relations.
func LoadCACertBundle(g relation.Getter) *CACertBundle {
	bundle := &CACertBundle{certs: set.NewStrings()}
	rels, err := g.Relations(CertTransferIntegrationName)
	if err != nil {
		logger.Warningf("cannot read cert transfer relations: %v", err)
		return bundle
	}
	for _, rel := range rels {
		for _, data := range rel.Units {
			if ca := data["ca"]; ca != "" {
				bundle.certs.Add(ca)
			}
		}
	}
	return bundle
}

// IsEmpty reports whether no CA certificates were transferred.
func (b *CACertBundle) IsEmpty() bool {
	return b.certs.IsEmpty()
}

// PEM renders the bundle with the certificates in sorted order, so the
// same set of certificates always produces the same bytes.
func (b *CACertBundle) PEM() string {
	return strings.Join(b.certs.SortedValues(), "\n")
}
