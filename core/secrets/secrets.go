// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package secrets models the charm's view of Juju user secrets.
package secrets

// Content is the key/value payload of one secret revision.
type Content map[string]string

// IsEmpty reports whether the content carries no usable values.
func (c Content) IsEmpty() bool {
	if len(c) == 0 {
		return true
	}
	for _, v := range c {
		if v != "" {
			return false
		}
	}
	return true
}

// Store provides access to durable secrets owned by this application.
// Implementations return a NotFound error from Get when no secret with
// the label exists.
type Store interface {
	// Get returns the latest content of the secret with the given
	// label.
	Get(label string) (Content, error)

	// GetByURI returns the latest content of a secret granted to this
	// application, addressed by secret URI.
	GetByURI(uri string) (Content, error)

	// Add creates a new application-owned secret with the given label.
	Add(label string, content Content) error

	// Set replaces the content of the secret with the given label.
	Set(label string, content Content) error
}
