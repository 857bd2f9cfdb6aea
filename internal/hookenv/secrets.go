// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hookenv

import (
	"fmt"
	"sort"
	"strings"

	"github.com/juju/errors"

	"github.com/canonical/kratos-operator/core/secrets"
)

// Get is part of the secrets.Store interface. It returns the latest
// revision of the secret with the given label.
func (e *Env) Get(label string) (secrets.Content, error) {
	content := secrets.Content{}
	err := e.runJSON(&content, "secret-get", "--label", label, "--refresh")
	if err != nil {
		if isSecretNotFound(err) {
			return nil, errors.NotFoundf("secret with label %q", label)
		}
		return nil, errors.Trace(err)
	}
	return content, nil
}

// GetByURI is part of the secrets.Store interface.
func (e *Env) GetByURI(uri string) (secrets.Content, error) {
	content := secrets.Content{}
	err := e.runJSON(&content, "secret-get", uri)
	if err != nil {
		if isSecretNotFound(err) {
			return nil, errors.NotFoundf("secret %q", uri)
		}
		return nil, errors.Trace(err)
	}
	return content, nil
}

// Add is part of the secrets.Store interface.
func (e *Env) Add(label string, content secrets.Content) error {
	args := contentArgs(content)
	args = append(args, "--label", label)
	_, err := e.runner.RunTool("secret-add", args...)
	return errors.Trace(err)
}

// Set is part of the secrets.Store interface. The secret is addressed
// by label via secret-info-get, since secret-set requires a URI.
func (e *Env) Set(label string, content secrets.Content) error {
	info := map[string]struct {
		Label string `json:"label"`
	}{}
	if err := e.runJSON(&info, "secret-info-get", "--label", label); err != nil {
		if isSecretNotFound(err) {
			return errors.NotFoundf("secret with label %q", label)
		}
		return errors.Trace(err)
	}
	for uri := range info {
		args := append([]string{uri}, contentArgs(content)...)
		_, err := e.runner.RunTool("secret-set", args...)
		return errors.Trace(err)
	}
	return errors.NotFoundf("secret with label %q", label)
}

func contentArgs(content secrets.Content) []string {
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, len(keys))
	for _, k := range keys {
		args = append(args, fmt.Sprintf("%s=%s", k, content[k]))
	}
	return args
}

func isSecretNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not found")
}
