// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm

import (
	"encoding/json"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"

	"github.com/canonical/kratos-operator/core/secrets"
)

// The charm owns a single durable secret: the cookie encryption key of
// the workload.
const (
	CookieSecretLabel = "cookie_secret"
	CookieSecretKey   = "cookiesecret"
)

// CookieSecret is the resolved cookie secret content.
type CookieSecret struct {
	value string
}

// LoadCookieSecret returns the cookie secret, or a NotFound error when
// it has not been created yet.
func LoadCookieSecret(store secrets.Store) (*CookieSecret, error) {
	content, err := store.Get(CookieSecretLabel)
	if err != nil {
		return nil, errors.Trace(err)
	}
	value := content[CookieSecretKey]
	if value == "" {
		return nil, errors.NotFoundf("cookie secret content")
	}
	return &CookieSecret{value: value}, nil
}

// EnsureCookieSecret creates the cookie secret when missing. Only the
// leader may create secrets; callers check leadership first.
func EnsureCookieSecret(store secrets.Store) error {
	if _, err := LoadCookieSecret(store); err == nil {
		return nil
	} else if !errors.IsNotFound(err) {
		return errors.Trace(err)
	}
	value, err := utils.RandomPassword()
	if err != nil {
		return errors.Trace(err)
	}
	logger.Infof("creating the cookie secret")
	return errors.Trace(store.Add(CookieSecretLabel, secrets.Content{CookieSecretKey: value}))
}

// EnvVars projects the secret into workload environment variables. The
// workload takes a JSON array so the key can be rotated by prepending a
// new value.
func (s *CookieSecret) EnvVars() map[string]string {
	encoded, err := json.Marshal([]string{s.value})
	if err != nil {
		return nil
	}
	return map[string]string{"SECRETS_COOKIE": string(encoded)}
}
