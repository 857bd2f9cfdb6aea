// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package kratos is a client for the identity server's admin API,
// covering the operations the charm actions need.
package kratos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"golang.org/x/crypto/bcrypt"
)

var logger = loggo.GetLogger("kratos-operator.kratos")

// Error classifications for API failures the actions care about.
const (
	ErrIdentityNotFound    = errors.ConstError("identity does not exist")
	ErrTooManyIdentities   = errors.ConstError("multiple identities match")
	ErrCredentialsNotFound = errors.ConstError("identity credentials do not exist")
	ErrSessionsNotFound    = errors.ConstError("identity has no sessions")
	ErrRequestFailed       = errors.ConstError("identity server request failed")
)

// Identity is the subset of the identity resource the charm handles.
// Raw carries the full response document for action output.
type Identity struct {
	ID          string                 `json:"id"`
	SchemaID    string                 `json:"schema_id"`
	State       string                 `json:"state"`
	Traits      map[string]interface{} `json:"traits"`
	Credentials map[string]Credential  `json:"credentials,omitempty"`

	Raw map[string]interface{} `json:"-"`
}

// Credential is one credential entry of an identity.
type Credential struct {
	Type        string   `json:"type,omitempty"`
	Identifiers []string `json:"identifiers,omitempty"`
}

// Client talks to the admin API of a single identity server.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// New returns a client for the admin API at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// GetIdentity fetches an identity by id.
func (c *Client) GetIdentity(ctx context.Context, identityID string) (*Identity, error) {
	var identity Identity
	err := c.do(ctx, http.MethodGet, "/admin/identities/"+identityID, nil, nil, &identity)
	return &identity, errors.Trace(err)
}

// GetIdentityByEmail looks an identity up by its credentials
// identifier. Exactly one identity must match.
func (c *Client) GetIdentityByEmail(ctx context.Context, email string) (*Identity, error) {
	var identities []Identity
	query := url.Values{"credentials_identifier": []string{email}}
	if err := c.do(ctx, http.MethodGet, "/admin/identities", query, nil, &identities); err != nil {
		return nil, errors.Trace(err)
	}
	switch len(identities) {
	case 0:
		return nil, ErrIdentityNotFound
	case 1:
		return &identities[0], nil
	default:
		return nil, ErrTooManyIdentities
	}
}

// CreateIdentity registers a new identity under the given schema. An
// empty password leaves the identity without a password credential; the
// admin API hashes a provided one server side on creation.
func (c *Client) CreateIdentity(ctx context.Context, traits map[string]interface{}, schemaID, password string) (*Identity, error) {
	body := map[string]interface{}{
		"schema_id": schemaID,
		"traits":    traits,
	}
	if password != "" {
		body["credentials"] = map[string]interface{}{
			"password": map[string]interface{}{
				"config": map[string]interface{}{"password": password},
			},
		}
	}
	var identity Identity
	err := c.do(ctx, http.MethodPost, "/admin/identities", nil, body, &identity)
	return &identity, errors.Trace(err)
}

// GetOIDCIdentifiers returns the external identity provider subjects
// linked to an identity.
func (c *Client) GetOIDCIdentifiers(ctx context.Context, identityID string) ([]string, error) {
	var identity Identity
	query := url.Values{"include_credential": []string{"oidc"}}
	if err := c.do(ctx, http.MethodGet, "/admin/identities/"+identityID, query, nil, &identity); err != nil {
		return nil, errors.Trace(err)
	}
	return identity.Credentials["oidc"].Identifiers, nil
}

// ResetPassword replaces the password of an identity. The password is
// hashed client side so it never appears in the server's request logs.
func (c *Client) ResetPassword(ctx context.Context, identity *Identity, password string) (*Identity, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Annotate(err, "cannot hash password")
	}
	body := map[string]interface{}{
		"state":     identity.State,
		"traits":    identity.Traits,
		"schema_id": identity.SchemaID,
		"credentials": map[string]interface{}{
			"password": map[string]interface{}{
				"config": map[string]interface{}{
					"hashed_password": string(hashed),
				},
			},
		},
	}
	var updated Identity
	err = c.do(ctx, http.MethodPut, "/admin/identities/"+identity.ID, nil, body, &updated)
	return &updated, errors.Trace(err)
}

// RecoveryCode is a one time code for recovering an identity.
type RecoveryCode struct {
	RecoveryCode string `json:"recovery_code"`
	RecoveryLink string `json:"recovery_link"`
	ExpiresAt    string `json:"expires_at"`
}

// CreateRecoveryCode creates a recovery code valid for expiresIn, e.g.
// "1h".
func (c *Client) CreateRecoveryCode(ctx context.Context, identityID, expiresIn string) (*RecoveryCode, error) {
	body := map[string]interface{}{
		"identity_id": identityID,
		"expires_in":  expiresIn,
	}
	var code RecoveryCode
	err := c.do(ctx, http.MethodPost, "/admin/recovery/code", nil, body, &code)
	return &code, errors.Trace(err)
}

// DeleteMFACredential removes a second factor credential (totp or
// lookup_secret) from an identity.
func (c *Client) DeleteMFACredential(ctx context.Context, identityID, mfaType string) error {
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/admin/identities/%s/credentials/%s", identityID, mfaType), nil, nil, nil)
	if errors.Is(err, ErrIdentityNotFound) {
		return ErrCredentialsNotFound
	}
	return errors.Trace(err)
}

// InvalidateSessions deletes every active session of an identity.
func (c *Client) InvalidateSessions(ctx context.Context, identityID string) error {
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/admin/identities/%s/sessions", identityID), nil, nil, nil)
	if errors.Is(err, ErrIdentityNotFound) {
		return ErrSessionsNotFound
	}
	return errors.Trace(err)
}

// DeleteIdentity removes an identity entirely.
func (c *Client) DeleteIdentity(ctx context.Context, identityID string) error {
	return errors.Trace(c.do(ctx, http.MethodDelete, "/admin/identities/"+identityID, nil, nil, nil))
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, result interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Trace(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.Trace(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		logger.Errorf("%s %s failed: %v", method, path, err)
		return errors.WithType(err, ErrRequestFailed)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return ErrIdentityNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		logger.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, payload)
		return errors.WithType(errors.Errorf("status %d", resp.StatusCode), ErrRequestFailed)
	}

	if result == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WithType(err, ErrRequestFailed)
	}
	if err := json.Unmarshal(data, result); err != nil {
		return errors.Annotate(err, "cannot decode response")
	}
	if identity, ok := result.(*Identity); ok {
		var raw map[string]interface{}
		if err := json.Unmarshal(data, &raw); err == nil {
			identity.Raw = raw
		}
	}
	return nil
}
