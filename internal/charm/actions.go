// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"

	"github.com/canonical/kratos-operator/internal/integration"
	"github.com/canonical/kratos-operator/internal/kratos"
	"github.com/canonical/kratos-operator/internal/workload"
)

// adminSchemaID is the packaged identity schema admin accounts are
// created under.
const adminSchemaID = "admin_v0"

const recoveryCodeLifetime = "1h"

// RunAction dispatches a named action. Domain failures are reported
// through action-fail with a stable message per failure class; the
// returned error is only for hook environment failures.
func (c *Charm) RunAction(ctx context.Context, name string) error {
	params, err := c.env.ActionParams()
	if err != nil {
		return errors.Trace(err)
	}

	switch name {
	case "get-identity":
		return c.runGetIdentity(ctx, params)
	case "delete-identity":
		return c.runDeleteIdentity(ctx, params)
	case "reset-password":
		return c.runResetPassword(ctx, params)
	case "reset-identity-mfa":
		return c.runResetIdentityMFA(ctx, params)
	case "invalidate-identity-sessions":
		return c.runInvalidateSessions(ctx, params)
	case "create-admin-account":
		return c.runCreateAdminAccount(ctx, params)
	case "run-migration":
		return c.runMigration(ctx, params)
	default:
		return errors.Trace(c.env.ActionFail(fmt.Sprintf("Unknown action %q", name)))
	}
}

// serviceReady reports whether the workload can serve admin API calls,
// failing the action otherwise.
func (c *Charm) serviceReady() (bool, error) {
	if c.container.CanConnect() && c.container.ServiceRunning(workload.ServiceName) {
		return true, nil
	}
	return false, errors.Trace(c.env.ActionFail("Service is not ready. Please re-run the action when the charm is active"))
}

// resolveIdentityID turns the identity-id/email parameter pair into an
// identity id. Exactly one of the two must be provided; an email must
// match exactly one identity. A "" return means the action has already
// been failed.
func (c *Charm) resolveIdentityID(ctx context.Context, params map[string]interface{}) (string, error) {
	identityID := stringParam(params, "identity-id")
	email := stringParam(params, "email")

	switch {
	case identityID != "" && email != "":
		return "", errors.Trace(c.env.ActionFail("Only one of identity-id and email can be provided"))
	case identityID == "" && email == "":
		return "", errors.Trace(c.env.ActionFail("One of identity-id and email must be provided"))
	case identityID != "":
		if !utils.IsValidUUIDString(identityID) {
			return "", errors.Trace(c.env.ActionFail("The identity-id must be a valid UUID"))
		}
		return identityID, nil
	}

	identity, err := c.admin.GetIdentityByEmail(ctx, email)
	switch {
	case err == nil:
		return identity.ID, nil
	case errors.Is(err, kratos.ErrIdentityNotFound):
		return "", errors.Trace(c.env.ActionFail(fmt.Sprintf("Identity not found for email %q", email)))
	case errors.Is(err, kratos.ErrTooManyIdentities):
		return "", errors.Trace(c.env.ActionFail(fmt.Sprintf("Multiple identities found for email %q, please provide an identity-id instead", email)))
	default:
		logger.Errorf("identity lookup by email failed: %v", err)
		return "", errors.Trace(c.env.ActionFail("Couldn't retrieve the identity id from email"))
	}
}

func (c *Charm) runGetIdentity(ctx context.Context, params map[string]interface{}) error {
	if ok, err := c.serviceReady(); !ok {
		return errors.Trace(err)
	}
	identityID, err := c.resolveIdentityID(ctx, params)
	if err != nil || identityID == "" {
		return errors.Trace(err)
	}

	_ = c.env.ActionLog("Fetching the identity")
	identity, err := c.admin.GetIdentity(ctx, identityID)
	if err != nil {
		if errors.Is(err, kratos.ErrIdentityNotFound) {
			return errors.Trace(c.env.ActionFail("Identity not found"))
		}
		logger.Errorf("cannot get identity: %v", err)
		return errors.Trace(c.env.ActionFail("Failed to request the identity server"))
	}
	return errors.Trace(c.env.ActionSetResults(identity.Raw))
}

func (c *Charm) runDeleteIdentity(ctx context.Context, params map[string]interface{}) error {
	if ok, err := c.serviceReady(); !ok {
		return errors.Trace(err)
	}
	identityID, err := c.resolveIdentityID(ctx, params)
	if err != nil || identityID == "" {
		return errors.Trace(err)
	}

	_ = c.env.ActionLog("Deleting the identity")
	if err := c.admin.DeleteIdentity(ctx, identityID); err != nil {
		if errors.Is(err, kratos.ErrIdentityNotFound) {
			return errors.Trace(c.env.ActionFail("Identity not found"))
		}
		logger.Errorf("cannot delete identity: %v", err)
		return errors.Trace(c.env.ActionFail("Failed to request the identity server"))
	}
	return errors.Trace(c.env.ActionSetResults(map[string]interface{}{"identity-id": identityID}))
}

// runResetPassword resets a password directly when a password secret is
// provided, and mints a one time recovery code otherwise.
func (c *Charm) runResetPassword(ctx context.Context, params map[string]interface{}) error {
	if ok, err := c.serviceReady(); !ok {
		return errors.Trace(err)
	}
	identityID, err := c.resolveIdentityID(ctx, params)
	if err != nil || identityID == "" {
		return errors.Trace(err)
	}

	if secretID := stringParam(params, "password-secret-id"); secretID != "" {
		content, err := c.env.GetByURI(secretID)
		if err != nil {
			return errors.Trace(c.env.ActionFail("Could not read the password secret, make sure it is granted to the application"))
		}
		password := content["password"]
		if password == "" {
			return errors.Trace(c.env.ActionFail("The password secret must have a `password` key"))
		}

		identity, err := c.admin.GetIdentity(ctx, identityID)
		if err != nil {
			if errors.Is(err, kratos.ErrIdentityNotFound) {
				return errors.Trace(c.env.ActionFail("Identity not found"))
			}
			logger.Errorf("cannot get identity: %v", err)
			return errors.Trace(c.env.ActionFail("Failed to request the identity server"))
		}
		if _, err := c.admin.ResetPassword(ctx, identity, password); err != nil {
			logger.Errorf("cannot reset password: %v", err)
			return errors.Trace(c.env.ActionFail("Failed to reset the password"))
		}
		return errors.Trace(c.env.ActionSetResults(map[string]interface{}{"identity-id": identityID}))
	}

	_ = c.env.ActionLog("Creating a recovery code")
	code, err := c.admin.CreateRecoveryCode(ctx, identityID, recoveryCodeLifetime)
	if err != nil {
		logger.Errorf("cannot create recovery code: %v", err)
		return errors.Trace(c.env.ActionFail("Failed to create a recovery code"))
	}
	_ = c.env.ActionLog("Use the code to recover the user's password")
	return errors.Trace(c.env.ActionSetResults(map[string]interface{}{
		"identity-id":   identityID,
		"recovery-code": code.RecoveryCode,
		"expires-at":    code.ExpiresAt,
	}))
}

func (c *Charm) runResetIdentityMFA(ctx context.Context, params map[string]interface{}) error {
	if ok, err := c.serviceReady(); !ok {
		return errors.Trace(err)
	}
	mfaType := stringParam(params, "mfa-type")
	switch mfaType {
	case "totp", "lookup_secret", "webauthn":
	default:
		return errors.Trace(c.env.ActionFail(fmt.Sprintf("Unsupported mfa-type %q, allowed values are: totp, lookup_secret and webauthn", mfaType)))
	}
	identityID, err := c.resolveIdentityID(ctx, params)
	if err != nil || identityID == "" {
		return errors.Trace(err)
	}

	if err := c.admin.DeleteMFACredential(ctx, identityID, mfaType); err != nil {
		if errors.Is(err, kratos.ErrCredentialsNotFound) {
			_ = c.env.ActionLog(fmt.Sprintf("The identity has no %s credentials", mfaType))
			return errors.Trace(c.env.ActionSetResults(map[string]interface{}{"identity-id": identityID}))
		}
		logger.Errorf("cannot delete %s credentials: %v", mfaType, err)
		return errors.Trace(c.env.ActionFail("Failed to reset the second factor credentials"))
	}
	return errors.Trace(c.env.ActionSetResults(map[string]interface{}{"identity-id": identityID}))
}

func (c *Charm) runInvalidateSessions(ctx context.Context, params map[string]interface{}) error {
	if ok, err := c.serviceReady(); !ok {
		return errors.Trace(err)
	}
	identityID, err := c.resolveIdentityID(ctx, params)
	if err != nil || identityID == "" {
		return errors.Trace(err)
	}

	if err := c.admin.InvalidateSessions(ctx, identityID); err != nil {
		if errors.Is(err, kratos.ErrSessionsNotFound) {
			_ = c.env.ActionLog("The identity has no active sessions")
			return errors.Trace(c.env.ActionSetResults(map[string]interface{}{"identity-id": identityID}))
		}
		logger.Errorf("cannot invalidate sessions: %v", err)
		return errors.Trace(c.env.ActionFail("Failed to invalidate the identity's sessions"))
	}
	return errors.Trace(c.env.ActionSetResults(map[string]interface{}{"identity-id": identityID}))
}

func (c *Charm) runCreateAdminAccount(ctx context.Context, params map[string]interface{}) error {
	if ok, err := c.serviceReady(); !ok {
		return errors.Trace(err)
	}
	username := stringParam(params, "username")
	if username == "" {
		return errors.Trace(c.env.ActionFail("A username must be provided"))
	}
	traits := map[string]interface{}{"username": username}
	for _, key := range []string{"name", "email", "phone_number"} {
		if value := stringParam(params, key); value != "" {
			traits[key] = value
		}
	}

	var password string
	if secretID := stringParam(params, "password-secret-id"); secretID != "" {
		content, err := c.env.GetByURI(secretID)
		if err != nil {
			return errors.Trace(c.env.ActionFail("Could not read the password secret, make sure it is granted to the application"))
		}
		password = content["password"]
	}

	_ = c.env.ActionLog("Creating the admin account")
	identity, err := c.admin.CreateIdentity(ctx, traits, adminSchemaID, password)
	if err != nil {
		logger.Errorf("cannot create admin account: %v", err)
		return errors.Trace(c.env.ActionFail("Failed to create the admin account"))
	}
	results := map[string]interface{}{"identity-id": identity.ID}

	if password == "" {
		_ = c.env.ActionLog("Creating a recovery code for setting the admin password")
		code, err := c.admin.CreateRecoveryCode(ctx, identity.ID, recoveryCodeLifetime)
		if err != nil {
			logger.Errorf("cannot create recovery code: %v", err)
			return errors.Trace(c.env.ActionFail("Failed to create a recovery code"))
		}
		results["password-reset-code"] = code.RecoveryCode
		results["expires-at"] = code.ExpiresAt
	}
	return errors.Trace(c.env.ActionSetResults(results))
}

func (c *Charm) runMigration(ctx context.Context, params map[string]interface{}) error {
	if !c.container.CanConnect() {
		return errors.Trace(c.env.ActionFail("Service is not ready. Please re-run the action when the charm is active"))
	}
	db := integration.LoadDatabaseConfig(c.env, c.databaseName())
	if !db.ResourceCreated() {
		return errors.Trace(c.env.ActionFail("The database is not yet created"))
	}

	timeout := workload.DefaultMigrationTimeout
	if seconds := floatParam(params, "timeout"); seconds > 0 {
		timeout = time.Duration(seconds * float64(time.Second))
	}

	_ = c.env.ActionLog("Migrating the database")
	if err := c.cli.Migrate(db.DSN(), timeout); err != nil {
		logger.Errorf("database migration failed: %v", err)
		return errors.Trace(c.env.ActionFail("Database migration action failed"))
	}
	_ = c.env.ActionLog("Successfully migrated the database")

	version, err := c.cli.Version()
	if err != nil {
		return errors.Trace(c.env.ActionFail("Migrated, but could not read the workload version"))
	}
	if !c.peers().Exists() {
		return errors.Trace(c.env.ActionFail("Peer relation not ready. Failed to store migration version"))
	}
	if err := c.peers().Set(db.MigrationVersionKey(), version); err != nil {
		return errors.Trace(err)
	}
	_ = c.env.ActionLog("Updated migration version in peer data")
	return nil
}

func stringParam(params map[string]interface{}, key string) string {
	value, _ := params[key].(string)
	return value
}

func floatParam(params map[string]interface{}, key string) float64 {
	switch value := params[key].(type) {
	case float64:
		return value
	case int:
		return float64(value)
	default:
		return 0
	}
}
