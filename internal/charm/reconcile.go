// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"gopkg.in/yaml.v3"

	"github.com/canonical/kratos-operator/core/relation"
	"github.com/canonical/kratos-operator/core/status"
	"github.com/canonical/kratos-operator/internal/integration"
	"github.com/canonical/kratos-operator/internal/schema"
	"github.com/canonical/kratos-operator/internal/workload"
)

// Reconcile is the single transition function every inbound event of
// interest funnels into. It walks the gate ladder in a fixed order; the
// first failing gate determines the unit status and whether the event
// is redelivered. Everything up to the first mutating step is read
// only, so re-running after a deferral never duplicates side effects.
func (c *Charm) Reconcile(ctx context.Context) (bool, error) {
	if !c.container.CanConnect() {
		c.setStatus(status.Waiting, "Waiting to connect to Kratos container")
		return false, nil
	}

	rawConfig, err := c.env.ConfigValues()
	if err != nil {
		return false, errors.Trace(err)
	}
	cfg, err := ParseConfig(rawConfig)
	if err != nil {
		return false, errors.Trace(err)
	}
	if !cfg.LogLevelValid() {
		logger.Infof("invalid configuration value for log_level: %q", cfg.LogLevel)
		c.setStatus(status.Blocked, "Invalid configuration value for log_level")
		return false, nil
	}

	c.setStatus(status.Maintenance, "Configuring resources")

	if !c.peers().Exists() {
		c.setStatus(status.Waiting, "Waiting for peer relation")
		return true, nil
	}

	db := integration.LoadDatabaseConfig(c.env, c.databaseName())
	if !db.Exists() {
		c.setStatus(status.Blocked, "Missing required relation with postgresql")
		return false, nil
	}
	if !db.ResourceCreated() {
		c.setStatus(status.Waiting, "Waiting for database creation")
		return false, nil
	}

	cookie, err := c.cookieSecret()
	if err != nil {
		if !errors.IsNotFound(err) {
			return false, errors.Trace(err)
		}
		c.setStatus(status.Waiting, "Waiting for secret creation")
		return false, nil
	}

	version, err := c.cli.Version()
	if err != nil {
		return false, errors.Trace(err)
	}
	if c.peers().Get(db.MigrationVersionKey()) != version {
		c.setStatus(status.Waiting, "Waiting for database migration")
		return false, nil
	}

	relationProviders := integration.LoadProviders(c.env)
	providers := append(relationProviders, c.configMapProviders(ctx)...)
	public := integration.LoadPublicIngressData(c.env)
	downstream := relation.Exists(c.env, integration.KratosInfoIntegrationName) ||
		relation.Exists(c.env, integration.ExternalIDPIntegrationName)
	if downstream && !relation.Exists(c.env, integration.PublicIngressIntegrationName) {
		c.setStatus(status.Blocked, "Cannot publish external endpoints without a public ingress relation")
		return false, nil
	}
	if downstream && !public.IsReady() {
		c.setStatus(status.Waiting, "Waiting for the ingress URL to be resolved")
		return true, nil
	}

	if cfg.MutuallyExclusive() {
		c.setStatus(status.Blocked, "enforce_mfa and enable_oidc_webauthn_sequencing cannot both be enabled")
		return false, nil
	}

	leader := c.isLeader()
	if leader {
		if err := c.peers().CleanupMigrationVersions(c.liveMigrationKeys()); err != nil {
			return false, errors.Trace(err)
		}
		if err := c.publishRedirectURIs(relationProviders, public.URL); err != nil {
			return false, errors.Trace(err)
		}
	}

	if err := c.materialiseTrustBundle(); err != nil {
		return false, errors.Trace(err)
	}
	if err := c.pushEmailTemplate(cfg); err != nil {
		return false, errors.Trace(err)
	}

	schemas, err := c.resolveSchemas(ctx, cfg)
	if err != nil {
		c.setStatus(status.Blocked, "Failed to resolve the identity schemas")
		return false, errors.Trace(err)
	}

	loginUI := integration.LoadLoginUIEndpoints(c.env)
	if loginUI.Unavailable() {
		logger.Warningf("login UI endpoints are published but empty")
	}
	hydra := integration.LoadHydraEndpoints(c.env)
	webhook := integration.LoadRegistrationWebhookConfig(c.env)
	configFile, err := workload.RenderConfigFile(
		schemasSource{schemas},
		cfg,
		loginUI,
		hydra,
		public,
		webhook,
		providerSource{c.renderProviders(providers)},
	)
	if err != nil {
		return false, errors.Trace(err)
	}

	if leader {
		if err := c.storeConfig(ctx, configFile.Content()); err != nil {
			return false, errors.Trace(err)
		}
		if err := c.applyNetworkPolicy(ctx); err != nil {
			return false, errors.Trace(err)
		}
	}

	env := workload.BuildEnvironment(
		cfg,
		db,
		public,
		integration.LoadTracingData(c.env),
		integration.LoadSMTPConfig(c.env, c.env),
		cookie,
	)
	restarted, err := workload.Plan(c.container, workload.NewLayer(env), configFile)
	if err != nil {
		logger.Errorf("cannot apply the pebble plan: %v", err)
		c.setStatus(status.Blocked, "Failed to restart, please consult the logs")
		return false, nil
	}
	if restarted {
		logger.Infof("workload configuration changed, service restarted")
	}

	if err := c.env.OpenPort("tcp", workload.PublicPort); err != nil {
		return false, errors.Trace(err)
	}
	if err := c.env.OpenPort("tcp", workload.AdminPort); err != nil {
		return false, errors.Trace(err)
	}
	if err := c.env.SetApplicationVersion(version); err != nil {
		return false, errors.Trace(err)
	}

	if leader {
		if err := c.publishInfo(cfg, public); err != nil {
			return false, errors.Trace(err)
		}
		if err := c.submitRouteConfig(); err != nil {
			return false, errors.Trace(err)
		}
	}

	c.setStatus(status.Active, "")
	return false, nil
}

// cookieSecret loads the cookie secret, creating it first on the
// leader when missing.
func (c *Charm) cookieSecret() (*CookieSecret, error) {
	cookie, err := LoadCookieSecret(c.env)
	if err == nil {
		return cookie, nil
	}
	if !errors.IsNotFound(err) || !c.isLeader() {
		return nil, errors.Trace(err)
	}
	if err := EnsureCookieSecret(c.env); err != nil {
		return nil, errors.Trace(err)
	}
	return LoadCookieSecret(c.env)
}

// liveMigrationKeys returns the migration marker keys of the database
// relations that still exist.
func (c *Charm) liveMigrationKeys() set.Strings {
	live := set.NewStrings()
	rels, err := c.env.Relations(integration.DatabaseIntegrationName)
	if err != nil {
		return live
	}
	for _, rel := range rels {
		live.Add((&integration.DatabaseConfig{RelationID: rel.ID}).MigrationVersionKey())
	}
	return live
}

// configMapProviders returns the providers registered directly in the
// oidc-providers ConfigMap, bypassing any relation.
func (c *Charm) configMapProviders(ctx context.Context) []integration.Provider {
	data, err := c.configMap.Get(ctx, ProvidersConfigMapName)
	if err != nil {
		if !errors.IsNotFound(err) {
			logger.Warningf("cannot read the providers ConfigMap: %v", err)
		}
		return nil
	}
	raw := data[ProvidersConfigMapFileName]
	if raw == "" {
		return nil
	}
	var entries []map[string]interface{}
	if err := yaml.Unmarshal([]byte(raw), &entries); err != nil {
		logger.Warningf("malformed provider list in ConfigMap: %v", err)
		return nil
	}
	encoded, err := json.Marshal(entries)
	if err != nil {
		return nil
	}
	return integration.ParseProviderList(encoded)
}

// renderProviders resolves each provider's claim mapper and projects it
// into the form the configuration template renders.
func (c *Charm) renderProviders(providers []integration.Provider) []workload.OIDCProvider {
	if len(providers) == 0 {
		return nil
	}
	mappers := claimMappers()
	rendered := make([]workload.OIDCProvider, 0, len(providers))
	for _, p := range providers {
		rendered = append(rendered, workload.OIDCProvider{
			ID:                p.ID,
			Provider:          p.Provider,
			Label:             p.Label,
			ClientID:          p.ClientID,
			ClientSecret:      p.ClientSecret,
			IssuerURL:         p.IssuerFor(),
			MicrosoftTenant:   p.MicrosoftTenant,
			AppleTeamID:       p.AppleTeamID,
			ApplePrivateKeyID: p.ApplePrivateKeyID,
			ApplePrivateKey:   p.ApplePrivateKey,
			MapperURL:         mapperURLFor(p.Provider, p.MapperURL, mappers),
			Scope:             p.ScopeList(),
		})
	}
	return rendered
}

// resolveSchemas walks the ranked identity schema sources.
func (c *Charm) resolveSchemas(ctx context.Context, cfg *Config) (*schema.Schemas, error) {
	resolver := schema.NewResolver(
		schema.ConfigSource{DefaultID: cfg.DefaultIdentitySchemaID, RawSchemas: cfg.IdentitySchemas},
		schema.ConfigMapSource{ConfigMaps: c.configMap, Name: SchemasConfigMapName},
		schema.FSSource{FS: assetsFS, Dir: identitySchemasDir},
	)
	schemas, err := resolver.Resolve(ctx)
	return schemas, errors.Trace(err)
}

// materialiseTrustBundle pushes the transferred CA certificates into
// the container and rebuilds the system bundle, only when the staged
// certificates changed.
func (c *Charm) materialiseTrustBundle() error {
	bundle := integration.LoadCACertBundle(c.env)
	if bundle.IsEmpty() {
		return nil
	}
	desired := bundle.PEM()
	current, err := c.container.Pull(localCACertPath)
	if err == nil && string(current) == desired {
		return nil
	}
	if err != nil && !errors.IsNotFound(err) {
		return errors.Trace(err)
	}
	logger.Infof("refreshing the CA trust bundle")
	if err := c.container.Push(localCACertPath, []byte(desired)); err != nil {
		return errors.Trace(err)
	}
	_, err = c.container.Exec([]string{"update-ca-certificates", "--fresh"}, nil, time.Minute)
	return errors.Annotate(err, "cannot rebuild the CA bundle")
}

// pushEmailTemplate deploys the operator-provided recovery email body,
// when configured.
func (c *Charm) pushEmailTemplate(cfg *Config) error {
	if cfg.RecoveryEmailTemplate == "" {
		return nil
	}
	current, err := c.container.Pull(workload.EmailTemplateFilePath)
	if err == nil && string(current) == cfg.RecoveryEmailTemplate {
		return nil
	}
	if err != nil && !errors.IsNotFound(err) {
		return errors.Trace(err)
	}
	return errors.Trace(c.container.Push(workload.EmailTemplateFilePath, []byte(cfg.RecoveryEmailTemplate)))
}

// storeConfig mirrors the rendered configuration into the kratos-config
// ConfigMap so it is inspectable without pebble access.
func (c *Charm) storeConfig(ctx context.Context, content string) error {
	data := map[string]string{ConfigFileName: content}
	err := c.configMap.Update(ctx, ConfigConfigMapName, data)
	if errors.IsNotFound(err) {
		return errors.Trace(c.configMap.Ensure(ctx, ConfigConfigMapName, data))
	}
	return errors.Trace(err)
}

// applyNetworkPolicy admits everything on the public port and restricts
// the admin port to the applications fronting it.
func (c *Charm) applyNetworkPolicy(ctx context.Context) error {
	adminApps := c.remoteApps(integration.AdminIngressIntegrationName)
	adminApps = append(adminApps, c.remoteApps(integration.InternalIngressIntegrationName)...)
	rules := []PolicyRule{
		{Port: workload.PublicPort},
		{Port: workload.AdminPort, Allowed: adminApps},
	}
	return errors.Trace(c.policies.Apply(ctx, rules))
}

func (c *Charm) remoteApps(endpoint string) []string {
	rels, err := c.env.Relations(endpoint)
	if err != nil {
		return nil
	}
	apps := set.NewStrings()
	for _, rel := range rels {
		if rel.RemoteApp != "" {
			apps.Add(rel.RemoteApp)
		}
	}
	return apps.SortedValues()
}

// schemasSource adapts resolved identity schemas to the configuration
// template inputs.
type schemasSource struct {
	schemas *schema.Schemas
}

func (s schemasSource) ServiceConfigs() map[string]interface{} {
	return map[string]interface{}{
		"default_identity_schema_id": s.schemas.DefaultID,
		"identity_schemas":           s.schemas.Encoded,
	}
}

// providerSource adapts the rendered provider list to the configuration
// template inputs.
type providerSource struct {
	providers []workload.OIDCProvider
}

func (s providerSource) ServiceConfigs() map[string]interface{} {
	if len(s.providers) == 0 {
		return nil
	}
	return map[string]interface{}{"oidc_providers": s.providers}
}
