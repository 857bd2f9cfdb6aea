// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package charm implements the convergence engine: every inbound hook
// funnels into a single re-entrant reconcile procedure that walks an
// ordered gate ladder, performs the outbound side effects and hands the
// rendered artifacts to pebble.
package charm

import (
	"context"
	"fmt"

	"github.com/juju/loggo/v2"

	"github.com/canonical/kratos-operator/core/relation"
	"github.com/canonical/kratos-operator/core/secrets"
	"github.com/canonical/kratos-operator/core/status"
	"github.com/canonical/kratos-operator/internal/kratos"
	"github.com/canonical/kratos-operator/internal/workload"
)

var logger = loggo.GetLogger("kratos-operator.charm")

// ConfigMap names owned by this application in the model namespace.
const (
	ConfigConfigMapName    = "kratos-config"
	SchemasConfigMapName   = "identity-schemas"
	ProvidersConfigMapName = "oidc-providers"

	// ProvidersConfigMapFileName is the key inside the providers
	// ConfigMap holding the provider list.
	ProvidersConfigMapFileName = "idps.yaml"

	// ConfigFileName is the key inside the kratos-config ConfigMap
	// holding the rendered configuration.
	ConfigFileName = "kratos.yaml"
)

// localCACertPath is where transferred CA certificates are staged in
// the workload container before update-ca-certificates rebuilds the
// system bundle.
const localCACertPath = "/usr/local/share/ca-certificates/trusted-juju.crt"

// AdminAPIURL is the workload admin API as reachable from the charm
// container, which shares the pod network namespace.
const AdminAPIURL = "http://127.0.0.1:4434"

// HookEnv is everything the charm needs from the hook environment. It
// is satisfied by hookenv.Env.
type HookEnv interface {
	relation.Getter
	relation.Setter
	secrets.Store

	UnitName() string
	AppName() string
	ModelName() string
	IsLeader() (bool, error)
	ConfigValues() (map[string]interface{}, error)
	SetUnitStatus(status.StatusInfo) error
	SetApplicationVersion(version string) error
	OpenPort(protocol string, port int) error

	ActionParams() (map[string]interface{}, error)
	ActionSetResults(results map[string]interface{}) error
	ActionFail(message string) error
	ActionLog(message string) error
}

// ConfigMaps is the charm's view of its ConfigMap store, satisfied by
// kubernetes.ConfigMapStore.
type ConfigMaps interface {
	Get(ctx context.Context, name string) (map[string]string, error)
	Ensure(ctx context.Context, name string, data map[string]string) error
	Update(ctx context.Context, name string, data map[string]string) error
	Delete(ctx context.Context, name string) error
}

// NetworkPolicies maintains the ingress policy guarding the workload
// ports, satisfied by kubernetes.NetworkPolicyApplier.
type NetworkPolicies interface {
	Apply(ctx context.Context, rules []PolicyRule) error
	Delete(ctx context.Context) error
}

// PolicyRule mirrors kubernetes.IngressRule without importing the k8s
// glue into every test.
type PolicyRule struct {
	Port    int
	Allowed []string
}

// IdentityAdmin is the surface of the kratos admin API client the
// actions use, satisfied by kratos.Client.
type IdentityAdmin interface {
	GetIdentity(ctx context.Context, identityID string) (*kratos.Identity, error)
	GetIdentityByEmail(ctx context.Context, email string) (*kratos.Identity, error)
	CreateIdentity(ctx context.Context, traits map[string]interface{}, schemaID, password string) (*kratos.Identity, error)
	DeleteIdentity(ctx context.Context, identityID string) error
	ResetPassword(ctx context.Context, identity *kratos.Identity, password string) (*kratos.Identity, error)
	CreateRecoveryCode(ctx context.Context, identityID, expiresIn string) (*kratos.RecoveryCode, error)
	DeleteMFACredential(ctx context.Context, identityID, mfaType string) error
	InvalidateSessions(ctx context.Context, identityID string) error
}

// Charm wires the hook environment, the workload container and the
// cluster resources together.
type Charm struct {
	env       HookEnv
	container workload.Container
	cli       *workload.CommandLine
	configMap ConfigMaps
	policies  NetworkPolicies
	admin     IdentityAdmin
}

// New returns a charm over the given collaborators.
func New(env HookEnv, container workload.Container, configMap ConfigMaps, policies NetworkPolicies, admin IdentityAdmin) *Charm {
	return &Charm{
		env:       env,
		container: container,
		cli:       workload.NewCommandLine(container),
		configMap: configMap,
		policies:  policies,
		admin:     admin,
	}
}

// databaseName is the name of the workload database owned by this
// deployment, unique per model.
func (c *Charm) databaseName() string {
	return fmt.Sprintf("%s_%s", c.env.ModelName(), c.env.AppName())
}

// isLeader degrades hook environment errors to non-leadership so a
// flaky leadership read never causes duplicate mutations.
func (c *Charm) isLeader() bool {
	leader, err := c.env.IsLeader()
	if err != nil {
		logger.Warningf("cannot determine leadership: %v", err)
		return false
	}
	return leader
}

func (c *Charm) setStatus(s status.Status, message string) {
	if err := c.env.SetUnitStatus(status.StatusInfo{Status: s, Message: message}); err != nil {
		logger.Errorf("cannot set unit status: %v", err)
	}
}

// adminEndpoint is the cluster-internal admin API endpoint published
// downstream: the internal ingress URL when resolved, the Kubernetes
// service DNS name otherwise.
func (c *Charm) adminEndpoint(internalURL string) string {
	if internalURL != "" {
		return internalURL
	}
	return fmt.Sprintf("http://%s.%s.svc.cluster.local:%d", c.env.AppName(), c.env.ModelName(), workload.AdminPort)
}

func (c *Charm) publicEndpoint(internalURL string) string {
	if internalURL != "" {
		return internalURL
	}
	return fmt.Sprintf("http://%s.%s.svc.cluster.local:%d", c.env.AppName(), c.env.ModelName(), workload.PublicPort)
}
