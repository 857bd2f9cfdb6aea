// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package kubernetes manages the cluster resources owned by the charm
// beyond what Juju itself creates: ConfigMaps holding workload
// configuration and the network policy guarding the workload ports.
// All operations need a trusted application; a 403 from the API server
// is surfaced with a hint to run "juju trust".
package kubernetes

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/retry"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

var logger = loggo.GetLogger("kratos-operator.kubernetes")

const managedByLabel = "app.kubernetes.io/managed-by"

// conflictRetryDelay spaces out retries of conflicted ConfigMap
// updates.
const conflictRetryDelay = 100 * time.Millisecond

// ConfigMapStore reads and writes the ConfigMaps owned by this
// application in its model namespace.
type ConfigMapStore struct {
	client    kubernetes.Interface
	namespace string
	appName   string
	clock     clock.Clock
}

// NewConfigMapStore returns a store scoped to the model namespace.
func NewConfigMapStore(client kubernetes.Interface, namespace, appName string, clk clock.Clock) *ConfigMapStore {
	return &ConfigMapStore{
		client:    client,
		namespace: namespace,
		appName:   appName,
		clock:     clk,
	}
}

// Get returns the data of the named ConfigMap, or a NotFound error.
func (s *ConfigMapStore) Get(ctx context.Context, name string) (map[string]string, error) {
	cm, err := s.client.CoreV1().ConfigMaps(s.namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, annotateAPIError(err, "cannot get ConfigMap %q", name)
	}
	return cm.Data, nil
}

// Ensure creates the named ConfigMap if it does not exist yet. The
// initial data may be nil.
func (s *ConfigMapStore) Ensure(ctx context.Context, name string, data map[string]string) error {
	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: s.namespace,
			Labels: map[string]string{
				"juju-app-name": s.appName,
				managedByLabel:  "juju",
			},
		},
		Data: data,
	}
	_, err := s.client.CoreV1().ConfigMaps(s.namespace).Create(ctx, cm, metav1.CreateOptions{})
	if k8serrors.IsAlreadyExists(err) {
		return nil
	}
	return annotateAPIError(err, "cannot create ConfigMap %q", name)
}

// Update replaces the data of the named ConfigMap, retrying on
// conflicts with concurrent writers.
func (s *ConfigMapStore) Update(ctx context.Context, name string, data map[string]string) error {
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			cm, err := s.client.CoreV1().ConfigMaps(s.namespace).Get(ctx, name, metav1.GetOptions{})
			if err != nil {
				return errors.Trace(err)
			}
			cm.Data = data
			_, err = s.client.CoreV1().ConfigMaps(s.namespace).Update(ctx, cm, metav1.UpdateOptions{})
			return errors.Trace(err)
		},
		IsFatalError: func(err error) bool {
			return !k8serrors.IsConflict(errors.Cause(err))
		},
		Attempts: 5,
		Delay:    conflictRetryDelay,
		Clock:    s.clock,
		Stop:     ctx.Done(),
	})
	return annotateAPIError(errors.Cause(err), "cannot update ConfigMap %q", name)
}

// Delete removes the named ConfigMap. Deleting a ConfigMap that is
// already gone is not an error.
func (s *ConfigMapStore) Delete(ctx context.Context, name string) error {
	err := s.client.CoreV1().ConfigMaps(s.namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if k8serrors.IsNotFound(err) {
		return nil
	}
	return annotateAPIError(err, "cannot delete ConfigMap %q", name)
}

func annotateAPIError(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	if k8serrors.IsNotFound(err) {
		return errors.NewNotFound(err, "")
	}
	if k8serrors.IsForbidden(err) {
		return errors.Annotatef(err, format+": run `juju trust` on this application", args...)
	}
	return errors.Annotatef(err, format, args...)
}
