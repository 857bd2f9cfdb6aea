// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package kubernetes

import (
	"context"
	"fmt"

	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/client-go/kubernetes"

	networkingv1 "k8s.io/api/networking/v1"
)

const appNameLabel = "app.kubernetes.io/name"

// IngressRule allows traffic to one workload port from the named
// applications. An empty Allowed list admits all sources on the port;
// ports named in no rule have all ingress denied.
type IngressRule struct {
	Port    int
	Allowed []string
}

// NetworkPolicyApplier maintains the single network policy guarding
// the workload pods of this application.
type NetworkPolicyApplier struct {
	client    kubernetes.Interface
	namespace string
	appName   string
}

// NewNetworkPolicyApplier returns an applier scoped to the model
// namespace.
func NewNetworkPolicyApplier(client kubernetes.Interface, namespace, appName string) *NetworkPolicyApplier {
	return &NetworkPolicyApplier{
		client:    client,
		namespace: namespace,
		appName:   appName,
	}
}

// PolicyName is the name of the policy owned by this application.
func (a *NetworkPolicyApplier) PolicyName() string {
	return fmt.Sprintf("%s-network-policy", a.appName)
}

// Apply replaces the ingress policy with the given rules. Ports not
// named in any rule have all ingress traffic denied.
func (a *NetworkPolicyApplier) Apply(ctx context.Context, rules []IngressRule) error {
	ingress := make([]networkingv1.NetworkPolicyIngressRule, 0, len(rules))
	for _, rule := range rules {
		peers := make([]networkingv1.NetworkPolicyPeer, 0, len(rule.Allowed))
		for _, app := range rule.Allowed {
			peers = append(peers, networkingv1.NetworkPolicyPeer{
				PodSelector: &metav1.LabelSelector{
					MatchLabels: map[string]string{appNameLabel: app},
				},
			})
		}
		port := intstr.FromInt(rule.Port)
		ingress = append(ingress, networkingv1.NetworkPolicyIngressRule{
			From:  peers,
			Ports: []networkingv1.NetworkPolicyPort{{Port: &port}},
		})
	}

	policy := &networkingv1.NetworkPolicy{
		ObjectMeta: metav1.ObjectMeta{
			Name:      a.PolicyName(),
			Namespace: a.namespace,
			Labels:    map[string]string{managedByLabel: "juju"},
		},
		Spec: networkingv1.NetworkPolicySpec{
			PodSelector: metav1.LabelSelector{
				MatchLabels: map[string]string{appNameLabel: a.appName},
			},
			PolicyTypes: []networkingv1.PolicyType{networkingv1.PolicyTypeIngress},
			Ingress:     ingress,
		},
	}

	policies := a.client.NetworkingV1().NetworkPolicies(a.namespace)
	existing, err := policies.Get(ctx, policy.Name, metav1.GetOptions{})
	if k8serrors.IsNotFound(err) {
		_, err = policies.Create(ctx, policy, metav1.CreateOptions{})
		return annotateAPIError(err, "cannot create network policy %q", policy.Name)
	}
	if err != nil {
		return annotateAPIError(err, "cannot get network policy %q", policy.Name)
	}

	existing.Labels = policy.Labels
	existing.Spec = policy.Spec
	_, err = policies.Update(ctx, existing, metav1.UpdateOptions{})
	return annotateAPIError(err, "cannot update network policy %q", policy.Name)
}

// Delete removes the policy. A missing policy is not an error.
func (a *NetworkPolicyApplier) Delete(ctx context.Context) error {
	err := a.client.NetworkingV1().NetworkPolicies(a.namespace).Delete(ctx, a.PolicyName(), metav1.DeleteOptions{})
	if k8serrors.IsNotFound(err) {
		return nil
	}
	return annotateAPIError(err, "cannot delete network policy %q", a.PolicyName())
}
