// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// kratos-operator is the charm's hook dispatch binary. Juju invokes it
// for every hook and action; the dispatch path selects the event path
// and deferred events are retried with capped backoff before being left
// for redelivery on the next hook.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"
	"github.com/juju/retry"
	k8sclient "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/canonical/kratos-operator/internal/charm"
	"github.com/canonical/kratos-operator/internal/hookenv"
	"github.com/canonical/kratos-operator/internal/kratos"
	"github.com/canonical/kratos-operator/internal/kubernetes"
	"github.com/canonical/kratos-operator/internal/workload"
)

var logger = loggo.GetLogger("kratos-operator")

// errDeferred marks a dispatch attempt that asked for redelivery.
var errDeferred = errors.ConstError("event deferred")

const (
	redeliveryAttempts = 3
	redeliveryDelay    = 5 * time.Second
	redeliveryMaxDelay = 30 * time.Second
)

func main() {
	os.Exit(Main(os.Args))
}

// Main runs one dispatch and returns the process exit code.
func Main(args []string) int {
	loggo.GetLogger("kratos-operator").SetLogLevel(loggo.INFO)

	var hook string
	flags := gnuflag.NewFlagSet(args[0], gnuflag.ContinueOnError)
	flags.StringVar(&hook, "hook", "", "hook or action to dispatch")
	if err := flags.Parse(true, args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if hook == "" {
		hook = dispatchPath(args[0])
	}
	if hook == "" {
		fmt.Fprintln(os.Stderr, "no hook to dispatch")
		return 2
	}

	if err := run(context.Background(), hook); err != nil {
		if errors.Is(err, errDeferred) {
			// Redelivery is left to the next inbound hook.
			logger.Infof("event still deferred, exiting cleanly")
			return 0
		}
		logger.Errorf("%s failed: %v", hook, err)
		return 1
	}
	return 0
}

// dispatchPath derives the hook name from JUJU_DISPATCH_PATH, falling
// back to the basename the binary was invoked under.
func dispatchPath(argv0 string) string {
	if path := os.Getenv("JUJU_DISPATCH_PATH"); path != "" {
		return path
	}
	return filepath.Base(argv0)
}

func run(ctx context.Context, hook string) error {
	env := hookenv.New()
	if err := loggo.RegisterWriter("juju-log", hookenv.NewLogWriter(env)); err != nil {
		logger.Debugf("cannot register the model log writer: %v", err)
	}

	container, err := workload.Connect(workload.SocketPath())
	if err != nil {
		return errors.Trace(err)
	}

	restConfig, err := rest.InClusterConfig()
	if err != nil {
		return errors.Annotate(err, "cannot load the in-cluster Kubernetes configuration")
	}
	clientset, err := k8sclient.NewForConfig(restConfig)
	if err != nil {
		return errors.Trace(err)
	}
	namespace := env.ModelName()
	configMaps := kubernetes.NewConfigMapStore(clientset, namespace, env.AppName(), clock.WallClock)
	policies := &policyAdapter{kubernetes.NewNetworkPolicyApplier(clientset, namespace, env.AppName())}

	c := charm.New(env, container, configMaps, policies, kratos.New(charm.AdminAPIURL))

	if action, ok := strings.CutPrefix(hook, "actions/"); ok {
		return errors.Trace(c.RunAction(ctx, action))
	}
	event := charm.EventForHook(strings.TrimPrefix(hook, "hooks/"))

	return errors.Trace(dispatchWithRetry(ctx, c, event))
}

// dispatchWithRetry runs the event, retrying deferred outcomes with
// capped backoff. An event still deferred after the last attempt is
// surfaced as errDeferred.
func dispatchWithRetry(ctx context.Context, c *charm.Charm, event charm.Event) error {
	return retry.Call(retry.CallArgs{
		Func: func() error {
			deferred, err := c.Run(ctx, event)
			if err != nil {
				return errors.Trace(err)
			}
			if deferred {
				return errDeferred
			}
			return nil
		},
		IsFatalError: func(err error) bool {
			return !errors.Is(err, errDeferred)
		},
		NotifyFunc: func(err error, attempt int) {
			logger.Infof("%s deferred, retrying (attempt %d)", event.Hook, attempt)
		},
		Attempts:    redeliveryAttempts,
		Delay:       redeliveryDelay,
		MaxDelay:    redeliveryMaxDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       clock.WallClock,
		Stop:        ctx.Done(),
	})
}

// policyAdapter narrows the k8s applier to the rule type the charm
// package defines.
type policyAdapter struct {
	applier *kubernetes.NetworkPolicyApplier
}

func (a *policyAdapter) Apply(ctx context.Context, rules []charm.PolicyRule) error {
	ingress := make([]kubernetes.IngressRule, 0, len(rules))
	for _, rule := range rules {
		ingress = append(ingress, kubernetes.IngressRule{Port: rule.Port, Allowed: rule.Allowed})
	}
	return a.applier.Apply(ctx, ingress)
}

func (a *policyAdapter) Delete(ctx context.Context) error {
	return a.applier.Delete(ctx)
}
