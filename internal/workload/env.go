// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package workload

// defaultEnv is always present in the service environment; sources may
// override individual entries.
var defaultEnv = map[string]string{
	"LOG_FORMAT":                "json",
	"SERVE_PUBLIC_CORS_ENABLED": "true",
}

// EnvSource contributes environment variables to the workload service.
// A nil or empty contribution is valid.
type EnvSource interface {
	EnvVars() map[string]string
}

// BuildEnvironment merges the default environment with every source's
// contribution. Later sources override earlier ones.
func BuildEnvironment(sources ...EnvSource) map[string]string {
	env := make(map[string]string, len(defaultEnv))
	for k, v := range defaultEnv {
		env[k] = v
	}
	for _, source := range sources {
		for k, v := range source.EnvVars() {
			env[k] = v
		}
	}
	return env
}
