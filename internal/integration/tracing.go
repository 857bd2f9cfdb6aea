// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package integration

import (
	"encoding/json"
	"strings"

	"github.com/canonical/kratos-operator/core/relation"
)

// TracingData is the snapshot of the tracing integration. The endpoint
// is stored in bare host:port form: the workload configuration
// template prepends its own scheme.
type TracingData struct {
	// HTTPEndpoint is the otlp_http receiver endpoint with the scheme
	// stripped.
	HTTPEndpoint string
}

// LoadTracingData reads the tracing provider's receiver list and picks
// the otlp_http receiver.
func LoadTracingData(g relation.Getter) *TracingData {
	rel, err := relation.First(g, TracingIntegrationName)
	if err != nil {
		logger.Debugf("no tracing integration data: %v", err)
		return &TracingData{}
	}
	raw := rel.App["receivers"]
	if raw == "" {
		return &TracingData{}
	}
	var receivers []struct {
		Protocol struct {
			Name string `json:"name"`
		} `json:"protocol"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(raw), &receivers); err != nil {
		logger.Warningf("malformed tracing receivers: %v", err)
		return &TracingData{}
	}
	for _, r := range receivers {
		if r.Protocol.Name != "otlp_http" || r.URL == "" {
			continue
		}
		return &TracingData{HTTPEndpoint: stripScheme(r.URL)}
	}
	return &TracingData{}
}

// IsReady reports whether a tracing endpoint was resolved.
func (d *TracingData) IsReady() bool {
	return d.HTTPEndpoint != ""
}

// EnvVars projects the snapshot into workload environment variables.
func (d *TracingData) EnvVars() map[string]string {
	if !d.IsReady() {
		return nil
	}
	return map[string]string{
		"TRACING_ENABLED":                                "true",
		"TRACING_PROVIDER":                               "otel",
		"TRACING_PROVIDERS_OTLP_SERVER_URL":              d.HTTPEndpoint,
		"TRACING_PROVIDERS_OTLP_INSECURE":                "true",
		"TRACING_PROVIDERS_OTLP_SAMPLING_SAMPLING_RATIO": "1.0",
	}
}

func stripScheme(raw string) string {
	if idx := strings.Index(raw, "://"); idx >= 0 {
		return raw[idx+len("://"):]
	}
	return raw
}
