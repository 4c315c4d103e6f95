// Package telemetry provides structured logging and OpenTelemetry
// metrics for the pipeline manager. Metrics are exported over OTLP
// HTTP when enabled and fall back to no-op instruments otherwise.
package telemetry

const (
	// DefaultServiceName is the default service name for telemetry
	DefaultServiceName = "gridflow-manager"

	// DefaultEndpoint is the default OTLP collector endpoint
	DefaultEndpoint = "localhost:4318"
)

// Config represents the telemetry configuration.
type Config struct {
	// Enabled controls whether metrics are exported at all.
	// When false, no providers are initialized.
	Enabled bool `yaml:"enabled"`

	// ServiceName identifies the service in exported metrics.
	// Defaults to "gridflow-manager" if not specified.
	ServiceName string `yaml:"serviceName,omitempty"`

	// ServiceVersion identifies the build in exported metrics.
	ServiceVersion string `yaml:"serviceVersion,omitempty"`

	// Endpoint is the OTLP collector endpoint, "host:port" for HTTP
	// (the /v1/metrics path is added automatically).
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure allows HTTP connections instead of HTTPS.
	// Should only be true for development environments.
	Insecure bool `yaml:"insecure,omitempty"`
}

// GetServiceName returns the service name, using default if not specified
func (c *Config) GetServiceName() string {
	if c.ServiceName == "" {
		return DefaultServiceName
	}
	return c.ServiceName
}

// GetServiceVersion returns the service version, using "unknown" if not specified
func (c *Config) GetServiceVersion() string {
	if c.ServiceVersion == "" {
		return "unknown"
	}
	return c.ServiceVersion
}

// GetEndpoint returns the endpoint, using default if not specified
func (c *Config) GetEndpoint() string {
	if c.Endpoint == "" {
		return DefaultEndpoint
	}
	return c.Endpoint
}
