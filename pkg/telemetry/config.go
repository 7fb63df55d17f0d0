package telemetry

type Config struct {
	// Use OTLP exporter. Has precedence over the Jaeger configuration.
	OTLP OTLP `yaml:"otlp"`
	// The URL of the Jaeger collector to send spans to.
	JaegerURL string `yaml:"jaegerUrl"`
	// The service name to report the spans under.
	Package string `yaml:"package"`
	// ID of the service instance. A random one is generated when empty.
	ID string `yaml:"id"`
}

type OTLP struct {
	// The endpoint of the OTLP collector, host and port without a URL path.
	Host string `yaml:"host"`
	// Secure indicates whether to use TLS when connecting to the OTLP endpoint.
	// HTTPS is used if enabled, HTTP otherwise.
	Secure bool `yaml:"secure"`
}

// Enabled reports whether any span exporter is configured at all.
func (c Config) Enabled() bool {
	return c.OTLP.Host != "" || c.JaegerURL != ""
}

// ServiceName returns the configured service name, or the default one.
func (c Config) ServiceName() string {
	if c.Package != "" {
		return c.Package
	}

	return PACKAGE
}
