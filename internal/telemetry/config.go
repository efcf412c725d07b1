package telemetry

// Config wires the OTLP trace exporter.
type Config struct {
	// Enabled turns tracing on; when false every span is a no-op.
	Enabled bool

	// ServiceName identifies this process in the trace backend.
	ServiceName string

	// ServiceVersion is reported alongside the service name.
	ServiceVersion string

	// Endpoint is the OTLP gRPC endpoint, e.g. "localhost:4317".
	Endpoint string

	// Insecure disables TLS on the exporter connection.
	Insecure bool

	// SampleRate is the fraction of traces to keep, 0.0 through 1.0.
	SampleRate float64
}

// DefaultConfig returns the disabled-by-default tracing configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "driftfs",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}
