// Package tracing bootstraps OpenTelemetry for the engine and wraps the
// executor's units of work — whole runs, node Run calls, sub-workflow
// invocations, HTTP attempts — in spans. It is ambient observability
// only: nothing in the execution path depends on a span being recorded.
package tracing

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Exporter names where spans go.
type Exporter string

const (
	// ExporterOTLP ships spans to an OTLP/gRPC collector (the default).
	ExporterOTLP Exporter = "otlp"
	// ExporterStdout pretty-prints spans to stdout, for local debugging.
	ExporterStdout Exporter = "stdout"
	// ExporterNone records nothing.
	ExporterNone Exporter = "none"
)

// Config is the engine's tracing configuration, environment-driven like
// engine.Config and scoped to what one tracer provider needs.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Exporter       Exporter
	// Endpoint is the OTLP collector address, host:port.
	Endpoint string
	// SampleRatio is the fraction of traces kept, 0 through 1.
	SampleRatio float64
	// Insecure skips TLS on the collector connection.
	Insecure bool
	// Headers are extra headers for the OTLP connection, e.g. an auth
	// token for a hosted collector.
	Headers map[string]string
}

// LoadTracingConfig reads the FLOWGRAPH_TRACING_* environment:
//
//	FLOWGRAPH_TRACING_ENABLED    (default false)
//	FLOWGRAPH_TRACING_SERVICE    (default "flowgraph")
//	FLOWGRAPH_TRACING_VERSION    (default "dev")
//	FLOWGRAPH_TRACING_EXPORTER   otlp|stdout|none (default otlp)
//	FLOWGRAPH_TRACING_ENDPOINT   (default "localhost:4317")
//	FLOWGRAPH_TRACING_SAMPLE     (default 1.0)
//	FLOWGRAPH_TRACING_INSECURE   (default true)
//	FLOWGRAPH_TRACING_HEADERS    "k=v,k2=v2"
func LoadTracingConfig() *Config {
	return &Config{
		Enabled:        envBool("FLOWGRAPH_TRACING_ENABLED", false),
		ServiceName:    envString("FLOWGRAPH_TRACING_SERVICE", "flowgraph"),
		ServiceVersion: envString("FLOWGRAPH_TRACING_VERSION", "dev"),
		Exporter:       Exporter(envString("FLOWGRAPH_TRACING_EXPORTER", string(ExporterOTLP))),
		Endpoint:       envString("FLOWGRAPH_TRACING_ENDPOINT", "localhost:4317"),
		SampleRatio:    envFloat("FLOWGRAPH_TRACING_SAMPLE", 1.0),
		Insecure:       envBool("FLOWGRAPH_TRACING_INSECURE", true),
		Headers:        parsePairs(os.Getenv("FLOWGRAPH_TRACING_HEADERS")),
	}
}

// Validate reports the first problem with the configuration; a disabled
// config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.ServiceName == "" {
		return fmt.Errorf("tracing: service name is required")
	}
	switch c.Exporter {
	case ExporterOTLP:
		if c.Endpoint == "" {
			return fmt.Errorf("tracing: otlp exporter needs an endpoint")
		}
	case ExporterStdout, ExporterNone:
	default:
		return fmt.Errorf("tracing: unknown exporter %q", c.Exporter)
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("tracing: sample ratio %v outside [0, 1]", c.SampleRatio)
	}
	return nil
}

// parsePairs splits "k=v,k2=v2" into a map, dropping malformed entries.
func parsePairs(s string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok && strings.TrimSpace(k) != "" {
			out[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return out
}

func envString(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envBool(name string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(name))
	if err != nil {
		return fallback
	}
	return v
}

func envFloat(name string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(name), 64)
	if err != nil {
		return fallback
	}
	return v
}
