// Package observability installs the OpenTelemetry tracer provider used for
// request spans.
package observability
