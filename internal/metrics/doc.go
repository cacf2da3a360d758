// Package metrics defines the Prometheus metrics recorded by the API client and
// the mock inference server.
package metrics
