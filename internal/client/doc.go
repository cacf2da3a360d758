// Package client builds authenticated requests for the inference API and handles
// the JSON responses. It classifies failures as configuration, transport, parse
// or remote errors and records a span and metrics for every request.
package client
