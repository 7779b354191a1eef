// Package middleware provides HTTP middleware for the status server.
//
// [Logger] writes one access line per request through the logging package,
// optionally skipping health probes. [Metrics] records request counts,
// durations and in-flight requests in Prometheus, labelled by the mux route
// template so that path parameters never inflate label cardinality.
//
// Both wrap the response writer in a statusRecorder to capture the status
// code and body size.
package middleware
