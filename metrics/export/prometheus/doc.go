// Package prometheus renders authkit engine metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] takes an engine and exposes an http.Handler that
// serves every counter and histogram from the engine's snapshot. Counter
// names are prefixed authkit_*_total; the single histogram is
// authkit_verify_latency_seconds. Nothing registers in a global Prometheus
// registry; callers mount the Handler where they want it.
package prometheus
