// Package otel binds authkit engine metrics to OpenTelemetry instruments.
//
// [NewOTelExporter] registers an Int64ObservableCounter per engine counter
// and Int64ObservableGauges for the latency histogram buckets. A single
// collection callback reads one engine snapshot per cycle. The caller owns
// the MeterProvider and supplies the Meter.
package otel
