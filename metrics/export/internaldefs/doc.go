// Package internaldefs holds the metric name and bucket definitions shared by
// the exporter implementations.
//
// Counter and histogram definitions live here so the Prometheus and OTel
// exporters emit identical metric names and bucket boundaries. A definition
// change lands in all exporters at once.
package internaldefs
