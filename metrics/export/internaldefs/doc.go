// Package internaldefs holds the exported metric names and the histogram
// conversion shared by the Prometheus and OpenTelemetry exporters, so both
// publish the same series for the same client.
//
// It imports no exporter package and performs no I/O.
package internaldefs
