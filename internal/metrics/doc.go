// Package metrics exports calibration statistics as Prometheus metrics.
//
// A Recorder owns a private registry, so nothing leaks into the process-wide
// default registry. After a run the registry is written in the text
// exposition format with WriteTextfile, ready for node_exporter's textfile
// collector.
package metrics
