// Package metrics records per-run build metrics.
//
// Components receive a Recorder; NoopRecorder is the default so callers never
// check for nil. PrometheusRecorder keeps the metrics in its own registry and
// can write them to a node_exporter textfile after each run, which suits a
// short-lived process started by a timer.
package metrics
