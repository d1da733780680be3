// Package metrics exports client counters to Prometheus.
package metrics
