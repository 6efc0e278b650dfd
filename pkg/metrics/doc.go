/*
Package metrics exposes Prometheus instrumentation for cvld.

Coordinator throughput, subscriber and object counts, broadcast-query
activity and API request latency are tracked here and served on /metrics.
*/
package metrics
