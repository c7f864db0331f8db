// Package metrics exposes daemon counters to Prometheus.
//
// A Registry owns its own prometheus registry so tests never collide on the
// process-global default. All recording methods are safe on a nil receiver;
// components that run without a daemon simply pass nil.
package metrics
