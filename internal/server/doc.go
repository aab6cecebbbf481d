// Package server hosts the operational HTTP surface: Prometheus
// metrics on a dedicated port plus liveness and readiness probes,
// deliberately separate from anything that touches user data.
package server
