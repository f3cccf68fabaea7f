// Package metrics exposes the dispatcher's Prometheus metrics: containers
// launched/stopped, orphan sweeps, active/ended sessions, and dial-loop
// retries, all labeled by honeypot name. Collector adapts the
// package-level metrics to honeypot.Metrics so the Connection Manager
// depends only on that small interface, never on Prometheus directly.
// Registered at init, scraped via Handler() on the usual /metrics path,
// the same init-time MustRegister discipline the rest of this codebase
// uses for its metrics.
package metrics
