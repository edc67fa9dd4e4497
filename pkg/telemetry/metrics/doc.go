// Package metrics exposes Prometheus metrics for the policy service.
//
// The Collector owns a registry and groups metrics by concern: runtime
// decisions (counts by effect and rationale, latency against the 50ms
// budget, cache behavior, active generation), the compilation pipeline
// (synthesis, verification, conflicts, promotions), and the audit recorder.
// All recording methods are no-ops when metrics are disabled.
package metrics
