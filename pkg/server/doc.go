// Package server exposes the HTTP API.
//
// This package ties together the runtime evaluator, the principle store, the
// compilation pipeline, and the review queue behind a single listener, and
// manages server lifecycle including start, graceful shutdown, and health
// checks.
//
// # Routes
//
// The server exposes the following HTTP endpoints:
//
//   - POST /v1/evaluate - evaluate a request context against the active rules
//   - POST /v1/principles - ingest a new principle and compile it
//   - PUT /v1/principles/{id} - amend a principle
//   - GET /v1/principles - list active principles
//   - GET /v1/principles/{id} - fetch the active version of a principle
//   - GET /v1/rules - list rules, optionally filtered by status
//   - GET /v1/generations/current - the generation the evaluator serves from
//   - GET /v1/review - pending review items
//   - POST /v1/review/signal - record a reviewer's verdict
//   - GET /healthz - liveness probe (always 200)
//   - GET /readyz - readiness probe (503 until a generation is loaded)
//   - GET /metrics - Prometheus scrape endpoint
//
// # Middleware Chain
//
// Requests pass through the following middleware (innermost to outermost):
//  1. RequestID: tags every request for correlation
//  2. Logging: logs request/response details
//  3. Recovery: recovers from panics and returns a 500 error
//
// # Graceful Shutdown
//
// Start blocks until the context is cancelled or SIGTERM/SIGINT arrives, then
// drains connections within the configured shutdown timeout.
package server
