// Package audit emits immutable audit events for every state transition in
// the policy pipeline: synthesis, verification results, conflict resolutions,
// and promotions.
//
// Events flow through an asynchronous recorder so the emitting component
// never blocks on storage. Tamper-evidence is out of scope; an external
// integrity service consumes the stored events. This package only guarantees
// deterministic, at-least-once emission.
package audit
