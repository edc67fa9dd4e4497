// Charter is a constitutional policy runtime. It compiles human-authored
// governance principles into verified, machine-evaluable policy rules and
// serves sub-50ms permit/deny decisions over them.
//
// The pipeline runs principle ingestion through rule synthesis, formal
// verification, conflict resolution, and atomic promotion into generation
// snapshots. The runtime evaluator answers decision requests against the
// current snapshot and fails closed on any doubt.
//
// Usage:
//
//	# Start the server with default configuration
//	charter run
//
//	# Start with a custom configuration file
//	charter run --config /path/to/config.yaml
//
//	# Check principle files without a running server
//	charter lint --file principles.yaml
//
//	# Show version information
//	charter version
package main

func main() {
	Execute()
}
