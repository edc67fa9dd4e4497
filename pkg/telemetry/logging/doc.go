// Package logging builds the process-wide slog logger from configuration
// and carries request identifiers through context.
package logging
