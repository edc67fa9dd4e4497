// Package config defines the configuration for the charter policy service.
//
// Configuration is loaded from a YAML file, filled in with defaults, overlaid
// with CHARTER_* environment variables, and validated. Environment variables
// always win over file values. Each component receives only its own section,
// so packages stay decoupled from the root Config.
package config
